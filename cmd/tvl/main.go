// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

// Command tvl talks to a secure element over any supported target: the
// built-in chip model, a tvl-server over TCP or serial, a hardware SPI bus,
// or a recorded transcript.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/go-tvl"
	"github.com/ZaparooProject/go-tvl/internal/config"
	"github.com/ZaparooProject/go-tvl/target/replay"
	"github.com/spf13/cobra"
)

type app struct {
	cfg        config.Config
	targetURL  string
	configPath string
	recordPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "tvl",
		Short:         "Exercise a secure element over its L2 protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return tvl.CloseSessionLog()
		},
	}
	root.PersistentFlags().StringVarP(&a.targetURL, "target", "t", "",
		"Target URL (model[:file.yaml], tcp://, serial://, spi://, replay://)")
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Client config file (TOML)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug output and a session log file")
	root.PersistentFlags().StringVar(&a.recordPath, "record", "", "Record the exchanges to a transcript file")

	root.AddCommand(
		chipIDCmd(a),
		certCmd(a),
		fwVersionCmd(a),
		infoCmd(a),
		resendCmd(a),
		sleepCmd(a),
		startupCmd(a),
		logCmd(a),
		rawCmd(a),
		catalogCmd(),
		portsCmd(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err //nolint:wrapcheck // already annotated
	}
	if a.targetURL != "" {
		cfg.Target = a.targetURL
	}
	a.cfg = cfg

	if a.debug {
		tvl.SetDebugEnabled(true)
		path, err := tvl.InitSessionLog()
		if err != nil {
			return err //nolint:wrapcheck // already annotated
		}
		_, _ = fmt.Fprintf(os.Stderr, "Session log: %s\n", path)
	}
	return nil
}

// withHost opens the configured target, runs fn against a host on it and
// releases the target. A requested transcript is saved even when fn fails.
func (a *app) withHost(ctx context.Context, fn func(ctx context.Context, h *tvl.Host) error) (err error) {
	opened, err := openTarget(a.cfg.Target, a.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := opened.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var target tvl.Target = opened
	if a.cfg.Retries > 0 {
		rc := tvl.DefaultRetryConfig()
		rc.MaxAttempts = a.cfg.Retries + 1
		target = tvl.NewTargetWithRetry(target, rc)
	}
	var rec *replay.Recorder
	if a.recordPath != "" {
		rec = replay.NewRecorder(target, a.cfg.Target)
		target = rec
		defer func() {
			if serr := rec.SaveFile(a.recordPath); serr != nil && err == nil {
				err = serr
			}
		}()
	}

	host, err := tvl.New(target, tvl.WithHostConfig(a.cfg.HostConfig()), tvl.WithLogger(tvl.Logger()))
	if err != nil {
		return err //nolint:wrapcheck // already annotated
	}
	return fn(ctx, host)
}

func main() {
	os.Exit(mainWithExitCode(os.Args[1:]))
}

func mainWithExitCode(args []string) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	root := newRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if trace := tvl.GetTrace(err); trace != nil {
			_, _ = fmt.Fprintln(os.Stderr, trace.FormatTrace())
		}
		return 1
	}
	return 0
}
