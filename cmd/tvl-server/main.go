// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

// Command tvl-server serves the chip model to remote clients over TCP or a
// serial line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-tvl/internal/model"
	"github.com/ZaparooProject/go-tvl/internal/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	address    string
	port       string
	baud       int
	debug      bool
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "tvl-server",
		Short:         "Serve the chip model over TCP or a serial line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "Model provisioning file (YAML)")
	root.PersistentFlags().BoolVar(&o.debug, "debug", false, "Log every buffer")

	tcp := &cobra.Command{
		Use:   "tcp",
		Short: "Listen for TCP clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := o.newServer(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ln, err := server.ListenTCP(o.address)
			if err != nil {
				return err //nolint:wrapcheck // already annotated
			}
			return s.Serve(cmd.Context(), ln) //nolint:wrapcheck // already annotated
		},
	}
	tcp.Flags().StringVarP(&o.address, "address", "a", server.DefaultTCPAddress, "Listen address")

	serialCmd := &cobra.Command{
		Use:   "serial",
		Short: "Serve a single client on a serial line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := o.newServer(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			port, err := server.OpenSerial(o.port, o.baud)
			if err != nil {
				return err //nolint:wrapcheck // already annotated
			}
			return s.ServeSerial(cmd.Context(), port, o.port) //nolint:wrapcheck // already annotated
		},
	}
	serialCmd.Flags().StringVarP(&o.port, "port", "p", server.DefaultSerialPort, "Serial device")
	serialCmd.Flags().IntVarP(&o.baud, "baud", "b", server.DefaultBaudRate, "Baud rate")

	root.AddCommand(tcp, serialCmd)
	return root
}

func (o *options) newServer(w io.Writer) (*server.Server, error) {
	level := zerolog.InfoLevel
	if o.debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()

	cfg := model.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = model.LoadConfig(o.configPath); err != nil {
			return nil, err //nolint:wrapcheck // already annotated
		}
		logger.Info().Str("config", o.configPath).Msg("loaded model provisioning")
	}

	factory := func() (*model.Model, error) {
		return model.New(cfg, model.WithLogger(logger))
	}
	s, err := server.New(factory, server.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create model: %w", err)
	}
	return s, nil
}

func main() {
	os.Exit(mainWithExitCode(os.Args[1:]))
}

func mainWithExitCode(args []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
