// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"unicode"

	"github.com/ZaparooProject/go-tvl"
	"github.com/ZaparooProject/go-tvl/internal/frame"
	"github.com/ZaparooProject/go-tvl/internal/ports"
	"github.com/spf13/cobra"
)

func chipIDCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chip-id",
		Short: "Read the chip identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withHost(cmd.Context(), func(ctx context.Context, h *tvl.Host) error {
				id, err := h.ChipID(ctx)
				if err != nil {
					return err //nolint:wrapcheck // host errors are typed
				}
				printObject(cmd.OutOrStdout(), "chip id", id)
				return nil
			})
		},
	}
}

func certCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Read the X.509 certificate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withHost(cmd.Context(), func(ctx context.Context, h *tvl.Host) error {
				cert, err := h.Certificate(ctx)
				if err != nil {
					return err //nolint:wrapcheck // host errors are typed
				}
				if output == "" {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "certificate: %d bytes\n%s", len(cert), hex.Dump(cert))
					return nil
				}
				if err := os.WriteFile(output, cert, 0o600); err != nil {
					return fmt.Errorf("write certificate: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(cert), output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the certificate to a file")
	return cmd
}

func fwVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fw-version",
		Short: "Read the RISC-V and SPECT firmware versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withHost(cmd.Context(), func(ctx context.Context, h *tvl.Host) error {
				riscv, err := h.RiscvFirmwareVersion(ctx)
				if err != nil {
					return err //nolint:wrapcheck // host errors are typed
				}
				spect, err := h.SpectFirmwareVersion(ctx)
				if err != nil {
					return err //nolint:wrapcheck // host errors are typed
				}
				printObject(cmd.OutOrStdout(), "riscv", riscv)
				printObject(cmd.OutOrStdout(), "spect", spect)
				return nil
			})
		},
	}
}

var objectNames = map[string]tvl.ObjectID{
	"cert":    tvl.ObjectX509Certificate,
	"chip-id": tvl.ObjectChipID,
	"riscv":   tvl.ObjectRiscvFwVersion,
	"spect":   tvl.ObjectSpectFwVersion,
	"fw-bank": tvl.ObjectFwBank,
}

func parseObjectID(s string) (tvl.ObjectID, error) {
	if id, ok := objectNames[strings.ToLower(s)]; ok {
		return id, nil
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown object %q", s)
	}
	return tvl.ObjectID(n), nil
}

func infoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <object> [block]",
		Short: "Read one GET_INFO block (object: cert, chip-id, riscv, spect, fw-bank or a number)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			object, err := parseObjectID(args[0])
			if err != nil {
				return err
			}
			var block uint64
			if len(args) == 2 {
				if block, err = strconv.ParseUint(args[1], 0, 8); err != nil {
					return fmt.Errorf("invalid block %q", args[1])
				}
			}
			return a.withHost(cmd.Context(), func(ctx context.Context, h *tvl.Host) error {
				resp, err := h.SendRequest(ctx, tvl.GetInfoRequest(object, uint8(block)))
				if err != nil {
					return err //nolint:wrapcheck // host errors are typed
				}
				printObject(cmd.OutOrStdout(), object.String(), resp.Bytes("object"))
				return nil
			})
		},
	}
}

func resendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resend",
		Short: "Ask the target to repeat its latest response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withHost(cmd.Context(), func(ctx context.Context, h *tvl.Host) error {
				resp, err := h.Resend(ctx)
				if err != nil {
					return err //nolint:wrapcheck // host errors are typed
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
}

func sleepCmd(a *app) *cobra.Command {
	var deep bool
	cmd := &cobra.Command{
		Use:   "sleep",
		Short: "Put the target to sleep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind := tvl.SleepNormal
			if deep {
				kind = tvl.SleepDeep
			}
			return a.withHost(cmd.Context(), func(ctx context.Context, h *tvl.Host) error {
				if err := h.Sleep(ctx, kind); err != nil {
					return err //nolint:wrapcheck // host errors are typed
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&deep, "deep", false, "Request deep sleep")
	return cmd
}

func startupCmd(a *app) *cobra.Command {
	var maintenance bool
	cmd := &cobra.Command{
		Use:   "startup",
		Short: "Reboot the target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := tvl.StartupReboot
			if maintenance {
				id = tvl.StartupMaintenanceReboot
			}
			return a.withHost(cmd.Context(), func(ctx context.Context, h *tvl.Host) error {
				if err := h.Startup(ctx, id); err != nil {
					return err //nolint:wrapcheck // host errors are typed
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&maintenance, "maintenance", false, "Reboot into maintenance mode")
	return cmd
}

func logCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Read the RISC-V firmware log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withHost(cmd.Context(), func(ctx context.Context, h *tvl.Host) error {
				log, err := h.GetLog(ctx)
				if err != nil {
					return err //nolint:wrapcheck // host errors are typed
				}
				printObject(cmd.OutOrStdout(), "log", log)
				return nil
			})
		},
	}
}

func rawCmd(a *app) *cobra.Command {
	var verbatim bool
	cmd := &cobra.Command{
		Use:   "raw <hex>",
		Short: "Send a request frame built from an ID and payload (or a whole frame with --verbatim)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseRawFrame(args[0], verbatim)
			if err != nil {
				return err
			}
			return a.withHost(cmd.Context(), func(ctx context.Context, h *tvl.Host) error {
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "tx: % X\n", req)
				resp, err := h.Target().Transfer(ctx, req)
				if err != nil {
					return err //nolint:wrapcheck // transport errors are typed
				}
				_, _ = fmt.Fprintf(out, "rx: % X\n", resp)
				if decoded, err := tvl.DecodeResponse(resp, tvl.RequestID(req[0])); err == nil {
					_, _ = fmt.Fprintln(out, decoded)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&verbatim, "verbatim", false, "Send the bytes as given, without adding length and CRC")
	return cmd
}

func parseRawFrame(s string, verbatim bool) ([]byte, error) {
	s = strings.NewReplacer(" ", "", ":", "", "0x", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	if verbatim {
		return data, nil
	}
	req, err := frame.Build(data[0], data[1:])
	if err != nil {
		return nil, fmt.Errorf("build frame: %w", err)
	}
	return req, nil
}

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the L2 messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tREQUEST\tRESPONSE\tCHUNKED")
			for _, m := range tvl.Catalog() {
				chunked := "-"
				if m.Chunked {
					chunked = strconv.Itoa(m.BlockCapacity)
				}
				_, _ = fmt.Fprintf(w, "0x%02X\t%s\t%s\t%s\t%s\n",
					byte(m.ID), m.Name, fieldNames(m.Request), fieldNames(m.Response), chunked)
			}
			return w.Flush() //nolint:wrapcheck // plain output
		},
	}
}

func fieldNames(fields []tvl.FieldSpec) string {
	if len(fields) == 0 {
		return "-"
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return strings.Join(names, ",")
}

func portsCmd() *cobra.Command {
	var (
		opts ports.Options
		all  bool
	)
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports a tvl-server may be attached to",
		Args:  cobra.NoArgs,
		// no target is needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.LikelyOnly = !all
			found, err := ports.List(opts)
			if err != nil {
				return err //nolint:wrapcheck // already annotated
			}
			return printPorts(cmd.OutOrStdout(), found)
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include ports that do not look like a USB bridge")
	cmd.Flags().StringSliceVar(&opts.IgnorePaths, "ignore", nil, "Device paths to skip")
	cmd.Flags().StringSliceVar(&opts.Blocklist, "block", nil, "VID:PID pairs to skip")
	return cmd
}

func printPorts(w io.Writer, found []ports.Port) error {
	if len(found) == 0 {
		_, _ = fmt.Fprintln(w, "no serial ports found")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PORT\tVID:PID\tDEVICE\tSERIAL")
	for _, p := range found {
		device := p.Product
		if name, ok := ports.BridgeName(p.VIDPID); ok {
			device = name
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, orDash(p.VIDPID), orDash(device), orDash(p.SerialNumber))
	}
	return tw.Flush() //nolint:wrapcheck // plain output
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printObject(w io.Writer, label string, data []byte) {
	if len(data) > 0 && isPrintable(data) {
		_, _ = fmt.Fprintf(w, "%s: %q (% X)\n", label, data, data)
		return
	}
	_, _ = fmt.Fprintf(w, "%s: % X\n", label, data)
}

func isPrintable(data []byte) bool {
	for _, b := range data {
		if b > unicode.MaxASCII || !unicode.IsPrint(rune(b)) {
			return false
		}
	}
	return true
}
