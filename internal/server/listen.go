// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"
	"net"

	"go.bug.st/serial"
)

// ListenTCP opens the TCP listener the server accepts on.
func ListenTCP(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return ln, nil
}

// OpenSerial opens a serial line in 8N1 mode with blocking reads.
func OpenSerial(name string, baud int) (serial.Port, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	return port, nil
}

// ServeSerial serves the single peer on a serial line until ctx is done or
// the line fails. The port is closed on return.
func (s *Server) ServeSerial(ctx context.Context, port serial.Port, name string) error {
	stop := context.AfterFunc(ctx, func() {
		_ = port.Close()
	})
	defer func() {
		if stop() {
			_ = port.Close()
		}
	}()

	s.logger.Info().Str("port", name).Msg("serving serial line")
	err := s.ServeConn(port, name)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
