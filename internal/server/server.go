// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

// Package server exposes a chip model over the wire buffer protocol, on a
// TCP listener or a serial line.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/ZaparooProject/go-tvl/internal/model"
	"github.com/ZaparooProject/go-tvl/internal/syncutil"
	"github.com/ZaparooProject/go-tvl/internal/wire"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Defaults for the listening side.
const (
	DefaultTCPAddress = "127.0.0.1:28992"
	DefaultSerialPort = "/dev/ttyUSB0"
	DefaultBaudRate   = 115200
)

// Factory builds a fresh model. It is called at start-up and whenever the
// target is reset.
type Factory func() (*model.Model, error)

// Server owns one model and serves one connection at a time.
type Server struct {
	logger  zerolog.Logger
	factory Factory
	model   *model.Model
	mu      syncutil.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New builds the first model and returns a server for it.
func New(factory Factory, opts ...Option) (*Server, error) {
	s := &Server{
		factory: factory,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	m, err := factory()
	if err != nil {
		return nil, fmt.Errorf("instantiate model: %w", err)
	}
	s.model = m
	s.logger.Info().Msg("target instantiated")
	return s, nil
}

// Model returns the model currently served.
func (s *Server) Model() *model.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// Serve accepts connections from ln until ctx is done, serving each to
// completion before accepting the next.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("listening")

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		if err := s.serveNetConn(ctx, conn); err != nil {
			s.logger.Warn().Err(err).Msg("connection ended with error")
		}
	}
}

func (s *Server) serveNetConn(ctx context.Context, conn net.Conn) error {
	defer func() {
		_ = conn.Close()
	}()
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	err := s.ServeConn(conn, conn.RemoteAddr().String())
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// ServeConn processes buffers from rw until it reaches end of stream.
func (s *Server) ServeConn(rw io.ReadWriter, remote string) error {
	log := s.logger.With().
		Str("conn", uuid.NewString()).
		Str("remote", remote).
		Logger()
	log.Info().Msg("client connected")
	start := time.Now()
	count := 0
	defer func() {
		log.Info().Int("buffers", count).Dur("elapsed", time.Since(start)).Msg("client disconnected")
	}()

	for {
		req, err := wire.Read(rw)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		count++

		reply := s.Handle(req)
		log.Debug().Stringer("rx", req).Stringer("tx", reply).Msg("buffer")
		if err := wire.Write(rw, reply); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}
}

// Handle executes one buffer against the model and returns the reply.
func (s *Server) Handle(req wire.Buffer) wire.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !req.Tag.Known() {
		s.logger.Error().Stringer("tag", req.Tag).Msg("invalid tag")
		return wire.Buffer{Tag: wire.TagInvalid}
	}
	if req.Tag.IsError() {
		return wire.Buffer{Tag: wire.TagUnsupported}
	}
	if req.Tag == wire.TagResetTarget {
		if err := s.reset(); err != nil {
			s.logger.Error().Err(err).Msg("reset target")
			return wire.Buffer{Tag: wire.TagException}
		}
		return wire.Buffer{Tag: wire.TagResetTarget}
	}

	out, err := s.execute(req)
	if err != nil {
		s.logger.Error().Err(err).Stringer("tag", req.Tag).Msg("target raised an exception")
		if rerr := s.reset(); rerr != nil {
			s.logger.Error().Err(rerr).Msg("reset target")
		}
		return wire.Buffer{Tag: wire.TagException}
	}
	return wire.Buffer{Tag: req.Tag, Payload: out}
}

// execute runs one bus operation, turning a model panic into an error.
func (s *Server) execute(req wire.Buffer) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	m := s.model
	switch req.Tag {
	case wire.TagCSNLow:
		return nil, m.CSNLow()
	case wire.TagCSNHigh:
		return nil, m.CSNHigh()
	case wire.TagSPISend:
		return m.Send(req.Payload)
	case wire.TagPowerOn:
		m.PowerOn()
		return nil, nil
	case wire.TagPowerOff:
		m.PowerOff()
		return nil, nil
	case wire.TagWait:
		d, err := wire.DecodeWait(req.Payload)
		if err != nil {
			return nil, err
		}
		return nil, m.Wait(d)
	default:
		return nil, fmt.Errorf("unhandled tag %s", req.Tag)
	}
}

func (s *Server) reset() error {
	s.logger.Info().Msg("resetting target")
	m, err := s.factory()
	if err != nil {
		return fmt.Errorf("instantiate model: %w", err)
	}
	s.model = m
	return nil
}
