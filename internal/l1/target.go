// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package l1

import (
	"context"

	"github.com/ZaparooProject/go-tvl"
	"github.com/ZaparooProject/go-tvl/internal/syncutil"
)

// traceDepth keeps a full default exchange: the request, ten polls and the
// response tail.
const traceDepth = 2*DefaultMaxPolls + 4

// Target carries frames over a Bus. Failed transfers carry the bus trace.
type Target struct {
	bus       Bus
	transport string
	port      string
	config    PollConfig
	mu        syncutil.Mutex
}

// NewTarget wraps bus. transport and port label errors and traces.
func NewTarget(bus Bus, transport, port string, cfg PollConfig) (*Target, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Target{
		bus:       bus,
		transport: transport,
		port:      port,
		config:    cfg,
	}, nil
}

// Transfer implements tvl.Target.
func (t *Target) Transfer(ctx context.Context, frame []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	trace := tvl.NewTraceBuffer(t.transport, t.port, traceDepth)
	resp, err := Exchange(ctx, t.bus, t.config, frame, t.port, trace)
	if err != nil {
		return nil, trace.WrapError(err)
	}
	return resp, nil
}

// PollConfig returns the polling parameters.
func (t *Target) PollConfig() PollConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.config
}

// SetPollConfig replaces the polling parameters.
func (t *Target) SetPollConfig(cfg PollConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.config = cfg
	return nil
}

// Lock runs fn with exclusive use of the bus, for out-of-band operations
// such as power control.
func (t *Target) Lock(fn func(Bus) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(t.bus)
}
