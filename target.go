// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package tvl

import (
	"context"
	"errors"
	"time"

	"github.com/ZaparooProject/go-tvl/internal/frame"
	"github.com/ZaparooProject/go-tvl/internal/syncutil"
)

// Target is anything that can carry one request frame to the secure element
// and return its response frame: an SPI bus, a remote model, a simulator.
//
// Transfer blocks until the response arrives or the target's response budget
// is exhausted, in which case it fails with a *TransportError. Targets move
// opaque bytes; they never interpret or validate frames.
type Target interface {
	Transfer(ctx context.Context, frame []byte) ([]byte, error)
}

// TargetFunc adapts an ordinary function to the Target interface.
type TargetFunc func(ctx context.Context, frame []byte) ([]byte, error)

// Transfer calls f(ctx, frame).
func (f TargetFunc) Transfer(ctx context.Context, frame []byte) ([]byte, error) {
	return f(ctx, frame)
}

// TargetWithRetry wraps a Target and repeats transfers that fail with a
// retryable transport error. Protocol and integrity errors are never retried.
type TargetWithRetry struct {
	target Target
	config *RetryConfig
}

// NewTargetWithRetry creates a new target wrapper with retry logic
func NewTargetWithRetry(target Target, config *RetryConfig) *TargetWithRetry {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &TargetWithRetry{
		target: target,
		config: config,
	}
}

// Transfer implements Target.
func (t *TargetWithRetry) Transfer(ctx context.Context, frame []byte) ([]byte, error) {
	var result []byte
	err := RetryWithConfig(ctx, t.config, func(ctx context.Context) error {
		resp, err := t.target.Transfer(ctx, frame)
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	return result, err
}

// SetRetryConfig updates the retry configuration
func (t *TargetWithRetry) SetRetryConfig(config *RetryConfig) {
	t.config = config
}

// Close closes the wrapped target if it supports closing.
func (t *TargetWithRetry) Close() error {
	if c, ok := t.target.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// ErrMockClosed is returned by a closed MockTarget.
var ErrMockClosed = errors.New("mock target closed")

// MockTarget provides a programmable Target for testing. Responses are keyed by
// the request identifier (the first byte of the request frame).
type MockTarget struct {
	responses map[RequestID][]byte
	queued    map[RequestID][][]byte
	callCount map[RequestID]int
	errorMap  map[RequestID]error
	frames    [][]byte
	delay     time.Duration
	mu        syncutil.RWMutex
	closed    bool
}

// NewMockTarget creates a new mock target
func NewMockTarget() *MockTarget {
	return &MockTarget{
		responses: make(map[RequestID][]byte),
		queued:    make(map[RequestID][][]byte),
		callCount: make(map[RequestID]int),
		errorMap:  make(map[RequestID]error),
	}
}

// Transfer implements Target. Queued responses are consumed first, then the
// fixed response is returned; requests with neither get an empty REQ_OK frame.
func (m *MockTarget) Transfer(ctx context.Context, req []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	closed := m.closed
	delay := m.delay
	m.mu.RUnlock()

	if closed {
		return nil, NewTransportError("transfer", "mock", ErrMockClosed, ErrorTypePermanent)
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, NewTimeoutError("transfer", "mock")
		}
	}

	var id RequestID
	if len(req) > 0 {
		id = RequestID(req[0])
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount[id]++
	m.frames = append(m.frames, append([]byte(nil), req...))

	if err, exists := m.errorMap[id]; exists {
		return nil, err
	}
	if q := m.queued[id]; len(q) > 0 {
		m.queued[id] = q[1:]
		return append([]byte(nil), q[0]...), nil
	}
	if response, exists := m.responses[id]; exists {
		return append([]byte(nil), response...), nil
	}
	return frame.Build(byte(StatusReqOK), nil)
}

// Close marks the target closed; later transfers fail permanently.
func (m *MockTarget) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Test helper methods

// SetResponse configures the raw response frame for a request type.
func (m *MockTarget) SetResponse(id RequestID, response []byte) {
	m.mu.Lock()
	m.responses[id] = append([]byte(nil), response...)
	m.mu.Unlock()
}

// SetReply encodes and configures a response for a request type.
func (m *MockTarget) SetReply(id RequestID, status Status, fields map[string]Value) error {
	resp, err := EncodeResponse(id, status, fields)
	if err != nil {
		return err
	}
	m.SetResponse(id, resp)
	return nil
}

// QueueResponse appends a one-shot response frame for a request type.
func (m *MockTarget) QueueResponse(id RequestID, response []byte) {
	m.mu.Lock()
	m.queued[id] = append(m.queued[id], append([]byte(nil), response...))
	m.mu.Unlock()
}

// SetError configures an error to be returned for a request type.
func (m *MockTarget) SetError(id RequestID, err error) {
	m.mu.Lock()
	m.errorMap[id] = err
	m.mu.Unlock()
}

// ClearError removes error injection for a request type.
func (m *MockTarget) ClearError(id RequestID) {
	m.mu.Lock()
	delete(m.errorMap, id)
	m.mu.Unlock()
}

// SetDelay configures a delay to simulate the target's response time.
func (m *MockTarget) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// GetCallCount returns how many times a request type was transferred.
func (m *MockTarget) GetCallCount(id RequestID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount[id]
}

// Frames returns copies of every request frame received, in order.
func (m *MockTarget) Frames() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.frames))
	for i, f := range m.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Reset clears all mock state.
func (m *MockTarget) Reset() {
	m.mu.Lock()
	m.responses = make(map[RequestID][]byte)
	m.queued = make(map[RequestID][][]byte)
	m.callCount = make(map[RequestID]int)
	m.errorMap = make(map[RequestID]error)
	m.frames = nil
	m.delay = 0
	m.closed = false
	m.mu.Unlock()
}
