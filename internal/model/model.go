// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

// Package model simulates a secure element at the SPI level: an L1 state
// machine in front of the L2 request handlers, provisioned from a Config.
//
// A Model implements the l1 bus contract, so the host exchange code runs
// against it unchanged.
package model

import (
	"time"

	"github.com/ZaparooProject/go-tvl"
	"github.com/ZaparooProject/go-tvl/internal/frame"
	"github.com/ZaparooProject/go-tvl/internal/syncutil"
	"github.com/rs/zerolog"
)

// State is a snapshot of the model's observable state.
type State struct {
	SPIState  string
	Sleep     tvl.SleepKind
	Requests  int
	Resets    int
	Powered   bool
	CSNLow    bool
	Pending   bool
	Sleeping  bool
	LastStart tvl.StartupID
}

// Model is a simulated chip. It is safe for concurrent use.
type Model struct {
	logger      zerolog.Logger
	cfg         Config
	spi         spiFSM
	state       State
	mu          syncutil.Mutex
	corruptNext bool
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger for bus and request events.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Model) {
		m.logger = l
	}
}

// New creates a powered model provisioned with cfg.
func New(cfg Config, opts ...Option) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Model{
		cfg:    cfg.clone(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.spi.initByte = m.cfg.InitByte
	m.spi.busy = m.cfg.BusyPattern
	m.state.Powered = true
	return m, nil
}

// Config returns a copy of the model's provisioning.
func (m *Model) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.clone()
}

// CSNLow drives chip select low, starting a transaction.
func (m *Model) CSNLow() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger.Trace().Msg("chip select low")
	m.spi.drive(true)
	return nil
}

// CSNHigh drives chip select high, ending the transaction.
func (m *Model) CSNHigh() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger.Trace().Msg("chip select high")
	m.spi.drive(false)
	return nil
}

// Wait is a no-op; the model answers instantly.
func (*Model) Wait(time.Duration) error {
	return nil
}

// Send clocks data through the bus and returns what the chip drives back.
// Outside a transaction the chip drives nothing. A powered-off chip ignores
// its input and MISO idles high, so every byte reads as NO_RESP.
func (m *Model) Send(data []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Powered {
		m.logger.Trace().Hex("rx", data).Msg("spi send while powered off")
		return pad(nil, frame.NoResp, len(data)), nil
	}
	if len(data) == 0 {
		return []byte{}, nil
	}

	var out []byte
	switch m.spi.state {
	case stateIdle:
		return []byte{}, nil
	case stateFallingEdge:
		var err error
		out, err = m.firstChunk(data)
		if err != nil {
			return nil, err
		}
	default:
		out = m.spi.stream(len(data))
	}
	m.logger.Trace().
		Hex("rx", data).
		Hex("tx", out).
		Stringer("next_state", m.spi.state).
		Msg("spi send")
	return out, nil
}

func (m *Model) firstChunk(data []byte) ([]byte, error) {
	if data[0] == frame.GetResp {
		return m.spi.answerPoll(len(data)), nil
	}
	if len(m.spi.odata) > 0 {
		return nil, ErrResponsePending
	}

	resp, resend := m.process(data)
	if resend {
		m.spi.odata = m.spi.responses.latest
	} else {
		m.spi.responses.add(resp)
		m.spi.odata = m.spi.responses.next()
	}
	if m.corruptNext && len(m.spi.odata) > 0 {
		// damage the copy on the wire; RESEND replays the intact frame
		m.corruptNext = false
		m.spi.odata = append([]byte(nil), m.spi.odata...)
		m.spi.odata[len(m.spi.odata)-1] ^= 0xFF
	}
	m.spi.state = stateSendInitByte
	return pad([]byte{0}, m.spi.initByte, len(data)), nil
}

// Process runs one request frame through the L2 layer and returns the
// response frame, bypassing L1.
func (m *Model) Process(req []byte) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, resend := m.process(req)
	if resend {
		return append([]byte(nil), m.spi.responses.latest...)
	}
	m.spi.responses.latest = resp
	return resp
}

// PowerOn switches the model on.
func (m *Model) PowerOn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger.Info().Msg("power on")
	m.state.Powered = true
}

// PowerOff switches the model off, dropping any session and pending output.
func (m *Model) PowerOff() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger.Info().Msg("power off")
	m.powerOff()
	m.state.Powered = false
}

// Reset restores the model to its freshly provisioned state.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger.Info().Msg("reset")
	m.powerOff()
	m.spi.busyIdx = 0
	m.spi.forceBusy = 0
	m.spi.csnLow = false
	m.corruptNext = false
	m.state = State{Powered: true, Resets: m.state.Resets + 1}
}

func (m *Model) powerOff() {
	m.spi.reset()
	m.state.Sleeping = false
	m.state.Sleep = 0
}

// State returns a snapshot of the model state.
func (m *Model) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	s.SPIState = m.spi.state.String()
	s.CSNLow = m.spi.csnLow
	s.Pending = len(m.spi.odata) > 0 || !m.spi.responses.empty()
	return s
}

// InjectBusy makes the next n polls see a busy chip.
func (m *Model) InjectBusy(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spi.forceBusy = n
}

// InjectCRCError corrupts the CRC of the next response sent over SPI.
func (m *Model) InjectCRCError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corruptNext = true
}
