// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

// Package l1 implements the host side of the SPI link layer: the chip-select
// framing and GET_RESP polling that every physical or simulated bus shares.
package l1

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-tvl"
	"github.com/ZaparooProject/go-tvl/internal/frame"
)

// Bus is the raw SPI contract. Send is full duplex: it returns as many bytes
// as it was given, and must not keep data after returning.
type Bus interface {
	CSNLow() error
	CSNHigh() error
	Send(data []byte) ([]byte, error)
	Wait(d time.Duration) error
}

// PollConfig tunes how the host waits for a response.
type PollConfig struct {
	// Wait is slept once after the request, before the first poll.
	Wait time.Duration
	// RetryWait is slept between polls.
	RetryWait time.Duration
	// MaxPolls bounds the number of GET_RESP transactions.
	MaxPolls int
	// PaddingLen is the number of bytes clocked after GET_RESP in each poll.
	// At least two are needed to read STATUS and LEN.
	PaddingLen int
}

// Default polling parameters.
const (
	DefaultMaxPolls   = 10
	DefaultPaddingLen = 4
	MinPaddingLen     = 2
)

// DefaultPollConfig returns the polling parameters used when none are given.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		MaxPolls:   DefaultMaxPolls,
		PaddingLen: DefaultPaddingLen,
	}
}

// Validate reports configurations the exchange cannot run with.
func (c PollConfig) Validate() error {
	if c.MaxPolls < 1 {
		return fmt.Errorf("max polls must be at least 1, got %d", c.MaxPolls)
	}
	if c.PaddingLen < MinPaddingLen || c.PaddingLen > frame.MaxFrameSize {
		return fmt.Errorf("padding length %d outside [%d, %d]", c.PaddingLen, MinPaddingLen, frame.MaxFrameSize)
	}
	if c.Wait < 0 || c.RetryWait < 0 {
		return fmt.Errorf("negative wait")
	}
	return nil
}

// Exchange sends one request frame and polls for the response frame. The
// trace, if not nil, records every transaction on the bus. port names the bus
// in errors.
func Exchange(ctx context.Context, bus Bus, cfg PollConfig, req []byte, port string, trace *tvl.TraceBuffer) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, tvl.NewTransportError("exchange", port, err, tvl.ErrorTypePermanent)
	}
	rec := recorder{trace: trace}

	if err := send(bus, req, &rec, port); err != nil {
		return nil, err
	}

	if cfg.Wait > 0 {
		if err := bus.Wait(cfg.Wait); err != nil {
			return nil, tvl.NewTransportWriteError("wait", port, err)
		}
	}

	poll := frame.GetBuffer(1 + cfg.PaddingLen)
	defer frame.PutBuffer(poll)
	poll[0] = frame.GetResp
	for attempt := 1; attempt <= cfg.MaxPolls; attempt++ {
		if err := ctx.Err(); err != nil {
			rec.timeout("context done while polling")
			return nil, tvl.NewTimeoutError("exchange", port)
		}
		if attempt > 1 && cfg.RetryWait > 0 {
			if err := bus.Wait(cfg.RetryWait); err != nil {
				return nil, tvl.NewTransportWriteError("wait", port, err)
			}
		}

		if err := bus.CSNLow(); err != nil {
			return nil, tvl.NewTransportWriteError("csn low", port, err)
		}
		recvd, err := bus.Send(poll)
		if err != nil {
			_ = bus.CSNHigh()
			return nil, tvl.NewTransportReadError("poll", port, err)
		}
		rec.tx(poll, fmt.Sprintf("GET_RESP #%d", attempt))
		rec.rx(recvd, "")
		if len(recvd) != len(poll) {
			_ = bus.CSNHigh()
			return nil, tvl.NewTransportReadError("poll", port,
				fmt.Errorf("bus returned %d bytes for %d sent", len(recvd), len(poll)))
		}

		// recvd[0] is CHIP_STATUS, recvd[1] the frame's STATUS byte
		if recvd[1] == frame.NoResp {
			if err := bus.CSNHigh(); err != nil {
				return nil, tvl.NewTransportWriteError("csn high", port, err)
			}
			continue
		}

		resp, err := fetch(bus, recvd[1:], &rec, port)
		if cerr := bus.CSNHigh(); err == nil && cerr != nil {
			err = tvl.NewTransportWriteError("csn high", port, cerr)
		}
		if err != nil {
			return nil, err
		}
		return resp, nil
	}

	rec.timeout(fmt.Sprintf("no response after %d polls", cfg.MaxPolls))
	return nil, tvl.NewTargetNotReadyError("exchange", port)
}

// send clocks a request frame out in its own chip-select transaction.
func send(bus Bus, req []byte, rec *recorder, port string) error {
	if err := bus.CSNLow(); err != nil {
		return tvl.NewTransportWriteError("csn low", port, err)
	}
	_, err := bus.Send(req)
	rec.tx(req, "request")
	if cerr := bus.CSNHigh(); err == nil && cerr != nil {
		return tvl.NewTransportWriteError("csn high", port, cerr)
	}
	if err != nil {
		return tvl.NewTransportWriteError("send", port, err)
	}
	return nil
}

// fetch completes a response whose first bytes arrived with the poll.
func fetch(bus Bus, head []byte, rec *recorder, port string) ([]byte, error) {
	total := frame.ExpectedSize(head)
	if len(head) >= total {
		return append([]byte(nil), head[:total]...), nil
	}

	rest, err := bus.Send(make([]byte, total-len(head)))
	if err != nil {
		return nil, tvl.NewTransportReadError("fetch", port, err)
	}
	rec.rx(rest, "response tail")
	if len(rest) != total-len(head) {
		return nil, tvl.NewTransportReadError("fetch", port,
			fmt.Errorf("bus returned %d bytes for %d sent", len(rest), total-len(head)))
	}

	resp := make([]byte, 0, total)
	resp = append(resp, head...)
	return append(resp, rest...), nil
}

type recorder struct {
	trace *tvl.TraceBuffer
}

func (r *recorder) tx(data []byte, note string) {
	if r.trace != nil {
		r.trace.RecordTX(data, note)
	}
}

func (r *recorder) rx(data []byte, note string) {
	if r.trace != nil {
		r.trace.RecordRX(data, note)
	}
}

func (r *recorder) timeout(note string) {
	if r.trace != nil {
		r.trace.RecordTimeout(note)
	}
}
