// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"errors"

	"github.com/ZaparooProject/go-tvl/internal/frame"
)

// ErrResponsePending is returned when a request frame arrives before the
// previous response has been fully read.
var ErrResponsePending = errors.New("model: previous response not fully read")

type spiState int

const (
	stateIdle spiState = iota
	stateFallingEdge
	stateSendResponse
	stateSendNoResp
	stateSendInitByte
)

var spiStateNames = [...]string{"idle", "csn_falling_edge", "send_response", "send_no_resp", "send_init_byte"}

func (s spiState) String() string {
	if int(s) < len(spiStateNames) {
		return spiStateNames[s]
	}
	return "unknown"
}

// spiFSM is the chip side of the L1 layer. The first chunk of every
// chip-select transaction decides whether the host is polling for a response
// or sending a request.
type spiFSM struct {
	responses responseBuffer
	odata     []byte
	busy      []bool
	state     spiState
	busyIdx   int
	forceBusy int
	initByte  byte
	csnLow    bool
}

func (s *spiFSM) reset() {
	s.responses.reset()
	s.odata = nil
	s.state = stateIdle
}

func (s *spiFSM) drive(low bool) {
	switch {
	case low && !s.csnLow:
		s.state = stateFallingEdge
	case !low:
		s.state = stateIdle
	}
	s.csnLow = low
}

// fetch removes up to n bytes of pending output.
func (s *spiFSM) fetch(n int) []byte {
	n = min(n, len(s.odata))
	out := s.odata[:n]
	s.odata = s.odata[n:]
	return out
}

// nextBusy reports whether the next poll should see a busy chip.
func (s *spiFSM) nextBusy() bool {
	if s.forceBusy > 0 {
		s.forceBusy--
		return true
	}
	if len(s.busy) == 0 {
		return false
	}
	b := s.busy[s.busyIdx%len(s.busy)]
	s.busyIdx++
	return b
}

// answerPoll handles a GET_RESP transaction start.
func (s *spiFSM) answerPoll(n int) []byte {
	if s.nextBusy() {
		s.state = stateSendNoResp
		return pad([]byte{0}, frame.NoResp, n)
	}
	if len(s.odata) == 0 && !s.responses.empty() {
		s.odata = s.responses.next()
	}
	if len(s.odata) == 0 {
		s.state = stateSendNoResp
		return pad([]byte{frame.ChipReady}, frame.NoResp, n)
	}
	s.state = stateSendResponse
	out := append([]byte{frame.ChipReady}, s.fetch(n-1)...)
	return pad(out, frame.PaddingByte, n)
}

// stream answers every chunk after the first in a transaction.
func (s *spiFSM) stream(n int) []byte {
	switch s.state {
	case stateSendResponse:
		return pad(append([]byte(nil), s.fetch(n)...), frame.PaddingByte, n)
	case stateSendNoResp:
		return pad(nil, frame.NoResp, n)
	case stateSendInitByte:
		return pad(nil, s.initByte, n)
	default:
		return []byte{}
	}
}

func pad(data []byte, fill byte, n int) []byte {
	for len(data) < n {
		data = append(data, fill)
	}
	return data
}
