// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/ZaparooProject/go-tvl"
	"github.com/ZaparooProject/go-tvl/internal/frame"
	"github.com/ZaparooProject/go-tvl/internal/model"
	"github.com/ZaparooProject/go-tvl/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultFactory() (*model.Model, error) {
	return model.New(model.DefaultConfig())
}

func newServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(defaultFactory)
	require.NoError(t, err)
	return s
}

func chipIDRequest(t *testing.T) []byte {
	t.Helper()
	req, err := tvl.EncodeRequest(tvl.GetInfoRequest(tvl.ObjectChipID, 0))
	require.NoError(t, err)
	return req
}

func TestHandle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     wire.Buffer
		wantTag wire.Tag
		wantLen int
	}{
		{name: "csn low", req: wire.Buffer{Tag: wire.TagCSNLow}, wantTag: wire.TagCSNLow},
		{name: "csn high", req: wire.Buffer{Tag: wire.TagCSNHigh}, wantTag: wire.TagCSNHigh},
		{name: "send while idle", req: wire.Buffer{Tag: wire.TagSPISend, Payload: []byte{0xAA, 0}}, wantTag: wire.TagSPISend},
		{name: "power on", req: wire.Buffer{Tag: wire.TagPowerOn}, wantTag: wire.TagPowerOn},
		{name: "power off", req: wire.Buffer{Tag: wire.TagPowerOff}, wantTag: wire.TagPowerOff},
		{name: "wait", req: wire.Buffer{Tag: wire.TagWait, Payload: wire.EncodeWait(time.Millisecond)}, wantTag: wire.TagWait},
		{name: "unknown tag", req: wire.Buffer{Tag: 0x42}, wantTag: wire.TagInvalid},
		{name: "error tag as request", req: wire.Buffer{Tag: wire.TagException}, wantTag: wire.TagUnsupported},
		{name: "malformed wait", req: wire.Buffer{Tag: wire.TagWait, Payload: make([]byte, 9)}, wantTag: wire.TagException},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newServer(t)
			reply := s.Handle(tt.req)
			assert.Equal(t, tt.wantTag, reply.Tag)
			assert.Len(t, reply.Payload, tt.wantLen)
		})
	}
}

func TestHandle_SPIExchange(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	req := chipIDRequest(t)

	assert.Equal(t, wire.TagCSNLow, s.Handle(wire.Buffer{Tag: wire.TagCSNLow}).Tag)
	reply := s.Handle(wire.Buffer{Tag: wire.TagSPISend, Payload: req})
	assert.Equal(t, wire.TagSPISend, reply.Tag)
	assert.Equal(t, make([]byte, len(req)), reply.Payload)
	s.Handle(wire.Buffer{Tag: wire.TagCSNHigh})

	s.Handle(wire.Buffer{Tag: wire.TagCSNLow})
	reply = s.Handle(wire.Buffer{Tag: wire.TagSPISend, Payload: []byte{frame.GetResp, 0, 0}})
	assert.Equal(t, []byte{frame.ChipReady, byte(tvl.StatusReqOK), 0x07}, reply.Payload)
}

func TestHandle_ResetTarget(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	before := s.Model()
	before.InjectBusy(3)

	reply := s.Handle(wire.Buffer{Tag: wire.TagResetTarget})
	assert.Equal(t, wire.TagResetTarget, reply.Tag)
	assert.NotSame(t, before, s.Model())
}

func TestHandle_ExceptionResetsModel(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	req := chipIDRequest(t)
	s.Handle(wire.Buffer{Tag: wire.TagCSNLow})
	s.Handle(wire.Buffer{Tag: wire.TagSPISend, Payload: req})
	s.Handle(wire.Buffer{Tag: wire.TagCSNHigh})
	before := s.Model()

	// a second request while the first response is unread
	s.Handle(wire.Buffer{Tag: wire.TagCSNLow})
	reply := s.Handle(wire.Buffer{Tag: wire.TagSPISend, Payload: req})
	assert.Equal(t, wire.TagException, reply.Tag)
	assert.NotSame(t, before, s.Model())
	assert.False(t, s.Model().State().Pending)
}

func TestHandle_SendWhilePoweredOff(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	before := s.Model()
	assert.Equal(t, wire.TagPowerOff, s.Handle(wire.Buffer{Tag: wire.TagPowerOff}).Tag)

	assert.Equal(t, wire.TagCSNLow, s.Handle(wire.Buffer{Tag: wire.TagCSNLow}).Tag)
	reply := s.Handle(wire.Buffer{Tag: wire.TagSPISend, Payload: []byte{frame.GetResp, 0, 0, 0, 0}})
	assert.Equal(t, wire.TagSPISend, reply.Tag)
	assert.Equal(t, bytes.Repeat([]byte{frame.NoResp}, 5), reply.Payload)
	assert.Equal(t, wire.TagCSNHigh, s.Handle(wire.Buffer{Tag: wire.TagCSNHigh}).Tag)

	assert.Same(t, before, s.Model())
	assert.False(t, s.Model().State().Powered)
	assert.Zero(t, s.Model().State().Resets)
}

func TestHandle_PanicBecomesException(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	s.mu.Lock()
	s.model = nil
	s.mu.Unlock()

	reply := s.Handle(wire.Buffer{Tag: wire.TagCSNLow})
	assert.Equal(t, wire.TagException, reply.Tag)
	assert.NotNil(t, s.Model())
}

func TestServe_TCP(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	ln, err := ListenTCP("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx, ln)
	}()

	// connections are served one after the other
	for range 2 {
		conn, err := net.Dial("tcp", ln.Addr().String())
		require.NoError(t, err)
		require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

		require.NoError(t, wire.Write(conn, wire.Buffer{Tag: wire.TagResetTarget}))
		reply, err := wire.Read(conn)
		require.NoError(t, err)
		assert.Equal(t, wire.TagResetTarget, reply.Tag)

		require.NoError(t, wire.Write(conn, wire.Buffer{Tag: wire.TagSPISend, Payload: []byte{1, 2, 3}}))
		reply, err = wire.Read(conn)
		require.NoError(t, err)
		assert.Equal(t, wire.TagSPISend, reply.Tag)
		assert.Empty(t, reply.Payload, "chip select is high")

		require.NoError(t, conn.Close())
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNew_FactoryError(t *testing.T) {
	t.Parallel()

	_, err := New(func() (*model.Model, error) {
		return nil, assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
}
