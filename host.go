// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package tvl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ZaparooProject/go-tvl/internal/syncutil"
)

// HostConfig contains configuration options for the Host
type HostConfig struct {
	// Timeout bounds each exchange, on top of any deadline in the caller's
	// context. Zero disables it.
	Timeout time.Duration
	// MaxBlocks bounds chunked retrievals.
	MaxBlocks int
}

// DefaultHostConfig returns default host configuration
func DefaultHostConfig() *HostConfig {
	return &HostConfig{
		Timeout:   DefaultExchangeTimeout,
		MaxBlocks: DefaultMaxBlocks,
	}
}

// Option configures a Host.
type Option func(*Host) error

// WithHostConfig replaces the whole host configuration.
func WithHostConfig(config *HostConfig) Option {
	return func(h *Host) error {
		if config == nil {
			return errors.New("host config is nil")
		}
		cfg := *config
		h.config = &cfg
		return WithMaxBlocks(cfg.MaxBlocks)(h)
	}
}

// WithMaxBlocks bounds chunked retrievals to n blocks. The block index is a
// single byte, so n must be in [1, 256].
func WithMaxBlocks(n int) Option {
	return func(h *Host) error {
		if n < 1 || n > 256 {
			return fmt.Errorf("max blocks %d outside [1, 256]", n)
		}
		h.config.MaxBlocks = n
		return nil
	}
}

// WithTimeout sets the per-exchange timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(h *Host) error {
		if timeout < 0 {
			return fmt.Errorf("negative timeout %v", timeout)
		}
		h.config.Timeout = timeout
		return nil
	}
}

// WithLogger routes exchange logging to l instead of the package logger.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Host) error {
		h.logger = &l
		return nil
	}
}

// Host drives request/response exchanges with a single Target: it encodes
// requests, hands the frame to the target, decodes and validates the reply
// and reassembles chunked objects.
//
// Thread Safety: one exchange (a chunked retrieval counts as one) may be in
// flight per Host. A call made while another is in progress fails at once
// with ErrBusy; it never waits and never interleaves bytes on the target.
// The Host never retries; wrap the target in a TargetWithRetry to opt in.
type Host struct {
	target  Target
	config  *HostConfig
	logger  *zerolog.Logger
	session uuid.UUID
	gate    syncutil.Gate

	// guarded by gate
	lastRequest RequestID
	hasLast     bool
}

// New creates a Host driving target.
func New(target Target, opts ...Option) (*Host, error) {
	if target == nil {
		return nil, ErrNoTarget
	}
	host := &Host{
		target:  target,
		config:  DefaultHostConfig(),
		session: uuid.New(),
	}

	for _, opt := range opts {
		if err := opt(host); err != nil {
			return nil, err
		}
	}

	return host, nil
}

// SessionID identifies this Host in log output.
func (h *Host) SessionID() uuid.UUID {
	return h.session
}

// Target returns the target the host drives.
func (h *Host) Target() Target {
	return h.target
}

// Config returns a copy of the host configuration.
func (h *Host) Config() HostConfig {
	return *h.config
}

func (h *Host) log() zerolog.Logger {
	base := Logger()
	if h.logger != nil {
		base = *h.logger
	}
	return base.With().Str("session", h.session.String()).Logger()
}

// SendRequest performs one exchange: encode, transfer, decode and status
// check. A response with a non-success status is reported as a *StatusError
// without interpreting its payload. Transport errors are returned unchanged.
//
// A RESEND response is decoded against the layout of the previous request,
// since the target replays its latest response.
func (h *Host) SendRequest(ctx context.Context, req Request) (*Response, error) {
	if !h.gate.TryEnter() {
		return nil, ErrBusy
	}
	defer h.gate.Leave()

	return h.exchange(ctx, req)
}

func (h *Host) exchange(ctx context.Context, req Request) (*Response, error) {
	log := h.log()

	enc, err := Encode(req)
	if err != nil {
		log.Debug().Err(err).Stringer("request", req).Msg("encode failed")
		return nil, err
	}

	layout := req.ID
	if req.ID == IDResend && h.hasLast {
		layout = h.lastRequest
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	log.Debug().Stringer("request", enc).Int("bytes", len(enc.Frame)).Msg("transfer")
	start := time.Now()
	raw, err := h.target.Transfer(ctx, enc.Frame)
	if err != nil {
		log.Debug().Err(err).Stringer("id", req.ID).Dur("elapsed", time.Since(start)).Msg("transfer failed")
		return nil, err
	}
	if req.ID != IDResend {
		h.lastRequest, h.hasLast = req.ID, true
	}

	resp, err := DecodeResponse(raw, layout)
	if err != nil {
		log.Debug().Err(err).Stringer("id", req.ID).Hex("frame", raw).Msg("decode failed")
		return nil, err
	}
	log.Debug().Stringer("response", resp).Dur("elapsed", time.Since(start)).Msg("received")

	if !resp.OK() {
		return nil, &StatusError{Request: req.ID, Status: resp.Status}
	}
	return resp, nil
}

// ReadChunked retrieves an object spread over several blocks. build returns
// the request for a block index; indices start at 0 and increase by one. The
// first block shorter than the message's block capacity ends the object. Any
// failure aborts the whole retrieval; exceeding MaxBlocks yields an
// *IncompleteObjectError.
func (h *Host) ReadChunked(ctx context.Context, build func(block uint8) Request) ([]byte, error) {
	if !h.gate.TryEnter() {
		return nil, ErrBusy
	}
	defer h.gate.Leave()

	return h.readChunked(ctx, build)
}

func (h *Host) readChunked(ctx context.Context, build func(block uint8) Request) ([]byte, error) {
	first := build(0)
	spec, err := lookup(first.ID)
	if err != nil {
		return nil, err
	}
	if !spec.Chunked || len(spec.Response) != 1 {
		return nil, fmt.Errorf("%w: %s", ErrNotChunked, spec.Name)
	}
	field := spec.Response[0].Name

	var object []byte
	for block := 0; block < h.config.MaxBlocks; block++ {
		req := first
		if block > 0 {
			req = build(uint8(block))
		}
		resp, err := h.exchange(ctx, req)
		if err != nil {
			return nil, err
		}
		data := resp.Bytes(field)
		object = append(object, data...)
		if len(data) < spec.BlockCapacity {
			return object, nil
		}
	}

	objectID, _ := first.Field("object_id")
	return nil, &IncompleteObjectError{
		ObjectID:  ObjectID(objectID.Num()),
		MaxBlocks: h.config.MaxBlocks,
		Received:  len(object),
	}
}

// GetObject reads a whole GET_INFO object. Chunked objects are read block
// by block; every other object is a single exchange for block 0.
func (h *Host) GetObject(ctx context.Context, object ObjectID) ([]byte, error) {
	if !object.Chunked() {
		resp, err := h.SendRequest(ctx, GetInfoRequest(object, 0))
		if err != nil {
			return nil, err
		}
		return resp.Bytes("object"), nil
	}
	return h.ReadChunked(ctx, func(block uint8) Request {
		return GetInfoRequest(object, block)
	})
}

// ChipID reads the chip identification object.
func (h *Host) ChipID(ctx context.Context) ([]byte, error) {
	return h.GetObject(ctx, ObjectChipID)
}

// Certificate reads the X.509 certificate store.
func (h *Host) Certificate(ctx context.Context) ([]byte, error) {
	return h.GetObject(ctx, ObjectX509Certificate)
}

// RiscvFirmwareVersion reads the RISC-V firmware version object.
func (h *Host) RiscvFirmwareVersion(ctx context.Context) ([]byte, error) {
	return h.GetObject(ctx, ObjectRiscvFwVersion)
}

// SpectFirmwareVersion reads the SPECT firmware version object.
func (h *Host) SpectFirmwareVersion(ctx context.Context) ([]byte, error) {
	return h.GetObject(ctx, ObjectSpectFwVersion)
}

// Resend asks the target to repeat its latest response.
func (h *Host) Resend(ctx context.Context) (*Response, error) {
	return h.SendRequest(ctx, ResendRequest())
}

// Sleep moves the target into the given sleep state.
func (h *Host) Sleep(ctx context.Context, kind SleepKind) error {
	_, err := h.SendRequest(ctx, SleepRequest(kind))
	return err
}

// Startup reboots the target.
func (h *Host) Startup(ctx context.Context, id StartupID) error {
	_, err := h.SendRequest(ctx, StartupRequest(id))
	return err
}

// AbortSession aborts the encrypted session, if any.
func (h *Host) AbortSession(ctx context.Context) error {
	_, err := h.SendRequest(ctx, EncryptedSessionAbtRequest())
	return err
}

// GetLog reads the target's firmware log buffer.
func (h *Host) GetLog(ctx context.Context) ([]byte, error) {
	resp, err := h.SendRequest(ctx, GetLogRequest())
	if err != nil {
		return nil, err
	}
	return resp.Bytes("log_msg"), nil
}
