// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package tvl

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-tvl/internal/frame"
)

// Encode resolves every auto field of req in a single pass and serializes it
// as [ID][LEN][payload][CRC]. Encoding the same request twice yields the same
// bytes.
func Encode(req Request) (*EncodedRequest, error) {
	spec, err := lookup(req.ID)
	if err != nil {
		return nil, err
	}
	for name := range req.values {
		if _, ok := spec.RequestField(name); !ok {
			return nil, &EncodingError{Message: spec.Name, Field: name, Reason: "not part of the request layout"}
		}
	}

	resolved := make(map[string]Value, len(spec.Request))
	payload := make([]byte, 0, frame.MaxPayloadSize)
	for _, f := range spec.Request {
		v, err := resolveField(spec.Name, f, req.values[f.Name])
		if err != nil {
			return nil, err
		}
		resolved[f.Name] = v
		payload = appendField(payload, f, v)
	}

	buf, err := frame.Build(byte(req.ID), payload)
	if err != nil {
		return nil, &EncodingError{
			Message: spec.Name,
			Reason:  fmt.Sprintf("payload of %d bytes exceeds %d", len(payload), frame.MaxPayloadSize),
		}
	}
	return &EncodedRequest{
		Request: Request{ID: req.ID, values: resolved},
		Frame:   buf,
		Length:  len(payload),
		CRC:     binary.LittleEndian.Uint16(buf[len(buf)-frame.TrailerSize:]),
	}, nil
}

// EncodeRequest serializes req into a wire frame.
func EncodeRequest(req Request) ([]byte, error) {
	enc, err := Encode(req)
	if err != nil {
		return nil, err
	}
	return enc.Frame, nil
}

// DecodeResponse parses a response frame received for a request of type id.
// Checks run in order: frame size, CRC, length field, catalog membership and,
// for success statuses only, the response layout. Responses with an error
// status keep their raw payload and carry no fields.
func DecodeResponse(buf []byte, id RequestID) (*Response, error) {
	raw, err := parseFrame(buf, "response")
	if err != nil {
		return nil, err
	}
	spec, err := lookup(id)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Request: id,
		Status:  Status(raw.Header),
		Length:  int(raw.Length),
		Payload: append([]byte{}, raw.Payload...),
		CRC:     raw.CRC,
	}
	if !resp.Status.IsSuccess() {
		return resp, nil
	}
	resp.fields, err = decodeLayout(spec.Response, resp.Payload)
	if err != nil {
		return nil, &FramingError{Err: err, Message: spec.Name + " response", Size: len(buf)}
	}
	return resp, nil
}

// DecodeRequest parses a request frame, as a target does.
func DecodeRequest(buf []byte) (Request, error) {
	raw, err := parseFrame(buf, "request")
	if err != nil {
		return Request{}, err
	}
	spec, err := lookup(RequestID(raw.Header))
	if err != nil {
		return Request{}, err
	}
	values, err := decodeLayout(spec.Request, raw.Payload)
	if err != nil {
		return Request{}, &FramingError{Err: err, Message: spec.Name + " request", Size: len(buf)}
	}
	return Request{ID: spec.ID, values: values}, nil
}

// EncodeResponse builds a response frame as a target does. Success statuses
// lay out fields according to the response layout of id; error statuses
// carry an empty payload.
func EncodeResponse(id RequestID, status Status, fields map[string]Value) ([]byte, error) {
	if !status.IsSuccess() {
		return frame.Build(byte(status), nil)
	}
	spec, err := lookup(id)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, frame.MaxPayloadSize)
	for _, f := range spec.Response {
		v, err := resolveField(spec.Name, f, fields[f.Name])
		if err != nil {
			return nil, err
		}
		payload = appendField(payload, f, v)
	}
	buf, err := frame.Build(byte(status), payload)
	if err != nil {
		return nil, &EncodingError{Message: spec.Name, Reason: err.Error()}
	}
	return buf, nil
}

func parseFrame(buf []byte, what string) (frame.Raw, error) {
	raw, err := frame.Parse(buf)
	if err == nil {
		return raw, nil
	}

	var (
		crcErr *frame.CRCError
		lenErr *frame.LengthError
	)
	switch {
	case errors.As(err, &crcErr):
		return raw, &IntegrityError{Computed: crcErr.Computed, Received: crcErr.Received}
	case errors.As(err, &lenErr):
		return raw, &LengthMismatchError{Declared: lenErr.Declared, Actual: lenErr.Actual}
	default:
		return raw, &FramingError{Err: err, Message: what, Size: len(buf)}
	}
}

func resolveField(msg string, f FieldSpec, v Value) (Value, error) {
	fail := func(reason string) (Value, error) {
		return Value{}, &EncodingError{Message: msg, Field: f.Name, Reason: reason}
	}

	if !v.IsSet() || v.IsAuto() {
		switch {
		case !f.AutoDefault && !v.IsSet():
			return fail("missing value")
		case !f.AutoDefault:
			return fail("field has no automatic value")
		case f.Kind == KindBytes:
			return Bytes(make([]byte, f.Min)), nil
		default:
			return Uint(0), nil
		}
	}

	if f.Kind == KindBytes {
		if !v.IsBytes() {
			return fail("expected a byte array")
		}
		if n := len(v.data); n < f.Min || n > f.Max {
			if f.Min == f.Max {
				return fail(fmt.Sprintf("array of %d bytes, want %d", n, f.Min))
			}
			return fail(fmt.Sprintf("array of %d bytes outside [%d, %d]", n, f.Min, f.Max))
		}
		return v, nil
	}

	if v.IsBytes() {
		return fail("expected a " + f.Kind.String() + " scalar")
	}
	if v.num > f.Kind.maxValue() {
		return fail(fmt.Sprintf("value %d does not fit in %s", v.num, f.Kind))
	}
	return v, nil
}

func decodeLayout(layout []FieldSpec, payload []byte) (map[string]Value, error) {
	values := make(map[string]Value, len(layout))
	off := 0
	for _, f := range layout {
		left := len(payload) - off
		if f.Kind != KindBytes {
			w := f.Kind.Width()
			if left < w {
				return nil, fmt.Errorf("%w: %s needs %d bytes, %d left", ErrLayoutMismatch, f.Name, w, left)
			}
			values[f.Name] = Uint(readField(f.Kind, payload[off:]))
			off += w
			continue
		}

		n := f.Min
		if !f.Fixed() {
			n = left
		}
		if n > left || n < f.Min || n > f.Max {
			return nil, fmt.Errorf("%w: %s has %d bytes, want [%d, %d]", ErrLayoutMismatch, f.Name, left, f.Min, f.Max)
		}
		values[f.Name] = Bytes(payload[off : off+n])
		off += n
	}
	if off != len(payload) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrLayoutMismatch, len(payload)-off)
	}
	return values, nil
}
