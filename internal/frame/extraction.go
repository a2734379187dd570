// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame errors. Callers in the root package translate these into the
// classified protocol errors.
var (
	ErrFrameTooShort   = errors.New("frame: shorter than header and CRC")
	ErrPayloadTooLarge = errors.New("frame: payload exceeds maximum length")
)

// CRCError reports a mismatch between the trailing CRC and the CRC
// recomputed over the preceding bytes.
type CRCError struct {
	Computed uint16
	Received uint16
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("frame: CRC mismatch (computed 0x%04X, received 0x%04X)", e.Computed, e.Received)
}

// LengthError reports a LEN field that disagrees with the bytes present.
type LengthError struct {
	Declared int
	Actual   int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("frame: length field %d does not match payload of %d bytes", e.Declared, e.Actual)
}

// Raw is a split but otherwise uninterpreted frame.
type Raw struct {
	Payload []byte
	CRC     uint16
	Header  byte
	Length  byte
}

// Append serializes header, computed length, payload and CRC onto dst.
func Append(dst []byte, header byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return dst, ErrPayloadTooLarge
	}
	start := len(dst)
	dst = append(dst, header, byte(len(payload)))
	dst = append(dst, payload...)
	return binary.LittleEndian.AppendUint16(dst, CalculateCRC(dst[start:])), nil
}

// Build is Append onto a fresh slice sized for the frame.
func Build(header byte, payload []byte) ([]byte, error) {
	return Append(make([]byte, 0, MinFrameSize+len(payload)), header, payload)
}

// Parse splits buf into its parts. Checks run in a fixed order: minimum
// size, CRC, then length field. The returned Raw carries whatever could be
// read even when an error is returned.
func Parse(buf []byte) (Raw, error) {
	if len(buf) < MinFrameSize {
		var raw Raw
		if len(buf) > 0 {
			raw.Header = buf[0]
		}
		return raw, ErrFrameTooShort
	}

	body := len(buf) - TrailerSize
	raw := Raw{
		Header:  buf[0],
		Length:  buf[1],
		Payload: buf[HeaderSize:body],
		CRC:     binary.LittleEndian.Uint16(buf[body:]),
	}

	if err := ValidateCRC(buf); err != nil {
		return raw, err
	}
	if err := ValidateLength(buf); err != nil {
		return raw, err
	}
	return raw, nil
}
