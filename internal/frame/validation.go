// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package frame

import "encoding/binary"

// ValidateCRC recomputes the CRC over everything but the trailing two
// bytes and compares it with the little-endian trailer.
func ValidateCRC(buf []byte) error {
	if len(buf) < MinFrameSize {
		return ErrFrameTooShort
	}
	body := len(buf) - TrailerSize
	computed := CalculateCRC(buf[:body])
	received := binary.LittleEndian.Uint16(buf[body:])
	if computed != received {
		return &CRCError{Computed: computed, Received: received}
	}
	return nil
}

// ValidateLength checks the LEN byte against the payload actually present.
func ValidateLength(buf []byte) error {
	if len(buf) < MinFrameSize {
		return ErrFrameTooShort
	}
	actual := len(buf) - MinFrameSize
	if declared := int(buf[1]); declared != actual {
		return &LengthError{Declared: declared, Actual: actual}
	}
	return nil
}

// ExpectedSize returns the full frame size announced by a header, or 0 if
// the header is incomplete.
func ExpectedSize(header []byte) int {
	if len(header) < HeaderSize {
		return 0
	}
	return MinFrameSize + int(header[1])
}
