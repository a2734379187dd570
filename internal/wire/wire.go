// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the buffer protocol spoken between a remote target
// client and the model server: [tag u8][length u16 LE][payload].
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Tag identifies a buffer's operation.
type Tag byte

// Bus operation tags. A reply echoes the request tag.
const (
	TagCSNLow      Tag = 0x01
	TagCSNHigh     Tag = 0x02
	TagSPISend     Tag = 0x03
	TagPowerOn     Tag = 0x04
	TagPowerOff    Tag = 0x05
	TagWait        Tag = 0x06
	TagResetTarget Tag = 0x10
)

// Error reply tags
const (
	// TagException reports that the target failed while executing the
	// operation. The server resets the target afterwards.
	TagException Tag = 0xF0
	// TagInvalid reports an unknown tag.
	TagInvalid Tag = 0xFD
	// TagUnsupported reports a known tag the server does not implement.
	TagUnsupported Tag = 0xFE
)

var tagNames = map[Tag]string{
	TagCSNLow:      "SPI_DRIVE_CSN_LOW",
	TagCSNHigh:     "SPI_DRIVE_CSN_HIGH",
	TagSPISend:     "SPI_SEND",
	TagPowerOn:     "POWER_ON",
	TagPowerOff:    "POWER_OFF",
	TagWait:        "WAIT",
	TagResetTarget: "RESET_TARGET",
	TagException:   "EXCEPTION",
	TagInvalid:     "INVALID",
	TagUnsupported: "UNSUPPORTED",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TAG(0x%02X)", byte(t))
}

// Known reports whether t is part of the protocol.
func (t Tag) Known() bool {
	_, ok := tagNames[t]
	return ok
}

// IsError reports whether t is one of the error reply tags.
func (t Tag) IsError() bool {
	return t == TagException || t == TagInvalid || t == TagUnsupported
}

// Buffer sizes
const (
	HeaderSize     = 3
	MaxPayloadSize = 0xFFFF
)

// ErrPayloadTooLarge is returned when a payload does not fit the length field.
var ErrPayloadTooLarge = errors.New("wire: payload exceeds 65535 bytes")

// Buffer is one protocol unit.
type Buffer struct {
	Payload []byte
	Tag     Tag
}

func (b Buffer) String() string {
	return fmt.Sprintf("%s[%d]", b.Tag, len(b.Payload))
}

// AppendBinary appends the encoded buffer to dst.
func (b Buffer) AppendBinary(dst []byte) ([]byte, error) {
	if len(b.Payload) > MaxPayloadSize {
		return dst, ErrPayloadTooLarge
	}
	dst = append(dst, byte(b.Tag))
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(b.Payload))) //nolint:gosec // bounded above
	return append(dst, b.Payload...), nil
}

// MarshalBinary encodes the buffer.
func (b Buffer) MarshalBinary() ([]byte, error) {
	return b.AppendBinary(make([]byte, 0, HeaderSize+len(b.Payload)))
}

// Write encodes b to w in a single write.
func Write(w io.Writer, b Buffer) error {
	data, err := b.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", b.Tag, err)
	}
	return nil
}

// Read decodes one buffer from r, reassembling fragmented reads. It returns
// io.EOF only when r ends cleanly between buffers.
func Read(r io.Reader) (Buffer, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF { //nolint:errorlint // ReadFull returns io.EOF unwrapped
			return Buffer{}, io.EOF
		}
		return Buffer{}, fmt.Errorf("read header: %w", err)
	}

	b := Buffer{Tag: Tag(hdr[0])}
	n := int(binary.LittleEndian.Uint16(hdr[1:]))
	if n == 0 {
		return b, nil
	}
	b.Payload = make([]byte, n)
	if _, err := io.ReadFull(r, b.Payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Buffer{}, fmt.Errorf("read %s payload: %w", b.Tag, err)
	}
	return b, nil
}

// EncodeWait encodes a WAIT duration as microseconds, 4 bytes little endian.
// Durations beyond the 32-bit range saturate.
func EncodeWait(d time.Duration) []byte {
	us := max(d.Microseconds(), 0)
	us = min(us, int64(^uint32(0)))
	return binary.LittleEndian.AppendUint32(nil, uint32(us)) //nolint:gosec // clamped above
}

// DecodeWait decodes a little-endian microsecond count of up to 8 bytes.
func DecodeWait(p []byte) (time.Duration, error) {
	if len(p) > 8 {
		return 0, fmt.Errorf("wait payload of %d bytes", len(p))
	}
	var buf [8]byte
	copy(buf[:], p)
	us := binary.LittleEndian.Uint64(buf[:])
	if us > uint64(time.Duration(1<<63-1)/time.Microsecond) {
		return 0, fmt.Errorf("wait of %d us overflows", us)
	}
	return time.Duration(us) * time.Microsecond, nil //nolint:gosec // bounded above
}
