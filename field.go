// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package tvl

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Kind is the wire representation of a message field.
type Kind uint8

const (
	// KindU8 is a single byte.
	KindU8 Kind = iota + 1
	// KindU16 is a little-endian 16-bit integer.
	KindU16
	// KindU32 is a little-endian 32-bit integer.
	KindU32
	// KindBytes is a byte array whose length is bounded by FieldSpec.Min and
	// FieldSpec.Max. Only the last field of a layout may vary in length.
	KindBytes
)

// Width returns the encoded size of a scalar kind, or 0 for byte arrays.
func (k Kind) Width() int {
	switch k {
	case KindU8:
		return 1
	case KindU16:
		return 2
	case KindU32:
		return 4
	case KindBytes:
		return 0
	default:
		return 0
	}
}

// maxValue returns the largest value a scalar kind can carry.
func (k Kind) maxValue() uint64 {
	switch k {
	case KindU8:
		return 0xFF
	case KindU16:
		return 0xFFFF
	case KindU32:
		return 0xFFFFFFFF
	case KindBytes:
		return 0
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// FieldSpec describes one payload field of a catalog layout.
type FieldSpec struct {
	Name string
	Kind Kind
	// Min and Max bound the length of a KindBytes field. Min == Max means a
	// fixed-size array.
	Min int
	Max int
	// AutoDefault fields may be left unset or Auto; they resolve to zero.
	AutoDefault bool
}

// Fixed reports whether the field always occupies the same number of bytes.
func (f FieldSpec) Fixed() bool {
	return f.Kind != KindBytes || f.Min == f.Max
}

// MinSize is the smallest number of payload bytes the field can occupy.
func (f FieldSpec) MinSize() int {
	if f.Kind == KindBytes {
		return f.Min
	}
	return f.Kind.Width()
}

// MaxSize is the largest number of payload bytes the field can occupy.
func (f FieldSpec) MaxSize() int {
	if f.Kind == KindBytes {
		return f.Max
	}
	return f.Kind.Width()
}

func u8(name string) FieldSpec  { return FieldSpec{Name: name, Kind: KindU8} }
func u16(name string) FieldSpec { return FieldSpec{Name: name, Kind: KindU16} }
func u32(name string) FieldSpec { return FieldSpec{Name: name, Kind: KindU32} }

func array(name string, size int) FieldSpec {
	return FieldSpec{Name: name, Kind: KindBytes, Min: size, Max: size}
}

func varArray(name string, minLen, maxLen int) FieldSpec {
	return FieldSpec{Name: name, Kind: KindBytes, Min: minLen, Max: maxLen}
}

type valueState uint8

const (
	valueUnset valueState = iota
	valueAuto
	valueNum
	valueBytes
)

// Value is an explicitly tagged field value: either a caller-fixed number or
// byte array, or Auto. The zero Value is unset.
type Value struct {
	data  []byte
	num   uint64
	state valueState
}

// Auto returns a value the encoder resolves on its own.
func Auto() Value {
	return Value{state: valueAuto}
}

// Uint returns a fixed scalar value.
func Uint(v uint64) Value {
	return Value{state: valueNum, num: v}
}

// Bytes returns a fixed byte-array value. The slice is copied.
func Bytes(b []byte) Value {
	return Value{state: valueBytes, data: append([]byte{}, b...)}
}

// IsAuto reports whether v is Auto.
func (v Value) IsAuto() bool { return v.state == valueAuto }

// IsSet reports whether v holds anything, Auto included.
func (v Value) IsSet() bool { return v.state != valueUnset }

// IsBytes reports whether v holds a byte array.
func (v Value) IsBytes() bool { return v.state == valueBytes }

// Num returns the scalar held by v, or 0.
func (v Value) Num() uint64 {
	if v.state != valueNum {
		return 0
	}
	return v.num
}

// Data returns a copy of the byte array held by v, or nil.
func (v Value) Data() []byte {
	if v.state != valueBytes {
		return nil
	}
	return append([]byte{}, v.data...)
}

// Equal reports whether two values hold the same tag and content.
func (v Value) Equal(o Value) bool {
	if v.state != o.state {
		return false
	}
	switch v.state {
	case valueNum:
		return v.num == o.num
	case valueBytes:
		return string(v.data) == string(o.data)
	case valueUnset, valueAuto:
		return true
	default:
		return false
	}
}

// format renders v for display in the context of its field kind.
func (v Value) format(k Kind) string {
	switch v.state {
	case valueUnset:
		return "<unset>"
	case valueAuto:
		return "AUTO"
	case valueNum:
		switch k {
		case KindU16:
			return fmt.Sprintf("0x%04X", v.num)
		case KindU32:
			return fmt.Sprintf("0x%08X", v.num)
		case KindU8, KindBytes:
			return fmt.Sprintf("0x%02X", v.num)
		default:
			return fmt.Sprintf("%d", v.num)
		}
	case valueBytes:
		const maxShown = 16
		if len(v.data) > maxShown {
			return fmt.Sprintf("%s...(%d bytes)", hex.EncodeToString(v.data[:maxShown]), len(v.data))
		}
		return "[" + hex.EncodeToString(v.data) + "]"
	default:
		return "?"
	}
}

// appendField writes a resolved value into dst according to its spec.
func appendField(dst []byte, f FieldSpec, v Value) []byte {
	switch f.Kind {
	case KindU8:
		return append(dst, byte(v.num))
	case KindU16:
		return binary.LittleEndian.AppendUint16(dst, uint16(v.num))
	case KindU32:
		return binary.LittleEndian.AppendUint32(dst, uint32(v.num))
	case KindBytes:
		return append(dst, v.data...)
	default:
		return dst
	}
}

// readField reads a scalar of kind k from the front of b.
func readField(k Kind, b []byte) uint64 {
	switch k {
	case KindU8:
		return uint64(b[0])
	case KindU16:
		return uint64(binary.LittleEndian.Uint16(b))
	case KindU32:
		return uint64(binary.LittleEndian.Uint32(b))
	case KindBytes:
		return 0
	default:
		return 0
	}
}
