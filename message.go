// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package tvl

import (
	"fmt"
	"strings"
)

// Request is a typed, caller-constructed message awaiting encoding. Requests
// are immutable: With returns a modified copy.
type Request struct {
	values map[string]Value
	ID     RequestID
}

// NewRequest builds a request of type id from named field values. Fields
// left out are treated as unset; values are copied.
func NewRequest(id RequestID, values map[string]Value) Request {
	req := Request{ID: id, values: make(map[string]Value, len(values))}
	for name, v := range values {
		req.values[name] = v
	}
	return req
}

// With returns a copy of r with one field replaced.
func (r Request) With(name string, v Value) Request {
	out := NewRequest(r.ID, r.values)
	out.values[name] = v
	return out
}

// Field returns the value of a named field.
func (r Request) Field(name string) (Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// String renders the request with unresolved fields shown as AUTO.
func (r Request) String() string {
	spec, err := lookup(r.ID)
	if err != nil {
		return fmt.Sprintf("%s{}", r.ID)
	}
	parts := []string{"id=AUTO", "length=AUTO"}
	for _, f := range spec.Request {
		v, ok := r.values[f.Name]
		if !ok && f.AutoDefault {
			v = Auto()
		}
		parts = append(parts, f.Name+"="+v.format(f.Kind))
	}
	parts = append(parts, "crc=AUTO")
	return spec.Name + "{" + strings.Join(parts, ", ") + "}"
}

// EncodedRequest is a request after auto-field resolution.
type EncodedRequest struct {
	Request Request
	Frame   []byte
	CRC     uint16
	Length  int
}

// String renders the request with every field resolved.
func (e *EncodedRequest) String() string {
	spec, err := lookup(e.Request.ID)
	if err != nil {
		return fmt.Sprintf("%s{}", e.Request.ID)
	}
	parts := []string{fmt.Sprintf("id=0x%02X", byte(e.Request.ID)), fmt.Sprintf("length=%d", e.Length)}
	for _, f := range spec.Request {
		parts = append(parts, f.Name+"="+e.Request.values[f.Name].format(f.Kind))
	}
	parts = append(parts, fmt.Sprintf("crc=0x%04X", e.CRC))
	return spec.Name + "{" + strings.Join(parts, ", ") + "}"
}

// Response is a decoded response frame. Responses are only produced by
// decoding bytes received from a Target.
type Response struct {
	fields  map[string]Value
	Payload []byte
	Length  int
	CRC     uint16
	Request RequestID
	Status  Status
}

// OK reports whether the status is a success status.
func (r *Response) OK() bool {
	return r.Status.IsSuccess()
}

// Field returns a decoded payload field. Responses with an error status have
// no fields.
func (r *Response) Field(name string) (Value, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// Bytes returns the byte-array field name, or nil.
func (r *Response) Bytes(name string) []byte {
	return r.fields[name].Data()
}

// Uint returns the scalar field name, or 0.
func (r *Response) Uint(name string) uint64 {
	return r.fields[name].Num()
}

func (r *Response) String() string {
	parts := []string{"status=" + r.Status.String(), fmt.Sprintf("length=%d", r.Length)}
	if spec, err := lookup(r.Request); err == nil && r.fields != nil {
		for _, f := range spec.Response {
			parts = append(parts, f.Name+"="+r.fields[f.Name].format(f.Kind))
		}
	} else if len(r.Payload) > 0 {
		parts = append(parts, "payload="+Bytes(r.Payload).format(KindBytes))
	}
	parts = append(parts, fmt.Sprintf("crc=0x%04X", r.CRC))
	return r.Request.String() + ".RESPONSE{" + strings.Join(parts, ", ") + "}"
}

// GetInfoRequest reads one block of an object.
func GetInfoRequest(object ObjectID, block uint8) Request {
	return NewRequest(IDGetInfo, map[string]Value{
		"object_id":   Uint(uint64(object)),
		"block_index": Uint(uint64(block)),
	})
}

// HandshakeRequest carries the host ephemeral key. The chip model answers it
// with HSK_ERR; no session is negotiated.
func HandshakeRequest(ephemeral [32]byte, pairingKey uint8) Request {
	return NewRequest(IDHandshake, map[string]Value{
		"e_hpub":     Bytes(ephemeral[:]),
		"pkey_index": Uint(uint64(pairingKey)),
	})
}

// EncryptedCmdRequest wraps one L3 chunk.
func EncryptedCmdRequest(chunk []byte) Request {
	return NewRequest(IDEncryptedCmd, map[string]Value{"l3_chunk": Bytes(chunk)})
}

// EncryptedSessionAbtRequest aborts the secure session.
func EncryptedSessionAbtRequest() Request {
	return NewRequest(IDEncryptedSessionAbt, nil)
}

// ResendRequest asks the target to repeat its latest response.
func ResendRequest() Request {
	return NewRequest(IDResend, nil)
}

// SleepRequest moves the target into a sleep state.
func SleepRequest(kind SleepKind) Request {
	return NewRequest(IDSleep, map[string]Value{"sleep_kind": Uint(uint64(kind))})
}

// StartupRequest reboots the target.
func StartupRequest(id StartupID) Request {
	return NewRequest(IDStartup, map[string]Value{"startup_id": Uint(uint64(id))})
}

// FwUpdateRequest starts a mutable firmware update. The padding byte is
// left to the encoder.
func FwUpdateRequest(signature [64]byte, hash [32]byte, fw FirmwareType, headerVersion uint8, version uint32) Request {
	return NewRequest(IDMutableFwUpdate, map[string]Value{
		"signature":      Bytes(signature[:]),
		"hash":           Bytes(hash[:]),
		"type":           Uint(uint64(fw)),
		"padding":        Auto(),
		"header_version": Uint(uint64(headerVersion)),
		"version":        Uint(uint64(version)),
	})
}

// FwUpdateDataRequest sends one chunk of firmware.
func FwUpdateDataRequest(hash [32]byte, offset uint16, data []byte) Request {
	return NewRequest(IDMutableFwUpdateData, map[string]Value{
		"hash":   Bytes(hash[:]),
		"offset": Uint(uint64(offset)),
		"data":   Bytes(data),
	})
}

// GetLogRequest reads the target's RISC-V firmware log.
func GetLogRequest() Request {
	return NewRequest(IDGetLog, nil)
}
