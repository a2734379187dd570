// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package tvl

import (
	"bytes"
	"testing"
)

// Run with: go test -fuzz=FuzzDecodeRequest -fuzztime=30s .

// FuzzDecodeRequest checks that every accepted request frame encodes back to
// the same bytes.
func FuzzDecodeRequest(f *testing.F) {
	f.Add([]byte{0x01, 0x02, 0x01, 0x00, 0x2B, 0x92})
	f.Add([]byte{0x10, 0x00, 0x03, 0xE0})
	f.Add([]byte{0x20, 0x01, 0x05, 0x00, 0x00})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, buf []byte) {
		req, err := DecodeRequest(buf)
		if err != nil {
			return
		}
		again, err := EncodeRequest(req)
		if err != nil {
			t.Fatalf("decoded %s does not encode: %v", req, err)
		}
		if !bytes.Equal(again, buf) {
			t.Fatalf("re-encode mismatch: %X != %X", again, buf)
		}
	})
}

// FuzzDecodeResponse decodes arbitrary frames against every catalog layout.
func FuzzDecodeResponse(f *testing.F) {
	f.Add([]byte{0x01, 0x07, 'c', 'h', 'i', 'p', '_', 'i', 'd', 0x53, 0xF2}, byte(0x01))
	f.Add([]byte{0x7E, 0x00, 0x05, 0x84}, byte(0x02))
	f.Add([]byte{0x01}, byte(0xA2))

	f.Fuzz(func(t *testing.T, buf []byte, id byte) {
		resp, err := DecodeResponse(buf, RequestID(id))
		if err != nil {
			if resp != nil {
				t.Fatalf("response returned with error %v", err)
			}
			return
		}
		if resp.Length != len(resp.Payload) {
			t.Fatalf("length %d but payload of %d bytes", resp.Length, len(resp.Payload))
		}
		_ = resp.String()
	})
}
