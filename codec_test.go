// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package tvl

import (
	"bytes"
	"encoding/binary"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-tvl/internal/frame"
)

// sampleValues fills a layout with random in-range values. Variable arrays
// get a random length within their bounds.
func sampleValues(layout []FieldSpec, rng *rand.Rand) map[string]Value {
	values := make(map[string]Value, len(layout))
	for _, f := range layout {
		if f.Kind != KindBytes {
			values[f.Name] = Uint(rng.Uint64() & f.Kind.maxValue())
			continue
		}
		n := f.Min
		if f.Max > f.Min {
			n += rng.IntN(f.Max - f.Min + 1)
		}
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(rng.Uint32())
		}
		values[f.Name] = Bytes(data)
	}
	return values
}

func assertValuesEqual(t *testing.T, want map[string]Value, got func(string) (Value, bool)) {
	t.Helper()
	for name, w := range want {
		g, ok := got(name)
		require.True(t, ok, "field %s missing", name)
		assert.True(t, w.Equal(g), "field %s: want %s, got %s", name, w.format(KindBytes), g.format(KindBytes))
	}
}

func TestCodec_RequestRoundTripEveryType(t *testing.T) {
	t.Parallel()

	for _, spec := range Catalog() {
		t.Run(spec.Name, func(t *testing.T) {
			t.Parallel()
			rng := rand.New(rand.NewPCG(1, uint64(spec.ID)))
			for range 20 {
				values := sampleValues(spec.Request, rng)
				enc, err := Encode(NewRequest(spec.ID, values))
				require.NoError(t, err)

				assert.Equal(t, byte(spec.ID), enc.Frame[0])
				assert.Equal(t, enc.Length, int(enc.Frame[1]))
				assert.Len(t, enc.Frame, frame.MinFrameSize+enc.Length)

				decoded, err := DecodeRequest(enc.Frame)
				require.NoError(t, err)
				assert.Equal(t, spec.ID, decoded.ID)
				assertValuesEqual(t, values, decoded.Field)
			}
		})
	}
}

func TestCodec_ResponseRoundTripEveryType(t *testing.T) {
	t.Parallel()

	for _, spec := range Catalog() {
		t.Run(spec.Name, func(t *testing.T) {
			t.Parallel()
			rng := rand.New(rand.NewPCG(3, uint64(spec.ID)))
			for range 20 {
				values := sampleValues(spec.Response, rng)
				buf, err := EncodeResponse(spec.ID, StatusResOK, values)
				require.NoError(t, err)

				resp, err := DecodeResponse(buf, spec.ID)
				require.NoError(t, err)
				assert.Equal(t, StatusResOK, resp.Status)
				assert.Equal(t, len(resp.Payload), resp.Length)
				assert.Equal(t, binary.LittleEndian.Uint16(buf[len(buf)-2:]), resp.CRC)
				assertValuesEqual(t, values, resp.Field)
			}
		})
	}
}

func TestCodec_BitFlipsAreIntegrityErrors(t *testing.T) {
	t.Parallel()

	for _, spec := range Catalog() {
		t.Run(spec.Name, func(t *testing.T) {
			t.Parallel()
			rng := rand.New(rand.NewPCG(5, uint64(spec.ID)))
			buf, err := EncodeResponse(spec.ID, StatusReqOK, sampleValues(spec.Response, rng))
			require.NoError(t, err)
			bits := len(buf) * 8

			for i := range bits {
				corrupt := bytes.Clone(buf)
				corrupt[i/8] ^= 1 << (i % 8)
				_, err := DecodeResponse(corrupt, spec.ID)
				var ie *IntegrityError
				require.ErrorAs(t, err, &ie, "single flip at bit %d", i)
			}

			for range 500 {
				i := rng.IntN(bits)
				j := rng.IntN(bits - 1)
				if j >= i {
					j++
				}
				corrupt := bytes.Clone(buf)
				corrupt[i/8] ^= 1 << (i % 8)
				corrupt[j/8] ^= 1 << (j % 8)
				_, err := DecodeResponse(corrupt, spec.ID)
				var ie *IntegrityError
				require.ErrorAs(t, err, &ie, "double flip at bits %d and %d", i, j)
			}
		})
	}
}

func TestCodec_EncodeIsIdempotent(t *testing.T) {
	t.Parallel()

	req := FwUpdateRequest([64]byte{1}, [32]byte{2}, FirmwareSPECT, 1, 0x00010203)
	first, err := Encode(req)
	require.NoError(t, err)
	second, err := Encode(req)
	require.NoError(t, err)
	again, err := Encode(first.Request)
	require.NoError(t, err)

	assert.Equal(t, first.Frame, second.Frame)
	assert.Equal(t, first.Frame, again.Frame)

	padding, ok := req.Field("padding")
	require.True(t, ok)
	assert.True(t, padding.IsAuto(), "encoding must not mutate the request")
}

func TestCodec_GetInfoWireBytes(t *testing.T) {
	t.Parallel()

	buf, err := EncodeRequest(GetInfoRequest(ObjectChipID, 0))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x01, 0x00, 0x2B, 0x92}, buf)

	resp, err := DecodeResponse([]byte{0x01, 0x07, 'c', 'h', 'i', 'p', '_', 'i', 'd', 0x53, 0xF2}, IDGetInfo)
	require.NoError(t, err)
	assert.Equal(t, StatusReqOK, resp.Status)
	assert.Equal(t, 7, resp.Length)
	assert.Equal(t, []byte("chip_id"), resp.Bytes("object"))
	assert.Equal(t, uint16(0xF253), resp.CRC)
}

func TestCodec_ResendHasEmptyPayload(t *testing.T) {
	t.Parallel()

	buf, err := EncodeRequest(ResendRequest())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 0x00, 0x03, 0xE0}, buf)
}

func TestDecodeResponse_CheckOrder(t *testing.T) {
	t.Parallel()

	withCRC := func(body ...byte) []byte {
		crc := frame.CalculateCRC(body)
		return binary.LittleEndian.AppendUint16(body, crc)
	}

	tests := []struct {
		check func(t *testing.T, err error)
		name  string
		buf   []byte
		id    RequestID
	}{
		{
			name: "too short",
			buf:  []byte{0x01, 0x00, 0x03},
			id:   IDGetInfo,
			check: func(t *testing.T, err error) {
				var fe *FramingError
				require.ErrorAs(t, err, &fe)
				assert.ErrorIs(t, err, frame.ErrFrameTooShort)
			},
		},
		{
			name: "CRC checked before length",
			buf:  []byte{0x01, 0x09, 0xAA, 0x00, 0x00},
			id:   IDGetInfo,
			check: func(t *testing.T, err error) {
				var ie *IntegrityError
				assert.ErrorAs(t, err, &ie)
			},
		},
		{
			name: "length mismatch",
			buf:  withCRC(0x01, 0x05, 'a', 'b'),
			id:   IDGetInfo,
			check: func(t *testing.T, err error) {
				var le *LengthMismatchError
				require.ErrorAs(t, err, &le)
				assert.Equal(t, 5, le.Declared)
				assert.Equal(t, 2, le.Actual)
			},
		},
		{
			name: "unknown type after frame checks",
			buf:  withCRC(0x01, 0x00),
			id:   0x55,
			check: func(t *testing.T, err error) {
				var ue *UnknownMessageTypeError
				require.ErrorAs(t, err, &ue)
				assert.Equal(t, byte(0x55), ue.ID)
			},
		},
		{
			name: "layout mismatch",
			buf:  withCRC(0x01, 0x03, 1, 2, 3),
			id:   IDHandshake,
			check: func(t *testing.T, err error) {
				var fe *FramingError
				require.ErrorAs(t, err, &fe)
				assert.ErrorIs(t, err, ErrLayoutMismatch)
			},
		},
		{
			name: "oversized block",
			buf:  withCRC(append([]byte{0x01, 129}, make([]byte, 129)...)...),
			id:   IDGetInfo,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrLayoutMismatch)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp, err := DecodeResponse(tt.buf, tt.id)
			assert.Nil(t, resp)
			tt.check(t, err)
		})
	}
}

func TestDecodeResponse_ErrorStatusKeepsRawPayload(t *testing.T) {
	t.Parallel()

	body := []byte{byte(StatusGenErr), 0x03, 1, 2, 3}
	buf := binary.LittleEndian.AppendUint16(body, frame.CalculateCRC(body))

	resp, err := DecodeResponse(buf, IDHandshake)
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, []byte{1, 2, 3}, resp.Payload)
	_, ok := resp.Field("e_tpub")
	assert.False(t, ok)
}

func TestDecodeResponse_DoesNotAliasInput(t *testing.T) {
	t.Parallel()

	buf, err := EncodeResponse(IDGetLog, StatusResOK, map[string]Value{"log_msg": Bytes([]byte("boot"))})
	require.NoError(t, err)
	resp, err := DecodeResponse(buf, IDGetLog)
	require.NoError(t, err)

	buf[2] = 'X'
	assert.Equal(t, []byte("boot"), resp.Bytes("log_msg"))
	assert.Equal(t, []byte("boot"), resp.Payload)
}

func TestEncode_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		req   Request
		name  string
		field string
	}{
		{name: "missing field", req: NewRequest(IDSleep, nil), field: "sleep_kind"},
		{name: "auto without default", req: NewRequest(IDSleep, map[string]Value{"sleep_kind": Auto()}), field: "sleep_kind"},
		{name: "scalar too wide", req: NewRequest(IDSleep, map[string]Value{"sleep_kind": Uint(0x100)}), field: "sleep_kind"},
		{
			name:  "u16 too wide",
			req:   FwUpdateDataRequest([32]byte{}, 0, make([]byte, 4)).With("offset", Uint(0x10000)),
			field: "offset",
		},
		{name: "bytes for scalar", req: NewRequest(IDStartup, map[string]Value{"startup_id": Bytes([]byte{1})}), field: "startup_id"},
		{name: "scalar for bytes", req: EncryptedCmdRequest([]byte{1}).With("l3_chunk", Uint(1)), field: "l3_chunk"},
		{name: "fixed array too short", req: HandshakeRequest([32]byte{}, 0).With("e_hpub", Bytes(make([]byte, 31))), field: "e_hpub"},
		{name: "variable array empty", req: EncryptedCmdRequest(nil), field: "l3_chunk"},
		{name: "variable array too long", req: EncryptedCmdRequest(make([]byte, MaxL3ChunkSize+1)), field: "l3_chunk"},
		{name: "firmware chunk too short", req: FwUpdateDataRequest([32]byte{}, 0, make([]byte, 3)), field: "data"},
		{name: "firmware chunk too long", req: FwUpdateDataRequest([32]byte{}, 0, make([]byte, 221)), field: "data"},
		{name: "unknown field", req: ResendRequest().With("bogus", Uint(1)), field: "bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := EncodeRequest(tt.req)
			var ee *EncodingError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tt.field, ee.Field)
		})
	}
}

func TestEncode_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := EncodeRequest(NewRequest(0x55, nil))
	var ue *UnknownMessageTypeError
	require.ErrorAs(t, err, &ue)
}

func TestDecodeRequest_Errors(t *testing.T) {
	t.Parallel()

	_, err := DecodeRequest([]byte{0x55, 0x00, 0x00, 0x00})
	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)

	body := []byte{0x55, 0x00}
	_, err = DecodeRequest(binary.LittleEndian.AppendUint16(body, frame.CalculateCRC(body)))
	var ue *UnknownMessageTypeError
	require.ErrorAs(t, err, &ue)

	body = []byte{byte(IDSleep), 0x02, 0x05, 0x00}
	_, err = DecodeRequest(binary.LittleEndian.AppendUint16(body, frame.CalculateCRC(body)))
	assert.ErrorIs(t, err, ErrLayoutMismatch)
}

func TestEncodeResponse_ErrorStatusIsEmpty(t *testing.T) {
	t.Parallel()

	buf, err := EncodeResponse(0x55, StatusUnknownReq, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7E, 0x00, 0x05, 0x84}, buf)
}
