// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package tvl

import (
	"fmt"
	"slices"
)

// CatalogVersion names the L2 protocol revision the catalog describes.
const CatalogVersion = "L2/1.0"

// RequestID identifies a request message type on the wire.
type RequestID byte

// Request identifiers
const (
	IDGetInfo             RequestID = 0x01
	IDHandshake           RequestID = 0x02
	IDEncryptedCmd        RequestID = 0x04
	IDEncryptedSessionAbt RequestID = 0x08
	IDResend              RequestID = 0x10
	IDSleep               RequestID = 0x20
	IDGetLog              RequestID = 0xA2
	IDMutableFwUpdate     RequestID = 0xB0
	IDMutableFwUpdateData RequestID = 0xB1
	IDStartup             RequestID = 0xB3
)

func (id RequestID) String() string {
	if spec, ok := catalog[id]; ok {
		return spec.Name
	}
	return fmt.Sprintf("REQ(0x%02X)", byte(id))
}

// Status is the first byte of every response frame.
type Status byte

// Response status codes
const (
	StatusReqOK        Status = 0x01
	StatusResOK        Status = 0x02
	StatusReqCont      Status = 0x03
	StatusResCont      Status = 0x04
	StatusRespDisabled Status = 0x78
	StatusHskErr       Status = 0x79
	StatusNoSession    Status = 0x7A
	StatusTagErr       Status = 0x7B
	StatusCRCErr       Status = 0x7C
	StatusUnknownReq   Status = 0x7E
	StatusGenErr       Status = 0x7F
	StatusNoResp       Status = 0xFF
)

var statusNames = map[Status]string{
	StatusReqOK:        "REQ_OK",
	StatusResOK:        "RES_OK",
	StatusReqCont:      "REQ_CONT",
	StatusResCont:      "RES_CONT",
	StatusRespDisabled: "RESP_DISABLED",
	StatusHskErr:       "HSK_ERR",
	StatusNoSession:    "NO_SESSION",
	StatusTagErr:       "TAG_ERR",
	StatusCRCErr:       "CRC_ERR",
	StatusUnknownReq:   "UNKNOWN_REQ",
	StatusGenErr:       "GEN_ERR",
	StatusNoResp:       "NO_RESP",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(0x%02X)", byte(s))
}

// IsSuccess reports whether the payload of a response with this status may be
// interpreted.
func (s Status) IsSuccess() bool {
	switch s {
	case StatusReqOK, StatusResOK, StatusReqCont, StatusResCont:
		return true
	default:
		return false
	}
}

// ObjectID selects the object returned by GET_INFO.
type ObjectID byte

// Objects readable with GET_INFO
const (
	ObjectX509Certificate ObjectID = 0x00
	ObjectChipID          ObjectID = 0x01
	ObjectRiscvFwVersion  ObjectID = 0x02
	ObjectSpectFwVersion  ObjectID = 0x04
	ObjectFwBank          ObjectID = 0xB0
)

// Chunked reports whether the object spans several GET_INFO blocks. The
// other objects fit in one block and the target ignores block_index for them.
func (o ObjectID) Chunked() bool {
	return o == ObjectX509Certificate
}

func (o ObjectID) String() string {
	switch o {
	case ObjectX509Certificate:
		return "X509_CERTIFICATE"
	case ObjectChipID:
		return "CHIP_ID"
	case ObjectRiscvFwVersion:
		return "RISCV_FW_VERSION"
	case ObjectSpectFwVersion:
		return "SPECT_FW_VERSION"
	case ObjectFwBank:
		return "FW_BANK"
	default:
		return fmt.Sprintf("OBJECT(0x%02X)", byte(o))
	}
}

// SleepKind selects the power state requested by SLEEP.
type SleepKind byte

// Sleep kinds
const (
	SleepNormal SleepKind = 0x05
	SleepDeep   SleepKind = 0x0A
)

// StartupID selects the reboot requested by STARTUP.
type StartupID byte

// Startup identifiers
const (
	StartupReboot            StartupID = 0x01
	StartupMaintenanceReboot StartupID = 0x03
)

// FirmwareType selects the firmware image targeted by MUTABLE_FW_UPDATE.
type FirmwareType uint16

// Firmware types
const (
	FirmwareCPU   FirmwareType = 0x01
	FirmwareSPECT FirmwareType = 0x02
)

// Layout limits
const (
	// GetInfoBlockSize is the GET_INFO block capacity.
	GetInfoBlockSize = 128
	// CertificateBlocks is the number of GET_INFO blocks the certificate
	// store spans.
	CertificateBlocks = 30
	// CertificateSize is the size of the certificate store in bytes.
	CertificateSize = CertificateBlocks * GetInfoBlockSize
	// MaxL3ChunkSize is the largest encrypted command chunk.
	MaxL3ChunkSize = 252
	// FwUpdateDataMin and FwUpdateDataMax bound a firmware data chunk.
	FwUpdateDataMin = 4
	FwUpdateDataMax = 220
)

// MessageSpec describes one request/response pair.
type MessageSpec struct {
	Name     string
	Request  []FieldSpec
	Response []FieldSpec
	// Chunked messages return a block of at most BlockCapacity bytes per
	// exchange; a shorter block ends the object.
	Chunked       bool
	BlockCapacity int
	ID            RequestID
}

// RequestField returns the request field spec with the given name.
func (m *MessageSpec) RequestField(name string) (FieldSpec, bool) {
	return findField(m.Request, name)
}

// ResponseField returns the response field spec with the given name.
func (m *MessageSpec) ResponseField(name string) (FieldSpec, bool) {
	return findField(m.Response, name)
}

func findField(layout []FieldSpec, name string) (FieldSpec, bool) {
	for _, f := range layout {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// catalog is the fixed message table. Field order is wire order.
var catalog = map[RequestID]*MessageSpec{
	IDGetInfo: {
		ID:            IDGetInfo,
		Name:          "GET_INFO",
		Request:       []FieldSpec{u8("object_id"), u8("block_index")},
		Response:      []FieldSpec{varArray("object", 0, GetInfoBlockSize)},
		Chunked:       true,
		BlockCapacity: GetInfoBlockSize,
	},
	IDHandshake: {
		ID:       IDHandshake,
		Name:     "HANDSHAKE",
		Request:  []FieldSpec{array("e_hpub", 32), u8("pkey_index")},
		Response: []FieldSpec{array("e_tpub", 32), array("t_tauth", 16)},
	},
	IDEncryptedCmd: {
		ID:       IDEncryptedCmd,
		Name:     "ENCRYPTED_CMD",
		Request:  []FieldSpec{varArray("l3_chunk", 1, MaxL3ChunkSize)},
		Response: []FieldSpec{varArray("l3_chunk", 1, MaxL3ChunkSize)},
	},
	IDEncryptedSessionAbt: {
		ID:   IDEncryptedSessionAbt,
		Name: "ENCRYPTED_SESSION_ABT",
	},
	IDResend: {
		ID:   IDResend,
		Name: "RESEND",
	},
	IDSleep: {
		ID:      IDSleep,
		Name:    "SLEEP",
		Request: []FieldSpec{u8("sleep_kind")},
	},
	IDStartup: {
		ID:      IDStartup,
		Name:    "STARTUP",
		Request: []FieldSpec{u8("startup_id")},
	},
	IDMutableFwUpdate: {
		ID:   IDMutableFwUpdate,
		Name: "MUTABLE_FW_UPDATE",
		Request: []FieldSpec{
			array("signature", 64),
			array("hash", 32),
			u16("type"),
			{Name: "padding", Kind: KindU8, AutoDefault: true},
			u8("header_version"),
			u32("version"),
		},
	},
	IDMutableFwUpdateData: {
		ID:   IDMutableFwUpdateData,
		Name: "MUTABLE_FW_UPDATE_DATA",
		Request: []FieldSpec{
			array("hash", 32),
			u16("offset"),
			varArray("data", FwUpdateDataMin, FwUpdateDataMax),
		},
	},
	IDGetLog: {
		ID:       IDGetLog,
		Name:     "GET_LOG",
		Response: []FieldSpec{varArray("log_msg", 0, 255)},
	},
}

// Lookup returns a copy of the catalog entry for id.
func Lookup(id RequestID) (*MessageSpec, error) {
	spec, err := lookup(id)
	if err != nil {
		return nil, err
	}
	return spec.clone(), nil
}

// lookup returns the shared entry; callers inside the package must not
// modify it.
func lookup(id RequestID) (*MessageSpec, error) {
	spec, ok := catalog[id]
	if !ok {
		return nil, &UnknownMessageTypeError{ID: byte(id)}
	}
	return spec, nil
}

// Catalog returns a copy of every catalog entry ordered by request
// identifier.
func Catalog() []*MessageSpec {
	specs := make([]*MessageSpec, 0, len(catalog))
	for id := 0; id <= 0xFF; id++ {
		if spec, ok := catalog[RequestID(id)]; ok {
			specs = append(specs, spec.clone())
		}
	}
	return specs
}

// clone copies m so callers cannot rewrite the fixed table.
func (m *MessageSpec) clone() *MessageSpec {
	c := *m
	c.Request = slices.Clone(m.Request)
	c.Response = slices.Clone(m.Response)
	return &c
}
