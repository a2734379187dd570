// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package frame

// Frame layout: [ID|STATUS][LEN][payload: LEN bytes][CRC lo][CRC hi]
const (
	HeaderSize     = 2 // identifier (or status) + length
	TrailerSize    = 2 // CRC-16, little-endian
	MinFrameSize   = HeaderSize + TrailerSize
	MaxPayloadSize = 255
	MaxFrameSize   = MinFrameSize + MaxPayloadSize
)

// L1 (SPI link) control bytes
const (
	GetResp     = 0xAA // host request to read a pending response frame
	PaddingByte = 0x00
	NoResp      = 0xFF // STATUS value when no response is ready
)

// CHIP_STATUS flags returned as the first byte of every SPI transaction
const (
	ChipReady = 0x01
	ChipAlarm = 0x02
	ChipStart = 0x04
)
