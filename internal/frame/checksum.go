// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package frame

// CRC-16/BUYPASS parameters. The same routine is used for request and
// response frames on every target.
const (
	crcPolynomial = 0x8005
	crcSeed       = 0x0000
)

var crcTable = makeCRCTable()

func makeCRCTable() *[256]uint16 {
	var table [256]uint16
	for i := range table {
		crc := uint16(i) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return &table
}

// CalculateCRC computes the frame integrity code over data.
// Non-reflected, MSB first, no final XOR.
func CalculateCRC(data []byte) uint16 {
	return UpdateCRC(crcSeed, data)
}

// UpdateCRC continues a running CRC with more data, so a frame can be
// checksummed without first concatenating its parts.
func UpdateCRC(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>8)^b]
	}
	return crc
}
