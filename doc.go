// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

// Package tvl is a verification library for a secure-element chip (the
// target). It models the L2 wire protocol spoken between a host
// microcontroller and the chip, lets a test harness issue typed requests and
// interpret typed responses, and can substitute a simulated chip for real
// hardware.
//
// Every frame on the wire has the layout
//
//	[ID or STATUS][LEN][payload: LEN bytes][CRC-16 little-endian]
//
// where the CRC is CRC-16/BUYPASS over everything before it. Requests are
// built from the fixed message catalog (see Lookup and Catalog); fields carry
// explicit values or Auto, and Encode resolves them in one pass.
//
// A Host drives a single Target:
//
//	host, err := tvl.New(target)
//	if err != nil {
//	    return err
//	}
//	id, err := host.ChipID(ctx)
//
// Target implementations live in the target/ subpackages: an in-process chip
// model, SPI hardware, a remote model server over TCP or serial, and
// transcript replay.
package tvl
