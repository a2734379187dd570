// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package model

// responseBuffer queues encoded response frames and remembers the one most
// recently handed to the SPI layer, for RESEND.
type responseBuffer struct {
	latest  []byte
	pending [][]byte
}

func (b *responseBuffer) add(frames ...[]byte) {
	b.pending = append(b.pending, frames...)
}

// next pops the oldest pending frame and makes it the latest.
func (b *responseBuffer) next() []byte {
	if len(b.pending) == 0 {
		return nil
	}
	b.latest = b.pending[0]
	b.pending = b.pending[1:]
	return b.latest
}

func (b *responseBuffer) empty() bool {
	return len(b.pending) == 0
}

func (b *responseBuffer) reset() {
	b.latest = nil
	b.pending = nil
}
