// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package syncutil

import "sync/atomic"

// Gate admits one holder at a time and turns everyone else away instead
// of queueing them. The host uses it to reject a second exchange on a link
// that already has one outstanding.
type Gate struct {
	held atomic.Bool
}

// TryEnter claims the gate. It reports false if the gate is already held.
func (g *Gate) TryEnter() bool {
	return g.held.CompareAndSwap(false, true)
}

// Leave releases the gate. Calling Leave on an open gate is a no-op.
func (g *Gate) Leave() {
	g.held.Store(false)
}

// Held reports whether the gate is currently claimed.
func (g *Gate) Held() bool {
	return g.held.Load()
}
