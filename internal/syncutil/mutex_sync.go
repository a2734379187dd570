//go:build !deadlock

// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

// Package syncutil holds the locking primitives shared by the chip model,
// the mock targets and the model server. The default build uses the
// standard library mutexes; build with -tags=deadlock to swap in
// github.com/sasha-s/go-deadlock when chasing a lock-order bug between the
// server connection loop and the model.
package syncutil

import "sync"

// Mutex guards chip model and target state.
//
//nolint:gocritic // embedding exposes Lock/Unlock directly
type Mutex struct {
	sync.Mutex
}

// RWMutex guards read-mostly state such as mock response tables.
//
//nolint:gocritic // embedding exposes the full RWMutex API
type RWMutex struct {
	sync.RWMutex
}
