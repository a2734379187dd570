//go:build deadlock

// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex guards chip model and target state, with deadlock detection.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex guards read-mostly state, with deadlock detection.
type RWMutex struct {
	deadlock.RWMutex
}
