// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

// Package testing provides test helpers for stream transports: a connection
// wrapper that delivers reads late and in fragments, the way USB-serial
// bridges and loaded TCP links do.
package testing

import (
	"io"
	"math/rand/v2"
	"time"
)

// JitterConfig configures a JitteryConn.
type JitterConfig struct {
	// MaxLatency bounds the random delay before each read.
	MaxLatency time.Duration
	// StallDuration is slept once, after StallAfter bytes were delivered.
	StallDuration time.Duration
	// Seed makes fragmentation reproducible. Zero picks a random seed.
	Seed uint64
	// FragmentMin is the smallest fragment returned by a read.
	FragmentMin int
	// StallAfter triggers the stall. Zero disables it.
	StallAfter int
	// Boundary splits reads at multiples of this many bytes, like a USB
	// bulk endpoint. Zero disables it.
	Boundary int
	// Fragment enables random fragment sizes.
	Fragment bool
}

// DefaultJitterConfig fragments every read without adding latency.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{
		Fragment:    true,
		FragmentMin: 1,
	}
}

// JitteryConn wraps an io.ReadWriter. Writes pass through untouched; reads
// are buffered and handed out in random fragments, so no data is lost.
type JitteryConn struct {
	backend   io.ReadWriter
	rng       *rand.Rand
	pending   []byte
	config    JitterConfig
	delivered int
	stalled   bool
	reads     int
}

// NewJitteryConn wraps backend.
func NewJitteryConn(backend io.ReadWriter, config JitterConfig) *JitteryConn {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // test helper
	}
	if config.FragmentMin < 1 {
		config.FragmentMin = 1
	}
	return &JitteryConn{
		backend: backend,
		config:  config,
		rng:     rand.New(rand.NewPCG(seed, seed^0xDEADBEEF)), //nolint:gosec // test helper
	}
}

// Write passes data through to the backend.
func (j *JitteryConn) Write(data []byte) (int, error) {
	return j.backend.Write(data) //nolint:wrapcheck // pass-through
}

// Read returns a fragment of the next buffered bytes, refilling the buffer
// from the backend when it runs dry.
func (j *JitteryConn) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if j.config.MaxLatency > 0 {
		if d := time.Duration(j.rng.Int64N(int64(j.config.MaxLatency) + 1)); d > 0 {
			time.Sleep(d)
		}
	}

	if len(j.pending) == 0 {
		tmp := make([]byte, 1024)
		n, err := j.backend.Read(tmp)
		if n == 0 {
			return 0, err //nolint:wrapcheck // pass-through
		}
		j.pending = append(j.pending, tmp[:n]...)
	}

	n := min(len(j.pending), len(buf))

	if j.config.StallAfter > 0 && !j.stalled {
		if j.delivered >= j.config.StallAfter {
			j.stalled = true
			time.Sleep(j.config.StallDuration)
		} else {
			n = min(n, j.config.StallAfter-j.delivered)
		}
	}

	if b := j.config.Boundary; b > 0 {
		n = min(n, b-j.delivered%b)
	}

	if j.config.Fragment && n > j.config.FragmentMin {
		n = j.config.FragmentMin + j.rng.IntN(n-j.config.FragmentMin+1)
	}

	copy(buf, j.pending[:n])
	j.pending = j.pending[n:]
	j.delivered += n
	j.reads++
	return n, nil
}

// Reads returns the number of reads that delivered data.
func (j *JitteryConn) Reads() int {
	return j.reads
}

// ResetStall re-arms the stall and restarts boundary counting.
func (j *JitteryConn) ResetStall() {
	j.delivered = 0
	j.stalled = false
}
