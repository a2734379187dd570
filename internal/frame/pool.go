// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package frame

import "sync"

// BufferPool hands out scratch buffers for SPI transactions so polling
// loops do not allocate on every attempt.
type BufferPool struct {
	smallPool sync.Pool
	framePool sync.Pool
}

// Size classes
const (
	SmallBufferSize = 16                // GET_RESP polls, status reads
	FrameBufferSize = MaxFrameSize + 16 // full frame plus L1 overhead
)

var defaultPool = NewBufferPool()

// NewBufferPool creates a pool with one sync.Pool per size class.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		smallPool: sync.Pool{
			New: func() any {
				buf := make([]byte, SmallBufferSize)
				return &buf
			},
		},
		framePool: sync.Pool{
			New: func() any {
				buf := make([]byte, FrameBufferSize)
				return &buf
			},
		},
	}
}

// GetBuffer returns a zeroed buffer of exactly size bytes. Oversized
// requests bypass the pool.
func (p *BufferPool) GetBuffer(size int) []byte {
	var pool *sync.Pool
	switch {
	case size <= SmallBufferSize:
		pool = &p.smallPool
	case size <= FrameBufferSize:
		pool = &p.framePool
	default:
		return make([]byte, size)
	}
	bufPtr, ok := pool.Get().(*[]byte)
	if !ok {
		return make([]byte, size)
	}
	return (*bufPtr)[:size]
}

// PutBuffer clears buf and returns it to the pool it came from.
func (p *BufferPool) PutBuffer(buf []byte) {
	if buf == nil {
		return
	}
	full := buf[:cap(buf)]
	clear(full)
	switch cap(buf) {
	case SmallBufferSize:
		p.smallPool.Put(&full)
	case FrameBufferSize:
		p.framePool.Put(&full)
	}
}

// GetBuffer acquires a buffer from the default pool.
func GetBuffer(size int) []byte {
	return defaultPool.GetBuffer(size)
}

// PutBuffer returns a buffer to the default pool.
func PutBuffer(buf []byte) {
	defaultPool.PutBuffer(buf)
}
