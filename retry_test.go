// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package tvl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Microsecond,
		MaxBackoff:        10 * time.Microsecond,
		BackoffMultiplier: 2.0,
		RetryTimeout:      time.Second,
	}
}

func TestRetryConfig_DefaultRetryConfig(t *testing.T) {
	t.Parallel()

	config := DefaultRetryConfig()

	require.NotNil(t, config)
	assert.Positive(t, config.MaxAttempts)
	assert.Greater(t, config.MaxBackoff, config.InitialBackoff)
	assert.Greater(t, config.BackoffMultiplier, 1.0)
	assert.GreaterOrEqual(t, config.Jitter, 0.0)
	assert.LessOrEqual(t, config.Jitter, 1.0)
	assert.Greater(t, config.RetryTimeout, time.Duration(0))
}

func TestNextBackoff(t *testing.T) {
	t.Parallel()

	config := &RetryConfig{BackoffMultiplier: 2.0, MaxBackoff: 100 * time.Millisecond}
	assert.Equal(t, 20*time.Millisecond, nextBackoff(10*time.Millisecond, config))
	assert.Equal(t, 100*time.Millisecond, nextBackoff(80*time.Millisecond, config))
}

func TestJittered(t *testing.T) {
	t.Parallel()

	base := 10 * time.Millisecond
	assert.Equal(t, base, jittered(base, 0))
	for range 50 {
		got := jittered(base, 0.5)
		assert.GreaterOrEqual(t, got, base)
		assert.LessOrEqual(t, got, base+base/2)
	}
}

func TestRetryWithConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		failures      []error
		name          string
		wantErr       error
		attempts      int
		expectedCalls int
	}{
		{name: "success on first attempt", attempts: 3, expectedCalls: 1},
		{
			name:          "success after retryable failures",
			failures:      []error{ErrTransportTimeout, ErrTransportRead},
			attempts:      3,
			expectedCalls: 3,
		},
		{
			name:          "attempts exhausted",
			failures:      []error{ErrTransportTimeout, ErrTransportTimeout, ErrTransportTimeout},
			attempts:      2,
			wantErr:       ErrTransportTimeout,
			expectedCalls: 2,
		},
		{
			name:          "non-retryable stops immediately",
			failures:      []error{ErrBusy},
			attempts:      3,
			wantErr:       ErrBusy,
			expectedCalls: 1,
		},
		{
			name:          "zero attempts runs once",
			failures:      []error{ErrTransportTimeout},
			attempts:      0,
			wantErr:       ErrTransportTimeout,
			expectedCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			err := RetryWithConfig(context.Background(), fastRetryConfig(tt.attempts), func(context.Context) error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expectedCalls, calls)
		})
	}
}

func TestRetryWithConfig_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithConfig(ctx, fastRetryConfig(3), func(context.Context) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
