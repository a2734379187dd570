// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package tvl

import "time"

// Host defaults.
const (
	// DefaultMaxBlocks bounds chunked retrievals. It matches the certificate
	// store, the largest chunked object.
	DefaultMaxBlocks = CertificateBlocks
	// DefaultExchangeTimeout bounds one request/response exchange.
	DefaultExchangeTimeout = 2 * time.Second
)

// Transfer retry constants used by TargetWithRetry.
const (
	// DefaultTransferAttempts is the number of attempts per transfer.
	DefaultTransferAttempts = 3
	// TransferInitialBackoff is the delay before the first retry.
	TransferInitialBackoff = 10 * time.Millisecond
	// TransferMaxBackoff caps the delay between attempts.
	TransferMaxBackoff = 250 * time.Millisecond
	// TransferBackoffMultiplier is the exponential backoff multiplier.
	TransferBackoffMultiplier = 2.0
	// TransferJitter is the random jitter factor (0.0-1.0).
	TransferJitter = 0.1
	// TransferRetryTimeout is the overall budget for all attempts.
	TransferRetryTimeout = 5 * time.Second
)
