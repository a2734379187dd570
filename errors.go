// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package tvl

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"syscall"
	"time"
)

// Error categories for error handling and retry decisions
var (
	// Transport errors - potentially retryable by the caller
	ErrTransportTimeout = errors.New("transport timeout")
	ErrTransportWrite   = errors.New("transport write failed")
	ErrTransportRead    = errors.New("transport read failed")
	ErrTransportClosed  = errors.New("transport is closed")
	ErrTargetNotReady   = errors.New("target not ready")

	// Protocol errors
	ErrLayoutMismatch = errors.New("payload does not match message layout")

	// Link protocol errors raised by remote targets
	ErrLinkException   = errors.New("remote target raised an exception")
	ErrLinkUnsupported = errors.New("remote target does not support request")
	ErrLinkInvalid     = errors.New("remote target rejected request tag")

	// Host usage errors - never retryable
	ErrBusy       = errors.New("host already has an exchange in flight")
	ErrNoTarget   = errors.New("host has no target")
	ErrNotChunked = errors.New("message type does not support chunked retrieval")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// EncodingError reports a request that cannot be serialized. It is raised
// before any byte leaves the host.
type EncodingError struct {
	Message string
	Field   string
	Reason  string
}

func (e *EncodingError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("encode %s: %s", e.Message, e.Reason)
	}
	return fmt.Sprintf("encode %s: field %q: %s", e.Message, e.Field, e.Reason)
}

// FramingError reports received bytes that do not form a frame, or a
// payload that does not fit the layout of the expected message.
type FramingError struct {
	Err     error
	Message string
	Size    int
}

func (e *FramingError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("framing %s (%d bytes): %v", e.Message, e.Size, e.Err)
	}
	return fmt.Sprintf("framing (%d bytes): %v", e.Size, e.Err)
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// LengthMismatchError reports a LEN field that disagrees with the payload
// actually received.
type LengthMismatchError struct {
	Declared int
	Actual   int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("length field %d does not match payload length %d", e.Declared, e.Actual)
}

// IntegrityError reports a CRC mismatch. It must never be downgraded: a bad
// CRC is either link corruption or tampering.
type IntegrityError struct {
	Computed uint16
	Received uint16
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed: computed CRC 0x%04X, frame carries 0x%04X", e.Computed, e.Received)
}

// UnknownMessageTypeError reports an identifier absent from the catalog,
// which means host and target disagree on the protocol revision.
type UnknownMessageTypeError struct {
	ID byte
}

func (e *UnknownMessageTypeError) Error() string {
	return fmt.Sprintf("unknown message type 0x%02X (catalog %s)", e.ID, CatalogVersion)
}

// StatusError carries a non-success status returned by the target. The
// response payload is not interpreted.
type StatusError struct {
	Request RequestID
	Status  Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s rejected by target: %s", e.Request, e.Status)
}

// IncompleteObjectError reports a chunked retrieval that hit its block
// limit without receiving a terminal short block.
type IncompleteObjectError struct {
	ObjectID  ObjectID
	MaxBlocks int
	Received  int
}

func (e *IncompleteObjectError) Error() string {
	return fmt.Sprintf("object %s incomplete after %d blocks (%d bytes received)",
		e.ObjectID, e.MaxBlocks, e.Received)
}

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether repeating the whole exchange might succeed.
// Only transport faults qualify; protocol and integrity errors do not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrTargetNotReady):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the target link is gone and
// further exchanges on the same handle are pointless.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		if te.Type == ErrorTypePermanent {
			return true
		}
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// Windows error codes for device disconnection detection.
// These are defined here because they're not available on non-Windows platforms.
const (
	errAccessDenied syscall.Errno = 5   // ERROR_ACCESS_DENIED
	errGenFailure   syscall.Errno = 31  // ERROR_GEN_FAILURE
	errNoSuchDevice syscall.Errno = 433 // ERROR_NO_SUCH_DEVICE
)

// isDeviceGoneError checks for OS-level errors indicating that a USB-serial
// bridge or SPI adapter was unplugged during I/O.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}

	//nolint:exhaustive // Only checking specific device-gone errors
	switch errno {
	case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
		return true
	}

	if runtime.GOOS == "windows" {
		//nolint:exhaustive // Only checking specific device-gone errors
		switch errno {
		case errAccessDenied, errGenFailure, errNoSuchDevice:
			return true
		}
	}
	return false
}

// IsProtocolError reports whether err came from a malformed or corrupted
// frame, as opposed to the link or the target's verdict.
func IsProtocolError(err error) bool {
	var (
		fe *FramingError
		le *LengthMismatchError
		ie *IntegrityError
		ue *UnknownMessageTypeError
	)
	return errors.As(err, &fe) || errors.As(err, &le) || errors.As(err, &ie) || errors.As(err, &ue)
}

// StatusOf extracts the target status from a StatusError.
func StatusOf(err error) (Status, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return 0, false
}

// Error constructors for consistent error creation

// NewTransportError creates a standard transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for transport operations
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewTransportWriteError creates a write error (transient)
func NewTransportWriteError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrTransportWrite, cause), ErrorTypeTransient)
}

// NewTransportReadError creates a read error (transient)
func NewTransportReadError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrTransportRead, cause), ErrorTypeTransient)
}

// NewTargetNotReadyError creates a not-ready error after polling gave up (timeout)
func NewTargetNotReadyError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTargetNotReady, ErrorTypeTimeout)
}

// NewTransportClosedError creates a closed-link error (permanent)
func NewTransportClosedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportClosed, ErrorTypePermanent)
}

// =============================================================================
// Wire Trace Logging
// =============================================================================
// TraceableError embeds wire-level trace data in errors, so a harness can
// print exactly which bytes crossed the link before an exchange failed.

// TraceDirection indicates the direction of wire data
type TraceDirection string

const (
	// TraceTX indicates data sent to the target
	TraceTX TraceDirection = "TX"
	// TraceRX indicates data received from the target
	TraceRX TraceDirection = "RX"
)

// TraceEntry represents a single wire-level operation
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

// String formats a trace entry for display
func (e TraceEntry) String() string {
	hexData := formatHexBytes(e.Data)
	if e.Note != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData, e.Note)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData)
}

// TraceableError wraps an error with wire-level trace data for debugging.
//
//	var te *tvl.TraceableError
//	if errors.As(err, &te) {
//	    log.Printf("Wire trace:\n%s", te.FormatTrace())
//	}
type TraceableError struct {
	Err       error
	Transport string
	Port      string
	Trace     []TraceEntry
}

// Error implements the error interface
func (e *TraceableError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace returns a human-readable formatted trace log
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s:%s] (no trace data)", e.Transport, e.Port)
	}

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "[%s:%s] Wire trace (%d entries):\n", e.Transport, e.Port, len(e.Trace))

	for _, entry := range e.Trace {
		direction := ">"
		if entry.Direction == TraceRX {
			direction = "<"
		}
		if entry.Note != "" {
			_, _ = fmt.Fprintf(&sb, "  %s %s (%s)\n", direction, formatHexBytes(entry.Data), entry.Note)
		} else {
			_, _ = fmt.Fprintf(&sb, "  %s %s\n", direction, formatHexBytes(entry.Data))
		}
	}

	return sb.String()
}

// formatHexBytes formats a byte slice as space-separated hex values
func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	const maxShown = 32
	shown := data
	if len(data) > maxShown {
		shown = data[:maxShown]
	}
	parts := make([]string, len(shown))
	for i, b := range shown {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	if len(data) > maxShown {
		return strings.Join(parts, " ") + fmt.Sprintf(" ... (%d bytes total)", len(data))
	}
	return strings.Join(parts, " ")
}

// TraceBuffer collects trace entries during one exchange.
// It keeps at most maxSize entries, evicting the oldest.
type TraceBuffer struct {
	transport string
	port      string
	entries   []TraceEntry
	maxSize   int
}

// NewTraceBuffer creates a new trace buffer with the specified capacity
func NewTraceBuffer(transport, port string, maxSize int) *TraceBuffer {
	if maxSize <= 0 {
		maxSize = 16
	}
	return &TraceBuffer{
		entries:   make([]TraceEntry, 0, maxSize),
		maxSize:   maxSize,
		transport: transport,
		port:      port,
	}
}

// RecordTX records bytes sent to the target
func (tb *TraceBuffer) RecordTX(data []byte, note string) {
	tb.record(TraceTX, data, note)
}

// RecordRX records bytes received from the target
func (tb *TraceBuffer) RecordRX(data []byte, note string) {
	tb.record(TraceRX, data, note)
}

// RecordTimeout records a timeout event
func (tb *TraceBuffer) RecordTimeout(note string) {
	tb.record(TraceRX, nil, "TIMEOUT: "+note)
}

func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string) {
	entry := TraceEntry{
		Direction: dir,
		Data:      append([]byte(nil), data...),
		Timestamp: time.Now(),
		Note:      note,
	}

	if len(tb.entries) >= tb.maxSize {
		copy(tb.entries, tb.entries[1:])
		tb.entries[len(tb.entries)-1] = entry
	} else {
		tb.entries = append(tb.entries, entry)
	}
}

// Entries returns a copy of the recorded entries.
func (tb *TraceBuffer) Entries() []TraceEntry {
	return append([]TraceEntry(nil), tb.entries...)
}

// WrapError wraps an error with the collected trace data.
// Returns nil if err is nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &TraceableError{
		Err:       err,
		Trace:     tb.Entries(),
		Transport: tb.transport,
		Port:      tb.port,
	}
}

// Clear resets the trace buffer
func (tb *TraceBuffer) Clear() {
	tb.entries = tb.entries[:0]
}

// HasTrace checks if an error contains trace data
func HasTrace(err error) bool {
	var te *TraceableError
	return errors.As(err, &te)
}

// GetTrace extracts trace data from an error, returning nil if not present
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
