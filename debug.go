// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package tvl

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// debugEnabled controls whether debug logging is echoed to the console.
var debugEnabled = false

var consoleWriter io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}

func init() {
	if os.Getenv("TVL_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
}

// Logger returns a logger writing JSON lines to the session log (if
// initialized) and human-readable lines to stderr when debug mode is enabled.
// With neither sink active it discards everything.
func Logger() zerolog.Logger {
	var sinks []io.Writer
	if sessionLogWriter != nil {
		sinks = append(sinks, sessionLogWriter)
	}
	if debugEnabled {
		sinks = append(sinks, consoleWriter)
	}

	var w io.Writer
	switch len(sinks) {
	case 0:
		return zerolog.Nop()
	case 1:
		w = sinks[0]
	default:
		w = zerolog.MultiLevelWriter(sinks...)
	}
	return zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

// Debugf logs a debug message.
// Always written to the session log file (if initialized); echoed to the
// console only when debug mode is enabled.
func Debugf(format string, args ...any) {
	l := Logger()
	l.Debug().Msgf(format, args...)
}

// SetDebugEnabled allows programmatic control of debug logging
// Useful for testing or application-controlled debug modes
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}
