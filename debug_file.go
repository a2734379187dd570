// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package tvl

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Session log state
var (
	sessionLogFile   *os.File
	sessionLogPath   string
	sessionLogWriter io.Writer
)

// InitSessionLog creates a new session log file in the current directory.
// Returns the log file path for display to the user.
func InitSessionLog() (string, error) {
	filename := fmt.Sprintf("tvl_%s.log", time.Now().Format("20060102_150405"))

	logFile, err := os.Create(filename) //nolint:gosec // filename is constructed internally, not user input
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}

	sessionLogFile = logFile
	sessionLogPath = filename
	sessionLogWriter = logFile

	writeSessionHeader(logFile)

	return filename, nil
}

// CloseSessionLog closes the current session log file.
func CloseSessionLog() error {
	if sessionLogFile == nil {
		return nil
	}

	footer := zerolog.New(sessionLogWriter).With().Timestamp().Logger()
	footer.Info().Msg("session ended")

	err := sessionLogFile.Close()
	sessionLogFile = nil
	sessionLogPath = ""
	sessionLogWriter = nil
	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

// GetSessionLogPath returns the current session log file path.
func GetSessionLogPath() string {
	return sessionLogPath
}

// writeSessionHeader records metadata about the run as the first log line.
func writeSessionHeader(writer io.Writer) {
	header := zerolog.New(writer)
	ev := header.Info().
		Str("started", time.Now().Format(time.RFC3339)).
		Int("pid", os.Getpid()).
		Str("os", runtime.GOOS+"/"+runtime.GOARCH).
		Str("go_version", runtime.Version()).
		Str("catalog", CatalogVersion).
		Str("command_line", strings.Join(os.Args, " "))
	if exe, err := os.Executable(); err == nil {
		ev = ev.Str("executable", exe)
	}
	ev.Msg("session started")
}
