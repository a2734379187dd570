// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

//nolint:paralleltest // Tests modify package-level session log state
package tvl

import (
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cleanupSessionLog(t *testing.T) {
	t.Helper()
	if sessionLogFile != nil {
		_ = sessionLogFile.Close()
	}
	sessionLogFile = nil
	sessionLogPath = ""
	sessionLogWriter = nil
}

// chdirTemp moves the test into a fresh directory for the session log file.
func chdirTemp(t *testing.T) {
	t.Helper()
	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() {
		cleanupSessionLog(t)
		_ = os.Chdir(origDir)
	})
}

func TestInitSessionLog_CreatesFile(t *testing.T) {
	chdirTemp(t)

	path, err := InitSessionLog()
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "Log file should exist")
	assert.Regexp(t, regexp.MustCompile(`^tvl_\d{8}_\d{6}\.log$`), path)
	assert.Equal(t, path, GetSessionLogPath())
}

func TestSessionLog_HeaderMessagesFooter(t *testing.T) {
	chdirTemp(t)

	path, err := InitSessionLog()
	require.NoError(t, err)

	Debugf("exchange %s", "GET_INFO")
	require.NoError(t, CloseSessionLog())
	assert.Empty(t, GetSessionLogPath())
	assert.Nil(t, sessionLogWriter)

	content, err := os.ReadFile(path) //nolint:gosec // path is from InitSessionLog
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"message":"session started"`)
	assert.Contains(t, lines[0], `"pid":`)
	assert.Contains(t, lines[0], `"catalog":"`+CatalogVersion+`"`)
	assert.Contains(t, lines[1], `"message":"exchange GET_INFO"`)
	assert.Contains(t, lines[2], `"message":"session ended"`)
}

func TestCloseSessionLog_NilFile(t *testing.T) {
	t.Cleanup(func() {
		cleanupSessionLog(t)
	})

	sessionLogFile = nil
	sessionLogPath = ""
	sessionLogWriter = nil

	assert.NoError(t, CloseSessionLog())
}

func TestWriteSessionHeader_Fields(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	writeSessionHeader(&buf)

	content := buf.String()
	for _, field := range []string{"started", "pid", "os", "go_version", "command_line"} {
		assert.Contains(t, content, `"`+field+`":`)
	}
}
