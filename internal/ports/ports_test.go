// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package ports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.bug.st/serial/enumerator"
)

func TestIsPathIgnored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		devicePath  string
		ignorePaths []string
		expected    bool
	}{
		{name: "empty ignore list", devicePath: "/dev/ttyUSB0", expected: false},
		{name: "empty device path", devicePath: "", ignorePaths: []string{"/dev/ttyUSB0"}, expected: false},
		{name: "exact match", devicePath: "/dev/ttyUSB0", ignorePaths: []string{"/dev/ttyUSB0"}, expected: true},
		{name: "no match", devicePath: "/dev/ttyUSB0", ignorePaths: []string{"/dev/ttyUSB1"}, expected: false},
		{name: "unclean path", devicePath: "/dev/ttyACM0", ignorePaths: []string{"/dev/../dev/ttyACM0"}, expected: true},
		{name: "windows case", devicePath: "COM3", ignorePaths: []string{"com3"}, expected: true},
		{name: "blank entries skipped", devicePath: "/dev/ttyS0", ignorePaths: []string{"", " "}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsPathIgnored(tt.devicePath, tt.ignorePaths))
		})
	}
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()

	blocklist := []string{" 1a86:7523 ", "0403:6001"}
	assert.True(t, IsBlocked("1A86:7523", blocklist))
	assert.True(t, IsBlocked("0403:6001", blocklist))
	assert.False(t, IsBlocked("10C4:EA60", blocklist))
	assert.False(t, IsBlocked("1A86:7523", nil))
}

func TestFilter(t *testing.T) {
	t.Parallel()

	details := []*enumerator.PortDetails{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1a86", PID: "7523", Product: "USB Serial"},
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "2e8a", PID: "000a", SerialNumber: "E660"},
		{Name: "/dev/ttyUSB1", IsUSB: true, VID: "0403", PID: "6001"},
		nil,
	}

	got := filter(details, Options{
		Blocklist:   []string{"0403:6001"},
		IgnorePaths: []string{"/dev/ttyS1"},
	})
	names := make([]string, len(got))
	for i, p := range got {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"/dev/ttyACM0", "/dev/ttyUSB0", "/dev/ttyS0"}, names)
	assert.Equal(t, "2E8A:000A", got[0].VIDPID)
	assert.True(t, got[0].Likely)
	assert.Equal(t, "E660", got[0].SerialNumber)
	assert.False(t, got[2].Likely)
	assert.Empty(t, got[2].VIDPID)

	likely := filter(details, Options{LikelyOnly: true, IgnorePaths: []string{"/dev/ttyUSB0"}})
	assert.Len(t, likely, 2)
}

func TestBridgeName(t *testing.T) {
	t.Parallel()

	name, ok := BridgeName("10c4:ea60")
	assert.True(t, ok)
	assert.Equal(t, "Silicon Labs CP210x", name)

	_, ok = BridgeName("FFFF:FFFF")
	assert.False(t, ok)
}
