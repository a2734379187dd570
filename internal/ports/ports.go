// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

// Package ports finds the serial lines a tvl-server bridge may sit behind.
package ports

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// Port is one serial line.
type Port struct {
	Name         string
	VIDPID       string
	Product      string
	SerialNumber string
	USB          bool
	// Likely is set for USB-UART bridges and MCU boards commonly used to
	// carry the buffer protocol.
	Likely bool
}

// Options filters the listing.
type Options struct {
	// Blocklist holds VID:PID pairs never reported.
	Blocklist []string
	// IgnorePaths holds device paths never reported.
	IgnorePaths []string
	// LikelyOnly drops ports that do not look like a bridge.
	LikelyOnly bool
}

// knownBridges are VID:PID pairs of common USB-UART bridges and boards.
var knownBridges = map[string]string{
	"0403:6001": "FTDI FT232",
	"0403:6015": "FTDI FT231X",
	"10C4:EA60": "Silicon Labs CP210x",
	"1A86:7523": "QinHeng CH340",
	"067B:2303": "Prolific PL2303",
	"0483:374B": "ST-LINK/V2-1",
	"0483:5740": "STM32 Virtual COM",
	"2E8A:000A": "Raspberry Pi Pico",
	"303A:1001": "Espressif USB JTAG/serial",
}

// List enumerates the serial ports of this machine. Likely bridges sort
// first.
func List(opts Options) ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	return filter(details, opts), nil
}

func filter(details []*enumerator.PortDetails, opts Options) []Port {
	ports := make([]Port, 0, len(details))
	for _, d := range details {
		if d == nil || IsPathIgnored(d.Name, opts.IgnorePaths) {
			continue
		}
		p := Port{
			Name:         d.Name,
			Product:      d.Product,
			SerialNumber: d.SerialNumber,
			USB:          d.IsUSB,
		}
		if d.IsUSB && d.VID != "" && d.PID != "" {
			p.VIDPID = strings.ToUpper(d.VID + ":" + d.PID)
		}
		if p.VIDPID != "" && IsBlocked(p.VIDPID, opts.Blocklist) {
			continue
		}
		p.Likely = isLikelyBridge(&p)
		if opts.LikelyOnly && !p.Likely {
			continue
		}
		ports = append(ports, p)
	}

	sort.SliceStable(ports, func(i, j int) bool {
		if ports[i].Likely != ports[j].Likely {
			return ports[i].Likely
		}
		return ports[i].Name < ports[j].Name
	})
	return ports
}

// BridgeName returns the known bridge name for a VID:PID pair.
func BridgeName(vidpid string) (string, bool) {
	name, ok := knownBridges[strings.ToUpper(strings.TrimSpace(vidpid))]
	return name, ok
}

func isLikelyBridge(p *Port) bool {
	if _, ok := BridgeName(p.VIDPID); ok {
		return true
	}
	lowerName := strings.ToLower(p.Name)
	for _, pattern := range []string{"ttyusb", "ttyacm", "usbserial", "usbmodem", "slab_usbtouart"} {
		if strings.Contains(lowerName, pattern) {
			return true
		}
	}
	return false
}

// IsBlocked reports whether a VID:PID pair is in the blocklist.
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.ToUpper(strings.TrimSpace(vidpid))
	for _, blocked := range blocklist {
		if vidpid == strings.ToUpper(strings.TrimSpace(blocked)) {
			return true
		}
	}
	return false
}

// IsPathIgnored reports whether a device path is in ignorePaths. Paths are
// compared cleaned and case-insensitively.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	normalized := normalizedPath(devicePath)
	for _, ignore := range ignorePaths {
		if ignore == "" {
			continue
		}
		if devicePath == ignore || normalized == normalizedPath(ignore) {
			return true
		}
	}
	return false
}

func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
