// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"bytes"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZaparooProject/go-tvl"
	"gopkg.in/yaml.v3"
)

// Config holds the provisioned contents of a chip model.
type Config struct {
	ChipID           []byte
	X509Certificate  []byte
	RiscvFwVersion   []byte
	SpectFwVersion   []byte
	Log              []byte
	BusyPattern      []bool
	InitByte         byte
	SleepEnabled     bool
	DeepSleepEnabled bool
}

// DefaultConfig returns the contents of an unprovisioned model.
func DefaultConfig() Config {
	return Config{
		ChipID:           []byte("chip_id"),
		X509Certificate:  []byte("x509_certificate"),
		RiscvFwVersion:   []byte("riscv_fw_version"),
		SpectFwVersion:   []byte("spect_fw_version"),
		SleepEnabled:     true,
		DeepSleepEnabled: true,
	}
}

// Validate checks that every object fits the chip's storage.
func (c Config) Validate() error {
	if len(c.X509Certificate) > tvl.CertificateSize {
		return fmt.Errorf("x509_certificate is %d bytes, at most %d fit", len(c.X509Certificate), tvl.CertificateSize)
	}
	for _, obj := range []struct {
		name string
		data []byte
	}{
		{"chip_id", c.ChipID},
		{"riscv_fw_version", c.RiscvFwVersion},
		{"spect_fw_version", c.SpectFwVersion},
	} {
		if len(obj.data) > tvl.GetInfoBlockSize {
			return fmt.Errorf("%s is %d bytes, at most %d fit", obj.name, len(obj.data), tvl.GetInfoBlockSize)
		}
	}
	if len(c.Log) > maxLogSize {
		return fmt.Errorf("log is %d bytes, at most %d fit", len(c.Log), maxLogSize)
	}
	return nil
}

func (c Config) clone() Config {
	out := c
	out.ChipID = append([]byte(nil), c.ChipID...)
	out.X509Certificate = append([]byte(nil), c.X509Certificate...)
	out.RiscvFwVersion = append([]byte(nil), c.RiscvFwVersion...)
	out.SpectFwVersion = append([]byte(nil), c.SpectFwVersion...)
	out.Log = append([]byte(nil), c.Log...)
	out.BusyPattern = append([]bool(nil), c.BusyPattern...)
	return out
}

const maxLogSize = 255

// fileConfig mirrors the YAML layout. Pointers distinguish absent keys from
// zero values.
type fileConfig struct {
	InitByte         *uint8 `yaml:"init_byte"`
	SleepEnabled     *bool  `yaml:"sleep_enabled"`
	DeepSleepEnabled *bool  `yaml:"deep_sleep_enabled"`
	ChipID           string `yaml:"chip_id"`
	X509Certificate  string `yaml:"x509_certificate"`
	RiscvFwVersion   string `yaml:"riscv_fw_version"`
	SpectFwVersion   string `yaml:"spect_fw_version"`
	Log              string `yaml:"log"`
	BusyPattern      []bool `yaml:"busy_pattern"`
}

// LoadConfig reads a YAML model configuration. Relative file: references
// resolve against the directory of path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return Config{}, fmt.Errorf("read model config: %w", err)
	}
	cfg, err := ParseConfig(data, filepath.Dir(path))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a YAML model configuration over DefaultConfig. Object
// values are plain text, hex:<digits>, or file:<path>; PEM files contribute
// the bytes of their first block.
func ParseConfig(data []byte, dir string) (Config, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// an empty document leaves the defaults
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse model config: %w", err)
	}

	cfg := DefaultConfig()
	blobs := []struct {
		dst  *[]byte
		name string
		src  string
	}{
		{&cfg.ChipID, "chip_id", fc.ChipID},
		{&cfg.X509Certificate, "x509_certificate", fc.X509Certificate},
		{&cfg.RiscvFwVersion, "riscv_fw_version", fc.RiscvFwVersion},
		{&cfg.SpectFwVersion, "spect_fw_version", fc.SpectFwVersion},
		{&cfg.Log, "log", fc.Log},
	}
	for _, b := range blobs {
		if b.src == "" {
			continue
		}
		v, err := decodeBlob(b.src, dir)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", b.name, err)
		}
		*b.dst = v
	}

	if fc.InitByte != nil {
		cfg.InitByte = *fc.InitByte
	}
	if fc.SleepEnabled != nil {
		cfg.SleepEnabled = *fc.SleepEnabled
	}
	if fc.DeepSleepEnabled != nil {
		cfg.DeepSleepEnabled = *fc.DeepSleepEnabled
	}
	cfg.BusyPattern = fc.BusyPattern

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeBlob(s, dir string) ([]byte, error) {
	switch {
	case strings.HasPrefix(s, "hex:"):
		digits := strings.NewReplacer(" ", "", ":", "", "\n", "").Replace(strings.TrimPrefix(s, "hex:"))
		b, err := hex.DecodeString(digits)
		if err != nil {
			return nil, fmt.Errorf("decode hex: %w", err)
		}
		return b, nil
	case strings.HasPrefix(s, "file:"):
		path := strings.TrimPrefix(s, "file:")
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		b, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
		if err != nil {
			return nil, fmt.Errorf("read object file: %w", err)
		}
		if block, _ := pem.Decode(b); block != nil {
			return block.Bytes, nil
		}
		return b, nil
	default:
		return []byte(s), nil
	}
}
