// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZaparooProject/go-tvl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	der := []byte{0x30, 0x82, 0x01, 0x0A}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cert.pem"), pemBytes, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cert.der"), der, 0o600))

	tests := []struct {
		check   func(t *testing.T, cfg Config)
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name: "empty document keeps defaults",
			yaml: "",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, DefaultConfig(), cfg)
			},
		},
		{
			name: "plain and hex values",
			yaml: "chip_id: hex:01 02:03\nriscv_fw_version: v1.2\ninit_byte: 90\n",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, []byte{1, 2, 3}, cfg.ChipID)
				assert.Equal(t, []byte("v1.2"), cfg.RiscvFwVersion)
				assert.Equal(t, []byte("spect_fw_version"), cfg.SpectFwVersion)
				assert.Equal(t, byte(90), cfg.InitByte)
			},
		},
		{
			name: "pem certificate",
			yaml: "x509_certificate: file:cert.pem\n",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, der, cfg.X509Certificate)
			},
		},
		{
			name: "der certificate",
			yaml: "x509_certificate: file:" + filepath.Join(dir, "cert.der") + "\n",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, der, cfg.X509Certificate)
			},
		},
		{
			name: "sleep enables and busy pattern",
			yaml: "sleep_enabled: false\ndeep_sleep_enabled: true\nbusy_pattern: [true, false]\nlog: hello\n",
			check: func(t *testing.T, cfg Config) {
				assert.False(t, cfg.SleepEnabled)
				assert.True(t, cfg.DeepSleepEnabled)
				assert.Equal(t, []bool{true, false}, cfg.BusyPattern)
				assert.Equal(t, []byte("hello"), cfg.Log)
			},
		},
		{name: "bad hex", yaml: "chip_id: hex:zz\n", wantErr: true},
		{name: "missing file", yaml: "x509_certificate: file:nope.der\n", wantErr: true},
		{name: "unknown key", yaml: "chip_idd: x\n", wantErr: true},
		{name: "init byte overflow", yaml: "init_byte: 300\n", wantErr: true},
		{name: "oversized log", yaml: "log: hex:" + hexRun(256) + "\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := ParseConfig([]byte(tt.yaml), dir)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func hexRun(n int) string {
	b := make([]byte, 0, 2*n)
	for range n {
		b = append(b, 'a', 'b')
	}
	return string(b)
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chip_id: TR01-C2P-T101\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("TR01-C2P-T101"), cfg.ChipID)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.X509Certificate = make([]byte, tvl.CertificateSize)
	require.NoError(t, cfg.Validate())

	cfg.X509Certificate = append(cfg.X509Certificate, 0)
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.ChipID = make([]byte, tvl.GetInfoBlockSize)
	require.NoError(t, cfg.Validate())
	cfg.ChipID = append(cfg.ChipID, 0)
	require.ErrorContains(t, cfg.Validate(), "chip_id is 129 bytes")

	cfg = DefaultConfig()
	cfg.SpectFwVersion = make([]byte, tvl.GetInfoBlockSize+1)
	require.ErrorContains(t, cfg.Validate(), "spect_fw_version")
}
