// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

// Package config loads the tvl client settings from a TOML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ZaparooProject/go-tvl"
	"github.com/ZaparooProject/go-tvl/internal/l1"
	"github.com/ZaparooProject/go-tvl/target/remote"
)

// EnvTarget overrides the configured target URL.
const EnvTarget = "TVL_TARGET"

// DefaultTarget is the in-process chip model.
const DefaultTarget = "model"

// Config holds the client settings.
type Config struct {
	Target      string
	Poll        l1.PollConfig
	Timeout     time.Duration
	LinkTimeout time.Duration
	MaxBlocks   int
	Retries     int
}

// Default returns the settings used when no file is given.
func Default() Config {
	host := tvl.DefaultHostConfig()
	return Config{
		Target:      DefaultTarget,
		Timeout:     host.Timeout,
		LinkTimeout: remote.DefaultTimeout,
		MaxBlocks:   host.MaxBlocks,
		Poll:        l1.DefaultPollConfig(),
	}
}

// HostConfig returns the host settings.
func (c Config) HostConfig() *tvl.HostConfig {
	return &tvl.HostConfig{Timeout: c.Timeout, MaxBlocks: c.MaxBlocks}
}

// Validate checks the settings for consistency.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Target) == "" {
		return fmt.Errorf("config missing target")
	}
	if c.Timeout < 0 || c.LinkTimeout < 0 {
		return fmt.Errorf("negative timeout")
	}
	if c.MaxBlocks < 1 || c.MaxBlocks > 256 {
		return fmt.Errorf("max_blocks %d outside [1, 256]", c.MaxBlocks)
	}
	if c.Retries < 0 {
		return fmt.Errorf("negative retries")
	}
	if err := c.Poll.Validate(); err != nil {
		return fmt.Errorf("poll: %w", err)
	}
	return nil
}

type fileConfig struct {
	Target      string   `toml:"target"`
	Timeout     string   `toml:"timeout"`
	LinkTimeout string   `toml:"link_timeout"`
	Poll        pollFile `toml:"poll"`
	MaxBlocks   int      `toml:"max_blocks"`
	Retries     int      `toml:"retries"`
}

type pollFile struct {
	Wait       string `toml:"wait"`
	RetryWait  string `toml:"retry_wait"`
	MaxPolls   int    `toml:"max_polls"`
	PaddingLen int    `toml:"padding_len"`
}

// Load reads path over the defaults, applies the environment and validates
// the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = decodeFile(path, cfg); err != nil {
			return Config{}, err
		}
	}
	cfg = ApplyEnv(cfg, os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults without consulting the
// environment.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return apply(Default(), raw, meta)
}

func decodeFile(path string, cfg Config) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return apply(cfg, raw, meta)
}

func apply(cfg Config, raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}

	if meta.IsDefined("target") {
		cfg.Target = strings.TrimSpace(raw.Target)
	}
	if meta.IsDefined("max_blocks") {
		cfg.MaxBlocks = raw.MaxBlocks
	}
	if meta.IsDefined("retries") {
		cfg.Retries = raw.Retries
	}
	if meta.IsDefined("poll", "max_polls") {
		cfg.Poll.MaxPolls = raw.Poll.MaxPolls
	}
	if meta.IsDefined("poll", "padding_len") {
		cfg.Poll.PaddingLen = raw.Poll.PaddingLen
	}

	durations := []struct {
		dst   *time.Duration
		value string
		key   []string
	}{
		{&cfg.Timeout, raw.Timeout, []string{"timeout"}},
		{&cfg.LinkTimeout, raw.LinkTimeout, []string{"link_timeout"}},
		{&cfg.Poll.Wait, raw.Poll.Wait, []string{"poll", "wait"}},
		{&cfg.Poll.RetryWait, raw.Poll.RetryWait, []string{"poll", "retry_wait"}},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.value))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", strings.Join(d.key, "."), err)
		}
		*d.dst = v
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides read through lookup.
func ApplyEnv(cfg Config, lookup func(string) (string, bool)) Config {
	if v, ok := lookup(EnvTarget); ok && strings.TrimSpace(v) != "" {
		cfg.Target = strings.TrimSpace(v)
	}
	return cfg
}
