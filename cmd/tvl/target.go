// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/ZaparooProject/go-tvl"
	"github.com/ZaparooProject/go-tvl/internal/config"
	"github.com/ZaparooProject/go-tvl/target/model"
	"github.com/ZaparooProject/go-tvl/target/remote"
	"github.com/ZaparooProject/go-tvl/target/replay"
	"github.com/ZaparooProject/go-tvl/target/spi"
)

// openedTarget is a target plus whatever releases it.
type openedTarget struct {
	tvl.Target
	closer io.Closer
}

func (o *openedTarget) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}

// openTarget resolves a target URL:
//
//	model[:config.yaml]
//	tcp://host:port
//	serial:///dev/ttyUSB0?baud=115200
//	spi://SPI0.0?cs=GPIO8&freq=1MHz
//	replay://session.tvlr
func openTarget(raw string, cfg config.Config) (*openedTarget, error) {
	if raw == "model" || strings.HasPrefix(raw, "model:") {
		t, err := model.Open(strings.TrimPrefix(strings.TrimPrefix(raw, "model"), ":"),
			model.WithLogger(tvl.Logger()), model.WithPollConfig(cfg.Poll))
		if err != nil {
			return nil, fmt.Errorf("open model: %w", err)
		}
		return &openedTarget{Target: t, closer: t}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse target %q: %w", raw, err)
	}
	location := u.Host + u.Path
	if location == "" {
		return nil, fmt.Errorf("target %q has no address", raw)
	}
	q := u.Query()

	switch u.Scheme {
	case "tcp":
		t, err := remote.DialTCP(u.Host,
			remote.WithTimeout(cfg.LinkTimeout), remote.WithPollConfig(cfg.Poll))
		if err != nil {
			return nil, err //nolint:wrapcheck // already annotated
		}
		return &openedTarget{Target: t, closer: t}, nil

	case "serial":
		baud := remote.DefaultBaudRate
		if v := q.Get("baud"); v != "" {
			if baud, err = strconv.Atoi(v); err != nil || baud <= 0 {
				return nil, fmt.Errorf("invalid baud rate %q", v)
			}
		}
		t, err := remote.OpenSerial(location, baud,
			remote.WithTimeout(cfg.LinkTimeout), remote.WithPollConfig(cfg.Poll))
		if err != nil {
			return nil, err //nolint:wrapcheck // already annotated
		}
		return &openedTarget{Target: t, closer: t}, nil

	case "spi":
		sc := spi.DefaultConfig()
		sc.Port = location
		sc.Poll = cfg.Poll
		if v := q.Get("cs"); v != "" {
			sc.CSPin = v
		}
		if v := q.Get("freq"); v != "" {
			if err := sc.Frequency.Set(v); err != nil {
				return nil, fmt.Errorf("invalid frequency %q: %w", v, err)
			}
		}
		t, err := spi.Open(sc)
		if err != nil {
			return nil, err //nolint:wrapcheck // already annotated
		}
		return &openedTarget{Target: t, closer: t}, nil

	case "replay":
		p, err := replay.LoadFile(location)
		if err != nil {
			return nil, err //nolint:wrapcheck // already annotated
		}
		return &openedTarget{Target: p}, nil

	default:
		return nil, errors.New("unsupported target scheme " + strconv.Quote(u.Scheme))
	}
}
