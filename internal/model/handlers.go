// go-tvl
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"errors"

	"github.com/ZaparooProject/go-tvl"
	"github.com/ZaparooProject/go-tvl/internal/frame"
)

type handler func(m *Model, req tvl.Request) (map[string]tvl.Value, tvl.Status)

// No secure session is modelled: handshakes fail and encrypted commands
// find no session.
var handlers = map[tvl.RequestID]handler{
	tvl.IDGetInfo:             (*Model).getInfo,
	tvl.IDHandshake:           constant(tvl.StatusHskErr),
	tvl.IDEncryptedCmd:        constant(tvl.StatusNoSession),
	tvl.IDEncryptedSessionAbt: constant(tvl.StatusReqOK),
	tvl.IDSleep:               (*Model).sleep,
	tvl.IDStartup:             (*Model).startup,
	tvl.IDMutableFwUpdate:     constant(tvl.StatusReqOK),
	tvl.IDMutableFwUpdateData: constant(tvl.StatusReqOK),
	tvl.IDGetLog:              (*Model).getLog,
}

func constant(s tvl.Status) handler {
	return func(*Model, tvl.Request) (map[string]tvl.Value, tvl.Status) {
		return nil, s
	}
}

// process decodes one request frame and builds its response frame. resend
// reports that the latest response must be replayed instead.
func (m *Model) process(data []byte) (resp []byte, resend bool) {
	m.state.Requests++
	m.state.Sleeping = false
	log := m.logger.With().Hex("frame", data).Logger()

	req, err := tvl.DecodeRequest(data)
	if err != nil {
		var unknown *tvl.UnknownMessageTypeError
		status := tvl.StatusCRCErr
		if errors.As(err, &unknown) {
			status = tvl.StatusUnknownReq
		}
		log.Debug().Err(err).Stringer("status", status).Msg("rejected request")
		return statusFrame(status), false
	}

	if req.ID == tvl.IDResend {
		if len(m.spi.responses.latest) == 0 {
			log.Debug().Msg("resend with no previous response")
			return statusFrame(tvl.StatusGenErr), false
		}
		log.Debug().Msg("resending latest response")
		return nil, true
	}

	h, ok := handlers[req.ID]
	if !ok {
		return statusFrame(tvl.StatusUnknownReq), false
	}
	fields, status := h(m, req)
	resp, err = tvl.EncodeResponse(req.ID, status, fields)
	if err != nil {
		log.Error().Err(err).Stringer("request", req.ID).Msg("encode response")
		return statusFrame(tvl.StatusGenErr), false
	}
	log.Debug().
		Stringer("request", req.ID).
		Stringer("status", status).
		Int("length", len(resp)-frame.MinFrameSize).
		Msg("processed request")
	return resp, false
}

func statusFrame(s tvl.Status) []byte {
	f, _ := frame.Build(byte(s), nil) //nolint:errcheck // an empty payload always fits
	return f
}

func field(req tvl.Request, name string) uint64 {
	v, _ := req.Field(name)
	return v.Num()
}

func (m *Model) getInfo(req tvl.Request) (map[string]tvl.Value, tvl.Status) {
	block := int(field(req, "block_index"))
	var obj []byte
	switch tvl.ObjectID(field(req, "object_id")) {
	case tvl.ObjectX509Certificate:
		if block >= tvl.CertificateBlocks {
			return nil, tvl.StatusGenErr
		}
		obj = slice(m.cfg.X509Certificate, block*tvl.GetInfoBlockSize, tvl.GetInfoBlockSize)
	case tvl.ObjectChipID:
		obj = slice(m.cfg.ChipID, 0, tvl.GetInfoBlockSize)
	case tvl.ObjectRiscvFwVersion:
		obj = slice(m.cfg.RiscvFwVersion, 0, tvl.GetInfoBlockSize)
	case tvl.ObjectSpectFwVersion:
		obj = slice(m.cfg.SpectFwVersion, 0, tvl.GetInfoBlockSize)
	default:
		// includes FW_BANK, which is only readable in start-up mode
		return nil, tvl.StatusGenErr
	}
	return map[string]tvl.Value{"object": tvl.Bytes(obj)}, tvl.StatusReqOK
}

// slice returns at most n bytes of b starting at off.
func slice(b []byte, off, n int) []byte {
	if off >= len(b) {
		return nil
	}
	return b[off:min(off+n, len(b))]
}

func (m *Model) sleep(req tvl.Request) (map[string]tvl.Value, tvl.Status) {
	kind := tvl.SleepKind(field(req, "sleep_kind"))
	switch kind {
	case tvl.SleepNormal:
		if !m.cfg.SleepEnabled {
			return nil, tvl.StatusRespDisabled
		}
	case tvl.SleepDeep:
		if !m.cfg.DeepSleepEnabled {
			return nil, tvl.StatusRespDisabled
		}
		m.spi.responses.reset()
	default:
		return nil, tvl.StatusGenErr
	}
	m.state.Sleeping = true
	m.state.Sleep = kind
	return nil, tvl.StatusReqOK
}

func (m *Model) startup(req tvl.Request) (map[string]tvl.Value, tvl.Status) {
	id := tvl.StartupID(field(req, "startup_id"))
	switch id {
	case tvl.StartupReboot, tvl.StartupMaintenanceReboot:
	default:
		return nil, tvl.StatusGenErr
	}
	m.powerOff()
	m.state.LastStart = id
	return nil, tvl.StatusReqOK
}

func (m *Model) getLog(tvl.Request) (map[string]tvl.Value, tvl.Status) {
	return map[string]tvl.Value{"log_msg": tvl.Bytes(m.cfg.Log)}, tvl.StatusReqOK
}
