// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package dynconfig

import (
	"bytes"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/samber/oops"
)

// Export is the flat projection written by Manager.Export.
type Export struct {
	Version       string `json:"version"`
	Timestamp     int64  `json:"timestamp"`
	Enabled       bool   `json:"enabled"`
	BatchSize     int    `json:"batchSize"`
	FlushInterval string `json:"flushInterval"`
	AuditLevel    string `json:"auditLevel"`
}

// Export renders the live Snapshot's headline fields. The output is not a
// full Snapshot and Import does not read all of it back.
func (m *Manager) Export() ([]byte, error) {
	s := m.live.Load()
	data, err := json.Marshal(Export{
		Version:       s.Version,
		Timestamp:     s.UpdatedAt.UnixMilli(),
		Enabled:       s.Enabled,
		BatchSize:     s.BatchSize,
		FlushInterval: s.FlushInterval.String(),
		AuditLevel:    s.AuditLevel,
	})
	if err != nil {
		return nil, oops.Code(CodeExportFailed).Wrap(err)
	}
	return data, nil
}

// Import applies the recognized keys of a JSON object on top of the live
// Snapshot: enabled, asyncEnabled, batchSize, flushInterval and
// auditLevel. Other keys and null values are ignored. An object with none
// of them set is rejected.
func (m *Manager) Import(data []byte, description, actor string) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return oops.Code(CodeImportInvalid).Wrapf(err, "config import is not a JSON object")
	}

	next := m.Current()
	applied := 0
	for key, val := range raw {
		if isNull(val) {
			continue
		}
		ok, err := importField(&next, key, val)
		if err != nil {
			return oops.Code(CodeImportInvalid).With("key", key).Wrap(err)
		}
		if ok {
			applied++
		}
	}
	if applied == 0 {
		return oops.Code(CodeImportEmpty).Errorf("config import contains no recognized fields")
	}
	if description == "" {
		description = "imported configuration"
	}
	return m.Apply(next, description, actor)
}

func isNull(val json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(val), []byte("null"))
}

func importField(s *Snapshot, key string, val json.RawMessage) (bool, error) {
	switch key {
	case "enabled":
		return true, json.Unmarshal(val, &s.Enabled)
	case "asyncEnabled":
		return true, json.Unmarshal(val, &s.AsyncEnabled)
	case "batchSize":
		return true, json.Unmarshal(val, &s.BatchSize)
	case "auditLevel":
		var level string
		if err := json.Unmarshal(val, &level); err != nil {
			return true, err
		}
		s.AuditLevel = strings.ToUpper(level)
		return true, nil
	case "flushInterval":
		d, err := parseDuration(val)
		if err != nil {
			return true, err
		}
		s.FlushInterval = d
		return true, nil
	default:
		return false, nil
	}
}

// parseDuration accepts a Go duration string or a number of milliseconds.
func parseDuration(val json.RawMessage) (time.Duration, error) {
	var text string
	if err := json.Unmarshal(val, &text); err == nil {
		return time.ParseDuration(text)
	}
	var ms int64
	if err := json.Unmarshal(val, &ms); err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}
