// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package logging

import (
	"io"

	"github.com/rs/zerolog"
)

const (
	// AuditLoggerField is the field carrying the surface tag on every audit line.
	AuditLoggerField = "logger"

	// AuditLoggerName tags lines written through the audit surface.
	AuditLoggerName = "AUDIT_LOG"
)

// NewAuditSurface returns the dedicated logger audit lines are written to.
//
// Every writer receives every line. Lines should be emitted with Log() so
// they carry no level and are never filtered by the global level.
func NewAuditSurface(writers ...io.Writer) zerolog.Logger {
	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = zerolog.MultiLevelWriter(writers...)
	}
	return zerolog.New(w).With().
		Timestamp().
		Str(AuditLoggerField, AuditLoggerName).
		Logger()
}
