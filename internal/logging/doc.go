// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

// Package logging provides centralized zerolog-based structured logging.
//
// # Overview
//
// The package provides:
//   - A global zerolog logger configured once from main
//   - Context-aware logging with request and correlation ID propagation
//   - The dedicated audit surface consumed by the capture channel
//   - slog adapter for Suture v4 integration
//   - Watermill logger adapter for the config-change notifier
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("module", "user").Msg("Buffer flushed")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Identity lookup failed")
//
// # Audit Surface
//
// Audit lines are not ordinary log events. They are written through a
// separate logger returned by NewAuditSurface, tagged with logger=AUDIT_LOG
// and emitted without a level so the operator's log level never drops them:
//
//	surface := logging.NewAuditSurface(os.Stdout, captureChannel)
//	surface.Log().Msg("userId:1,username:alice,module:user,...")
//
// # Configuration
//
// Environment Variables (via internal/config):
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false (default: false)
package logging
