// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

/*
Package api serves the audit pipeline's management surface over chi.

All routes live under /api/audit-log and answer with the standard envelope:

	{"success": true, "data": {...}, "meta": {...}}
	{"success": false, "error": {"code": "...", "message": "..."}}

Route groups:

  - /config: current, update, history, rollback, statistics,
    check-changes, export, import, validate, reset
  - /buffer: size, flush
  - /cache: statistics, utilization, evict, evict-all, warm-up,
    reset-statistics
  - /records: list stored entries, record an entry from an external emitter

Mutating routes are themselves audited through Handler.Audited, which
records one entry per request at the lower of the route's level and the
live snapshot's audit level.
*/
package api
