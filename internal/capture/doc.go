// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

/*
Package capture turns lines written on the audit logging surface back into
audit entries.

A Channel is an io.Writer. Handing it to logging.NewAuditSurface makes every
zerolog event on that surface pass through Write, where the JSON envelope is
decoded, lines not tagged logger=AUDIT_LOG are ignored, and the message is
parsed with audit.ParseLine. Parsed entries are handed to a dispatch pool
which enqueues them on the audit buffer.

Envelope fields:

	message        the key:value line
	operationTime  entry timestamp in Unix milliseconds (preferred)
	time           zerolog timestamp, used when operationTime is absent
	entryId        entry id assigned by the emitter
	error          error text; forces result=failure

Write never returns an error for a line it cannot use. A bad line must not
fail the logging call that produced it.
*/
package capture
