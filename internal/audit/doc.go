// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

// Package audit implements the audit-trail pipeline: entries, their line
// encoding, persistence, the bounded buffer that batches writes, and the
// Recorder call sites use to emit entries.
//
// # Architecture
//
//	Recorder.Record() -> Sink -> Buffer.Enqueue() -> bounded queue -> flush -> Store.InsertBatch
//	                                   |
//	                              queue full: Store.InsertOne (degraded, synchronous)
//
// The Recorder writes to exactly one Sink chosen at composition time.
// SurfaceSink writes the entry as a line on the audit logging surface, where
// the capture channel parses it back into an Entry and enqueues it.
// BufferSink enqueues directly.
//
// # Buffer Semantics
//
// At most one flush runs at a time, guarded by an atomic flag. A flush drains
// up to BatchSize entries in FIFO order and persists them with one InsertBatch
// call, retried per the configured retry policy. On failure the drained
// entries are offered back to the tail of the queue and the flusher backs off
// before releasing the flag. Entries are lost only when the queue is full at
// requeue time or when ShutdownDrain runs out of attempts or time. Both are
// counted in audit_buffer_entries_lost_total, including a batch still held by
// a flush that outlives the shutdown deadline.
//
// A degraded direct write can persist an entry ahead of older queued entries.
//
// # Line Format
//
// One line per entry, fields joined by ",", each field "key:value", split on
// the first ":". Backslash and comma inside values are escaped as "\\" and
// "\,". Lines without those characters match the unescaped legacy format.
//
//	userId:42,username:alice,ipAddress:10.0.0.1,module:user,operationType:UPDATE,
//	description:rename user,requestParams:{"id":7},result:success,executionTime:12
//
// # Storage
//
// SQLStore persists to an audit_log table through database/sql and works with
// both the DuckDB and SQLite drivers. MemoryStore keeps entries in process.
package audit
