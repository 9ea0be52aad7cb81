// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package audit

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
)

// ErrNotPersisted is returned by a synchronous sink when the buffer and the
// degraded direct write both rejected the entry.
var ErrNotPersisted = errors.New("audit entry not persisted")

// Sink receives finished entries from the Recorder.
type Sink interface {
	Emit(ctx context.Context, entry *Entry) error
}

// Enqueuer accepts entries for persistence. Satisfied by *Buffer.
type Enqueuer interface {
	Enqueue(ctx context.Context, entry *Entry) bool
}

// Executor runs tasks off the calling goroutine. Satisfied by *dispatch.Pool.
type Executor interface {
	Submit(task func())
}

// BufferSink hands entries straight to the buffer.
type BufferSink struct {
	buf   Enqueuer
	exec  Executor
	async func() bool
}

// NewBufferSink creates a sink on buf. When exec is non-nil and async
// reports true, enqueueing happens on exec.
func NewBufferSink(buf Enqueuer, exec Executor, async func() bool) *BufferSink {
	if async == nil {
		async = func() bool { return exec != nil }
	}
	return &BufferSink{buf: buf, exec: exec, async: async}
}

// Emit enqueues entry. Asynchronous emits always return nil.
func (s *BufferSink) Emit(ctx context.Context, entry *Entry) error {
	ctx = context.WithoutCancel(ctx)
	if s.exec != nil && s.async() {
		s.exec.Submit(func() {
			if !s.buf.Enqueue(ctx, entry) {
				logging.Warn().Str("entry_id", entry.ID).Msg("Audit entry dropped")
			}
		})
		return nil
	}
	if !s.buf.Enqueue(ctx, entry) {
		return ErrNotPersisted
	}
	return nil
}

// Envelope fields SurfaceSink adds next to the line.
const (
	FieldEntryID       = "entryId"
	FieldOperationTime = "operationTime"
)

// SurfaceSink writes entries as lines on the audit logging surface.
type SurfaceSink struct {
	surface zerolog.Logger
}

// NewSurfaceSink creates a sink writing to surface, usually the logger
// returned by logging.NewAuditSurface.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSurfaceSink(surface zerolog.Logger) *SurfaceSink {
	return &SurfaceSink{surface: surface}
}

// Emit writes one line for entry.
func (s *SurfaceSink) Emit(_ context.Context, entry *Entry) error {
	s.surface.Log().
		Str(FieldEntryID, entry.ID).
		Int64(FieldOperationTime, entry.OperationTime.UnixMilli()).
		Msg(EncodeLine(entry))
	return nil
}

var (
	_ Sink = (*BufferSink)(nil)
	_ Sink = (*SurfaceSink)(nil)
)
