// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package audit

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
)

// RequestContext supplies per-request data to the Recorder.
type RequestContext interface {
	ActorID(ctx context.Context) (int64, bool)
	SourceIP(ctx context.Context) string
	Header(ctx context.Context, name string) string
}

// Actor is a resolved identity.
type Actor struct {
	ID          int64
	Username    string
	DisplayName string
}

// Name returns the display name, falling back to the username.
func (a Actor) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

// ActorResolver resolves an actor id. Satisfied by *identity.Cache.
type ActorResolver interface {
	ResolveActor(ctx context.Context, id int64) (Actor, bool)
}

// UserNameHeader carries a caller-supplied name used when resolution misses.
const UserNameHeader = "X-User-Name"

// Recorder is the call-site API for emitting audit entries.
type Recorder struct {
	sink     Sink
	requests RequestContext
	actors   ActorResolver
	enabled  func() bool
	now      func() time.Time
	logger   zerolog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRequestContext sets the request-context provider.
func WithRequestContext(rc RequestContext) RecorderOption {
	return func(r *Recorder) { r.requests = rc }
}

// WithActorResolver sets the identity resolver.
func WithActorResolver(ar ActorResolver) RecorderOption {
	return func(r *Recorder) { r.actors = ar }
}

// WithEnabled gates recording on fn, typically the live config's audit flag.
func WithEnabled(fn func() bool) RecorderOption {
	return func(r *Recorder) { r.enabled = fn }
}

// WithRecorderClock overrides the time source.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a recorder writing to sink.
func NewRecorder(sink Sink, opts ...RecorderOption) (*Recorder, error) {
	if sink == nil {
		return nil, errors.New("audit recorder requires a sink")
	}
	r := &Recorder{
		sink:    sink,
		enabled: func() bool { return true },
		now:     time.Now,
		logger:  logging.WithComponent("audit-recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record emits one entry. Failures are logged and never returned.
func (r *Recorder) Record(ctx context.Context, module, operationType, description, params string, result Result, errorMessage string) {
	r.RecordEntry(ctx, &Entry{
		Module:        module,
		OperationType: operationType,
		Description:   description,
		RequestParams: params,
		Result:        result,
		ErrorMessage:  errorMessage,
	})
}

// RecordSuccess emits a successful entry.
func (r *Recorder) RecordSuccess(ctx context.Context, module, operationType, description, params string) {
	r.Record(ctx, module, operationType, description, params, ResultSuccess, "")
}

// RecordFailure emits a failed entry carrying errorMessage.
func (r *Recorder) RecordFailure(ctx context.Context, module, operationType, description, params, errorMessage string) {
	r.Record(ctx, module, operationType, description, params, ResultFailure, errorMessage)
}

// RecordEntry completes a partially built entry with timestamp, source IP
// and identity, then emits it.
func (r *Recorder) RecordEntry(ctx context.Context, e *Entry) {
	if e == nil || !r.enabled() {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Msg("Audit record panicked")
		}
	}()

	e.Normalize(r.now())
	r.enrich(ctx, e)

	if err := r.sink.Emit(ctx, e); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("module", e.Module).
			Str("operation_type", e.OperationType).
			Msg("Audit entry emit failed")
	}
}

func (r *Recorder) enrich(ctx context.Context, e *Entry) {
	if r.requests != nil && e.IPAddress == "" {
		e.IPAddress = r.requests.SourceIP(ctx)
	}
	if e.Username != "" {
		return
	}

	if e.UserID == nil && r.requests != nil {
		if id, ok := r.requests.ActorID(ctx); ok {
			e.UserID = Int64Ptr(id)
		}
	}
	if e.UserID != nil && r.actors != nil {
		if actor, found := r.actors.ResolveActor(ctx, *e.UserID); found {
			e.Username = actor.Name()
			return
		}
	}
	if r.requests != nil {
		if name := r.requests.Header(ctx, UserNameHeader); name != "" {
			e.Username = name
			return
		}
	}
	e.Username = AnonymousUsername
}
