// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package audit

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
)

type captureSink struct {
	mu      sync.Mutex
	entries []*Entry
}

func (s *captureSink) Emit(_ context.Context, e *Entry) error {
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return nil
}

func (s *captureSink) last(t *testing.T) *Entry {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		t.Fatal("no entries emitted")
	}
	return s.entries[len(s.entries)-1]
}

type stubRequest struct {
	id      int64
	hasID   bool
	ip      string
	headers map[string]string
}

func (r stubRequest) ActorID(context.Context) (int64, bool) { return r.id, r.hasID }
func (r stubRequest) SourceIP(context.Context) string       { return r.ip }
func (r stubRequest) Header(_ context.Context, name string) string {
	return r.headers[name]
}

type stubActors map[int64]Actor

func (a stubActors) ResolveActor(_ context.Context, id int64) (Actor, bool) {
	actor, ok := a[id]
	return actor, ok
}

func TestNewRecorderRequiresSink(t *testing.T) {
	if _, err := NewRecorder(nil); err == nil {
		t.Error("NewRecorder(nil) should fail")
	}
}

func TestRecorderResolvesActor(t *testing.T) {
	sink := &captureSink{}
	r, err := NewRecorder(sink,
		WithRequestContext(stubRequest{id: 9, hasID: true, ip: "192.168.1.5"}),
		WithActorResolver(stubActors{9: {ID: 9, Username: "dave", DisplayName: "Dave D"}}),
		WithRecorderClock(func() time.Time { return fixedTime }),
	)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	r.RecordSuccess(context.Background(), "users", "DELETE", "removed user 3", "id=3")

	e := sink.last(t)
	if e.UserID == nil || *e.UserID != 9 {
		t.Errorf("UserID = %v, want 9", e.UserID)
	}
	if e.Username != "Dave D" {
		t.Errorf("Username = %q, want display name", e.Username)
	}
	if e.IPAddress != "192.168.1.5" {
		t.Errorf("IPAddress = %q", e.IPAddress)
	}
	if !e.OperationTime.Equal(fixedTime) {
		t.Errorf("OperationTime = %v, want %v", e.OperationTime, fixedTime)
	}
	if e.Result != ResultSuccess {
		t.Errorf("Result = %q, want success", e.Result)
	}
}

func TestRecorderAnonymousFallback(t *testing.T) {
	tests := []struct {
		name string
		req  stubRequest
		want string
	}{
		{name: "no actor id", req: stubRequest{}, want: AnonymousUsername},
		{
			name: "no actor id with name header",
			req:  stubRequest{headers: map[string]string{UserNameHeader: "frank"}},
			want: "frank",
		},
		{name: "resolution miss", req: stubRequest{id: 4, hasID: true}, want: AnonymousUsername},
		{
			name: "resolution miss with name header",
			req:  stubRequest{id: 4, hasID: true, headers: map[string]string{UserNameHeader: "erin"}},
			want: "erin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &captureSink{}
			r, _ := NewRecorder(sink, WithRequestContext(tt.req), WithActorResolver(stubActors{}))
			r.RecordFailure(context.Background(), "auth", "LOGIN", "login", "", "denied")

			e := sink.last(t)
			if e.Username != tt.want {
				t.Errorf("Username = %q, want %q", e.Username, tt.want)
			}
			if e.Result != ResultFailure || e.ErrorMessage != "denied" {
				t.Errorf("Result = %q, ErrorMessage = %q", e.Result, e.ErrorMessage)
			}
		})
	}
}

func TestRecorderDisabled(t *testing.T) {
	sink := &captureSink{}
	r, _ := NewRecorder(sink, WithEnabled(func() bool { return false }))
	r.RecordSuccess(context.Background(), "m", "op", "", "")
	if len(sink.entries) != 0 {
		t.Errorf("disabled recorder emitted %d entries", len(sink.entries))
	}
}

type panicSink struct{}

func (panicSink) Emit(context.Context, *Entry) error { panic("sink exploded") }

func TestRecorderAbsorbsSinkPanic(t *testing.T) {
	r, _ := NewRecorder(panicSink{})
	r.RecordSuccess(context.Background(), "m", "op", "", "")
}

func TestBufferSinkSync(t *testing.T) {
	m := &recordingMapper{}
	b := newTestBuffer(m, 1, 10)
	sink := NewBufferSink(b, nil, nil)

	if err := sink.Emit(context.Background(), testEntry("a")); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	m.failSingle.Store(true)
	if err := sink.Emit(context.Background(), testEntry("b")); err == nil {
		t.Error("Emit() should fail when the buffer and direct write both reject")
	}
}

type inlineExecutor struct{ submitted int }

func (e *inlineExecutor) Submit(task func()) {
	e.submitted++
	task()
}

func TestBufferSinkAsync(t *testing.T) {
	b := newTestBuffer(&recordingMapper{}, 10, 10)
	exec := &inlineExecutor{}
	async := true
	sink := NewBufferSink(b, exec, func() bool { return async })

	_ = sink.Emit(context.Background(), testEntry("a"))
	if exec.submitted != 1 || b.Size() != 1 {
		t.Errorf("submitted = %d, Size() = %d; want 1, 1", exec.submitted, b.Size())
	}

	async = false
	_ = sink.Emit(context.Background(), testEntry("b"))
	if exec.submitted != 1 || b.Size() != 2 {
		t.Errorf("sync emit should bypass the executor: submitted = %d, Size() = %d", exec.submitted, b.Size())
	}
}

func TestSurfaceSinkWritesTaggedLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSurfaceSink(logging.NewAuditSurface(&buf))

	e := testEntry("reports")
	e.Description = "export a, b"
	e.Normalize(fixedTime)
	if err := sink.Emit(context.Background(), e); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &envelope); err != nil {
		t.Fatalf("surface output is not JSON: %v (%s)", err, buf.String())
	}
	if envelope[logging.AuditLoggerField] != logging.AuditLoggerName {
		t.Errorf("logger field = %v, want %s", envelope[logging.AuditLoggerField], logging.AuditLoggerName)
	}
	if envelope[FieldEntryID] != e.ID {
		t.Errorf("entryId = %v, want %s", envelope[FieldEntryID], e.ID)
	}
	msg, _ := envelope["message"].(string)
	if !strings.Contains(msg, "description:export a\\, b") {
		t.Errorf("message = %q, want escaped description", msg)
	}
	if got := ParseLine(msg); got.Description != "export a, b" {
		t.Errorf("ParseLine(message).Description = %q", got.Description)
	}
}
