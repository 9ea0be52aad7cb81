// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"

	"github.com/zhengbinger/bing-frame-sub000/internal/audit"
	"github.com/zhengbinger/bing-frame-sub000/internal/dispatch"
	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var now = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

type collectingBuffer struct {
	mu      sync.Mutex
	entries []*audit.Entry
	reject  bool
}

func (b *collectingBuffer) Enqueue(_ context.Context, e *audit.Entry) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reject {
		return false
	}
	b.entries = append(b.entries, e)
	return true
}

func (b *collectingBuffer) all() []*audit.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*audit.Entry(nil), b.entries...)
}

func newTestChannel(buf audit.Enqueuer) *Channel {
	return New(buf, nil, WithClock(func() time.Time { return now }))
}

func TestChannelParsesSurfaceLine(t *testing.T) {
	buf := &collectingBuffer{}
	surface := logging.NewAuditSurface(newTestChannel(buf))

	surface.Log().
		Str("entryId", "abc-123").
		Int64("operationTime", now.Add(-time.Minute).UnixMilli()).
		Msg("userId:5,username:frank,ipAddress:10.1.1.1,module:billing,operationType:REFUND,description:refund 20,result:success,executionTime:40")

	got := buf.all()
	if len(got) != 1 {
		t.Fatalf("captured %d entries, want 1", len(got))
	}
	e := got[0]
	if e.ID != "abc-123" {
		t.Errorf("ID = %q, want abc-123", e.ID)
	}
	if !e.OperationTime.Equal(now.Add(-time.Minute)) {
		t.Errorf("OperationTime = %v, want operationTime field", e.OperationTime)
	}
	if e.UserID == nil || *e.UserID != 5 || e.Username != "frank" {
		t.Errorf("actor = %v/%q", e.UserID, e.Username)
	}
	if e.ExecutionTime == nil || *e.ExecutionTime != 40 {
		t.Errorf("ExecutionTime = %v, want 40", e.ExecutionTime)
	}
	if e.Result != audit.ResultSuccess {
		t.Errorf("Result = %q, want success", e.Result)
	}
}

func TestChannelErrorForcesFailure(t *testing.T) {
	buf := &collectingBuffer{}
	surface := logging.NewAuditSurface(newTestChannel(buf))

	surface.Log().Err(errors.New("connection reset")).Msg("module:sync,operationType:PUSH,result:success")

	got := buf.all()
	if len(got) != 1 {
		t.Fatalf("captured %d entries, want 1", len(got))
	}
	if got[0].Result != audit.ResultFailure {
		t.Errorf("Result = %q, want failure", got[0].Result)
	}
	if got[0].ErrorMessage != "connection reset" {
		t.Errorf("ErrorMessage = %q", got[0].ErrorMessage)
	}
	if got[0].ID == "" {
		t.Error("entry without entryId should get a generated id")
	}
}

func TestChannelIgnoresOtherLoggers(t *testing.T) {
	buf := &collectingBuffer{}
	c := newTestChannel(buf)
	other := zerolog.New(c).With().Str(logging.AuditLoggerField, "APP").Logger()

	other.Info().Msg("module:x,operationType:y")
	_, _ = c.Write([]byte("not json at all"))
	_, _ = c.Write([]byte("\n"))

	if got := len(buf.all()); got != 0 {
		t.Errorf("captured %d entries, want 0", got)
	}
}

func TestChannelTimestampFallbacks(t *testing.T) {
	c := newTestChannel(&collectingBuffer{})

	zerologTime := time.Date(2026, 5, 4, 9, 0, 0, 123000000, time.UTC)
	e, ok := c.Parse([]byte(`{"logger":"AUDIT_LOG","time":"` + zerologTime.Format(time.RFC3339Nano) + `","message":"module:a"}`))
	if !ok {
		t.Fatal("Parse() rejected a valid line")
	}
	if !e.OperationTime.Equal(zerologTime) {
		t.Errorf("OperationTime = %v, want time field %v", e.OperationTime, zerologTime)
	}

	e, _ = c.Parse([]byte(`{"logger":"AUDIT_LOG","message":"module:a"}`))
	if !e.OperationTime.Equal(now) {
		t.Errorf("OperationTime = %v, want clock %v", e.OperationTime, now)
	}
}

func TestChannelMalformedFieldsDegrade(t *testing.T) {
	c := newTestChannel(&collectingBuffer{})

	e, ok := c.Parse([]byte(`{"logger":"AUDIT_LOG","message":"userId:x,executionTime:?,module:inventory,junk"}`))
	if !ok {
		t.Fatal("Parse() rejected a line with malformed fields")
	}
	if e.UserID != nil || e.ExecutionTime != nil {
		t.Errorf("malformed numeric fields should be absent: %+v", e)
	}
	if e.Module != "inventory" {
		t.Errorf("Module = %q, want inventory", e.Module)
	}
}

func TestChannelRejectedEntryDoesNotFailWrite(t *testing.T) {
	c := newTestChannel(&collectingBuffer{reject: true})
	line := []byte(`{"logger":"AUDIT_LOG","message":"module:a"}`)

	n, err := c.Write(line)
	if err != nil || n != len(line) {
		t.Errorf("Write() = %d, %v; want %d, nil", n, err, len(line))
	}
}

type panickingBuffer struct{}

func (panickingBuffer) Enqueue(context.Context, *audit.Entry) bool { panic("boom") }

func TestChannelDispatchPanicIsContained(t *testing.T) {
	c := newTestChannel(panickingBuffer{})
	if _, err := c.Write([]byte(`{"logger":"AUDIT_LOG","message":"module:a"}`)); err != nil {
		t.Errorf("Write() error = %v", err)
	}
}

func TestChannelThroughPoolIntoBuffer(t *testing.T) {
	store := audit.NewMemoryStore(100)
	buf := audit.NewBuffer(store, audit.BufferConfig{Capacity: 100, BatchSize: 10, FlushInterval: time.Hour})
	pool := dispatch.New(dispatch.DefaultConfig())

	surface := logging.NewAuditSurface(New(buf, pool))
	sink := audit.NewSurfaceSink(surface)
	rec, err := audit.NewRecorder(sink)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	for i := 0; i < 25; i++ {
		rec.RecordSuccess(context.Background(), "catalog", "VIEW", "viewed item, page 2", "")
	}

	if err := pool.Close(context.Background()); err != nil {
		t.Fatalf("pool.Close() error = %v", err)
	}
	buf.ShutdownDrain(context.Background())

	if store.Len() != 25 {
		t.Fatalf("stored %d entries, want 25", store.Len())
	}
	got, _ := store.Query(context.Background(), audit.QueryFilter{Limit: 1})
	if got[0].Description != "viewed item, page 2" {
		t.Errorf("Description = %q, want comma preserved", got[0].Description)
	}
	if got[0].Username != audit.AnonymousUsername {
		t.Errorf("Username = %q, want anonymous", got[0].Username)
	}
}
