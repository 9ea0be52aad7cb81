// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/zhengbinger/bing-frame-sub000/internal/audit"
	"github.com/zhengbinger/bing-frame-sub000/internal/config"
	"github.com/zhengbinger/bing-frame-sub000/internal/dynconfig"
	"github.com/zhengbinger/bing-frame-sub000/internal/identity"
)

func syncSnapshot() dynconfig.Snapshot {
	s := dynconfig.DefaultSnapshot()
	s.AsyncEnabled = false
	return s
}

func newTestManager(t *testing.T, s dynconfig.Snapshot) *dynconfig.Manager {
	t.Helper()
	m, err := dynconfig.NewManager(s)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestOpenStore_Memory(t *testing.T) {
	store, resolver, closeFn, err := openStore(context.Background(), config.DatabaseConfig{Store: config.StoreMemory, MemoryRows: 10})
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer closeFn()

	if _, ok := store.(*audit.MemoryStore); !ok {
		t.Errorf("store = %T, want *audit.MemoryStore", store)
	}
	ident, err := resolver.Lookup(context.Background(), 1)
	if ident != nil || err != nil {
		t.Errorf("Lookup = %v, %v; want nil, nil", ident, err)
	}
}

func TestNewSink_CaptureRoutesThroughSurface(t *testing.T) {
	snap := syncSnapshot()
	m := newTestManager(t, snap)
	store := audit.NewMemoryStore(100)
	pool := newDispatchPool(snap)
	defer pool.Close(context.Background())
	buffer := newBuffer(store, snap, config.BufferConfig{ShutdownAttempts: 1})

	var tail bytes.Buffer
	sink := newSink(config.CaptureConfig{Enabled: true, Tail: true}, m, buffer, pool, &tail)
	if _, ok := sink.(*audit.SurfaceSink); !ok {
		t.Fatalf("sink = %T, want *audit.SurfaceSink", sink)
	}

	entry := audit.NewEntry(time.Now())
	entry.Module = "orders"
	entry.OperationType = "CREATE"
	entry.Username = "alice"
	entry.Result = audit.ResultSuccess
	if err := sink.Emit(context.Background(), entry); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	if buffer.Size() != 1 {
		t.Errorf("buffer size = %d, want 1", buffer.Size())
	}
	if !strings.Contains(tail.String(), "orders") {
		t.Errorf("tail = %q, want the surface line", tail.String())
	}
}

func TestNewSink_Direct(t *testing.T) {
	snap := syncSnapshot()
	m := newTestManager(t, snap)
	pool := newDispatchPool(snap)
	defer pool.Close(context.Background())
	buffer := newBuffer(audit.NewMemoryStore(10), snap, config.BufferConfig{})

	sink := newSink(config.CaptureConfig{Enabled: false}, m, buffer, pool, nil)
	if _, ok := sink.(*audit.BufferSink); !ok {
		t.Fatalf("sink = %T, want *audit.BufferSink", sink)
	}
	if err := sink.Emit(context.Background(), &audit.Entry{Module: "m", OperationType: "QUERY"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if buffer.Size() != 1 {
		t.Errorf("buffer size = %d, want 1", buffer.Size())
	}
}

func TestSwitchExecutor(t *testing.T) {
	async := false
	ran := 0
	exec := switchExecutor{pool: poolFunc(func(task func()) { t.Error("pool used while async off") }), async: func() bool { return async }}
	exec.Submit(func() { ran++ })
	if ran != 1 {
		t.Errorf("inline task ran %d times", ran)
	}

	async = true
	submitted := 0
	exec.pool = poolFunc(func(task func()) { submitted++ })
	exec.Submit(func() { ran++ })
	if submitted != 1 || ran != 1 {
		t.Errorf("submitted=%d ran=%d", submitted, ran)
	}
}

type poolFunc func(task func())

func (f poolFunc) Submit(task func()) { f(task) }

func TestRegisterRetuning(t *testing.T) {
	snap := dynconfig.DefaultSnapshot()
	m := newTestManager(t, snap)
	pool := newDispatchPool(snap)
	defer pool.Close(context.Background())
	buffer := newBuffer(audit.NewMemoryStore(10), snap, config.BufferConfig{})
	cache, err := identity.New(identity.ResolverFunc(func(context.Context, int64) (*identity.Identity, error) {
		return nil, nil
	}), identity.Config{Enabled: true, Capacity: snap.IdentityCache, TTL: snap.IdentityTTL})
	if err != nil {
		t.Fatalf("identity.New: %v", err)
	}

	registerRetuning(m, pool, buffer, cache)

	next := m.Current()
	next.BatchSize = 200
	next.FlushInterval = 2 * time.Second
	next.QueueCapacity = 5000
	next.PoolCore = 2
	next.PoolMax = 4
	next.CacheEnabled = false
	next.IdentityCache = 50
	if err := m.Apply(next, "retune", "tester"); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if buffer.BatchSize() != 200 || buffer.FlushInterval() != 2*time.Second || buffer.Capacity() != 5000 {
		t.Errorf("buffer batch=%d interval=%v capacity=%d", buffer.BatchSize(), buffer.FlushInterval(), buffer.Capacity())
	}
	if stats := pool.Stats(); stats.CoreWorkers != 2 || stats.MaxWorkers != 4 {
		t.Errorf("pool core=%d max=%d", stats.CoreWorkers, stats.MaxWorkers)
	}
	if cache.Enabled() {
		t.Error("cache still enabled")
	}
	if stats := cache.Statistics(); stats.Capacity != 50 {
		t.Errorf("cache capacity = %d, want 50", stats.Capacity)
	}
}

func TestChiConfig(t *testing.T) {
	c := chiConfig(config.SecurityConfig{
		CORSOrigins:     []string{"https://ops.example.com"},
		RateLimitReqs:   10,
		RateLimitWindow: time.Second,
		ActorHeader:     "X-Actor",
	})
	if c.RateLimitRequests != 10 || c.RateLimitWindow != time.Second || c.ActorHeader != "X-Actor" {
		t.Errorf("chiConfig = %+v", c)
	}
	if len(c.CORSAllowedOrigins) != 1 {
		t.Errorf("origins = %v", c.CORSAllowedOrigins)
	}

	d := chiConfig(config.SecurityConfig{})
	if d.RateLimitRequests != 100 || d.ActorHeader == "" {
		t.Errorf("defaults not kept: %+v", d)
	}
}

func TestOpenSharedTier_None(t *testing.T) {
	tier, err := openSharedTier(context.Background(), config.CacheConfig{Shared: config.SharedTierNone})
	if tier != nil || err != nil {
		t.Errorf("openSharedTier = %v, %v", tier, err)
	}
}

func TestOpenSharedTier_BadgerInMemory(t *testing.T) {
	tier, err := openSharedTier(context.Background(), config.CacheConfig{Shared: config.SharedTierBadger})
	if err != nil {
		t.Fatalf("openSharedTier: %v", err)
	}
	defer tier.Close()

	ctx := context.Background()
	if err := tier.Set(ctx, &identity.Identity{ID: 3, Username: "carol", ExpiresAt: time.Now().Add(time.Minute)}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := tier.Get(ctx, 3)
	if err != nil || got == nil || got.Username != "carol" {
		t.Errorf("Get = %+v, %v", got, err)
	}
}

func TestShutdown_DrainsDispatchedEntries(t *testing.T) {
	snap := syncSnapshot()
	snap.BatchSize = 1000
	store := audit.NewMemoryStore(100)
	pool := newDispatchPool(snap)
	buffer := newBuffer(store, snap, config.BufferConfig{ShutdownAttempts: 1})

	for i := 0; i < 20; i++ {
		pool.Submit(func() {
			e := audit.NewEntry(time.Now())
			e.Module = "orders"
			buffer.Enqueue(context.Background(), e)
		})
	}

	shutdown(buffer, pool, time.Second)

	if store.Len() != 20 {
		t.Errorf("persisted = %d, want 20", store.Len())
	}
	if buffer.Size() != 0 {
		t.Errorf("buffer size = %d after shutdown, want 0", buffer.Size())
	}
}
