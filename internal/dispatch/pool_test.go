// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func closePool(t *testing.T, p *Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPool_RunsTasks(t *testing.T) {
	p := New(Config{CoreWorkers: 2, MaxWorkers: 4, QueueCapacity: 10})
	defer closePool(t, p)

	var wg sync.WaitGroup
	var count atomic.Int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		p.Submit(func() {
			defer wg.Done()
			count.Add(1)
		})
	}
	wg.Wait()

	if count.Load() != 50 {
		t.Errorf("ran %d tasks, want 50", count.Load())
	}
}

func TestPool_CallerRunsWhenSaturated(t *testing.T) {
	p := New(Config{CoreWorkers: 1, MaxWorkers: 1, QueueCapacity: 1})
	defer closePool(t, p)

	release := make(chan struct{})
	started := make(chan struct{})
	p.Submit(func() {
		close(started)
		<-release
	})
	<-started
	p.Submit(func() {}) // fills the queue

	var ranInline atomic.Bool
	p.Submit(func() { ranInline.Store(true) })

	if !ranInline.Load() {
		t.Error("expected saturated pool to run the task on the caller")
	}
	if got := p.Stats().CallerRuns; got != 1 {
		t.Errorf("CallerRuns = %d, want 1", got)
	}
	close(release)
}

func TestPool_GrowsToMaxThenShrinks(t *testing.T) {
	p := New(Config{CoreWorkers: 1, MaxWorkers: 3, QueueCapacity: 1, KeepAlive: 30 * time.Millisecond})
	defer closePool(t, p)

	release := make(chan struct{})
	var started sync.WaitGroup
	block := func() {
		started.Done()
		<-release
	}

	started.Add(1)
	p.Submit(block) // core worker
	started.Wait()
	p.Submit(func() {}) // queued
	started.Add(2)
	p.Submit(block) // extra worker
	p.Submit(block) // extra worker
	started.Wait()

	if got := p.Stats().Workers; got != 3 {
		t.Fatalf("Workers = %d, want 3", got)
	}

	close(release)
	waitFor(t, func() bool { return p.Stats().Workers == 1 })
}

func TestPool_RecoversPanics(t *testing.T) {
	p := New(Config{CoreWorkers: 1, MaxWorkers: 1, QueueCapacity: 4})
	defer closePool(t, p)

	done := make(chan struct{})
	p.Submit(func() { panic("boom") })
	p.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking task")
	}
	if got := p.Stats().Panics; got != 1 {
		t.Errorf("Panics = %d, want 1", got)
	}
}

func TestPool_CloseDrainsQueue(t *testing.T) {
	p := New(Config{CoreWorkers: 1, MaxWorkers: 1, QueueCapacity: 100})

	var count atomic.Int64
	for i := 0; i < 100; i++ {
		p.Submit(func() {
			time.Sleep(time.Millisecond)
			count.Add(1)
		})
	}
	closePool(t, p)

	if count.Load() != 100 {
		t.Errorf("ran %d tasks before close returned, want 100", count.Load())
	}

	var after atomic.Bool
	p.Submit(func() { after.Store(true) })
	if !after.Load() {
		t.Error("expected submit after close to run on the caller")
	}
}

func TestPool_Resize(t *testing.T) {
	p := New(DefaultConfig())
	defer closePool(t, p)

	if err := p.Resize(4, 2, 0); err == nil {
		t.Error("expected error for max below core")
	}
	if err := p.Resize(2, 8, time.Second); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	s := p.Stats()
	if s.CoreWorkers != 2 || s.MaxWorkers != 8 {
		t.Errorf("bounds = %d/%d, want 2/8", s.CoreWorkers, s.MaxWorkers)
	}
	if p.QueueCapacity() != 500 {
		t.Errorf("QueueCapacity() = %d, want 500", p.QueueCapacity())
	}
}
