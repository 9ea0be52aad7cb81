// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

// Package dispatch provides the bounded worker pool that runs audit dispatch
// work off the logging call site.
//
// Admission follows a fixed order: start a core worker if below core, else
// queue, else start an extra worker if below max, else run the task on the
// submitting goroutine. Extra workers exit after KeepAlive of idleness.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
	"github.com/zhengbinger/bing-frame-sub000/internal/metrics"
)

// Config sizes a Pool.
type Config struct {
	Name          string
	CoreWorkers   int
	MaxWorkers    int
	QueueCapacity int
	KeepAlive     time.Duration
}

// DefaultConfig returns the capture-channel pool sizing.
func DefaultConfig() Config {
	return Config{
		Name:          "audit-dispatch",
		CoreWorkers:   5,
		MaxWorkers:    10,
		QueueCapacity: 500,
		KeepAlive:     60 * time.Second,
	}
}

// Stats is a point-in-time view of a Pool.
type Stats struct {
	Workers     int   `json:"workers"`
	CoreWorkers int   `json:"coreWorkers"`
	MaxWorkers  int   `json:"maxWorkers"`
	Queued      int   `json:"queued"`
	Completed   int64 `json:"completed"`
	CallerRuns  int64 `json:"callerRuns"`
	Panics      int64 `json:"panics"`
}

// Pool is a bounded executor with caller-runs saturation.
type Pool struct {
	mu      sync.Mutex
	cfg     Config
	workers int
	closed  bool

	queue chan func()
	quit  chan struct{}
	wg    sync.WaitGroup

	completed  atomic.Int64
	callerRuns atomic.Int64
	panics     atomic.Int64

	logger zerolog.Logger
}

// New creates a pool. Workers start lazily on Submit.
func New(cfg Config) *Pool {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.CoreWorkers <= 0 {
		cfg.CoreWorkers = def.CoreWorkers
	}
	if cfg.MaxWorkers < cfg.CoreWorkers {
		cfg.MaxWorkers = cfg.CoreWorkers
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = def.QueueCapacity
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = def.KeepAlive
	}
	return &Pool{
		cfg:    cfg,
		queue:  make(chan func(), cfg.QueueCapacity),
		quit:   make(chan struct{}),
		logger: logging.WithComponent(cfg.Name),
	}
}

// Submit runs task on the pool, or on the caller when the pool is saturated
// or closed. It never blocks waiting for capacity.
func (p *Pool) Submit(task func()) {
	if task == nil {
		return
	}
	if p.admit(task) {
		return
	}
	p.callerRuns.Add(1)
	metrics.DispatchCallerRuns.Inc()
	p.run(task)
}

func (p *Pool) admit(task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	if p.workers < p.cfg.CoreWorkers {
		p.spawnLocked(task)
		return true
	}
	select {
	case p.queue <- task:
		return true
	default:
	}
	if p.workers < p.cfg.MaxWorkers {
		p.spawnLocked(task)
		return true
	}
	return false
}

func (p *Pool) spawnLocked(first func()) {
	p.workers++
	metrics.DispatchWorkers.Inc()
	p.wg.Add(1)
	go p.worker(first)
}

func (p *Pool) worker(first func()) {
	defer p.wg.Done()
	defer metrics.DispatchWorkers.Dec()

	if first != nil {
		p.run(first)
	}

	idle := time.NewTimer(p.keepAlive())
	defer idle.Stop()

	for {
		select {
		case task := <-p.queue:
			p.run(task)
			resetTimer(idle, p.keepAlive())
		case <-idle.C:
			if p.retire() {
				return
			}
			idle.Reset(p.keepAlive())
		case <-p.quit:
			p.drain()
			p.mu.Lock()
			p.workers--
			p.mu.Unlock()
			return
		}
	}
}

// retire lets an idle worker exit when the pool is above core size.
func (p *Pool) retire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workers > p.cfg.CoreWorkers {
		p.workers--
		return true
	}
	return false
}

func (p *Pool) drain() {
	for {
		select {
		case task := <-p.queue:
			p.run(task)
		default:
			return
		}
	}
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			metrics.DispatchPanics.Inc()
			p.logger.Error().Interface("panic", r).Msg("Dispatched task panicked")
		}
	}()
	task()
	p.completed.Add(1)
}

func (p *Pool) keepAlive() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.KeepAlive
}

// Resize changes the worker bounds and keep-alive. Queue capacity is fixed
// for the life of the pool. Workers above the new core size retire once idle.
func (p *Pool) Resize(core, maxWorkers int, keepAlive time.Duration) error {
	if core <= 0 || maxWorkers < core {
		return fmt.Errorf("invalid pool bounds core=%d max=%d", core, maxWorkers)
	}
	p.mu.Lock()
	p.cfg.CoreWorkers = core
	p.cfg.MaxWorkers = maxWorkers
	if keepAlive > 0 {
		p.cfg.KeepAlive = keepAlive
	}
	p.mu.Unlock()

	p.logger.Info().Int("core", core).Int("max", maxWorkers).Dur("keep_alive", keepAlive).Msg("Dispatch pool resized")
	return nil
}

// QueueCapacity returns the fixed queue bound.
func (p *Pool) QueueCapacity() int {
	return cap(p.queue)
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	s := Stats{
		Workers:     p.workers,
		CoreWorkers: p.cfg.CoreWorkers,
		MaxWorkers:  p.cfg.MaxWorkers,
	}
	p.mu.Unlock()
	s.Queued = len(p.queue)
	s.Completed = p.completed.Load()
	s.CallerRuns = p.callerRuns.Load()
	s.Panics = p.panics.Load()
	return s
}

// Close stops accepting work, lets workers finish queued tasks and waits
// for them until ctx is done. Tasks submitted after Close run on the caller.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.quit)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Run anything still queued after the last worker exited.
		p.drain()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch pool %s close: %w", p.cfg.Name, ctx.Err())
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
