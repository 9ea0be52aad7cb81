// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package audit

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
	"github.com/zhengbinger/bing-frame-sub000/internal/metrics"
)

// ErrFlushInProgress is returned by Flush when another flush holds the flag.
var ErrFlushInProgress = errors.New("audit flush already in progress")

// flagPoll is how often ShutdownDrain checks a flush flag held elsewhere.
const flagPoll = 10 * time.Millisecond

// BufferConfig holds Buffer configuration.
type BufferConfig struct {
	// Capacity bounds the queue.
	// Default: 10000
	Capacity int

	// BatchSize is both the flush threshold and the maximum batch.
	// Default: 50
	BatchSize int

	// FlushInterval is the timer period for time-triggered flushes.
	// Default: 10s
	FlushInterval time.Duration

	// FailureBackoff is held after a failed flush before the flag is released.
	// Default: 1s
	FailureBackoff time.Duration

	// RetryCount is the number of extra InsertBatch attempts within one flush.
	RetryCount int

	// RetryInterval is the pause between InsertBatch attempts.
	// Default: 1s
	RetryInterval time.Duration

	// PersistTimeout bounds each persist call. Zero means unbounded.
	PersistTimeout time.Duration

	// ShutdownAttempts bounds ShutdownDrain.
	// Default: 3
	ShutdownAttempts int

	// ShutdownPause separates ShutdownDrain attempts.
	// Default: 100ms
	ShutdownPause time.Duration
}

// DefaultBufferConfig returns the default buffer configuration.
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{
		Capacity:         10000,
		BatchSize:        50,
		FlushInterval:    10 * time.Second,
		FailureBackoff:   time.Second,
		RetryInterval:    time.Second,
		ShutdownAttempts: 3,
		ShutdownPause:    100 * time.Millisecond,
	}
}

type retryPolicy struct {
	count    int
	interval time.Duration
}

// Buffer queues entries and persists them in batches through a Mapper.
type Buffer struct {
	mapper Mapper
	queue  *boundedQueue

	flushing       atomic.Bool
	inFlight       atomic.Int64
	batchSize      atomic.Int64
	flushInterval  atomic.Int64
	persistTimeout atomic.Int64
	retry          atomic.Pointer[retryPolicy]

	failureBackoff   time.Duration
	shutdownAttempts int
	shutdownPause    time.Duration

	intervalChanged chan struct{}
	fullWarning     rate.Sometimes
	logger          zerolog.Logger
}

// NewBuffer creates a buffer draining into mapper.
func NewBuffer(mapper Mapper, cfg BufferConfig) *Buffer {
	def := DefaultBufferConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.FailureBackoff < 0 {
		cfg.FailureBackoff = 0
	}
	if cfg.ShutdownAttempts <= 0 {
		cfg.ShutdownAttempts = def.ShutdownAttempts
	}
	if cfg.ShutdownPause < 0 {
		cfg.ShutdownPause = 0
	}

	b := &Buffer{
		mapper:           mapper,
		queue:            newBoundedQueue(cfg.Capacity),
		failureBackoff:   cfg.FailureBackoff,
		shutdownAttempts: cfg.ShutdownAttempts,
		shutdownPause:    cfg.ShutdownPause,
		intervalChanged:  make(chan struct{}, 1),
		fullWarning:      rate.Sometimes{First: 1, Interval: 10 * time.Second},
		logger:           logging.WithComponent("audit-buffer"),
	}
	b.batchSize.Store(int64(cfg.BatchSize))
	b.flushInterval.Store(int64(cfg.FlushInterval))
	b.persistTimeout.Store(int64(cfg.PersistTimeout))
	b.SetRetryPolicy(cfg.RetryCount, cfg.RetryInterval)
	return b
}

// Enqueue offers entry to the queue without blocking. When the queue is
// full it persists entry directly and reports whether that succeeded. When
// the queue reaches the batch threshold and no flush is running, the caller
// runs one flush.
func (b *Buffer) Enqueue(ctx context.Context, entry *Entry) bool {
	if entry == nil {
		return false
	}
	entry.Normalize(time.Now())

	ctx = context.WithoutCancel(ctx)
	size, ok := b.queue.offerAndLen(entry)
	if !ok {
		return b.persistDegraded(ctx, entry)
	}
	metrics.BufferSize.Set(float64(size))

	if size >= b.BatchSize() && b.flushing.CompareAndSwap(false, true) {
		b.flushHeld(ctx)
	}
	return true
}

func (b *Buffer) persistDegraded(ctx context.Context, entry *Entry) bool {
	b.fullWarning.Do(func() {
		b.logger.Warn().Int("capacity", b.queue.limit()).Msg("Audit buffer full, writing directly")
	})

	pctx, cancel := b.persistContext(ctx)
	defer cancel()

	err := b.mapper.InsertOne(pctx, entry)
	metrics.RecordDegradedWrite(err)
	if err != nil {
		b.logger.Error().Err(err).Str("entry_id", entry.ID).Str("module", entry.Module).Msg("Direct audit write failed")
		return false
	}
	return true
}

// Flush runs one flush if no other flush is running and returns how many
// entries were persisted. Canceling ctx does not abort the flush.
func (b *Buffer) Flush(ctx context.Context) (int, error) {
	if !b.flushing.CompareAndSwap(false, true) {
		return 0, ErrFlushInProgress
	}
	return b.flushHeld(context.WithoutCancel(ctx))
}

// flushHeld drains one batch. The caller must hold the flush flag; it is
// released on return. Canceling ctx stops retries and the failure backoff,
// and the batch goes back on the queue.
func (b *Buffer) flushHeld(ctx context.Context) (int, error) {
	defer b.flushing.Store(false)

	batch := b.queue.poll(b.BatchSize())
	metrics.BufferSize.Set(float64(b.queue.size()))
	if len(batch) == 0 {
		return 0, nil
	}
	b.inFlight.Store(int64(len(batch)))

	start := time.Now()
	err := b.persistBatch(ctx, batch)
	metrics.RecordFlush(len(batch), time.Since(start), err)
	if err == nil {
		b.inFlight.Store(0)
		b.logger.Debug().Int("count", len(batch)).Dur("duration", time.Since(start)).Msg("Audit batch flushed")
		return len(batch), nil
	}

	lost := 0
	for _, e := range batch {
		if !b.queue.offer(e) {
			lost++
		}
	}
	b.inFlight.Store(0)
	metrics.RecordLost("requeue_full", lost)
	metrics.BufferSize.Set(float64(b.queue.size()))
	b.logger.Error().Err(err).
		Int("batch", len(batch)).
		Int("requeued", len(batch)-lost).
		Int("lost", lost).
		Msg("Audit batch persist failed")

	sleepCtx(ctx, b.failureBackoff)
	return 0, err
}

func (b *Buffer) persistBatch(ctx context.Context, batch []*Entry) error {
	pol := b.retry.Load()
	backoff := retry.WithMaxRetries(uint64(pol.count), retry.NewConstant(pol.interval))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		pctx, cancel := b.persistContext(ctx)
		defer cancel()
		if err := b.mapper.InsertBatch(pctx, batch); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (b *Buffer) persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := time.Duration(b.persistTimeout.Load()); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// Run drives time-triggered flushes until ctx is canceled. A flush in
// progress at cancellation stops retrying and requeues its batch; draining
// what is left is the job of ShutdownDrain, called by the process owner
// once producers have stopped.
func (b *Buffer) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.FlushInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.intervalChanged:
			ticker.Reset(b.FlushInterval())
		case <-ticker.C:
			if b.queue.size() > 0 && b.flushing.CompareAndSwap(false, true) {
				b.flushHeld(ctx)
			}
		}
	}
}

// ShutdownDrain flushes until nothing is pending, the attempt budget is
// spent on failed flushes, or ctx is done. A flush already running elsewhere
// is waited for rather than skipped. It returns the number of entries left
// behind, queued or still held by a flush that outlived ctx, and counts them
// as lost.
func (b *Buffer) ShutdownDrain(ctx context.Context) int {
	failures := 0
	for failures < b.shutdownAttempts && b.pending() > 0 && ctx.Err() == nil {
		if !b.awaitFlag(ctx) {
			break
		}
		if _, err := b.flushHeld(ctx); err != nil {
			failures++
			sleepCtx(ctx, b.shutdownPause)
		}
	}

	queued, inFlight := b.queue.size(), int(b.inFlight.Load())
	residual := queued + inFlight
	if residual > 0 {
		metrics.RecordLost("shutdown", residual)
		b.logger.Error().
			Int("residual", residual).
			Int("queued", queued).
			Int("in_flight", inFlight).
			Int("failed_attempts", failures).
			Msg("Audit entries lost at shutdown")
	} else {
		b.logger.Info().Msg("Audit buffer drained")
	}
	return residual
}

// awaitFlag takes the flush flag, waiting for a running flush to release it.
func (b *Buffer) awaitFlag(ctx context.Context) bool {
	for !b.flushing.CompareAndSwap(false, true) {
		if ctx.Err() != nil {
			return false
		}
		sleepCtx(ctx, flagPoll)
	}
	return true
}

// pending counts queued entries plus the batch a flush is holding.
func (b *Buffer) pending() int {
	return b.queue.size() + int(b.inFlight.Load())
}

// Size returns the number of queued entries.
func (b *Buffer) Size() int {
	return b.queue.size()
}

// Capacity returns the queue bound.
func (b *Buffer) Capacity() int {
	return b.queue.limit()
}

// BatchSize returns the flush threshold.
func (b *Buffer) BatchSize() int {
	return int(b.batchSize.Load())
}

// FlushInterval returns the timer period.
func (b *Buffer) FlushInterval() time.Duration {
	return time.Duration(b.flushInterval.Load())
}

// Flushing reports whether a flush currently holds the flag.
func (b *Buffer) Flushing() bool {
	return b.flushing.Load()
}

// SetBatchSize changes the flush threshold and batch bound.
func (b *Buffer) SetBatchSize(n int) {
	if n > 0 {
		b.batchSize.Store(int64(n))
	}
}

// SetFlushInterval changes the timer period. A running Run loop picks it up
// immediately.
func (b *Buffer) SetFlushInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	b.flushInterval.Store(int64(d))
	select {
	case b.intervalChanged <- struct{}{}:
	default:
	}
}

// SetCapacity changes the queue bound.
func (b *Buffer) SetCapacity(n int) {
	if n > 0 {
		b.queue.setCapacity(n)
	}
}

// SetRetryPolicy changes the in-flush InsertBatch retry policy.
func (b *Buffer) SetRetryPolicy(count int, interval time.Duration) {
	if count < 0 {
		count = 0
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	b.retry.Store(&retryPolicy{count: count, interval: interval})
}

// SetPersistTimeout bounds each persist call. Zero removes the bound.
func (b *Buffer) SetPersistTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	b.persistTimeout.Store(int64(d))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
