// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
)

// RunFunc is a blocking loop that returns when ctx is canceled.
type RunFunc func(ctx context.Context) error

// LoopService supervises a component that owns its own loop.
//
// The audit buffer flusher, the retention purger and the config scheduler
// all expose a blocking Run(ctx) error. LoopService adapts them to suture:
//
//   - Cancellation is a clean stop and Serve returns ctx.Err().
//   - Any return before cancellation, nil included, is a failure. suture
//     then restarts the loop, because a flusher that quietly exits would
//     leave the buffer to fill until the degraded path takes over.
//
// Example:
//
//	tree.AddPipelineService(services.NewLoopService("audit-buffer-flusher", buffer.Run))
type LoopService struct {
	name string
	run  RunFunc
}

// NewLoopService wraps run under name.
func NewLoopService(name string, run RunFunc) *LoopService {
	return &LoopService{name: name, run: run}
}

// Serve implements suture.Service. A loop that returns before
// cancellation is reported as a failure so suture restarts it.
func (s *LoopService) Serve(ctx context.Context) error {
	err := s.run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		err = errors.New("returned before shutdown")
	}
	return fmt.Errorf("%s: %w", s.name, err)
}

// String implements fmt.Stringer.
func (s *LoopService) String() string {
	return s.name
}

// TickerService calls a short task on a fixed interval.
//
// It suits housekeeping that needs no state of its own, such as sweeping
// expired identities from the local cache tier. The first call happens one
// interval after start. A task that panics is logged with the service name
// and the ticker keeps going; a crash-looping sweeper would do no more good
// than a skipped sweep.
type TickerService struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context)
}

// NewTickerService creates a ticker. Non-positive intervals default to a
// minute.
func NewTickerService(name string, interval time.Duration, task func(ctx context.Context)) *TickerService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &TickerService{name: name, interval: interval, task: task}
}

// Serve implements suture.Service. A panicking task is logged and the
// ticker keeps running.
func (s *TickerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runTask(ctx)
		}
	}
}

func (s *TickerService) runTask(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Str("service", s.name).Interface("panic", r).Msg("Ticker task panicked")
		}
	}()
	s.task(ctx)
}

// String implements fmt.Stringer.
func (s *TickerService) String() string {
	return s.name
}
