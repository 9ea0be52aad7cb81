// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopService_CleanStop(t *testing.T) {
	svc := NewLoopService("flusher", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v, want context.Canceled", err)
	}
	if svc.String() != "flusher" {
		t.Errorf("String = %q", svc.String())
	}
}

func TestLoopService_EarlyReturnIsFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"nil", nil},
		{"error", errors.New("store closed")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewLoopService("retention", func(context.Context) error { return tt.err })
			err := svc.Serve(context.Background())
			if err == nil || errors.Is(err, context.Canceled) {
				t.Fatalf("Serve = %v, want failure", err)
			}
			if tt.err != nil && !errors.Is(err, tt.err) {
				t.Errorf("Serve = %v, want wrapped %v", err, tt.err)
			}
		})
	}
}

func TestTickerService_RunsTask(t *testing.T) {
	var calls atomic.Int32
	svc := NewTickerService("cache-sweeper", 5*time.Millisecond, func(context.Context) {
		calls.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("task ran %d times, want 3", calls.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v", err)
	}
}

func TestTickerService_SurvivesPanic(t *testing.T) {
	var calls atomic.Int32
	svc := NewTickerService("panicky", 5*time.Millisecond, func(context.Context) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("ticker stopped after panic")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-errCh
}

func TestTickerService_DefaultInterval(t *testing.T) {
	svc := NewTickerService("x", 0, func(context.Context) {})
	if svc.interval != time.Minute {
		t.Errorf("interval = %v, want 1m", svc.interval)
	}
}
