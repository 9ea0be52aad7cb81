// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package identity

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
)

// BreakerConfig configures BreakerResolver.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "identity-upstream",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerResolver stops calling a failing upstream until it recovers.
// While open, Lookup fails fast with gobreaker.ErrOpenState.
type BreakerResolver struct {
	next Resolver
	cb   *gobreaker.CircuitBreaker[*Identity]
}

// NewBreakerResolver wraps next.
func NewBreakerResolver(next Resolver, cfg BreakerConfig) *BreakerResolver {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Identity upstream circuit breaker state changed")
		},
	}
	return &BreakerResolver{next: next, cb: gobreaker.NewCircuitBreaker[*Identity](settings)}
}

// Lookup calls the wrapped resolver through the breaker.
func (b *BreakerResolver) Lookup(ctx context.Context, id int64) (*Identity, error) {
	return b.cb.Execute(func() (*Identity, error) {
		return b.next.Lookup(ctx, id)
	})
}

// State returns the breaker state name.
func (b *BreakerResolver) State() string {
	return b.cb.State().String()
}

var _ Resolver = (*BreakerResolver)(nil)
