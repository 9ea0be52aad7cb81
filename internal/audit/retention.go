// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package audit

import (
	"context"
	"time"

	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
)

// Retention deletes entries older than a configurable number of days.
type Retention struct {
	store    Store
	days     func() int
	interval time.Duration
}

// NewRetention creates a purger. days is read on every run so it follows
// live config changes.
func NewRetention(store Store, days func() int, interval time.Duration) *Retention {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Retention{store: store, days: days, interval: interval}
}

// Purge runs one cleanup pass.
func (r *Retention) Purge(ctx context.Context) (int64, error) {
	days := r.days()
	if days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	count, err := r.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		logging.Info().Int64("count", count).Time("older_than", cutoff).Msg("Cleaned up old audit entries")
	}
	return count, nil
}

// Run purges on every interval until ctx is canceled.
func (r *Retention) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Purge(ctx); err != nil {
				logging.Error().Err(err).Msg("Audit cleanup error")
			}
		}
	}
}
