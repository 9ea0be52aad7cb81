// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package identity

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/zhengbinger/bing-frame-sub000/internal/audit"
	"github.com/zhengbinger/bing-frame-sub000/internal/cache"
	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
	"github.com/zhengbinger/bing-frame-sub000/internal/metrics"
)

// Metric tier labels.
const (
	tierLocal    = "local"
	tierShared   = "shared"
	tierUpstream = "upstream"
)

// Config holds Cache configuration.
type Config struct {
	// Enabled turns caching on. When off, Resolve always goes upstream.
	Enabled bool

	// Capacity is the nominal local tier size.
	// Default: 1000
	Capacity int

	// TTL is the absolute lifetime of a written entry.
	// Default: 30m
	TTL time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Capacity: 1000,
		TTL:      30 * time.Minute,
	}
}

// Statistics is a snapshot of cache counters.
type Statistics struct {
	Hits        int64         `json:"hits"`
	Misses      int64         `json:"misses"`
	Loads       int64         `json:"loads"`
	HitRate     float64       `json:"hitRate"`
	Uptime      time.Duration `json:"uptime"`
	StartedAt   time.Time     `json:"startedAt"`
	Size        int           `json:"size"`
	Capacity    int           `json:"capacity"`
	Utilization float64       `json:"utilization"`
}

// Cache is the two-tier read-through identity cache.
type Cache struct {
	local    *cache.Cache[int64, *Identity]
	shared   SharedTier
	upstream Resolver
	group    singleflight.Group

	enabled atomic.Bool
	hits    atomic.Int64
	misses  atomic.Int64
	loads   atomic.Int64
	started atomic.Int64

	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithSharedTier adds a shared tier between the local map and upstream.
func WithSharedTier(tier SharedTier) Option {
	return func(c *Cache) { c.shared = tier }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache resolving misses through upstream.
func New(upstream Resolver, cfg Config, opts ...Option) (*Cache, error) {
	if upstream == nil {
		return nil, fmt.Errorf("identity cache requires an upstream resolver")
	}
	def := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}

	c := &Cache{
		upstream: upstream,
		now:      time.Now,
		logger:   logging.WithComponent("identity-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.local = cache.New[int64, *Identity](cfg.Capacity, cfg.TTL, cache.WithClock[int64, *Identity](c.now))
	c.enabled.Store(cfg.Enabled)
	c.started.Store(c.now().UnixNano())
	return c, nil
}

// Resolve returns the identity for id, or false when it cannot be resolved.
func (c *Cache) Resolve(ctx context.Context, id int64) (*Identity, bool) {
	if !c.enabled.Load() {
		ident, err := c.upstream.Lookup(ctx, id)
		if err != nil || ident == nil {
			return nil, false
		}
		return ident, true
	}

	if ident, ok := c.local.Get(id); ok {
		c.hits.Add(1)
		metrics.RecordIdentityLookup(tierLocal, true)
		return ident, true
	}

	if c.shared != nil {
		ident, err := c.shared.Get(ctx, id)
		if err != nil {
			c.logger.Warn().Err(err).Int64("actor_id", id).Msg("Shared identity tier read failed")
		} else if ident != nil && !ident.Expired(c.now()) {
			c.hits.Add(1)
			metrics.RecordIdentityLookup(tierShared, true)
			c.local.SetUntil(id, ident, ident.ExpiresAt)
			c.updateSizeMetric()
			return ident, true
		}
	}

	c.misses.Add(1)
	metrics.RecordIdentityLookup(tierLocal, false)

	v, err, _ := c.group.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		return c.load(ctx, id)
	})
	if err != nil {
		c.logger.Warn().Err(err).Int64("actor_id", id).Msg("Identity resolution failed")
		return nil, false
	}
	ident, _ := v.(*Identity)
	return ident, ident != nil
}

// load fetches id from upstream and writes it through both tiers.
func (c *Cache) load(ctx context.Context, id int64) (*Identity, error) {
	ident, err := c.upstream.Lookup(ctx, id)
	if err != nil {
		metrics.RecordIdentityLookup(tierUpstream, false)
		return nil, err
	}
	if ident == nil {
		metrics.RecordIdentityLookup(tierUpstream, false)
		return nil, nil
	}
	metrics.RecordIdentityLookup(tierUpstream, true)
	c.loads.Add(1)

	stored := *ident
	stored.ID = id
	stored.ExpiresAt = c.now().Add(c.local.TTL())
	c.store(ctx, &stored)
	return &stored, nil
}

func (c *Cache) store(ctx context.Context, ident *Identity) {
	c.local.SetUntil(ident.ID, ident, ident.ExpiresAt)
	c.updateSizeMetric()
	if c.shared == nil {
		return
	}
	if err := c.shared.Set(ctx, ident); err != nil {
		c.logger.Warn().Err(err).Int64("actor_id", ident.ID).Msg("Shared identity tier write failed")
	}
}

// Put writes an identity through both tiers.
func (c *Cache) Put(ctx context.Context, id int64, username, displayName, email string) {
	c.store(ctx, &Identity{
		ID:          id,
		Username:    username,
		DisplayName: displayName,
		Email:       email,
		ExpiresAt:   c.now().Add(c.local.TTL()),
	})
}

// Evict removes id from both tiers.
func (c *Cache) Evict(ctx context.Context, id int64) {
	c.local.Delete(id)
	c.updateSizeMetric()
	if c.shared != nil {
		if err := c.shared.Delete(ctx, id); err != nil {
			c.logger.Warn().Err(err).Int64("actor_id", id).Msg("Shared identity tier delete failed")
		}
	}
}

// EvictAll empties both tiers.
func (c *Cache) EvictAll(ctx context.Context) {
	c.local.Clear()
	c.updateSizeMetric()
	if c.shared != nil {
		if err := c.shared.Clear(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Shared identity tier clear failed")
		}
	}
}

// WarmUp preloads ids from upstream and returns how many were loaded.
// Failures are logged per id and do not stop the rest.
func (c *Cache) WarmUp(ctx context.Context, ids []int64) int {
	loaded := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if c.warmOne(ctx, id) {
			loaded++
		}
	}
	c.logger.Info().Int("requested", len(ids)).Int("loaded", loaded).Msg("Identity cache warm-up complete")
	return loaded
}

func (c *Cache) warmOne(ctx context.Context, id int64) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Int64("actor_id", id).Msg("Identity warm-up panicked")
			ok = false
		}
	}()
	ident, err := c.load(ctx, id)
	if err != nil {
		c.logger.Warn().Err(err).Int64("actor_id", id).Msg("Identity warm-up failed")
		return false
	}
	return ident != nil
}

// ResolveActor implements audit.ActorResolver.
func (c *Cache) ResolveActor(ctx context.Context, id int64) (audit.Actor, bool) {
	ident, ok := c.Resolve(ctx, id)
	if !ok {
		return audit.Actor{}, false
	}
	return audit.Actor{ID: ident.ID, Username: ident.Username, DisplayName: ident.DisplayName}, true
}

// Statistics returns the current counters.
func (c *Cache) Statistics() Statistics {
	hits := c.hits.Load()
	misses := c.misses.Load()
	started := time.Unix(0, c.started.Load())

	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Statistics{
		Hits:        hits,
		Misses:      misses,
		Loads:       c.loads.Load(),
		HitRate:     rate,
		Uptime:      c.now().Sub(started),
		StartedAt:   started,
		Size:        c.local.Len(),
		Capacity:    c.local.Capacity(),
		Utilization: c.Utilization(),
	}
}

// Utilization returns local size over capacity. It can exceed 1.
func (c *Cache) Utilization() float64 {
	capacity := c.local.Capacity()
	if capacity == 0 {
		return 0
	}
	return float64(c.local.Len()) / float64(capacity)
}

// ResetStatistics zeroes the counters and restarts the uptime clock.
func (c *Cache) ResetStatistics() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.loads.Store(0)
	c.started.Store(c.now().UnixNano())
}

// Sweep removes expired local entries.
func (c *Cache) Sweep() int {
	n := c.local.Sweep()
	c.updateSizeMetric()
	return n
}

// Contains reports whether id has a live local entry. It does not count as
// a lookup.
func (c *Cache) Contains(id int64) bool {
	_, ok := c.local.Get(id)
	return ok
}

// SetEnabled turns caching on or off.
func (c *Cache) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
}

// Enabled reports whether caching is on.
func (c *Cache) Enabled() bool {
	return c.enabled.Load()
}

// Resize changes the local tier capacity.
func (c *Cache) Resize(capacity int) {
	c.local.Resize(capacity)
}

// SetTTL changes the lifetime applied to future writes.
func (c *Cache) SetTTL(ttl time.Duration) {
	c.local.SetTTL(ttl)
}

// Close releases the shared tier.
func (c *Cache) Close() error {
	if c.shared == nil {
		return nil
	}
	return c.shared.Close()
}

func (c *Cache) updateSizeMetric() {
	metrics.IdentityCacheSize.Set(float64(c.local.Len()))
}

var _ audit.ActorResolver = (*Cache)(nil)
