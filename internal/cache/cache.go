// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package cache

import (
	"sync"
	"time"
)

// Entry is a cached value with its absolute expiry.
type Entry[V any] struct {
	Data      V
	ExpiresAt time.Time
}

// Expired reports whether the entry is dead at now.
func (e Entry[V]) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Stats holds counters for one cache.
type Stats struct {
	Evictions   int64
	Sweeps      int64
	TotalKeys   int64
	Capacity    int
	LastCleanup time.Time
}

// Cache is a bounded map with absolute per-entry expiry.
//
// Expiry is decided by clock comparison at read time. When a write arrives
// at capacity the cache first sweeps expired entries, then admits the write
// regardless; there is no recency eviction, so the map may exceed capacity
// until entries age out.
type Cache[K comparable, V any] struct {
	mu       sync.RWMutex
	entries  map[K]Entry[V]
	ttl      time.Duration
	capacity int
	now      func() time.Time
	stats    Stats
}

// Option configures a Cache.
type Option[K comparable, V any] func(*Cache[K, V])

// WithClock overrides the time source.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) { c.now = now }
}

// New creates a cache holding roughly capacity entries for ttl each.
func New[K comparable, V any](capacity int, ttl time.Duration, opts ...Option[K, V]) *Cache[K, V] {
	if capacity <= 0 {
		capacity = 1000
	}
	c := &Cache[K, V]{
		entries:  make(map[K]Entry[V], capacity),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.stats.LastCleanup = c.now()
	return c
}

// Get returns the live value for key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists || entry.Expired(c.now()) {
		var zero V
		return zero, false
	}
	return entry.Data, true
}

// Set stores value with the default TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetUntil(key, value, c.now().Add(c.TTL()))
}

// SetUntil stores value with an explicit expiry.
func (c *Cache[K, V]) SetUntil(key K, value V, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.sweepLocked()
	}
	c.entries[key] = Entry[V]{Data: value, ExpiresAt: expiresAt}
	c.stats.TotalKeys = int64(len(c.entries))
}

// Delete removes key.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.stats.Evictions++
		c.stats.TotalKeys = int64(len(c.entries))
	}
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	c.stats.Evictions += int64(len(c.entries))
	c.entries = make(map[K]Entry[V], c.capacity)
	c.stats.TotalKeys = 0
	c.mu.Unlock()
}

// Sweep removes expired entries and returns how many were removed.
func (c *Cache[K, V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked()
}

func (c *Cache[K, V]) sweepLocked() int {
	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	c.stats.Evictions += int64(removed)
	c.stats.Sweeps++
	c.stats.TotalKeys = int64(len(c.entries))
	c.stats.LastCleanup = now
	return removed
}

// Len returns the number of physically present entries, expired or not.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Capacity returns the nominal capacity.
func (c *Cache[K, V]) Capacity() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capacity
}

// TTL returns the default time to live.
func (c *Cache[K, V]) TTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ttl
}

// Resize changes the nominal capacity. Existing entries are kept.
func (c *Cache[K, V]) Resize(capacity int) {
	if capacity <= 0 {
		return
	}
	c.mu.Lock()
	c.capacity = capacity
	c.mu.Unlock()
}

// SetTTL changes the default TTL for future writes.
func (c *Cache[K, V]) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

// GetStats returns a copy of the counters.
func (c *Cache[K, V]) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Capacity = c.capacity
	return s
}
