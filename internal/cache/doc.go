// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

// Package cache provides the bounded TTL map behind the identity cache's
// local tier.
//
// Entries carry an absolute expiry. Reads never return an expired entry,
// but expired entries stay in the map until a sweep runs, either on
// admission at capacity or from the periodic sweeper service.
//
//	c := cache.New[int64, Identity](1000, 30*time.Minute)
//	c.Set(42, ident)
//	v, ok := c.Get(42)
package cache
