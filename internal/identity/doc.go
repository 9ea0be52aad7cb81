// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

/*
Package identity resolves actor ids to display identities through a
two-tier read-through cache.

Lookup order for Cache.Resolve:

 1. Local tier: a bounded in-process map (internal/cache). Hits return
    immediately.
 2. Shared tier: an optional SharedTier (BadgerTier or RedisTier) shared by
    every process. Hits backfill the local tier.
 3. Upstream: a Resolver, typically SQLResolver wrapped in BreakerResolver.
    Concurrent misses for one id share a single upstream call.

Entries expire a fixed TTL after they were written; reads never extend
them. An absent upstream result is not cached, so the next call retries
upstream.

Upstream failures are treated as misses. Callers see absence, never an error.
*/
package identity
