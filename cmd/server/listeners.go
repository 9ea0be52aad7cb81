// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package main

import (
	"github.com/zhengbinger/bing-frame-sub000/internal/audit"
	"github.com/zhengbinger/bing-frame-sub000/internal/dispatch"
	"github.com/zhengbinger/bing-frame-sub000/internal/dynconfig"
	"github.com/zhengbinger/bing-frame-sub000/internal/identity"
	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
)

// Snapshot keys each component reacts to.
var (
	poolKeys   = keySet("threadPoolCore", "threadPoolMax", "threadPoolKeepAlive")
	bufferKeys = keySet("batchSize", "flushInterval", "queueCapacity", "retryCount", "retryInterval", "maxExecutionTime", "deadLoopGuard")
	cacheKeys  = keySet("cacheEnabled", "identityCacheSize", "identityCacheTtl")
)

func keySet(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

// registerRetuning keeps the pool, buffer and cache in step with the live
// snapshot. Each listener re-reads the whole snapshot so paired keys such
// as core and max are applied together.
func registerRetuning(m *dynconfig.Manager, pool *dispatch.Pool, buffer *audit.Buffer, cache *identity.Cache) {
	m.AddListener("dispatch-pool", dynconfig.ListenerFunc(func(key string, _, _ interface{}) {
		if !poolKeys[key] {
			return
		}
		s := m.Current()
		if err := pool.Resize(s.PoolCore, s.PoolMax, s.PoolKeepAlive); err != nil {
			logging.Warn().Err(err).Msg("Dispatch pool resize rejected")
		}
	}))

	m.AddListener("audit-buffer", dynconfig.ListenerFunc(func(key string, _, _ interface{}) {
		if !bufferKeys[key] {
			return
		}
		s := m.Current()
		buffer.SetBatchSize(s.BatchSize)
		buffer.SetFlushInterval(s.FlushInterval)
		buffer.SetCapacity(s.QueueCapacity)
		buffer.SetRetryPolicy(s.RetryCount, s.RetryInterval)
		buffer.SetPersistTimeout(s.PersistTimeout())
	}))

	m.AddListener("identity-cache", dynconfig.ListenerFunc(func(key string, _, _ interface{}) {
		if !cacheKeys[key] {
			return
		}
		s := m.Current()
		cache.SetEnabled(s.CacheEnabled)
		cache.Resize(s.IdentityCache)
		cache.SetTTL(s.IdentityTTL)
	}))
}
