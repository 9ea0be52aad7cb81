// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/zhengbinger/bing-frame-sub000/internal/api"
	"github.com/zhengbinger/bing-frame-sub000/internal/audit"
	"github.com/zhengbinger/bing-frame-sub000/internal/capture"
	"github.com/zhengbinger/bing-frame-sub000/internal/config"
	"github.com/zhengbinger/bing-frame-sub000/internal/database"
	"github.com/zhengbinger/bing-frame-sub000/internal/dispatch"
	"github.com/zhengbinger/bing-frame-sub000/internal/dynconfig"
	"github.com/zhengbinger/bing-frame-sub000/internal/identity"
	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
	"github.com/zhengbinger/bing-frame-sub000/internal/notify"
)

// openStore opens the audit store and the identity resolver behind it.
// The memory store has no identity table, so every lookup misses.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (audit.Store, identity.Resolver, func(), error) {
	if cfg.Store == config.StoreMemory {
		logging.Warn().Int("max_rows", cfg.MemoryRows).Msg("Using in-memory audit store; entries do not survive restart")
		none := identity.ResolverFunc(func(context.Context, int64) (*identity.Identity, error) {
			return nil, nil
		})
		return audit.NewMemoryStore(cfg.MemoryRows), none, func() {}, nil
	}

	db, err := database.New(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	store := audit.NewSQLStore(db.Conn(), db.Dialect())
	resolver := identity.NewSQLResolver(db.Conn())
	if err := db.Migrate(ctx, store, resolver); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error().Err(closeErr).Msg("Error closing database")
		}
		return nil, nil, nil, fmt.Errorf("migrate: %w", err)
	}
	logging.Info().Str("path", db.Path()).Msg("Audit database ready")

	closeFn := func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}
	return store, resolver, closeFn, nil
}

func newDispatchPool(s dynconfig.Snapshot) *dispatch.Pool {
	return dispatch.New(dispatch.Config{
		Name:          "audit-dispatch",
		CoreWorkers:   s.PoolCore,
		MaxWorkers:    s.PoolMax,
		QueueCapacity: s.PoolQueue,
		KeepAlive:     s.PoolKeepAlive,
	})
}

func newBuffer(store audit.Mapper, s dynconfig.Snapshot, cfg config.BufferConfig) *audit.Buffer {
	return audit.NewBuffer(store, audit.BufferConfig{
		Capacity:         s.QueueCapacity,
		BatchSize:        s.BatchSize,
		FlushInterval:    s.FlushInterval,
		FailureBackoff:   cfg.FailureBackoff,
		RetryCount:       s.RetryCount,
		RetryInterval:    s.RetryInterval,
		PersistTimeout:   s.PersistTimeout(),
		ShutdownAttempts: cfg.ShutdownAttempts,
		ShutdownPause:    cfg.ShutdownPause,
	})
}

// newIdentityCache builds the two-tier cache. An unreachable shared tier is
// logged and skipped.
func newIdentityCache(ctx context.Context, upstream identity.Resolver, s dynconfig.Snapshot, cfg config.CacheConfig) (*identity.Cache, error) {
	breaker := identity.DefaultBreakerConfig()
	if cfg.BreakerThreshold > 0 {
		breaker.FailureThreshold = cfg.BreakerThreshold
	}
	if cfg.BreakerTimeout > 0 {
		breaker.Timeout = cfg.BreakerTimeout
	}

	var opts []identity.Option
	tier, err := openSharedTier(ctx, cfg)
	switch {
	case err != nil:
		logging.Warn().Err(err).Str("tier", cfg.Shared).Msg("Shared identity tier unavailable, using local tier only")
	case tier != nil:
		opts = append(opts, identity.WithSharedTier(tier))
	}

	return identity.New(identity.NewBreakerResolver(upstream, breaker), identity.Config{
		Enabled:  s.CacheEnabled,
		Capacity: s.IdentityCache,
		TTL:      s.IdentityTTL,
	}, opts...)
}

func openSharedTier(ctx context.Context, cfg config.CacheConfig) (identity.SharedTier, error) {
	switch cfg.Shared {
	case config.SharedTierBadger:
		return identity.OpenBadgerTier(cfg.BadgerPath)
	case config.SharedTierRedis:
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return identity.OpenRedisTier(pingCtx, cfg.RedisURL, cfg.RedisPrefix)
	default:
		return nil, nil
	}
}

// openPubSub opens the config-change transport.
func openPubSub(cfg config.NotifyConfig) (notify.PubSub, error) {
	if cfg.Transport == config.TransportNATS {
		ps, err := notify.NewNATS(notify.NATSConfig{
			URL:           cfg.NATSURL,
			MaxReconnects: cfg.MaxReconnects,
			ReconnectWait: cfg.ReconnectWait,
		})
		if err != nil {
			return nil, err
		}
		logging.Info().Str("url", cfg.NATSURL).Msg("Config changes published over NATS")
		return ps, nil
	}
	return notify.NewGoChannel(), nil
}

// switchExecutor runs tasks on the pool while async dispatch is on and on
// the caller otherwise.
type switchExecutor struct {
	pool  audit.Executor
	async func() bool
}

func (e switchExecutor) Submit(task func()) {
	if e.async() {
		e.pool.Submit(task)
		return
	}
	task()
}

// asyncDispatch reports whether entries are handed to the pool.
func asyncDispatch(m *dynconfig.Manager) func() bool {
	return func() bool {
		s := m.Current()
		return s.AsyncEnabled && s.BufferPoolEnabled
	}
}

// newSink picks the recorder's single sink. With capture on, entries are
// written to the audit surface and the capture channel parses them back
// into the buffer. tail, when capture.tail is set, receives a copy of every
// surface line and never persists.
func newSink(cfg config.CaptureConfig, m *dynconfig.Manager, buffer *audit.Buffer, pool audit.Executor, tail io.Writer) audit.Sink {
	if !cfg.Enabled {
		return audit.NewBufferSink(buffer, pool, asyncDispatch(m))
	}
	writers := []io.Writer{capture.New(buffer, switchExecutor{pool: pool, async: asyncDispatch(m)})}
	if cfg.Tail && tail != nil {
		writers = append(writers, tail)
	}
	return audit.NewSurfaceSink(logging.NewAuditSurface(writers...))
}

func chiConfig(cfg config.SecurityConfig) *api.ChiMiddlewareConfig {
	c := api.DefaultChiMiddlewareConfig()
	c.CORSAllowedOrigins = cfg.CORSOrigins
	if cfg.RateLimitReqs > 0 {
		c.RateLimitRequests = cfg.RateLimitReqs
	}
	if cfg.RateLimitWindow > 0 {
		c.RateLimitWindow = cfg.RateLimitWindow
	}
	c.RateLimitDisabled = cfg.RateLimitDisabled
	if cfg.ActorHeader != "" {
		c.ActorHeader = cfg.ActorHeader
	}
	return c
}

// shutdown stops the pool so queued dispatches reach the buffer, then
// drains the buffer. It is the only drain; Buffer.Run returns on cancel.
func shutdown(buffer *audit.Buffer, pool *dispatch.Pool, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := pool.Close(ctx); err != nil {
		logging.Warn().Err(err).Msg("Dispatch pool did not finish queued work")
	}
	buffer.ShutdownDrain(ctx)
}
