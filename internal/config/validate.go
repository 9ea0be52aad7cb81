// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/zhengbinger/bing-frame-sub000/internal/dynconfig"
)

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateSecurity,
		c.validateLogging,
		c.validateDatabase,
		c.validateAudit,
		c.validateBuffer,
		c.validateCache,
		c.validateNotify,
		c.validateScheduler,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("security.rate_limit_reqs must be at least 1, got %d", c.Security.RateLimitReqs)
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("security.rate_limit_window must be positive")
	}
	if strings.TrimSpace(c.Security.ActorHeader) == "" {
		return fmt.Errorf("security.actor_header is required")
	}
	return nil
}

func (c *Config) validateLogging() error {
	levels := []string{"trace", "debug", "info", "warn", "error"}
	if !slices.Contains(levels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("logging.level must be one of %s, got %q", strings.Join(levels, ", "), c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Store {
	case StoreMemory:
		if c.Database.MemoryRows < 1 {
			return fmt.Errorf("database.memory_rows must be at least 1, got %d", c.Database.MemoryRows)
		}
		return nil
	case StoreSQL:
	default:
		return fmt.Errorf("database.store must be %s or %s, got %q", StoreSQL, StoreMemory, c.Database.Store)
	}
	if c.Database.Driver != "duckdb" && c.Database.Driver != "sqlite3" {
		return fmt.Errorf("database.driver must be duckdb or sqlite3, got %q", c.Database.Driver)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}

func (c *Config) validateAudit() error {
	if err := dynconfig.CheckSnapshot(c.Audit); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	return nil
}

func (c *Config) validateBuffer() error {
	if c.Buffer.ShutdownAttempts < 1 {
		return fmt.Errorf("buffer.shutdown_attempts must be at least 1, got %d", c.Buffer.ShutdownAttempts)
	}
	if c.Buffer.FailureBackoff < 0 || c.Buffer.ShutdownPause < 0 {
		return fmt.Errorf("buffer durations must not be negative")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Shared {
	case SharedTierNone, SharedTierBadger:
	case SharedTierRedis:
		u, err := url.Parse(c.Cache.RedisURL)
		if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			return fmt.Errorf("cache.redis_url must be a redis:// or rediss:// URL, got %q", c.Cache.RedisURL)
		}
	default:
		return fmt.Errorf("cache.shared must be none, badger or redis, got %q", c.Cache.Shared)
	}
	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("cache.sweep_interval must be positive")
	}
	for _, id := range c.Cache.WarmUpIDs {
		if id <= 0 {
			return fmt.Errorf("cache.warm_up_ids must be positive, got %d", id)
		}
	}
	return nil
}

func (c *Config) validateNotify() error {
	if c.Notify.Topic == "" {
		return fmt.Errorf("notify.topic is required")
	}
	switch c.Notify.Transport {
	case TransportGoChannel:
		return nil
	case TransportNATS:
		u, err := url.Parse(c.Notify.NATSURL)
		if err != nil || (u.Scheme != "nats" && u.Scheme != "tls") {
			return fmt.Errorf("notify.nats_url must be a nats:// or tls:// URL, got %q", c.Notify.NATSURL)
		}
		return nil
	default:
		return fmt.Errorf("notify.transport must be gochannel or nats, got %q", c.Notify.Transport)
	}
}

func (c *Config) validateScheduler() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"scheduler.monitor_spec":    c.Scheduler.MonitorSpec,
		"scheduler.validation_spec": c.Scheduler.ValidationSpec,
	} {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("%s: invalid cron spec %q: %w", name, spec, err)
		}
	}
	if c.Scheduler.RetentionInterval <= 0 {
		return fmt.Errorf("scheduler.retention_interval must be positive")
	}
	return nil
}
