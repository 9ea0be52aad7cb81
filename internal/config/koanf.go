// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/zhengbinger/bing-frame-sub000/internal/dynconfig"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/bing-frame/config.yaml",
	"/etc/bing-frame/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			ActorHeader:     "X-User-Id",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Store:      StoreSQL,
			Driver:     "duckdb",
			Path:       "/data/audit.duckdb",
			MemoryRows: 100000,
		},
		Audit: dynconfig.DefaultSnapshot(),
		Buffer: BufferConfig{
			FailureBackoff:   time.Second,
			ShutdownAttempts: 3,
			ShutdownPause:    100 * time.Millisecond,
		},
		Capture: CaptureConfig{
			Enabled: true,
			Tail:    false,
		},
		Cache: CacheConfig{
			Shared:           SharedTierBadger,
			BadgerPath:       "",
			RedisURL:         "redis://127.0.0.1:6379/0",
			RedisPrefix:      "audit:",
			SweepInterval:    5 * time.Minute,
			BreakerThreshold: 5,
			BreakerTimeout:   30 * time.Second,
		},
		Notify: NotifyConfig{
			Transport:     TransportGoChannel,
			Topic:         "audit.config.changed",
			Source:        "",
			NATSURL:       "nats://127.0.0.1:4222",
			MaxReconnects: 10,
			ReconnectWait: 2 * time.Second,
		},
		Scheduler: SchedulerConfig{
			MonitorSpec:       dynconfig.DefaultMonitorSpec,
			ValidationSpec:    dynconfig.DefaultValidationSpec,
			RetentionInterval: time.Hour,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf with layered sources.
//
// Configuration sources (in order of priority, lowest to highest):
//  1. Default values (defined in defaultConfig())
//  2. Config file (config.yaml, if present)
//  3. Environment variables (highest priority)
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// AUDIT_BATCH_SIZE -> audit.batch_size
	// DATABASE_DRIVER -> database.driver
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.File = configPath

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
	"audit.sensitive_fields",
	"cache.warm_up_ids",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps accepted environment variables to koanf paths. Anything
// not listed is ignored.
var envMappings = map[string]string{
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	"cors_origins":       "security.cors_origins",
	"rate_limit_reqs":    "security.rate_limit_reqs",
	"rate_limit_window":  "security.rate_limit_window",
	"disable_rate_limit": "security.rate_limit_disabled",
	"actor_header":       "security.actor_header",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"database_store":       "database.store",
	"database_driver":      "database.driver",
	"database_path":        "database.path",
	"duckdb_path":          "database.path",
	"database_memory_rows": "database.memory_rows",

	"audit_enabled":                "audit.enabled",
	"audit_async_enabled":          "audit.async_enabled",
	"audit_dynamic_config_enabled": "audit.dynamic_config_enabled",
	"audit_notification_enabled":   "audit.notification_enabled",
	"audit_cache_enabled":          "audit.cache_enabled",
	"audit_buffer_pool_enabled":    "audit.buffer_pool_enabled",
	"audit_exception_handling":     "audit.exception_handling",
	"audit_batch_size":             "audit.batch_size",
	"audit_flush_interval":         "audit.flush_interval",
	"audit_queue_capacity":         "audit.queue_capacity",
	"audit_thread_pool_core":       "audit.thread_pool_core",
	"audit_thread_pool_max":        "audit.thread_pool_max",
	"audit_thread_pool_queue":      "audit.thread_pool_queue",
	"audit_thread_pool_keep_alive": "audit.thread_pool_keep_alive",
	"audit_level":                  "audit.audit_level",
	"audit_retry_count":            "audit.retry_count",
	"audit_retry_interval":         "audit.retry_interval",
	"audit_max_execution_time":     "audit.max_execution_time",
	"audit_dead_loop_guard":        "audit.dead_loop_guard",
	"audit_retention_days":         "audit.retention_days",
	"audit_identity_cache_size":    "audit.identity_cache_size",
	"audit_identity_cache_ttl":     "audit.identity_cache_ttl",
	"audit_field_filter_enabled":   "audit.field_filter_enabled",
	"audit_sensitive_fields":       "audit.sensitive_fields",

	"buffer_failure_backoff":   "buffer.failure_backoff",
	"buffer_shutdown_attempts": "buffer.shutdown_attempts",
	"buffer_shutdown_pause":    "buffer.shutdown_pause",

	"capture_enabled": "capture.enabled",
	"capture_tail":    "capture.tail",

	"cache_shared":            "cache.shared",
	"cache_badger_path":       "cache.badger_path",
	"redis_url":               "cache.redis_url",
	"redis_prefix":            "cache.redis_prefix",
	"cache_sweep_interval":    "cache.sweep_interval",
	"cache_warm_up_ids":       "cache.warm_up_ids",
	"cache_breaker_threshold": "cache.breaker_threshold",
	"cache_breaker_timeout":   "cache.breaker_timeout",

	"notify_transport":    "notify.transport",
	"notify_topic":        "notify.topic",
	"notify_source":       "notify.source",
	"nats_url":            "notify.nats_url",
	"nats_max_reconnects": "notify.max_reconnects",
	"nats_reconnect_wait": "notify.reconnect_wait",

	"monitor_spec":       "scheduler.monitor_spec",
	"validation_spec":    "scheduler.validation_spec",
	"retention_interval": "scheduler.retention_interval",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - AUDIT_BATCH_SIZE -> audit.batch_size
//   - DUCKDB_PATH -> database.path
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	// Unmapped keys are skipped so unrelated variables never leak in.
	return ""
}
