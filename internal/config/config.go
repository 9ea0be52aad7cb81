// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package config

import (
	"net"
	"strconv"
	"time"

	"github.com/zhengbinger/bing-frame-sub000/internal/dynconfig"
)

// Shared identity tier kinds.
const (
	SharedTierNone   = "none"
	SharedTierBadger = "badger"
	SharedTierRedis  = "redis"
)

// Notification transports.
const (
	TransportGoChannel = "gochannel"
	TransportNATS      = "nats"
)

// Row store kinds.
const (
	StoreSQL    = "sql"
	StoreMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig       `koanf:"server"`
	Security   SecurityConfig     `koanf:"security"`
	Logging    LoggingConfig      `koanf:"logging"`
	Database   DatabaseConfig     `koanf:"database"`
	Audit      dynconfig.Snapshot `koanf:"audit"`
	Buffer     BufferConfig       `koanf:"buffer"`
	Capture    CaptureConfig      `koanf:"capture"`
	Cache      CacheConfig        `koanf:"cache"`
	Notify     NotifyConfig       `koanf:"notify"`
	Scheduler  SchedulerConfig    `koanf:"scheduler"`
	Supervisor SupervisorConfig   `koanf:"supervisor"`

	// Path of the YAML file that was loaded, empty when none was found.
	File string `koanf:"-"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SecurityConfig holds CORS and rate limiting for the management API.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	// Header carrying the acting user id for management and recorded requests.
	ActorHeader string `koanf:"actor_header"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// DatabaseConfig selects the persistence database.
type DatabaseConfig struct {
	// Store is sql or memory. memory keeps rows in process and is meant
	// for development.
	Store  string `koanf:"store"`
	Driver string `koanf:"driver"` // duckdb or sqlite3
	Path   string `koanf:"path"`
	// Capacity of the memory store.
	MemoryRows int `koanf:"memory_rows"`
}

// BufferConfig holds the fixed parts of the Buffer & Batcher. Everything
// tunable at runtime lives in the audit snapshot.
type BufferConfig struct {
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownAttempts int           `koanf:"shutdown_attempts"`
	ShutdownPause    time.Duration `koanf:"shutdown_pause"`
}

// CaptureConfig controls the structured logging surface.
type CaptureConfig struct {
	// Enabled routes facade entries through the audit surface and the
	// Capture Channel instead of straight into the buffer.
	Enabled bool `koanf:"enabled"`
	// Tail copies audit surface lines to stdout.
	Tail bool `koanf:"tail"`
}

// CacheConfig configures the identity cache's shared tier.
type CacheConfig struct {
	Shared        string        `koanf:"shared"`
	BadgerPath    string        `koanf:"badger_path"`
	RedisURL      string        `koanf:"redis_url"`
	RedisPrefix   string        `koanf:"redis_prefix"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	WarmUpIDs     []int64       `koanf:"warm_up_ids"`

	BreakerThreshold uint32        `koanf:"breaker_threshold"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout"`
}

// NotifyConfig selects the config-change notification transport.
type NotifyConfig struct {
	Transport     string        `koanf:"transport"`
	Topic         string        `koanf:"topic"`
	Source        string        `koanf:"source"`
	NATSURL       string        `koanf:"nats_url"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// SchedulerConfig holds cron specs for periodic work.
type SchedulerConfig struct {
	MonitorSpec       string        `koanf:"monitor_spec"`
	ValidationSpec    string        `koanf:"validation_spec"`
	RetentionInterval time.Duration `koanf:"retention_interval"`
}

// SupervisorConfig mirrors suture.Spec.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
