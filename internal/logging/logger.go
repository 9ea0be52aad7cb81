// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName is stamped on every operational line.
const ServiceName = "bing-frame"

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level for operational logs. Audit surface lines
	// are emitted regardless. Default: info
	Level string

	// Format is json or console. Default: json
	Format string

	Caller    bool
	Timestamp bool

	// Instance identifies this process when several share one audit store.
	// Default: the host name
	Instance string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var current atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits // packages log before main calls Init
func init() {
	Init(DefaultConfig())
}

// Init replaces the global logger. Safe to call more than once.
func Init(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	instance := cfg.Instance
	if instance == "" {
		instance, _ = os.Hostname()
	}

	lc := zerolog.New(out).With().Str("service", ServiceName)
	if instance != "" {
		lc = lc.Str("instance", instance)
	}
	if cfg.Timestamp {
		lc = lc.Timestamp()
	}
	if cfg.Caller {
		lc = lc.Caller()
	}
	l := lc.Logger()
	current.Store(&l)
}

// parseLevel maps a configured level name, falling back to info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	if level == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	return *current.Load()
}

// SetLogger replaces the global logger, mainly for tests.
//
//nolint:gocritic // zerolog.Logger is passed by value
func SetLogger(l zerolog.Logger) {
	current.Store(&l)
}

// With creates a child logger context.
func With() zerolog.Context {
	return current.Load().With()
}

func Debug() *zerolog.Event { return current.Load().Debug() }

// Info starts an info message.
//
//	logging.Info().Int("size", n).Msg("Audit buffer drained")
func Info() *zerolog.Event { return current.Load().Info() }

func Warn() *zerolog.Event { return current.Load().Warn() }

func Error() *zerolog.Event { return current.Load().Error() }

// Fatal logs and calls os.Exit(1).
func Fatal() *zerolog.Event { return current.Load().Fatal() }

// Err starts an error message carrying err.
func Err(err error) *zerolog.Event { return current.Load().Err(err) }

// GetLevel returns the operational log level.
func GetLevel() zerolog.Level {
	return zerolog.GlobalLevel()
}

// SetLevelString changes the operational log level at runtime.
func SetLevelString(level string) {
	zerolog.SetGlobalLevel(parseLevel(level))
}

// WithComponent returns a child logger tagged with a component name,
// e.g. "audit-buffer" or "identity-cache".
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}

// NewTestLogger writes to w without service fields.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
