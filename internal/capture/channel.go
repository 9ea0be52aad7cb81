// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package capture

import (
	"bytes"
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/zhengbinger/bing-frame-sub000/internal/audit"
	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
	"github.com/zhengbinger/bing-frame-sub000/internal/metrics"
)

// Line outcomes recorded in metrics.
const (
	resultDispatched = "dispatched"
	resultIgnored    = "ignored"
	resultInvalid    = "invalid"
	resultRejected   = "rejected"
)

type envelope struct {
	Logger        string `json:"logger"`
	Message       string `json:"message"`
	Time          string `json:"time"`
	OperationTime *int64 `json:"operationTime"`
	EntryID       string `json:"entryId"`
	Error         string `json:"error"`
}

// Channel parses audit surface lines and dispatches them to a buffer.
type Channel struct {
	buf    audit.Enqueuer
	exec   audit.Executor
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Channel.
type Option func(*Channel)

// WithClock overrides the time source used when a line carries no time.
func WithClock(now func() time.Time) Option {
	return func(c *Channel) { c.now = now }
}

// New creates a channel enqueueing onto buf. Dispatch runs on exec when it
// is non-nil, otherwise on the writing goroutine.
func New(buf audit.Enqueuer, exec audit.Executor, opts ...Option) *Channel {
	c := &Channel{
		buf:    buf,
		exec:   exec,
		now:    time.Now,
		logger: logging.WithComponent("audit-capture"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Write implements io.Writer. It always reports the full length written.
func (c *Channel) Write(p []byte) (int, error) {
	n := len(p)
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordCaptureLine(resultInvalid)
			c.logger.Error().Interface("panic", r).Msg("Audit capture panicked")
		}
	}()

	entry, ok := c.Parse(p)
	if !ok {
		return n, nil
	}
	c.dispatch(entry)
	return n, nil
}

// WriteLevel implements zerolog.LevelWriter.
func (c *Channel) WriteLevel(_ zerolog.Level, p []byte) (int, error) {
	return c.Write(p)
}

// Parse decodes one surface line. It reports false for lines that are not
// audit lines or not JSON.
func (c *Channel) Parse(p []byte) (*audit.Entry, bool) {
	p = bytes.TrimSpace(p)
	if len(p) == 0 {
		metrics.RecordCaptureLine(resultIgnored)
		return nil, false
	}

	// zerolog reuses p once Write returns; decoded strings must not alias it.
	p = bytes.Clone(p)

	var env envelope
	if err := json.Unmarshal(p, &env); err != nil {
		metrics.RecordCaptureLine(resultInvalid)
		c.logger.Debug().Err(err).Msg("Audit capture skipped non-JSON line")
		return nil, false
	}
	if env.Logger != logging.AuditLoggerName {
		metrics.RecordCaptureLine(resultIgnored)
		return nil, false
	}

	entry := audit.ParseLine(env.Message)
	entry.ID = env.EntryID
	entry.OperationTime = c.timestamp(&env)

	if env.Error != "" {
		entry.Result = audit.ResultFailure
		entry.ErrorMessage = env.Error
	}
	entry.Normalize(c.now())
	return entry, true
}

func (c *Channel) timestamp(env *envelope) time.Time {
	if env.OperationTime != nil {
		return time.UnixMilli(*env.OperationTime)
	}
	if env.Time != "" {
		if t, err := time.Parse(time.RFC3339Nano, env.Time); err == nil {
			return t
		}
	}
	return c.now()
}

func (c *Channel) dispatch(entry *audit.Entry) {
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error().Interface("panic", r).Str("entry_id", entry.ID).Msg("Audit dispatch panicked")
			}
		}()
		if !c.buf.Enqueue(context.Background(), entry) {
			metrics.RecordCaptureLine(resultRejected)
			c.logger.Warn().Str("entry_id", entry.ID).Str("module", entry.Module).Msg("Captured audit entry not persisted")
			return
		}
		metrics.RecordCaptureLine(resultDispatched)
	}

	if c.exec == nil {
		task()
		return
	}
	c.exec.Submit(task)
}

var _ zerolog.LevelWriter = (*Channel)(nil)
