// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Buffer & Batcher
	BufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_buffer_size",
			Help: "Number of audit entries waiting in the buffer",
		},
	)

	BufferFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_buffer_flushes_total",
			Help: "Total number of batch flushes by outcome",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	BufferFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audit_buffer_flush_duration_seconds",
			Help:    "Duration of batch persist calls in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	BufferEntriesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_buffer_entries_persisted_total",
			Help: "Total number of audit entries persisted through batch flushes",
		},
	)

	BufferDegradedWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_buffer_degraded_writes_total",
			Help: "Total number of direct single-entry writes taken because the buffer was full",
		},
		[]string{"outcome"},
	)

	BufferEntriesLost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_buffer_entries_lost_total",
			Help: "Total number of audit entries dropped",
		},
		[]string{"reason"}, // "requeue_full", "shutdown"
	)

	// Capture Channel
	CaptureLines = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_capture_lines_total",
			Help: "Total number of audit lines seen by the capture channel",
		},
		[]string{"result"}, // "dispatched", "ignored", "invalid", "rejected"
	)

	// Dispatch pool
	DispatchWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_dispatch_workers",
			Help: "Number of live dispatch pool workers",
		},
	)

	DispatchCallerRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_dispatch_caller_runs_total",
			Help: "Total number of tasks run on the submitting goroutine because the pool was saturated",
		},
	)

	DispatchPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_dispatch_panics_total",
			Help: "Total number of recovered panics in dispatched tasks",
		},
	)

	// Identity Cache
	IdentityLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_cache_lookups_total",
			Help: "Total number of identity lookups by tier and result",
		},
		[]string{"tier", "result"}, // tier: "local", "shared", "upstream"
	)

	IdentityCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "identity_cache_local_size",
			Help: "Number of entries in the local identity tier",
		},
	)

	// Config Store
	ConfigUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_config_updates_total",
			Help: "Total number of config update attempts by outcome",
		},
		[]string{"outcome"}, // "applied", "rejected", "failed"
	)

	ConfigListenerFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_config_listener_failures_total",
			Help: "Total number of config listener or notifier failures",
		},
	)

	ConfigVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_config_version",
			Help: "Sequence number of the live config snapshot",
		},
	)

	// Management API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of API requests currently being served",
		},
	)

	HTTPAuditEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_http_entries_total",
			Help: "Requests seen by the HTTP audit middleware by effective level",
		},
		[]string{"level"},
	)
)

// RecordFlush records the outcome of one batch persist.
func RecordFlush(batchSize int, duration time.Duration, err error) {
	BufferFlushDuration.Observe(duration.Seconds())
	if err != nil {
		BufferFlushes.WithLabelValues("failure").Inc()
		return
	}
	BufferFlushes.WithLabelValues("success").Inc()
	BufferEntriesPersisted.Add(float64(batchSize))
}

// RecordDegradedWrite records a direct write taken on a full buffer.
func RecordDegradedWrite(err error) {
	if err != nil {
		BufferDegradedWrites.WithLabelValues("failure").Inc()
		return
	}
	BufferDegradedWrites.WithLabelValues("success").Inc()
}

// RecordLost records entries dropped for reason.
func RecordLost(reason string, n int) {
	if n <= 0 {
		return
	}
	BufferEntriesLost.WithLabelValues(reason).Add(float64(n))
}

// RecordCaptureLine records how the capture channel handled one line.
func RecordCaptureLine(result string) {
	CaptureLines.WithLabelValues(result).Inc()
}

// RecordIdentityLookup records an identity cache lookup.
func RecordIdentityLookup(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	IdentityLookups.WithLabelValues(tier, result).Inc()
}

// RecordConfigUpdate records a config update attempt.
func RecordConfigUpdate(outcome string) {
	ConfigUpdates.WithLabelValues(outcome).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// RecordHTTPAudit counts one request at its effective audit level.
func RecordHTTPAudit(level string) {
	HTTPAuditEntries.WithLabelValues(level).Inc()
}
