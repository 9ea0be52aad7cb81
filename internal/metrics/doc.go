// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

// Package metrics declares the Prometheus collectors for the audit pipeline.
//
// Collectors are registered with promauto at package init and exposed on
// /metrics by the API router. Components call the Record* helpers rather
// than touching collectors directly so label sets stay consistent.
//
// Metric families:
//   - audit_buffer_*: queue depth, flushes, degraded writes, losses
//   - audit_capture_*: lines parsed by the capture channel
//   - audit_dispatch_*: dispatch pool workers and caller-runs
//   - identity_cache_*: lookups by tier and result
//   - audit_config_*: config updates and listener failures
//   - api_*: management API latency
package metrics
