// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

/*
Package middleware provides HTTP middleware shared by the management API and
by services that embed the audit Recorder.

Key Components:

  - RequestID: X-Request-ID propagation into the logging context
  - RequestContext: captures actor id, client IP and headers for audit enrichment
  - Provider: reads that capture back as an audit.RequestContext
  - PrometheusMetrics: request counters and latency histograms

Middleware Stack:

	handler := middleware.RequestID(
	    middleware.RequestContext("X-User-Id")(
	        middleware.PrometheusMetrics(next),
	    ),
	)

Client IP resolution checks X-Forwarded-For, Proxy-Client-IP and
WL-Proxy-Client-IP in that order, then falls back to RemoteAddr. Empty and
"unknown" values are skipped and the first address of a list wins.
*/
package middleware
