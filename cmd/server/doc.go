// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

/*
Command server runs the audit trail pipeline as a standalone service.

Startup order:

 1. Configuration: koanf layers defaults, an optional YAML file
    (CONFIG_PATH) and environment variables, then validates the result.
 2. Logging: zerolog configured from the logging section.
 3. Store: DuckDB (default) or SQLite through database/sql, or an
    in-process memory store when database.store is "memory".
 4. Pipeline: dispatch pool, buffer, identity cache (with a Badger or
    Redis shared tier and a circuit breaker in front of the identity
    table) and the live config manager.
 5. Recording: the recorder writes either to the audit surface, whose
    lines the capture channel feeds to the buffer, or straight to the
    buffer when capture.enabled is false.
 6. Supervision: buffer flusher, retention, cache sweeper, config
    scheduler, file and change watchers and the HTTP server run under a
    suture tree until SIGINT or SIGTERM.

On shutdown the tree stops (the flusher abandons any retry in progress and
requeues its batch), the dispatch pool finishes queued work, the buffer is
drained once within supervisor.shutdown_timeout and the stores close.
Entries still queued or held by a stuck flush at the deadline are logged
and counted as lost.

Example:

	CONFIG_PATH=./config.yaml DUCKDB_PATH=/var/lib/bing-frame/audit.duckdb ./server
*/
package main
