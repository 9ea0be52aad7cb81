// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

/*
Package dynconfig holds the live audit pipeline tunables and their history.

A Manager owns one live Snapshot. Update validates a candidate, records it
as a new History Record, swaps it in, and tells every registered Listener
which fields changed. Rollback re-applies a recorded Snapshot as a new
update; history itself is never rewritten. History keeps the last 100
records.

Validation runs in two stages. Struct tags (validator/v10) bound every
field and require threadPoolMax > threadPoolCore. A pluggable Validator then
decides, and without one the built-in rule requires retryInterval >= 100ms
whenever retryCount > 0.

Readers call Current and never block: the live Snapshot sits behind an
atomic pointer. Writers are serialized by a mutex.

The Scheduler drives two background ticks with robfig/cron: a monitor tick
that asks an optional DriftDetector whether the source configuration
changed, and a validation tick that re-checks the live Snapshot and only
logs.

Export and Import are intentionally narrow. Export writes a small flat JSON
projection; Import applies only the keys it recognizes. They do not round
trip a full Snapshot.
*/
package dynconfig
