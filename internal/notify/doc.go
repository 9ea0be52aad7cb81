// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

// Package notify publishes config-change events over watermill.
//
// A Notifier satisfies dynconfig.Notifier. Events go to one topic, either on
// an in-process gochannel or on NATS. A Watcher subscribes to the same topic
// and reports events published by other instances. The composition root
// uses this to flag the local config as unsynced.
package notify
