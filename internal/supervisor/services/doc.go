// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

/*
Package services adapts pipeline components to suture.Service.

Each wrapper turns a component lifecycle into Serve(ctx) error and names
itself through fmt.Stringer for supervisor logs:

  - HTTPServerService: ListenAndServe with graceful Shutdown.
  - LoopService: a blocking Run(ctx) error loop such as the audit buffer
    flusher or the retention purger.
  - TickerService: a task invoked on a fixed interval, such as the identity
    cache sweep.

A wrapper returning ctx.Err() after cancellation is a clean stop. Any
other return is a failure and suture restarts the service with backoff.
*/
package services
