// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

/*
Package supervisor runs the long-lived parts of the audit pipeline under a
suture v4 supervisor tree.

The tree has three layers so that a failing component restarts without
taking its neighbours down:

	RootSupervisor ("bing-frame")
	├── PipelineSupervisor ("pipeline-layer")
	│   ├── buffer flusher
	│   ├── retention purger
	│   └── identity cache sweeper
	├── ControlSupervisor ("control-layer")
	│   ├── config scheduler (monitor and validation ticks)
	│   ├── config file watcher
	│   └── config change watcher (other instances)
	└── APISupervisor ("api-layer")
	    └── HTTP server

Supervisor events are logged through sutureslog on top of the zerolog slog
adapter in internal/logging.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	tree.AddPipelineService(services.NewLoopService("audit-buffer-flusher", buffer.Run))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	err = tree.Serve(ctx)
*/
package supervisor
