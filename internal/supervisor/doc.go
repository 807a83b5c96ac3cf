// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

/*
Package supervisor runs the long-lived services of the trust and safety
subsystem under a suture v4 supervisor tree.

	RootSupervisor ("fairplay")
	├── MessagingSupervisor ("messaging-layer")
	│   ├── event-bus                (watermill router for metric events)
	│   ├── notification-dispatcher  (webhook delivery queue)
	│   └── live-feed                (websocket hub for staff dashboards)
	├── WorkerSupervisor ("worker-layer")
	│   ├── audit-logger             (writes the security audit trail)
	│   ├── database-backup          (optional DuckDB snapshots)
	│   └── review-timeout-sweeper   (escalates overdue cases)
	└── APISupervisor ("api-layer")
	    └── http-server              (waits until the event bus is running)

Each layer restarts independently: a crashing webhook sink does not take
the API down, and a failing sweeper backs off without touching the bus.
Supervisor events are logged through sutureslog into the zerolog-backed
slog logger from internal/logging.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMessagingService(bus)
	tree.AddMessagingService(dispatcher)
	tree.AddWorkerService(services.NewSweeperService(cases, cfg.Sweeper.Interval))
	tree.AddAPIService(services.NewHTTPServerService(server, timeout).StartAfter(bus.Running()))
	err = tree.Serve(ctx)
*/
package supervisor
