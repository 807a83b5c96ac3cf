// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

/*
Package websocket streams trust and safety activity to staff dashboards.

The Hub is an events.Consumer: every metric event the bus persists (case
opened, verdict recorded, appeal resolved, report consensus, and so on) is
broadcast to connected clients as a JSON message:

	{"type": "metric_event", "data": {"id": "...", "type": "case_opened", ...}}

Clients connect to GET /api/v1/feed, which is gated on the feed:read
permission. Reviewers and moderators hold it; players do not.

Delivery is best effort. A client whose send buffer fills is disconnected
rather than slowing the bus, and clients reconnect to resume. Clients may
send {"type": "ping"} and receive {"type": "pong"}.

The Hub runs under the supervisor tree as "live-feed". When its context is
canceled every client receives a close frame.
*/
package websocket
