// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

/*
Package audit records security-relevant events: failed authentication,
authorization denials, and changes to the staff directory.

Events are handed to a Logger, buffered in a channel, and written to a
Store by the Logger's Serve loop, which runs under the supervisor tree.
Log never blocks a request; when the buffer is full the event is dropped
and counted in fairplay_audit_events_total{result="dropped"}.

The HTTP layer wires the Logger in three places:

	auth.Middleware.WithAuditor      -> RecordAuthFailure
	authz.Middleware.WithAuditor     -> RecordAuthzDenied
	api PUT /staff/{id}              -> RecordStaffChange

Administrators read the trail through GET /api/v1/audit.
*/
package audit
