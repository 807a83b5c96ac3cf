// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

/*
Package api is the HTTP surface of the trust and safety subsystem, built on
the Chi router.

Every endpoint returns the models.APIResponse envelope. Domain errors map to
status codes by kind:

	NotFound           404 NOT_FOUND
	InvalidState       409 INVALID_STATE
	ValidationFailure  422 VALIDATION_ERROR
	EligibilityDenied  403 ELIGIBILITY_DENIED
	CapacityExceeded   429 CAPACITY_EXCEEDED

The machine-checkable reason is returned in error.details.reason.

Middleware, outermost first: request id and logging context, real IP,
panic recovery, CORS; then for /api/v1 rate limiting, security headers,
Prometheus instrumentation, authentication, and per-route authorization.

Endpoints (all under /api/v1):

	POST /solutions/validate            solutions:write
	GET  /detections[/{id}]             detections:read
	GET  /cases[/{id}]                  cases:read
	POST /cases/{id}/assign|start|decision|escalate   cases:write
	POST /appeals, /appeals/{id}/withdraw             appeals:write
	GET  /appeals[/{id}]                appeals:read
	POST /appeals/{id}/assign|review    appeal_reviews:write
	POST /reports                       reports:write
	GET  /reports[/{id}]                reports:read
	POST /reports/{id}/votes            votes:write
	POST /reports/{id}/assign|moderate|escalate       report_moderation:write
	GET  /analytics/accuracy            analytics:read
	GET  /audit                         audit:read
	GET  /feed (websocket upgrade)      feed:read
	GET  /staff[/{id}], PUT /staff/{id} staff:read / staff:write

The caller is always taken from the authenticated subject; request bodies
cannot act on behalf of another user.
*/
package api
