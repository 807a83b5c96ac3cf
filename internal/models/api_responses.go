// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package models

import (
	"time"
)

// APIResponse is the envelope every HTTP endpoint returns.
//
// Status is "success" (see Data) or "error" (see Error):
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "ELIGIBILITY_DENIED",
//	    "message": "appeal window closed (appeal_window_expired)",
//	    "details": {"reason": "appeal_window_expired"}
//	  },
//	  "metadata": {"timestamp": "2026-03-01T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Count       int       `json:"count,omitempty"`
}

// APIError is the machine-readable error body.
//
// Codes:
//   - VALIDATION_ERROR: malformed request or domain content
//   - NOT_FOUND: unknown case, appeal, report or reviewer
//   - INVALID_STATE: operation outside its legal state
//   - ELIGIBILITY_DENIED: rate limit, reputation floor, window or duplicate
//   - CAPACITY_EXCEEDED: reviewer or moderator at load ceiling
//   - AUTHENTICATION_ERROR / AUTHORIZATION_ERROR
//   - INTERNAL_ERROR
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
