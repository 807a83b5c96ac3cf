// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package audit

import (
	"context"
	"time"
)

// EventType categorizes audit events.
type EventType string

const (
	EventTypeAuthFailure  EventType = "auth.failure"
	EventTypeAuthzDenied  EventType = "authz.denied"
	EventTypeStaffUpdated EventType = "staff.updated"
)

// Severity indicates how urgently an event deserves attention.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Outcome indicates whether the audited action went through.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one audit record.
type Event struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Type          EventType `json:"type"`
	Severity      Severity  `json:"severity"`
	Outcome       Outcome   `json:"outcome"`
	Actor         Actor     `json:"actor"`
	Target        *Target   `json:"target,omitempty"`
	Source        Source    `json:"source"`
	Action        string    `json:"action"`
	Description   string    `json:"description"`
	RequestID     string    `json:"request_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// Actor is who performed the action. ID is empty for anonymous callers.
type Actor struct {
	ID    string   `json:"id,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// Target is the object of an action.
type Target struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Source is where the request came from.
type Source struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent,omitempty"`
}

// QueryFilter selects events. Results are newest first.
type QueryFilter struct {
	Types    []EventType
	ActorID  string
	TargetID string
	Since    *time.Time
	Limit    int
	Offset   int
}

// Store persists audit events.
type Store interface {
	Save(ctx context.Context, event *Event) error
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
	// Delete removes events older than olderThan and returns how many went.
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
}
