// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain failure.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInvalidState      ErrorKind = "invalid_state"
	KindValidationFailure ErrorKind = "validation_failure"
	KindEligibilityDenied ErrorKind = "eligibility_denied"
	KindCapacityExceeded  ErrorKind = "capacity_exceeded"
)

// Machine-checkable failure reasons.
const (
	ReasonCaseNotFound           = "case_not_found"
	ReasonAppealNotFound         = "appeal_not_found"
	ReasonReportNotFound         = "report_not_found"
	ReasonReviewerNotFound       = "reviewer_not_found"
	ReasonDetectionNotFound      = "detection_not_found"
	ReasonIllegalTransition      = "illegal_transition"
	ReasonConcurrentModification = "concurrent_modification"
	ReasonNotAssignedReviewer    = "not_assigned_reviewer"
	ReasonReviewerInactive       = "reviewer_inactive"
	ReasonReviewerTierTooLow     = "reviewer_tier_too_low"
	ReasonReviewerNotIndependent = "reviewer_not_independent"
	ReasonReviewerAtCapacity     = "reviewer_at_capacity"
	ReasonModeratorAtCapacity    = "moderator_at_capacity"
	ReasonInvalidDecision        = "invalid_decision"
	ReasonInvalidEscalation      = "invalid_escalation"
	ReasonReasoningTooShort      = "reasoning_too_short"
	ReasonConfidenceBelowFloor   = "confidence_below_floor"
	ReasonInvalidEvidence        = "invalid_evidence"
	ReasonInvalidReport          = "invalid_report"
	ReasonInvalidVote            = "invalid_vote"
	ReasonCaseNotAppealable      = "case_not_appealable"
	ReasonAppealWindowExpired    = "appeal_window_expired"
	ReasonDuplicateAppeal        = "duplicate_appeal"
	ReasonAnnualAppealLimit      = "annual_appeal_limit"
	ReasonNotAppellant           = "not_appellant"
	ReasonReputationTooLow       = "reputation_too_low"
	ReasonDailyReportLimit       = "daily_report_limit"
	ReasonAbuseScoreTooHigh      = "abuse_score_too_high"
	ReasonDuplicateReport        = "duplicate_report"
	ReasonSelfReport             = "self_report"
	ReasonDuplicateVote          = "duplicate_vote"
	ReasonVotingClosed           = "voting_closed"
)

// Error is the single error type returned by the domain managers.
type Error struct {
	Kind    ErrorKind
	Reason  string
	Message string
	Err     error
}

// Sentinels for errors.Is. A sentinel matches any Error of the same kind.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrValidationFailure = &Error{Kind: KindValidationFailure}
	ErrEligibilityDenied = &Error{Kind: KindEligibilityDenied}
	ErrCapacityExceeded  = &Error{Kind: KindCapacityExceeded}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind, and on reason when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// NewNotFound reports an unknown entity id.
func NewNotFound(reason, entity, id string) *Error {
	return &Error{Kind: KindNotFound, Reason: reason, Message: fmt.Sprintf("%s %q not found", entity, id)}
}

// NewInvalidState reports an operation attempted outside its legal state.
func NewInvalidState(reason, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// NewValidationFailure reports malformed content.
func NewValidationFailure(reason, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidationFailure, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// NewEligibilityDenied reports a rate limit, reputation floor, expired window or duplicate.
func NewEligibilityDenied(reason, format string, args ...interface{}) *Error {
	return &Error{Kind: KindEligibilityDenied, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// NewCapacityExceeded reports a reviewer or moderator at their load ceiling.
func NewCapacityExceeded(reason, format string, args ...interface{}) *Error {
	return &Error{Kind: KindCapacityExceeded, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ErrConcurrentModification is returned by stores when a write carries a stale Version.
var ErrConcurrentModification = &Error{
	Kind:    KindInvalidState,
	Reason:  ReasonConcurrentModification,
	Message: "entity was modified concurrently",
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ReasonOf returns the reason of the first *Error in err's chain, or "".
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
