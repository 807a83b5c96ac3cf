// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package models

import (
	"time"
)

// MetricEventType names an accuracy-relevant occurrence.
type MetricEventType string

const (
	MetricDetectionEvaluated MetricEventType = "detection_evaluated"
	MetricCaseOpened         MetricEventType = "case_opened"
	MetricCaseCompleted      MetricEventType = "case_completed"
	MetricAppealResolved     MetricEventType = "appeal_resolved"
	MetricFeedbackSignal     MetricEventType = "feedback_signal"
	MetricReportSubmitted    MetricEventType = "report_submitted"
	MetricReportConsensus    MetricEventType = "report_consensus"
	MetricRestrictionApplied MetricEventType = "restriction_applied"
)

// MetricEvent is an immutable fact written by the managers and aggregated
// by analytics. Fields irrelevant to Type are left empty.
type MetricEvent struct {
	ID            string          `json:"id"`
	Type          MetricEventType `json:"type"`
	UserID        string          `json:"user_id,omitempty"`
	CaseID        string          `json:"case_id,omitempty"`
	AppealID      string          `json:"appeal_id,omitempty"`
	ReportID      string          `json:"report_id,omitempty"`
	Severity      Severity        `json:"severity,omitempty"`
	Flagged       bool            `json:"flagged,omitempty"`
	Verdict       Verdict         `json:"verdict,omitempty"`
	AppealOutcome AppealOutcome   `json:"appeal_outcome,omitempty"`
	Consensus     VoteOption      `json:"consensus,omitempty"`
	Source        DetectionSource `json:"source,omitempty"`
	FalsePositive bool            `json:"false_positive,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NotificationKind names a fire-and-forget notification.
type NotificationKind string

const (
	NotifyCaseAssigned     NotificationKind = "case_assigned"
	NotifyCaseDecided      NotificationKind = "case_decided"
	NotifyCaseEscalated    NotificationKind = "case_escalated"
	NotifyAppealSubmitted  NotificationKind = "appeal_submitted"
	NotifyAppealAssigned   NotificationKind = "appeal_assigned"
	NotifyAppealDecided    NotificationKind = "appeal_decided"
	NotifyAppealWithdrawn  NotificationKind = "appeal_withdrawn"
	NotifyReportAssigned   NotificationKind = "report_assigned"
	NotifyReportResolved   NotificationKind = "report_resolved"
	NotifyUserRestricted   NotificationKind = "user_restricted"
	NotifyReportEscalated  NotificationKind = "report_escalated"
	NotifyMoreDataRequired NotificationKind = "more_data_required"
)

// Notification is delivered to a user or staff member.
type Notification struct {
	ID          string            `json:"id"`
	Kind        NotificationKind  `json:"kind"`
	RecipientID string            `json:"recipient_id"`
	EntityID    string            `json:"entity_id"`
	Message     string            `json:"message"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
