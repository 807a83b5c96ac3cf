// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package community

import (
	"context"

	"github.com/tomtom215/fairplay/internal/models"
	"github.com/tomtom215/fairplay/internal/store"
)

// Standing is a reporter's trust position.
type Standing struct {
	Reputation float64
	AbuseScore float64
}

// ReputationSource supplies reporter standing for the eligibility gate.
type ReputationSource interface {
	Standing(ctx context.Context, userID string) (Standing, error)
}

// HistorySource supplies a reporter's past report outcomes.
type HistorySource interface {
	ReporterStats(ctx context.Context, reporterID string) (store.ReporterStats, error)
}

// CaseOpener folds a report into a review case.
type CaseOpener interface {
	OpenFromReport(ctx context.Context, report *models.CommunityReport) (*models.ReviewCase, error)
}

// PenaltyExecutor applies moderation and auto-moderation penalties.
type PenaltyExecutor interface {
	Execute(ctx context.Context, cmd models.PenaltyCommand) error
}

// NotificationSink delivers fire-and-forget notifications.
type NotificationSink interface {
	Notify(ctx context.Context, n *models.Notification) error
}

// MetricsSink receives immutable metric events.
type MetricsSink interface {
	Publish(ctx context.Context, event *models.MetricEvent) error
}
