// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package review

import (
	"context"

	"github.com/tomtom215/fairplay/internal/models"
)

// PenaltyExecutor applies the actions attached to a final verdict.
type PenaltyExecutor interface {
	Execute(ctx context.Context, cmd models.PenaltyCommand) error
}

// NotificationSink delivers fire-and-forget notifications.
type NotificationSink interface {
	Notify(ctx context.Context, n *models.Notification) error
}

// DetectionFeedback receives false-positive signals.
type DetectionFeedback interface {
	RecordFeedback(ctx context.Context, signal *models.FeedbackSignal) error
}

// MetricsSink receives immutable metric events.
type MetricsSink interface {
	Publish(ctx context.Context, event *models.MetricEvent) error
}
