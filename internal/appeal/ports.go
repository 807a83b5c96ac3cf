// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package appeal

import (
	"context"

	"github.com/tomtom215/fairplay/internal/models"
)

// PenaltyExecutor reverses or reduces the original case's penalties.
type PenaltyExecutor interface {
	Execute(ctx context.Context, cmd models.PenaltyCommand) error
}

// NotificationSink delivers fire-and-forget notifications.
type NotificationSink interface {
	Notify(ctx context.Context, n *models.Notification) error
}

// DetectionFeedback receives the outcome of an appeal as a detection signal.
type DetectionFeedback interface {
	RecordFeedback(ctx context.Context, signal *models.FeedbackSignal) error
}

// MetricsSink receives immutable metric events.
type MetricsSink interface {
	Publish(ctx context.Context, event *models.MetricEvent) error
}
