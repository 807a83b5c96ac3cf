// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/models"
)

// FeedbackRecorder persists accuracy feedback about past detections and
// emits it as a metric event for analytics.
type FeedbackRecorder struct {
	store FeedbackStore
	sink  MetricsSink
	now   func() time.Time
}

// NewFeedbackRecorder creates a recorder. sink may be nil.
func NewFeedbackRecorder(store FeedbackStore, sink MetricsSink) *FeedbackRecorder {
	return &FeedbackRecorder{store: store, sink: sink, now: time.Now}
}

// SetClock overrides the clock used for RecordedAt.
func (r *FeedbackRecorder) SetClock(now func() time.Time) {
	r.now = now
}

// RecordFeedback stores the signal. A failed metric publish is logged but
// does not fail the call once the signal is stored.
func (r *FeedbackRecorder) RecordFeedback(ctx context.Context, signal *models.FeedbackSignal) error {
	if signal == nil || signal.UserID == "" {
		return models.NewValidationFailure(models.ReasonInvalidEvidence, "feedback requires a user")
	}

	s := *signal
	s.Flags = append(models.Flags(nil), signal.Flags...)
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.RecordedAt.IsZero() {
		s.RecordedAt = r.now().UTC()
	}

	if err := r.store.SaveFeedback(ctx, &s); err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}

	if r.sink != nil {
		event := &models.MetricEvent{
			ID:            uuid.New().String(),
			Type:          models.MetricFeedbackSignal,
			UserID:        s.UserID,
			CaseID:        s.CaseID,
			FalsePositive: s.FalsePositive,
			OccurredAt:    s.RecordedAt,
		}
		if err := r.sink.Publish(ctx, event); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("case_id", s.CaseID).Msg("Failed to publish feedback event")
		}
	}

	logging.Ctx(ctx).Info().
		Str("case_id", s.CaseID).
		Str("user_id", s.UserID).
		Bool("false_positive", s.FalsePositive).
		Str("source", s.Source).
		Msg("Recorded detection feedback")

	return nil
}
