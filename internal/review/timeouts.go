// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/metrics"
	"github.com/tomtom215/fairplay/internal/models"
)

// timeoutBatch is the most overdue cases handled per sweep.
const timeoutBatch = 1000

// CheckTimeouts escalates every open case whose deadline passed before now
// by one tier. A case that changed underneath the sweep is skipped and
// picked up on the next run. Returns the number escalated.
func (m *Manager) CheckTimeouts(ctx context.Context, now time.Time) (int, error) {
	overdue, err := m.cases.ListCases(ctx, models.CaseFilter{
		Statuses: []models.CaseStatus{
			models.CaseStatusPending,
			models.CaseStatusAssigned,
			models.CaseStatusInReview,
			models.CaseStatusPendingAdditionalReview,
			models.CaseStatusEscalated,
		},
		DueBefore: &now,
		OrderBy:   "due_at",
		OrderDir:  "asc",
		Limit:     timeoutBatch,
	})
	if err != nil {
		metrics.RecordSweep(0, err)
		return 0, fmt.Errorf("list overdue cases: %w", err)
	}

	escalated := 0
	for _, c := range overdue {
		if err := ctx.Err(); err != nil {
			metrics.RecordSweep(escalated, err)
			return escalated, err
		}
		reason := fmt.Sprintf("review deadline %s exceeded", c.DueAt.Format(time.RFC3339))
		_, err := m.EscalateCase(ctx, c.ID, SystemActor, reason, c.RequiredTier.Next())
		switch {
		case err == nil:
			escalated++
		case errors.Is(err, models.ErrInvalidState):
			logging.Ctx(ctx).Debug().Err(err).Str("case_id", c.ID).Msg("Overdue case changed during sweep")
		default:
			logging.Ctx(ctx).Warn().Err(err).Str("case_id", c.ID).Msg("Failed to escalate overdue case")
		}
	}

	if len(overdue) == timeoutBatch {
		logging.Ctx(ctx).Warn().Int("batch", timeoutBatch).Msg("Timeout sweep hit its batch limit")
	}
	metrics.RecordSweep(escalated, nil)

	if escalated > 0 {
		logging.Ctx(ctx).Info().Int("escalated", escalated).Msg("Escalated overdue cases")
	}
	return escalated, nil
}
