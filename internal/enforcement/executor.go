// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

// Package enforcement applies and reverses penalties decided by reviewers,
// appeal adjudication and community moderation.
//
// Every executed command is appended to the enforcement ledger. Commands
// that limit a user also write a Restriction, tagged with the case or
// report that caused it so a later reversal lifts exactly those.
package enforcement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/metrics"
	"github.com/tomtom215/fairplay/internal/models"
)

// Default restriction lengths when a command does not carry one.
const (
	DefaultBanDays        = 30
	DefaultMonitoringDays = 30
	DefaultWatchListDays  = 30
	DefaultWarningDays    = 90
	DefaultTemporaryHours = 24
)

// RestrictionStore is the persistence the executor needs.
type RestrictionStore interface {
	SaveRestriction(ctx context.Context, r *models.Restriction) error
	LiftRestrictions(ctx context.Context, userID, sourceID string, at time.Time) (int, error)
	SaveEnforcement(ctx context.Context, rec *models.EnforcementRecord) error
}

// Executor carries out penalty commands against the restriction store.
type Executor struct {
	store RestrictionStore
	now   func() time.Time
}

// NewExecutor creates an executor.
func NewExecutor(store RestrictionStore) *Executor {
	return &Executor{store: store, now: time.Now}
}

// SetClock overrides the clock.
func (e *Executor) SetClock(now func() time.Time) {
	e.now = now
}

// Execute applies one command. The ledger entry is written after the
// restriction change so a failed change leaves no record claiming success.
func (e *Executor) Execute(ctx context.Context, cmd models.PenaltyCommand) error {
	if cmd.UserID == "" || cmd.Action == "" {
		return models.NewValidationFailure(models.ReasonInvalidDecision, "penalty command requires user and action")
	}

	now := e.now().UTC()
	source, sourceID := commandSource(cmd)

	switch cmd.Action {
	case models.ActionBan:
		var expires *time.Time
		if !cmd.Permanent {
			days := cmd.BanDays
			if days <= 0 {
				days = DefaultBanDays
			}
			t := now.AddDate(0, 0, days)
			expires = &t
		}
		if err := e.restrict(ctx, cmd, models.RestrictionBan, source, sourceID, now, expires); err != nil {
			return err
		}

	case models.ActionIncreaseMonitoring:
		if err := e.restrict(ctx, cmd, models.RestrictionMonitoring, source, sourceID, now, days(now, DefaultMonitoringDays)); err != nil {
			return err
		}

	case models.ActionWatchList:
		if err := e.restrict(ctx, cmd, models.RestrictionWatchList, source, sourceID, now, days(now, DefaultWatchListDays)); err != nil {
			return err
		}

	case models.ActionWarning:
		if err := e.restrict(ctx, cmd, models.RestrictionWarning, source, sourceID, now, days(now, DefaultWarningDays)); err != nil {
			return err
		}

	case models.ActionTemporaryRestriction:
		d := cmd.Duration
		if d <= 0 {
			d = DefaultTemporaryHours * time.Hour
		}
		expires := now.Add(d)
		if err := e.restrict(ctx, cmd, models.RestrictionTemporary, source, sourceID, now, &expires); err != nil {
			return err
		}

	case models.ActionClearRestrictions, models.ActionReversePenalty:
		if err := e.lift(ctx, cmd.UserID, sourceID, now); err != nil {
			return err
		}

	case models.ActionReducePenalty:
		if err := e.lift(ctx, cmd.UserID, sourceID, now); err != nil {
			return err
		}
		if cmd.BanDays > 0 {
			expires := now.AddDate(0, 0, cmd.BanDays)
			if err := e.restrict(ctx, cmd, models.RestrictionBan, source, sourceID, now, &expires); err != nil {
				return err
			}
		}

	case models.ActionInvalidateResults, models.ActionRestoreResults, models.ActionClearRecord,
		models.ActionCompensate, models.ActionRequestMoreData, models.ActionFalsePositiveFeedback:
		// Owned by other subsystems; the ledger entry is the hand-off.

	default:
		return models.NewValidationFailure(models.ReasonInvalidDecision, "unknown penalty action %q", cmd.Action)
	}

	rec := &models.EnforcementRecord{
		ID:         uuid.New().String(),
		Command:    cmd,
		ExecutedAt: now,
	}
	if err := e.store.SaveEnforcement(ctx, rec); err != nil {
		return fmt.Errorf("record enforcement: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("action", string(cmd.Action)).
		Str("user_id", cmd.UserID).
		Str("source", source).
		Str("source_id", sourceID).
		Str("issued_by", cmd.IssuedBy).
		Msg("Executed penalty command")

	return nil
}

func (e *Executor) restrict(ctx context.Context, cmd models.PenaltyCommand, kind models.RestrictionKind, source, sourceID string, now time.Time, expires *time.Time) error {
	r := &models.Restriction{
		ID:        uuid.New().String(),
		UserID:    cmd.UserID,
		Kind:      kind,
		Reason:    cmd.Reason,
		Source:    source,
		SourceID:  sourceID,
		StartsAt:  now,
		ExpiresAt: expires,
	}
	if err := e.store.SaveRestriction(ctx, r); err != nil {
		return fmt.Errorf("save restriction: %w", err)
	}
	metrics.RecordRestriction(string(kind), source)
	return nil
}

func (e *Executor) lift(ctx context.Context, userID, sourceID string, now time.Time) error {
	n, err := e.store.LiftRestrictions(ctx, userID, sourceID, now)
	if err != nil {
		return fmt.Errorf("lift restrictions: %w", err)
	}
	logging.Ctx(ctx).Info().
		Str("user_id", userID).
		Str("source_id", sourceID).
		Int("lifted", n).
		Msg("Lifted restrictions")
	return nil
}

// commandSource names the entity a restriction is attributed to. Appeal
// commands act on the original case's restrictions.
func commandSource(cmd models.PenaltyCommand) (string, string) {
	switch {
	case cmd.CaseID != "":
		return "case", cmd.CaseID
	case cmd.ReportID != "":
		return "report", cmd.ReportID
	case cmd.AppealID != "":
		return "appeal", cmd.AppealID
	}
	return "manual", ""
}

func days(now time.Time, n int) *time.Time {
	t := now.AddDate(0, 0, n)
	return &t
}
