// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package review

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/models"
)

// OpenFromReport turns a community report into a community-sourced
// detection and opens or enriches the matching case, linking the report.
func (m *Manager) OpenFromReport(ctx context.Context, report *models.CommunityReport) (*models.ReviewCase, error) {
	if report == nil || report.ReportedUserID == "" || report.SessionID == "" {
		return nil, models.NewValidationFailure(models.ReasonInvalidReport, "report with reported user and session is required")
	}

	severity := report.Severity
	if !severity.Valid() {
		severity = models.SeverityMedium
	}

	det := &models.DetectionResult{
		ID:          uuid.New().String(),
		UserID:      report.ReportedUserID,
		PuzzleID:    report.PuzzleID,
		SessionID:   report.SessionID,
		Flags:       models.NewFlags(models.FlagCommunityReported),
		Severity:    severity,
		Confidence:  communityConfidence(report),
		Source:      models.SourceCommunity,
		EvaluatedAt: m.now().UTC(),
	}

	// A report without a puzzle joins whatever open case covers the session.
	if det.PuzzleID == "" {
		open, err := m.openCaseForSession(ctx, det.UserID, det.SessionID)
		if err != nil {
			return nil, err
		}
		if open != nil {
			det.PuzzleID = open.PuzzleID
		}
	}

	c, err := m.CreateCase(ctx, det, nil)
	if err != nil {
		return nil, err
	}
	if c.Status.IsTerminal() || containsID(c.LinkedReports, report.ID) {
		return c, nil
	}

	c.LinkedReports = append(c.LinkedReports, report.ID)
	c.UpdatedAt = m.now().UTC()
	if err := m.cases.UpdateCase(ctx, c); err != nil {
		return nil, fmt.Errorf("link report: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("case_id", c.ID).
		Str("report_id", report.ID).
		Str("user_id", c.UserID).
		Msg("Linked community report to case")

	return c, nil
}

// openCaseForSession returns the oldest non-terminal case for the user's
// session, or nil when there is none.
func (m *Manager) openCaseForSession(ctx context.Context, userID, sessionID string) (*models.ReviewCase, error) {
	cases, err := m.cases.ListCases(ctx, models.CaseFilter{
		UserID: userID,
		Statuses: []models.CaseStatus{
			models.CaseStatusPending,
			models.CaseStatusAssigned,
			models.CaseStatusInReview,
			models.CaseStatusEscalated,
			models.CaseStatusPendingAdditionalReview,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list open cases: %w", err)
	}
	var found *models.ReviewCase
	for _, c := range cases {
		if c.SessionID != sessionID {
			continue
		}
		if found == nil || c.CreatedAt.Before(found.CreatedAt) {
			found = c
		}
	}
	return found, nil
}

// communityConfidence grows with evidence and a cheat consensus.
func communityConfidence(r *models.CommunityReport) float64 {
	conf := 0.4 + 0.05*math.Min(float64(r.Evidence.Richness()), 4)
	if r.Consensus != nil && *r.Consensus == models.VoteCheat {
		conf = math.Max(conf, 0.75)
	}
	return conf
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
