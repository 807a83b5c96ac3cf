// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

// Package store persists Fairplay entities.
//
// Two adapters implement Store: DuckDBStore for production and MemoryStore
// for tests and single-process development. Both enforce the same contract:
//
//   - Create* assigns Version 1; Update* succeeds only when the caller's
//     Version matches the stored one, then increments it.
//   - A stale Update* returns models.ErrConcurrentModification.
//   - Get* on an unknown id returns a models.Error of kind NotFound.
//   - Returned entities are copies; mutating them never changes stored state.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/fairplay/internal/models"
)

// ErrDuplicate is returned when a create collides with a unique key, such
// as a second case for the same detection key.
var ErrDuplicate = errors.New("store: duplicate key")

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// DetectionStore persists detection results, feedback and solve history.
type DetectionStore interface {
	SaveDetection(ctx context.Context, d *models.DetectionResult) error
	GetDetection(ctx context.Context, id string) (*models.DetectionResult, error)
	ListDetections(ctx context.Context, filter models.DetectionFilter) ([]*models.DetectionResult, error)
	SaveFeedback(ctx context.Context, f *models.FeedbackSignal) error
	ListFeedback(ctx context.Context, userID string) ([]*models.FeedbackSignal, error)
	RecordSolve(ctx context.Context, rec models.SolveRecord) error
	Baseline(ctx context.Context, userID, puzzleType string) (*models.UserBaseline, error)
}

// CaseStore persists review cases.
type CaseStore interface {
	CreateCase(ctx context.Context, c *models.ReviewCase) error
	GetCase(ctx context.Context, id string) (*models.ReviewCase, error)
	GetCaseByKey(ctx context.Context, key models.DetectionKey) (*models.ReviewCase, error)
	UpdateCase(ctx context.Context, c *models.ReviewCase) error
	ListCases(ctx context.Context, filter models.CaseFilter) ([]*models.ReviewCase, error)
	CountOpenCasesByReviewer(ctx context.Context, reviewerID string) (int, error)
}

// AppealStore persists appeals.
type AppealStore interface {
	CreateAppeal(ctx context.Context, a *models.Appeal) error
	GetAppeal(ctx context.Context, id string) (*models.Appeal, error)
	UpdateAppeal(ctx context.Context, a *models.Appeal) error
	ListAppeals(ctx context.Context, filter models.AppealFilter) ([]*models.Appeal, error)
	FindAppeal(ctx context.Context, caseID, userID string) (*models.Appeal, error)
	CountAppealsSince(ctx context.Context, userID string, since time.Time) (int, error)
	CountOpenAppealsByReviewer(ctx context.Context, reviewerID string) (int, error)
}

// ReporterStats summarizes a reporter's track record.
type ReporterStats struct {
	Total     int
	Upheld    int
	Dismissed int
}

// ReportStore persists community reports.
type ReportStore interface {
	CreateReport(ctx context.Context, r *models.CommunityReport) error
	GetReport(ctx context.Context, id string) (*models.CommunityReport, error)
	UpdateReport(ctx context.Context, r *models.CommunityReport) error
	ListReports(ctx context.Context, filter models.ReportFilter) ([]*models.CommunityReport, error)
	ReportExists(ctx context.Context, reporterID, reportedID, sessionID string) (bool, error)
	CountReportsBySince(ctx context.Context, reporterID string, since time.Time) (int, error)
	CountReportsAgainstSince(ctx context.Context, reportedID string, since time.Time) (int, error)
	CountOpenReportsByModerator(ctx context.Context, moderatorID string) (int, error)
	ReporterStats(ctx context.Context, reporterID string) (ReporterStats, error)
}

// ReviewerDirectory stores staff records.
type ReviewerDirectory interface {
	SaveReviewer(ctx context.Context, r *models.Reviewer) error
	GetReviewer(ctx context.Context, id string) (*models.Reviewer, error)
	ListReviewers(ctx context.Context, role models.StaffRole) ([]*models.Reviewer, error)
}

// RestrictionStore persists restrictions and the enforcement ledger.
type RestrictionStore interface {
	SaveRestriction(ctx context.Context, r *models.Restriction) error
	ListActiveRestrictions(ctx context.Context, userID string, at time.Time) ([]*models.Restriction, error)
	// LiftRestrictions lifts active restrictions for userID. A non-empty
	// sourceID limits it to restrictions issued by that case, appeal or report.
	LiftRestrictions(ctx context.Context, userID, sourceID string, at time.Time) (int, error)
	SaveEnforcement(ctx context.Context, rec *models.EnforcementRecord) error
	ListEnforcement(ctx context.Context, userID string) ([]*models.EnforcementRecord, error)
}

// EventLog persists metric events for analytics replay.
type EventLog interface {
	AppendMetricEvent(ctx context.Context, e *models.MetricEvent) error
	ListMetricEvents(ctx context.Context, since time.Time) ([]*models.MetricEvent, error)
}

// Store is the full persistence surface.
type Store interface {
	DetectionStore
	CaseStore
	AppealStore
	ReportStore
	ReviewerDirectory
	RestrictionStore
	EventLog
	Ping(ctx context.Context) error
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// page applies offset and limit to an already sorted slice length n.
func page(n, offset, limit int) (int, int) {
	limit = normalizeLimit(limit)
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := offset + limit
	if end > n {
		end = n
	}
	return offset, end
}

func openCaseStatuses() []models.CaseStatus {
	return []models.CaseStatus{models.CaseStatusAssigned, models.CaseStatusInReview}
}
