// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/fairplay/internal/analytics"
	"github.com/tomtom215/fairplay/internal/appeal"
	"github.com/tomtom215/fairplay/internal/audit"
	"github.com/tomtom215/fairplay/internal/auth"
	"github.com/tomtom215/fairplay/internal/community"
	"github.com/tomtom215/fairplay/internal/detection"
	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/models"
	"github.com/tomtom215/fairplay/internal/pipeline"
)

// SolutionValidator runs the validate-solution pipeline.
type SolutionValidator interface {
	ValidateSolution(ctx context.Context, sub *detection.Submission) (*pipeline.Outcome, error)
}

// DetectionReader reads stored detection results.
type DetectionReader interface {
	GetDetection(ctx context.Context, id string) (*models.DetectionResult, error)
	ListDetections(ctx context.Context, filter models.DetectionFilter) ([]*models.DetectionResult, error)
}

// CaseService is the review-case workflow.
type CaseService interface {
	GetCase(ctx context.Context, caseID string) (*models.ReviewCase, error)
	ListCases(ctx context.Context, filter models.CaseFilter) ([]*models.ReviewCase, error)
	AssignReviewer(ctx context.Context, caseID, reviewerID, assignedBy string) (*models.ReviewCase, error)
	AutoAssign(ctx context.Context, caseID string) (*models.ReviewCase, error)
	StartReview(ctx context.Context, caseID, reviewerID string) (*models.CaseAnalysis, error)
	SubmitReview(ctx context.Context, caseID, reviewerID string, decision models.ReviewDecision) (*models.ReviewCase, error)
	EscalateCase(ctx context.Context, caseID, escalatedBy, reason string, targetTier models.ReviewTier) (*models.ReviewCase, error)
}

// AppealService is the appeal workflow.
type AppealService interface {
	SubmitAppeal(ctx context.Context, req appeal.SubmitRequest) (*models.Appeal, error)
	AssignAppeal(ctx context.Context, appealID, reviewerID string) (*models.Appeal, error)
	ReviewAppeal(ctx context.Context, appealID, reviewerID string, in appeal.ReviewInput) (*models.Appeal, error)
	WithdrawAppeal(ctx context.Context, appealID, userID string) (*models.Appeal, error)
	GetAppeal(ctx context.Context, appealID string) (*models.Appeal, error)
	ListAppeals(ctx context.Context, filter models.AppealFilter) ([]*models.Appeal, error)
}

// ReportService is community moderation.
type ReportService interface {
	SubmitReport(ctx context.Context, req community.SubmitRequest) (*models.CommunityReport, error)
	VoteOnReport(ctx context.Context, reportID, voterID string, option models.VoteOption) (*models.CommunityReport, error)
	AssignModerator(ctx context.Context, reportID, moderatorID, assignedBy string) (*models.CommunityReport, error)
	ModerateReport(ctx context.Context, reportID, moderatorID string, d models.ModerationDecision) (*models.CommunityReport, error)
	EscalateReport(ctx context.Context, reportID, escalatedBy, reason string, targetTier models.ReviewTier) (*models.CommunityReport, error)
	GetReport(ctx context.Context, reportID string) (*models.CommunityReport, error)
	ListReports(ctx context.Context, filter models.ReportFilter) ([]*models.CommunityReport, error)
}

// AccuracySource exposes the analytics snapshot.
type AccuracySource interface {
	Snapshot() analytics.Snapshot
}

// StaffDirectory manages reviewer and moderator records.
type StaffDirectory interface {
	SaveReviewer(ctx context.Context, r *models.Reviewer) error
	GetReviewer(ctx context.Context, id string) (*models.Reviewer, error)
	ListReviewers(ctx context.Context, role models.StaffRole) ([]*models.Reviewer, error)
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Permissions answers scope questions inside handlers, such as whether a
// caller may list other users' appeals.
type Permissions interface {
	EnforceWithRoles(subject string, roles []string, object, action string) (bool, error)
}

// AuditTrail records staff changes and serves the security audit log.
type AuditTrail interface {
	RecordStaffChange(r *http.Request, actorID string, actorRoles []string, staff *models.Reviewer)
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
}

// Deps are the collaborators a Handler serves. Audit and LiveFeed may be nil.
type Deps struct {
	Pipeline    SolutionValidator
	Detections  DetectionReader
	Cases       CaseService
	Appeals     AppealService
	Reports     ReportService
	Analytics   AccuracySource
	Staff       StaffDirectory
	Health      Pinger
	Permissions Permissions
	Audit       AuditTrail
	LiveFeed    http.Handler
}

// Handler serves the HTTP API.
type Handler struct {
	deps      Deps
	startTime time.Time
}

// NewHandler creates a Handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps, startTime: time.Now()}
}

// subject returns the authenticated caller. Routes are mounted behind
// authentication, so a missing subject is a wiring bug.
func subject(r *http.Request) *auth.Subject {
	if s := auth.SubjectFromContext(r.Context()); s != nil {
		return s
	}
	return &auth.Subject{}
}

// can reports whether the caller holds object/action beyond the route's
// own requirement.
func (h *Handler) can(r *http.Request, object, action string) bool {
	if h.deps.Permissions == nil {
		return false
	}
	s := subject(r)
	ok, err := h.deps.Permissions.EnforceWithRoles(s.ID, s.Roles, object, action)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("object", object).Msg("Scope check failed")
		return false
	}
	return ok
}
