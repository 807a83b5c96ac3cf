// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

// Package community runs player reporting: submission with reporter
// gating, community voting, moderator triage and auto-moderation.
//
// Report lifecycle:
//
//	open_for_vote ──► (consensus) ──► resolved | dismissed
//	      │                 └──► pending_review (inconclusive)
//	pending_review ──► assigned ──► resolved | dismissed
//	      ▲                │
//	      └── escalated ◄──┘ EscalateReport (any non-terminal status)
//
// Reports that need a moderator (critical severity or a sensitive type)
// skip voting. A cheat consensus or an open_case ruling folds the report
// into a review case through the CaseOpener.
package community

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/fairplay/internal/config"
	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/metrics"
	"github.com/tomtom215/fairplay/internal/models"
	"github.com/tomtom215/fairplay/internal/store"
	"github.com/tomtom215/fairplay/internal/validation"
)

const systemActor = models.SystemReviewerID

// richEvidence is the evidence count that raises a report one severity level.
const richEvidence = 3

var severities = []models.Severity{
	models.SeverityLow,
	models.SeverityMedium,
	models.SeverityHigh,
	models.SeverityCritical,
}

var baseSeverity = map[models.ReportType]models.Severity{
	models.ReportTypeAutomation:    models.SeverityHigh,
	models.ReportTypeHarassment:    models.SeverityHigh,
	models.ReportTypeCheating:      models.SeverityMedium,
	models.ReportTypeExploit:       models.SeverityMedium,
	models.ReportTypeCollusion:     models.SeverityMedium,
	models.ReportTypeImpersonation: models.SeverityMedium,
	models.ReportTypeOther:         models.SeverityLow,
}

// SubmitRequest is a player's report. ReporterID comes from the
// authenticated caller.
type SubmitRequest struct {
	ReporterID     string                `json:"-" validate:"required,max=128"`
	ReportedUserID string                `json:"reported_user_id" validate:"required,max=128"`
	SessionID      string                `json:"session_id" validate:"required,max=128"`
	PuzzleID       string                `json:"puzzle_id" validate:"max=128"`
	Type           models.ReportType     `json:"type" validate:"required,oneof=cheating automation exploit collusion harassment impersonation other"`
	Description    string                `json:"description" validate:"required,min=10,max=5000"`
	Evidence       models.ReportEvidence `json:"evidence"`
}

// Options carries the optional collaborators. Nil members are skipped; a
// nil Reputation disables the reputation and abuse gates.
type Options struct {
	Reputation ReputationSource
	Opener     CaseOpener
	Penalties  PenaltyExecutor
	Notifier   NotificationSink
	Events     MetricsSink
}

// Manager owns community reports.
type Manager struct {
	reports    store.ReportStore
	staff      store.ReviewerDirectory
	reputation ReputationSource
	opener     CaseOpener
	penalties  PenaltyExecutor
	notifier   NotificationSink
	events     MetricsSink
	cfg        config.CommunityConfig
	now        func() time.Time
}

// NewManager creates a community moderation manager.
func NewManager(reports store.ReportStore, staff store.ReviewerDirectory, cfg config.CommunityConfig, opts Options) *Manager {
	return &Manager{
		reports:    reports,
		staff:      staff,
		reputation: opts.Reputation,
		opener:     opts.Opener,
		penalties:  opts.Penalties,
		notifier:   opts.Notifier,
		events:     opts.Events,
		cfg:        cfg,
		now:        time.Now,
	}
}

// SetClock overrides the clock.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// ReportSeverity rates a report from its type, one level higher when it
// carries rich evidence.
func ReportSeverity(t models.ReportType, ev models.ReportEvidence) models.Severity {
	s, ok := baseSeverity[t]
	if !ok {
		s = models.SeverityLow
	}
	if ev.Richness() >= richEvidence && s.Rank() < len(severities) {
		s = severities[s.Rank()]
	}
	return s
}

// ReportPriority scores a report from 1 to 10 for the moderator queue.
func ReportPriority(sev models.Severity, richness int, reputation float64) int {
	p := 2 * sev.Rank()
	if richness >= 2 {
		p++
	}
	if reputation >= trustedReputation {
		p++
	}
	switch {
	case p < 1:
		return 1
	case p > 10:
		return 10
	}
	return p
}

// SubmitReport files a report after gating the reporter.
func (m *Manager) SubmitReport(ctx context.Context, req SubmitRequest) (*models.CommunityReport, error) {
	if err := validation.ValidateDomain(req, models.ReasonInvalidReport); err != nil {
		return nil, err
	}
	if req.ReporterID == req.ReportedUserID {
		return nil, models.NewEligibilityDenied(models.ReasonSelfReport, "players cannot report themselves")
	}

	now := m.now().UTC()
	standing, err := m.checkReporter(ctx, req, now)
	if err != nil {
		if kind := models.KindOf(err); kind != "" {
			metrics.RecordDomainError("community", string(kind), models.ReasonOf(err))
		}
		return nil, err
	}

	sev := ReportSeverity(req.Type, req.Evidence)
	manual := sev == models.SeverityCritical || req.Type.IsSensitive()
	status := models.ReportStatusOpenForVote
	if manual {
		status = models.ReportStatusPendingReview
	}
	tier := models.TierInitial
	if sev == models.SeverityCritical {
		tier = models.TierSecondary
	}

	r := &models.CommunityReport{
		ID:                   uuid.New().String(),
		ReporterUserID:       req.ReporterID,
		ReportedUserID:       req.ReportedUserID,
		SessionID:            req.SessionID,
		PuzzleID:             req.PuzzleID,
		Type:                 req.Type,
		Description:          strings.TrimSpace(req.Description),
		Evidence:             req.Evidence,
		Severity:             sev,
		Priority:             ReportPriority(sev, req.Evidence.Richness(), standing.Reputation),
		Status:               status,
		RequiresManualReview: manual,
		Votes:                []models.Vote{},
		RequiredTier:         tier,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := m.reports.CreateReport(ctx, r); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, models.NewEligibilityDenied(models.ReasonDuplicateReport, "session %s already reported", req.SessionID)
		}
		return nil, fmt.Errorf("create report: %w", err)
	}

	metrics.RecordReport(string(r.Type), manual)
	m.publish(ctx, &models.MetricEvent{
		Type:     models.MetricReportSubmitted,
		UserID:   r.ReportedUserID,
		ReportID: r.ID,
		Severity: r.Severity,
		Source:   models.SourceCommunity,
	})
	logging.Ctx(ctx).Info().
		Str("report_id", r.ID).
		Str("reporter_id", r.ReporterUserID).
		Str("reported_id", r.ReportedUserID).
		Str("type", string(r.Type)).
		Str("severity", string(r.Severity)).
		Int("priority", r.Priority).
		Bool("manual_review", manual).
		Msg("Community report submitted")

	if manual {
		r = m.autoAssign(ctx, r)
	}
	m.checkAutoRestrict(ctx, r, now)
	return r, nil
}

func (m *Manager) checkReporter(ctx context.Context, req SubmitRequest, now time.Time) (Standing, error) {
	standing := Standing{Reputation: baseReputation}
	if m.reputation != nil {
		s, err := m.reputation.Standing(ctx, req.ReporterID)
		if err != nil {
			return Standing{}, fmt.Errorf("reporter standing: %w", err)
		}
		standing = s
		if s.Reputation < m.cfg.MinReputation {
			return Standing{}, models.NewEligibilityDenied(models.ReasonReputationTooLow, "reputation %.0f below %.0f", s.Reputation, m.cfg.MinReputation)
		}
		if s.AbuseScore > m.cfg.MaxAbuseScore {
			return Standing{}, models.NewEligibilityDenied(models.ReasonAbuseScoreTooHigh, "abuse score %.2f above %.2f", s.AbuseScore, m.cfg.MaxAbuseScore)
		}
	}

	n, err := m.reports.CountReportsBySince(ctx, req.ReporterID, now.Add(-24*time.Hour))
	if err != nil {
		return Standing{}, fmt.Errorf("count reports: %w", err)
	}
	if n >= m.cfg.DailyReportLimit {
		return Standing{}, models.NewEligibilityDenied(models.ReasonDailyReportLimit, "%d reports filed in the last 24h", n)
	}

	exists, err := m.reports.ReportExists(ctx, req.ReporterID, req.ReportedUserID, req.SessionID)
	if err != nil {
		return Standing{}, fmt.Errorf("lookup report: %w", err)
	}
	if exists {
		return Standing{}, models.NewEligibilityDenied(models.ReasonDuplicateReport, "session %s already reported", req.SessionID)
	}
	return standing, nil
}

// checkAutoRestrict applies one temporary restriction when the report just
// filed is the one that reaches the threshold inside the rolling window.
func (m *Manager) checkAutoRestrict(ctx context.Context, r *models.CommunityReport, now time.Time) {
	if m.penalties == nil {
		return
	}
	n, err := m.reports.CountReportsAgainstSince(ctx, r.ReportedUserID, now.Add(-m.cfg.AutoRestrictWindow))
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", r.ReportedUserID).Msg("Report count failed, auto-moderation skipped")
		return
	}
	if n != m.cfg.AutoRestrictThreshold {
		return
	}

	err = m.penalties.Execute(ctx, models.PenaltyCommand{
		Action:    models.ActionTemporaryRestriction,
		UserID:    r.ReportedUserID,
		ReportID:  r.ID,
		SessionID: r.SessionID,
		PuzzleID:  r.PuzzleID,
		Duration:  m.cfg.AutoRestrictDuration,
		Reason:    fmt.Sprintf("%d community reports within %s", n, m.cfg.AutoRestrictWindow),
		IssuedBy:  systemActor,
	})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("user_id", r.ReportedUserID).Msg("Auto-restriction failed")
		return
	}

	m.publish(ctx, &models.MetricEvent{
		Type:     models.MetricRestrictionApplied,
		UserID:   r.ReportedUserID,
		ReportID: r.ID,
		Source:   models.SourceCommunity,
	})
	logging.Ctx(ctx).Warn().
		Str("user_id", r.ReportedUserID).
		Int("reports", n).
		Dur("duration", m.cfg.AutoRestrictDuration).
		Msg("Auto-moderation restricted player")
	m.notify(ctx, models.NotifyUserRestricted, r.ReportedUserID, r.ID, "Your account is temporarily restricted pending review", map[string]string{
		"expires_at": now.Add(m.cfg.AutoRestrictDuration).Format(time.RFC3339),
	})
}

// AssignModerator hands a report awaiting a moderator to moderatorID.
func (m *Manager) AssignModerator(ctx context.Context, reportID, moderatorID, assignedBy string) (*models.CommunityReport, error) {
	r, err := m.reports.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	mod, err := m.staff.GetReviewer(ctx, moderatorID)
	if err != nil {
		return nil, err
	}
	if err := m.checkAssignable(ctx, r, mod); err != nil {
		metrics.RecordAssignmentFailure(models.ReasonOf(err))
		return nil, err
	}
	return m.assign(ctx, r, mod, assignedBy)
}

func (m *Manager) checkAssignable(ctx context.Context, r *models.CommunityReport, mod *models.Reviewer) error {
	if !r.Status.AwaitingModerator() {
		return models.NewInvalidState(models.ReasonIllegalTransition, "report %s is %s, not awaiting a moderator", r.ID, r.Status)
	}
	if mod.Role != models.RoleModerator || !mod.Active {
		return models.NewEligibilityDenied(models.ReasonReviewerInactive, "%s is not an active moderator", mod.ID)
	}
	if !mod.CanHandle(r.RequiredTier) {
		return models.NewEligibilityDenied(models.ReasonReviewerTierTooLow, "report requires %s tier, moderator is %s", r.RequiredTier, mod.Tier)
	}
	load, err := m.reports.CountOpenReportsByModerator(ctx, mod.ID)
	if err != nil {
		return fmt.Errorf("count moderator load: %w", err)
	}
	if load >= m.maxLoad(mod) {
		return models.NewCapacityExceeded(models.ReasonModeratorAtCapacity, "%s holds %d open reports", mod.ID, load)
	}
	return nil
}

func (m *Manager) maxLoad(mod *models.Reviewer) int {
	if mod.MaxLoad > 0 {
		return mod.MaxLoad
	}
	return m.cfg.ModeratorMaxLoad
}

// autoAssign gives the report to the best available moderator: one
// specialized in the report type first, then the least loaded. The report
// stays pending when nobody qualifies.
func (m *Manager) autoAssign(ctx context.Context, r *models.CommunityReport) *models.CommunityReport {
	candidates, err := m.staff.ListReviewers(ctx, models.RoleModerator)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("report_id", r.ID).Msg("Moderator lookup failed, report stays queued")
		metrics.RecordAssignmentFailure("directory_error")
		return r
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	var best *models.Reviewer
	bestLoad, bestSpecialized := 0, false
	for _, mod := range candidates {
		if !mod.Active || !mod.CanHandle(r.RequiredTier) {
			continue
		}
		load, err := m.reports.CountOpenReportsByModerator(ctx, mod.ID)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("moderator_id", mod.ID).Msg("Load lookup failed, skipping moderator")
			continue
		}
		if load >= m.maxLoad(mod) {
			continue
		}
		specialized := mod.Specializes(string(r.Type))
		if best == nil ||
			specialized && !bestSpecialized ||
			specialized == bestSpecialized && load < bestLoad {
			best, bestLoad, bestSpecialized = mod, load, specialized
		}
	}

	if best == nil {
		logging.Ctx(ctx).Info().
			Str("report_id", r.ID).
			Str("required_tier", string(r.RequiredTier)).
			Msg("No moderator available, report stays queued")
		metrics.RecordAssignmentFailure("no_eligible_moderator")
		return r
	}

	assigned, err := m.assign(ctx, r, best, systemActor)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("report_id", r.ID).Str("moderator_id", best.ID).
			Msg("Moderator auto-assignment failed, report stays queued")
		if fresh, gerr := m.reports.GetReport(ctx, r.ID); gerr == nil {
			return fresh
		}
		return r
	}
	return assigned
}

func (m *Manager) assign(ctx context.Context, r *models.CommunityReport, mod *models.Reviewer, assignedBy string) (*models.CommunityReport, error) {
	now := m.now().UTC()
	from := r.Status
	id := mod.ID
	r.Status = models.ReportStatusAssigned
	r.AssignedModerator = &id
	r.UpdatedAt = now
	if err := m.reports.UpdateReport(ctx, r); err != nil {
		return nil, err
	}
	m.logTransition(ctx, r, from, assignedBy)
	m.notify(ctx, models.NotifyReportAssigned, mod.ID, r.ID, "A community report was assigned to you", map[string]string{
		"type":     string(r.Type),
		"severity": string(r.Severity),
	})
	return r, nil
}

// ModerateReport records the assigned moderator's ruling and applies it.
func (m *Manager) ModerateReport(ctx context.Context, reportID, moderatorID string, d models.ModerationDecision) (*models.CommunityReport, error) {
	if err := validation.ValidateDomain(d, models.ReasonInvalidDecision); err != nil {
		return nil, err
	}
	r, err := m.reports.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !r.IsAssignedTo(moderatorID) {
		return nil, models.NewInvalidState(models.ReasonNotAssignedReviewer, "report %s is not assigned to %s", r.ID, moderatorID)
	}
	if r.Status != models.ReportStatusAssigned {
		return nil, models.NewInvalidState(models.ReasonIllegalTransition, "report %s is %s, not assigned", r.ID, r.Status)
	}

	if d.Action == models.ModerationOpenCase {
		if !r.Type.IsFairPlay() {
			return nil, models.NewValidationFailure(models.ReasonInvalidDecision, "%s reports cannot open a review case", r.Type)
		}
		if m.opener == nil {
			return nil, models.NewValidationFailure(models.ReasonInvalidDecision, "case opening is not available")
		}
		c, err := m.opener.OpenFromReport(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("open case from report: %w", err)
		}
		id := c.ID
		r.LinkedCaseID = &id
	}

	now := m.now().UTC()
	from := r.Status
	m.closeReport(r, d.Action, moderatorID, strings.TrimSpace(d.Notes), false, now)
	if err := m.reports.UpdateReport(ctx, r); err != nil {
		return nil, err
	}
	m.logTransition(ctx, r, from, moderatorID)

	switch d.Action {
	case models.ModerationWarn:
		m.execute(ctx, r, models.PenaltyCommand{Action: models.ActionWarning}, moderatorID)
	case models.ModerationRestrict:
		dur := m.cfg.AutoRestrictDuration
		if d.RestrictionHours > 0 {
			dur = time.Duration(d.RestrictionHours) * time.Hour
		}
		m.execute(ctx, r, models.PenaltyCommand{Action: models.ActionTemporaryRestriction, Duration: dur}, moderatorID)
	case models.ModerationWatchList:
		m.execute(ctx, r, models.PenaltyCommand{Action: models.ActionWatchList}, moderatorID)
	}
	m.notifyReporter(ctx, r)
	return r, nil
}

// closeReport marks r resolved, or dismissed for a dismiss action.
func (m *Manager) closeReport(r *models.CommunityReport, action models.ModerationAction, by, notes string, consensus bool, now time.Time) {
	r.Status = models.ReportStatusResolved
	if action == models.ModerationDismiss {
		r.Status = models.ReportStatusDismissed
	}
	r.Resolution = &models.ReportResolution{
		ResolvedBy: by,
		Action:     action,
		Notes:      notes,
		Consensus:  consensus,
		ResolvedAt: now,
	}
	r.UpdatedAt = now
}

// EscalateReport re-queues a non-terminal report at targetTier.
func (m *Manager) EscalateReport(ctx context.Context, reportID, escalatedBy, reason string, targetTier models.ReviewTier) (*models.CommunityReport, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, models.NewValidationFailure(models.ReasonInvalidEscalation, "escalation reason is required")
	}
	if !targetTier.Valid() {
		return nil, models.NewValidationFailure(models.ReasonInvalidEscalation, "unknown tier %q", targetTier)
	}
	r, err := m.reports.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if r.Status.IsTerminal() {
		return nil, models.NewInvalidState(models.ReasonIllegalTransition, "report %s is %s and cannot be escalated", r.ID, r.Status)
	}

	now := m.now().UTC()
	from := r.Status
	previous := r.AssignedModerator
	r.Status = models.ReportStatusEscalated
	r.Escalation = &models.Escalation{
		EscalatedBy: escalatedBy,
		Reason:      reason,
		FromStatus:  string(from),
		TargetTier:  targetTier,
		EscalatedAt: now,
	}
	r.RequiredTier = targetTier
	r.RequiresManualReview = true
	r.AssignedModerator = nil
	r.UpdatedAt = now
	if err := m.reports.UpdateReport(ctx, r); err != nil {
		return nil, err
	}
	m.logTransition(ctx, r, from, escalatedBy)

	if previous != nil {
		m.notify(ctx, models.NotifyReportEscalated, *previous, r.ID, "A report you held was escalated", map[string]string{
			"reason":      reason,
			"target_tier": string(targetTier),
		})
	}
	return r, nil
}

// GetReport returns one report.
func (m *Manager) GetReport(ctx context.Context, reportID string) (*models.CommunityReport, error) {
	return m.reports.GetReport(ctx, reportID)
}

// ListReports returns reports matching filter.
func (m *Manager) ListReports(ctx context.Context, filter models.ReportFilter) ([]*models.CommunityReport, error) {
	return m.reports.ListReports(ctx, filter)
}

func (m *Manager) execute(ctx context.Context, r *models.CommunityReport, cmd models.PenaltyCommand, issuedBy string) {
	if m.penalties == nil {
		return
	}
	cmd.UserID = r.ReportedUserID
	cmd.ReportID = r.ID
	cmd.SessionID = r.SessionID
	cmd.PuzzleID = r.PuzzleID
	cmd.Reason = "community report " + string(r.Type)
	cmd.IssuedBy = issuedBy
	if err := m.penalties.Execute(ctx, cmd); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("report_id", r.ID).Str("action", string(cmd.Action)).Msg("Failed to execute moderation action")
	}
}

func (m *Manager) notifyReporter(ctx context.Context, r *models.CommunityReport) {
	attrs := map[string]string{"status": string(r.Status)}
	if r.Resolution != nil {
		attrs["action"] = string(r.Resolution.Action)
	}
	m.notify(ctx, models.NotifyReportResolved, r.ReporterUserID, r.ID, "Your report has been handled", attrs)
}

func (m *Manager) logTransition(ctx context.Context, r *models.CommunityReport, from models.ReportStatus, actor string) {
	ev := logging.Ctx(ctx).Info().
		Str("report_id", r.ID).
		Str("from", string(from)).
		Str("to", string(r.Status)).
		Str("actor", actor)
	if r.AssignedModerator != nil {
		ev = ev.Str("moderator_id", *r.AssignedModerator)
	}
	ev.Msg("Report transitioned")
}

func (m *Manager) notify(ctx context.Context, kind models.NotificationKind, recipient, entityID, msg string, attrs map[string]string) {
	if m.notifier == nil || recipient == "" {
		return
	}
	n := &models.Notification{
		ID:          uuid.New().String(),
		Kind:        kind,
		RecipientID: recipient,
		EntityID:    entityID,
		Message:     msg,
		Attributes:  attrs,
		CreatedAt:   m.now().UTC(),
	}
	if err := m.notifier.Notify(ctx, n); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("kind", string(kind)).Str("entity_id", entityID).Msg("Notification failed")
	}
}

func (m *Manager) publish(ctx context.Context, e *models.MetricEvent) {
	if m.events == nil {
		return
	}
	e.ID = uuid.New().String()
	e.OccurredAt = m.now().UTC()
	if err := m.events.Publish(ctx, e); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("type", string(e.Type)).Msg("Failed to publish metric event")
	}
}
