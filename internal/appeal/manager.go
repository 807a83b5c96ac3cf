// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

// Package appeal handles disputes against completed review cases.
//
// Appeal lifecycle:
//
//	submitted ──► under_review ──► approved | rejected | modified
//	    │               │
//	    │               └──► withdrawn
//	    ├──► withdrawn
//	    └──► approved (automatic, procedural_error above the threshold)
//
// Eligibility is checked on submission only: the case must be completed
// with a confirmed_cheat verdict, inside its appeal window, with no earlier
// appeal by the same user and the user under the yearly cap.
package appeal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tomtom215/fairplay/internal/config"
	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/metrics"
	"github.com/tomtom215/fairplay/internal/models"
	"github.com/tomtom215/fairplay/internal/store"
	"github.com/tomtom215/fairplay/internal/validation"
)

// evidenceWeight discounts the appellant's claimed confidence by how
// verifiable each evidence type is.
var evidenceWeight = map[models.EvidenceType]float64{
	models.EvidenceProceduralError:    1.0,
	models.EvidenceNewEvidence:        0.9,
	models.EvidenceTechnicalIssue:     0.85,
	models.EvidenceMisidentification:  0.8,
	models.EvidenceContextExplanation: 0.7,
}

const (
	attachmentBonus    = 0.02
	maxAttachmentBonus = 0.1
)

// SubmitRequest is an appellant's filing. UserID comes from the
// authenticated caller, never from the body.
type SubmitRequest struct {
	CaseID   string                `json:"case_id" validate:"required,max=128"`
	UserID   string                `json:"-" validate:"required,max=128"`
	Reason   string                `json:"reason" validate:"required,max=5000"`
	Evidence models.AppealEvidence `json:"evidence"`
}

// ReviewInput is the reviewer's contribution to an appeal decision. A
// non-nil Outcome overrides the derived one.
type ReviewInput struct {
	Reasoning       string                  `json:"reasoning" validate:"required,min=20,max=10000"`
	Outcome         *models.AppealOutcome   `json:"outcome,omitempty" validate:"omitempty,oneof=approved rejected modified"`
	Confidence      *float64                `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	NewInformation  bool                    `json:"new_information"`
	ModifiedPenalty *models.ModifiedPenalty `json:"modified_penalty,omitempty"`
	Compensate      bool                    `json:"compensate"`
}

// Options carries the optional collaborators. Nil members are skipped.
type Options struct {
	Penalties PenaltyExecutor
	Notifier  NotificationSink
	Feedback  DetectionFeedback
	Events    MetricsSink
}

// Manager owns the appeal workflow.
type Manager struct {
	appeals   store.AppealStore
	cases     store.CaseStore
	reviewers store.ReviewerDirectory
	penalties PenaltyExecutor
	notifier  NotificationSink
	feedback  DetectionFeedback
	events    MetricsSink
	cfg       config.AppealConfig
	now       func() time.Time
}

// NewManager creates an appeal manager.
func NewManager(appeals store.AppealStore, cases store.CaseStore, reviewers store.ReviewerDirectory, cfg config.AppealConfig, opts Options) *Manager {
	return &Manager{
		appeals:   appeals,
		cases:     cases,
		reviewers: reviewers,
		penalties: opts.Penalties,
		notifier:  opts.Notifier,
		feedback:  opts.Feedback,
		events:    opts.Events,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetClock overrides the clock.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// EvidenceConfidence scores submitted evidence in [0,1].
func EvidenceConfidence(e models.AppealEvidence) float64 {
	w, ok := evidenceWeight[e.Type]
	if !ok {
		return 0
	}
	bonus := math.Min(float64(len(e.Attachments))*attachmentBonus, maxAttachmentBonus)
	return clamp01(e.Confidence*w + bonus)
}

// SubmitAppeal files an appeal. A procedural-error claim above the
// auto-approval threshold is approved on the spot.
func (m *Manager) SubmitAppeal(ctx context.Context, req SubmitRequest) (*models.Appeal, error) {
	if err := validation.ValidateDomain(req, models.ReasonInvalidEvidence); err != nil {
		return nil, err
	}
	if !req.Evidence.Type.Valid() {
		return nil, models.NewValidationFailure(models.ReasonInvalidEvidence, "unknown evidence type %q", req.Evidence.Type)
	}
	if math.IsNaN(req.Evidence.Confidence) {
		return nil, models.NewValidationFailure(models.ReasonInvalidEvidence, "evidence confidence is not a number")
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Reason)) < m.cfg.MinReasonLength {
		return nil, models.NewValidationFailure(models.ReasonReasoningTooShort, "reason must be at least %d characters", m.cfg.MinReasonLength)
	}

	c, err := m.cases.GetCase(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	if err := m.checkEligibility(ctx, c, req.UserID, now); err != nil {
		metrics.RecordDomainError("appeal", string(models.KindOf(err)), models.ReasonOf(err))
		return nil, err
	}

	priority := appealPriority(c, req.Evidence.Type)
	a := &models.Appeal{
		ID:                 uuid.New().String(),
		OriginalCaseID:     c.ID,
		UserID:             req.UserID,
		Status:             models.AppealStatusSubmitted,
		Priority:           priority,
		Reason:             strings.TrimSpace(req.Reason),
		Evidence:           req.Evidence,
		EvidenceConfidence: EvidenceConfidence(req.Evidence),
		Fee:                m.fee(),
		SubmittedAt:        now,
		DeadlineAt:         now.Add(m.sla(priority)),
		UpdatedAt:          now,
	}
	a.Evidence.Attachments = append([]string(nil), req.Evidence.Attachments...)

	if err := m.appeals.CreateAppeal(ctx, a); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, models.NewEligibilityDenied(models.ReasonDuplicateAppeal, "an appeal for case %s already exists", c.ID)
		}
		return nil, fmt.Errorf("create appeal: %w", err)
	}

	id := a.ID
	c.AppealID = &id
	c.UpdatedAt = now
	if err := m.cases.UpdateCase(ctx, c); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("case_id", c.ID).Str("appeal_id", a.ID).Msg("Failed to link appeal to case")
	}

	metrics.RecordAppealSubmitted(string(a.Evidence.Type))
	logging.Ctx(ctx).Info().
		Str("appeal_id", a.ID).
		Str("case_id", c.ID).
		Str("user_id", a.UserID).
		Str("priority", string(a.Priority)).
		Str("evidence_type", string(a.Evidence.Type)).
		Float64("evidence_confidence", a.EvidenceConfidence).
		Msg("Appeal submitted")
	m.notify(ctx, models.NotifyAppealSubmitted, a.UserID, a.ID, "Your appeal was received", map[string]string{
		"deadline_at": a.DeadlineAt.Format(time.RFC3339),
	})

	if a.Evidence.Type == models.EvidenceProceduralError && a.EvidenceConfidence > m.cfg.AutoApproveThreshold {
		return m.autoApprove(ctx, a, c)
	}
	return a, nil
}

func (m *Manager) checkEligibility(ctx context.Context, c *models.ReviewCase, userID string, now time.Time) error {
	if c.UserID != userID {
		return models.NewEligibilityDenied(models.ReasonNotAppellant, "case %s belongs to another user", c.ID)
	}
	if c.Status != models.CaseStatusCompleted || c.FinalDecision == nil || c.AppealDeadline == nil {
		return models.NewEligibilityDenied(models.ReasonCaseNotAppealable, "case %s has no appealable decision", c.ID)
	}
	if now.After(*c.AppealDeadline) {
		return models.NewEligibilityDenied(models.ReasonAppealWindowExpired, "appeal window closed at %s", c.AppealDeadline.Format(time.RFC3339))
	}

	_, err := m.appeals.FindAppeal(ctx, c.ID, userID)
	switch {
	case err == nil:
		return models.NewEligibilityDenied(models.ReasonDuplicateAppeal, "an appeal for case %s already exists", c.ID)
	case !errors.Is(err, models.ErrNotFound):
		return fmt.Errorf("lookup appeal: %w", err)
	}

	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	n, err := m.appeals.CountAppealsSince(ctx, userID, yearStart)
	if err != nil {
		return fmt.Errorf("count appeals: %w", err)
	}
	if n >= m.cfg.MaxPerYear {
		return models.NewEligibilityDenied(models.ReasonAnnualAppealLimit, "%d appeals already filed in %d", n, now.Year())
	}
	return nil
}

func appealPriority(c *models.ReviewCase, t models.EvidenceType) models.AppealPriority {
	switch {
	case c.FinalDecision != nil && c.FinalDecision.PermanentBan:
		return models.AppealPriorityUrgent
	case t == models.EvidenceNewEvidence, t == models.EvidenceProceduralError:
		return models.AppealPriorityHigh
	default:
		return models.AppealPriorityNormal
	}
}

func (m *Manager) sla(p models.AppealPriority) time.Duration {
	switch p {
	case models.AppealPriorityUrgent:
		return m.cfg.UrgentSLA
	case models.AppealPriorityHigh:
		return m.cfg.HighSLA
	default:
		return m.cfg.NormalSLA
	}
}

func (m *Manager) fee() models.AppealFee {
	if m.cfg.WaiveFees {
		return models.AppealFee{AmountCents: m.cfg.FeeCents, Waived: true, Reason: "waived by policy"}
	}
	return models.AppealFee{AmountCents: m.cfg.FeeCents}
}

func (m *Manager) autoApprove(ctx context.Context, a *models.Appeal, c *models.ReviewCase) (*models.Appeal, error) {
	d := &models.AppealDecision{
		Outcome:    models.AppealOutcomeApproved,
		ReviewerID: models.SystemReviewerID,
		Reasoning:  fmt.Sprintf("procedural error substantiated with confidence %.2f", a.EvidenceConfidence),
		Confidence: a.EvidenceConfidence,
		Automatic:  true,
	}
	if err := m.resolve(ctx, a, d); err != nil {
		return nil, err
	}
	m.applyOutcome(ctx, a, c)
	return a, nil
}

// AssignAppeal hands a submitted appeal to a reviewer who took no part in
// the original case.
func (m *Manager) AssignAppeal(ctx context.Context, appealID, reviewerID string) (*models.Appeal, error) {
	a, err := m.appeals.GetAppeal(ctx, appealID)
	if err != nil {
		return nil, err
	}
	if a.Status != models.AppealStatusSubmitted {
		return nil, models.NewInvalidState(models.ReasonIllegalTransition, "appeal %s is %s, not submitted", a.ID, a.Status)
	}
	r, err := m.reviewers.GetReviewer(ctx, reviewerID)
	if err != nil {
		return nil, err
	}
	if r.Role != models.RoleReviewer || !r.Active {
		return nil, models.NewEligibilityDenied(models.ReasonReviewerInactive, "%s is not an active reviewer", r.ID)
	}
	c, err := m.cases.GetCase(ctx, a.OriginalCaseID)
	if err != nil {
		return nil, fmt.Errorf("load original case: %w", err)
	}
	if c.HasReviewedBy(r.ID) {
		return nil, models.NewEligibilityDenied(models.ReasonReviewerNotIndependent, "%s reviewed the original case", r.ID)
	}
	load, err := m.appeals.CountOpenAppealsByReviewer(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("count reviewer load: %w", err)
	}
	limit := m.cfg.MaxLoad
	if r.MaxLoad > 0 {
		limit = r.MaxLoad
	}
	if load >= limit {
		metrics.RecordAssignmentFailure(models.ReasonReviewerAtCapacity)
		return nil, models.NewCapacityExceeded(models.ReasonReviewerAtCapacity, "%s holds %d open appeals", r.ID, load)
	}

	now := m.now().UTC()
	id := r.ID
	a.Status = models.AppealStatusUnderReview
	a.AssignedReviewer = &id
	a.UpdatedAt = now
	if err := m.appeals.UpdateAppeal(ctx, a); err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Info().
		Str("appeal_id", a.ID).
		Str("reviewer_id", r.ID).
		Str("from", string(models.AppealStatusSubmitted)).
		Str("to", string(a.Status)).
		Msg("Appeal transitioned")
	m.notify(ctx, models.NotifyAppealAssigned, r.ID, a.ID, "An appeal was assigned to you", map[string]string{
		"priority": string(a.Priority),
	})
	return a, nil
}

// ReviewAppeal decides an appeal under review. The outcome is derived from
// the analysis unless the reviewer overrides it.
func (m *Manager) ReviewAppeal(ctx context.Context, appealID, reviewerID string, in ReviewInput) (*models.Appeal, error) {
	if err := validation.ValidateDomain(in, models.ReasonInvalidDecision); err != nil {
		return nil, err
	}
	a, err := m.appeals.GetAppeal(ctx, appealID)
	if err != nil {
		return nil, err
	}
	if a.Status != models.AppealStatusUnderReview {
		return nil, models.NewInvalidState(models.ReasonIllegalTransition, "appeal %s is %s, not under review", a.ID, a.Status)
	}
	if !a.IsAssignedTo(reviewerID) {
		return nil, models.NewInvalidState(models.ReasonNotAssignedReviewer, "appeal %s is not assigned to %s", a.ID, reviewerID)
	}
	c, err := m.cases.GetCase(ctx, a.OriginalCaseID)
	if err != nil {
		return nil, fmt.Errorf("load original case: %w", err)
	}

	analysis := m.analyze(ctx, a, c, in.NewInformation)
	outcome := deriveOutcome(analysis.OverallScore)
	d := &models.AppealDecision{
		Outcome:    outcome,
		ReviewerID: reviewerID,
		Reasoning:  strings.TrimSpace(in.Reasoning),
		Confidence: outcomeConfidence(analysis.OverallScore),
		Analysis:   analysis,
	}
	if in.Outcome != nil && *in.Outcome != outcome {
		d.Outcome = *in.Outcome
		d.Overridden = true
	}
	if in.Confidence != nil {
		d.Confidence = *in.Confidence
	}

	switch d.Outcome {
	case models.AppealOutcomeApproved:
		d.CompensationOwed = in.Compensate || analysis.ProceduralCompliance < 0.5
	case models.AppealOutcomeModified:
		d.ModifiedPenalty = in.ModifiedPenalty
		if d.ModifiedPenalty == nil {
			d.ModifiedPenalty = reducedPenalty(c.FinalDecision)
		}
	}
	d.FollowUpRequired = len(analysis.BiasIndicators) > 0 || d.Outcome == models.AppealOutcomeModified

	if err := m.resolve(ctx, a, d); err != nil {
		return nil, err
	}
	m.applyOutcome(ctx, a, c)
	return a, nil
}

func deriveOutcome(score float64) models.AppealOutcome {
	switch {
	case score >= 0.7:
		return models.AppealOutcomeApproved
	case score >= 0.45:
		return models.AppealOutcomeModified
	default:
		return models.AppealOutcomeRejected
	}
}

// outcomeConfidence grows with the distance of the score from the middle.
func outcomeConfidence(score float64) float64 {
	return clamp01(0.5 + math.Abs(score-0.5))
}

// reducedPenalty halves the original ban and narrows invalidation to the
// disputed session.
func reducedPenalty(orig *models.ReviewDecision) *models.ModifiedPenalty {
	days := 30
	if orig != nil && orig.BanDays != nil && *orig.BanDays > 0 {
		days = *orig.BanDays
	}
	if orig != nil && orig.PermanentBan {
		days = 365
	}
	days /= 2
	if days < 1 {
		days = 1
	}
	return &models.ModifiedPenalty{
		BanDays:           days,
		InvalidationScope: models.ScopeSession,
		PartialRestore:    true,
	}
}

// resolve persists a terminal decision.
func (m *Manager) resolve(ctx context.Context, a *models.Appeal, d *models.AppealDecision) error {
	now := m.now().UTC()
	from := a.Status
	d.DecidedAt = now
	a.Decision = d
	a.Status = d.Outcome.Status()
	a.ResolvedAt = &now
	a.UpdatedAt = now
	if err := m.appeals.UpdateAppeal(ctx, a); err != nil {
		return err
	}
	metrics.RecordAppealOutcome(string(d.Outcome), d.Automatic)
	logging.Ctx(ctx).Info().
		Str("appeal_id", a.ID).
		Str("case_id", a.OriginalCaseID).
		Str("from", string(from)).
		Str("to", string(a.Status)).
		Str("reviewer_id", d.ReviewerID).
		Bool("overridden", d.Overridden).
		Bool("automatic", d.Automatic).
		Float64("confidence", d.Confidence).
		Msg("Appeal resolved")
	return nil
}

// applyOutcome runs the side effects of a resolved appeal. Each is
// best-effort: the decision is already persisted.
func (m *Manager) applyOutcome(ctx context.Context, a *models.Appeal, c *models.ReviewCase) {
	d := a.Decision
	switch d.Outcome {
	case models.AppealOutcomeApproved:
		actions := []models.Action{models.ActionReversePenalty, models.ActionRestoreResults, models.ActionClearRecord}
		if d.CompensationOwed {
			actions = append(actions, models.ActionCompensate)
		}
		for _, action := range actions {
			m.execute(ctx, a, c, models.PenaltyCommand{Action: action})
		}
		m.sendFeedback(ctx, a, c, true)

	case models.AppealOutcomeModified:
		mp := d.ModifiedPenalty
		scope := mp.InvalidationScope
		m.execute(ctx, a, c, models.PenaltyCommand{Action: models.ActionReducePenalty, BanDays: mp.BanDays, Scope: &scope})
		if mp.PartialRestore {
			m.execute(ctx, a, c, models.PenaltyCommand{Action: models.ActionRestoreResults, Scope: &scope})
		}

	case models.AppealOutcomeRejected:
		m.sendFeedback(ctx, a, c, false)
	}

	m.publish(ctx, &models.MetricEvent{
		Type:          models.MetricAppealResolved,
		UserID:        a.UserID,
		CaseID:        c.ID,
		AppealID:      a.ID,
		Verdict:       verdictOf(c),
		AppealOutcome: d.Outcome,
		Source:        c.Source,
	})
	m.notify(ctx, models.NotifyAppealDecided, a.UserID, a.ID, "Your appeal has been decided", map[string]string{
		"outcome": string(d.Outcome),
	})
}

func (m *Manager) execute(ctx context.Context, a *models.Appeal, c *models.ReviewCase, cmd models.PenaltyCommand) {
	if m.penalties == nil {
		return
	}
	cmd.UserID = a.UserID
	cmd.CaseID = c.ID
	cmd.AppealID = a.ID
	cmd.SessionID = c.SessionID
	cmd.PuzzleID = c.PuzzleID
	cmd.Reason = "appeal " + string(a.Decision.Outcome)
	cmd.IssuedBy = a.Decision.ReviewerID
	if err := m.penalties.Execute(ctx, cmd); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("appeal_id", a.ID).Str("action", string(cmd.Action)).Msg("Failed to execute appeal action")
	}
}

func (m *Manager) sendFeedback(ctx context.Context, a *models.Appeal, c *models.ReviewCase, falsePositive bool) {
	if m.feedback == nil {
		return
	}
	err := m.feedback.RecordFeedback(ctx, &models.FeedbackSignal{
		CaseID:        c.ID,
		DetectionID:   c.Detection.ID,
		UserID:        a.UserID,
		Flags:         c.Detection.Flags,
		FalsePositive: falsePositive,
		Source:        "appeal",
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("appeal_id", a.ID).Msg("Failed to record appeal feedback")
	}
}

// WithdrawAppeal lets the appellant retract an open appeal.
func (m *Manager) WithdrawAppeal(ctx context.Context, appealID, userID string) (*models.Appeal, error) {
	a, err := m.appeals.GetAppeal(ctx, appealID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, models.NewEligibilityDenied(models.ReasonNotAppellant, "only the appellant may withdraw appeal %s", a.ID)
	}
	if !a.Status.Withdrawable() {
		return nil, models.NewInvalidState(models.ReasonIllegalTransition, "appeal %s is %s and cannot be withdrawn", a.ID, a.Status)
	}

	now := m.now().UTC()
	from := a.Status
	reviewer := a.AssignedReviewer
	a.Status = models.AppealStatusWithdrawn
	a.ResolvedAt = &now
	a.UpdatedAt = now
	if err := m.appeals.UpdateAppeal(ctx, a); err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Info().
		Str("appeal_id", a.ID).
		Str("user_id", userID).
		Str("from", string(from)).
		Str("to", string(a.Status)).
		Msg("Appeal transitioned")
	if reviewer != nil {
		m.notify(ctx, models.NotifyAppealWithdrawn, *reviewer, a.ID, "An appeal you hold was withdrawn", nil)
	}
	return a, nil
}

// GetAppeal returns one appeal.
func (m *Manager) GetAppeal(ctx context.Context, appealID string) (*models.Appeal, error) {
	return m.appeals.GetAppeal(ctx, appealID)
}

// ListAppeals returns appeals matching filter.
func (m *Manager) ListAppeals(ctx context.Context, filter models.AppealFilter) ([]*models.Appeal, error) {
	return m.appeals.ListAppeals(ctx, filter)
}

func verdictOf(c *models.ReviewCase) models.Verdict {
	if c.FinalDecision == nil {
		return ""
	}
	return c.FinalDecision.Verdict
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

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
