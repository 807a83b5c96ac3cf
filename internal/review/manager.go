// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

// Package review drives review cases through the human-review workflow:
// creation from a flagged detection, assignment to a tiered reviewer,
// review rounds, escalation and the final verdict.
//
// Case lifecycle:
//
//	pending ──► assigned ──► in_review ──► completed
//	   ▲                         │
//	   │                         ├──► pending_additional_review ──► assigned
//	   │                         └──► escalated ──────────────────► assigned
//	   └── EscalateCase (any non-terminal status) ──► escalated
//
// Every mutation is read-validate-persist against the store's Version
// check; a stale write fails with InvalidState/concurrent_modification.
package review

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
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

// SystemActor is recorded for transitions nobody initiated by hand.
const SystemActor = models.SystemReviewerID

const reasonMaxRounds = "maximum review rounds reached"

// Options carries the optional collaborators. Nil members are skipped.
type Options struct {
	Penalties PenaltyExecutor
	Notifier  NotificationSink
	Feedback  DetectionFeedback
	Events    MetricsSink
}

// Manager owns the review-case workflow.
type Manager struct {
	cases     store.CaseStore
	reviewers store.ReviewerDirectory
	penalties PenaltyExecutor
	notifier  NotificationSink
	feedback  DetectionFeedback
	events    MetricsSink
	cfg       config.ReviewConfig
	now       func() time.Time
}

// NewManager creates a case manager.
func NewManager(cases store.CaseStore, reviewers store.ReviewerDirectory, cfg config.ReviewConfig, opts Options) *Manager {
	return &Manager{
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

// DerivePriority maps a detection to a queue priority.
func DerivePriority(d *models.DetectionResult) models.Priority {
	switch {
	case d.Severity == models.SeverityCritical:
		return models.PriorityUrgent
	case d.Severity == models.SeverityHigh,
		len(d.Flags.Behavioral()) >= 3,
		d.Confidence > 0.8,
		d.Flags.AnyCritical():
		return models.PriorityHigh
	default:
		return models.PriorityMedium
	}
}

// Deadline returns the review deadline for a priority.
func (m *Manager) Deadline(p models.Priority) time.Duration {
	switch p {
	case models.PriorityUrgent:
		return m.cfg.UrgentDeadline
	case models.PriorityHigh:
		return m.cfg.HighDeadline
	case models.PriorityLow:
		return m.cfg.LowDeadline
	default:
		return m.cfg.MediumDeadline
	}
}

// CreateCase opens a case for a detection, or folds the detection into the
// existing case for the same (user, session, puzzle). A terminal case is
// returned unchanged.
func (m *Manager) CreateCase(ctx context.Context, result *models.DetectionResult, priority *models.Priority) (*models.ReviewCase, error) {
	if result == nil || result.UserID == "" || result.SessionID == "" {
		return nil, models.NewValidationFailure(models.ReasonInvalidEvidence, "detection result with user and session is required")
	}
	if math.IsNaN(result.Confidence) || result.Confidence < 0 || result.Confidence > 1 {
		return nil, models.NewValidationFailure(models.ReasonInvalidEvidence, "confidence %v outside [0,1]", result.Confidence)
	}
	if !result.Severity.Valid() {
		return nil, models.NewValidationFailure(models.ReasonInvalidEvidence, "unknown severity %q", result.Severity)
	}
	if priority != nil && !priority.Valid() {
		return nil, models.NewValidationFailure(models.ReasonInvalidEvidence, "unknown priority %q", *priority)
	}

	existing, err := m.cases.GetCaseByKey(ctx, result.Key())
	switch {
	case err == nil:
		return m.mergeDetection(ctx, existing, result, priority)
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("lookup case: %w", err)
	}

	now := m.now().UTC()
	p := DerivePriority(result)
	if priority != nil {
		p = *priority
	}
	workflow := models.PlanWorkflow(result.Severity)
	step, _ := workflow.Current()

	det := *result
	det.Flags = append(models.Flags{}, result.Flags...)
	det.Analyses = append([]models.AnalysisResult(nil), result.Analyses...)
	det.Evidence = nil
	if det.Source == "" {
		det.Source = models.SourceAutomated
	}

	c := &models.ReviewCase{
		ID:              uuid.New().String(),
		UserID:          result.UserID,
		SessionID:       result.SessionID,
		PuzzleID:        result.PuzzleID,
		Detection:       det,
		EvidencePackage: result.Evidence,
		Status:          models.CaseStatusPending,
		Priority:        p,
		Workflow:        workflow,
		RequiredTier:    step.Tier,
		ReviewHistory:   []models.ReviewRecord{},
		Source:          det.Source,
		DueAt:           now.Add(m.Deadline(p)),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := m.cases.CreateCase(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			existing, gerr := m.cases.GetCaseByKey(ctx, result.Key())
			if gerr != nil {
				return nil, fmt.Errorf("lookup case after duplicate: %w", gerr)
			}
			return m.mergeDetection(ctx, existing, result, priority)
		}
		return nil, fmt.Errorf("create case: %w", err)
	}

	metrics.RecordCaseTransition("", string(c.Status))
	m.publish(ctx, &models.MetricEvent{
		Type:     models.MetricCaseOpened,
		UserID:   c.UserID,
		CaseID:   c.ID,
		Severity: det.Severity,
		Flagged:  true,
		Source:   c.Source,
	})

	logging.Ctx(ctx).Info().
		Str("case_id", c.ID).
		Str("user_id", c.UserID).
		Str("priority", string(c.Priority)).
		Str("severity", string(det.Severity)).
		Int("workflow_steps", len(workflow.Steps)).
		Msg("Opened review case")

	return c, nil
}

// mergeDetection folds a repeated detection into an open case: flag union,
// max confidence and severity. Nothing is written when nothing changes.
func (m *Manager) mergeDetection(ctx context.Context, c *models.ReviewCase, result *models.DetectionResult, priority *models.Priority) (*models.ReviewCase, error) {
	if c.Status.IsTerminal() {
		logging.Ctx(ctx).Debug().Str("case_id", c.ID).Str("status", string(c.Status)).
			Msg("Detection for closed case ignored")
		return c, nil
	}

	merged := c.Detection
	merged.Flags = c.Detection.Flags.Union(result.Flags)
	merged.Confidence = math.Max(c.Detection.Confidence, result.Confidence)
	merged.Severity = models.MaxSeverity(c.Detection.Severity, result.Severity)

	p := DerivePriority(&merged)
	if priority != nil && priority.Rank() > p.Rank() {
		p = *priority
	}

	unchanged := len(merged.Flags) == len(c.Detection.Flags) &&
		merged.Confidence == c.Detection.Confidence &&
		merged.Severity == c.Detection.Severity &&
		p.Rank() <= c.Priority.Rank()
	if unchanged {
		return c, nil
	}

	now := m.now().UTC()
	c.Detection = merged
	if p.Rank() > c.Priority.Rank() {
		c.Priority = p
		if due := now.Add(m.Deadline(p)); due.Before(c.DueAt) {
			c.DueAt = due
		}
	}
	// Plans nest, so a longer plan extends the current one and the cursor stays valid.
	if plan := models.PlanWorkflow(merged.Severity); len(plan.Steps) > len(c.Workflow.Steps) {
		c.Workflow = models.Workflow{Steps: plan.Steps, Cursor: c.Workflow.Cursor}
	}
	c.UpdatedAt = now

	if err := m.cases.UpdateCase(ctx, c); err != nil {
		return nil, fmt.Errorf("merge detection: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("case_id", c.ID).
		Str("severity", string(merged.Severity)).
		Float64("confidence", merged.Confidence).
		Str("priority", string(c.Priority)).
		Msg("Merged repeated detection into case")

	return c, nil
}

// AssignReviewer hands a case awaiting assignment to a reviewer.
func (m *Manager) AssignReviewer(ctx context.Context, caseID, reviewerID, assignedBy string) (*models.ReviewCase, error) {
	c, err := m.cases.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	r, err := m.reviewers.GetReviewer(ctx, reviewerID)
	if err != nil {
		return nil, err
	}
	if err := m.checkAssignable(ctx, c, r); err != nil {
		metrics.RecordAssignmentFailure(models.ReasonOf(err))
		return nil, err
	}
	return m.assign(ctx, c, r, assignedBy)
}

// AutoAssign picks the least-loaded eligible reviewer. When nobody is
// eligible, or the assignment loses a race, the case stays queued and no
// error is returned.
func (m *Manager) AutoAssign(ctx context.Context, caseID string) (*models.ReviewCase, error) {
	c, err := m.cases.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !c.Status.AwaitingAssignment() {
		return nil, models.NewInvalidState(models.ReasonIllegalTransition, "case %s is %s, not awaiting assignment", c.ID, c.Status)
	}

	candidates, err := m.reviewers.ListReviewers(ctx, models.RoleReviewer)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("case_id", c.ID).Msg("Reviewer lookup failed, case stays queued")
		metrics.RecordAssignmentFailure("directory_error")
		return c, nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	var best *models.Reviewer
	bestLoad := 0
	for _, r := range candidates {
		if !r.Active || !r.CanHandle(c.RequiredTier) || m.needsIndependent(c) && c.HasReviewedBy(r.ID) {
			continue
		}
		load, err := m.cases.CountOpenCasesByReviewer(ctx, r.ID)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("reviewer_id", r.ID).Msg("Load lookup failed, skipping reviewer")
			continue
		}
		if load >= m.maxLoad(r) {
			continue
		}
		if best == nil || load < bestLoad {
			best, bestLoad = r, load
		}
	}

	if best == nil {
		logging.Ctx(ctx).Info().
			Str("case_id", c.ID).
			Str("required_tier", string(c.RequiredTier)).
			Msg("No eligible reviewer available, case stays queued")
		metrics.RecordAssignmentFailure("no_eligible_reviewer")
		return c, nil
	}

	assigned, err := m.assign(ctx, c, best, SystemActor)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("case_id", c.ID).Str("reviewer_id", best.ID).
			Msg("Auto-assignment failed, case stays queued")
		metrics.RecordAssignmentFailure(models.ReasonOf(err))
		return m.cases.GetCase(ctx, caseID)
	}
	return assigned, nil
}

func (m *Manager) checkAssignable(ctx context.Context, c *models.ReviewCase, r *models.Reviewer) error {
	if !c.Status.AwaitingAssignment() {
		return models.NewInvalidState(models.ReasonIllegalTransition, "case %s is %s, not awaiting assignment", c.ID, c.Status)
	}
	if r.Role != models.RoleReviewer || !r.Active {
		return models.NewEligibilityDenied(models.ReasonReviewerInactive, "%s is not an active reviewer", r.ID)
	}
	if !r.CanHandle(c.RequiredTier) {
		return models.NewEligibilityDenied(models.ReasonReviewerTierTooLow, "case requires %s tier, reviewer is %s", c.RequiredTier, r.Tier)
	}
	if m.needsIndependent(c) && c.HasReviewedBy(r.ID) {
		return models.NewEligibilityDenied(models.ReasonReviewerNotIndependent, "%s already reviewed case %s", r.ID, c.ID)
	}
	load, err := m.cases.CountOpenCasesByReviewer(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("count reviewer load: %w", err)
	}
	if load >= m.maxLoad(r) {
		return models.NewCapacityExceeded(models.ReasonReviewerAtCapacity, "%s holds %d open cases", r.ID, load)
	}
	return nil
}

// needsIndependent reports whether the next review must come from someone
// who has not reviewed the case yet.
func (m *Manager) needsIndependent(c *models.ReviewCase) bool {
	return c.Status == models.CaseStatusPendingAdditionalReview
}

func (m *Manager) maxLoad(r *models.Reviewer) int {
	if r.MaxLoad > 0 {
		return r.MaxLoad
	}
	return m.cfg.MaxLoad
}

func (m *Manager) assign(ctx context.Context, c *models.ReviewCase, r *models.Reviewer, assignedBy string) (*models.ReviewCase, error) {
	now := m.now().UTC()
	from := c.Status
	id := r.ID
	c.Status = models.CaseStatusAssigned
	c.AssignedReviewer = &id
	c.AssignedAt = &now
	c.ReviewStartedAt = nil
	c.UpdatedAt = now

	if err := m.cases.UpdateCase(ctx, c); err != nil {
		return nil, err
	}
	m.recordTransition(ctx, c, from, assignedBy)
	m.notify(ctx, models.NotifyCaseAssigned, r.ID, c.ID, "A review case was assigned to you", map[string]string{
		"priority":      string(c.Priority),
		"required_tier": string(c.RequiredTier),
	})
	return c, nil
}

// StartReview opens the review for the assigned reviewer and returns a
// briefing on the case.
func (m *Manager) StartReview(ctx context.Context, caseID, reviewerID string) (*models.CaseAnalysis, error) {
	c, err := m.cases.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !c.IsAssignedTo(reviewerID) {
		return nil, models.NewInvalidState(models.ReasonNotAssignedReviewer, "case %s is not assigned to %s", c.ID, reviewerID)
	}
	if c.Status != models.CaseStatusAssigned {
		return nil, models.NewInvalidState(models.ReasonIllegalTransition, "case %s is %s, not assigned", c.ID, c.Status)
	}

	now := m.now().UTC()
	from := c.Status
	c.Status = models.CaseStatusInReview
	c.ReviewStartedAt = &now
	c.UpdatedAt = now
	if err := m.cases.UpdateCase(ctx, c); err != nil {
		return nil, err
	}
	m.recordTransition(ctx, c, from, reviewerID)

	return m.analyze(ctx, c), nil
}

// SubmitReview records the assigned reviewer's decision and either
// completes the case or sends it round again.
func (m *Manager) SubmitReview(ctx context.Context, caseID, reviewerID string, decision models.ReviewDecision) (*models.ReviewCase, error) {
	c, err := m.cases.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !c.IsAssignedTo(reviewerID) {
		return nil, models.NewInvalidState(models.ReasonNotAssignedReviewer, "case %s is not assigned to %s", c.ID, reviewerID)
	}
	if c.Status != models.CaseStatusInReview {
		return nil, models.NewInvalidState(models.ReasonIllegalTransition, "case %s is %s, not in review", c.ID, c.Status)
	}
	if err := m.validateDecision(decision); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	prev, hadPrev := c.LastVerdict()
	started := now
	if c.ReviewStartedAt != nil {
		started = *c.ReviewStartedAt
	}

	decision.RecommendedActions = append([]models.Action(nil), decision.RecommendedActions...)
	c.ReviewHistory = append(c.ReviewHistory, models.ReviewRecord{
		ReviewerID:  reviewerID,
		Tier:        c.RequiredTier,
		Round:       len(c.ReviewHistory) + 1,
		Decision:    decision,
		StartedAt:   started,
		SubmittedAt: now,
	})
	c.Workflow = c.Workflow.Advance()
	c.UpdatedAt = now

	from := c.Status
	reasons := m.secondReviewReasons(c, decision, prev, hadPrev)
	rounds := len(c.ReviewHistory)

	switch {
	case len(reasons) == 0 || rounds > m.cfg.MaxReviewRounds:
		m.complete(c, decision, now)

	case rounds >= m.cfg.MaxReviewRounds:
		c.Status = models.CaseStatusEscalated
		c.Escalation = &models.Escalation{
			EscalatedBy: SystemActor,
			Reason:      reasonMaxRounds,
			FromStatus:  string(from),
			TargetTier:  models.TierExpert,
			EscalatedAt: now,
		}
		c.RequiredTier = models.TierExpert
		clearAssignment(c)
		c.DueAt = now.Add(m.Deadline(c.Priority))
		reasons = append(reasons, reasonMaxRounds)

	default:
		// The planned step only picks the tier of the next review.
		tier := c.RequiredTier.Next()
		if step, ok := c.Workflow.Current(); ok && step.Tier.Rank() > tier.Rank() {
			tier = step.Tier
		}
		c.Status = models.CaseStatusPendingAdditionalReview
		c.RequiredTier = tier
		clearAssignment(c)
		c.DueAt = now.Add(m.Deadline(c.Priority))
	}

	if err := m.cases.UpdateCase(ctx, c); err != nil {
		return nil, err
	}
	m.recordTransition(ctx, c, from, reviewerID)

	if c.Status != models.CaseStatusCompleted {
		logging.Ctx(ctx).Info().
			Str("case_id", c.ID).
			Str("reviewer_id", reviewerID).
			Str("verdict", string(decision.Verdict)).
			Str("required_tier", string(c.RequiredTier)).
			Strs("reasons", reasons).
			Msg("Further review required")
		return c, nil
	}

	m.applyVerdict(ctx, c, reviewerID)
	return c, nil
}

func (m *Manager) validateDecision(d models.ReviewDecision) error {
	if err := validation.ValidateDomain(d, models.ReasonInvalidDecision); err != nil {
		return err
	}
	if math.IsNaN(d.Confidence) {
		return models.NewValidationFailure(models.ReasonInvalidDecision, "confidence is not a number")
	}
	if utf8.RuneCountInString(strings.TrimSpace(d.Reasoning)) < m.cfg.MinReasoningLength {
		return models.NewValidationFailure(models.ReasonReasoningTooShort, "reasoning must be at least %d characters", m.cfg.MinReasoningLength)
	}
	if d.Verdict.IsDefinitive() && d.Confidence < m.cfg.DefinitiveConfidenceFloor {
		return models.NewValidationFailure(models.ReasonConfidenceBelowFloor, "a %s verdict needs confidence of at least %.2f", d.Verdict, m.cfg.DefinitiveConfidenceFloor)
	}
	return nil
}

// secondReviewReasons lists every rule demanding another review. c already
// carries the new record.
func (m *Manager) secondReviewReasons(c *models.ReviewCase, d models.ReviewDecision, prev models.Verdict, hadPrev bool) []string {
	var reasons []string
	if c.Detection.Severity == models.SeverityCritical && len(c.ReviewHistory) < 2 {
		reasons = append(reasons, "critical severity requires two reviews")
	}
	if d.Confidence < m.cfg.SecondReviewConfidence {
		reasons = append(reasons, "reviewer confidence below threshold")
	}
	if d.Verdict == models.VerdictInconclusive {
		reasons = append(reasons, "inconclusive verdict")
	}
	if hadPrev && prev != d.Verdict {
		reasons = append(reasons, "verdict disagrees with previous review")
	}
	return reasons
}

func (m *Manager) complete(c *models.ReviewCase, d models.ReviewDecision, now time.Time) {
	c.Status = models.CaseStatusCompleted
	final := d
	c.FinalDecision = &final
	c.ResolvedAt = &now
	c.AppealDeadline = nil
	if d.Verdict == models.VerdictConfirmedCheat {
		deadline := now.Add(m.cfg.AppealWindow)
		c.AppealDeadline = &deadline
	}
}

// applyVerdict runs the side effects of a final decision. Each is
// best-effort: the verdict is already persisted.
func (m *Manager) applyVerdict(ctx context.Context, c *models.ReviewCase, reviewerID string) {
	d := c.FinalDecision
	log := logging.Ctx(ctx)

	for _, action := range models.ActionsForVerdict(d.Verdict) {
		switch action {
		case models.ActionFalsePositiveFeedback:
			if m.feedback == nil {
				continue
			}
			err := m.feedback.RecordFeedback(ctx, &models.FeedbackSignal{
				CaseID:        c.ID,
				DetectionID:   c.Detection.ID,
				UserID:        c.UserID,
				Flags:         c.Detection.Flags,
				FalsePositive: true,
				Source:        "review",
			})
			if err != nil {
				log.Warn().Err(err).Str("case_id", c.ID).Msg("Failed to record false-positive feedback")
			}

		case models.ActionRequestMoreData:
			m.notify(ctx, models.NotifyMoreDataRequired, c.UserID, c.ID, "More information is needed about a recent solve", nil)

		default:
			if m.penalties == nil {
				continue
			}
			cmd := models.PenaltyCommand{
				Action:    action,
				UserID:    c.UserID,
				CaseID:    c.ID,
				SessionID: c.SessionID,
				PuzzleID:  c.PuzzleID,
				Permanent: d.PermanentBan,
				Scope:     d.InvalidationScope,
				Reason:    "review verdict: " + string(d.Verdict),
				IssuedBy:  reviewerID,
			}
			if d.BanDays != nil {
				cmd.BanDays = *d.BanDays
			}
			if err := m.penalties.Execute(ctx, cmd); err != nil {
				log.Error().Err(err).Str("case_id", c.ID).Str("action", string(action)).Msg("Failed to execute verdict action")
			}
		}
	}

	metrics.RecordCaseVerdict(string(d.Verdict))
	m.publish(ctx, &models.MetricEvent{
		Type:     models.MetricCaseCompleted,
		UserID:   c.UserID,
		CaseID:   c.ID,
		Severity: c.Detection.Severity,
		Flagged:  true,
		Verdict:  d.Verdict,
		Source:   c.Source,
	})

	attrs := map[string]string{"verdict": string(d.Verdict)}
	if c.AppealDeadline != nil {
		attrs["appeal_deadline"] = c.AppealDeadline.Format(time.RFC3339)
	}
	m.notify(ctx, models.NotifyCaseDecided, c.UserID, c.ID, "A review of your play has concluded", attrs)

	log.Info().
		Str("case_id", c.ID).
		Str("reviewer_id", reviewerID).
		Str("verdict", string(d.Verdict)).
		Int("rounds", len(c.ReviewHistory)).
		Msg("Case completed")
}

// EscalateCase re-queues a non-terminal case at targetTier.
func (m *Manager) EscalateCase(ctx context.Context, caseID, escalatedBy, reason string, targetTier models.ReviewTier) (*models.ReviewCase, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, models.NewValidationFailure(models.ReasonInvalidEscalation, "escalation reason is required")
	}
	if !targetTier.Valid() {
		return nil, models.NewValidationFailure(models.ReasonInvalidEscalation, "unknown tier %q", targetTier)
	}

	c, err := m.cases.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status.IsTerminal() {
		return nil, models.NewInvalidState(models.ReasonIllegalTransition, "case %s is %s and cannot be escalated", c.ID, c.Status)
	}

	now := m.now().UTC()
	from := c.Status
	previous := c.AssignedReviewer

	c.Status = models.CaseStatusEscalated
	c.Escalation = &models.Escalation{
		EscalatedBy: escalatedBy,
		Reason:      reason,
		FromStatus:  string(from),
		TargetTier:  targetTier,
		EscalatedAt: now,
	}
	c.RequiredTier = targetTier
	clearAssignment(c)
	c.DueAt = now.Add(m.Deadline(c.Priority))
	c.UpdatedAt = now

	if err := m.cases.UpdateCase(ctx, c); err != nil {
		return nil, err
	}
	m.recordTransition(ctx, c, from, escalatedBy)

	if previous != nil {
		m.notify(ctx, models.NotifyCaseEscalated, *previous, c.ID, "A case you held was escalated", map[string]string{
			"reason":      reason,
			"target_tier": string(targetTier),
		})
	}
	return c, nil
}

// GetCase returns one case.
func (m *Manager) GetCase(ctx context.Context, caseID string) (*models.ReviewCase, error) {
	return m.cases.GetCase(ctx, caseID)
}

// ListCases returns cases matching filter.
func (m *Manager) ListCases(ctx context.Context, filter models.CaseFilter) ([]*models.ReviewCase, error) {
	return m.cases.ListCases(ctx, filter)
}

func clearAssignment(c *models.ReviewCase) {
	c.AssignedReviewer = nil
	c.AssignedAt = nil
	c.ReviewStartedAt = nil
}

func (m *Manager) recordTransition(ctx context.Context, c *models.ReviewCase, from models.CaseStatus, actor string) {
	metrics.RecordCaseTransition(string(from), string(c.Status))
	ev := logging.Ctx(ctx).Info().
		Str("case_id", c.ID).
		Str("from", string(from)).
		Str("to", string(c.Status)).
		Str("actor", actor)
	if c.AssignedReviewer != nil {
		ev = ev.Str("reviewer_id", *c.AssignedReviewer)
	}
	ev.Msg("Case transitioned")
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
