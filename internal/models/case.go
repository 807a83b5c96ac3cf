// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package models

import (
	"time"
)

// CaseStatus is the workflow state of a review case.
type CaseStatus string

const (
	CaseStatusPending                 CaseStatus = "pending"
	CaseStatusAssigned                CaseStatus = "assigned"
	CaseStatusInReview                CaseStatus = "in_review"
	CaseStatusCompleted               CaseStatus = "completed"
	CaseStatusEscalated               CaseStatus = "escalated"
	CaseStatusPendingAdditionalReview CaseStatus = "pending_additional_review"
	CaseStatusWithdrawn               CaseStatus = "withdrawn"
	CaseStatusArchived                CaseStatus = "archived"
)

// caseTransitions is the legal forward transition table. Explicit
// escalation is the only way back into the queue from elsewhere.
var caseTransitions = map[CaseStatus][]CaseStatus{
	CaseStatusPending:                 {CaseStatusAssigned},
	CaseStatusAssigned:                {CaseStatusInReview},
	CaseStatusInReview:                {CaseStatusCompleted, CaseStatusEscalated, CaseStatusPendingAdditionalReview},
	CaseStatusPendingAdditionalReview: {CaseStatusAssigned},
	CaseStatusEscalated:               {CaseStatusAssigned},
}

// CanTransition reports whether from -> to is a legal workflow step.
func CanTransition(from, to CaseStatus) bool {
	for _, s := range caseTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports statuses no operation leaves.
func (s CaseStatus) IsTerminal() bool {
	switch s {
	case CaseStatusCompleted, CaseStatusWithdrawn, CaseStatusArchived:
		return true
	}
	return false
}

// AwaitingAssignment reports statuses from which a reviewer may be assigned.
func (s CaseStatus) AwaitingAssignment() bool {
	switch s {
	case CaseStatusPending, CaseStatusPendingAdditionalReview, CaseStatusEscalated:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s CaseStatus) Valid() bool {
	switch s {
	case CaseStatusPending, CaseStatusAssigned, CaseStatusInReview, CaseStatusCompleted,
		CaseStatusEscalated, CaseStatusPendingAdditionalReview, CaseStatusWithdrawn, CaseStatusArchived:
		return true
	}
	return false
}

// Priority orders the review queue.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities; higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	}
	return 0
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool { return p.Rank() > 0 }

// ReviewTier is reviewer seniority.
type ReviewTier string

const (
	TierInitial   ReviewTier = "initial"
	TierSecondary ReviewTier = "secondary"
	TierExpert    ReviewTier = "expert"
)

// Rank orders tiers initial < secondary < expert.
func (t ReviewTier) Rank() int {
	switch t {
	case TierInitial:
		return 1
	case TierSecondary:
		return 2
	case TierExpert:
		return 3
	}
	return 0
}

// Valid reports whether t is a known tier.
func (t ReviewTier) Valid() bool { return t.Rank() > 0 }

// Next returns the next senior tier; expert stays expert.
func (t ReviewTier) Next() ReviewTier {
	switch t {
	case TierInitial:
		return TierSecondary
	default:
		return TierExpert
	}
}

// WorkflowStep is one planned review stage.
type WorkflowStep struct {
	Name string     `json:"name"`
	Tier ReviewTier `json:"tier"`
}

// Workflow is the ordered review plan fixed at case creation. Steps are
// never mutated; progress is tracked by Cursor alone.
type Workflow struct {
	Steps  []WorkflowStep `json:"steps"`
	Cursor int            `json:"cursor"`
}

// Workflow step names.
const (
	StepInitialReview   = "initial_review"
	StepSecondaryReview = "secondary_review"
	StepExpertReview    = "expert_review"
)

// PlanWorkflow builds the step list for a detection severity.
func PlanWorkflow(sev Severity) Workflow {
	steps := []WorkflowStep{{Name: StepInitialReview, Tier: TierInitial}}
	if sev.AtLeast(SeverityHigh) {
		steps = append(steps, WorkflowStep{Name: StepSecondaryReview, Tier: TierSecondary})
	}
	if sev == SeverityCritical {
		steps = append(steps, WorkflowStep{Name: StepExpertReview, Tier: TierExpert})
	}
	return Workflow{Steps: steps}
}

// Current returns the active step, or false once every step is done.
func (w Workflow) Current() (WorkflowStep, bool) {
	if w.Cursor < 0 || w.Cursor >= len(w.Steps) {
		return WorkflowStep{}, false
	}
	return w.Steps[w.Cursor], true
}

// Advance returns the workflow with the cursor moved one step forward.
func (w Workflow) Advance() Workflow {
	if w.Cursor < len(w.Steps) {
		w.Cursor++
	}
	return w
}

// Done reports whether every planned step has been passed.
func (w Workflow) Done() bool { return w.Cursor >= len(w.Steps) }

// Verdict is the categorical outcome of a review.
type Verdict string

const (
	VerdictLegitimate     Verdict = "legitimate"
	VerdictSuspicious     Verdict = "suspicious"
	VerdictConfirmedCheat Verdict = "confirmed_cheat"
	VerdictInconclusive   Verdict = "inconclusive"
)

// Valid reports whether v is a known verdict.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictLegitimate, VerdictSuspicious, VerdictConfirmedCheat, VerdictInconclusive:
		return true
	}
	return false
}

// IsDefinitive reports verdicts that commit to an answer.
func (v Verdict) IsDefinitive() bool {
	return v.Valid() && v != VerdictInconclusive
}

// Action is an enforcement or follow-up step attached to a decision.
type Action string

const (
	ActionBan                   Action = "ban"
	ActionInvalidateResults     Action = "invalidate_results"
	ActionIncreaseMonitoring    Action = "increase_monitoring"
	ActionWarning               Action = "warning"
	ActionClearRestrictions     Action = "clear_restrictions"
	ActionFalsePositiveFeedback Action = "false_positive_feedback"
	ActionWatchList             Action = "watch_list"
	ActionRequestMoreData       Action = "request_more_data"
	ActionReversePenalty        Action = "reverse_penalty"
	ActionRestoreResults        Action = "restore_results"
	ActionClearRecord           Action = "clear_record"
	ActionCompensate            Action = "compensate"
	ActionReducePenalty         Action = "reduce_penalty"
	ActionTemporaryRestriction  Action = "temporary_restriction"
)

// ActionsForVerdict returns the actions a final verdict triggers.
func ActionsForVerdict(v Verdict) []Action {
	switch v {
	case VerdictConfirmedCheat:
		return []Action{ActionBan, ActionInvalidateResults}
	case VerdictSuspicious:
		return []Action{ActionIncreaseMonitoring, ActionWarning}
	case VerdictLegitimate:
		return []Action{ActionClearRestrictions, ActionFalsePositiveFeedback}
	case VerdictInconclusive:
		return []Action{ActionWatchList, ActionRequestMoreData}
	}
	return nil
}

// InvalidationScope bounds which results a cheat verdict voids.
type InvalidationScope string

const (
	ScopeSession InvalidationScope = "session"
	ScopePuzzle  InvalidationScope = "puzzle"
	ScopeAll     InvalidationScope = "all"
)

// ReviewDecision is a reviewer's judgment on a case.
type ReviewDecision struct {
	Verdict            Verdict            `json:"verdict" validate:"required,oneof=legitimate suspicious confirmed_cheat inconclusive"`
	Confidence         float64            `json:"confidence" validate:"gte=0,lte=1"`
	Reasoning          string             `json:"reasoning" validate:"required,max=10000"`
	RecommendedActions []Action           `json:"recommended_actions,omitempty" validate:"dive,required,max=64"`
	BanDays            *int               `json:"ban_days,omitempty" validate:"omitempty,gte=1,lte=3650"`
	PermanentBan       bool               `json:"permanent_ban,omitempty"`
	InvalidationScope  *InvalidationScope `json:"invalidation_scope,omitempty" validate:"omitempty,oneof=session puzzle all"`
}

// ReviewRecord wraps a decision with who made it and when. Immutable once appended.
type ReviewRecord struct {
	ReviewerID  string         `json:"reviewer_id"`
	Tier        ReviewTier     `json:"tier"`
	Round       int            `json:"round"`
	Decision    ReviewDecision `json:"decision"`
	StartedAt   time.Time      `json:"started_at"`
	SubmittedAt time.Time      `json:"submitted_at"`
}

// TimeSpent is how long the reviewer had the case open.
func (r ReviewRecord) TimeSpent() time.Duration {
	if r.StartedAt.IsZero() || r.SubmittedAt.Before(r.StartedAt) {
		return 0
	}
	return r.SubmittedAt.Sub(r.StartedAt)
}

// Escalation records the most recent re-queue of a case or report.
type Escalation struct {
	EscalatedBy string     `json:"escalated_by"`
	Reason      string     `json:"reason"`
	FromStatus  string     `json:"from_status"`
	TargetTier  ReviewTier `json:"target_tier"`
	EscalatedAt time.Time  `json:"escalated_at"`
}

// SimilarCase is a resolved case resembling the one under review.
type SimilarCase struct {
	CaseID     string  `json:"case_id"`
	Verdict    Verdict `json:"verdict"`
	Similarity float64 `json:"similarity"`
}

// CaseAnalysis is the briefing handed to a reviewer on StartReview.
type CaseAnalysis struct {
	CaseID                 string        `json:"case_id"`
	RiskFactors            []string      `json:"risk_factors"`
	MitigatingFactors      []string      `json:"mitigating_factors"`
	SimilarCases           []SimilarCase `json:"similar_cases"`
	RecommendedVerdict     Verdict       `json:"recommended_verdict"`
	SuggestedInvestigation []string      `json:"suggested_investigation"`
	GeneratedAt            time.Time     `json:"generated_at"`
}

// ReviewCase is the tracked unit of human review for one detection key.
type ReviewCase struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	SessionID        string          `json:"session_id"`
	PuzzleID         string          `json:"puzzle_id"`
	Detection        DetectionResult `json:"detection"`
	EvidencePackage  *EvidenceBundle `json:"evidence_package,omitempty"`
	Status           CaseStatus      `json:"status"`
	Priority         Priority        `json:"priority"`
	AssignedReviewer *string         `json:"assigned_reviewer,omitempty"`
	AssignedAt       *time.Time      `json:"assigned_at,omitempty"`
	ReviewStartedAt  *time.Time      `json:"review_started_at,omitempty"`
	Workflow         Workflow        `json:"workflow"`
	RequiredTier     ReviewTier      `json:"required_tier"`
	ReviewHistory    []ReviewRecord  `json:"review_history"`
	Escalation       *Escalation     `json:"escalation,omitempty"`
	AppealID         *string         `json:"appeal_id,omitempty"`
	FinalDecision    *ReviewDecision `json:"final_decision,omitempty"`
	LinkedReports    []string        `json:"linked_reports,omitempty"`
	Source           DetectionSource `json:"source"`
	DueAt            time.Time       `json:"due_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty"`
	AppealDeadline   *time.Time      `json:"appeal_deadline,omitempty"`
	Version          int64           `json:"version"`
}

// Key returns the case's detection key.
func (c *ReviewCase) Key() DetectionKey {
	return DetectionKey{UserID: c.UserID, SessionID: c.SessionID, PuzzleID: c.PuzzleID}
}

// LastVerdict returns the most recently recorded verdict.
func (c *ReviewCase) LastVerdict() (Verdict, bool) {
	if len(c.ReviewHistory) == 0 {
		return "", false
	}
	return c.ReviewHistory[len(c.ReviewHistory)-1].Decision.Verdict, true
}

// HasReviewedBy reports whether reviewerID recorded any review on the case.
func (c *ReviewCase) HasReviewedBy(reviewerID string) bool {
	for _, r := range c.ReviewHistory {
		if r.ReviewerID == reviewerID {
			return true
		}
	}
	return false
}

// IsAssignedTo reports whether reviewerID holds the case.
func (c *ReviewCase) IsAssignedTo(reviewerID string) bool {
	return c.AssignedReviewer != nil && *c.AssignedReviewer == reviewerID
}

// Appealable reports whether an appeal may be filed at now.
func (c *ReviewCase) Appealable(now time.Time) bool {
	return c.Status == CaseStatusCompleted && c.AppealDeadline != nil && !now.After(*c.AppealDeadline)
}

// Clone returns a deep copy so callers can mutate without aliasing the store.
func (c *ReviewCase) Clone() *ReviewCase {
	if c == nil {
		return nil
	}
	out := *c
	out.Detection.Flags = append(Flags(nil), c.Detection.Flags...)
	out.Detection.Analyses = append([]AnalysisResult(nil), c.Detection.Analyses...)
	out.Workflow.Steps = append([]WorkflowStep(nil), c.Workflow.Steps...)
	out.ReviewHistory = append([]ReviewRecord(nil), c.ReviewHistory...)
	out.LinkedReports = append([]string(nil), c.LinkedReports...)
	out.AssignedReviewer = cloneString(c.AssignedReviewer)
	out.AppealID = cloneString(c.AppealID)
	out.AssignedAt = cloneTime(c.AssignedAt)
	out.ReviewStartedAt = cloneTime(c.ReviewStartedAt)
	out.ResolvedAt = cloneTime(c.ResolvedAt)
	out.AppealDeadline = cloneTime(c.AppealDeadline)
	if c.Escalation != nil {
		e := *c.Escalation
		out.Escalation = &e
	}
	if c.FinalDecision != nil {
		d := *c.FinalDecision
		out.FinalDecision = &d
	}
	return &out
}

// CaseFilter narrows case listings.
type CaseFilter struct {
	Statuses   []CaseStatus
	UserID     string
	ReviewerID string
	Priority   Priority
	DueBefore  *time.Time
	Source     DetectionSource
	Limit      int
	Offset     int
	OrderBy    string
	OrderDir   string
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
