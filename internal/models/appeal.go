// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package models

import (
	"time"
)

// AppealStatus is the lifecycle state of an appeal.
type AppealStatus string

const (
	AppealStatusSubmitted   AppealStatus = "submitted"
	AppealStatusUnderReview AppealStatus = "under_review"
	AppealStatusApproved    AppealStatus = "approved"
	AppealStatusRejected    AppealStatus = "rejected"
	AppealStatusModified    AppealStatus = "modified"
	AppealStatusWithdrawn   AppealStatus = "withdrawn"
)

// IsTerminal reports statuses that end the appeal.
func (s AppealStatus) IsTerminal() bool {
	switch s {
	case AppealStatusApproved, AppealStatusRejected, AppealStatusModified, AppealStatusWithdrawn:
		return true
	}
	return false
}

// Withdrawable reports statuses from which the appellant may withdraw.
func (s AppealStatus) Withdrawable() bool {
	return s == AppealStatusSubmitted || s == AppealStatusUnderReview
}

// AppealPriority orders the appeal queue.
type AppealPriority string

const (
	AppealPriorityUrgent AppealPriority = "urgent"
	AppealPriorityHigh   AppealPriority = "high"
	AppealPriorityNormal AppealPriority = "normal"
)

// EvidenceType tags the basis of an appeal.
type EvidenceType string

const (
	EvidenceNewEvidence        EvidenceType = "new_evidence"
	EvidenceProceduralError    EvidenceType = "procedural_error"
	EvidenceTechnicalIssue     EvidenceType = "technical_issue"
	EvidenceMisidentification  EvidenceType = "misidentification"
	EvidenceContextExplanation EvidenceType = "context_explanation"
)

// Valid reports whether t is one of the accepted evidence types.
func (t EvidenceType) Valid() bool {
	switch t {
	case EvidenceNewEvidence, EvidenceProceduralError, EvidenceTechnicalIssue,
		EvidenceMisidentification, EvidenceContextExplanation:
		return true
	}
	return false
}

// AppealEvidence is the material an appellant submits.
type AppealEvidence struct {
	Type        EvidenceType `json:"type" validate:"required,oneof=new_evidence procedural_error technical_issue misidentification context_explanation"`
	Description string       `json:"description" validate:"required,max=5000"`
	Attachments []string     `json:"attachments,omitempty" validate:"max=20,dive,required,max=512"`
	Confidence  float64      `json:"confidence" validate:"gte=0,lte=1"`
}

// AppealOutcome is the adjudicated result of an appeal.
type AppealOutcome string

const (
	AppealOutcomeApproved AppealOutcome = "approved"
	AppealOutcomeRejected AppealOutcome = "rejected"
	AppealOutcomeModified AppealOutcome = "modified"
)

// Status maps an outcome to the terminal appeal status.
func (o AppealOutcome) Status() AppealStatus {
	switch o {
	case AppealOutcomeApproved:
		return AppealStatusApproved
	case AppealOutcomeModified:
		return AppealStatusModified
	default:
		return AppealStatusRejected
	}
}

// Valid reports whether o is a known outcome.
func (o AppealOutcome) Valid() bool {
	switch o {
	case AppealOutcomeApproved, AppealOutcomeRejected, AppealOutcomeModified:
		return true
	}
	return false
}

// ModifiedPenalty is the reduced penalty of a modified appeal.
type ModifiedPenalty struct {
	BanDays           int               `json:"ban_days"`
	InvalidationScope InvalidationScope `json:"invalidation_scope"`
	PartialRestore    bool              `json:"partial_restore"`
}

// AppealAnalysis is the structured assessment behind an appeal decision.
type AppealAnalysis struct {
	EvidenceStrength      float64  `json:"evidence_strength"`
	Credibility           float64  `json:"credibility"`
	Novelty               float64  `json:"novelty"`
	ProceduralCompliance  float64  `json:"procedural_compliance"`
	ReviewTimeSpentSec    float64  `json:"review_time_spent_sec"`
	ReasoningLength       int      `json:"reasoning_length"`
	BiasIndicators        []string `json:"bias_indicators,omitempty"`
	NewInformation        bool     `json:"new_information"`
	PrecedentCount        int      `json:"precedent_count"`
	PrecedentApprovalRate float64  `json:"precedent_approval_rate"`
	OverallScore          float64  `json:"overall_score"`
}

// AppealDecision records how an appeal was resolved.
type AppealDecision struct {
	Outcome          AppealOutcome    `json:"outcome"`
	ReviewerID       string           `json:"reviewer_id"`
	Reasoning        string           `json:"reasoning"`
	Confidence       float64          `json:"confidence"`
	ModifiedPenalty  *ModifiedPenalty `json:"modified_penalty,omitempty"`
	CompensationOwed bool             `json:"compensation_owed"`
	FollowUpRequired bool             `json:"follow_up_required"`
	Overridden       bool             `json:"overridden"`
	Automatic        bool             `json:"automatic"`
	Analysis         *AppealAnalysis  `json:"analysis,omitempty"`
	DecidedAt        time.Time        `json:"decided_at"`
}

// SystemReviewerID authors automatic decisions.
const SystemReviewerID = "system"

// AppealFee is the computed filing fee. Waived fees are never charged.
type AppealFee struct {
	AmountCents int64  `json:"amount_cents"`
	Waived      bool   `json:"waived"`
	Reason      string `json:"reason,omitempty"`
}

// Appeal disputes the final decision of a completed case.
type Appeal struct {
	ID                 string          `json:"id"`
	OriginalCaseID     string          `json:"original_case_id"`
	UserID             string          `json:"user_id"`
	Status             AppealStatus    `json:"status"`
	Priority           AppealPriority  `json:"priority"`
	Reason             string          `json:"reason"`
	Evidence           AppealEvidence  `json:"evidence"`
	EvidenceConfidence float64         `json:"evidence_confidence"`
	AssignedReviewer   *string         `json:"assigned_reviewer,omitempty"`
	Decision           *AppealDecision `json:"decision,omitempty"`
	Fee                AppealFee       `json:"fee"`
	SubmittedAt        time.Time       `json:"submitted_at"`
	DeadlineAt         time.Time       `json:"deadline_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	ResolvedAt         *time.Time      `json:"resolved_at,omitempty"`
	Version            int64           `json:"version"`
}

// IsAssignedTo reports whether reviewerID holds the appeal.
func (a *Appeal) IsAssignedTo(reviewerID string) bool {
	return a.AssignedReviewer != nil && *a.AssignedReviewer == reviewerID
}

// Clone returns a deep copy.
func (a *Appeal) Clone() *Appeal {
	if a == nil {
		return nil
	}
	out := *a
	out.Evidence.Attachments = append([]string(nil), a.Evidence.Attachments...)
	out.AssignedReviewer = cloneString(a.AssignedReviewer)
	out.ResolvedAt = cloneTime(a.ResolvedAt)
	if a.Decision != nil {
		d := *a.Decision
		if d.ModifiedPenalty != nil {
			mp := *d.ModifiedPenalty
			d.ModifiedPenalty = &mp
		}
		if d.Analysis != nil {
			an := *d.Analysis
			an.BiasIndicators = append([]string(nil), d.Analysis.BiasIndicators...)
			d.Analysis = &an
		}
		out.Decision = &d
	}
	return &out
}

// AppealFilter narrows appeal listings.
type AppealFilter struct {
	Statuses   []AppealStatus
	UserID     string
	CaseID     string
	ReviewerID string
	Limit      int
	Offset     int
}
