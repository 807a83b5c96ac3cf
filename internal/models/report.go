// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package models

import (
	"time"
)

// ReportType classifies what a community report alleges.
type ReportType string

const (
	ReportTypeCheating      ReportType = "cheating"
	ReportTypeAutomation    ReportType = "automation"
	ReportTypeExploit       ReportType = "exploit"
	ReportTypeCollusion     ReportType = "collusion"
	ReportTypeHarassment    ReportType = "harassment"
	ReportTypeImpersonation ReportType = "impersonation"
	ReportTypeOther         ReportType = "other"
)

// IsSensitive reports types that always need a moderator.
func (t ReportType) IsSensitive() bool {
	return t == ReportTypeHarassment || t == ReportTypeImpersonation
}

// IsFairPlay reports types alleging cheating that a review case can adjudicate.
func (t ReportType) IsFairPlay() bool {
	switch t {
	case ReportTypeCheating, ReportTypeAutomation, ReportTypeExploit, ReportTypeCollusion:
		return true
	}
	return false
}

// ReportStatus is the lifecycle state of a community report.
type ReportStatus string

const (
	ReportStatusOpenForVote   ReportStatus = "open_for_vote"
	ReportStatusPendingReview ReportStatus = "pending_review"
	ReportStatusAssigned      ReportStatus = "assigned"
	ReportStatusEscalated     ReportStatus = "escalated"
	ReportStatusResolved      ReportStatus = "resolved"
	ReportStatusDismissed     ReportStatus = "dismissed"
)

// IsTerminal reports statuses that close the report.
func (s ReportStatus) IsTerminal() bool {
	return s == ReportStatusResolved || s == ReportStatusDismissed
}

// AwaitingModerator reports statuses from which a moderator may be assigned.
func (s ReportStatus) AwaitingModerator() bool {
	return s == ReportStatusPendingReview || s == ReportStatusEscalated
}

// VoteOption is a community member's judgment on a report.
type VoteOption string

const (
	VoteCheat        VoteOption = "cheat"
	VoteSuspicious   VoteOption = "suspicious"
	VoteLegitimate   VoteOption = "legitimate"
	VoteInconclusive VoteOption = "inconclusive"
)

// Castable reports options a voter may choose. Inconclusive is only ever
// the result of a split vote.
func (o VoteOption) Castable() bool {
	switch o {
	case VoteCheat, VoteSuspicious, VoteLegitimate:
		return true
	}
	return false
}

// Vote is one community vote. One per (report, voter).
type Vote struct {
	VoterID string     `json:"voter_id"`
	Option  VoteOption `json:"option"`
	CastAt  time.Time  `json:"cast_at"`
}

// ReportEvidence is what the reporter attached.
type ReportEvidence struct {
	ReplayIDs   []string `json:"replay_ids,omitempty" validate:"max=20,dive,required,max=128"`
	Screenshots []string `json:"screenshots,omitempty" validate:"max=20,dive,required,max=512"`
	Links       []string `json:"links,omitempty" validate:"max=20,dive,required,url"`
	Notes       string   `json:"notes,omitempty" validate:"max=5000"`
}

// Richness counts distinct pieces of evidence.
func (e ReportEvidence) Richness() int {
	n := len(e.ReplayIDs) + len(e.Screenshots) + len(e.Links)
	if e.Notes != "" {
		n++
	}
	return n
}

// ModerationAction is what a moderator decides to do with a report.
type ModerationAction string

const (
	ModerationDismiss   ModerationAction = "dismiss"
	ModerationWarn      ModerationAction = "warn"
	ModerationRestrict  ModerationAction = "restrict"
	ModerationWatchList ModerationAction = "watch_list"
	ModerationOpenCase  ModerationAction = "open_case"
)

// ModerationDecision is a moderator's ruling on a report.
type ModerationDecision struct {
	Action           ModerationAction `json:"action" validate:"required,oneof=dismiss warn restrict watch_list open_case"`
	Notes            string           `json:"notes" validate:"required,min=10,max=5000"`
	RestrictionHours int              `json:"restriction_hours,omitempty" validate:"omitempty,gte=1,lte=8760"`
}

// ReportResolution records how a report was closed.
type ReportResolution struct {
	ResolvedBy string           `json:"resolved_by"`
	Action     ModerationAction `json:"action"`
	Notes      string           `json:"notes"`
	Consensus  bool             `json:"consensus"`
	ResolvedAt time.Time        `json:"resolved_at"`
}

// CommunityReport is a player's report about another player.
type CommunityReport struct {
	ID                   string            `json:"id"`
	ReporterUserID       string            `json:"reporter_user_id"`
	ReportedUserID       string            `json:"reported_user_id"`
	SessionID            string            `json:"session_id"`
	PuzzleID             string            `json:"puzzle_id,omitempty"`
	Type                 ReportType        `json:"type"`
	Description          string            `json:"description"`
	Evidence             ReportEvidence    `json:"evidence"`
	Severity             Severity          `json:"severity"`
	Priority             int               `json:"priority"`
	Status               ReportStatus      `json:"status"`
	RequiresManualReview bool              `json:"requires_manual_review"`
	AssignedModerator    *string           `json:"assigned_moderator,omitempty"`
	Votes                []Vote            `json:"votes"`
	Consensus            *VoteOption       `json:"consensus,omitempty"`
	Resolution           *ReportResolution `json:"resolution,omitempty"`
	Escalation           *Escalation       `json:"escalation,omitempty"`
	RequiredTier         ReviewTier        `json:"required_tier"`
	LinkedCaseID         *string           `json:"linked_case_id,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	Version              int64             `json:"version"`
}

// HasVoted reports whether voterID already voted.
func (r *CommunityReport) HasVoted(voterID string) bool {
	for _, v := range r.Votes {
		if v.VoterID == voterID {
			return true
		}
	}
	return false
}

// IsAssignedTo reports whether moderatorID holds the report.
func (r *CommunityReport) IsAssignedTo(moderatorID string) bool {
	return r.AssignedModerator != nil && *r.AssignedModerator == moderatorID
}

// Clone returns a deep copy.
func (r *CommunityReport) Clone() *CommunityReport {
	if r == nil {
		return nil
	}
	out := *r
	out.Evidence.ReplayIDs = append([]string(nil), r.Evidence.ReplayIDs...)
	out.Evidence.Screenshots = append([]string(nil), r.Evidence.Screenshots...)
	out.Evidence.Links = append([]string(nil), r.Evidence.Links...)
	out.Votes = append([]Vote(nil), r.Votes...)
	out.AssignedModerator = cloneString(r.AssignedModerator)
	out.LinkedCaseID = cloneString(r.LinkedCaseID)
	if r.Consensus != nil {
		c := *r.Consensus
		out.Consensus = &c
	}
	if r.Resolution != nil {
		res := *r.Resolution
		out.Resolution = &res
	}
	if r.Escalation != nil {
		e := *r.Escalation
		out.Escalation = &e
	}
	return &out
}

// ReportFilter narrows report listings.
type ReportFilter struct {
	Statuses       []ReportStatus
	ReporterUserID string
	ReportedUserID string
	ModeratorID    string
	Limit          int
	Offset         int
}
