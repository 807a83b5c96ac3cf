// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package models

import (
	"time"
)

// StaffRole distinguishes case reviewers from report moderators.
type StaffRole string

const (
	RoleReviewer  StaffRole = "reviewer"
	RoleModerator StaffRole = "moderator"
)

// Reviewer is a staff member who can be assigned cases, appeals or reports.
type Reviewer struct {
	ID              string     `json:"id" validate:"required,max=128"`
	Name            string     `json:"name" validate:"required,max=256"`
	Role            StaffRole  `json:"role" validate:"required,oneof=reviewer moderator"`
	Tier            ReviewTier `json:"tier" validate:"required,oneof=initial secondary expert"`
	Specializations []string   `json:"specializations,omitempty" validate:"dive,required,max=64"`
	MaxLoad         int        `json:"max_load" validate:"gte=0,lte=1000"`
	Active          bool       `json:"active"`
}

// CanHandle reports whether the reviewer's tier covers required.
func (r *Reviewer) CanHandle(required ReviewTier) bool {
	return r.Tier.Rank() >= required.Rank()
}

// Specializes reports whether the reviewer lists the given specialization.
func (r *Reviewer) Specializes(s string) bool {
	for _, sp := range r.Specializations {
		if sp == s {
			return true
		}
	}
	return false
}

// RestrictionKind describes what a restriction limits.
type RestrictionKind string

const (
	RestrictionBan        RestrictionKind = "ban"
	RestrictionTemporary  RestrictionKind = "temporary"
	RestrictionWatchList  RestrictionKind = "watch_list"
	RestrictionMonitoring RestrictionKind = "monitoring"
	RestrictionWarning    RestrictionKind = "warning"
)

// Restriction is an enforcement record against a user. A nil ExpiresAt is permanent.
type Restriction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Kind      RestrictionKind `json:"kind"`
	Reason    string          `json:"reason"`
	Source    string          `json:"source"`
	SourceID  string          `json:"source_id,omitempty"`
	StartsAt  time.Time       `json:"starts_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	LiftedAt  *time.Time      `json:"lifted_at,omitempty"`
}

// ActiveAt reports whether the restriction is in force at t.
func (r *Restriction) ActiveAt(t time.Time) bool {
	if r.LiftedAt != nil && !t.Before(*r.LiftedAt) {
		return false
	}
	if t.Before(r.StartsAt) {
		return false
	}
	return r.ExpiresAt == nil || t.Before(*r.ExpiresAt)
}

// PenaltyCommand asks the enforcement side to apply or reverse an action.
type PenaltyCommand struct {
	Action    Action             `json:"action"`
	UserID    string             `json:"user_id"`
	CaseID    string             `json:"case_id,omitempty"`
	AppealID  string             `json:"appeal_id,omitempty"`
	ReportID  string             `json:"report_id,omitempty"`
	SessionID string             `json:"session_id,omitempty"`
	PuzzleID  string             `json:"puzzle_id,omitempty"`
	BanDays   int                `json:"ban_days,omitempty"`
	Permanent bool               `json:"permanent,omitempty"`
	Duration  time.Duration      `json:"duration,omitempty"`
	Scope     *InvalidationScope `json:"scope,omitempty"`
	Reason    string             `json:"reason"`
	IssuedBy  string             `json:"issued_by"`
}

// EnforcementRecord is the persisted trail of executed penalty commands.
type EnforcementRecord struct {
	ID         string         `json:"id"`
	Command    PenaltyCommand `json:"command"`
	ExecutedAt time.Time      `json:"executed_at"`
}
