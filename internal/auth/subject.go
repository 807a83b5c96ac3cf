// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

// Package auth turns request credentials into a trusted Subject.
//
// Identity is issued elsewhere; this package only verifies it. In "jwt" mode
// the Authorization bearer token must be an HS256 token signed with the
// shared secret. In "none" mode (development only) the X-User-ID and
// X-User-Roles headers are trusted as-is.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// AuthMode selects how requests are authenticated.
type AuthMode string

const (
	AuthModeNone AuthMode = "none"
	AuthModeJWT  AuthMode = "jwt"
)

// ParseAuthMode converts a config string to AuthMode.
func ParseAuthMode(s string) (AuthMode, error) {
	switch s {
	case "jwt", "":
		return AuthModeJWT, nil
	case "none":
		return AuthModeNone, nil
	default:
		return "", fmt.Errorf("invalid auth mode: %q", s)
	}
}

// Roles known to the authorization policy.
const (
	RolePlayer    = "player"
	RoleReviewer  = "reviewer"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

var (
	ErrNoCredentials      = errors.New("no credentials provided")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Subject is the authenticated caller.
type Subject struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

// HasRole reports whether the subject holds role.
func (s *Subject) HasRole(role string) bool {
	return s != nil && slices.Contains(s.Roles, role)
}

type contextKey string

const subjectContextKey contextKey = "auth_subject"

// WithSubject stores s in ctx.
func WithSubject(ctx context.Context, s *Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey, s)
}

// SubjectFromContext returns the authenticated subject or nil.
func SubjectFromContext(ctx context.Context) *Subject {
	s, _ := ctx.Value(subjectContextKey).(*Subject)
	return s
}
