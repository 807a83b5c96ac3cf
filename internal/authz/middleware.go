// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package authz

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fairplay/internal/auth"
	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/models"
)

// DenialRecorder receives requests the policy refused.
type DenialRecorder interface {
	RecordAuthzDenied(r *http.Request, subjectID string, roles []string, object, action string)
}

// Middleware enforces the policy for chi routes.
type Middleware struct {
	enforcer *Enforcer
	auditor  DenialRecorder
}

// NewMiddleware creates authorization middleware.
func NewMiddleware(enforcer *Enforcer) *Middleware {
	return &Middleware{enforcer: enforcer}
}

// WithAuditor reports every denial to a.
func (m *Middleware) WithAuditor(a DenialRecorder) *Middleware {
	m.auditor = a
	return m
}

// Authorize allows the request only when the authenticated subject may
// perform action on object.
func (m *Middleware) Authorize(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := auth.SubjectFromContext(r.Context())
			if subject == nil {
				writeError(w, http.StatusForbidden, "no authentication context")
				return
			}

			allowed, err := m.enforcer.EnforceWithRoles(subject.ID, subject.Roles, object, action)
			if err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization error")
				writeError(w, http.StatusInternalServerError, "authorization check failed")
				return
			}
			if !allowed {
				logging.Ctx(r.Context()).Debug().
					Str("object", object).
					Str("action", action).
					Strs("roles", subject.Roles).
					Msg("Authorization denied")
				if m.auditor != nil {
					m.auditor.RecordAuthzDenied(r, subject.ID, subject.Roles, object, action)
				}
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	code := "AUTHORIZATION_ERROR"
	if status == http.StatusInternalServerError {
		code = "INTERNAL_ERROR"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    &models.APIError{Code: code, Message: msg},
	})
}
