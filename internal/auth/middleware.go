// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fairplay/internal/config"
	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/models"
)

const (
	headerUserID = "X-User-ID"
	headerRoles  = "X-User-Roles"
)

// FailureRecorder receives rejected authentication attempts.
type FailureRecorder interface {
	RecordAuthFailure(r *http.Request, reason string, invalidCredentials bool)
}

// Middleware authenticates requests and stores the Subject in the context.
type Middleware struct {
	mode    AuthMode
	jwt     *JWTManager
	auditor FailureRecorder
}

// NewMiddleware builds the middleware for the configured mode.
func NewMiddleware(cfg config.SecurityConfig) (*Middleware, error) {
	mode, err := ParseAuthMode(cfg.AuthMode)
	if err != nil {
		return nil, err
	}
	m := &Middleware{mode: mode}
	if mode == AuthModeJWT {
		if m.jwt, err = NewJWTManager(cfg); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// WithAuditor reports every rejected request to a.
func (m *Middleware) WithAuditor(a FailureRecorder) *Middleware {
	m.auditor = a
	return m
}

// Authenticate rejects unauthenticated requests with 401.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := m.authenticate(r)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Authentication failed")
			if m.auditor != nil {
				m.auditor.RecordAuthFailure(r, err.Error(), errors.Is(err, ErrInvalidCredentials))
			}
			writeUnauthorized(w, err)
			return
		}
		ctx := WithSubject(r.Context(), subject)
		ctx = logging.ContextWithActor(ctx, subject.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) authenticate(r *http.Request) (*Subject, error) {
	switch m.mode {
	case AuthModeNone:
		id := strings.TrimSpace(r.Header.Get(headerUserID))
		if id == "" {
			return nil, ErrNoCredentials
		}
		return &Subject{ID: id, Roles: splitRoles(r.Header.Get(headerRoles))}, nil
	case AuthModeJWT:
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return nil, ErrNoCredentials
		}
		claims, err := m.jwt.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			return nil, err
		}
		roles := claims.Roles
		if len(roles) == 0 {
			roles = []string{RolePlayer}
		}
		return &Subject{ID: claims.Subject, Roles: roles}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", m.mode)
	}
}

func splitRoles(h string) []string {
	var roles []string
	for _, r := range strings.Split(h, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	if len(roles) == 0 {
		return []string{RolePlayer}
	}
	return roles
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	msg := "authentication required"
	if errors.Is(err, ErrInvalidCredentials) {
		msg = "invalid or expired token"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="fairplay"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    &models.APIError{Code: "AUTHENTICATION_ERROR", Message: msg},
	})
}
