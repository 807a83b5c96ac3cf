// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/fairplay/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func securityConfig(mode string) config.SecurityConfig {
	return config.SecurityConfig{AuthMode: mode, JWTSecret: testSecret, JWTIssuer: "fairplay"}
}

func TestJWTRoundTrip(t *testing.T) {
	m, err := NewJWTManager(securityConfig("jwt"))
	if err != nil {
		t.Fatal(err)
	}
	token, err := m.GenerateToken("u1", []string{RoleReviewer}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Subject != "u1" || len(claims.Roles) != 1 || claims.Roles[0] != RoleReviewer {
		t.Errorf("claims = %+v", claims)
	}
}

func TestJWTRejects(t *testing.T) {
	m, _ := NewJWTManager(securityConfig("jwt"))
	other, _ := NewJWTManager(config.SecurityConfig{JWTSecret: strings.Repeat("x", 32), JWTIssuer: "fairplay"})
	foreign, _ := NewJWTManager(config.SecurityConfig{JWTSecret: testSecret, JWTIssuer: "someone-else"})

	expired, _ := m.GenerateToken("u1", nil, -time.Minute)
	wrongKey, _ := other.GenerateToken("u1", nil, time.Hour)
	wrongIssuer, _ := foreign.GenerateToken("u1", nil, time.Hour)
	noSubject, _ := m.GenerateToken("", nil, time.Hour)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "fairplay",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"expired":      expired,
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"no subject":   noSubject,
		"alg none":     unsigned,
		"garbage":      "not.a.token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := m.ValidateToken(token); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestNewJWTManagerRequiresSecret(t *testing.T) {
	if _, err := NewJWTManager(config.SecurityConfig{}); err == nil {
		t.Error("expected error for empty secret")
	}
	if _, err := NewMiddleware(config.SecurityConfig{AuthMode: "basic"}); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func echoSubject() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := SubjectFromContext(r.Context())
		_, _ = w.Write([]byte(s.ID + "|" + strings.Join(s.Roles, ",")))
	})
}

func TestMiddlewareJWT(t *testing.T) {
	mw, err := NewMiddleware(securityConfig("jwt"))
	if err != nil {
		t.Fatal(err)
	}
	h := mw.Authenticate(echoSubject())
	token, _ := mw.jwt.GenerateToken("mod-7", []string{RoleModerator}, time.Hour)
	playerToken, _ := mw.jwt.GenerateToken("u9", nil, time.Hour)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer " + token, http.StatusOK, "mod-7|moderator"},
		{"defaults to player", "Bearer " + playerToken, http.StatusOK, "u9|player"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/appeals", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.body)
			}
			if tt.status == http.StatusUnauthorized && !strings.Contains(rec.Body.String(), "AUTHENTICATION_ERROR") {
				t.Errorf("body = %s, want error envelope", rec.Body.String())
			}
		})
	}
}

func TestMiddlewareHeaderMode(t *testing.T) {
	mw, err := NewMiddleware(config.SecurityConfig{AuthMode: "none"})
	if err != nil {
		t.Fatal(err)
	}
	h := mw.Authenticate(echoSubject())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "r1")
	req.Header.Set("X-User-Roles", "reviewer, moderator")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Body.String() != "r1|reviewer,moderator" {
		t.Errorf("body = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSubjectHasRole(t *testing.T) {
	s := &Subject{ID: "a", Roles: []string{RoleAdmin}}
	if !s.HasRole(RoleAdmin) || s.HasRole(RolePlayer) {
		t.Error("HasRole mismatch")
	}
	var nilSubject *Subject
	if nilSubject.HasRole(RoleAdmin) {
		t.Error("nil subject has no roles")
	}
}

type recordingAuditor struct {
	reasons []string
	invalid []bool
}

func (a *recordingAuditor) RecordAuthFailure(_ *http.Request, reason string, invalid bool) {
	a.reasons = append(a.reasons, reason)
	a.invalid = append(a.invalid, invalid)
}

func TestMiddlewareReportsFailures(t *testing.T) {
	mw, err := NewMiddleware(securityConfig("jwt"))
	if err != nil {
		t.Fatal(err)
	}
	auditor := &recordingAuditor{}
	h := mw.WithAuditor(auditor).Authenticate(echoSubject())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if len(auditor.invalid) != 2 {
		t.Fatalf("recorded %d failures, want 2", len(auditor.invalid))
	}
	if auditor.invalid[0] || !auditor.invalid[1] {
		t.Errorf("invalid flags = %v, want [false true]", auditor.invalid)
	}
}
