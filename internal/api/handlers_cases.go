// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/fairplay/internal/models"
)

// ListCases lists review cases.
//
// Query: status (comma-separated), user_id, reviewer_id ("me" for the
// caller), priority, source, limit, offset.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	page := parsePage(r)
	if !validateRequest(w, &page) {
		return
	}
	statuses := caseStatuses(getListParam(r, "status"))
	for _, s := range statuses {
		if !s.Valid() {
			respondError(w, http.StatusBadRequest, codeValidation, "unknown case status", map[string]interface{}{"status": string(s)})
			return
		}
	}
	priority := models.Priority(r.URL.Query().Get("priority"))
	if priority != "" && !priority.Valid() {
		respondError(w, http.StatusBadRequest, codeValidation, "unknown priority", map[string]interface{}{"priority": string(priority)})
		return
	}
	reviewerID := r.URL.Query().Get("reviewer_id")
	if reviewerID == "me" {
		reviewerID = subject(r).ID
	}

	cases, err := h.deps.Cases.ListCases(r.Context(), models.CaseFilter{
		Statuses:   statuses,
		UserID:     r.URL.Query().Get("user_id"),
		ReviewerID: reviewerID,
		Priority:   priority,
		Source:     models.DetectionSource(r.URL.Query().Get("source")),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, cases, len(cases), start)
}

// GetCase returns one case.
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	c, err := h.deps.Cases.GetCase(r.Context(), chi.URLParam(r, "caseID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, c, 0, start)
}

// AssignCase assigns a reviewer. An empty body or reviewer_id runs
// automatic assignment. Assigning someone other than the caller needs the
// cases_admin scope.
func (h *Handler) AssignCase(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	caseID := chi.URLParam(r, "caseID")

	var req assignRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
			return
		}
	}

	caller := subject(r).ID
	var (
		c   *models.ReviewCase
		err error
	)
	switch {
	case req.ReviewerID == "":
		c, err = h.deps.Cases.AutoAssign(r.Context(), caseID)
	case req.ReviewerID != caller && !h.can(r, "cases_admin", "write"):
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "assigning another reviewer requires admin scope", nil)
		return
	default:
		c, err = h.deps.Cases.AssignReviewer(r.Context(), caseID, req.ReviewerID, caller)
	}
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, c, 0, start)
}

// StartReview moves the caller's assigned case into review and returns the
// case analysis.
func (h *Handler) StartReview(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	analysis, err := h.deps.Cases.StartReview(r.Context(), chi.URLParam(r, "caseID"), subject(r).ID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, analysis, 0, start)
}

// SubmitReview records the caller's decision on a case.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var decision models.ReviewDecision
	if !decodeJSON(w, r, &decision) {
		return
	}
	c, err := h.deps.Cases.SubmitReview(r.Context(), chi.URLParam(r, "caseID"), subject(r).ID, decision)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, c, 0, start)
}

// EscalateCase escalates a case to a higher tier.
func (h *Handler) EscalateCase(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req escalateRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}
	c, err := h.deps.Cases.EscalateCase(r.Context(), chi.URLParam(r, "caseID"), subject(r).ID, req.Reason, req.TargetTier)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, c, 0, start)
}
