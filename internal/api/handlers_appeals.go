// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/fairplay/internal/appeal"
	"github.com/tomtom215/fairplay/internal/models"
)

// SubmitAppeal files an appeal for the caller.
func (h *Handler) SubmitAppeal(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req appeal.SubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.UserID = subject(r).ID

	a, err := h.deps.Appeals.SubmitAppeal(r.Context(), req)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, a, 0, start)
}

// ListAppeals lists the caller's appeals. Callers with the appeals_admin
// scope may list any user's appeals and filter by reviewer.
//
// Query: status, case_id, user_id and reviewer_id (admin), limit, offset.
func (h *Handler) ListAppeals(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	page := parsePage(r)
	if !validateRequest(w, &page) {
		return
	}
	filter := models.AppealFilter{
		Statuses: appealStatuses(getListParam(r, "status")),
		CaseID:   r.URL.Query().Get("case_id"),
		UserID:   subject(r).ID,
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	if h.can(r, "appeals_admin", "read") {
		filter.UserID = r.URL.Query().Get("user_id")
		filter.ReviewerID = r.URL.Query().Get("reviewer_id")
	}

	appeals, err := h.deps.Appeals.ListAppeals(r.Context(), filter)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, appeals, len(appeals), start)
}

// GetAppeal returns one appeal to its appellant, its assigned reviewer or
// an appeals_admin. Anyone else gets 404.
func (h *Handler) GetAppeal(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	appealID := chi.URLParam(r, "appealID")

	a, err := h.deps.Appeals.GetAppeal(r.Context(), appealID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	caller := subject(r).ID
	if a.UserID != caller && !a.IsAssignedTo(caller) && !h.can(r, "appeals_admin", "read") {
		respondDomainError(w, r, models.NewNotFound(models.ReasonAppealNotFound, "appeal", appealID))
		return
	}
	respondData(w, http.StatusOK, a, 0, start)
}

// WithdrawAppeal withdraws the caller's own appeal.
func (h *Handler) WithdrawAppeal(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	a, err := h.deps.Appeals.WithdrawAppeal(r.Context(), chi.URLParam(r, "appealID"), subject(r).ID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, a, 0, start)
}

// AssignAppeal assigns an appeal reviewer, defaulting to the caller.
func (h *Handler) AssignAppeal(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req assignRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
			return
		}
	}
	if req.ReviewerID == "" {
		req.ReviewerID = subject(r).ID
	}

	a, err := h.deps.Appeals.AssignAppeal(r.Context(), chi.URLParam(r, "appealID"), req.ReviewerID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, a, 0, start)
}

// ReviewAppeal records the caller's decision on an assigned appeal.
func (h *Handler) ReviewAppeal(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var in appeal.ReviewInput
	if !decodeJSON(w, r, &in) {
		return
	}
	a, err := h.deps.Appeals.ReviewAppeal(r.Context(), chi.URLParam(r, "appealID"), subject(r).ID, in)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, a, 0, start)
}
