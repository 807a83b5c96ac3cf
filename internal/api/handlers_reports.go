// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/fairplay/internal/community"
	"github.com/tomtom215/fairplay/internal/models"
)

// SubmitReport files a community report from the caller.
func (h *Handler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req community.SubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ReporterID = subject(r).ID

	report, err := h.deps.Reports.SubmitReport(r.Context(), req)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, report, 0, start)
}

// ListReports lists the caller's own reports, or with the reports_admin
// scope any report. Callers with report_moderation may list the open vote
// and moderation queues.
//
// Query: status, reporter_id, reported_user_id, moderator_id, limit, offset.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	page := parsePage(r)
	if !validateRequest(w, &page) {
		return
	}
	q := r.URL.Query()
	filter := models.ReportFilter{
		Statuses:       reportStatuses(getListParam(r, "status")),
		ReporterUserID: subject(r).ID,
		Limit:          page.Limit,
		Offset:         page.Offset,
	}
	if h.can(r, "reports_admin", "read") || h.can(r, "report_moderation", "write") {
		filter.ReporterUserID = q.Get("reporter_id")
		filter.ReportedUserID = q.Get("reported_user_id")
		filter.ModeratorID = q.Get("moderator_id")
		if filter.ModeratorID == "me" {
			filter.ModeratorID = subject(r).ID
		}
	}

	reports, err := h.deps.Reports.ListReports(r.Context(), filter)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, reports, len(reports), start)
}

// GetReport returns one report. Voting is open to the community, so any
// authenticated caller may read a report that is open for vote; otherwise
// only the reporter, the assigned moderator or staff may.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reportID := chi.URLParam(r, "reportID")

	report, err := h.deps.Reports.GetReport(r.Context(), reportID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	caller := subject(r).ID
	visible := report.Status == models.ReportStatusOpenForVote ||
		report.ReporterUserID == caller ||
		report.IsAssignedTo(caller) ||
		h.can(r, "reports_admin", "read") ||
		h.can(r, "report_moderation", "write")
	if !visible {
		respondDomainError(w, r, models.NewNotFound(models.ReasonReportNotFound, "report", reportID))
		return
	}
	respondData(w, http.StatusOK, report, 0, start)
}

// VoteOnReport casts the caller's vote.
func (h *Handler) VoteOnReport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req voteRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}
	report, err := h.deps.Reports.VoteOnReport(r.Context(), chi.URLParam(r, "reportID"), subject(r).ID, req.Option)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, report, 0, start)
}

// AssignReportModerator assigns a moderator, defaulting to the caller.
func (h *Handler) AssignReportModerator(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req assignRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
			return
		}
	}
	caller := subject(r).ID
	if req.ReviewerID == "" {
		req.ReviewerID = caller
	}

	report, err := h.deps.Reports.AssignModerator(r.Context(), chi.URLParam(r, "reportID"), req.ReviewerID, caller)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, report, 0, start)
}

// ModerateReport records the caller's moderation decision.
func (h *Handler) ModerateReport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var d models.ModerationDecision
	if !decodeJSON(w, r, &d) {
		return
	}
	report, err := h.deps.Reports.ModerateReport(r.Context(), chi.URLParam(r, "reportID"), subject(r).ID, d)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, report, 0, start)
}

// EscalateReport hands a report to a higher review tier.
func (h *Handler) EscalateReport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req escalateRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}
	report, err := h.deps.Reports.EscalateReport(r.Context(), chi.URLParam(r, "reportID"), subject(r).ID, req.Reason, req.TargetTier)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, report, 0, start)
}
