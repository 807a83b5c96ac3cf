// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/fairplay/internal/audit"
	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/models"
)

// AccuracyAnalytics returns the live false-positive / false-negative snapshot.
func (h *Handler) AccuracyAnalytics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondData(w, http.StatusOK, h.deps.Analytics.Snapshot(), 0, start)
}

// ListStaff lists reviewers and moderators. Query: role.
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	role := models.StaffRole(r.URL.Query().Get("role"))
	if role != "" && role != models.RoleReviewer && role != models.RoleModerator {
		respondError(w, http.StatusBadRequest, codeValidation, "role must be reviewer or moderator", nil)
		return
	}
	staff, err := h.deps.Staff.ListReviewers(r.Context(), role)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, staff, len(staff), start)
}

// GetStaff returns one staff record.
func (h *Handler) GetStaff(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rev, err := h.deps.Staff.GetReviewer(r.Context(), chi.URLParam(r, "staffID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, rev, 0, start)
}

// PutStaff creates or replaces a staff record. The path id wins over the body.
func (h *Handler) PutStaff(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var rev models.Reviewer
	if !decodeJSON(w, r, &rev) {
		return
	}
	rev.ID = chi.URLParam(r, "staffID")
	if !validateRequest(w, &rev) {
		return
	}
	if err := h.deps.Staff.SaveReviewer(r.Context(), &rev); err != nil {
		respondDomainError(w, r, err)
		return
	}
	logging.Ctx(r.Context()).Info().
		Str("staff_id", rev.ID).
		Str("role", string(rev.Role)).
		Str("tier", string(rev.Tier)).
		Bool("active", rev.Active).
		Msg("Staff record saved")
	if h.deps.Audit != nil {
		caller := subject(r)
		h.deps.Audit.RecordStaffChange(r, caller.ID, caller.Roles, &rev)
	}
	respondData(w, http.StatusOK, &rev, 0, start)
}

var auditTypes = []audit.EventType{
	audit.EventTypeAuthFailure,
	audit.EventTypeAuthzDenied,
	audit.EventTypeStaffUpdated,
}

// ListAuditEvents returns security audit events, newest first.
//
// Query: type (comma separated), actor_id, target_id,
// since (RFC 3339), limit, offset.
func (h *Handler) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	page := parsePage(r)
	if !validateRequest(w, &page) {
		return
	}
	since, ok := getTimeParam(r, "since")
	if !ok {
		respondError(w, http.StatusBadRequest, codeValidation, "since must be RFC 3339", nil)
		return
	}
	filter := audit.QueryFilter{
		ActorID:  r.URL.Query().Get("actor_id"),
		TargetID: r.URL.Query().Get("target_id"),
		Since:    since,
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	for _, t := range getListParam(r, "type") {
		et := audit.EventType(t)
		if !slices.Contains(auditTypes, et) {
			respondError(w, http.StatusBadRequest, codeValidation, "unknown audit event type", map[string]interface{}{"type": t})
			return
		}
		filter.Types = append(filter.Types, et)
	}

	if h.deps.Audit == nil {
		respondData(w, http.StatusOK, []audit.Event{}, 0, start)
		return
	}
	events, err := h.deps.Audit.Query(r.Context(), filter)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, events, len(events), start)
}
