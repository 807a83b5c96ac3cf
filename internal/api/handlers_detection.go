// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/fairplay/internal/detection"
	"github.com/tomtom215/fairplay/internal/models"
)

// ValidateSolution evaluates a finished solve. The submitting user is the
// authenticated subject; a user_id in the body is ignored.
func (h *Handler) ValidateSolution(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var sub detection.Submission
	if !decodeJSON(w, r, &sub) {
		return
	}
	sub.UserID = subject(r).ID

	outcome, err := h.deps.Pipeline.ValidateSolution(r.Context(), &sub)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, outcome, 0, start)
}

// ListDetections lists stored detection results.
//
// Query: user_id, puzzle_id, min_severity, start, end (RFC 3339), limit, offset.
func (h *Handler) ListDetections(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	page := parsePage(r)
	if !validateRequest(w, &page) {
		return
	}
	from, ok := getTimeParam(r, "start")
	if !ok {
		respondError(w, http.StatusBadRequest, codeValidation, "start must be RFC 3339", nil)
		return
	}
	to, ok := getTimeParam(r, "end")
	if !ok {
		respondError(w, http.StatusBadRequest, codeValidation, "end must be RFC 3339", nil)
		return
	}
	minSeverity := models.Severity(r.URL.Query().Get("min_severity"))
	if minSeverity != "" && !minSeverity.Valid() {
		respondError(w, http.StatusBadRequest, codeValidation, "unknown severity", map[string]interface{}{"min_severity": string(minSeverity)})
		return
	}

	results, err := h.deps.Detections.ListDetections(r.Context(), models.DetectionFilter{
		UserID:      r.URL.Query().Get("user_id"),
		PuzzleID:    r.URL.Query().Get("puzzle_id"),
		MinSeverity: minSeverity,
		StartDate:   from,
		EndDate:     to,
		Limit:       page.Limit,
		Offset:      page.Offset,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, results, len(results), start)
}

// GetDetection returns one detection result.
func (h *Handler) GetDetection(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result, err := h.deps.Detections.GetDetection(r.Context(), chi.URLParam(r, "detectionID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, result, 0, start)
}
