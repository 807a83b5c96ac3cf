// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/fairplay/internal/models"
)

const defaultPageSize = 50

// pageParams are the limit/offset query parameters shared by list endpoints.
type pageParams struct {
	Limit  int `validate:"gte=1,lte=500"`
	Offset int `validate:"gte=0,lte=1000000"`
}

func parsePage(r *http.Request) pageParams {
	return pageParams{
		Limit:  getIntParam(r, "limit", defaultPageSize),
		Offset: getIntParam(r, "offset", 0),
	}
}

// getIntParam extracts an integer query parameter with a default value.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getTimeParam parses an RFC 3339 query parameter. ok is false when the
// parameter is present but malformed.
func getTimeParam(r *http.Request, key string) (t *time.Time, ok bool) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}

// getListParam splits a comma-separated query parameter.
func getListParam(r *http.Request, key string) []string {
	var out []string
	for _, v := range strings.Split(r.URL.Query().Get(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// assignRequest names a reviewer or moderator. An empty ReviewerID on a
// case asks for automatic assignment.
type assignRequest struct {
	ReviewerID string `json:"reviewer_id" validate:"omitempty,entityid"`
}

// escalateRequest moves a case or report to a higher review tier.
type escalateRequest struct {
	Reason     string            `json:"reason" validate:"required,min=5,max=2000"`
	TargetTier models.ReviewTier `json:"target_tier" validate:"required,oneof=initial secondary expert"`
}

// voteRequest casts a community vote.
type voteRequest struct {
	Option models.VoteOption `json:"option" validate:"required,oneof=cheat suspicious legitimate"`
}

func caseStatuses(values []string) []models.CaseStatus {
	out := make([]models.CaseStatus, 0, len(values))
	for _, v := range values {
		out = append(out, models.CaseStatus(v))
	}
	return out
}

func appealStatuses(values []string) []models.AppealStatus {
	out := make([]models.AppealStatus, 0, len(values))
	for _, v := range values {
		out = append(out, models.AppealStatus(v))
	}
	return out
}

func reportStatuses(values []string) []models.ReportStatus {
	out := make([]models.ReportStatus, 0, len(values))
	for _, v := range values {
		out = append(out, models.ReportStatus(v))
	}
	return out
}
