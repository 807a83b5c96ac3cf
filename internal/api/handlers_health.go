// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/fairplay/internal/logging"
)

const readinessTimeout = 2 * time.Second

// HealthStatus is the body of the health endpoints.
type HealthStatus struct {
	Status        string  `json:"status"`
	Database      string  `json:"database,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// HealthLive reports that the process is serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondData(w, http.StatusOK, HealthStatus{
		Status:        "alive",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}, 0, start)
}

// HealthReady reports whether the store answers. 503 when it does not.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := HealthStatus{Status: "ready", Database: "ok", UptimeSeconds: time.Since(h.startTime).Seconds()}

	if h.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := h.deps.Health.Ping(ctx); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Readiness check failed")
			status.Status = "not_ready"
			status.Database = "unavailable"
			respondData(w, http.StatusServiceUnavailable, status, 0, start)
			return
		}
	}
	respondData(w, http.StatusOK, status, 0, start)
}

// LiveFeed upgrades to the staff websocket feed. It is 404 when no feed is
// configured.
func (h *Handler) LiveFeed(w http.ResponseWriter, r *http.Request) {
	if h.deps.LiveFeed == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "live feed is not enabled", nil)
		return
	}
	h.deps.LiveFeed.ServeHTTP(w, r)
}
