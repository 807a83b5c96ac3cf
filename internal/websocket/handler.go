// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package websocket

import (
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/fairplay/internal/auth"
	"github.com/tomtom215/fairplay/internal/logging"
)

const registerTimeout = 5 * time.Second

// Handler upgrades authenticated requests and attaches them to the hub.
// Browser origins must appear in allowedOrigins unless it contains "*".
// Requests without an Origin header (non-browser clients) are accepted.
func (h *Hub) Handler(allowedOrigins []string) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := ""
		if s := auth.SubjectFromContext(r.Context()); s != nil {
			subject = s.ID
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the error response.
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Live feed upgrade failed")
			return
		}

		client := NewClient(h, conn, subject)
		timer := time.NewTimer(registerTimeout)
		defer timer.Stop()
		select {
		case h.register <- client:
			client.Start()
		case <-timer.C:
			logging.Ctx(r.Context()).Warn().Str("subject", subject).Msg("Live feed not running, closing connection")
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "live feed unavailable"))
			_ = conn.Close()
		}
	})
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}
