// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/fairplay/internal/middleware"
)

// Authenticator resolves the caller and stores it in the request context.
type Authenticator interface {
	Authenticate(next http.Handler) http.Handler
}

// Authorizer gates a route on an object/action permission.
type Authorizer interface {
	Authorize(object, action string) func(http.Handler) http.Handler
}

// Router wires handlers, authentication and authorization onto chi.
type Router struct {
	handler       *Handler
	authn         Authenticator
	authz         Authorizer
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router.
func NewRouter(handler *Handler, authn Authenticator, authz Authorizer, mw *ChiMiddleware) *Router {
	return &Router{handler: handler, authn: authn, authz: authz, chiMiddleware: mw}
}

// Setup builds the HTTP handler.
func (router *Router) Setup() http.Handler {
	h := router.handler
	allow := router.authz.Authorize

	r := chi.NewRouter()

	// Global middleware, in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(middleware.SecurityHeaders)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.authn.Authenticate)

		r.With(allow("solutions", "write")).Post("/solutions/validate", h.ValidateSolution)

		r.Route("/detections", func(r chi.Router) {
			r.Use(allow("detections", "read"))
			r.Get("/", h.ListDetections)
			r.Get("/{detectionID}", h.GetDetection)
		})

		r.Route("/cases", func(r chi.Router) {
			r.With(allow("cases", "read")).Get("/", h.ListCases)
			r.With(allow("cases", "read")).Get("/{caseID}", h.GetCase)
			r.Group(func(r chi.Router) {
				r.Use(allow("cases", "write"))
				r.Post("/{caseID}/assign", h.AssignCase)
				r.Post("/{caseID}/start", h.StartReview)
				r.Post("/{caseID}/decision", h.SubmitReview)
				r.Post("/{caseID}/escalate", h.EscalateCase)
			})
		})

		r.Route("/appeals", func(r chi.Router) {
			r.With(allow("appeals", "write")).Post("/", h.SubmitAppeal)
			r.With(allow("appeals", "read")).Get("/", h.ListAppeals)
			r.With(allow("appeals", "read")).Get("/{appealID}", h.GetAppeal)
			r.With(allow("appeals", "write")).Post("/{appealID}/withdraw", h.WithdrawAppeal)
			r.With(allow("appeal_reviews", "write")).Post("/{appealID}/assign", h.AssignAppeal)
			r.With(allow("appeal_reviews", "write")).Post("/{appealID}/review", h.ReviewAppeal)
		})

		r.Route("/reports", func(r chi.Router) {
			r.With(allow("reports", "write")).Post("/", h.SubmitReport)
			r.With(allow("reports", "read")).Get("/", h.ListReports)
			r.With(allow("reports", "read")).Get("/{reportID}", h.GetReport)
			r.With(allow("votes", "write")).Post("/{reportID}/votes", h.VoteOnReport)
			r.Group(func(r chi.Router) {
				r.Use(allow("report_moderation", "write"))
				r.Post("/{reportID}/assign", h.AssignReportModerator)
				r.Post("/{reportID}/moderate", h.ModerateReport)
				r.Post("/{reportID}/escalate", h.EscalateReport)
			})
		})

		r.With(allow("analytics", "read")).Get("/analytics/accuracy", h.AccuracyAnalytics)
		r.With(allow("audit", "read")).Get("/audit", h.ListAuditEvents)
		r.With(allow("feed", "read")).Get("/feed", h.LiveFeed)

		r.Route("/staff", func(r chi.Router) {
			r.With(allow("staff", "read")).Get("/", h.ListStaff)
			r.With(allow("staff", "read")).Get("/{staffID}", h.GetStaff)
			r.With(allow("staff", "write")).Put("/{staffID}", h.PutStaff)
		})
	})

	return r
}
