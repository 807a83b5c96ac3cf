// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

// Package middleware holds HTTP middleware shared by the API router that is
// not provided by the chi ecosystem: Prometheus request instrumentation and
// response security headers.
//
// Both are chi-compatible (func(http.Handler) http.Handler):
//
//	r.Use(middleware.PrometheusMetrics)
//	r.Use(middleware.SecurityHeaders)
package middleware
