// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

// Package cache provides a bounded, thread-safe LRU cache with per-entry
// expiry.
//
// The detection engine uses it to avoid recomputing per-user solve
// baselines on every submission:
//
//	baselines := cache.NewLRU[*models.UserBaseline](10000, 5*time.Minute)
//	if b, ok := baselines.Get(key); ok {
//		return b, nil
//	}
//
// Get, Add and Remove are O(1). Expired entries are dropped lazily on
// access or in bulk with CleanupExpired.
package cache
