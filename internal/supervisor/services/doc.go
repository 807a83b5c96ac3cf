// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

// Package services adapts Fairplay components to the suture.Service
// interface so they can run under the supervisor tree.
//
// Components that already implement Serve(ctx) error, such as the event
// bus and the notification dispatcher, are added to the tree directly.
// This package covers the ones that need a wrapper: the HTTP server and
// the periodic review timeout sweep.
package services
