// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

// Package detection scores puzzle-solving telemetry for signs of automated
// or assisted play.
//
// Detection Architecture:
//
//	Submission -> Collector -> EvidenceBundle -> Engine -> DetectionResult
//	                                               |
//	                             +-----------------+-----------------+
//	                             v                 v                 v
//	                      TimingAnalyzer   MovementAnalyzer   BehaviorAnalyzer
//
// Each analyzer follows the same shape as the other pluggable components:
// Type, Analyze, Configure (JSON), Enabled and SetEnabled. Analyzer flags are
// merged into one set and a Scorer (WeightedMeanScorer by default) turns
// their scores into a confidence in [0,1]. SeverityPolicy maps flags and
// confidence to a severity.
//
// The Engine is a pure function of its input and the user's baseline; it
// never persists anything. The pipeline package stores results and opens
// review cases for flagged detections.
//
// Supported Analyzers:
//   - Timing: robust z-score outliers, too-regular cadence, superhuman speed
//   - Movement: optimality against the puzzle optimum, zero-correction
//     solves, repeated move n-grams
//   - Behavior: deviation from the user's baseline, device change,
//     headless or webdriver browsers
package detection
