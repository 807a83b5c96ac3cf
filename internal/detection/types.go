// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package detection

import (
	"context"
	"math"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fairplay/internal/models"
)

// AnalyzerType identifies an analyzer.
type AnalyzerType string

const (
	AnalyzerTiming   AnalyzerType = "timing"
	AnalyzerMovement AnalyzerType = "movement"
	AnalyzerBehavior AnalyzerType = "behavior"
)

// Analyzer is the interface all analyzers implement.
type Analyzer interface {
	// Type returns the analyzer type.
	Type() AnalyzerType

	// Analyze inspects one bundle. A nil result means the analyzer had
	// nothing to say about it.
	Analyze(ctx context.Context, bundle *models.EvidenceBundle) (*models.AnalysisResult, error)

	// Configure replaces the analyzer configuration.
	Configure(config json.RawMessage) error

	// Enabled returns whether this analyzer is currently enabled.
	Enabled() bool

	// SetEnabled enables or disables the analyzer.
	SetEnabled(enabled bool)
}

// BaselineSource provides a user's historical solve statistics.
type BaselineSource interface {
	Baseline(ctx context.Context, userID, puzzleType string) (*models.UserBaseline, error)
}

// Scorer combines analyzer results into one confidence.
type Scorer interface {
	Score(results []models.AnalysisResult) float64
}

// FeedbackStore persists feedback signals.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, f *models.FeedbackSignal) error
}

// MetricsSink receives metric events.
type MetricsSink interface {
	Publish(ctx context.Context, event *models.MetricEvent) error
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
