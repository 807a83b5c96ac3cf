// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package detection

import (
	"github.com/tomtom215/fairplay/internal/config"
)

// NewEngineFromConfig builds an engine with the timing, movement and
// behavior analyzers tuned from cfg. baseline may be nil. A positive
// BaselineCacheSize puts a CachedBaseline in front of it.
func NewEngineFromConfig(cfg config.DetectionConfig, baseline BaselineSource) *Engine {
	if baseline != nil && cfg.BaselineCacheSize > 0 {
		baseline = NewCachedBaseline(baseline, cfg.BaselineCacheSize, cfg.BaselineCacheTTL)
	}

	engine := NewEngine(WeightedMeanScorer{}, SeverityPolicy{
		Critical:      cfg.CriticalConfidence,
		High:          cfg.HighConfidence,
		Medium:        cfg.MediumConfidence,
		HighFlagCount: cfg.HighFlagCount,
	})
	engine.SetEnabled(cfg.Enabled)

	timing := DefaultTimingConfig()
	timing.MinSamples = cfg.MinMoves
	timing.ZScoreThreshold = cfg.TimingZScoreThreshold
	timing.RegularCadenceMaxCV = cfg.RegularCadenceMaxCV
	timing.SuperhumanIntervalMS = cfg.SuperhumanIntervalMS
	engine.RegisterAnalyzer(NewTimingAnalyzer(timing))

	movement := DefaultMovementConfig()
	movement.MinMoves = cfg.MinMoves
	movement.OptimalityThreshold = cfg.OptimalityThreshold
	movement.RepetitionThreshold = cfg.RepetitionThreshold
	engine.RegisterAnalyzer(NewMovementAnalyzer(movement))

	behavior := DefaultBehaviorConfig()
	behavior.DeviationSigma = cfg.BaselineDeviationSigma
	behavior.MinBaselineSamples = cfg.MinBaselineSamples
	engine.RegisterAnalyzer(NewBehaviorAnalyzer(behavior, baseline))

	return engine
}
