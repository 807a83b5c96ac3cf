// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package detection

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/models"
)

// BehaviorConfig configures the behavior analyzer.
type BehaviorConfig struct {
	// DeviationSigma is how many standard deviations faster than the
	// user's own mean a solve must be to count as a deviation.
	DeviationSigma float64 `json:"deviation_sigma"`

	// MinBaselineSamples is the history size needed before the baseline is trusted.
	MinBaselineSamples int `json:"min_baseline_samples"`

	// DeviceChangeScore is the score contributed by an unseen device.
	DeviceChangeScore float64 `json:"device_change_score"`

	Weight float64 `json:"weight"`
}

// DefaultBehaviorConfig returns production defaults.
func DefaultBehaviorConfig() BehaviorConfig {
	return BehaviorConfig{
		DeviationSigma:     3.0,
		MinBaselineSamples: 5,
		DeviceChangeScore:  0.3,
		Weight:             0.25,
	}
}

// BehaviorAnalyzer compares a solve against the player's own history and
// inspects the client environment for automation markers.
type BehaviorAnalyzer struct {
	config   BehaviorConfig
	baseline BaselineSource
	enabled  bool
	mu       sync.RWMutex
}

// NewBehaviorAnalyzer creates a behavior analyzer. baseline may be nil, in
// which case only environment markers are checked.
func NewBehaviorAnalyzer(config BehaviorConfig, baseline BaselineSource) *BehaviorAnalyzer {
	return &BehaviorAnalyzer{config: config, baseline: baseline, enabled: true}
}

// Type returns the analyzer type.
func (a *BehaviorAnalyzer) Type() AnalyzerType {
	return AnalyzerBehavior
}

// Analyze flags automation markers, baseline deviation and device changes.
func (a *BehaviorAnalyzer) Analyze(ctx context.Context, bundle *models.EvidenceBundle) (*models.AnalysisResult, error) {
	a.mu.RLock()
	config := a.config
	source := a.baseline
	a.mu.RUnlock()

	var flags models.Flags
	score := 0.0
	details := map[string]float64{}

	if b := bundle.Browser; b != nil {
		if b.Webdriver {
			flags = flags.Add(models.FlagAutomationDetected)
			score = 1
		}
		if b.Headless {
			flags = flags.Add(models.FlagHeadlessBrowser)
			score = math.Max(score, 0.9)
		}
	}

	if source != nil {
		baseline, err := source.Baseline(ctx, bundle.UserID, bundle.PuzzleType)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).
				Str("user_id", bundle.UserID).
				Str("puzzle_type", bundle.PuzzleType).
				Msg("Baseline unavailable, skipping baseline checks")
		} else if baseline != nil {
			details["baseline_samples"] = float64(baseline.Samples)

			if baseline.Samples >= config.MinBaselineSamples && baseline.StdSolutionTimeMS > 0 && bundle.SolutionTimeMS > 0 {
				z := (baseline.MeanSolutionTimeMS - float64(bundle.SolutionTimeMS)) / baseline.StdSolutionTimeMS
				details["baseline_z"] = z
				if z > config.DeviationSigma {
					flags = flags.Add(models.FlagBaselineDeviation)
					score = math.Max(score, clamp01(z/(2*config.DeviationSigma)))
				}
			}

			if d := bundle.Device; d != nil && d.Fingerprint != "" && len(baseline.KnownDevices) > 0 && !containsString(baseline.KnownDevices, d.Fingerprint) {
				flags = flags.Add(models.FlagDeviceChange)
				score = math.Max(score, config.DeviceChangeScore)
			}
		}
	}

	if len(flags) == 0 && len(details) == 0 && bundle.Browser == nil {
		return nil, nil
	}

	return &models.AnalysisResult{
		Analyzer: string(AnalyzerBehavior),
		Flags:    flags,
		Score:    score,
		Weight:   config.Weight,
		Details:  details,
	}, nil
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// Configure updates the analyzer configuration.
func (a *BehaviorAnalyzer) Configure(config json.RawMessage) error {
	var newConfig BehaviorConfig
	if err := json.Unmarshal(config, &newConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if newConfig.DeviationSigma <= 0 {
		return fmt.Errorf("deviation_sigma must be positive")
	}
	if newConfig.MinBaselineSamples < 2 {
		return fmt.Errorf("min_baseline_samples must be at least 2")
	}
	if newConfig.DeviceChangeScore < 0 || newConfig.DeviceChangeScore > 1 {
		return fmt.Errorf("device_change_score must be in [0,1]")
	}
	if newConfig.Weight <= 0 {
		return fmt.Errorf("weight must be positive")
	}

	a.mu.Lock()
	a.config = newConfig
	a.mu.Unlock()

	return nil
}

// Enabled returns whether the analyzer is enabled.
func (a *BehaviorAnalyzer) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetEnabled enables or disables the analyzer.
func (a *BehaviorAnalyzer) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}
