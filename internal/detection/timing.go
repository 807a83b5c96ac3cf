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

	"github.com/tomtom215/fairplay/internal/models"
)

// TimingConfig configures the timing analyzer.
type TimingConfig struct {
	// MinSamples is the fewest inter-move intervals worth analyzing.
	MinSamples int `json:"min_samples"`

	// ZScoreThreshold marks an interval as an outlier by robust z-score.
	ZScoreThreshold float64 `json:"zscore_threshold"`

	// MaxOutlierShare is the outlier fraction above which timing is anomalous.
	MaxOutlierShare float64 `json:"max_outlier_share"`

	// RegularCadenceMaxCV is the coefficient of variation below which the
	// rhythm is too regular for a human.
	RegularCadenceMaxCV float64 `json:"regular_cadence_max_cv"`

	// SuperhumanIntervalMS is the median interval below which play is too fast.
	SuperhumanIntervalMS float64 `json:"superhuman_interval_ms"`

	Weight float64 `json:"weight"`
}

// DefaultTimingConfig returns production defaults.
func DefaultTimingConfig() TimingConfig {
	return TimingConfig{
		MinSamples:           5,
		ZScoreThreshold:      3.0,
		MaxOutlierShare:      0.1,
		RegularCadenceMaxCV:  0.08,
		SuperhumanIntervalMS: 120,
		Weight:               0.4,
	}
}

// TimingAnalyzer inspects the rhythm of inter-move intervals.
type TimingAnalyzer struct {
	config  TimingConfig
	enabled bool
	mu      sync.RWMutex
}

// NewTimingAnalyzer creates a timing analyzer with the given config.
func NewTimingAnalyzer(config TimingConfig) *TimingAnalyzer {
	return &TimingAnalyzer{config: config, enabled: true}
}

// Type returns the analyzer type.
func (a *TimingAnalyzer) Type() AnalyzerType {
	return AnalyzerTiming
}

// Analyze flags superhuman speed, too-regular cadence and bursty outliers.
func (a *TimingAnalyzer) Analyze(_ context.Context, bundle *models.EvidenceBundle) (*models.AnalysisResult, error) {
	a.mu.RLock()
	config := a.config
	a.mu.RUnlock()

	deltas := bundle.TimingDeltasMS
	if len(deltas) < config.MinSamples {
		return nil, nil
	}

	med := median(deltas)
	m := mean(deltas)
	cv := 0.0
	if m > 0 {
		cv = stdDev(deltas) / m
	}

	outliers := 0
	for _, z := range robustZScores(deltas) {
		if math.Abs(z) > config.ZScoreThreshold {
			outliers++
		}
	}
	share := float64(outliers) / float64(len(deltas))

	var flags models.Flags
	if med < config.SuperhumanIntervalMS {
		flags = flags.Add(models.FlagSuperhumanSpeed)
	}
	if m > 0 && cv < config.RegularCadenceMaxCV {
		flags = flags.Add(models.FlagRegularCadence)
	}
	if share > config.MaxOutlierShare {
		flags = flags.Add(models.FlagTimingAnomaly)
	}

	speedScore := clamp01(1 - med/(2*config.SuperhumanIntervalMS))
	cadenceScore := 0.0
	if m > 0 {
		cadenceScore = clamp01(1 - cv/(3*config.RegularCadenceMaxCV))
	}
	anomalyScore := clamp01(share / (2 * config.MaxOutlierShare))

	return &models.AnalysisResult{
		Analyzer: string(AnalyzerTiming),
		Flags:    flags,
		Score:    math.Max(speedScore, math.Max(cadenceScore, anomalyScore)),
		Weight:   config.Weight,
		Details: map[string]float64{
			"samples":            float64(len(deltas)),
			"median_interval_ms": med,
			"cv":                 cv,
			"outlier_share":      share,
		},
	}, nil
}

// Configure updates the analyzer configuration.
func (a *TimingAnalyzer) Configure(config json.RawMessage) error {
	var newConfig TimingConfig
	if err := json.Unmarshal(config, &newConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if newConfig.MinSamples <= 0 {
		return fmt.Errorf("min_samples must be positive")
	}
	if newConfig.ZScoreThreshold <= 0 || newConfig.MaxOutlierShare <= 0 || newConfig.MaxOutlierShare >= 1 {
		return fmt.Errorf("zscore_threshold must be positive and max_outlier_share in (0,1)")
	}
	if newConfig.RegularCadenceMaxCV <= 0 || newConfig.SuperhumanIntervalMS <= 0 {
		return fmt.Errorf("regular_cadence_max_cv and superhuman_interval_ms must be positive")
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
func (a *TimingAnalyzer) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetEnabled enables or disables the analyzer.
func (a *TimingAnalyzer) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// Config returns the current configuration.
func (a *TimingAnalyzer) Config() TimingConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}
