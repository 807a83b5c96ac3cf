// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package detection

import (
	"github.com/tomtom215/fairplay/internal/models"
)

// WeightedMeanScorer is the default Scorer: sum(score*weight)/sum(weight)
// over analyzers that produced a result.
type WeightedMeanScorer struct{}

// Score returns the weighted mean, or 0 when no result carries weight.
func (WeightedMeanScorer) Score(results []models.AnalysisResult) float64 {
	var num, den float64
	for _, r := range results {
		if r.Weight <= 0 {
			continue
		}
		num += clamp01(r.Score) * r.Weight
		den += r.Weight
	}
	if den == 0 {
		return 0
	}
	return clamp01(num / den)
}

// SeverityPolicy maps confidence and flags to a severity.
type SeverityPolicy struct {
	Critical      float64
	High          float64
	Medium        float64
	HighFlagCount int
}

// DefaultSeverityPolicy returns the production thresholds.
func DefaultSeverityPolicy() SeverityPolicy {
	return SeverityPolicy{Critical: 0.9, High: 0.7, Medium: 0.4, HighFlagCount: 3}
}

// Classify derives severity. It is monotone in confidence for a fixed flag set.
func (p SeverityPolicy) Classify(confidence float64, flags models.Flags) models.Severity {
	behavioral := flags.Behavioral()
	switch {
	case confidence > p.Critical && behavioral.AnyAutomation():
		return models.SeverityCritical
	case confidence > p.High, len(behavioral) >= p.HighFlagCount, behavioral.AnyCritical():
		return models.SeverityHigh
	case confidence > p.Medium:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// Flagged reports whether a detection warrants a review case: severity at
// least MEDIUM and at least one flag describing the player.
func Flagged(result *models.DetectionResult) bool {
	if result == nil {
		return false
	}
	return result.Severity.AtLeast(models.SeverityMedium) && len(result.Flags.Behavioral()) > 0
}
