// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package detection

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fairplay/internal/models"
)

// MovementConfig configures the movement analyzer.
type MovementConfig struct {
	// MinMoves is the fewest moves worth analyzing.
	MinMoves int `json:"min_moves"`

	// OptimalityThreshold is the optimal/actual move ratio at or above
	// which a solve is considered machine-perfect.
	OptimalityThreshold float64 `json:"optimality_threshold"`

	// NoCorrectionMinMoves is the solve length from which a solve without
	// a single undo, erase or clear is suspicious.
	NoCorrectionMinMoves int `json:"no_correction_min_moves"`

	// NGramSize is the length of move sequences compared for repetition.
	NGramSize int `json:"ngram_size"`

	// RepetitionThreshold is the repeated n-gram share that raises a flag.
	RepetitionThreshold float64 `json:"repetition_threshold"`

	Weight float64 `json:"weight"`
}

// DefaultMovementConfig returns production defaults.
func DefaultMovementConfig() MovementConfig {
	return MovementConfig{
		MinMoves:             5,
		OptimalityThreshold:  0.98,
		NoCorrectionMinMoves: 20,
		NGramSize:            3,
		RepetitionThreshold:  0.6,
		Weight:               0.35,
	}
}

// MovementAnalyzer inspects what the player did rather than when.
type MovementAnalyzer struct {
	config  MovementConfig
	enabled bool
	mu      sync.RWMutex
}

// NewMovementAnalyzer creates a movement analyzer with the given config.
func NewMovementAnalyzer(config MovementConfig) *MovementAnalyzer {
	return &MovementAnalyzer{config: config, enabled: true}
}

// Type returns the analyzer type.
func (a *MovementAnalyzer) Type() AnalyzerType {
	return AnalyzerMovement
}

// Analyze flags optimal solutions, correction-free solves and repeated patterns.
func (a *MovementAnalyzer) Analyze(_ context.Context, bundle *models.EvidenceBundle) (*models.AnalysisResult, error) {
	a.mu.RLock()
	config := a.config
	a.mu.RUnlock()

	moves := bundle.Moves
	if len(moves) < config.MinMoves {
		return nil, nil
	}

	corrections := 0
	for _, mv := range moves {
		if mv.IsCorrection() {
			corrections++
		}
	}

	var flags models.Flags
	details := map[string]float64{
		"moves":       float64(len(moves)),
		"corrections": float64(corrections),
	}

	optScore := 0.0
	if bundle.OptimalMoves > 0 {
		optimality := math.Min(1, float64(bundle.OptimalMoves)/float64(len(moves)))
		details["optimality"] = optimality
		if optimality >= config.OptimalityThreshold {
			flags = flags.Add(models.FlagOptimalSolution)
		}
		optScore = clamp01((optimality - 0.8) / 0.2)
	}

	noCorrScore := 0.0
	if corrections == 0 && len(moves) >= config.NoCorrectionMinMoves {
		flags = flags.Add(models.FlagNoCorrections)
		noCorrScore = 0.5
	}

	repScore := 0.0
	if ratio, ok := repetitionRatio(moves, config.NGramSize, config.MinMoves); ok {
		details["repetition"] = ratio
		if ratio >= config.RepetitionThreshold {
			flags = flags.Add(models.FlagRepetitivePattern)
		}
		half := config.RepetitionThreshold / 2
		repScore = clamp01((ratio - half) / half)
	}

	return &models.AnalysisResult{
		Analyzer: string(AnalyzerMovement),
		Flags:    flags,
		Score:    math.Max(optScore, math.Max(noCorrScore, repScore)),
		Weight:   config.Weight,
		Details:  details,
	}, nil
}

// repetitionRatio is 1 - distinct/total over move n-grams. ok is false when
// there are fewer than minGrams n-grams.
func repetitionRatio(moves []models.Move, n, minGrams int) (float64, bool) {
	if n <= 0 || len(moves) < n {
		return 0, false
	}
	total := len(moves) - n + 1
	if total < minGrams {
		return 0, false
	}
	seen := make(map[string]struct{}, total)
	var sb strings.Builder
	for i := 0; i < total; i++ {
		sb.Reset()
		for _, mv := range moves[i : i+n] {
			sb.WriteString(mv.Type)
			sb.WriteByte(':')
			sb.WriteString(mv.Value)
			sb.WriteByte('|')
		}
		seen[sb.String()] = struct{}{}
	}
	return 1 - float64(len(seen))/float64(total), true
}

// Configure updates the analyzer configuration.
func (a *MovementAnalyzer) Configure(config json.RawMessage) error {
	var newConfig MovementConfig
	if err := json.Unmarshal(config, &newConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if newConfig.MinMoves <= 0 || newConfig.NoCorrectionMinMoves <= 0 || newConfig.NGramSize <= 0 {
		return fmt.Errorf("min_moves, no_correction_min_moves and ngram_size must be positive")
	}
	if newConfig.OptimalityThreshold <= 0.8 || newConfig.OptimalityThreshold > 1 {
		return fmt.Errorf("optimality_threshold must be in (0.8,1]")
	}
	if newConfig.RepetitionThreshold <= 0 || newConfig.RepetitionThreshold > 1 {
		return fmt.Errorf("repetition_threshold must be in (0,1]")
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
func (a *MovementAnalyzer) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetEnabled enables or disables the analyzer.
func (a *MovementAnalyzer) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}
