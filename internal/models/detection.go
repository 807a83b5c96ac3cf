// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package models

import (
	"sort"
	"time"
)

// Move is one player action inside a puzzle attempt.
type Move struct {
	Type      string    `json:"type" validate:"required,max=32"`
	From      string    `json:"from,omitempty" validate:"max=64"`
	To        string    `json:"to,omitempty" validate:"max=64"`
	Value     string    `json:"value,omitempty" validate:"max=64"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
}

// Correction move types. A solve with none of these is "zero correction".
const (
	MoveTypeUndo  = "undo"
	MoveTypeErase = "erase"
	MoveTypeClear = "clear"
)

// IsCorrection reports whether the move reverses an earlier move.
func (m Move) IsCorrection() bool {
	switch m.Type {
	case MoveTypeUndo, MoveTypeErase, MoveTypeClear:
		return true
	}
	return false
}

// DeviceInfo describes the client device reported with a submission.
type DeviceInfo struct {
	Fingerprint  string `json:"fingerprint,omitempty" validate:"max=128"`
	Platform     string `json:"platform,omitempty" validate:"max=64"`
	ScreenWidth  int    `json:"screen_width,omitempty" validate:"gte=0"`
	ScreenHeight int    `json:"screen_height,omitempty" validate:"gte=0"`
	TouchCapable bool   `json:"touch_capable,omitempty"`
}

// BrowserInfo carries environment markers reported by the client.
type BrowserInfo struct {
	UserAgent   string `json:"user_agent,omitempty" validate:"max=512"`
	Webdriver   bool   `json:"webdriver,omitempty"`
	Headless    bool   `json:"headless,omitempty"`
	PluginCount int    `json:"plugin_count,omitempty" validate:"gte=0"`
	Languages   int    `json:"languages,omitempty" validate:"gte=0"`
}

// EvidenceBundle is the structured telemetry for one puzzle-solving attempt.
// It is immutable once collected; the collector deep-copies its inputs.
type EvidenceBundle struct {
	UserID         string       `json:"user_id"`
	SessionID      string       `json:"session_id"`
	PuzzleID       string       `json:"puzzle_id"`
	PuzzleType     string       `json:"puzzle_type"`
	Moves          []Move       `json:"moves"`
	TimingDeltasMS []float64    `json:"timing_deltas_ms"`
	OptimalMoves   int          `json:"optimal_moves,omitempty"`
	SolutionTimeMS int64        `json:"solution_time_ms"`
	StartTime      time.Time    `json:"start_time"`
	EndTime        time.Time    `json:"end_time"`
	Device         *DeviceInfo  `json:"device,omitempty"`
	Browser        *BrowserInfo `json:"browser,omitempty"`
	CollectedAt    time.Time    `json:"collected_at"`
}

// HasTelemetry reports whether the bundle carries enough data to analyze.
func (b *EvidenceBundle) HasTelemetry() bool {
	return b != nil && len(b.Moves) > 0 && len(b.TimingDeltasMS) > 0
}

// Flag is a discrete named signal for one suspicious characteristic.
type Flag string

const (
	// FlagInsufficientTelemetry is the technical-evidence flag: the bundle
	// could not be analyzed. It never opens a case on its own.
	FlagInsufficientTelemetry Flag = "INSUFFICIENT_TELEMETRY"

	FlagTimingAnomaly      Flag = "TIMING_ANOMALY"
	FlagRegularCadence     Flag = "REGULAR_CADENCE"
	FlagSuperhumanSpeed    Flag = "SUPERHUMAN_SPEED"
	FlagOptimalSolution    Flag = "OPTIMAL_SOLUTION"
	FlagNoCorrections      Flag = "NO_CORRECTIONS"
	FlagRepetitivePattern  Flag = "REPETITIVE_PATTERN"
	FlagBaselineDeviation  Flag = "BASELINE_DEVIATION"
	FlagDeviceChange       Flag = "DEVICE_CHANGE"
	FlagHeadlessBrowser    Flag = "HEADLESS_BROWSER"
	FlagAutomationDetected Flag = "AUTOMATION_DETECTED"
	FlagCommunityReported  Flag = "COMMUNITY_REPORTED"
)

// IsAutomation reports flags that indicate scripted play.
func (f Flag) IsAutomation() bool {
	switch f {
	case FlagAutomationDetected, FlagHeadlessBrowser, FlagRegularCadence:
		return true
	}
	return false
}

// IsCritical reports flags that alone raise severity to at least HIGH.
func (f Flag) IsCritical() bool {
	switch f {
	case FlagAutomationDetected, FlagSuperhumanSpeed:
		return true
	}
	return false
}

// IsTechnical reports flags that describe the evidence rather than the player.
func (f Flag) IsTechnical() bool {
	return f == FlagInsufficientTelemetry
}

// Flags is a set of flags kept as a sorted, duplicate-free slice so it
// serializes deterministically.
type Flags []Flag

// NewFlags builds a normalized flag set.
func NewFlags(flags ...Flag) Flags {
	var out Flags
	return out.Add(flags...)
}

// Add returns a new set containing f plus flags.
func (f Flags) Add(flags ...Flag) Flags {
	seen := make(map[Flag]struct{}, len(f)+len(flags))
	out := make(Flags, 0, len(f)+len(flags))
	for _, fl := range append(append(Flags{}, f...), flags...) {
		if _, ok := seen[fl]; ok || fl == "" {
			continue
		}
		seen[fl] = struct{}{}
		out = append(out, fl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Union returns the set union of f and other.
func (f Flags) Union(other Flags) Flags {
	return f.Add(other...)
}

// Has reports membership.
func (f Flags) Has(flag Flag) bool {
	for _, fl := range f {
		if fl == flag {
			return true
		}
	}
	return false
}

// AnyAutomation reports whether an automation-class flag is present.
func (f Flags) AnyAutomation() bool {
	for _, fl := range f {
		if fl.IsAutomation() {
			return true
		}
	}
	return false
}

// AnyCritical reports whether a critical flag is present.
func (f Flags) AnyCritical() bool {
	for _, fl := range f {
		if fl.IsCritical() {
			return true
		}
	}
	return false
}

// Behavioral returns the flags that describe player behavior.
func (f Flags) Behavioral() Flags {
	out := make(Flags, 0, len(f))
	for _, fl := range f {
		if !fl.IsTechnical() {
			out = append(out, fl)
		}
	}
	return out
}

// Severity is the coarse escalation tier of a detection.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities LOW < MEDIUM < HIGH < CRITICAL. Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// AtLeast reports s >= other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool { return s.Rank() > 0 }

// MaxSeverity returns the higher of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// DetectionSource records where a detection originated.
type DetectionSource string

const (
	SourceAutomated DetectionSource = "automated"
	SourceCommunity DetectionSource = "community"
)

// AnalysisResult is the output of one analyzer.
type AnalysisResult struct {
	Analyzer string             `json:"analyzer"`
	Flags    Flags              `json:"flags"`
	Score    float64            `json:"score"`
	Weight   float64            `json:"weight"`
	Details  map[string]float64 `json:"details,omitempty"`
}

// DetectionKey identifies the subject of a detection. At most one review
// case exists per key.
type DetectionKey struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	PuzzleID  string `json:"puzzle_id"`
}

// DetectionResult is produced once per evaluation and is read-only afterwards.
type DetectionResult struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	PuzzleID    string           `json:"puzzle_id"`
	SessionID   string           `json:"session_id"`
	Flags       Flags            `json:"flags"`
	Severity    Severity         `json:"severity"`
	Confidence  float64          `json:"confidence"`
	Source      DetectionSource  `json:"source"`
	Evidence    *EvidenceBundle  `json:"evidence,omitempty"`
	Analyses    []AnalysisResult `json:"analyses,omitempty"`
	EvaluatedAt time.Time        `json:"evaluated_at"`
}

// Key returns the detection key.
func (r *DetectionResult) Key() DetectionKey {
	return DetectionKey{UserID: r.UserID, SessionID: r.SessionID, PuzzleID: r.PuzzleID}
}

// DetectionFilter narrows detection listings.
type DetectionFilter struct {
	UserID      string
	PuzzleID    string
	MinSeverity Severity
	StartDate   *time.Time
	EndDate     *time.Time
	Limit       int
	Offset      int
}

// FeedbackSignal tells the detection side that a flagged outcome was wrong
// (or right). Persisted and emitted as a metric event.
type FeedbackSignal struct {
	ID            string    `json:"id"`
	CaseID        string    `json:"case_id"`
	DetectionID   string    `json:"detection_id,omitempty"`
	UserID        string    `json:"user_id"`
	Flags         Flags     `json:"flags"`
	FalsePositive bool      `json:"false_positive"`
	Source        string    `json:"source"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// UserBaseline summarizes a player's historical solves for one puzzle type.
type UserBaseline struct {
	UserID             string   `json:"user_id"`
	PuzzleType         string   `json:"puzzle_type"`
	Samples            int      `json:"samples"`
	MeanSolutionTimeMS float64  `json:"mean_solution_time_ms"`
	StdSolutionTimeMS  float64  `json:"std_solution_time_ms"`
	MeanMoveIntervalMS float64  `json:"mean_move_interval_ms"`
	KnownDevices       []string `json:"known_devices,omitempty"`
}

// SolveRecord is one accepted solve, the raw material of baselines.
type SolveRecord struct {
	UserID            string    `json:"user_id"`
	PuzzleType        string    `json:"puzzle_type"`
	SolutionTimeMS    int64     `json:"solution_time_ms"`
	MeanMoveInterval  float64   `json:"mean_move_interval_ms"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	RecordedAt        time.Time `json:"recorded_at"`
}
