// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package detection

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tomtom215/fairplay/internal/config"
	"github.com/tomtom215/fairplay/internal/models"
)

func newDefaultEngine() *Engine {
	e := NewEngineFromConfig(config.Default().Detection, nil)
	e.SetClock(func() time.Time { return testStart })
	return e
}

func TestEngineEvaluateBot(t *testing.T) {
	e := newDefaultEngine()

	res, err := e.Evaluate(context.Background(), botBundle())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	want := []models.Flag{
		models.FlagAutomationDetected,
		models.FlagNoCorrections,
		models.FlagOptimalSolution,
		models.FlagRegularCadence,
		models.FlagSuperhumanSpeed,
	}
	if !flagsEqual(res.Flags, want...) {
		t.Errorf("flags = %v, want %v", res.Flags, want)
	}
	if res.Confidence < 0.99 {
		t.Errorf("confidence = %v, want ~1", res.Confidence)
	}
	if res.Severity != models.SeverityCritical {
		t.Errorf("severity = %s, want critical", res.Severity)
	}
	if !Flagged(res) {
		t.Error("bot solve not flagged")
	}
	if len(res.Analyses) != 3 {
		t.Errorf("analyses = %d, want 3", len(res.Analyses))
	}
	if res.ID == "" || !res.EvaluatedAt.Equal(testStart) {
		t.Errorf("id=%q evaluated_at=%v", res.ID, res.EvaluatedAt)
	}
	if res.Source != models.SourceAutomated {
		t.Errorf("source = %s", res.Source)
	}
}

func TestEngineEvaluateHuman(t *testing.T) {
	res, err := newDefaultEngine().Evaluate(context.Background(), humanBundle())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(res.Flags) != 0 {
		t.Errorf("flags = %v, want none", res.Flags)
	}
	if res.Severity != models.SeverityLow || res.Confidence != 0 {
		t.Errorf("severity=%s confidence=%v", res.Severity, res.Confidence)
	}
	if Flagged(res) {
		t.Error("human solve flagged")
	}
}

func TestEngineInsufficientTelemetry(t *testing.T) {
	e := newDefaultEngine()
	b := bundleFromMoves(nil)

	res, err := e.Evaluate(context.Background(), b)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !flagsEqual(res.Flags, models.FlagInsufficientTelemetry) {
		t.Errorf("flags = %v", res.Flags)
	}
	if res.Severity != models.SeverityLow || res.Confidence != 0 {
		t.Errorf("severity=%s confidence=%v", res.Severity, res.Confidence)
	}
	if Flagged(res) {
		t.Error("technical-only result flagged")
	}

	if _, err := e.Evaluate(context.Background(), nil); !errors.Is(err, models.ErrValidationFailure) {
		t.Errorf("Evaluate(nil) error = %v", err)
	}
}

func TestEngineContinuesPastAnalyzerErrors(t *testing.T) {
	e := NewEngine(nil, DefaultSeverityPolicy())
	failing := &stubAnalyzer{typ: "failing", err: errBoom, enabled: true}
	working := &stubAnalyzer{typ: "working", enabled: true, result: &models.AnalysisResult{
		Analyzer: "working",
		Flags:    models.NewFlags(models.FlagOptimalSolution),
		Score:    0.5,
		Weight:   1,
	}}
	disabled := &stubAnalyzer{typ: "disabled", enabled: false, result: &models.AnalysisResult{Score: 1, Weight: 1}}
	e.RegisterAnalyzer(failing)
	e.RegisterAnalyzer(working)
	e.RegisterAnalyzer(disabled)

	res, err := e.Evaluate(context.Background(), humanBundle())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if math.Abs(res.Confidence-0.5) > 1e-9 {
		t.Errorf("confidence = %v, want 0.5", res.Confidence)
	}
	if res.Severity != models.SeverityMedium {
		t.Errorf("severity = %s, want medium", res.Severity)
	}
	if disabled.calls != 0 {
		t.Error("disabled analyzer ran")
	}

	m := e.Metrics()
	if m.AnalyzerErrors != 1 || m.Evaluated != 1 || m.Flagged != 1 {
		t.Errorf("metrics = %+v", m)
	}
	if m.AnalyzerMetrics["failing"].Errors != 1 || m.AnalyzerMetrics["working"].Results != 1 {
		t.Error("per-analyzer metrics not tracked")
	}
}

type fixedScorer float64

func (f fixedScorer) Score([]models.AnalysisResult) float64 { return float64(f) }

func TestEngineClampsScorer(t *testing.T) {
	for _, s := range []fixedScorer{1.7, -0.3} {
		e := NewEngine(s, DefaultSeverityPolicy())
		e.RegisterAnalyzer(&stubAnalyzer{typ: "x", enabled: true, result: &models.AnalysisResult{Weight: 1}})
		res, err := e.Evaluate(context.Background(), humanBundle())
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if res.Confidence < 0 || res.Confidence > 1 {
			t.Errorf("scorer %v: confidence %v outside [0,1]", s, res.Confidence)
		}
	}
}

func TestEngineDisabled(t *testing.T) {
	e := newDefaultEngine()
	e.SetEnabled(false)
	if e.Enabled() {
		t.Fatal("SetEnabled(false) ignored")
	}
	res, err := e.Evaluate(context.Background(), botBundle())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(res.Flags) != 0 || Flagged(res) {
		t.Errorf("disabled engine flagged: %v", res.Flags)
	}
}

func TestEngineRegistry(t *testing.T) {
	e := newDefaultEngine()
	list := e.ListAnalyzers()
	if len(list) != 3 {
		t.Fatalf("ListAnalyzers() = %d", len(list))
	}
	if list[0].Type() != AnalyzerBehavior || list[2].Type() != AnalyzerTiming {
		t.Errorf("analyzers not ordered by type")
	}
	if _, ok := e.GetAnalyzer(AnalyzerMovement); !ok {
		t.Error("movement analyzer missing")
	}
	if _, ok := e.GetAnalyzer("nope"); ok {
		t.Error("unknown analyzer found")
	}
}

func TestSeverityPolicyClassify(t *testing.T) {
	p := DefaultSeverityPolicy()
	tests := []struct {
		name       string
		confidence float64
		flags      []models.Flag
		want       models.Severity
	}{
		{"automation at high confidence", 0.95, []models.Flag{models.FlagAutomationDetected}, models.SeverityCritical},
		{"high confidence without automation", 0.95, []models.Flag{models.FlagOptimalSolution}, models.SeverityHigh},
		{"automation at 0.9 exactly", 0.9, []models.Flag{models.FlagHeadlessBrowser}, models.SeverityHigh},
		{"three flags", 0.5, []models.Flag{models.FlagTimingAnomaly, models.FlagOptimalSolution, models.FlagNoCorrections}, models.SeverityHigh},
		{"critical flag", 0.2, []models.Flag{models.FlagSuperhumanSpeed}, models.SeverityHigh},
		{"medium confidence", 0.5, []models.Flag{models.FlagOptimalSolution}, models.SeverityMedium},
		{"low", 0.3, nil, models.SeverityLow},
		{"0.4 is not medium", 0.4, []models.Flag{models.FlagOptimalSolution}, models.SeverityLow},
		{"technical flag does not count", 0.2, []models.Flag{models.FlagInsufficientTelemetry, models.FlagOptimalSolution, models.FlagNoCorrections}, models.SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Classify(tt.confidence, models.NewFlags(tt.flags...)); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSeverityMonotoneInConfidence(t *testing.T) {
	p := DefaultSeverityPolicy()
	sets := []models.Flags{
		nil,
		models.NewFlags(models.FlagOptimalSolution),
		models.NewFlags(models.FlagRegularCadence),
		models.NewFlags(models.FlagAutomationDetected, models.FlagSuperhumanSpeed),
	}
	for _, flags := range sets {
		prev := 0
		for i := 0; i <= 100; i++ {
			rank := p.Classify(float64(i)/100, flags).Rank()
			if rank < prev {
				t.Fatalf("flags %v: severity dropped at confidence %.2f", flags, float64(i)/100)
			}
			prev = rank
		}
	}
}

func TestWeightedMeanScorer(t *testing.T) {
	tests := []struct {
		name    string
		results []models.AnalysisResult
		want    float64
	}{
		{"empty", nil, 0},
		{"weighted", []models.AnalysisResult{{Score: 1, Weight: 0.4}, {Score: 0, Weight: 0.6}}, 0.4},
		{"zero weights ignored", []models.AnalysisResult{{Score: 1, Weight: 0}}, 0},
		{"scores clamped", []models.AnalysisResult{{Score: 3, Weight: 1}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (WeightedMeanScorer{}).Score(tt.results); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlagged(t *testing.T) {
	tests := []struct {
		name   string
		result *models.DetectionResult
		want   bool
	}{
		{"nil", nil, false},
		{"medium behavioral", &models.DetectionResult{Severity: models.SeverityMedium, Flags: models.NewFlags(models.FlagOptimalSolution)}, true},
		{"medium technical only", &models.DetectionResult{Severity: models.SeverityMedium, Flags: models.NewFlags(models.FlagInsufficientTelemetry)}, false},
		{"low behavioral", &models.DetectionResult{Severity: models.SeverityLow, Flags: models.NewFlags(models.FlagOptimalSolution)}, false},
		{"high no flags", &models.DetectionResult{Severity: models.SeverityHigh}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Flagged(tt.result); got != tt.want {
				t.Errorf("Flagged() = %v, want %v", got, tt.want)
			}
		})
	}
}
