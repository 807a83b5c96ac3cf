// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package detection

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/metrics"
	"github.com/tomtom215/fairplay/internal/models"
)

// Engine runs the registered analyzers over an evidence bundle and folds
// their output into a single detection result. It holds no persistence.
type Engine struct {
	analyzers map[AnalyzerType]Analyzer
	scorer    Scorer
	policy    SeverityPolicy
	now       func() time.Time

	mu           sync.RWMutex
	enabled      bool
	metricsMu    sync.Mutex
	metricsStore *EngineMetrics
}

// EngineMetrics tracks evaluation counts.
type EngineMetrics struct {
	Evaluated        int64
	Flagged          int64
	AnalyzerErrors   int64
	LastEvaluatedAt  time.Time
	AnalyzerMetrics  map[AnalyzerType]*AnalyzerMetrics
	ProcessingTimeMs int64
}

// AnalyzerMetrics tracks one analyzer.
type AnalyzerMetrics struct {
	Runs    int64
	Results int64
	Errors  int64
}

// NewEngine creates an engine. A nil scorer selects WeightedMeanScorer.
func NewEngine(scorer Scorer, policy SeverityPolicy) *Engine {
	if scorer == nil {
		scorer = WeightedMeanScorer{}
	}
	return &Engine{
		analyzers: make(map[AnalyzerType]Analyzer),
		scorer:    scorer,
		policy:    policy,
		now:       time.Now,
		enabled:   true,
		metricsStore: &EngineMetrics{
			AnalyzerMetrics: make(map[AnalyzerType]*AnalyzerMetrics),
		},
	}
}

// SetClock overrides the clock used for EvaluatedAt.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// RegisterAnalyzer adds an analyzer, replacing any of the same type.
func (e *Engine) RegisterAnalyzer(analyzer Analyzer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := analyzer.Type()
	e.analyzers[t] = analyzer

	e.metricsMu.Lock()
	e.metricsStore.AnalyzerMetrics[t] = &AnalyzerMetrics{}
	e.metricsMu.Unlock()

	logging.Info().Str("analyzer", string(t)).Msg("registered analyzer")
}

// Evaluate scores one bundle. Missing moves or timing yield a LOW result
// carrying INSUFFICIENT_TELEMETRY instead of an error. Analyzer failures
// are logged and the remaining analyzers still run.
func (e *Engine) Evaluate(ctx context.Context, bundle *models.EvidenceBundle) (*models.DetectionResult, error) {
	if bundle == nil {
		return nil, models.NewValidationFailure(models.ReasonInvalidEvidence, "evidence bundle is required")
	}

	start := time.Now()

	e.mu.RLock()
	now := e.now
	enabled := e.enabled
	e.mu.RUnlock()

	result := &models.DetectionResult{
		ID:          uuid.New().String(),
		UserID:      bundle.UserID,
		PuzzleID:    bundle.PuzzleID,
		SessionID:   bundle.SessionID,
		Flags:       models.Flags{},
		Severity:    models.SeverityLow,
		Source:      models.SourceAutomated,
		Evidence:    bundle,
		EvaluatedAt: now().UTC(),
	}

	switch {
	case !enabled:
	case !bundle.HasTelemetry():
		result.Flags = models.NewFlags(models.FlagInsufficientTelemetry)
	default:
		analyses := e.runAnalyzers(ctx, e.enabledAnalyzers(), bundle)
		var flags models.Flags
		for _, a := range analyses {
			flags = flags.Union(a.Flags)
		}
		if flags == nil {
			flags = models.Flags{}
		}
		result.Flags = flags
		result.Analyses = analyses
		result.Confidence = clamp01(e.scorer.Score(analyses))
		result.Severity = e.policy.Classify(result.Confidence, flags)
	}

	flagged := Flagged(result)
	e.updateProcessingMetrics(start, flagged)

	flagNames := make([]string, len(result.Flags))
	for i, f := range result.Flags {
		flagNames[i] = string(f)
	}
	metrics.RecordDetection(string(result.Severity), flagged, flagNames, time.Since(start))

	logging.Ctx(ctx).Debug().
		Str("detection_id", result.ID).
		Str("user_id", result.UserID).
		Str("severity", string(result.Severity)).
		Float64("confidence", result.Confidence).
		Strs("flags", flagNames).
		Msg("Evaluated evidence bundle")

	return result, nil
}

// enabledAnalyzers returns the enabled analyzers in a stable order.
func (e *Engine) enabledAnalyzers() []Analyzer {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Analyzer, 0, len(e.analyzers))
	for _, a := range e.analyzers {
		if a.Enabled() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type() < out[j].Type() })
	return out
}

func (e *Engine) runAnalyzers(ctx context.Context, analyzers []Analyzer, bundle *models.EvidenceBundle) []models.AnalysisResult {
	var results []models.AnalysisResult
	var errs []error

	for _, analyzer := range analyzers {
		res, err := e.runSingleAnalyzer(ctx, analyzer, bundle)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res != nil {
			res.Score = clamp01(res.Score)
			results = append(results, *res)
		}
	}

	if len(errs) > 0 {
		logging.Ctx(ctx).Warn().Errs("errors", errs).Msg("analyzers failed during evaluation")
	}
	return results
}

func (e *Engine) runSingleAnalyzer(ctx context.Context, analyzer Analyzer, bundle *models.EvidenceBundle) (*models.AnalysisResult, error) {
	t := analyzer.Type()

	e.metricsMu.Lock()
	m := e.metricsStore.AnalyzerMetrics[t]
	if m != nil {
		m.Runs++
	}
	e.metricsMu.Unlock()

	res, err := analyzer.Analyze(ctx, bundle)

	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()
	if err != nil {
		if m != nil {
			m.Errors++
		}
		e.metricsStore.AnalyzerErrors++
		return nil, fmt.Errorf("%s: %w", t, err)
	}
	if res != nil && m != nil {
		m.Results++
	}
	return res, nil
}

func (e *Engine) updateProcessingMetrics(start time.Time, flagged bool) {
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()
	e.metricsStore.Evaluated++
	if flagged {
		e.metricsStore.Flagged++
	}
	e.metricsStore.ProcessingTimeMs = time.Since(start).Milliseconds()
	e.metricsStore.LastEvaluatedAt = time.Now()
}

// SetEnabled enables or disables the engine. A disabled engine returns
// LOW results with no flags.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

// Enabled returns whether the engine is enabled.
func (e *Engine) Enabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled
}

// GetAnalyzer returns an analyzer by type.
func (e *Engine) GetAnalyzer(t AnalyzerType) (Analyzer, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.analyzers[t]
	return a, ok
}

// ListAnalyzers returns all registered analyzers ordered by type.
func (e *Engine) ListAnalyzers() []Analyzer {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Analyzer, 0, len(e.analyzers))
	for _, a := range e.analyzers {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type() < out[j].Type() })
	return out
}

// Metrics returns a copy of the engine metrics.
func (e *Engine) Metrics() EngineMetrics {
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()

	out := EngineMetrics{
		Evaluated:        e.metricsStore.Evaluated,
		Flagged:          e.metricsStore.Flagged,
		AnalyzerErrors:   e.metricsStore.AnalyzerErrors,
		LastEvaluatedAt:  e.metricsStore.LastEvaluatedAt,
		ProcessingTimeMs: e.metricsStore.ProcessingTimeMs,
		AnalyzerMetrics:  make(map[AnalyzerType]*AnalyzerMetrics, len(e.metricsStore.AnalyzerMetrics)),
	}
	for t, m := range e.metricsStore.AnalyzerMetrics {
		c := *m
		out.AnalyzerMetrics[t] = &c
	}
	return out
}
