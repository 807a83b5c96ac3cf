// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

// Package pipeline orchestrates solution validation:
//
//	Submission -> Collect -> Evaluate -> SaveDetection -+-> RecordSolve          (clean)
//	                                                    +-> CreateCase -> AutoAssign (flagged)
//
// The engine is pure. Nothing is persisted until evaluation succeeds, and a
// failed detection write leaves no case behind.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/fairplay/internal/detection"
	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/models"
)

// Collector turns a submission into an evidence bundle.
type Collector interface {
	Collect(sub *detection.Submission) (*models.EvidenceBundle, error)
}

// Evaluator scores an evidence bundle.
type Evaluator interface {
	Evaluate(ctx context.Context, bundle *models.EvidenceBundle) (*models.DetectionResult, error)
}

// DetectionStore persists results and clean solves.
type DetectionStore interface {
	SaveDetection(ctx context.Context, d *models.DetectionResult) error
	RecordSolve(ctx context.Context, rec models.SolveRecord) error
}

// CaseOpener opens review cases for flagged detections.
type CaseOpener interface {
	CreateCase(ctx context.Context, result *models.DetectionResult, priority *models.Priority) (*models.ReviewCase, error)
	AutoAssign(ctx context.Context, caseID string) (*models.ReviewCase, error)
}

// MetricsSink receives detection_evaluated events.
type MetricsSink interface {
	Publish(ctx context.Context, event *models.MetricEvent) error
}

// Outcome is the result of validating one solution.
type Outcome struct {
	Detection *models.DetectionResult `json:"detection"`
	Flagged   bool                    `json:"flagged"`
	Case      *models.ReviewCase      `json:"case,omitempty"`
}

// Pipeline wires the collector, engine, store and case manager.
type Pipeline struct {
	collector Collector
	engine    Evaluator
	store     DetectionStore
	cases     CaseOpener
	events    MetricsSink
}

// New creates a pipeline. events may be nil.
func New(collector Collector, engine Evaluator, store DetectionStore, cases CaseOpener, events MetricsSink) *Pipeline {
	return &Pipeline{
		collector: collector,
		engine:    engine,
		store:     store,
		cases:     cases,
		events:    events,
	}
}

// ValidateSolution runs one submission through detection. A flagged result
// opens (or merges into) a review case and attempts auto-assignment; a clean
// result feeds the player's baseline.
func (p *Pipeline) ValidateSolution(ctx context.Context, sub *detection.Submission) (*Outcome, error) {
	bundle, err := p.collector.Collect(sub)
	if err != nil {
		return nil, err
	}

	result, err := p.engine.Evaluate(ctx, bundle)
	if err != nil {
		return nil, fmt.Errorf("evaluate submission: %w", err)
	}

	if err := p.store.SaveDetection(ctx, result); err != nil {
		return nil, fmt.Errorf("save detection: %w", err)
	}

	out := &Outcome{Detection: result, Flagged: detection.Flagged(result)}
	p.publish(ctx, result, out.Flagged)

	log := logging.Ctx(ctx).With().
		Str("detection_id", result.ID).
		Str("user_id", result.UserID).
		Str("session_id", result.SessionID).
		Str("severity", string(result.Severity)).
		Logger()

	if !out.Flagged {
		if err := p.store.RecordSolve(ctx, solveRecord(bundle, result.EvaluatedAt)); err != nil {
			log.Warn().Err(err).Msg("Failed to record solve for baseline")
		}
		return out, nil
	}

	c, err := p.cases.CreateCase(ctx, result, nil)
	if err != nil {
		return nil, fmt.Errorf("open review case: %w", err)
	}
	out.Case = c

	if c.Status.AwaitingAssignment() {
		assigned, err := p.cases.AutoAssign(ctx, c.ID)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("case_id", c.ID).Msg("Auto-assignment failed, case left pending")
		case assigned != nil:
			out.Case = assigned
		}
	}

	log.Info().
		Str("case_id", out.Case.ID).
		Str("case_status", string(out.Case.Status)).
		Float64("confidence", result.Confidence).
		Msg("Flagged solution routed to review")
	return out, nil
}

func (p *Pipeline) publish(ctx context.Context, result *models.DetectionResult, flagged bool) {
	if p.events == nil {
		return
	}
	e := &models.MetricEvent{
		Type:       models.MetricDetectionEvaluated,
		UserID:     result.UserID,
		Severity:   result.Severity,
		Flagged:    flagged,
		Source:     result.Source,
		OccurredAt: result.EvaluatedAt,
	}
	if err := p.events.Publish(ctx, e); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("detection_id", result.ID).Msg("Failed to publish detection event")
	}
}

func solveRecord(b *models.EvidenceBundle, at time.Time) models.SolveRecord {
	rec := models.SolveRecord{
		UserID:         b.UserID,
		PuzzleType:     b.PuzzleType,
		SolutionTimeMS: b.SolutionTimeMS,
		RecordedAt:     at,
	}
	if n := len(b.TimingDeltasMS); n > 0 {
		var sum float64
		for _, d := range b.TimingDeltasMS {
			sum += d
		}
		rec.MeanMoveInterval = sum / float64(n)
	}
	if b.Device != nil {
		rec.DeviceFingerprint = b.Device.Fingerprint
	}
	return rec
}
