// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

// Package analytics aggregates metric events into detection accuracy
// figures.
//
// The managers never compute rates themselves; they publish immutable
// MetricEvents and the Aggregator folds them into counters. Rates:
//
//	false positive rate = (legitimate verdicts + approved appeals) / completed cases
//	false negative rate = community-sourced confirmed cheats / all confirmed cheats
//
// A confirmed cheat that only the community caught is one the detection
// engine missed.
package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/metrics"
	"github.com/tomtom215/fairplay/internal/models"
)

// EventSource replays persisted events.
type EventSource interface {
	ListMetricEvents(ctx context.Context, since time.Time) ([]*models.MetricEvent, error)
}

// Snapshot is a point-in-time view of the aggregated counters.
type Snapshot struct {
	Detections         int                            `json:"detections"`
	Flagged            int                            `json:"flagged"`
	CasesOpened        int                            `json:"cases_opened"`
	CasesCompleted     int                            `json:"cases_completed"`
	Verdicts           map[models.Verdict]int         `json:"verdicts"`
	AppealsResolved    int                            `json:"appeals_resolved"`
	AppealsApproved    int                            `json:"appeals_approved"`
	AppealsModified    int                            `json:"appeals_modified"`
	FeedbackSignals    int                            `json:"feedback_signals"`
	FalsePositives     int                            `json:"false_positive_signals"`
	ConfirmedCheats    int                            `json:"confirmed_cheats"`
	CommunityConfirmed int                            `json:"community_confirmed"`
	ReportsSubmitted   int                            `json:"reports_submitted"`
	Consensus          map[models.VoteOption]int      `json:"consensus"`
	Restrictions       int                            `json:"restrictions"`
	BySeverity         map[models.Severity]int        `json:"cases_by_severity"`
	FalsePositiveRate  float64                        `json:"false_positive_rate"`
	FalseNegativeRate  float64                        `json:"false_negative_rate"`
	LastEventAt        time.Time                      `json:"last_event_at"`
	Events             map[models.MetricEventType]int `json:"events"`
}

// Aggregator folds metric events into counters. Safe for concurrent use.
type Aggregator struct {
	mu sync.Mutex
	s  Snapshot
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	a := &Aggregator{}
	a.reset()
	return a
}

func (a *Aggregator) reset() {
	a.s = Snapshot{
		Verdicts:   make(map[models.Verdict]int),
		Consensus:  make(map[models.VoteOption]int),
		BySeverity: make(map[models.Severity]int),
		Events:     make(map[models.MetricEventType]int),
	}
}

// Consume folds one event in and refreshes the accuracy gauges.
func (a *Aggregator) Consume(_ context.Context, e *models.MetricEvent) error {
	if e == nil || e.Type == "" {
		return fmt.Errorf("analytics: event without type")
	}

	a.mu.Lock()
	a.apply(e)
	fp, fn := a.s.FalsePositiveRate, a.s.FalseNegativeRate
	a.mu.Unlock()

	metrics.SetAccuracyRates(fp, fn)
	return nil
}

// apply updates counters. Caller holds mu.
func (a *Aggregator) apply(e *models.MetricEvent) {
	s := &a.s
	s.Events[e.Type]++
	if e.OccurredAt.After(s.LastEventAt) {
		s.LastEventAt = e.OccurredAt
	}

	switch e.Type {
	case models.MetricDetectionEvaluated:
		s.Detections++
		if e.Flagged {
			s.Flagged++
		}
	case models.MetricCaseOpened:
		s.CasesOpened++
		if e.Severity != "" {
			s.BySeverity[e.Severity]++
		}
	case models.MetricCaseCompleted:
		s.CasesCompleted++
		s.Verdicts[e.Verdict]++
		if e.Verdict == models.VerdictConfirmedCheat {
			s.ConfirmedCheats++
			if e.Source == models.SourceCommunity {
				s.CommunityConfirmed++
			}
		}
	case models.MetricAppealResolved:
		s.AppealsResolved++
		switch e.AppealOutcome {
		case models.AppealOutcomeApproved:
			s.AppealsApproved++
		case models.AppealOutcomeModified:
			s.AppealsModified++
		}
	case models.MetricFeedbackSignal:
		s.FeedbackSignals++
		if e.FalsePositive {
			s.FalsePositives++
		}
	case models.MetricReportSubmitted:
		s.ReportsSubmitted++
	case models.MetricReportConsensus:
		s.Consensus[e.Consensus]++
	case models.MetricRestrictionApplied:
		s.Restrictions++
	}

	s.FalsePositiveRate = ratio(s.Verdicts[models.VerdictLegitimate]+s.AppealsApproved, s.CasesCompleted)
	s.FalseNegativeRate = ratio(s.CommunityConfirmed, s.ConfirmedCheats)
}

// Snapshot returns a copy of the current counters and pushes the rates to
// the gauges.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	out := a.s
	out.Verdicts = copyMap(a.s.Verdicts)
	out.Consensus = copyMap(a.s.Consensus)
	out.BySeverity = copyMap(a.s.BySeverity)
	out.Events = copyMap(a.s.Events)
	a.mu.Unlock()

	metrics.SetAccuracyRates(out.FalsePositiveRate, out.FalseNegativeRate)
	return out
}

// Replay rebuilds the counters from persisted events at or after since.
func (a *Aggregator) Replay(ctx context.Context, src EventSource, since time.Time) (int, error) {
	events, err := src.ListMetricEvents(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("list metric events: %w", err)
	}

	a.mu.Lock()
	a.reset()
	for _, e := range events {
		if e == nil || e.Type == "" {
			continue
		}
		a.apply(e)
	}
	fp, fn := a.s.FalsePositiveRate, a.s.FalseNegativeRate
	a.mu.Unlock()

	metrics.SetAccuracyRates(fp, fn)
	logging.Ctx(ctx).Info().
		Int("events", len(events)).
		Time("since", since).
		Float64("false_positive_rate", fp).
		Float64("false_negative_rate", fn).
		Msg("Analytics replayed from event log")
	return len(events), nil
}

// ratio returns num/den capped at 1, or 0 for an empty denominator.
func ratio(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	r := float64(num) / float64(den)
	if r > 1 {
		return 1
	}
	return r
}

func copyMap[K comparable](m map[K]int) map[K]int {
	out := make(map[K]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
