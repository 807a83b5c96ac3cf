// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package services

import (
	"context"
	"time"

	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/metrics"
)

// TimeoutChecker escalates cases that exceeded their review deadline and
// returns how many were escalated.
type TimeoutChecker interface {
	CheckTimeouts(ctx context.Context, now time.Time) (int, error)
}

// SweeperService runs the review timeout sweep on a fixed interval.
// A failed sweep is logged and retried on the next tick rather than
// returned, so one bad row does not restart the worker layer.
type SweeperService struct {
	checker  TimeoutChecker
	interval time.Duration
	now      func() time.Time
}

// NewSweeperService creates a sweeper.
func NewSweeperService(checker TimeoutChecker, interval time.Duration) *SweeperService {
	return &SweeperService{checker: checker, interval: interval, now: time.Now}
}

// Serve implements suture.Service.
func (s *SweeperService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", s.interval).Msg("Review timeout sweeper started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SweeperService) sweep(ctx context.Context) {
	escalated, err := s.checker.CheckTimeouts(ctx, s.now())
	metrics.RecordSweep(escalated, err)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Review timeout sweep failed")
		return
	}
	if escalated > 0 {
		logging.Ctx(ctx).Info().Int("escalated", escalated).Msg("Escalated overdue review cases")
	}
}

// String implements fmt.Stringer for suture logging.
func (s *SweeperService) String() string {
	return "review-timeout-sweeper"
}
