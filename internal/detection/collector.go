// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package detection

import (
	"time"

	"github.com/tomtom215/fairplay/internal/models"
	"github.com/tomtom215/fairplay/internal/validation"
)

// Submission is the raw telemetry a client sends with a solved puzzle.
type Submission struct {
	UserID       string              `json:"user_id" validate:"required,entityid"`
	SessionID    string              `json:"session_id" validate:"required,entityid"`
	PuzzleID     string              `json:"puzzle_id" validate:"required,entityid"`
	PuzzleType   string              `json:"puzzle_type" validate:"required,max=64"`
	Moves        []models.Move       `json:"moves" validate:"max=20000,dive"`
	OptimalMoves int                 `json:"optimal_moves,omitempty" validate:"gte=0"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      time.Time           `json:"end_time"`
	Device       *models.DeviceInfo  `json:"device,omitempty"`
	Browser      *models.BrowserInfo `json:"browser,omitempty"`
}

// Collector assembles submissions into immutable evidence bundles.
type Collector struct {
	now func() time.Time
}

// NewCollector creates a collector using the wall clock.
func NewCollector() *Collector {
	return &Collector{now: time.Now}
}

// SetClock overrides the clock used for CollectedAt.
func (c *Collector) SetClock(now func() time.Time) {
	c.now = now
}

// Collect validates a submission and returns a bundle that shares no memory
// with it. Inter-move timing deltas are derived from move timestamps; an
// out-of-order timestamp yields a zero delta rather than a negative one.
func (c *Collector) Collect(sub *Submission) (*models.EvidenceBundle, error) {
	if sub == nil {
		return nil, models.NewValidationFailure(models.ReasonInvalidEvidence, "submission is required")
	}
	if err := validation.ValidateDomain(sub, models.ReasonInvalidEvidence); err != nil {
		return nil, err
	}
	if !sub.StartTime.IsZero() && !sub.EndTime.IsZero() && sub.EndTime.Before(sub.StartTime) {
		return nil, models.NewValidationFailure(models.ReasonInvalidEvidence, "end_time precedes start_time")
	}

	bundle := &models.EvidenceBundle{
		UserID:       sub.UserID,
		SessionID:    sub.SessionID,
		PuzzleID:     sub.PuzzleID,
		PuzzleType:   sub.PuzzleType,
		Moves:        append([]models.Move(nil), sub.Moves...),
		OptimalMoves: sub.OptimalMoves,
		StartTime:    sub.StartTime.UTC(),
		EndTime:      sub.EndTime.UTC(),
		CollectedAt:  c.now().UTC(),
	}
	if sub.Device != nil {
		d := *sub.Device
		bundle.Device = &d
	}
	if sub.Browser != nil {
		b := *sub.Browser
		bundle.Browser = &b
	}

	bundle.TimingDeltasMS = timingDeltas(bundle.Moves)
	bundle.SolutionTimeMS = solutionTime(bundle)

	return bundle, nil
}

func timingDeltas(moves []models.Move) []float64 {
	if len(moves) < 2 {
		return nil
	}
	deltas := make([]float64, 0, len(moves)-1)
	for i := 1; i < len(moves); i++ {
		d := moves[i].Timestamp.Sub(moves[i-1].Timestamp)
		if d < 0 {
			d = 0
		}
		deltas = append(deltas, float64(d)/float64(time.Millisecond))
	}
	return deltas
}

func solutionTime(b *models.EvidenceBundle) int64 {
	if !b.StartTime.IsZero() && !b.EndTime.IsZero() {
		return b.EndTime.Sub(b.StartTime).Milliseconds()
	}
	if len(b.Moves) >= 2 {
		return b.Moves[len(b.Moves)-1].Timestamp.Sub(b.Moves[0].Timestamp).Milliseconds()
	}
	return 0
}
