// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package community

import (
	"context"
	"fmt"
)

// Reputation scoring from report history.
const (
	baseReputation    = 50.0
	upheldBonus       = 5.0
	dismissedPenalty  = 10.0
	minAbuseSample    = 3
	trustedReputation = 75.0
)

// HistoryReputation derives standing from how a reporter's earlier reports
// were closed. Upheld reports earn reputation, dismissed ones cost twice
// as much. The abuse score is the dismissed share once enough reports exist.
type HistoryReputation struct {
	history HistorySource
}

// NewHistoryReputation creates a history-backed reputation source.
func NewHistoryReputation(history HistorySource) *HistoryReputation {
	return &HistoryReputation{history: history}
}

// Standing implements ReputationSource.
func (h *HistoryReputation) Standing(ctx context.Context, userID string) (Standing, error) {
	st, err := h.history.ReporterStats(ctx, userID)
	if err != nil {
		return Standing{}, fmt.Errorf("reporter stats: %w", err)
	}
	s := Standing{
		Reputation: baseReputation + upheldBonus*float64(st.Upheld) - dismissedPenalty*float64(st.Dismissed),
	}
	if s.Reputation < 0 {
		s.Reputation = 0
	}
	if st.Total >= minAbuseSample {
		s.AbuseScore = float64(st.Dismissed) / float64(st.Total)
	}
	return s, nil
}
