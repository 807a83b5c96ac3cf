// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package detection

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fairplay/internal/models"
)

var testStart = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// placeMoves returns n "place" moves with distinct values spaced by the
// given intervals (cycled).
func placeMoves(n int, intervals ...time.Duration) []models.Move {
	moves := make([]models.Move, n)
	ts := testStart
	for i := 0; i < n; i++ {
		if i > 0 {
			ts = ts.Add(intervals[(i-1)%len(intervals)])
		}
		moves[i] = models.Move{
			Type:      "place",
			To:        "c" + strconv.Itoa(i),
			Value:     strconv.Itoa(i),
			Timestamp: ts,
		}
	}
	return moves
}

func bundleFromMoves(moves []models.Move) *models.EvidenceBundle {
	b := &models.EvidenceBundle{
		UserID:     "user-1",
		SessionID:  "sess-1",
		PuzzleID:   "puzzle-1",
		PuzzleType: "sudoku",
		Moves:      moves,
	}
	b.TimingDeltasMS = timingDeltas(moves)
	if len(moves) > 0 {
		b.StartTime = moves[0].Timestamp
		b.EndTime = moves[len(moves)-1].Timestamp
	}
	b.SolutionTimeMS = solutionTime(b)
	return b
}

func botBundle() *models.EvidenceBundle {
	b := bundleFromMoves(placeMoves(30, 50*time.Millisecond))
	b.OptimalMoves = 30
	b.Browser = &models.BrowserInfo{Webdriver: true}
	return b
}

func humanBundle() *models.EvidenceBundle {
	moves := placeMoves(12,
		800*time.Millisecond, 1500*time.Millisecond, 650*time.Millisecond,
		2200*time.Millisecond, 1100*time.Millisecond, 900*time.Millisecond)
	moves[4].Type = models.MoveTypeUndo
	moves[9].Type = models.MoveTypeErase
	b := bundleFromMoves(moves)
	b.OptimalMoves = 8
	return b
}

// mockBaselineSource implements BaselineSource for testing
type mockBaselineSource struct {
	baseline *models.UserBaseline
	err      error
	calls    int
}

func (m *mockBaselineSource) Baseline(_ context.Context, userID, puzzleType string) (*models.UserBaseline, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.baseline, nil
}

// stubAnalyzer implements Analyzer with a canned result.
type stubAnalyzer struct {
	typ     AnalyzerType
	result  *models.AnalysisResult
	err     error
	enabled bool
	calls   int
}

func (s *stubAnalyzer) Type() AnalyzerType { return s.typ }

func (s *stubAnalyzer) Analyze(context.Context, *models.EvidenceBundle) (*models.AnalysisResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.result == nil {
		return nil, nil
	}
	r := *s.result
	return &r, nil
}

func (s *stubAnalyzer) Configure(json.RawMessage) error { return nil }
func (s *stubAnalyzer) Enabled() bool                   { return s.enabled }
func (s *stubAnalyzer) SetEnabled(e bool)               { s.enabled = e }

// mockFeedbackStore implements FeedbackStore for testing
type mockFeedbackStore struct {
	mu      sync.Mutex
	signals []models.FeedbackSignal
	err     error
}

func (m *mockFeedbackStore) SaveFeedback(_ context.Context, f *models.FeedbackSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.signals = append(m.signals, *f)
	return nil
}

// mockSink implements MetricsSink for testing
type mockSink struct {
	mu     sync.Mutex
	events []models.MetricEvent
	err    error
}

func (m *mockSink) Publish(_ context.Context, e *models.MetricEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, *e)
	return nil
}

var errBoom = errors.New("boom")
