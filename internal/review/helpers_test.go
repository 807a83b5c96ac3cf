// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package review

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/fairplay/internal/config"
	"github.com/tomtom215/fairplay/internal/models"
	"github.com/tomtom215/fairplay/internal/store"
)

var baseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

const longReasoning = "Replay shows input timing no human produces over a full solve."

type mockPenalties struct {
	cmds []models.PenaltyCommand
	err  error
}

func (m *mockPenalties) Execute(_ context.Context, cmd models.PenaltyCommand) error {
	m.cmds = append(m.cmds, cmd)
	return m.err
}

func (m *mockPenalties) actions() []models.Action {
	out := make([]models.Action, 0, len(m.cmds))
	for _, c := range m.cmds {
		out = append(out, c.Action)
	}
	return out
}

type mockNotifier struct {
	sent []*models.Notification
}

func (m *mockNotifier) Notify(_ context.Context, n *models.Notification) error {
	m.sent = append(m.sent, n)
	return nil
}

func (m *mockNotifier) count(kind models.NotificationKind, recipient string) int {
	n := 0
	for _, s := range m.sent {
		if s.Kind == kind && s.RecipientID == recipient {
			n++
		}
	}
	return n
}

type mockFeedback struct {
	signals []*models.FeedbackSignal
}

func (m *mockFeedback) RecordFeedback(_ context.Context, s *models.FeedbackSignal) error {
	m.signals = append(m.signals, s)
	return nil
}

type mockEvents struct {
	events []*models.MetricEvent
}

func (m *mockEvents) Publish(_ context.Context, e *models.MetricEvent) error {
	m.events = append(m.events, e)
	return nil
}

func (m *mockEvents) count(t models.MetricEventType) int {
	n := 0
	for _, e := range m.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type fixture struct {
	m      *Manager
	store  *store.MemoryStore
	pen    *mockPenalties
	notes  *mockNotifier
	fb     *mockFeedback
	events *mockEvents
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  store.NewMemoryStore(),
		pen:    &mockPenalties{},
		notes:  &mockNotifier{},
		fb:     &mockFeedback{},
		events: &mockEvents{},
		now:    baseTime,
	}
	f.m = NewManager(f.store, f.store, config.Default().Review, Options{
		Penalties: f.pen,
		Notifier:  f.notes,
		Feedback:  f.fb,
		Events:    f.events,
	})
	f.m.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) addReviewer(t *testing.T, id string, tier models.ReviewTier) {
	t.Helper()
	f.saveReviewer(t, &models.Reviewer{ID: id, Name: id, Role: models.RoleReviewer, Tier: tier, Active: true})
}

func (f *fixture) saveReviewer(t *testing.T, r *models.Reviewer) {
	t.Helper()
	if err := f.store.SaveReviewer(context.Background(), r); err != nil {
		t.Fatalf("SaveReviewer(%s) error = %v", r.ID, err)
	}
}

func (f *fixture) open(t *testing.T, d *models.DetectionResult) *models.ReviewCase {
	t.Helper()
	c, err := f.m.CreateCase(context.Background(), d, nil)
	if err != nil {
		t.Fatalf("CreateCase() error = %v", err)
	}
	return c
}

// review runs assign, start and submit for one reviewer.
func (f *fixture) review(t *testing.T, caseID, reviewerID string, d models.ReviewDecision) *models.ReviewCase {
	t.Helper()
	ctx := context.Background()
	if _, err := f.m.AssignReviewer(ctx, caseID, reviewerID, "lead"); err != nil {
		t.Fatalf("AssignReviewer(%s) error = %v", reviewerID, err)
	}
	if _, err := f.m.StartReview(ctx, caseID, reviewerID); err != nil {
		t.Fatalf("StartReview(%s) error = %v", reviewerID, err)
	}
	c, err := f.m.SubmitReview(ctx, caseID, reviewerID, d)
	if err != nil {
		t.Fatalf("SubmitReview(%s) error = %v", reviewerID, err)
	}
	return c
}

func detection(session string, sev models.Severity, conf float64, flags ...models.Flag) *models.DetectionResult {
	return &models.DetectionResult{
		ID:          "det-" + session,
		UserID:      "u1",
		PuzzleID:    "p1",
		SessionID:   session,
		Flags:       models.NewFlags(flags...),
		Severity:    sev,
		Confidence:  conf,
		Source:      models.SourceAutomated,
		EvaluatedAt: baseTime,
	}
}

func decision(v models.Verdict, conf float64) models.ReviewDecision {
	return models.ReviewDecision{Verdict: v, Confidence: conf, Reasoning: longReasoning}
}

func assertReason(t *testing.T, err error, sentinel error, reason string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", reason)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("error = %v, want kind %v", err, sentinel)
	}
	if got := models.ReasonOf(err); got != reason {
		t.Fatalf("reason = %q, want %q", got, reason)
	}
}

func containsString(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
