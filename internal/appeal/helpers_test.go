// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package appeal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/fairplay/internal/config"
	"github.com/tomtom215/fairplay/internal/models"
	"github.com/tomtom215/fairplay/internal/store"
)

var baseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

const (
	caseReasoning   = "Input timing across the whole solve sits far below human reaction time."
	appealReason    = "I was solving on a new keyboard with macros disabled and can show the recording of the full session."
	reviewReasoning = "Recording checks out and matches the submitted move log."
)

type mockPenalties struct {
	cmds []models.PenaltyCommand
}

func (m *mockPenalties) Execute(_ context.Context, cmd models.PenaltyCommand) error {
	m.cmds = append(m.cmds, cmd)
	return nil
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
		now:    baseTime.Add(time.Hour),
	}
	f.m = NewManager(f.store, f.store, f.store, config.Default().Appeals, Options{
		Penalties: f.pen,
		Notifier:  f.notes,
		Feedback:  f.fb,
		Events:    f.events,
	})
	f.m.SetClock(func() time.Time { return f.now })

	for _, r := range []*models.Reviewer{
		{ID: "r-orig", Name: "Original", Role: models.RoleReviewer, Tier: models.TierSecondary, Active: true},
		{ID: "r2", Name: "Second", Role: models.RoleReviewer, Tier: models.TierSecondary, Active: true},
		{ID: "r3", Name: "Third", Role: models.RoleReviewer, Tier: models.TierExpert, Active: true},
	} {
		if err := f.store.SaveReviewer(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

// seedCase stores a completed case decided by r-orig at baseTime.
func (f *fixture) seedCase(t *testing.T, id string, verdict models.Verdict, mutate ...func(*models.ReviewCase)) *models.ReviewCase {
	t.Helper()
	days := 14
	d := models.ReviewDecision{
		Verdict:    verdict,
		Confidence: 0.9,
		Reasoning:  caseReasoning,
		BanDays:    &days,
	}
	resolved := baseTime
	c := &models.ReviewCase{
		ID:        id,
		UserID:    "u1",
		SessionID: "session-" + id,
		PuzzleID:  "p1",
		Detection: models.DetectionResult{
			ID:         "det-" + id,
			UserID:     "u1",
			SessionID:  "session-" + id,
			PuzzleID:   "p1",
			Flags:      models.NewFlags(models.FlagTimingAnomaly, models.FlagNoCorrections),
			Severity:   models.SeverityMedium,
			Confidence: 0.8,
			Source:     models.SourceAutomated,
		},
		Status:   models.CaseStatusCompleted,
		Priority: models.PriorityMedium,
		Workflow: models.Workflow{Steps: []models.WorkflowStep{{Name: models.StepInitialReview, Tier: models.TierInitial}}, Cursor: 1},
		ReviewHistory: []models.ReviewRecord{{
			ReviewerID:  "r-orig",
			Tier:        models.TierInitial,
			Round:       1,
			Decision:    d,
			StartedAt:   baseTime.Add(-30 * time.Minute),
			SubmittedAt: baseTime.Add(-20 * time.Minute),
		}},
		FinalDecision: &d,
		Source:        models.SourceAutomated,
		ResolvedAt:    &resolved,
		CreatedAt:     baseTime.Add(-24 * time.Hour),
		UpdatedAt:     baseTime,
	}
	if verdict == models.VerdictConfirmedCheat {
		deadline := baseTime.Add(7 * 24 * time.Hour)
		c.AppealDeadline = &deadline
	}
	for _, fn := range mutate {
		fn(c)
	}
	if err := f.store.CreateCase(context.Background(), c); err != nil {
		t.Fatalf("CreateCase(%s) error = %v", id, err)
	}
	return c
}

func request(caseID string, t models.EvidenceType, conf float64, attachments int) SubmitRequest {
	req := SubmitRequest{
		CaseID: caseID,
		UserID: "u1",
		Reason: appealReason,
		Evidence: models.AppealEvidence{
			Type:        t,
			Description: "Screen recording of the session and keyboard settings.",
			Confidence:  conf,
		},
	}
	for i := 0; i < attachments; i++ {
		req.Evidence.Attachments = append(req.Evidence.Attachments, "https://files.example.com/a"+string(rune('0'+i)))
	}
	return req
}

func (f *fixture) submit(t *testing.T, req SubmitRequest) *models.Appeal {
	t.Helper()
	a, err := f.m.SubmitAppeal(context.Background(), req)
	if err != nil {
		t.Fatalf("SubmitAppeal() error = %v", err)
	}
	return a
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
