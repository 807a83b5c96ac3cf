// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package community

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

type mockPenalties struct {
	cmds []models.PenaltyCommand
}

func (m *mockPenalties) Execute(_ context.Context, cmd models.PenaltyCommand) error {
	m.cmds = append(m.cmds, cmd)
	return nil
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

type mockOpener struct {
	opened []*models.CommunityReport
	err    error
}

func (m *mockOpener) OpenFromReport(_ context.Context, r *models.CommunityReport) (*models.ReviewCase, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.opened = append(m.opened, r.Clone())
	return &models.ReviewCase{ID: "case-" + r.ID, UserID: r.ReportedUserID}, nil
}

type stubReputation struct {
	standings map[string]Standing
	err       error
}

func (s *stubReputation) Standing(_ context.Context, userID string) (Standing, error) {
	if s.err != nil {
		return Standing{}, s.err
	}
	if st, ok := s.standings[userID]; ok {
		return st, nil
	}
	return Standing{Reputation: 50}, nil
}

type fixture struct {
	m      *Manager
	store  *store.MemoryStore
	pen    *mockPenalties
	notes  *mockNotifier
	events *mockEvents
	opener *mockOpener
	rep    *stubReputation
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  store.NewMemoryStore(),
		pen:    &mockPenalties{},
		notes:  &mockNotifier{},
		events: &mockEvents{},
		opener: &mockOpener{},
		rep:    &stubReputation{standings: map[string]Standing{}},
		now:    baseTime,
	}
	f.m = NewManager(f.store, f.store, config.Default().Community, Options{
		Reputation: f.rep,
		Opener:     f.opener,
		Penalties:  f.pen,
		Notifier:   f.notes,
		Events:     f.events,
	})
	f.m.SetClock(func() time.Time { return f.now })

	for _, r := range []*models.Reviewer{
		{ID: "m1", Name: "Mod One", Role: models.RoleModerator, Tier: models.TierInitial, Specializations: []string{"harassment"}, Active: true},
		{ID: "m2", Name: "Mod Two", Role: models.RoleModerator, Tier: models.TierSecondary, Specializations: []string{"automation"}, Active: true},
		{ID: "r1", Name: "Reviewer", Role: models.RoleReviewer, Tier: models.TierExpert, Active: true},
	} {
		if err := f.store.SaveReviewer(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func request(reporter, reported, session string, typ models.ReportType) SubmitRequest {
	return SubmitRequest{
		ReporterID:     reporter,
		ReportedUserID: reported,
		SessionID:      session,
		PuzzleID:       "p1",
		Type:           typ,
		Description:    "Solved an expert grid in four seconds flat.",
	}
}

func (f *fixture) submit(t *testing.T, req SubmitRequest) *models.CommunityReport {
	t.Helper()
	r, err := f.m.SubmitReport(context.Background(), req)
	if err != nil {
		t.Fatalf("SubmitReport() error = %v", err)
	}
	return r
}

// vote casts options from voters v1, v2, ... in order.
func (f *fixture) vote(t *testing.T, reportID string, options ...models.VoteOption) *models.CommunityReport {
	t.Helper()
	var r *models.CommunityReport
	for i, opt := range options {
		var err error
		r, err = f.m.VoteOnReport(context.Background(), reportID, "v"+string(rune('1'+i)), opt)
		if err != nil {
			t.Fatalf("VoteOnReport(%d) error = %v", i, err)
		}
	}
	return r
}

func (f *fixture) actions() []models.Action {
	out := make([]models.Action, 0, len(f.pen.cmds))
	for _, c := range f.pen.cmds {
		out = append(out, c.Action)
	}
	return out
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
