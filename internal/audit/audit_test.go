// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/fairplay/internal/config"
	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/models"
)

func testConfig() config.AuditConfig {
	return config.AuditConfig{
		Enabled:         true,
		BufferSize:      16,
		MaxEvents:       100,
		Retention:       time.Hour,
		CleanupInterval: time.Hour,
	}
}

// runLogger starts Serve and returns a stop function that waits for the
// drain to finish.
func runLogger(t *testing.T, l *Logger) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx) }()
	return func() {
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	}
}

func TestLoggerRecordsRequestEvents(t *testing.T) {
	store := NewMemoryStore(100)
	l := NewLogger(store, testConfig())
	stop := runLogger(t, l)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/staff/r2", nil)
	req.RemoteAddr = "203.0.113.9:51000"
	req.Header.Set("User-Agent", "fairplay-test")
	req = req.WithContext(logging.ContextWithRequestID(req.Context(), "req-1"))

	l.RecordAuthFailure(req, "no credentials provided", false)
	l.RecordAuthzDenied(req, "r1", []string{"reviewer"}, "staff", "write")
	l.RecordStaffChange(req, "boss", []string{"admin"}, &models.Reviewer{
		ID: "r2", Role: models.StaffRole("reviewer"), Tier: models.ReviewTier("initial"), Active: true,
	})
	stop()

	events, err := l.Query(context.Background(), QueryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	staff := events[0]
	if staff.Type != EventTypeStaffUpdated || staff.Target == nil || staff.Target.ID != "r2" {
		t.Errorf("newest event = %+v, want staff update for r2", staff)
	}
	if staff.Source.IPAddress != "203.0.113.9" || staff.Source.UserAgent != "fairplay-test" {
		t.Errorf("source = %+v", staff.Source)
	}
	if staff.RequestID != "req-1" || staff.ID == "" || staff.Timestamp.IsZero() {
		t.Errorf("event metadata missing: %+v", staff)
	}

	denied := events[1]
	if denied.Actor.ID != "r1" || denied.Severity != SeverityWarning || denied.Action != "write" {
		t.Errorf("denial = %+v", denied)
	}
	if events[2].Severity != SeverityInfo || events[2].Outcome != OutcomeFailure {
		t.Errorf("auth failure = %+v", events[2])
	}
}

func TestLoggerDisabled(t *testing.T) {
	store := NewMemoryStore(10)
	cfg := testConfig()
	cfg.Enabled = false
	l := NewLogger(store, cfg)
	stop := runLogger(t, l)
	l.Log(&Event{Type: EventTypeAuthFailure})
	stop()

	if store.Len() != 0 {
		t.Errorf("disabled logger stored %d events", store.Len())
	}
}

func TestLoggerDropsWhenBufferFull(t *testing.T) {
	store := NewMemoryStore(10)
	cfg := testConfig()
	cfg.BufferSize = 2
	l := NewLogger(store, cfg)

	for i := 0; i < 5; i++ {
		l.Log(&Event{Type: EventTypeAuthFailure})
	}
	runLogger(t, l)()

	if store.Len() != 2 {
		t.Errorf("stored %d events, want the 2 that fit the buffer", store.Len())
	}
}

func TestLoggerRetention(t *testing.T) {
	store := NewMemoryStore(10)
	l := NewLogger(store, testConfig())
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ctx := context.Background()
	_ = store.Save(ctx, &Event{ID: "old", Timestamp: now.Add(-2 * time.Hour)})
	_ = store.Save(ctx, &Event{ID: "new", Timestamp: now.Add(-time.Minute)})

	l.cleanup(ctx)
	events, _ := store.Query(ctx, QueryFilter{})
	if len(events) != 1 || events[0].ID != "new" {
		t.Errorf("events after cleanup = %+v", events)
	}
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(100)
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, e := range []Event{
		{ID: "e1", Type: EventTypeAuthFailure},
		{ID: "e2", Type: EventTypeAuthzDenied, Actor: Actor{ID: "r1"}},
		{ID: "e3", Type: EventTypeStaffUpdated, Actor: Actor{ID: "boss"}, Target: &Target{ID: "r1", Type: "staff"}},
		{ID: "e4", Type: EventTypeAuthzDenied, Actor: Actor{ID: "r1"}},
	} {
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		_ = s.Save(ctx, &e)
	}
	since := base.Add(2 * time.Minute)

	tests := []struct {
		name   string
		filter QueryFilter
		want   []string
	}{
		{"all newest first", QueryFilter{}, []string{"e4", "e3", "e2", "e1"}},
		{"by type", QueryFilter{Types: []EventType{EventTypeAuthzDenied}}, []string{"e4", "e2"}},
		{"by actor", QueryFilter{ActorID: "boss"}, []string{"e3"}},
		{"by target", QueryFilter{TargetID: "r1"}, []string{"e3"}},
		{"since", QueryFilter{Since: &since}, []string{"e4", "e3"}},
		{"paged", QueryFilter{Limit: 2, Offset: 1}, []string{"e3", "e2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("event %d = %s, want %s", i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}

func TestMemoryStoreBounded(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)
	for i := 0; i < 25; i++ {
		_ = s.Save(ctx, &Event{ID: string(rune('a' + i))})
	}
	if s.Len() > 10 {
		t.Errorf("Len() = %d exceeds bound", s.Len())
	}
	events, _ := s.Query(ctx, QueryFilter{Limit: 1})
	if events[0].ID != string(rune('a'+24)) {
		t.Errorf("newest = %s, want the last saved event", events[0].ID)
	}
}
