// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/fairplay/internal/analytics"
	"github.com/tomtom215/fairplay/internal/models"
	"github.com/tomtom215/fairplay/internal/store"
)

var baseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type recordingConsumer struct {
	ch chan *models.MetricEvent
}

func newRecordingConsumer() *recordingConsumer {
	return &recordingConsumer{ch: make(chan *models.MetricEvent, 16)}
}

func (c *recordingConsumer) Consume(_ context.Context, e *models.MetricEvent) error {
	c.ch <- e
	return nil
}

type failingConsumer struct{}

func (failingConsumer) Consume(context.Context, *models.MetricEvent) error {
	return errors.New("consumer down")
}

// flakyLog fails appends for poisoned users and for the first failFirst calls.
type flakyLog struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	duplicate string
	events    []*models.MetricEvent
}

func (l *flakyLog) AppendMetricEvent(_ context.Context, e *models.MetricEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if e.UserID == "poison" {
		return errors.New("constraint violation")
	}
	if e.ID == l.duplicate {
		return store.ErrDuplicate
	}
	if l.calls <= l.failFirst {
		return errors.New("database is locked")
	}
	l.events = append(l.events, e)
	return nil
}

func (l *flakyLog) ListMetricEvents(_ context.Context, since time.Time) ([]*models.MetricEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.MetricEvent
	for _, e := range l.events {
		if !e.OccurredAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CloseTimeout = time.Second
	cfg.RetryInitialInterval = time.Millisecond
	cfg.RetryMaxInterval = 5 * time.Millisecond
	return cfg
}

func startBus(t *testing.T, log store.EventLog, consumers ...Consumer) *Bus {
	t.Helper()
	b := NewBus(testConfig(), log, consumers...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx) }()

	select {
	case <-b.Running():
	case err := <-done:
		t.Fatalf("Serve() returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("router did not stop")
		}
		_ = b.Close()
	})
	return b
}

func receive(t *testing.T, c *recordingConsumer) *models.MetricEvent {
	t.Helper()
	select {
	case e := <-c.ch:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBusPersistsAndFansOut(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	rec := newRecordingConsumer()
	agg := analytics.NewAggregator()
	b := startBus(t, mem, failingConsumer{}, agg, rec)

	e := &models.MetricEvent{
		Type:       models.MetricCaseCompleted,
		CaseID:     "c1",
		Verdict:    models.VerdictLegitimate,
		OccurredAt: baseTime,
	}
	if err := b.Publish(ctx, e); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if e.ID == "" {
		t.Error("Publish() did not assign an ID")
	}

	got := receive(t, rec)
	if got.ID != e.ID || got.CaseID != "c1" || got.Verdict != models.VerdictLegitimate {
		t.Errorf("received %+v", got)
	}
	if !got.OccurredAt.Equal(baseTime) {
		t.Errorf("OccurredAt = %v, want %v", got.OccurredAt, baseTime)
	}

	stored, err := mem.ListMetricEvents(ctx, baseTime.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].ID != e.ID {
		t.Errorf("event log = %d events", len(stored))
	}
	// Consumers run in order, so the aggregator saw it before rec.
	if s := agg.Snapshot(); s.CasesCompleted != 1 || s.FalsePositiveRate != 1 {
		t.Errorf("aggregator = %+v", s)
	}
}

func TestBusRetriesAppend(t *testing.T) {
	log := &flakyLog{failFirst: 2}
	rec := newRecordingConsumer()
	b := startBus(t, log, rec)

	if err := b.Publish(context.Background(), &models.MetricEvent{Type: models.MetricReportSubmitted, OccurredAt: baseTime}); err != nil {
		t.Fatal(err)
	}
	receive(t, rec)

	select {
	case e := <-rec.ch:
		t.Errorf("event delivered twice: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	if log.calls != 3 || len(log.events) != 1 {
		t.Errorf("calls = %d persisted = %d, want 3 and 1", log.calls, len(log.events))
	}
}

func TestBusPoisonDoesNotBlock(t *testing.T) {
	log := &flakyLog{}
	rec := newRecordingConsumer()
	b := startBus(t, log, rec)
	ctx := context.Background()

	if err := b.Publish(ctx, &models.MetricEvent{Type: models.MetricFeedbackSignal, UserID: "poison"}); err != nil {
		t.Fatal(err)
	}
	if err := b.Publish(ctx, &models.MetricEvent{Type: models.MetricFeedbackSignal, UserID: "u1"}); err != nil {
		t.Fatal(err)
	}

	got := receive(t, rec)
	if got.UserID != "u1" {
		t.Errorf("received %q, want u1", got.UserID)
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.events) != 1 {
		t.Errorf("persisted = %d, want 1", len(log.events))
	}
}

func TestBusSkipsDuplicates(t *testing.T) {
	log := &flakyLog{duplicate: "evt-dup"}
	rec := newRecordingConsumer()
	b := startBus(t, log, rec)
	ctx := context.Background()

	if err := b.Publish(ctx, &models.MetricEvent{ID: "evt-dup", Type: models.MetricCaseOpened}); err != nil {
		t.Fatal(err)
	}
	if err := b.Publish(ctx, &models.MetricEvent{ID: "evt-new", Type: models.MetricCaseOpened}); err != nil {
		t.Fatal(err)
	}
	if got := receive(t, rec); got.ID != "evt-new" {
		t.Errorf("received %q, want evt-new", got.ID)
	}
}

func TestPublishRejectsNil(t *testing.T) {
	b := NewBus(testConfig(), nil)
	defer b.Close()
	if err := b.Publish(context.Background(), nil); err == nil {
		t.Error("expected error for nil event")
	}
}
