// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package audit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/fairplay/internal/config"
	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/metrics"
	"github.com/tomtom215/fairplay/internal/models"
)

// Logger buffers audit events and writes them to a Store from Serve.
type Logger struct {
	cfg    config.AuditConfig
	store  Store
	events chan *Event
	now    func() time.Time
}

// NewLogger creates a logger writing to store.
func NewLogger(store Store, cfg config.AuditConfig) *Logger {
	size := cfg.BufferSize
	if size <= 0 {
		size = 1000
	}
	return &Logger{
		cfg:    cfg,
		store:  store,
		events: make(chan *Event, size),
		now:    time.Now,
	}
}

// Log queues event. It never blocks; a full buffer drops the event.
func (l *Logger) Log(event *Event) {
	if !l.cfg.Enabled || event == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}

	select {
	case l.events <- event:
	default:
		metrics.RecordAuditEvent(string(event.Type), "dropped")
		logging.Warn().Str("event_id", event.ID).Str("type", string(event.Type)).Msg("Audit buffer full, dropping event")
	}
}

// Serve writes queued events until ctx is canceled, then drains what is
// left. It also applies retention on CleanupInterval.
func (l *Logger) Serve(ctx context.Context) error {
	interval := l.cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.drain()
			return ctx.Err()
		case e := <-l.events:
			l.write(context.Background(), e)
		case <-ticker.C:
			l.cleanup(ctx)
		}
	}
}

// String names the service for the supervisor.
func (l *Logger) String() string {
	return "audit-logger"
}

// Query returns stored events matching filter.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	events, err := l.store.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return events, nil
}

func (l *Logger) drain() {
	for {
		select {
		case e := <-l.events:
			l.write(context.Background(), e)
		default:
			return
		}
	}
}

func (l *Logger) write(ctx context.Context, e *Event) {
	if l.cfg.LogToStdout {
		if data, err := json.Marshal(e); err == nil {
			logging.Info().RawJSON("audit", data).Msg("Audit event")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := l.store.Save(ctx, e); err != nil {
		metrics.RecordAuditEvent(string(e.Type), "error")
		logging.Error().Err(err).Str("event_id", e.ID).Msg("Failed to save audit event")
		return
	}
	metrics.RecordAuditEvent(string(e.Type), "recorded")
}

func (l *Logger) cleanup(ctx context.Context) {
	if l.cfg.Retention <= 0 {
		return
	}
	removed, err := l.store.Delete(ctx, l.now().Add(-l.cfg.Retention))
	if err != nil {
		logging.Error().Err(err).Msg("Audit retention cleanup failed")
		return
	}
	if removed > 0 {
		logging.Info().Int64("removed", removed).Msg("Audit retention cleanup")
	}
}

// RecordAuthFailure records a rejected authentication attempt. Missing
// credentials are informational; bad credentials are a warning.
func (l *Logger) RecordAuthFailure(r *http.Request, reason string, invalidCredentials bool) {
	severity := SeverityInfo
	if invalidCredentials {
		severity = SeverityWarning
	}
	l.Log(l.requestEvent(r, &Event{
		Type:        EventTypeAuthFailure,
		Severity:    severity,
		Outcome:     OutcomeFailure,
		Action:      r.Method + " " + r.URL.Path,
		Description: reason,
	}))
}

// RecordAuthzDenied records a request refused by the policy.
func (l *Logger) RecordAuthzDenied(r *http.Request, subjectID string, roles []string, object, action string) {
	l.Log(l.requestEvent(r, &Event{
		Type:        EventTypeAuthzDenied,
		Severity:    SeverityWarning,
		Outcome:     OutcomeFailure,
		Actor:       Actor{ID: subjectID, Roles: roles},
		Target:      &Target{ID: object, Type: "permission"},
		Action:      action,
		Description: fmt.Sprintf("%s denied %s on %s", strings.Join(roles, ","), action, object),
	}))
}

// RecordStaffChange records a create or update in the staff directory.
func (l *Logger) RecordStaffChange(r *http.Request, actorID string, actorRoles []string, staff *models.Reviewer) {
	l.Log(l.requestEvent(r, &Event{
		Type:        EventTypeStaffUpdated,
		Severity:    SeverityCritical,
		Outcome:     OutcomeSuccess,
		Actor:       Actor{ID: actorID, Roles: actorRoles},
		Target:      &Target{ID: staff.ID, Type: "staff"},
		Action:      "upsert",
		Description: fmt.Sprintf("role=%s tier=%s active=%t", staff.Role, staff.Tier, staff.Active),
	}))
}

func (l *Logger) requestEvent(r *http.Request, e *Event) *Event {
	e.Source = SourceFromRequest(r)
	e.RequestID = logging.RequestIDFromContext(r.Context())
	e.CorrelationID = logging.CorrelationIDFromContext(r.Context())
	return e
}

// SourceFromRequest extracts the client address. RemoteAddr is expected
// to have been rewritten by a real-IP middleware already.
func SourceFromRequest(r *http.Request) Source {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return Source{IPAddress: ip, UserAgent: r.UserAgent()}
}
