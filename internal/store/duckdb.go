// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/metrics"
	"github.com/tomtom215/fairplay/internal/models"
)

// DuckDBStore implements Store on DuckDB.
//
// Queryable attributes live in plain columns; the full entity is kept in a
// VARCHAR payload column as a versioned JSON envelope. The version column is
// authoritative for optimistic concurrency.
type DuckDBStore struct {
	db   *sql.DB
	path string
}

// NewDuckDBStore wraps an open DuckDB handle. Call InitSchema before use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// Ping checks the connection.
func (s *DuckDBStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Checkpoint flushes the write-ahead log into the database file.
func (s *DuckDBStore) Checkpoint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "CHECKPOINT")
	return err
}

// DatabasePath returns the on-disk file backing the store, or "" when unknown.
func (s *DuckDBStore) DatabasePath() string {
	return s.path
}

// Close closes the underlying handle.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}

// InitSchema creates all tables and indexes.
func (s *DuckDBStore) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS detections (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			session_id VARCHAR NOT NULL,
			puzzle_id VARCHAR NOT NULL,
			severity VARCHAR NOT NULL,
			severity_rank INTEGER NOT NULL,
			confidence DOUBLE NOT NULL,
			source VARCHAR NOT NULL,
			evaluated_at TIMESTAMP NOT NULL,
			payload VARCHAR NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_user ON detections(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_evaluated ON detections(evaluated_at)`,

		`CREATE TABLE IF NOT EXISTS detection_feedback (
			id VARCHAR PRIMARY KEY,
			case_id VARCHAR NOT NULL,
			user_id VARCHAR NOT NULL,
			false_positive BOOLEAN NOT NULL,
			recorded_at TIMESTAMP NOT NULL,
			payload VARCHAR NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_user ON detection_feedback(user_id)`,

		`CREATE TABLE IF NOT EXISTS solve_history (
			user_id VARCHAR NOT NULL,
			puzzle_type VARCHAR NOT NULL,
			solution_time_ms BIGINT NOT NULL,
			mean_move_interval_ms DOUBLE NOT NULL,
			device_fingerprint VARCHAR NOT NULL DEFAULT '',
			recorded_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_solves_user_type ON solve_history(user_id, puzzle_type)`,

		`CREATE TABLE IF NOT EXISTS review_cases (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			session_id VARCHAR NOT NULL,
			puzzle_id VARCHAR NOT NULL,
			status VARCHAR NOT NULL,
			priority VARCHAR NOT NULL,
			priority_rank INTEGER NOT NULL,
			assigned_reviewer VARCHAR,
			required_tier VARCHAR NOT NULL,
			source VARCHAR NOT NULL,
			due_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			resolved_at TIMESTAMP,
			version BIGINT NOT NULL,
			payload VARCHAR NOT NULL,
			UNIQUE (user_id, session_id, puzzle_id)
		)`,

		`CREATE TABLE IF NOT EXISTS appeals (
			id VARCHAR PRIMARY KEY,
			case_id VARCHAR NOT NULL,
			user_id VARCHAR NOT NULL,
			status VARCHAR NOT NULL,
			assigned_reviewer VARCHAR,
			submitted_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			version BIGINT NOT NULL,
			payload VARCHAR NOT NULL,
			UNIQUE (case_id, user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_appeals_user_submitted ON appeals(user_id, submitted_at)`,

		`CREATE TABLE IF NOT EXISTS community_reports (
			id VARCHAR PRIMARY KEY,
			reporter_user_id VARCHAR NOT NULL,
			reported_user_id VARCHAR NOT NULL,
			session_id VARCHAR NOT NULL,
			status VARCHAR NOT NULL,
			priority INTEGER NOT NULL,
			assigned_moderator VARCHAR,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			version BIGINT NOT NULL,
			payload VARCHAR NOT NULL,
			UNIQUE (reporter_user_id, reported_user_id, session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_reported_created ON community_reports(reported_user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_reporter_created ON community_reports(reporter_user_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS reviewers (
			id VARCHAR PRIMARY KEY,
			role VARCHAR NOT NULL,
			tier VARCHAR NOT NULL,
			active BOOLEAN NOT NULL,
			payload VARCHAR NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS restrictions (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			kind VARCHAR NOT NULL,
			source VARCHAR NOT NULL,
			source_id VARCHAR NOT NULL DEFAULT '',
			starts_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP,
			lifted_at TIMESTAMP,
			payload VARCHAR NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_restrictions_user ON restrictions(user_id)`,

		`CREATE TABLE IF NOT EXISTS enforcement_actions (
			id VARCHAR PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			action VARCHAR NOT NULL,
			case_id VARCHAR NOT NULL DEFAULT '',
			executed_at TIMESTAMP NOT NULL,
			payload VARCHAR NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_enforcement_user ON enforcement_actions(user_id)`,

		`CREATE TABLE IF NOT EXISTS metric_events (
			id VARCHAR PRIMARY KEY,
			type VARCHAR NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			payload VARCHAR NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metric_events_occurred ON metric_events(occurred_at)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	// Flush DDL so a crash before the next automatic checkpoint does not
	// leave CREATE statements in the WAL only.
	if _, err := s.db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("CHECKPOINT after schema creation failed (non-fatal)")
	}

	return nil
}

// validCaseOrderColumns maps accepted OrderBy values to columns. Unlisted
// values fall back to queue order.
var validCaseOrderColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"due_at":     "due_at",
	"priority":   "priority_rank",
}

func (s *DuckDBStore) buildPlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *DuckDBStore) observe(operation, table string, start time.Time, err error) {
	metrics.RecordDBQuery(operation, table, time.Since(start), err)
}

func (s *DuckDBStore) count(ctx context.Context, table, query string, args ...interface{}) (n int, err error) {
	defer func(start time.Time) { s.observe("SELECT", table, start, err) }(time.Now())
	if err = s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// checkedUpdate runs an optimistic UPDATE and classifies a zero-row result
// as not found or stale.
func (s *DuckDBStore) checkedUpdate(ctx context.Context, table, id string, notFound error, query string, args ...interface{}) (err error) {
	defer func(start time.Time) { s.observe("UPDATE", table, start, err) }(time.Now())

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isTransactionConflict(err) {
			return models.ErrConcurrentModification
		}
		return fmt.Errorf("failed to update %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var exists int
	// #nosec G201 -- table is a package constant, never user input
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", table), id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check %s existence: %w", table, err)
	}
	if exists == 0 {
		return notFound
	}
	return models.ErrConcurrentModification
}

func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate key") ||
		strings.Contains(msg, "violates unique constraint") ||
		strings.Contains(msg, "violates primary key constraint") ||
		strings.Contains(msg, "PRIMARY KEY or UNIQUE constraint")
}

func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Transaction conflict") ||
		strings.Contains(msg, "Conflict on update")
}

func insertError(table string, err error) error {
	if isConstraintViolation(err) {
		return ErrDuplicate
	}
	return fmt.Errorf("failed to insert into %s: %w", table, err)
}

func utc(t time.Time) time.Time { return t.UTC() }

// nullableTime converts an optional time into a driver value.
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

var _ Store = (*DuckDBStore)(nil)
