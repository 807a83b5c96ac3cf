// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/fairplay/internal/models"
)

// --- detections ---

func (s *DuckDBStore) SaveDetection(ctx context.Context, d *models.DetectionResult) (err error) {
	defer func(start time.Time) { s.observe("INSERT", "detections", start, err) }(time.Now())

	payload, err := encodePayload(d)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO detections (
			id, user_id, session_id, puzzle_id, severity, severity_rank, confidence, source, evaluated_at, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.SessionID, d.PuzzleID, string(d.Severity), d.Severity.Rank(), d.Confidence,
		string(d.Source), utc(d.EvaluatedAt), payload,
	)
	if err != nil {
		return insertError("detections", err)
	}
	return nil
}

func (s *DuckDBStore) GetDetection(ctx context.Context, id string) (d *models.DetectionResult, err error) {
	defer func(start time.Time) { s.observe("SELECT", "detections", start, err) }(time.Now())

	var payload string
	err = s.db.QueryRowContext(ctx, `SELECT payload FROM detections WHERE id = ?`, id).Scan(&payload)
	if isNoRows(err) {
		return nil, models.NewNotFound(models.ReasonDetectionNotFound, "detection", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get detection: %w", err)
	}
	d = &models.DetectionResult{}
	if err = decodePayload(payload, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DuckDBStore) ListDetections(ctx context.Context, filter models.DetectionFilter) (out []*models.DetectionResult, err error) {
	defer func(start time.Time) { s.observe("SELECT", "detections", start, err) }(time.Now())

	query := `SELECT payload FROM detections WHERE 1=1`
	var args []interface{}
	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.PuzzleID != "" {
		query += " AND puzzle_id = ?"
		args = append(args, filter.PuzzleID)
	}
	if filter.MinSeverity != "" {
		query += " AND severity_rank >= ?"
		args = append(args, filter.MinSeverity.Rank())
	}
	if filter.StartDate != nil {
		query += " AND evaluated_at >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		query += " AND evaluated_at <= ?"
		args = append(args, filter.EndDate.UTC())
	}
	query += " ORDER BY evaluated_at DESC, id ASC"
	query, args = s.applyPagination(query, args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err = rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		d := &models.DetectionResult{}
		if err = decodePayload(payload, d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating detections: %w", err)
	}
	return out, nil
}

func (s *DuckDBStore) SaveFeedback(ctx context.Context, f *models.FeedbackSignal) (err error) {
	defer func(start time.Time) { s.observe("INSERT", "detection_feedback", start, err) }(time.Now())

	payload, err := encodePayload(f)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO detection_feedback (
			id, case_id, user_id, false_positive, recorded_at, payload
		) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.CaseID, f.UserID, f.FalsePositive, utc(f.RecordedAt), payload,
	)
	if err != nil {
		return insertError("detection_feedback", err)
	}
	return nil
}

func (s *DuckDBStore) ListFeedback(ctx context.Context, userID string) (out []*models.FeedbackSignal, err error) {
	defer func(start time.Time) { s.observe("SELECT", "detection_feedback", start, err) }(time.Now())

	query := `SELECT payload FROM detection_feedback`
	var args []interface{}
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY recorded_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err = rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		f := &models.FeedbackSignal{}
		if err = decodePayload(payload, f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *DuckDBStore) RecordSolve(ctx context.Context, rec models.SolveRecord) (err error) {
	defer func(start time.Time) { s.observe("INSERT", "solve_history", start, err) }(time.Now())

	_, err = s.db.ExecContext(ctx, `INSERT INTO solve_history (
			user_id, puzzle_type, solution_time_ms, mean_move_interval_ms, device_fingerprint, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.PuzzleType, rec.SolutionTimeMS, rec.MeanMoveInterval, rec.DeviceFingerprint, utc(rec.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record solve: %w", err)
	}
	return nil
}

// Baseline aggregates solve_history in DuckDB. Known devices span every
// puzzle type; timing statistics are per type.
func (s *DuckDBStore) Baseline(ctx context.Context, userID, puzzleType string) (b *models.UserBaseline, err error) {
	defer func(start time.Time) { s.observe("SELECT", "solve_history", start, err) }(time.Now())

	b = &models.UserBaseline{UserID: userID, PuzzleType: puzzleType}
	err = s.db.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COALESCE(AVG(solution_time_ms), 0),
			COALESCE(STDDEV_SAMP(solution_time_ms), 0),
			COALESCE(AVG(mean_move_interval_ms), 0)
		FROM solve_history WHERE user_id = ? AND puzzle_type = ?`,
		userID, puzzleType,
	).Scan(&b.Samples, &b.MeanSolutionTimeMS, &b.StdSolutionTimeMS, &b.MeanMoveIntervalMS)
	if err != nil {
		return nil, fmt.Errorf("failed to compute baseline: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT device_fingerprint FROM solve_history
		WHERE user_id = ? AND device_fingerprint <> '' ORDER BY device_fingerprint`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query known devices: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var fp string
		if err = rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		b.KnownDevices = append(b.KnownDevices, fp)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

// --- reviewers ---

func (s *DuckDBStore) SaveReviewer(ctx context.Context, r *models.Reviewer) (err error) {
	defer func(start time.Time) { s.observe("UPSERT", "reviewers", start, err) }(time.Now())

	payload, err := encodePayload(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO reviewers (id, role, tier, active, payload)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, string(r.Role), string(r.Tier), r.Active, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save reviewer: %w", err)
	}
	return nil
}

func (s *DuckDBStore) GetReviewer(ctx context.Context, id string) (r *models.Reviewer, err error) {
	defer func(start time.Time) { s.observe("SELECT", "reviewers", start, err) }(time.Now())

	var payload string
	err = s.db.QueryRowContext(ctx, `SELECT payload FROM reviewers WHERE id = ?`, id).Scan(&payload)
	if isNoRows(err) {
		return nil, models.NewNotFound(models.ReasonReviewerNotFound, "reviewer", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reviewer: %w", err)
	}
	r = &models.Reviewer{}
	if err = decodePayload(payload, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *DuckDBStore) ListReviewers(ctx context.Context, role models.StaffRole) (out []*models.Reviewer, err error) {
	defer func(start time.Time) { s.observe("SELECT", "reviewers", start, err) }(time.Now())

	query := `SELECT payload FROM reviewers`
	var args []interface{}
	if role != "" {
		query += " WHERE role = ?"
		args = append(args, string(role))
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviewers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err = rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan reviewer: %w", err)
		}
		r := &models.Reviewer{}
		if err = decodePayload(payload, r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- restrictions ---

func (s *DuckDBStore) SaveRestriction(ctx context.Context, r *models.Restriction) (err error) {
	defer func(start time.Time) { s.observe("UPSERT", "restrictions", start, err) }(time.Now())

	payload, err := encodePayload(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO restrictions (
			id, user_id, kind, source, source_id, starts_at, expires_at, lifted_at, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, string(r.Kind), r.Source, r.SourceID, utc(r.StartsAt),
		nullableTime(r.ExpiresAt), nullableTime(r.LiftedAt), payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save restriction: %w", err)
	}
	return nil
}

const activeRestrictionClause = `starts_at <= ?
	AND (expires_at IS NULL OR expires_at > ?)
	AND (lifted_at IS NULL OR lifted_at > ?)`

func (s *DuckDBStore) ListActiveRestrictions(ctx context.Context, userID string, at time.Time) (out []*models.Restriction, err error) {
	defer func(start time.Time) { s.observe("SELECT", "restrictions", start, err) }(time.Now())

	at = at.UTC()
	rows, err := s.db.QueryContext(ctx, `SELECT payload, lifted_at FROM restrictions
		WHERE user_id = ? AND `+activeRestrictionClause+`
		ORDER BY starts_at ASC, id ASC`,
		userID, at, at, at)
	if err != nil {
		return nil, fmt.Errorf("failed to query restrictions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		var lifted sql.NullTime
		if err = rows.Scan(&payload, &lifted); err != nil {
			return nil, fmt.Errorf("failed to scan restriction: %w", err)
		}
		r := &models.Restriction{}
		if err = decodePayload(payload, r); err != nil {
			return nil, err
		}
		// lifted_at is updated in place without rewriting the payload.
		r.LiftedAt = scanNullTime(lifted)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *DuckDBStore) LiftRestrictions(ctx context.Context, userID, sourceID string, at time.Time) (n int, err error) {
	defer func(start time.Time) { s.observe("UPDATE", "restrictions", start, err) }(time.Now())

	at = at.UTC()
	query := `UPDATE restrictions SET lifted_at = ? WHERE user_id = ? AND ` + activeRestrictionClause
	args := []interface{}{at, userID, at, at, at}
	if sourceID != "" {
		query += " AND source_id = ?"
		args = append(args, sourceID)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to lift restrictions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(affected), nil
}

// --- enforcement ledger ---

func (s *DuckDBStore) SaveEnforcement(ctx context.Context, rec *models.EnforcementRecord) (err error) {
	defer func(start time.Time) { s.observe("INSERT", "enforcement_actions", start, err) }(time.Now())

	payload, err := encodePayload(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO enforcement_actions (
			id, user_id, action, case_id, executed_at, payload
		) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Command.UserID, string(rec.Command.Action), rec.Command.CaseID, utc(rec.ExecutedAt), payload,
	)
	if err != nil {
		return insertError("enforcement_actions", err)
	}
	return nil
}

func (s *DuckDBStore) ListEnforcement(ctx context.Context, userID string) (out []*models.EnforcementRecord, err error) {
	defer func(start time.Time) { s.observe("SELECT", "enforcement_actions", start, err) }(time.Now())

	query := `SELECT payload FROM enforcement_actions`
	var args []interface{}
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY executed_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query enforcement actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err = rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan enforcement action: %w", err)
		}
		rec := &models.EnforcementRecord{}
		if err = decodePayload(payload, rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- metric events ---

func (s *DuckDBStore) AppendMetricEvent(ctx context.Context, e *models.MetricEvent) (err error) {
	defer func(start time.Time) { s.observe("INSERT", "metric_events", start, err) }(time.Now())

	payload, err := encodePayload(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO metric_events (id, type, occurred_at, payload) VALUES (?, ?, ?, ?)`,
		e.ID, string(e.Type), utc(e.OccurredAt), payload)
	if err != nil {
		return insertError("metric_events", err)
	}
	return nil
}

func (s *DuckDBStore) ListMetricEvents(ctx context.Context, since time.Time) (out []*models.MetricEvent, err error) {
	defer func(start time.Time) { s.observe("SELECT", "metric_events", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM metric_events
		WHERE occurred_at >= ? ORDER BY occurred_at ASC, id ASC`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query metric events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err = rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan metric event: %w", err)
		}
		e := &models.MetricEvent{}
		if err = decodePayload(payload, e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
