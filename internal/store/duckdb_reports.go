// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/fairplay/internal/models"
)

func scanReportRow(scanner interface {
	Scan(dest ...interface{}) error
}, r *models.CommunityReport) error {
	var payload string
	var version int64
	if err := scanner.Scan(&payload, &version); err != nil {
		return err
	}
	if err := decodePayload(payload, r); err != nil {
		return err
	}
	r.Version = version
	return nil
}

func (s *DuckDBStore) CreateReport(ctx context.Context, r *models.CommunityReport) (err error) {
	defer func(start time.Time) { s.observe("INSERT", "community_reports", start, err) }(time.Now())

	r.Version = 1
	payload, err := encodePayload(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO community_reports (
			id, reporter_user_id, reported_user_id, session_id, status, priority,
			assigned_moderator, created_at, updated_at, version, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ReporterUserID, r.ReportedUserID, r.SessionID, string(r.Status), r.Priority,
		nullableString(r.AssignedModerator), utc(r.CreatedAt), utc(r.UpdatedAt), r.Version, payload,
	)
	if err != nil {
		r.Version = 0
		return insertError("community_reports", err)
	}
	return nil
}

func (s *DuckDBStore) GetReport(ctx context.Context, id string) (r *models.CommunityReport, err error) {
	defer func(start time.Time) { s.observe("SELECT", "community_reports", start, err) }(time.Now())

	r = &models.CommunityReport{}
	err = scanReportRow(s.db.QueryRowContext(ctx, `SELECT payload, version FROM community_reports WHERE id = ?`, id), r)
	if isNoRows(err) {
		return nil, models.NewNotFound(models.ReasonReportNotFound, "report", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return r, nil
}

func (s *DuckDBStore) UpdateReport(ctx context.Context, r *models.CommunityReport) error {
	expected := r.Version
	r.Version = expected + 1
	payload, err := encodePayload(r)
	if err != nil {
		r.Version = expected
		return err
	}
	err = s.checkedUpdate(ctx, "community_reports", r.ID,
		models.NewNotFound(models.ReasonReportNotFound, "report", r.ID),
		`UPDATE community_reports SET status = ?, priority = ?, assigned_moderator = ?, updated_at = ?,
			version = ?, payload = ?
		WHERE id = ? AND version = ?`,
		string(r.Status), r.Priority, nullableString(r.AssignedModerator), utc(r.UpdatedAt),
		r.Version, payload, r.ID, expected,
	)
	if err != nil {
		r.Version = expected
		return err
	}
	return nil
}

func (s *DuckDBStore) ListReports(ctx context.Context, filter models.ReportFilter) (out []*models.CommunityReport, err error) {
	defer func(start time.Time) { s.observe("SELECT", "community_reports", start, err) }(time.Now())

	query := `SELECT payload, version FROM community_reports WHERE 1=1`
	var args []interface{}
	if len(filter.Statuses) > 0 {
		query += fmt.Sprintf(" AND status IN (%s)", s.buildPlaceholders(len(filter.Statuses)))
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	if filter.ReporterUserID != "" {
		query += " AND reporter_user_id = ?"
		args = append(args, filter.ReporterUserID)
	}
	if filter.ReportedUserID != "" {
		query += " AND reported_user_id = ?"
		args = append(args, filter.ReportedUserID)
	}
	if filter.ModeratorID != "" {
		query += " AND assigned_moderator = ?"
		args = append(args, filter.ModeratorID)
	}
	query += " ORDER BY priority DESC, created_at ASC, id ASC"
	query, args = s.applyPagination(query, args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r := &models.CommunityReport{}
		if err = scanReportRow(rows, r); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		out = append(out, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return out, nil
}

func (s *DuckDBStore) ReportExists(ctx context.Context, reporterID, reportedID, sessionID string) (bool, error) {
	n, err := s.count(ctx, "community_reports",
		`SELECT COUNT(*) FROM community_reports
		WHERE reporter_user_id = ? AND reported_user_id = ? AND session_id = ?`,
		reporterID, reportedID, sessionID)
	return n > 0, err
}

func (s *DuckDBStore) CountReportsBySince(ctx context.Context, reporterID string, since time.Time) (int, error) {
	return s.count(ctx, "community_reports",
		`SELECT COUNT(*) FROM community_reports WHERE reporter_user_id = ? AND created_at >= ?`,
		reporterID, since.UTC())
}

func (s *DuckDBStore) CountReportsAgainstSince(ctx context.Context, reportedID string, since time.Time) (int, error) {
	return s.count(ctx, "community_reports",
		`SELECT COUNT(*) FROM community_reports WHERE reported_user_id = ? AND created_at >= ?`,
		reportedID, since.UTC())
}

func (s *DuckDBStore) CountOpenReportsByModerator(ctx context.Context, moderatorID string) (int, error) {
	return s.count(ctx, "community_reports",
		`SELECT COUNT(*) FROM community_reports WHERE assigned_moderator = ? AND status = ?`,
		moderatorID, string(models.ReportStatusAssigned))
}

func (s *DuckDBStore) ReporterStats(ctx context.Context, reporterID string) (st ReporterStats, err error) {
	defer func(start time.Time) { s.observe("SELECT", "community_reports", start, err) }(time.Now())

	err = s.db.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = ?),
			COUNT(*) FILTER (WHERE status = ?)
		FROM community_reports WHERE reporter_user_id = ?`,
		string(models.ReportStatusResolved), string(models.ReportStatusDismissed), reporterID,
	).Scan(&st.Total, &st.Upheld, &st.Dismissed)
	if err != nil {
		return ReporterStats{}, fmt.Errorf("failed to load reporter stats: %w", err)
	}
	return st, nil
}
