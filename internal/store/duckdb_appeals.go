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

func scanAppealRow(scanner interface {
	Scan(dest ...interface{}) error
}, a *models.Appeal) error {
	var payload string
	var version int64
	if err := scanner.Scan(&payload, &version); err != nil {
		return err
	}
	if err := decodePayload(payload, a); err != nil {
		return err
	}
	a.Version = version
	return nil
}

func (s *DuckDBStore) CreateAppeal(ctx context.Context, a *models.Appeal) (err error) {
	defer func(start time.Time) { s.observe("INSERT", "appeals", start, err) }(time.Now())

	a.Version = 1
	payload, err := encodePayload(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO appeals (
			id, case_id, user_id, status, assigned_reviewer, submitted_at, updated_at, version, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OriginalCaseID, a.UserID, string(a.Status), nullableString(a.AssignedReviewer),
		utc(a.SubmittedAt), utc(a.UpdatedAt), a.Version, payload,
	)
	if err != nil {
		a.Version = 0
		return insertError("appeals", err)
	}
	return nil
}

func (s *DuckDBStore) GetAppeal(ctx context.Context, id string) (a *models.Appeal, err error) {
	defer func(start time.Time) { s.observe("SELECT", "appeals", start, err) }(time.Now())

	a = &models.Appeal{}
	err = scanAppealRow(s.db.QueryRowContext(ctx, `SELECT payload, version FROM appeals WHERE id = ?`, id), a)
	if isNoRows(err) {
		return nil, models.NewNotFound(models.ReasonAppealNotFound, "appeal", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appeal: %w", err)
	}
	return a, nil
}

func (s *DuckDBStore) UpdateAppeal(ctx context.Context, a *models.Appeal) error {
	expected := a.Version
	a.Version = expected + 1
	payload, err := encodePayload(a)
	if err != nil {
		a.Version = expected
		return err
	}
	err = s.checkedUpdate(ctx, "appeals", a.ID,
		models.NewNotFound(models.ReasonAppealNotFound, "appeal", a.ID),
		`UPDATE appeals SET status = ?, assigned_reviewer = ?, updated_at = ?, version = ?, payload = ?
		WHERE id = ? AND version = ?`,
		string(a.Status), nullableString(a.AssignedReviewer), utc(a.UpdatedAt), a.Version, payload,
		a.ID, expected,
	)
	if err != nil {
		a.Version = expected
		return err
	}
	return nil
}

func (s *DuckDBStore) ListAppeals(ctx context.Context, filter models.AppealFilter) (out []*models.Appeal, err error) {
	defer func(start time.Time) { s.observe("SELECT", "appeals", start, err) }(time.Now())

	query := `SELECT payload, version FROM appeals WHERE 1=1`
	var args []interface{}
	if len(filter.Statuses) > 0 {
		query += fmt.Sprintf(" AND status IN (%s)", s.buildPlaceholders(len(filter.Statuses)))
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.CaseID != "" {
		query += " AND case_id = ?"
		args = append(args, filter.CaseID)
	}
	if filter.ReviewerID != "" {
		query += " AND assigned_reviewer = ?"
		args = append(args, filter.ReviewerID)
	}
	query += " ORDER BY submitted_at DESC, id ASC"
	query, args = s.applyPagination(query, args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query appeals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a := &models.Appeal{}
		if err = scanAppealRow(rows, a); err != nil {
			return nil, fmt.Errorf("failed to scan appeal: %w", err)
		}
		out = append(out, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating appeals: %w", err)
	}
	return out, nil
}

func (s *DuckDBStore) FindAppeal(ctx context.Context, caseID, userID string) (a *models.Appeal, err error) {
	defer func(start time.Time) { s.observe("SELECT", "appeals", start, err) }(time.Now())

	a = &models.Appeal{}
	err = scanAppealRow(s.db.QueryRowContext(ctx,
		`SELECT payload, version FROM appeals WHERE case_id = ? AND user_id = ?`, caseID, userID), a)
	if isNoRows(err) {
		return nil, models.NewNotFound(models.ReasonAppealNotFound, "appeal", caseID+"/"+userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find appeal: %w", err)
	}
	return a, nil
}

func (s *DuckDBStore) CountAppealsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	return s.count(ctx, "appeals",
		`SELECT COUNT(*) FROM appeals WHERE user_id = ? AND submitted_at >= ?`, userID, since.UTC())
}

func (s *DuckDBStore) CountOpenAppealsByReviewer(ctx context.Context, reviewerID string) (int, error) {
	return s.count(ctx, "appeals",
		`SELECT COUNT(*) FROM appeals WHERE assigned_reviewer = ? AND status = ?`,
		reviewerID, string(models.AppealStatusUnderReview))
}
