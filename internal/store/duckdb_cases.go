// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/fairplay/internal/models"
)

const caseColumns = `payload, version`

// scanCaseRow scans one payload/version row into a case.
func scanCaseRow(scanner interface {
	Scan(dest ...interface{}) error
}, c *models.ReviewCase) error {
	var payload string
	var version int64
	if err := scanner.Scan(&payload, &version); err != nil {
		return err
	}
	if err := decodePayload(payload, c); err != nil {
		return err
	}
	c.Version = version
	return nil
}

func (s *DuckDBStore) CreateCase(ctx context.Context, c *models.ReviewCase) (err error) {
	defer func(start time.Time) { s.observe("INSERT", "review_cases", start, err) }(time.Now())

	c.Version = 1
	payload, err := encodePayload(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO review_cases (
			id, user_id, session_id, puzzle_id, status, priority, priority_rank,
			assigned_reviewer, required_tier, source, due_at, created_at, updated_at,
			resolved_at, version, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.SessionID, c.PuzzleID, string(c.Status), string(c.Priority), c.Priority.Rank(),
		nullableString(c.AssignedReviewer), string(c.RequiredTier), string(c.Source),
		utc(c.DueAt), utc(c.CreatedAt), utc(c.UpdatedAt), nullableTime(c.ResolvedAt), c.Version, payload,
	)
	if err != nil {
		c.Version = 0
		return insertError("review_cases", err)
	}
	return nil
}

func (s *DuckDBStore) GetCase(ctx context.Context, id string) (c *models.ReviewCase, err error) {
	defer func(start time.Time) { s.observe("SELECT", "review_cases", start, err) }(time.Now())

	c = &models.ReviewCase{}
	err = scanCaseRow(s.db.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM review_cases WHERE id = ?`, id), c)
	if isNoRows(err) {
		return nil, models.NewNotFound(models.ReasonCaseNotFound, "case", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return c, nil
}

func (s *DuckDBStore) GetCaseByKey(ctx context.Context, key models.DetectionKey) (c *models.ReviewCase, err error) {
	defer func(start time.Time) { s.observe("SELECT", "review_cases", start, err) }(time.Now())

	c = &models.ReviewCase{}
	err = scanCaseRow(s.db.QueryRowContext(ctx,
		`SELECT `+caseColumns+` FROM review_cases WHERE user_id = ? AND session_id = ? AND puzzle_id = ?`,
		key.UserID, key.SessionID, key.PuzzleID), c)
	if isNoRows(err) {
		return nil, models.NewNotFound(models.ReasonCaseNotFound, "case", key.UserID+"/"+key.SessionID+"/"+key.PuzzleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case by key: %w", err)
	}
	return c, nil
}

func (s *DuckDBStore) UpdateCase(ctx context.Context, c *models.ReviewCase) error {
	expected := c.Version
	c.Version = expected + 1
	payload, err := encodePayload(c)
	if err != nil {
		c.Version = expected
		return err
	}
	err = s.checkedUpdate(ctx, "review_cases", c.ID,
		models.NewNotFound(models.ReasonCaseNotFound, "case", c.ID),
		`UPDATE review_cases SET
			status = ?, priority = ?, priority_rank = ?, assigned_reviewer = ?, required_tier = ?,
			source = ?, due_at = ?, updated_at = ?, resolved_at = ?, version = ?, payload = ?
		WHERE id = ? AND version = ?`,
		string(c.Status), string(c.Priority), c.Priority.Rank(), nullableString(c.AssignedReviewer),
		string(c.RequiredTier), string(c.Source), utc(c.DueAt), utc(c.UpdatedAt), nullableTime(c.ResolvedAt),
		c.Version, payload, c.ID, expected,
	)
	if err != nil {
		c.Version = expected
		return err
	}
	return nil
}

// ListCases returns cases matching filter. ORDER BY columns come from the
// validCaseOrderColumns whitelist; all values are parameterized.
func (s *DuckDBStore) ListCases(ctx context.Context, filter models.CaseFilter) (out []*models.ReviewCase, err error) {
	defer func(start time.Time) { s.observe("SELECT", "review_cases", start, err) }(time.Now())

	query, args := s.buildCaseQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c := &models.ReviewCase{}
		if err = scanCaseRow(rows, c); err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		out = append(out, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cases: %w", err)
	}
	return out, nil
}

func (s *DuckDBStore) buildCaseQuery(filter models.CaseFilter) (string, []interface{}) {
	query := `SELECT ` + caseColumns + ` FROM review_cases WHERE 1=1`
	var args []interface{}

	query, args = s.applyCaseFilters(query, args, filter)
	query = s.applyCaseOrdering(query, filter)
	return s.applyPagination(query, args, filter.Limit, filter.Offset)
}

func (s *DuckDBStore) applyCaseFilters(query string, args []interface{}, filter models.CaseFilter) (string, []interface{}) {
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
	if filter.ReviewerID != "" {
		query += " AND assigned_reviewer = ?"
		args = append(args, filter.ReviewerID)
	}
	if filter.Priority != "" {
		query += " AND priority = ?"
		args = append(args, string(filter.Priority))
	}
	if filter.Source != "" {
		query += " AND source = ?"
		args = append(args, string(filter.Source))
	}
	if filter.DueBefore != nil {
		query += " AND due_at < ?"
		args = append(args, filter.DueBefore.UTC())
	}
	return query, args
}

func (s *DuckDBStore) applyCaseOrdering(query string, filter models.CaseFilter) string {
	column, ok := validCaseOrderColumns[filter.OrderBy]
	if !ok {
		return query + " ORDER BY priority_rank DESC, due_at ASC, id ASC"
	}
	dir := "ASC"
	if strings.EqualFold(filter.OrderDir, "desc") {
		dir = "DESC"
	}
	return query + fmt.Sprintf(" ORDER BY %s %s, id ASC", column, dir)
}

func (s *DuckDBStore) applyPagination(query string, args []interface{}, limit, offset int) (string, []interface{}) {
	query += " LIMIT ?"
	args = append(args, normalizeLimit(limit))
	if offset > 0 {
		query += " OFFSET ?"
		args = append(args, offset)
	}
	return query, args
}

func (s *DuckDBStore) CountOpenCasesByReviewer(ctx context.Context, reviewerID string) (int, error) {
	open := openCaseStatuses()
	args := []interface{}{reviewerID}
	for _, st := range open {
		args = append(args, string(st))
	}
	return s.count(ctx, "review_cases",
		fmt.Sprintf(`SELECT COUNT(*) FROM review_cases WHERE assigned_reviewer = ? AND status IN (%s)`,
			s.buildPlaceholders(len(open))),
		args...)
}

// scanNullTime converts a nullable timestamp column.
func scanNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
