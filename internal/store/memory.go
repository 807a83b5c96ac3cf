// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/fairplay/internal/models"
)

// MemoryStore is a mutex-guarded in-process Store.
type MemoryStore struct {
	mu sync.RWMutex

	detections   map[string]*models.DetectionResult
	feedback     []*models.FeedbackSignal
	solves       []models.SolveRecord
	cases        map[string]*models.ReviewCase
	caseKeys     map[models.DetectionKey]string
	appeals      map[string]*models.Appeal
	reports      map[string]*models.CommunityReport
	reviewers    map[string]*models.Reviewer
	restrictions map[string]*models.Restriction
	enforcement  []*models.EnforcementRecord
	events       []*models.MetricEvent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		detections:   make(map[string]*models.DetectionResult),
		cases:        make(map[string]*models.ReviewCase),
		caseKeys:     make(map[models.DetectionKey]string),
		appeals:      make(map[string]*models.Appeal),
		reports:      make(map[string]*models.CommunityReport),
		reviewers:    make(map[string]*models.Reviewer),
		restrictions: make(map[string]*models.Restriction),
	}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// --- detections ---

func cloneDetection(d *models.DetectionResult) *models.DetectionResult {
	out := *d
	out.Flags = append(models.Flags(nil), d.Flags...)
	out.Analyses = append([]models.AnalysisResult(nil), d.Analyses...)
	return &out
}

func (s *MemoryStore) SaveDetection(_ context.Context, d *models.DetectionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.detections[d.ID]; ok {
		return ErrDuplicate
	}
	s.detections[d.ID] = cloneDetection(d)
	return nil
}

func (s *MemoryStore) GetDetection(_ context.Context, id string) (*models.DetectionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.detections[id]
	if !ok {
		return nil, models.NewNotFound(models.ReasonDetectionNotFound, "detection", id)
	}
	return cloneDetection(d), nil
}

func (s *MemoryStore) ListDetections(_ context.Context, f models.DetectionFilter) ([]*models.DetectionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.DetectionResult
	for _, d := range s.detections {
		if f.UserID != "" && d.UserID != f.UserID {
			continue
		}
		if f.PuzzleID != "" && d.PuzzleID != f.PuzzleID {
			continue
		}
		if f.MinSeverity != "" && !d.Severity.AtLeast(f.MinSeverity) {
			continue
		}
		if f.StartDate != nil && d.EvaluatedAt.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && d.EvaluatedAt.After(*f.EndDate) {
			continue
		}
		out = append(out, cloneDetection(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EvaluatedAt.Equal(out[j].EvaluatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].EvaluatedAt.After(out[j].EvaluatedAt)
	})
	lo, hi := page(len(out), f.Offset, f.Limit)
	return out[lo:hi], nil
}

func (s *MemoryStore) SaveFeedback(_ context.Context, f *models.FeedbackSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	cp.Flags = append(models.Flags(nil), f.Flags...)
	s.feedback = append(s.feedback, &cp)
	return nil
}

func (s *MemoryStore) ListFeedback(_ context.Context, userID string) ([]*models.FeedbackSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.FeedbackSignal
	for _, f := range s.feedback {
		if userID != "" && f.UserID != userID {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) RecordSolve(_ context.Context, rec models.SolveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.solves = append(s.solves, rec)
	return nil
}

// Baseline returns the sample mean and sample standard deviation of the
// user's recorded solves for puzzleType.
func (s *MemoryStore) Baseline(_ context.Context, userID, puzzleType string) (*models.UserBaseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := &models.UserBaseline{UserID: userID, PuzzleType: puzzleType}
	var times, intervals []float64
	devices := make(map[string]struct{})
	for _, r := range s.solves {
		if r.UserID != userID {
			continue
		}
		if r.DeviceFingerprint != "" {
			devices[r.DeviceFingerprint] = struct{}{}
		}
		if r.PuzzleType != puzzleType {
			continue
		}
		times = append(times, float64(r.SolutionTimeMS))
		intervals = append(intervals, r.MeanMoveInterval)
	}
	b.Samples = len(times)
	b.MeanSolutionTimeMS = mean(times)
	b.StdSolutionTimeMS = sampleStdDev(times)
	b.MeanMoveIntervalMS = mean(intervals)
	for d := range devices {
		b.KnownDevices = append(b.KnownDevices, d)
	}
	sort.Strings(b.KnownDevices)
	return b, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// --- cases ---

func (s *MemoryStore) CreateCase(_ context.Context, c *models.ReviewCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := s.caseKeys[c.Key()]; ok {
		return ErrDuplicate
	}
	c.Version = 1
	s.cases[c.ID] = c.Clone()
	s.caseKeys[c.Key()] = c.ID
	return nil
}

func (s *MemoryStore) GetCase(_ context.Context, id string) (*models.ReviewCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, models.NewNotFound(models.ReasonCaseNotFound, "case", id)
	}
	return c.Clone(), nil
}

func (s *MemoryStore) GetCaseByKey(_ context.Context, key models.DetectionKey) (*models.ReviewCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.caseKeys[key]
	if !ok {
		return nil, models.NewNotFound(models.ReasonCaseNotFound, "case", key.UserID+"/"+key.SessionID+"/"+key.PuzzleID)
	}
	return s.cases[id].Clone(), nil
}

func (s *MemoryStore) UpdateCase(_ context.Context, c *models.ReviewCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.cases[c.ID]
	if !ok {
		return models.NewNotFound(models.ReasonCaseNotFound, "case", c.ID)
	}
	if cur.Version != c.Version {
		return models.ErrConcurrentModification
	}
	c.Version++
	s.cases[c.ID] = c.Clone()
	return nil
}

func (s *MemoryStore) ListCases(_ context.Context, f models.CaseFilter) ([]*models.ReviewCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ReviewCase
	for _, c := range s.cases {
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, c.Status) {
			continue
		}
		if f.UserID != "" && c.UserID != f.UserID {
			continue
		}
		if f.ReviewerID != "" && !c.IsAssignedTo(f.ReviewerID) {
			continue
		}
		if f.Priority != "" && c.Priority != f.Priority {
			continue
		}
		if f.Source != "" && c.Source != f.Source {
			continue
		}
		if f.DueBefore != nil && !c.DueAt.Before(*f.DueBefore) {
			continue
		}
		out = append(out, c.Clone())
	}
	sortCases(out, f.OrderBy, f.OrderDir)
	lo, hi := page(len(out), f.Offset, f.Limit)
	return out[lo:hi], nil
}

func sortCases(cs []*models.ReviewCase, orderBy, orderDir string) {
	desc := strings.EqualFold(orderDir, "desc")
	cmp := func(a, b *models.ReviewCase) int {
		switch orderBy {
		case "created_at":
			return compareTime(a.CreatedAt, b.CreatedAt)
		case "updated_at":
			return compareTime(a.UpdatedAt, b.UpdatedAt)
		case "due_at":
			return compareTime(a.DueAt, b.DueAt)
		case "priority":
			return a.Priority.Rank() - b.Priority.Rank()
		}
		return 0
	}
	if _, ok := validCaseOrderColumns[orderBy]; !ok {
		// Queue order: most urgent first, then earliest deadline.
		sort.SliceStable(cs, func(i, j int) bool {
			if ri, rj := cs[i].Priority.Rank(), cs[j].Priority.Rank(); ri != rj {
				return ri > rj
			}
			if !cs[i].DueAt.Equal(cs[j].DueAt) {
				return cs[i].DueAt.Before(cs[j].DueAt)
			}
			return cs[i].ID < cs[j].ID
		})
		return
	}
	sort.SliceStable(cs, func(i, j int) bool {
		c := cmp(cs[i], cs[j])
		if c == 0 {
			return cs[i].ID < cs[j].ID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func containsStatus(list []models.CaseStatus, s models.CaseStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (s *MemoryStore) CountOpenCasesByReviewer(_ context.Context, reviewerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	open := openCaseStatuses()
	for _, c := range s.cases {
		if c.IsAssignedTo(reviewerID) && containsStatus(open, c.Status) {
			n++
		}
	}
	return n, nil
}

// --- appeals ---

func (s *MemoryStore) CreateAppeal(_ context.Context, a *models.Appeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appeals[a.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range s.appeals {
		if existing.OriginalCaseID == a.OriginalCaseID && existing.UserID == a.UserID {
			return ErrDuplicate
		}
	}
	a.Version = 1
	s.appeals[a.ID] = a.Clone()
	return nil
}

func (s *MemoryStore) GetAppeal(_ context.Context, id string) (*models.Appeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appeals[id]
	if !ok {
		return nil, models.NewNotFound(models.ReasonAppealNotFound, "appeal", id)
	}
	return a.Clone(), nil
}

func (s *MemoryStore) UpdateAppeal(_ context.Context, a *models.Appeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.appeals[a.ID]
	if !ok {
		return models.NewNotFound(models.ReasonAppealNotFound, "appeal", a.ID)
	}
	if cur.Version != a.Version {
		return models.ErrConcurrentModification
	}
	a.Version++
	s.appeals[a.ID] = a.Clone()
	return nil
}

func (s *MemoryStore) ListAppeals(_ context.Context, f models.AppealFilter) ([]*models.Appeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Appeal
	for _, a := range s.appeals {
		if len(f.Statuses) > 0 && !containsAppealStatus(f.Statuses, a.Status) {
			continue
		}
		if f.UserID != "" && a.UserID != f.UserID {
			continue
		}
		if f.CaseID != "" && a.OriginalCaseID != f.CaseID {
			continue
		}
		if f.ReviewerID != "" && !a.IsAssignedTo(f.ReviewerID) {
			continue
		}
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	lo, hi := page(len(out), f.Offset, f.Limit)
	return out[lo:hi], nil
}

func containsAppealStatus(list []models.AppealStatus, s models.AppealStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (s *MemoryStore) FindAppeal(_ context.Context, caseID, userID string) (*models.Appeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.appeals {
		if a.OriginalCaseID == caseID && a.UserID == userID {
			return a.Clone(), nil
		}
	}
	return nil, models.NewNotFound(models.ReasonAppealNotFound, "appeal", caseID+"/"+userID)
}

func (s *MemoryStore) CountAppealsSince(_ context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.appeals {
		if a.UserID == userID && !a.SubmittedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountOpenAppealsByReviewer(_ context.Context, reviewerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.appeals {
		if a.IsAssignedTo(reviewerID) && a.Status == models.AppealStatusUnderReview {
			n++
		}
	}
	return n, nil
}

// --- reports ---

func (s *MemoryStore) CreateReport(_ context.Context, r *models.CommunityReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[r.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range s.reports {
		if existing.ReporterUserID == r.ReporterUserID &&
			existing.ReportedUserID == r.ReportedUserID &&
			existing.SessionID == r.SessionID {
			return ErrDuplicate
		}
	}
	r.Version = 1
	s.reports[r.ID] = r.Clone()
	return nil
}

func (s *MemoryStore) GetReport(_ context.Context, id string) (*models.CommunityReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, models.NewNotFound(models.ReasonReportNotFound, "report", id)
	}
	return r.Clone(), nil
}

func (s *MemoryStore) UpdateReport(_ context.Context, r *models.CommunityReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.reports[r.ID]
	if !ok {
		return models.NewNotFound(models.ReasonReportNotFound, "report", r.ID)
	}
	if cur.Version != r.Version {
		return models.ErrConcurrentModification
	}
	r.Version++
	s.reports[r.ID] = r.Clone()
	return nil
}

func (s *MemoryStore) ListReports(_ context.Context, f models.ReportFilter) ([]*models.CommunityReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.CommunityReport
	for _, r := range s.reports {
		if len(f.Statuses) > 0 && !containsReportStatus(f.Statuses, r.Status) {
			continue
		}
		if f.ReporterUserID != "" && r.ReporterUserID != f.ReporterUserID {
			continue
		}
		if f.ReportedUserID != "" && r.ReportedUserID != f.ReportedUserID {
			continue
		}
		if f.ModeratorID != "" && !r.IsAssignedTo(f.ModeratorID) {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	lo, hi := page(len(out), f.Offset, f.Limit)
	return out[lo:hi], nil
}

func containsReportStatus(list []models.ReportStatus, s models.ReportStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (s *MemoryStore) ReportExists(_ context.Context, reporterID, reportedID, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reports {
		if r.ReporterUserID == reporterID && r.ReportedUserID == reportedID && r.SessionID == sessionID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) CountReportsBySince(_ context.Context, reporterID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.reports {
		if r.ReporterUserID == reporterID && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountReportsAgainstSince(_ context.Context, reportedID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.reports {
		if r.ReportedUserID == reportedID && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountOpenReportsByModerator(_ context.Context, moderatorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.reports {
		if r.IsAssignedTo(moderatorID) && r.Status == models.ReportStatusAssigned {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ReporterStats(_ context.Context, reporterID string) (ReporterStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st ReporterStats
	for _, r := range s.reports {
		if r.ReporterUserID != reporterID {
			continue
		}
		st.Total++
		switch r.Status {
		case models.ReportStatusResolved:
			st.Upheld++
		case models.ReportStatusDismissed:
			st.Dismissed++
		}
	}
	return st, nil
}

// --- reviewers ---

func cloneReviewer(r *models.Reviewer) *models.Reviewer {
	out := *r
	out.Specializations = append([]string(nil), r.Specializations...)
	return &out
}

func (s *MemoryStore) SaveReviewer(_ context.Context, r *models.Reviewer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviewers[r.ID] = cloneReviewer(r)
	return nil
}

func (s *MemoryStore) GetReviewer(_ context.Context, id string) (*models.Reviewer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviewers[id]
	if !ok {
		return nil, models.NewNotFound(models.ReasonReviewerNotFound, "reviewer", id)
	}
	return cloneReviewer(r), nil
}

func (s *MemoryStore) ListReviewers(_ context.Context, role models.StaffRole) ([]*models.Reviewer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Reviewer
	for _, r := range s.reviewers {
		if role != "" && r.Role != role {
			continue
		}
		out = append(out, cloneReviewer(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- restrictions & enforcement ---

func cloneRestriction(r *models.Restriction) *models.Restriction {
	out := *r
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		out.ExpiresAt = &t
	}
	if r.LiftedAt != nil {
		t := *r.LiftedAt
		out.LiftedAt = &t
	}
	return &out
}

func (s *MemoryStore) SaveRestriction(_ context.Context, r *models.Restriction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restrictions[r.ID] = cloneRestriction(r)
	return nil
}

func (s *MemoryStore) ListActiveRestrictions(_ context.Context, userID string, at time.Time) ([]*models.Restriction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Restriction
	for _, r := range s.restrictions {
		if r.UserID == userID && r.ActiveAt(at) {
			out = append(out, cloneRestriction(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) LiftRestrictions(_ context.Context, userID, sourceID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.restrictions {
		if r.UserID != userID || !r.ActiveAt(at) {
			continue
		}
		if sourceID != "" && r.SourceID != sourceID {
			continue
		}
		lifted := at
		r.LiftedAt = &lifted
		n++
	}
	return n, nil
}

func (s *MemoryStore) SaveEnforcement(_ context.Context, rec *models.EnforcementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.enforcement = append(s.enforcement, &cp)
	return nil
}

func (s *MemoryStore) ListEnforcement(_ context.Context, userID string) ([]*models.EnforcementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.EnforcementRecord
	for _, rec := range s.enforcement {
		if userID != "" && rec.Command.UserID != userID {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

// --- metric events ---

func (s *MemoryStore) AppendMetricEvent(_ context.Context, e *models.MetricEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.events = append(s.events, &cp)
	return nil
}

func (s *MemoryStore) ListMetricEvents(_ context.Context, since time.Time) ([]*models.MetricEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.MetricEvent
	for _, e := range s.events {
		if e.OccurredAt.Before(since) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
