// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package store

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tomtom215/fairplay/internal/models"
)

// baseTime is second-aligned so DuckDB's microsecond timestamps round-trip exactly.
var baseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func newTestCase(id, user, session string) *models.ReviewCase {
	return &models.ReviewCase{
		ID:        id,
		UserID:    user,
		SessionID: session,
		PuzzleID:  "puzzle-1",
		Detection: models.DetectionResult{
			ID:         "det-" + id,
			UserID:     user,
			SessionID:  session,
			PuzzleID:   "puzzle-1",
			Flags:      models.NewFlags(models.FlagTimingAnomaly),
			Severity:   models.SeverityMedium,
			Confidence: 0.55,
			Source:     models.SourceAutomated,
		},
		Status:       models.CaseStatusPending,
		Priority:     models.PriorityMedium,
		Workflow:     models.PlanWorkflow(models.SeverityMedium),
		RequiredTier: models.TierInitial,
		Source:       models.SourceAutomated,
		DueAt:        baseTime.Add(24 * time.Hour),
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
}

// runStoreContract exercises the behavior every Store adapter must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("case create get update", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		c := newTestCase("case-1", "user-1", "sess-1")
		if err := s.CreateCase(ctx, c); err != nil {
			t.Fatalf("CreateCase: %v", err)
		}
		if c.Version != 1 {
			t.Fatalf("version after create = %d, want 1", c.Version)
		}

		got, err := s.GetCase(ctx, "case-1")
		if err != nil {
			t.Fatalf("GetCase: %v", err)
		}
		if got.UserID != "user-1" || !got.Detection.Flags.Has(models.FlagTimingAnomaly) {
			t.Errorf("unexpected case: %+v", got)
		}

		got.Status = models.CaseStatusAssigned
		got.AssignedReviewer = strPtr("rev-1")
		if err := s.UpdateCase(ctx, got); err != nil {
			t.Fatalf("UpdateCase: %v", err)
		}
		if got.Version != 2 {
			t.Errorf("version after update = %d, want 2", got.Version)
		}

		byKey, err := s.GetCaseByKey(ctx, models.DetectionKey{UserID: "user-1", SessionID: "sess-1", PuzzleID: "puzzle-1"})
		if err != nil {
			t.Fatalf("GetCaseByKey: %v", err)
		}
		if byKey.Status != models.CaseStatusAssigned || !byKey.IsAssignedTo("rev-1") {
			t.Errorf("update not persisted: %+v", byKey)
		}
	})

	t.Run("stale update rejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		c := newTestCase("case-1", "user-1", "sess-1")
		if err := s.CreateCase(ctx, c); err != nil {
			t.Fatal(err)
		}
		first, _ := s.GetCase(ctx, "case-1")
		second, _ := s.GetCase(ctx, "case-1")

		first.Priority = models.PriorityHigh
		if err := s.UpdateCase(ctx, first); err != nil {
			t.Fatalf("first update: %v", err)
		}
		second.Priority = models.PriorityLow
		err := s.UpdateCase(ctx, second)
		if !errors.Is(err, models.ErrConcurrentModification) {
			t.Fatalf("expected concurrent modification, got %v", err)
		}
		if second.Version != 1 {
			t.Errorf("failed update must not bump caller version, got %d", second.Version)
		}
	})

	t.Run("duplicate detection key", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.CreateCase(ctx, newTestCase("case-1", "user-1", "sess-1")); err != nil {
			t.Fatal(err)
		}
		err := s.CreateCase(ctx, newTestCase("case-2", "user-1", "sess-1"))
		if !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.GetCase(ctx, "missing")
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("GetCase: expected not found, got %v", err)
		}
		_, err = s.GetAppeal(ctx, "missing")
		if models.ReasonOf(err) != models.ReasonAppealNotFound {
			t.Errorf("GetAppeal reason = %q", models.ReasonOf(err))
		}
		err = s.UpdateReport(ctx, &models.CommunityReport{ID: "missing", Version: 1})
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("UpdateReport: expected not found, got %v", err)
		}
	})

	t.Run("list cases queue order and filters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		low := newTestCase("case-low", "u1", "s1")
		low.Priority = models.PriorityLow
		urgent := newTestCase("case-urgent", "u2", "s2")
		urgent.Priority = models.PriorityUrgent
		urgent.DueAt = baseTime.Add(4 * time.Hour)
		mediumEarly := newTestCase("case-med-early", "u3", "s3")
		mediumEarly.DueAt = baseTime.Add(time.Hour)
		done := newTestCase("case-done", "u4", "s4")
		done.Status = models.CaseStatusCompleted

		for _, c := range []*models.ReviewCase{low, urgent, mediumEarly, done} {
			if err := s.CreateCase(ctx, c); err != nil {
				t.Fatal(err)
			}
		}

		got, err := s.ListCases(ctx, models.CaseFilter{Statuses: []models.CaseStatus{models.CaseStatusPending}})
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"case-urgent", "case-med-early", "case-low"}
		if len(got) != len(want) {
			t.Fatalf("got %d cases, want %d", len(got), len(want))
		}
		for i, id := range want {
			if got[i].ID != id {
				t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
			}
		}

		due := baseTime.Add(2 * time.Hour)
		overdue, err := s.ListCases(ctx, models.CaseFilter{DueBefore: &due})
		if err != nil {
			t.Fatal(err)
		}
		if len(overdue) != 1 || overdue[0].ID != "case-med-early" {
			t.Errorf("DueBefore filter returned %v", overdue)
		}

		paged, err := s.ListCases(ctx, models.CaseFilter{OrderBy: "created_at", Limit: 2, Offset: 1})
		if err != nil {
			t.Fatal(err)
		}
		if len(paged) != 2 {
			t.Errorf("paged len = %d, want 2", len(paged))
		}
	})

	t.Run("open cases per reviewer", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i, st := range []models.CaseStatus{models.CaseStatusAssigned, models.CaseStatusInReview, models.CaseStatusCompleted} {
			c := newTestCase("c"+string(rune('a'+i)), "u", "s"+string(rune('a'+i)))
			c.Status = st
			c.AssignedReviewer = strPtr("rev-1")
			if err := s.CreateCase(ctx, c); err != nil {
				t.Fatal(err)
			}
		}
		n, err := s.CountOpenCasesByReviewer(ctx, "rev-1")
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("open cases = %d, want 2", n)
		}
	})

	t.Run("appeals", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := &models.Appeal{
			ID:             "appeal-1",
			OriginalCaseID: "case-1",
			UserID:         "user-1",
			Status:         models.AppealStatusSubmitted,
			Priority:       models.AppealPriorityHigh,
			Reason:         "the timing spike came from a frozen browser tab",
			Evidence:       models.AppealEvidence{Type: models.EvidenceTechnicalIssue, Description: "logs", Confidence: 0.6},
			SubmittedAt:    baseTime,
			DeadlineAt:     baseTime.Add(72 * time.Hour),
			UpdatedAt:      baseTime,
		}
		if err := s.CreateAppeal(ctx, a); err != nil {
			t.Fatalf("CreateAppeal: %v", err)
		}
		dup := *a
		dup.ID = "appeal-2"
		if err := s.CreateAppeal(ctx, &dup); !errors.Is(err, ErrDuplicate) {
			t.Errorf("expected duplicate for same case and user, got %v", err)
		}

		found, err := s.FindAppeal(ctx, "case-1", "user-1")
		if err != nil || found.ID != "appeal-1" {
			t.Fatalf("FindAppeal: %v %v", found, err)
		}

		found.Status = models.AppealStatusUnderReview
		found.AssignedReviewer = strPtr("rev-2")
		if err := s.UpdateAppeal(ctx, found); err != nil {
			t.Fatalf("UpdateAppeal: %v", err)
		}
		n, err := s.CountOpenAppealsByReviewer(ctx, "rev-2")
		if err != nil || n != 1 {
			t.Errorf("open appeals = %d, %v", n, err)
		}

		since, err := s.CountAppealsSince(ctx, "user-1", baseTime)
		if err != nil || since != 1 {
			t.Errorf("appeals since = %d, %v", since, err)
		}
		later, _ := s.CountAppealsSince(ctx, "user-1", baseTime.Add(time.Second))
		if later != 0 {
			t.Errorf("appeals since later = %d, want 0", later)
		}

		list, err := s.ListAppeals(ctx, models.AppealFilter{UserID: "user-1"})
		if err != nil || len(list) != 1 {
			t.Errorf("ListAppeals = %v, %v", list, err)
		}
	})

	t.Run("reports", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		mk := func(id, reporter, session string, status models.ReportStatus, created time.Time) *models.CommunityReport {
			return &models.CommunityReport{
				ID:             id,
				ReporterUserID: reporter,
				ReportedUserID: "suspect",
				SessionID:      session,
				Type:           models.ReportTypeCheating,
				Description:    "solved the expert grid in four seconds",
				Severity:       models.SeverityMedium,
				Priority:       5,
				Status:         status,
				RequiredTier:   models.TierInitial,
				CreatedAt:      created,
				UpdatedAt:      created,
			}
		}

		reports := []*models.CommunityReport{
			mk("r1", "alice", "s1", models.ReportStatusResolved, baseTime.Add(-48*time.Hour)),
			mk("r2", "alice", "s2", models.ReportStatusDismissed, baseTime.Add(-2*time.Hour)),
			mk("r3", "alice", "s3", models.ReportStatusOpenForVote, baseTime.Add(-time.Hour)),
			mk("r4", "bob", "s1", models.ReportStatusOpenForVote, baseTime),
		}
		for _, r := range reports {
			if err := s.CreateReport(ctx, r); err != nil {
				t.Fatalf("CreateReport %s: %v", r.ID, err)
			}
		}

		if err := s.CreateReport(ctx, mk("r5", "alice", "s1", models.ReportStatusOpenForVote, baseTime)); !errors.Is(err, ErrDuplicate) {
			t.Errorf("expected duplicate report, got %v", err)
		}

		exists, err := s.ReportExists(ctx, "bob", "suspect", "s1")
		if err != nil || !exists {
			t.Errorf("ReportExists = %v, %v", exists, err)
		}

		window := baseTime.Add(-24 * time.Hour)
		against, _ := s.CountReportsAgainstSince(ctx, "suspect", window)
		if against != 3 {
			t.Errorf("reports against in window = %d, want 3", against)
		}
		by, _ := s.CountReportsBySince(ctx, "alice", window)
		if by != 2 {
			t.Errorf("reports by alice in window = %d, want 2", by)
		}

		st, err := s.ReporterStats(ctx, "alice")
		if err != nil {
			t.Fatal(err)
		}
		if st != (ReporterStats{Total: 3, Upheld: 1, Dismissed: 1}) {
			t.Errorf("stats = %+v", st)
		}

		r4, _ := s.GetReport(ctx, "r4")
		r4.Status = models.ReportStatusAssigned
		r4.AssignedModerator = strPtr("mod-1")
		r4.Votes = append(r4.Votes, models.Vote{VoterID: "v1", Option: models.VoteCheat, CastAt: baseTime})
		if err := s.UpdateReport(ctx, r4); err != nil {
			t.Fatalf("UpdateReport: %v", err)
		}
		n, _ := s.CountOpenReportsByModerator(ctx, "mod-1")
		if n != 1 {
			t.Errorf("moderator load = %d, want 1", n)
		}
		reloaded, _ := s.GetReport(ctx, "r4")
		if !reloaded.HasVoted("v1") {
			t.Error("vote not persisted")
		}

		open, _ := s.ListReports(ctx, models.ReportFilter{Statuses: []models.ReportStatus{models.ReportStatusOpenForVote}})
		if len(open) != 1 || open[0].ID != "r3" {
			t.Errorf("open reports = %v", open)
		}
	})

	t.Run("reviewers", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		revs := []*models.Reviewer{
			{ID: "rev-b", Name: "B", Role: models.RoleReviewer, Tier: models.TierSecondary, MaxLoad: 5, Active: true},
			{ID: "rev-a", Name: "A", Role: models.RoleReviewer, Tier: models.TierInitial, MaxLoad: 5, Active: true},
			{ID: "mod-a", Name: "M", Role: models.RoleModerator, Tier: models.TierInitial, MaxLoad: 20, Active: true, Specializations: []string{"harassment"}},
		}
		for _, r := range revs {
			if err := s.SaveReviewer(ctx, r); err != nil {
				t.Fatal(err)
			}
		}
		revs[0].Active = false
		if err := s.SaveReviewer(ctx, revs[0]); err != nil {
			t.Fatalf("upsert: %v", err)
		}

		got, err := s.ListReviewers(ctx, models.RoleReviewer)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0].ID != "rev-a" || got[1].Active {
			t.Errorf("reviewers = %+v", got)
		}
		mod, err := s.GetReviewer(ctx, "mod-a")
		if err != nil || !mod.Specializes("harassment") {
			t.Errorf("GetReviewer = %+v, %v", mod, err)
		}
	})

	t.Run("restrictions lift by source", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		exp := baseTime.Add(24 * time.Hour)
		rs := []*models.Restriction{
			{ID: "x1", UserID: "u", Kind: models.RestrictionBan, Source: "case", SourceID: "case-1", StartsAt: baseTime},
			{ID: "x2", UserID: "u", Kind: models.RestrictionTemporary, Source: "community", SourceID: "auto", StartsAt: baseTime, ExpiresAt: &exp},
			{ID: "x3", UserID: "other", Kind: models.RestrictionWarning, Source: "case", SourceID: "case-9", StartsAt: baseTime},
		}
		for _, r := range rs {
			if err := s.SaveRestriction(ctx, r); err != nil {
				t.Fatal(err)
			}
		}

		active, _ := s.ListActiveRestrictions(ctx, "u", baseTime.Add(time.Hour))
		if len(active) != 2 {
			t.Fatalf("active = %d, want 2", len(active))
		}
		expired, _ := s.ListActiveRestrictions(ctx, "u", baseTime.Add(25*time.Hour))
		if len(expired) != 1 || expired[0].ID != "x1" {
			t.Errorf("after expiry = %+v", expired)
		}

		n, err := s.LiftRestrictions(ctx, "u", "case-1", baseTime.Add(2*time.Hour))
		if err != nil || n != 1 {
			t.Fatalf("lift = %d, %v", n, err)
		}
		active, _ = s.ListActiveRestrictions(ctx, "u", baseTime.Add(3*time.Hour))
		if len(active) != 1 || active[0].ID != "x2" {
			t.Errorf("after lift = %+v", active)
		}
		other, _ := s.ListActiveRestrictions(ctx, "other", baseTime.Add(3*time.Hour))
		if len(other) != 1 {
			t.Error("lift must not touch other users")
		}
	})

	t.Run("baseline from solve history", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		times := []int64{1000, 2000, 3000}
		for i, ms := range times {
			rec := models.SolveRecord{
				UserID: "u", PuzzleType: "sudoku", SolutionTimeMS: ms, MeanMoveInterval: 400,
				DeviceFingerprint: "dev-1", RecordedAt: baseTime.Add(time.Duration(i) * time.Minute),
			}
			if err := s.RecordSolve(ctx, rec); err != nil {
				t.Fatal(err)
			}
		}
		_ = s.RecordSolve(ctx, models.SolveRecord{UserID: "u", PuzzleType: "kakuro", SolutionTimeMS: 9, DeviceFingerprint: "dev-2", RecordedAt: baseTime})

		b, err := s.Baseline(ctx, "u", "sudoku")
		if err != nil {
			t.Fatal(err)
		}
		if b.Samples != 3 || b.MeanSolutionTimeMS != 2000 || math.Abs(b.StdSolutionTimeMS-1000) > 1e-9 {
			t.Errorf("baseline = %+v", b)
		}
		if len(b.KnownDevices) != 2 {
			t.Errorf("known devices = %v", b.KnownDevices)
		}

		empty, err := s.Baseline(ctx, "nobody", "sudoku")
		if err != nil || empty.Samples != 0 || empty.StdSolutionTimeMS != 0 {
			t.Errorf("empty baseline = %+v, %v", empty, err)
		}
	})

	t.Run("detections and events", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i, sev := range []models.Severity{models.SeverityLow, models.SeverityHigh, models.SeverityCritical} {
			d := &models.DetectionResult{
				ID: "d" + string(rune('0'+i)), UserID: "u", SessionID: "s", PuzzleID: "p",
				Severity: sev, Confidence: 0.3 * float64(i+1), Source: models.SourceAutomated,
				EvaluatedAt: baseTime.Add(time.Duration(i) * time.Minute),
			}
			if err := s.SaveDetection(ctx, d); err != nil {
				t.Fatal(err)
			}
		}
		high, err := s.ListDetections(ctx, models.DetectionFilter{UserID: "u", MinSeverity: models.SeverityHigh})
		if err != nil {
			t.Fatal(err)
		}
		if len(high) != 2 || high[0].ID != "d2" {
			t.Errorf("high detections = %+v", high)
		}

		ev := &models.MetricEvent{ID: "e1", Type: models.MetricCaseCompleted, Verdict: models.VerdictLegitimate, OccurredAt: baseTime}
		if err := s.AppendMetricEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
		evs, err := s.ListMetricEvents(ctx, baseTime.Add(-time.Hour))
		if err != nil || len(evs) != 1 || evs[0].Verdict != models.VerdictLegitimate {
			t.Errorf("events = %+v, %v", evs, err)
		}

		rec := &models.EnforcementRecord{ID: "en1", Command: models.PenaltyCommand{Action: models.ActionBan, UserID: "u", CaseID: "c"}, ExecutedAt: baseTime}
		if err := s.SaveEnforcement(ctx, rec); err != nil {
			t.Fatal(err)
		}
		ledger, err := s.ListEnforcement(ctx, "u")
		if err != nil || len(ledger) != 1 || ledger[0].Command.Action != models.ActionBan {
			t.Errorf("ledger = %+v, %v", ledger, err)
		}

		fb := &models.FeedbackSignal{ID: "f1", CaseID: "c", UserID: "u", FalsePositive: true, RecordedAt: baseTime}
		if err := s.SaveFeedback(ctx, fb); err != nil {
			t.Fatal(err)
		}
		fbs, _ := s.ListFeedback(ctx, "u")
		if len(fbs) != 1 || !fbs[0].FalsePositive {
			t.Errorf("feedback = %+v", fbs)
		}
	})
}
