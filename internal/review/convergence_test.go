// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package review

import (
	"context"
	"testing"

	"github.com/tomtom215/fairplay/internal/models"
)

func report(id, session string) *models.CommunityReport {
	return &models.CommunityReport{
		ID:             id,
		ReporterUserID: "reporter-" + id,
		ReportedUserID: "u1",
		SessionID:      session,
		PuzzleID:       "p1",
		Type:           models.ReportTypeCheating,
		Severity:       models.SeverityMedium,
		Evidence:       models.ReportEvidence{ReplayIDs: []string{"rp1", "rp2"}},
	}
}

func TestOpenFromReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	c, err := f.m.OpenFromReport(ctx, report("rep1", "s1"))
	if err != nil {
		t.Fatalf("OpenFromReport() error = %v", err)
	}
	if c.Source != models.SourceCommunity || !c.Detection.Flags.Has(models.FlagCommunityReported) {
		t.Errorf("case source=%s flags=%v", c.Source, c.Detection.Flags)
	}
	if c.Detection.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", c.Detection.Confidence)
	}
	if len(c.LinkedReports) != 1 || c.LinkedReports[0] != "rep1" {
		t.Fatalf("LinkedReports = %v", c.LinkedReports)
	}

	again, err := f.m.OpenFromReport(ctx, report("rep1", "s1"))
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != c.ID || len(again.LinkedReports) != 1 {
		t.Errorf("repeat link: id=%s links=%v", again.ID, again.LinkedReports)
	}

	cheat := models.VoteCheat
	second := report("rep2", "s1")
	second.Consensus = &cheat
	merged, err := f.m.OpenFromReport(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.LinkedReports) != 2 {
		t.Errorf("LinkedReports = %v, want two", merged.LinkedReports)
	}
	if merged.Detection.Confidence != 0.75 {
		t.Errorf("confidence = %v, want 0.75 after cheat consensus", merged.Detection.Confidence)
	}

	stored, _ := f.m.GetCase(ctx, c.ID)
	if len(stored.LinkedReports) != 2 {
		t.Errorf("stored LinkedReports = %v", stored.LinkedReports)
	}
}

func TestOpenFromReportJoinsAutomatedCase(t *testing.T) {
	f := newFixture(t)
	auto := f.open(t, detection("s1", models.SeverityHigh, 0.8, models.FlagTimingAnomaly))

	c, err := f.m.OpenFromReport(context.Background(), report("rep1", "s1"))
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != auto.ID || c.Source != models.SourceAutomated {
		t.Errorf("case = %s/%s, want the automated case", c.ID, c.Source)
	}
	if !c.Detection.Flags.Has(models.FlagCommunityReported) || !c.Detection.Flags.Has(models.FlagTimingAnomaly) {
		t.Errorf("flags = %v, want union", c.Detection.Flags)
	}
	if len(c.LinkedReports) != 1 {
		t.Errorf("LinkedReports = %v", c.LinkedReports)
	}
}

func TestOpenFromReportWithoutPuzzleJoinsSessionCase(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	auto := f.open(t, detection("s1", models.SeverityHigh, 0.8, models.FlagTimingAnomaly))

	r := report("rep1", "s1")
	r.PuzzleID = ""
	c, err := f.m.OpenFromReport(ctx, r)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != auto.ID || c.PuzzleID != "p1" {
		t.Fatalf("case = %s puzzle=%q, want the open session case", c.ID, c.PuzzleID)
	}
	if len(c.LinkedReports) != 1 || c.LinkedReports[0] != "rep1" {
		t.Errorf("LinkedReports = %v", c.LinkedReports)
	}

	all, err := f.m.ListCases(ctx, models.CaseFilter{UserID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("cases = %d, want 1", len(all))
	}

	other := report("rep2", "s2")
	other.PuzzleID = ""
	fresh, err := f.m.OpenFromReport(ctx, other)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.ID == auto.ID || fresh.SessionID != "s2" {
		t.Errorf("report on another session joined case %s", fresh.ID)
	}
}

func TestOpenFromReportClosedCase(t *testing.T) {
	f := newFixture(t)
	f.addReviewer(t, "r1", models.TierInitial)
	auto := f.open(t, detection("s1", models.SeverityMedium, 0.5))
	f.review(t, auto.ID, "r1", decision(models.VerdictLegitimate, 0.9))

	c, err := f.m.OpenFromReport(context.Background(), report("rep1", "s1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.LinkedReports) != 0 || c.Status != models.CaseStatusCompleted {
		t.Errorf("closed case changed: %s links=%v", c.Status, c.LinkedReports)
	}
}

func TestOpenFromReportValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.OpenFromReport(context.Background(), nil)
	assertReason(t, err, models.ErrValidationFailure, models.ReasonInvalidReport)

	r := report("rep1", "")
	_, err = f.m.OpenFromReport(context.Background(), r)
	assertReason(t, err, models.ErrValidationFailure, models.ReasonInvalidReport)
}
