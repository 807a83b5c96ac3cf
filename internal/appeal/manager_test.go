// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package appeal

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tomtom215/fairplay/internal/models"
)

func TestEvidenceConfidence(t *testing.T) {
	tests := []struct {
		name string
		ev   models.AppealEvidence
		want float64
	}{
		{"procedural full weight", models.AppealEvidence{Type: models.EvidenceProceduralError, Confidence: 0.95}, 0.95},
		{"new evidence with attachments", models.AppealEvidence{Type: models.EvidenceNewEvidence, Confidence: 0.5, Attachments: []string{"a", "b", "c"}}, 0.51},
		{"attachment bonus is capped", models.AppealEvidence{Type: models.EvidenceContextExplanation, Confidence: 1, Attachments: make([]string, 10)}, 0.8},
		{"clamped to one", models.AppealEvidence{Type: models.EvidenceProceduralError, Confidence: 1, Attachments: make([]string, 5)}, 1},
		{"unknown type", models.AppealEvidence{Type: "vibes", Confidence: 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvidenceConfidence(tt.ev); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("EvidenceConfidence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubmitAppeal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seedCase(t, "c1", models.VerdictConfirmedCheat)

	a := f.submit(t, request(c.ID, models.EvidenceNewEvidence, 0.6, 0))
	if a.Status != models.AppealStatusSubmitted {
		t.Errorf("Status = %s, want submitted", a.Status)
	}
	if a.Priority != models.AppealPriorityHigh {
		t.Errorf("Priority = %s, want high", a.Priority)
	}
	if want := f.now.Add(f.m.cfg.HighSLA); !a.DeadlineAt.Equal(want) {
		t.Errorf("DeadlineAt = %v, want %v", a.DeadlineAt, want)
	}
	if !a.Fee.Waived || a.Fee.AmountCents != f.m.cfg.FeeCents {
		t.Errorf("Fee = %+v, want waived %d", a.Fee, f.m.cfg.FeeCents)
	}
	if math.Abs(a.EvidenceConfidence-0.54) > 1e-9 {
		t.Errorf("EvidenceConfidence = %v, want 0.54", a.EvidenceConfidence)
	}
	if a.AssignedReviewer != nil || a.Decision != nil {
		t.Error("new appeal should be unassigned and undecided")
	}

	stored, _ := f.store.GetCase(ctx, c.ID)
	if stored.AppealID == nil || *stored.AppealID != a.ID {
		t.Errorf("case AppealID = %v, want %s", stored.AppealID, a.ID)
	}
	if f.notes.count(models.NotifyAppealSubmitted, "u1") != 1 {
		t.Error("appellant was not notified")
	}
}

func TestSubmitAppealPriority(t *testing.T) {
	tests := []struct {
		name      string
		permanent bool
		evidence  models.EvidenceType
		want      models.AppealPriority
	}{
		{"permanent ban", true, models.EvidenceContextExplanation, models.AppealPriorityUrgent},
		{"procedural error", false, models.EvidenceProceduralError, models.AppealPriorityHigh},
		{"technical issue", false, models.EvidenceTechnicalIssue, models.AppealPriorityNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.seedCase(t, "c1", models.VerdictConfirmedCheat, func(c *models.ReviewCase) {
				c.FinalDecision.PermanentBan = tt.permanent
			})
			a := f.submit(t, request(c.ID, tt.evidence, 0.5, 0))
			if a.Priority != tt.want {
				t.Errorf("Priority = %s, want %s", a.Priority, tt.want)
			}
		})
	}
}

func TestSubmitAppealFeeEnforced(t *testing.T) {
	f := newFixture(t)
	f.m.cfg.WaiveFees = false
	c := f.seedCase(t, "c1", models.VerdictConfirmedCheat)
	a := f.submit(t, request(c.ID, models.EvidenceTechnicalIssue, 0.5, 0))
	if a.Fee.Waived || a.Fee.AmountCents != f.m.cfg.FeeCents {
		t.Errorf("Fee = %+v, want charged", a.Fee)
	}
}

func TestSubmitAppealWindowBoundary(t *testing.T) {
	deadline := baseTime.Add(7 * 24 * time.Hour)

	f := newFixture(t)
	c := f.seedCase(t, "c1", models.VerdictConfirmedCheat)
	f.now = deadline
	f.submit(t, request(c.ID, models.EvidenceTechnicalIssue, 0.5, 0))

	f = newFixture(t)
	c = f.seedCase(t, "c1", models.VerdictConfirmedCheat)
	f.now = deadline.Add(time.Second)
	_, err := f.m.SubmitAppeal(context.Background(), request(c.ID, models.EvidenceTechnicalIssue, 0.5, 0))
	assertReason(t, err, models.ErrEligibilityDenied, models.ReasonAppealWindowExpired)
}

func TestSubmitAppealEligibility(t *testing.T) {
	ctx := context.Background()

	t.Run("case still in review", func(t *testing.T) {
		f := newFixture(t)
		c := f.seedCase(t, "c1", models.VerdictConfirmedCheat, func(c *models.ReviewCase) {
			c.Status = models.CaseStatusInReview
			c.FinalDecision = nil
			c.AppealDeadline = nil
		})
		_, err := f.m.SubmitAppeal(ctx, request(c.ID, models.EvidenceTechnicalIssue, 0.5, 0))
		assertReason(t, err, models.ErrEligibilityDenied, models.ReasonCaseNotAppealable)
	})

	t.Run("non-cheat verdict", func(t *testing.T) {
		f := newFixture(t)
		c := f.seedCase(t, "c1", models.VerdictSuspicious)
		_, err := f.m.SubmitAppeal(ctx, request(c.ID, models.EvidenceTechnicalIssue, 0.5, 0))
		assertReason(t, err, models.ErrEligibilityDenied, models.ReasonCaseNotAppealable)
	})

	t.Run("someone else's case", func(t *testing.T) {
		f := newFixture(t)
		c := f.seedCase(t, "c1", models.VerdictConfirmedCheat)
		req := request(c.ID, models.EvidenceTechnicalIssue, 0.5, 0)
		req.UserID = "u2"
		_, err := f.m.SubmitAppeal(ctx, req)
		assertReason(t, err, models.ErrEligibilityDenied, models.ReasonNotAppellant)
	})

	t.Run("second appeal", func(t *testing.T) {
		f := newFixture(t)
		c := f.seedCase(t, "c1", models.VerdictConfirmedCheat)
		first := f.submit(t, request(c.ID, models.EvidenceTechnicalIssue, 0.5, 0))
		if _, err := f.m.WithdrawAppeal(ctx, first.ID, "u1"); err != nil {
			t.Fatal(err)
		}
		_, err := f.m.SubmitAppeal(ctx, request(c.ID, models.EvidenceNewEvidence, 0.8, 1))
		assertReason(t, err, models.ErrEligibilityDenied, models.ReasonDuplicateAppeal)
	})

	t.Run("unknown case", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.m.SubmitAppeal(ctx, request("missing", models.EvidenceTechnicalIssue, 0.5, 0))
		if !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("error = %v, want not found", err)
		}
	})
}

func TestSubmitAppealAnnualCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Last year's appeals do not count.
	old := &models.Appeal{
		ID:             "old",
		OriginalCaseID: "last-year",
		UserID:         "u1",
		Status:         models.AppealStatusRejected,
		SubmittedAt:    time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC),
	}
	if err := f.store.CreateAppeal(ctx, old); err != nil {
		t.Fatal(err)
	}

	limit := f.m.cfg.MaxPerYear
	for i := 0; i < limit; i++ {
		c := f.seedCase(t, "c"+string(rune('a'+i)), models.VerdictConfirmedCheat)
		f.submit(t, request(c.ID, models.EvidenceTechnicalIssue, 0.5, 0))
	}

	over := f.seedCase(t, "over", models.VerdictConfirmedCheat)
	_, err := f.m.SubmitAppeal(ctx, request(over.ID, models.EvidenceTechnicalIssue, 0.5, 0))
	assertReason(t, err, models.ErrEligibilityDenied, models.ReasonAnnualAppealLimit)
}

func TestSubmitAppealValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SubmitRequest)
		reason string
	}{
		{"short reason", func(r *SubmitRequest) { r.Reason = "I did not cheat." }, models.ReasonReasoningTooShort},
		{"unknown evidence type", func(r *SubmitRequest) { r.Evidence.Type = "vibes" }, models.ReasonInvalidEvidence},
		{"missing description", func(r *SubmitRequest) { r.Evidence.Description = "" }, models.ReasonInvalidEvidence},
		{"confidence out of range", func(r *SubmitRequest) { r.Evidence.Confidence = 1.5 }, models.ReasonInvalidEvidence},
		{"missing case", func(r *SubmitRequest) { r.CaseID = "" }, models.ReasonInvalidEvidence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.seedCase(t, "c1", models.VerdictConfirmedCheat)
			req := request(c.ID, models.EvidenceTechnicalIssue, 0.5, 0)
			tt.mutate(&req)
			_, err := f.m.SubmitAppeal(context.Background(), req)
			assertReason(t, err, models.ErrValidationFailure, tt.reason)
		})
	}
}

func TestAutoApproval(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(t, "c1", models.VerdictConfirmedCheat)

	a := f.submit(t, request(c.ID, models.EvidenceProceduralError, 0.95, 0))
	if a.Status != models.AppealStatusApproved {
		t.Fatalf("Status = %s, want approved", a.Status)
	}
	if a.Decision == nil || a.Decision.ReviewerID != models.SystemReviewerID || !a.Decision.Automatic {
		t.Fatalf("Decision = %+v, want automatic system decision", a.Decision)
	}
	if a.AssignedReviewer != nil {
		t.Error("auto-approved appeal must not be assigned")
	}
	if a.ResolvedAt == nil {
		t.Error("ResolvedAt not set")
	}

	actions := f.pen.actions()
	want := []models.Action{models.ActionReversePenalty, models.ActionRestoreResults, models.ActionClearRecord}
	if len(actions) != len(want) {
		t.Fatalf("actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("actions[%d] = %s, want %s", i, actions[i], want[i])
		}
	}
	if f.pen.cmds[0].CaseID != c.ID || f.pen.cmds[0].AppealID != a.ID {
		t.Errorf("command = %+v, want case and appeal ids", f.pen.cmds[0])
	}
	if len(f.fb.signals) != 1 || !f.fb.signals[0].FalsePositive {
		t.Errorf("feedback = %+v, want one false positive", f.fb.signals)
	}
	if len(f.events.events) != 1 || f.events.events[0].AppealOutcome != models.AppealOutcomeApproved {
		t.Errorf("events = %+v", f.events.events)
	}
}

func TestAutoApprovalThresholdIsExclusive(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(t, "c1", models.VerdictConfirmedCheat)
	a := f.submit(t, request(c.ID, models.EvidenceProceduralError, f.m.cfg.AutoApproveThreshold, 0))
	if a.Status != models.AppealStatusSubmitted {
		t.Errorf("Status = %s, want submitted", a.Status)
	}
}

func TestAssignAppeal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seedCase(t, "c1", models.VerdictConfirmedCheat)
	a := f.submit(t, request(c.ID, models.EvidenceTechnicalIssue, 0.5, 0))

	_, err := f.m.AssignAppeal(ctx, a.ID, "r-orig")
	assertReason(t, err, models.ErrEligibilityDenied, models.ReasonReviewerNotIndependent)

	got, err := f.m.AssignAppeal(ctx, a.ID, "r2")
	if err != nil {
		t.Fatalf("AssignAppeal() error = %v", err)
	}
	if got.Status != models.AppealStatusUnderReview || !got.IsAssignedTo("r2") {
		t.Errorf("appeal = %s/%v, want under_review by r2", got.Status, got.AssignedReviewer)
	}
	if f.notes.count(models.NotifyAppealAssigned, "r2") != 1 {
		t.Error("reviewer was not notified")
	}

	_, err = f.m.AssignAppeal(ctx, a.ID, "r3")
	assertReason(t, err, models.ErrInvalidState, models.ReasonIllegalTransition)
}

func TestAssignAppealEligibility(t *testing.T) {
	ctx := context.Background()

	t.Run("inactive reviewer", func(t *testing.T) {
		f := newFixture(t)
		if err := f.store.SaveReviewer(ctx, &models.Reviewer{ID: "gone", Name: "gone", Role: models.RoleReviewer, Tier: models.TierExpert}); err != nil {
			t.Fatal(err)
		}
		c := f.seedCase(t, "c1", models.VerdictConfirmedCheat)
		a := f.submit(t, request(c.ID, models.EvidenceTechnicalIssue, 0.5, 0))
		_, err := f.m.AssignAppeal(ctx, a.ID, "gone")
		assertReason(t, err, models.ErrEligibilityDenied, models.ReasonReviewerInactive)
	})

	t.Run("at capacity", func(t *testing.T) {
		f := newFixture(t)
		if err := f.store.SaveReviewer(ctx, &models.Reviewer{ID: "solo", Name: "solo", Role: models.RoleReviewer, Tier: models.TierExpert, MaxLoad: 1, Active: true}); err != nil {
			t.Fatal(err)
		}
		first := f.submit(t, request(f.seedCase(t, "c1", models.VerdictConfirmedCheat).ID, models.EvidenceTechnicalIssue, 0.5, 0))
		second := f.submit(t, request(f.seedCase(t, "c2", models.VerdictConfirmedCheat).ID, models.EvidenceTechnicalIssue, 0.5, 0))
		if _, err := f.m.AssignAppeal(ctx, first.ID, "solo"); err != nil {
			t.Fatal(err)
		}
		_, err := f.m.AssignAppeal(ctx, second.ID, "solo")
		assertReason(t, err, models.ErrCapacityExceeded, models.ReasonReviewerAtCapacity)
	})
}

func TestReviewAppealOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		evidence    models.EvidenceType
		conf        float64
		attachments int
		want        models.AppealOutcome
		wantActions []models.Action
		wantFP      *bool
	}{
		{
			name: "strong new evidence approves", evidence: models.EvidenceNewEvidence, conf: 1, attachments: 5,
			want:        models.AppealOutcomeApproved,
			wantActions: []models.Action{models.ActionReversePenalty, models.ActionRestoreResults, models.ActionClearRecord},
			wantFP:      boolPtr(true),
		},
		{
			name: "middling technical claim modifies", evidence: models.EvidenceTechnicalIssue, conf: 0.6, attachments: 1,
			want:        models.AppealOutcomeModified,
			wantActions: []models.Action{models.ActionReducePenalty, models.ActionRestoreResults},
		},
		{
			name: "weak context claim rejects", evidence: models.EvidenceContextExplanation, conf: 0.3,
			want:   models.AppealOutcomeRejected,
			wantFP: boolPtr(false),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			c := f.seedCase(t, "c1", models.VerdictConfirmedCheat)
			a := f.submit(t, request(c.ID, tt.evidence, tt.conf, tt.attachments))
			if _, err := f.m.AssignAppeal(ctx, a.ID, "r2"); err != nil {
				t.Fatal(err)
			}

			got, err := f.m.ReviewAppeal(ctx, a.ID, "r2", ReviewInput{Reasoning: reviewReasoning})
			if err != nil {
				t.Fatalf("ReviewAppeal() error = %v", err)
			}
			if got.Decision.Outcome != tt.want || got.Status != tt.want.Status() {
				t.Fatalf("outcome = %s status = %s, want %s (score %.3f)", got.Decision.Outcome, got.Status, tt.want, got.Decision.Analysis.OverallScore)
			}
			if got.Decision.Overridden || got.Decision.Automatic {
				t.Errorf("decision flags = %+v", got.Decision)
			}
			if got.Decision.Analysis == nil {
				t.Fatal("analysis missing")
			}

			actions := f.pen.actions()
			if len(actions) != len(tt.wantActions) {
				t.Fatalf("actions = %v, want %v", actions, tt.wantActions)
			}
			for i := range tt.wantActions {
				if actions[i] != tt.wantActions[i] {
					t.Errorf("actions[%d] = %s, want %s", i, actions[i], tt.wantActions[i])
				}
			}

			if tt.wantFP == nil {
				if len(f.fb.signals) != 0 {
					t.Errorf("unexpected feedback %+v", f.fb.signals)
				}
			} else if len(f.fb.signals) != 1 || f.fb.signals[0].FalsePositive != *tt.wantFP {
				t.Errorf("feedback = %+v, want false_positive=%v", f.fb.signals, *tt.wantFP)
			}
			if f.notes.count(models.NotifyAppealDecided, "u1") != 1 {
				t.Error("appellant was not told the outcome")
			}
		})
	}
}

func TestReviewAppealModifiedPenalty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seedCase(t, "c1", models.VerdictConfirmedCheat)
	a := f.submit(t, request(c.ID, models.EvidenceTechnicalIssue, 0.6, 1))
	if _, err := f.m.AssignAppeal(ctx, a.ID, "r2"); err != nil {
		t.Fatal(err)
	}
	got, err := f.m.ReviewAppeal(ctx, a.ID, "r2", ReviewInput{Reasoning: reviewReasoning})
	if err != nil {
		t.Fatal(err)
	}
	mp := got.Decision.ModifiedPenalty
	if mp == nil || mp.BanDays != 7 || mp.InvalidationScope != models.ScopeSession || !mp.PartialRestore {
		t.Fatalf("ModifiedPenalty = %+v, want 7 days, session scope", mp)
	}
	if f.pen.cmds[0].BanDays != 7 {
		t.Errorf("reduce command = %+v", f.pen.cmds[0])
	}
	if !got.Decision.FollowUpRequired {
		t.Error("modified appeals require follow-up")
	}
}

func TestReviewAppealOverride(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seedCase(t, "c1", models.VerdictConfirmedCheat)
	a := f.submit(t, request(c.ID, models.EvidenceContextExplanation, 0.3, 0))
	if _, err := f.m.AssignAppeal(ctx, a.ID, "r2"); err != nil {
		t.Fatal(err)
	}

	approved := models.AppealOutcomeApproved
	conf := 0.8
	got, err := f.m.ReviewAppeal(ctx, a.ID, "r2", ReviewInput{
		Reasoning:  "Tournament logs confirm the player was on stage and supervised.",
		Outcome:    &approved,
		Confidence: &conf,
		Compensate: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Decision.Outcome != models.AppealOutcomeApproved || !got.Decision.Overridden {
		t.Fatalf("decision = %+v, want overridden approval", got.Decision)
	}
	if got.Decision.Confidence != 0.8 || !got.Decision.CompensationOwed {
		t.Errorf("decision = %+v", got.Decision)
	}
	actions := f.pen.actions()
	if len(actions) != 4 || actions[3] != models.ActionCompensate {
		t.Errorf("actions = %v, want compensation last", actions)
	}
}

func TestReviewAppealRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seedCase(t, "c1", models.VerdictConfirmedCheat)
	a := f.submit(t, request(c.ID, models.EvidenceTechnicalIssue, 0.5, 0))

	_, err := f.m.ReviewAppeal(ctx, a.ID, "r2", ReviewInput{Reasoning: reviewReasoning})
	assertReason(t, err, models.ErrInvalidState, models.ReasonIllegalTransition)

	if _, err := f.m.AssignAppeal(ctx, a.ID, "r2"); err != nil {
		t.Fatal(err)
	}
	_, err = f.m.ReviewAppeal(ctx, a.ID, "r3", ReviewInput{Reasoning: reviewReasoning})
	assertReason(t, err, models.ErrInvalidState, models.ReasonNotAssignedReviewer)

	_, err = f.m.ReviewAppeal(ctx, a.ID, "r2", ReviewInput{Reasoning: "fine"})
	assertReason(t, err, models.ErrValidationFailure, models.ReasonInvalidDecision)

	bogus := models.AppealOutcome("pardoned")
	_, err = f.m.ReviewAppeal(ctx, a.ID, "r2", ReviewInput{Reasoning: reviewReasoning, Outcome: &bogus})
	assertReason(t, err, models.ErrValidationFailure, models.ReasonInvalidDecision)
}

func TestWithdrawAppeal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seedCase(t, "c1", models.VerdictConfirmedCheat)
	a := f.submit(t, request(c.ID, models.EvidenceTechnicalIssue, 0.5, 0))
	if _, err := f.m.AssignAppeal(ctx, a.ID, "r2"); err != nil {
		t.Fatal(err)
	}

	_, err := f.m.WithdrawAppeal(ctx, a.ID, "u2")
	assertReason(t, err, models.ErrEligibilityDenied, models.ReasonNotAppellant)

	got, err := f.m.WithdrawAppeal(ctx, a.ID, "u1")
	if err != nil {
		t.Fatalf("WithdrawAppeal() error = %v", err)
	}
	if got.Status != models.AppealStatusWithdrawn || got.ResolvedAt == nil {
		t.Errorf("appeal = %s resolved=%v", got.Status, got.ResolvedAt)
	}
	if f.notes.count(models.NotifyAppealWithdrawn, "r2") != 1 {
		t.Error("assigned reviewer was not notified")
	}

	_, err = f.m.WithdrawAppeal(ctx, a.ID, "u1")
	assertReason(t, err, models.ErrInvalidState, models.ReasonIllegalTransition)

	// A review racing the withdrawal loses at the state check.
	_, err = f.m.ReviewAppeal(ctx, a.ID, "r2", ReviewInput{Reasoning: reviewReasoning})
	assertReason(t, err, models.ErrInvalidState, models.ReasonIllegalTransition)
}

func TestListAppeals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.submit(t, request(f.seedCase(t, "c1", models.VerdictConfirmedCheat).ID, models.EvidenceTechnicalIssue, 0.5, 0))
	f.submit(t, request(f.seedCase(t, "c2", models.VerdictConfirmedCheat).ID, models.EvidenceProceduralError, 0.99, 0))

	open, err := f.m.ListAppeals(ctx, models.AppealFilter{Statuses: []models.AppealStatus{models.AppealStatusSubmitted}})
	if err != nil {
		t.Fatalf("ListAppeals() error = %v", err)
	}
	if len(open) != 1 || open[0].ID != a.ID {
		t.Errorf("open appeals = %d, want only %s", len(open), a.ID)
	}

	got, err := f.m.GetAppeal(ctx, a.ID)
	if err != nil || got.ID != a.ID {
		t.Errorf("GetAppeal() = %v, %v", got, err)
	}
}

func boolPtr(b bool) *bool { return &b }
