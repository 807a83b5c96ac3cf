// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package appeal

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/models"
)

// Procedural floors for the original review.
const (
	minReviewTime      = 2 * time.Minute
	minReasoningLength = 50
	precedentScanLimit = 500
)

var novelty = map[models.EvidenceType]float64{
	models.EvidenceNewEvidence:        0.9,
	models.EvidenceMisidentification:  0.6,
	models.EvidenceTechnicalIssue:     0.5,
	models.EvidenceContextExplanation: 0.4,
	models.EvidenceProceduralError:    0.3,
}

// Score weights. Procedural compliance counts against the original
// decision, so it enters the score inverted.
const (
	weightStrength    = 0.35
	weightCredibility = 0.2
	weightNovelty     = 0.15
	weightProcedure   = 0.2
	weightPrecedent   = 0.1
)

// analyze scores an appeal against the case it disputes. Lookup failures
// fall back to neutral values.
func (m *Manager) analyze(ctx context.Context, a *models.Appeal, c *models.ReviewCase, newInfo bool) *models.AppealAnalysis {
	an := &models.AppealAnalysis{
		EvidenceStrength: a.EvidenceConfidence,
		Credibility:      m.credibility(ctx, a),
		Novelty:          novelty[a.Evidence.Type],
		NewInformation:   newInfo || a.Evidence.Type == models.EvidenceNewEvidence,
	}
	if an.NewInformation && an.Novelty < 0.8 {
		an.Novelty = 0.8
	}

	an.ProceduralCompliance, an.BiasIndicators = procedure(c, an)
	an.PrecedentCount, an.PrecedentApprovalRate = m.precedent(ctx, a)

	precedent := 0.5
	if an.PrecedentCount > 0 {
		precedent = an.PrecedentApprovalRate
	}
	an.OverallScore = clamp01(weightStrength*an.EvidenceStrength +
		weightCredibility*an.Credibility +
		weightNovelty*an.Novelty +
		weightProcedure*(1-an.ProceduralCompliance) +
		weightPrecedent*precedent)
	return an
}

// credibility drops with each earlier rejected appeal and with no
// attachments to back the claim.
func (m *Manager) credibility(ctx context.Context, a *models.Appeal) float64 {
	score := 1.0
	if len(a.Evidence.Attachments) == 0 {
		score -= 0.1
	}
	prior, err := m.appeals.ListAppeals(ctx, models.AppealFilter{
		UserID:   a.UserID,
		Statuses: []models.AppealStatus{models.AppealStatusRejected},
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("appeal_id", a.ID).Msg("Appeal history lookup failed")
		return clamp01(score)
	}
	for _, p := range prior {
		if p.ID != a.ID {
			score -= 0.25
		}
	}
	return clamp01(score)
}

// procedure grades the original review and fills the time and reasoning
// fields of an.
func procedure(c *models.ReviewCase, an *models.AppealAnalysis) (float64, []string) {
	compliance := 1.0
	var bias []string

	var total time.Duration
	rushed := false
	verdicts := map[models.Verdict]bool{}
	for _, r := range c.ReviewHistory {
		spent := r.TimeSpent()
		total += spent
		if spent < minReviewTime {
			rushed = true
		}
		verdicts[r.Decision.Verdict] = true
	}
	an.ReviewTimeSpentSec = total.Seconds()

	if c.FinalDecision != nil {
		an.ReasoningLength = utf8.RuneCountInString(strings.TrimSpace(c.FinalDecision.Reasoning))
		if c.FinalDecision.Confidence < 0.6 {
			compliance -= 0.2
			bias = append(bias, "low-confidence final decision")
		}
	}
	if rushed {
		compliance -= 0.3
		bias = append(bias, "rushed review")
	}
	if an.ReasoningLength < minReasoningLength {
		compliance -= 0.2
		bias = append(bias, "thin reasoning")
	}
	if len(verdicts) > 1 {
		bias = append(bias, "reviewers disagreed")
	}
	if c.Source == models.SourceCommunity && len(c.Detection.Flags.Behavioral()) == 1 {
		bias = append(bias, "community report only")
	}
	return clamp01(compliance), bias
}

// precedent measures how often resolved appeals with the same evidence
// type succeeded. A modification counts as half a success.
func (m *Manager) precedent(ctx context.Context, a *models.Appeal) (int, float64) {
	resolved, err := m.appeals.ListAppeals(ctx, models.AppealFilter{
		Statuses: []models.AppealStatus{models.AppealStatusApproved, models.AppealStatusRejected, models.AppealStatusModified},
		Limit:    precedentScanLimit,
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("appeal_id", a.ID).Msg("Appeal precedent lookup failed")
		return 0, 0
	}

	n := 0
	var wins float64
	for _, p := range resolved {
		if p.ID == a.ID || p.Evidence.Type != a.Evidence.Type {
			continue
		}
		n++
		switch p.Status {
		case models.AppealStatusApproved:
			wins++
		case models.AppealStatusModified:
			wins += 0.5
		}
	}
	if n == 0 {
		return 0, 0
	}
	return n, wins / float64(n)
}
