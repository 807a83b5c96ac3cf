// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package review

import (
	"context"
	"fmt"
	"sort"

	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/models"
)

// precedentScanLimit bounds how many resolved cases are compared.
const precedentScanLimit = 500

var flagRisk = map[models.Flag]string{
	models.FlagTimingAnomaly:      "bursty inter-move timing",
	models.FlagRegularCadence:     "machine-regular move cadence",
	models.FlagSuperhumanSpeed:    "move speed beyond human reaction time",
	models.FlagOptimalSolution:    "solution matches the puzzle optimum",
	models.FlagNoCorrections:      "long solve without a single correction",
	models.FlagRepetitivePattern:  "repeated move sequences",
	models.FlagBaselineDeviation:  "far faster than the player's own history",
	models.FlagDeviceChange:       "solve from a previously unseen device",
	models.FlagHeadlessBrowser:    "headless browser environment",
	models.FlagAutomationDetected: "browser automation marker present",
	models.FlagCommunityReported:  "reported by other players",
}

var flagInvestigation = map[models.Flag]string{
	models.FlagTimingAnomaly:      "replay the move timeline and look for pauses around the outliers",
	models.FlagRegularCadence:     "compare cadence against the player's earlier sessions",
	models.FlagSuperhumanSpeed:    "check input events against minimum human reaction time",
	models.FlagOptimalSolution:    "check whether the solution path matches a known solver",
	models.FlagNoCorrections:      "review whether the puzzle difficulty makes an error-free solve plausible",
	models.FlagRepetitivePattern:  "look for scripted move sequences across sessions",
	models.FlagBaselineDeviation:  "review the player's recent solve history for a learning curve",
	models.FlagDeviceChange:       "compare device history and account access logs",
	models.FlagHeadlessBrowser:    "inspect the client environment report",
	models.FlagAutomationDetected: "inspect the client environment report",
	models.FlagCommunityReported:  "read the linked community reports and their evidence",
}

// analyze builds the reviewer briefing. Lookup failures degrade the
// briefing rather than failing StartReview.
func (m *Manager) analyze(ctx context.Context, c *models.ReviewCase) *models.CaseAnalysis {
	d := c.Detection
	a := &models.CaseAnalysis{
		CaseID:                 c.ID,
		RiskFactors:            []string{},
		MitigatingFactors:      []string{},
		SimilarCases:           []models.SimilarCase{},
		SuggestedInvestigation: []string{},
		GeneratedAt:            m.now().UTC(),
	}

	seenStep := map[string]bool{}
	for _, f := range d.Flags {
		if desc, ok := flagRisk[f]; ok {
			a.RiskFactors = append(a.RiskFactors, desc)
		}
		if step, ok := flagInvestigation[f]; ok && !seenStep[step] {
			seenStep[step] = true
			a.SuggestedInvestigation = append(a.SuggestedInvestigation, step)
		}
	}
	if d.Confidence > 0.7 {
		a.RiskFactors = append(a.RiskFactors, fmt.Sprintf("high detection confidence (%.2f)", d.Confidence))
	}
	if n := len(c.LinkedReports); n > 0 {
		a.RiskFactors = append(a.RiskFactors, fmt.Sprintf("%d linked community report(s)", n))
	}

	behavioral := d.Flags.Behavioral()
	if !d.Flags.AnyAutomation() {
		a.MitigatingFactors = append(a.MitigatingFactors, "no automation markers")
	}
	if d.Confidence < 0.5 {
		a.MitigatingFactors = append(a.MitigatingFactors, fmt.Sprintf("moderate detection confidence (%.2f)", d.Confidence))
	}
	if len(behavioral) == 1 {
		a.MitigatingFactors = append(a.MitigatingFactors, "single independent signal")
	}
	if d.Flags.Has(models.FlagInsufficientTelemetry) {
		a.MitigatingFactors = append(a.MitigatingFactors, "telemetry was incomplete")
	}
	for _, r := range c.ReviewHistory {
		if r.Decision.Verdict == models.VerdictLegitimate {
			a.MitigatingFactors = append(a.MitigatingFactors, "an earlier review of this case found the play legitimate")
			break
		}
	}

	resolved, err := m.cases.ListCases(ctx, models.CaseFilter{
		Statuses: []models.CaseStatus{models.CaseStatusCompleted},
		Limit:    precedentScanLimit,
		OrderBy:  "updated_at",
		OrderDir: "desc",
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("case_id", c.ID).Msg("Precedent lookup failed")
	}

	priorLegit := 0
	for _, other := range resolved {
		if other.ID == c.ID || other.FinalDecision == nil {
			continue
		}
		if other.UserID == c.UserID && other.FinalDecision.Verdict == models.VerdictLegitimate {
			priorLegit++
		}
		if sim := jaccard(behavioral, other.Detection.Flags.Behavioral()); sim > 0 {
			a.SimilarCases = append(a.SimilarCases, models.SimilarCase{
				CaseID:     other.ID,
				Verdict:    other.FinalDecision.Verdict,
				Similarity: sim,
			})
		}
	}
	if priorLegit > 0 {
		a.MitigatingFactors = append(a.MitigatingFactors, fmt.Sprintf("%d prior case(s) for this player closed as legitimate", priorLegit))
	}

	sort.Slice(a.SimilarCases, func(i, j int) bool {
		if a.SimilarCases[i].Similarity != a.SimilarCases[j].Similarity {
			return a.SimilarCases[i].Similarity > a.SimilarCases[j].Similarity
		}
		return a.SimilarCases[i].CaseID < a.SimilarCases[j].CaseID
	})
	if limit := m.cfg.SimilarCaseLimit; len(a.SimilarCases) > limit {
		a.SimilarCases = a.SimilarCases[:limit]
	}

	a.RecommendedVerdict = recommendVerdict(d, a.SimilarCases)
	return a
}

// recommendVerdict starts from the detection and defers to precedent when
// at least three similar cases agree strongly.
func recommendVerdict(d models.DetectionResult, similar []models.SimilarCase) models.Verdict {
	var verdict models.Verdict
	switch {
	case d.Confidence > 0.9 && d.Flags.AnyAutomation():
		verdict = models.VerdictConfirmedCheat
	case d.Confidence > 0.7:
		verdict = models.VerdictSuspicious
	case d.Confidence < 0.4:
		verdict = models.VerdictLegitimate
	default:
		verdict = models.VerdictInconclusive
	}

	if len(similar) < 3 {
		return verdict
	}
	weights := map[models.Verdict]float64{}
	var total float64
	for _, s := range similar {
		weights[s.Verdict] += s.Similarity
		total += s.Similarity
	}
	for _, v := range []models.Verdict{models.VerdictConfirmedCheat, models.VerdictSuspicious, models.VerdictLegitimate, models.VerdictInconclusive} {
		if weights[v]/total >= 0.6 {
			return v
		}
	}
	return verdict
}

// jaccard is |a∩b|/|a∪b| over two flag sets.
func jaccard(a, b models.Flags) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for _, f := range a {
		if b.Has(f) {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
