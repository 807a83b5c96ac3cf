// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package community

import (
	"context"
	"time"

	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/metrics"
	"github.com/tomtom215/fairplay/internal/models"
)

// VoteOnReport records one community vote. The vote that reaches the
// threshold settles the consensus and triggers its policy action.
func (m *Manager) VoteOnReport(ctx context.Context, reportID, voterID string, option models.VoteOption) (*models.CommunityReport, error) {
	if voterID == "" || !option.Castable() {
		return nil, models.NewValidationFailure(models.ReasonInvalidVote, "vote must be cheat, suspicious or legitimate")
	}
	r, err := m.reports.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if r.Status != models.ReportStatusOpenForVote {
		return nil, models.NewInvalidState(models.ReasonVotingClosed, "report %s is %s", r.ID, r.Status)
	}
	if voterID == r.ReporterUserID || voterID == r.ReportedUserID {
		return nil, models.NewEligibilityDenied(models.ReasonInvalidVote, "parties to report %s cannot vote on it", r.ID)
	}
	if r.HasVoted(voterID) {
		return nil, models.NewEligibilityDenied(models.ReasonDuplicateVote, "%s already voted on report %s", voterID, r.ID)
	}

	now := m.now().UTC()
	r.Votes = append(r.Votes, models.Vote{VoterID: voterID, Option: option, CastAt: now})
	r.UpdatedAt = now

	if len(r.Votes) < m.cfg.VoteThreshold {
		if err := m.reports.UpdateReport(ctx, r); err != nil {
			return nil, err
		}
		metrics.RecordVote(string(option))
		logging.Ctx(ctx).Debug().
			Str("report_id", r.ID).
			Str("voter_id", voterID).
			Int("votes", len(r.Votes)).
			Msg("Vote recorded")
		return r, nil
	}

	consensus := Tally(r.Votes, m.cfg.AgreementRatio)
	return m.settle(ctx, r, voterID, option, consensus, now)
}

// Tally returns the option holding at least ratio of votes, or
// inconclusive when no option does.
func Tally(votes []models.Vote, ratio float64) models.VoteOption {
	if len(votes) == 0 {
		return models.VoteInconclusive
	}
	counts := make(map[models.VoteOption]int, 3)
	for _, v := range votes {
		counts[v.Option]++
	}
	best, bestN, tied := models.VoteInconclusive, 0, false
	for _, opt := range []models.VoteOption{models.VoteCheat, models.VoteSuspicious, models.VoteLegitimate} {
		switch n := counts[opt]; {
		case n > bestN:
			best, bestN, tied = opt, n, false
		case n == bestN && n > 0:
			tied = true
		}
	}
	if tied || float64(bestN)/float64(len(votes)) < ratio {
		return models.VoteInconclusive
	}
	return best
}

// settle persists the deciding vote with its consensus and runs the
// consensus action. A cheat consensus is stored before any case is opened,
// so a case never references a vote the store rejected.
func (m *Manager) settle(ctx context.Context, r *models.CommunityReport, voterID string, option, consensus models.VoteOption, now time.Time) (*models.CommunityReport, error) {
	c := consensus
	r.Consensus = &c
	from := r.Status

	if consensus == models.VoteCheat && m.opener != nil && r.Type.IsFairPlay() {
		if err := m.reports.UpdateReport(ctx, r); err != nil {
			return nil, err
		}
	}

	switch consensus {
	case models.VoteCheat:
		if !m.openCase(ctx, r) {
			m.queue(r)
			break
		}
		m.closeReport(r, models.ModerationOpenCase, systemActor, "community consensus: cheat", true, now)
	case models.VoteSuspicious:
		m.closeReport(r, models.ModerationWatchList, systemActor, "community consensus: suspicious", true, now)
	case models.VoteLegitimate:
		m.closeReport(r, models.ModerationDismiss, systemActor, "community consensus: legitimate", true, now)
	default:
		m.queue(r)
	}

	if err := m.reports.UpdateReport(ctx, r); err != nil {
		return nil, err
	}
	metrics.RecordVote(string(option))
	metrics.RecordConsensus(string(consensus))
	m.logTransition(ctx, r, from, voterID)
	logging.Ctx(ctx).Info().
		Str("report_id", r.ID).
		Str("consensus", string(consensus)).
		Int("votes", len(r.Votes)).
		Msg("Community consensus reached")
	m.publish(ctx, &models.MetricEvent{
		Type:      models.MetricReportConsensus,
		UserID:    r.ReportedUserID,
		ReportID:  r.ID,
		Severity:  r.Severity,
		Consensus: consensus,
		Source:    models.SourceCommunity,
	})

	switch {
	case r.Status == models.ReportStatusPendingReview:
		return m.autoAssign(ctx, r), nil
	case consensus == models.VoteSuspicious:
		m.execute(ctx, r, models.PenaltyCommand{Action: models.ActionWatchList}, systemActor)
	}
	m.notifyReporter(ctx, r)
	return r, nil
}

// openCase folds a report into a review case and links it. It reports
// false when no case could be opened.
func (m *Manager) openCase(ctx context.Context, r *models.CommunityReport) bool {
	if m.opener == nil || !r.Type.IsFairPlay() {
		return false
	}
	c, err := m.opener.OpenFromReport(ctx, r)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("report_id", r.ID).Msg("Failed to open case from consensus, report queued for moderators")
		return false
	}
	id := c.ID
	r.LinkedCaseID = &id
	return true
}

// queue sends a report to the moderator queue.
func (m *Manager) queue(r *models.CommunityReport) {
	r.Status = models.ReportStatusPendingReview
	r.RequiresManualReview = true
}
