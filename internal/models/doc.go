// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

/*
Package models defines the data structures shared by the Fairplay trust and
safety components.

Model groups:

 1. Detection: EvidenceBundle, Move, DetectionResult, Flag, Severity.
    A bundle is immutable once collected; a result is produced once per
    evaluation and only read afterwards.

 2. Review: ReviewCase, Workflow, ReviewDecision, ReviewRecord, Escalation,
    CaseAnalysis. Case status follows
    pending -> assigned -> in_review -> {completed | escalated | pending_additional_review}
    and the transition table lives in CanTransition.

 3. Appeals: Appeal, AppealEvidence, AppealDecision, AppealAnalysis.

 4. Community: CommunityReport, Vote, ReportResolution.

 5. Staff and enforcement: Reviewer, Restriction, PenaltyCommand.

 6. Analytics: MetricEvent, an immutable record written by the managers and
    aggregated downstream.

 7. API envelope: APIResponse, APIError, Metadata.

Every domain failure is a *Error carrying one of five kinds (NotFound,
InvalidState, ValidationFailure, EligibilityDenied, CapacityExceeded) and a
machine-checkable Reason. Callers test kinds with errors.Is against the
Err* sentinels:

	if errors.Is(err, models.ErrCapacityExceeded) {
	    // leave the case pending
	}
*/
package models
