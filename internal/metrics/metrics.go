// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

// Package metrics defines the Prometheus instruments for Fairplay.
//
// Instruments are package globals registered through promauto. Callers use
// the Record* helpers so label sets stay consistent.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Storage
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fairplay_db_query_duration_seconds",
			Help:    "Duration of store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_db_query_errors_total",
			Help: "Total number of failed store queries",
		},
		[]string{"operation", "table"},
	)

	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fairplay_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fairplay_api_active_requests",
			Help: "Number of in-flight API requests",
		},
	)

	// Detection
	DetectionEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_detection_evaluations_total",
			Help: "Total number of evidence bundles evaluated, by resulting severity",
		},
		[]string{"severity", "flagged"},
	)

	DetectionFlags = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_detection_flags_total",
			Help: "Total number of flags raised, by flag",
		},
		[]string{"flag"},
	)

	DetectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fairplay_detection_duration_seconds",
			Help:    "Time spent evaluating one evidence bundle",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	BaselineCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_detection_baseline_cache_lookups_total",
			Help: "Baseline cache lookups by result (hit or miss)",
		},
		[]string{"result"},
	)

	// Review cases
	CaseTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_case_transitions_total",
			Help: "Total number of review case status transitions",
		},
		[]string{"from", "to"},
	)

	CaseVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_case_verdicts_total",
			Help: "Total number of completed cases by final verdict",
		},
		[]string{"verdict"},
	)

	CaseAssignmentFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_case_assignment_failures_total",
			Help: "Total number of assignment attempts that left a case pending",
		},
		[]string{"reason"},
	)

	CaseTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fairplay_case_timeouts_total",
			Help: "Total number of cases escalated by the timeout sweep",
		},
	)

	// Appeals
	AppealsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_appeals_submitted_total",
			Help: "Total number of appeals submitted by evidence type",
		},
		[]string{"evidence_type"},
	)

	AppealOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_appeal_outcomes_total",
			Help: "Total number of resolved appeals by outcome",
		},
		[]string{"outcome", "automatic"},
	)

	// Community
	ReportsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_reports_submitted_total",
			Help: "Total number of community reports by type",
		},
		[]string{"type", "manual_review"},
	)

	ReportVotes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_report_votes_total",
			Help: "Total number of community votes by option",
		},
		[]string{"option"},
	)

	ReportConsensus = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_report_consensus_total",
			Help: "Total number of reports that reached a vote outcome",
		},
		[]string{"outcome"},
	)

	RestrictionsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_restrictions_applied_total",
			Help: "Total number of restrictions applied by kind and source",
		},
		[]string{"kind", "source"},
	)

	// Domain errors returned to callers
	DomainErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_domain_errors_total",
			Help: "Total number of rejected operations by kind and reason",
		},
		[]string{"component", "kind", "reason"},
	)

	// Notifications
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_notifications_total",
			Help: "Total number of notification deliveries by kind and result",
		},
		[]string{"kind", "result"},
	)

	NotificationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fairplay_notification_queue_depth",
			Help: "Notifications waiting for delivery",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fairplay_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Analytics
	FalsePositiveRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fairplay_false_positive_rate",
			Help: "Share of flagged case outcomes later judged legitimate or overturned on appeal",
		},
	)

	FalseNegativeRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fairplay_false_negative_rate",
			Help: "Share of confirmed cheats that were first surfaced by the community",
		},
	)

	MetricEventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_metric_events_consumed_total",
			Help: "Total number of analytics events consumed by type",
		},
		[]string{"type"},
	)

	// Audit
	AuditEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_audit_events_total",
			Help: "Audit events by type and result (recorded, dropped, error)",
		},
		[]string{"type", "result"},
	)

	// Live feed
	LiveFeedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fairplay_live_feed_clients",
			Help: "Staff websocket clients connected to the live feed",
		},
	)

	LiveFeedDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fairplay_live_feed_dropped_total",
			Help: "Live feed messages dropped because a buffer was full",
		},
	)

	// Sweeper
	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairplay_sweep_runs_total",
			Help: "Total number of timeout sweeps by result",
		},
		[]string{"result"},
	)
)

// RecordDBQuery records one store query.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records one HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// RecordDetection records one evaluation and its flags.
func RecordDetection(severity string, flagged bool, flags []string, duration time.Duration) {
	DetectionEvaluations.WithLabelValues(severity, strconv.FormatBool(flagged)).Inc()
	for _, f := range flags {
		DetectionFlags.WithLabelValues(f).Inc()
	}
	DetectionDuration.Observe(duration.Seconds())
}

// RecordBaselineCacheLookup records one baseline cache hit or miss.
func RecordBaselineCacheLookup(hit bool) {
	if hit {
		BaselineCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	BaselineCacheLookups.WithLabelValues("miss").Inc()
}

// RecordCaseTransition records a case status change.
func RecordCaseTransition(from, to string) {
	CaseTransitions.WithLabelValues(from, to).Inc()
}

// RecordCaseVerdict records a completed case.
func RecordCaseVerdict(verdict string) {
	CaseVerdicts.WithLabelValues(verdict).Inc()
}

// RecordAssignmentFailure records an assignment that left a case pending.
func RecordAssignmentFailure(reason string) {
	CaseAssignmentFailures.WithLabelValues(reason).Inc()
}

// RecordAppealSubmitted records a new appeal.
func RecordAppealSubmitted(evidenceType string) {
	AppealsSubmitted.WithLabelValues(evidenceType).Inc()
}

// RecordAppealOutcome records a resolved appeal.
func RecordAppealOutcome(outcome string, automatic bool) {
	AppealOutcomes.WithLabelValues(outcome, strconv.FormatBool(automatic)).Inc()
}

// RecordReport records a new community report.
func RecordReport(reportType string, manualReview bool) {
	ReportsSubmitted.WithLabelValues(reportType, strconv.FormatBool(manualReview)).Inc()
}

// RecordVote records a community vote.
func RecordVote(option string) {
	ReportVotes.WithLabelValues(option).Inc()
}

// RecordConsensus records a vote outcome.
func RecordConsensus(outcome string) {
	ReportConsensus.WithLabelValues(outcome).Inc()
}

// RecordRestriction records an applied restriction.
func RecordRestriction(kind, source string) {
	RestrictionsApplied.WithLabelValues(kind, source).Inc()
}

// RecordDomainError records a rejected operation.
func RecordDomainError(component, kind, reason string) {
	DomainErrors.WithLabelValues(component, kind, reason).Inc()
}

// RecordNotification records a delivery attempt. result is sent, failed or dropped.
func RecordNotification(kind, result string) {
	NotificationsSent.WithLabelValues(kind, result).Inc()
}

// SetCircuitBreakerState records a breaker transition.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// SetAccuracyRates publishes the latest analytics snapshot.
func SetAccuracyRates(falsePositive, falseNegative float64) {
	FalsePositiveRate.Set(falsePositive)
	FalseNegativeRate.Set(falseNegative)
}

// RecordMetricEvent records one consumed analytics event.
func RecordMetricEvent(eventType string) {
	MetricEventsConsumed.WithLabelValues(eventType).Inc()
}

// RecordSweep records one timeout sweep. escalated is the number of cases moved.
func RecordSweep(escalated int, err error) {
	if err != nil {
		SweepRuns.WithLabelValues("error").Inc()
		return
	}
	SweepRuns.WithLabelValues("ok").Inc()
	CaseTimeouts.Add(float64(escalated))
}

// RecordAuditEvent records the fate of one audit event.
func RecordAuditEvent(eventType, result string) {
	AuditEvents.WithLabelValues(eventType, result).Inc()
}

// RecordLiveFeedClients sets the number of connected live feed clients.
func RecordLiveFeedClients(n int) {
	LiveFeedClients.Set(float64(n))
}
