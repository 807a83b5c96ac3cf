// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

// Package config loads Fairplay configuration.
//
// Configuration is layered with koanf: struct defaults, then an optional
// YAML file (CONFIG_PATH or ./config.yaml), then an explicit allow-list of
// environment variables. The merged result is validated with
// go-playground/validator tags plus cross-field checks in Validate.
package config

import (
	"time"
)

// Config is the root configuration.
type Config struct {
	Server        ServerConfig       `koanf:"server"`
	Database      DatabaseConfig     `koanf:"database"`
	Logging       LoggingConfig      `koanf:"logging"`
	Detection     DetectionConfig    `koanf:"detection"`
	Review        ReviewConfig       `koanf:"review"`
	Appeals       AppealConfig       `koanf:"appeals"`
	Community     CommunityConfig    `koanf:"community"`
	Notifications NotificationConfig `koanf:"notifications"`
	Security      SecurityConfig     `koanf:"security"`
	Sweeper       SweeperConfig      `koanf:"sweeper"`
	Audit         AuditConfig        `koanf:"audit"`
	Backup        BackupConfig       `koanf:"backup"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host              string        `koanf:"host" validate:"required"`
	Port              int           `koanf:"port" validate:"gte=1,lte=65535"`
	ReadTimeout       time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// DatabaseConfig selects the persistence adapter.
type DatabaseConfig struct {
	// Driver is "duckdb" for the on-disk store or "memory" for the in-process store.
	Driver    string `koanf:"driver" validate:"oneof=duckdb memory"`
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"gte=0"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// DetectionConfig holds analyzer and severity thresholds.
type DetectionConfig struct {
	Enabled bool `koanf:"enabled"`

	CriticalConfidence float64 `koanf:"critical_confidence" validate:"gt=0,lte=1"`
	HighConfidence     float64 `koanf:"high_confidence" validate:"gt=0,lte=1"`
	MediumConfidence   float64 `koanf:"medium_confidence" validate:"gt=0,lte=1"`
	HighFlagCount      int     `koanf:"high_flag_count" validate:"gte=1"`

	MinMoves               int     `koanf:"min_moves" validate:"gte=1"`
	TimingZScoreThreshold  float64 `koanf:"timing_zscore_threshold" validate:"gt=0"`
	RegularCadenceMaxCV    float64 `koanf:"regular_cadence_max_cv" validate:"gt=0,lt=1"`
	SuperhumanIntervalMS   float64 `koanf:"superhuman_interval_ms" validate:"gt=0"`
	OptimalityThreshold    float64 `koanf:"optimality_threshold" validate:"gt=0,lte=1"`
	RepetitionThreshold    float64 `koanf:"repetition_threshold" validate:"gt=0,lte=1"`
	BaselineDeviationSigma float64 `koanf:"baseline_deviation_sigma" validate:"gt=0"`
	MinBaselineSamples     int     `koanf:"min_baseline_samples" validate:"gte=1"`

	// BaselineCacheSize of zero disables the baseline cache.
	BaselineCacheSize int           `koanf:"baseline_cache_size" validate:"gte=0"`
	BaselineCacheTTL  time.Duration `koanf:"baseline_cache_ttl" validate:"gte=0"`
}

// ReviewConfig holds case workflow limits.
type ReviewConfig struct {
	MaxLoad                   int           `koanf:"max_load" validate:"gte=1"`
	MinReasoningLength        int           `koanf:"min_reasoning_length" validate:"gte=1"`
	DefinitiveConfidenceFloor float64       `koanf:"definitive_confidence_floor" validate:"gte=0,lte=1"`
	SecondReviewConfidence    float64       `koanf:"second_review_confidence" validate:"gte=0,lte=1"`
	MaxReviewRounds           int           `koanf:"max_review_rounds" validate:"gte=2"`
	UrgentDeadline            time.Duration `koanf:"urgent_deadline" validate:"gt=0"`
	HighDeadline              time.Duration `koanf:"high_deadline" validate:"gt=0"`
	MediumDeadline            time.Duration `koanf:"medium_deadline" validate:"gt=0"`
	LowDeadline               time.Duration `koanf:"low_deadline" validate:"gt=0"`
	AppealWindow              time.Duration `koanf:"appeal_window" validate:"gt=0"`
	SimilarCaseLimit          int           `koanf:"similar_case_limit" validate:"gte=0"`
}

// AppealConfig holds appeal eligibility and adjudication settings.
type AppealConfig struct {
	MaxPerYear           int           `koanf:"max_per_year" validate:"gte=1"`
	MinReasonLength      int           `koanf:"min_reason_length" validate:"gte=1"`
	AutoApproveThreshold float64       `koanf:"auto_approve_threshold" validate:"gt=0,lte=1"`
	FeeCents             int64         `koanf:"fee_cents" validate:"gte=0"`
	WaiveFees            bool          `koanf:"waive_fees"`
	MaxLoad              int           `koanf:"max_load" validate:"gte=1"`
	UrgentSLA            time.Duration `koanf:"urgent_sla" validate:"gt=0"`
	HighSLA              time.Duration `koanf:"high_sla" validate:"gt=0"`
	NormalSLA            time.Duration `koanf:"normal_sla" validate:"gt=0"`
}

// CommunityConfig holds reporting and voting policy.
type CommunityConfig struct {
	MinReputation         float64       `koanf:"min_reputation" validate:"gte=0"`
	DailyReportLimit      int           `koanf:"daily_report_limit" validate:"gte=1"`
	MaxAbuseScore         float64       `koanf:"max_abuse_score" validate:"gt=0,lte=1"`
	VoteThreshold         int           `koanf:"vote_threshold" validate:"gte=1"`
	AgreementRatio        float64       `koanf:"agreement_ratio" validate:"gt=0.5,lte=1"`
	AutoRestrictThreshold int           `koanf:"auto_restrict_threshold" validate:"gte=1"`
	AutoRestrictWindow    time.Duration `koanf:"auto_restrict_window" validate:"gt=0"`
	AutoRestrictDuration  time.Duration `koanf:"auto_restrict_duration" validate:"gt=0"`
	ModeratorMaxLoad      int           `koanf:"moderator_max_load" validate:"gte=1"`
}

// NotificationConfig configures the webhook sink.
type NotificationConfig struct {
	WebhookURL         string        `koanf:"webhook_url" validate:"omitempty,url"`
	Timeout            time.Duration `koanf:"timeout" validate:"gt=0"`
	RatePerSecond      float64       `koanf:"rate_per_second" validate:"gt=0"`
	Burst              int           `koanf:"burst" validate:"gte=1"`
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures" validate:"gte=1"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
	QueueSize          int           `koanf:"queue_size" validate:"gte=1"`
}

// SecurityConfig configures request authentication.
type SecurityConfig struct {
	// AuthMode is "jwt" (verify bearer tokens) or "none" (trust X-User-ID headers; development only).
	AuthMode  string `koanf:"auth_mode" validate:"oneof=jwt none"`
	JWTSecret string `koanf:"jwt_secret"`
	JWTIssuer string `koanf:"jwt_issuer"`
	// PolicyPath points at a Casbin policy CSV. Empty uses the built-in policy.
	PolicyPath string `koanf:"policy_path"`
}

// SweeperConfig configures the periodic timeout sweep.
type SweeperConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
}

// AuditConfig configures the security audit trail.
type AuditConfig struct {
	Enabled         bool          `koanf:"enabled"`
	BufferSize      int           `koanf:"buffer_size" validate:"gte=1"`
	MaxEvents       int           `koanf:"max_events" validate:"gte=1"`
	Retention       time.Duration `koanf:"retention" validate:"gt=0"`
	CleanupInterval time.Duration `koanf:"cleanup_interval" validate:"gt=0"`
	// LogToStdout also writes every event through the application logger.
	LogToStdout bool `koanf:"log_to_stdout"`
}

// BackupConfig configures scheduled snapshots of the DuckDB file.
type BackupConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Dir      string        `koanf:"dir"`
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
	// Keep is how many archives survive retention. The newest are kept.
	Keep     int  `koanf:"keep" validate:"gte=1"`
	Compress bool `koanf:"compress"`
}
