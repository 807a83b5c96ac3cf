// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fairplay/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// sliceConfigPaths are comma-separated when supplied through env vars.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// Default returns the built-in configuration without consulting files or
// the environment.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8460,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
		},
		Database: DatabaseConfig{
			Driver:    "duckdb",
			Path:      "/data/fairplay.duckdb",
			MaxMemory: "1GB",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Detection: DetectionConfig{
			Enabled:                true,
			CriticalConfidence:     0.9,
			HighConfidence:         0.7,
			MediumConfidence:       0.4,
			HighFlagCount:          3,
			MinMoves:               5,
			TimingZScoreThreshold:  3.0,
			RegularCadenceMaxCV:    0.08,
			SuperhumanIntervalMS:   120,
			OptimalityThreshold:    0.98,
			RepetitionThreshold:    0.6,
			BaselineDeviationSigma: 3.0,
			MinBaselineSamples:     5,
			BaselineCacheSize:      10000,
			BaselineCacheTTL:       5 * time.Minute,
		},
		Review: ReviewConfig{
			MaxLoad:                   10,
			MinReasoningLength:        20,
			DefinitiveConfidenceFloor: 0.4,
			SecondReviewConfidence:    0.7,
			MaxReviewRounds:           4,
			UrgentDeadline:            4 * time.Hour,
			HighDeadline:              12 * time.Hour,
			MediumDeadline:            24 * time.Hour,
			LowDeadline:               72 * time.Hour,
			AppealWindow:              7 * 24 * time.Hour,
			SimilarCaseLimit:          5,
		},
		Appeals: AppealConfig{
			MaxPerYear:           3,
			MinReasonLength:      50,
			AutoApproveThreshold: 0.9,
			FeeCents:             500,
			WaiveFees:            true,
			MaxLoad:              10,
			UrgentSLA:            24 * time.Hour,
			HighSLA:              72 * time.Hour,
			NormalSLA:            7 * 24 * time.Hour,
		},
		Community: CommunityConfig{
			MinReputation:         10,
			DailyReportLimit:      10,
			MaxAbuseScore:         0.7,
			VoteThreshold:         3,
			AgreementRatio:        0.6,
			AutoRestrictThreshold: 5,
			AutoRestrictWindow:    24 * time.Hour,
			AutoRestrictDuration:  24 * time.Hour,
			ModeratorMaxLoad:      20,
		},
		Notifications: NotificationConfig{
			Timeout:            5 * time.Second,
			RatePerSecond:      10,
			Burst:              20,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
			QueueSize:          1000,
		},
		Security: SecurityConfig{
			AuthMode:  "jwt",
			JWTIssuer: "fairplay",
		},
		Sweeper: SweeperConfig{
			Enabled:  true,
			Interval: 5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:         true,
			BufferSize:      1000,
			MaxEvents:       10000,
			Retention:       90 * 24 * time.Hour,
			CleanupInterval: time.Hour,
		},
		Backup: BackupConfig{
			Dir:      "/data/backups",
			Interval: 24 * time.Hour,
			Keep:     7,
			Compress: true,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, in increasing priority.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings is the allow-list of environment variables. Unlisted
// variables are ignored so unrelated environment cannot leak into config.
var envMappings = map[string]string{
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",

	"database_driver":   "database.driver",
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"detection_enabled":             "detection.enabled",
	"detection_critical_confidence": "detection.critical_confidence",
	"detection_high_confidence":     "detection.high_confidence",
	"detection_medium_confidence":   "detection.medium_confidence",
	"detection_high_flag_count":     "detection.high_flag_count",
	"detection_min_moves":           "detection.min_moves",
	"detection_baseline_cache_size": "detection.baseline_cache_size",
	"detection_baseline_cache_ttl":  "detection.baseline_cache_ttl",

	"review_max_load":                    "review.max_load",
	"review_min_reasoning_length":        "review.min_reasoning_length",
	"review_definitive_confidence_floor": "review.definitive_confidence_floor",
	"review_second_review_confidence":    "review.second_review_confidence",
	"review_max_rounds":                  "review.max_review_rounds",
	"review_appeal_window":               "review.appeal_window",

	"appeal_max_per_year":           "appeals.max_per_year",
	"appeal_min_reason_length":      "appeals.min_reason_length",
	"appeal_auto_approve_threshold": "appeals.auto_approve_threshold",
	"appeal_fee_cents":              "appeals.fee_cents",
	"appeal_waive_fees":             "appeals.waive_fees",
	"appeal_max_load":               "appeals.max_load",

	"community_min_reputation":          "community.min_reputation",
	"community_daily_report_limit":      "community.daily_report_limit",
	"community_max_abuse_score":         "community.max_abuse_score",
	"community_vote_threshold":          "community.vote_threshold",
	"community_agreement_ratio":         "community.agreement_ratio",
	"community_auto_restrict_threshold": "community.auto_restrict_threshold",
	"community_auto_restrict_window":    "community.auto_restrict_window",
	"community_auto_restrict_duration":  "community.auto_restrict_duration",
	"community_moderator_max_load":      "community.moderator_max_load",

	"webhook_url":                  "notifications.webhook_url",
	"webhook_timeout":              "notifications.timeout",
	"webhook_rate_per_second":      "notifications.rate_per_second",
	"webhook_burst":                "notifications.burst",
	"webhook_breaker_max_failures": "notifications.breaker_max_failures",
	"webhook_breaker_timeout":      "notifications.breaker_timeout",
	"notification_queue_size":      "notifications.queue_size",

	"auth_mode":         "security.auth_mode",
	"jwt_secret":        "security.jwt_secret",
	"jwt_issuer":        "security.jwt_issuer",
	"authz_policy_path": "security.policy_path",

	"sweeper_enabled":  "sweeper.enabled",
	"sweeper_interval": "sweeper.interval",

	"audit_enabled":          "audit.enabled",
	"audit_buffer_size":      "audit.buffer_size",
	"audit_max_events":       "audit.max_events",
	"audit_retention":        "audit.retention",
	"audit_cleanup_interval": "audit.cleanup_interval",
	"audit_log_to_stdout":    "audit.log_to_stdout",

	"backup_enabled":  "backup.enabled",
	"backup_dir":      "backup.dir",
	"backup_interval": "backup.interval",
	"backup_keep":     "backup.keep",
	"backup_compress": "backup.compress",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
