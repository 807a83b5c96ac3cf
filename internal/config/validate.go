// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package config

import (
	"fmt"

	"github.com/tomtom215/fairplay/internal/validation"
)

// minJWTSecretLength matches the HS256 key size.
const minJWTSecretLength = 32

// Validate checks field tags and cross-field constraints.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	return c.validateSecurity()
}

func (c *Config) validateDetection() error {
	d := c.Detection
	if !(d.MediumConfidence < d.HighConfidence && d.HighConfidence < d.CriticalConfidence) {
		return fmt.Errorf("detection thresholds must satisfy medium < high < critical (got %.2f, %.2f, %.2f)",
			d.MediumConfidence, d.HighConfidence, d.CriticalConfidence)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Driver == "duckdb" && c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required when DATABASE_DRIVER=duckdb")
	}
	if c.Backup.Enabled {
		if c.Database.Driver != "duckdb" {
			return fmt.Errorf("BACKUP_ENABLED requires DATABASE_DRIVER=duckdb")
		}
		if c.Backup.Dir == "" {
			return fmt.Errorf("BACKUP_DIR is required when BACKUP_ENABLED=true")
		}
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.AuthMode != "jwt" {
		return nil
	}
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters when AUTH_MODE=jwt", minJWTSecretLength)
	}
	return nil
}
