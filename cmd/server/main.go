// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

// Package main is the entry point for the Fairplay server.
//
// Fairplay screens puzzle solutions for cheating, routes flagged results
// through human review, and handles appeals and community reports.
//
// # Startup Order
//
//  1. Configuration: defaults, optional config.yaml, then environment (Koanf v2)
//  2. Logging: zerolog, bridged to slog for the supervisor
//  3. Store: DuckDB on disk, or the in-memory store for development
//  4. Analytics: counters rebuilt from the persisted metric event log
//  5. Domain: detection engine, review, appeal and community managers
//  6. HTTP: Chi router with JWT authentication and Casbin authorization
//  7. Supervisor tree: event bus, notification dispatcher, live feed, audit logger,
//     database backups, timeout sweeper, HTTP server
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context. Every supervised service
// then gets Server.ShutdownTimeout to stop.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/fairplay/internal/config"
	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/store"
	"github.com/tomtom215/fairplay/internal/supervisor"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Service:   "fairplay",
		Version:   version,
	})

	logging.Info().
		Str("db_driver", cfg.Database.Driver).
		Str("db_path", cfg.Database.Path).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("detection_enabled", cfg.Detection.Enabled).
		Msg("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()
	logging.Info().Msg("Store initialized")

	app, err := newApp(ctx, cfg, st)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to wire application")
		return
	}
	defer func() {
		if err := app.bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		return
	}
	app.register(tree, cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", app.server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Fairplay stopped")
}
