// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/fairplay/internal/analytics"
	"github.com/tomtom215/fairplay/internal/api"
	"github.com/tomtom215/fairplay/internal/appeal"
	"github.com/tomtom215/fairplay/internal/audit"
	"github.com/tomtom215/fairplay/internal/auth"
	"github.com/tomtom215/fairplay/internal/authz"
	"github.com/tomtom215/fairplay/internal/backup"
	"github.com/tomtom215/fairplay/internal/community"
	"github.com/tomtom215/fairplay/internal/config"
	"github.com/tomtom215/fairplay/internal/detection"
	"github.com/tomtom215/fairplay/internal/enforcement"
	"github.com/tomtom215/fairplay/internal/events"
	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/notify"
	"github.com/tomtom215/fairplay/internal/pipeline"
	"github.com/tomtom215/fairplay/internal/review"
	"github.com/tomtom215/fairplay/internal/store"
	"github.com/tomtom215/fairplay/internal/supervisor"
	"github.com/tomtom215/fairplay/internal/supervisor/services"
	"github.com/tomtom215/fairplay/internal/websocket"
)

// app holds the wired components that the supervisor tree runs.
type app struct {
	bus        *events.Bus
	dispatcher *notify.Dispatcher
	auditLog   *audit.Logger
	feed       *websocket.Hub
	backups    *backup.Manager
	aggregator *analytics.Aggregator
	reviews    *review.Manager
	appeals    *appeal.Manager
	reports    *community.Manager
	pipeline   *pipeline.Pipeline
	handler    http.Handler
	server     *http.Server
}

// newApp wires every component on top of st. Nothing is started.
func newApp(ctx context.Context, cfg *config.Config, st store.Store) (*app, error) {
	aggregator := analytics.NewAggregator()
	replayed, err := aggregator.Replay(ctx, st, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("replay analytics: %w", err)
	}
	logging.Info().Int("events", replayed).Msg("Analytics state restored")

	feed := websocket.NewHub()
	bus := events.NewBus(events.DefaultConfig(), st, aggregator, feed)
	dispatcher := notify.NewFromConfig(cfg.Notifications)
	executor := enforcement.NewExecutor(st)
	feedback := detection.NewFeedbackRecorder(st, bus)

	reviews := review.NewManager(st, st, cfg.Review, review.Options{
		Penalties: executor,
		Notifier:  dispatcher,
		Feedback:  feedback,
		Events:    bus,
	})
	appeals := appeal.NewManager(st, st, st, cfg.Appeals, appeal.Options{
		Penalties: executor,
		Notifier:  dispatcher,
		Feedback:  feedback,
		Events:    bus,
	})
	reports := community.NewManager(st, st, cfg.Community, community.Options{
		Reputation: community.NewHistoryReputation(st),
		Opener:     reviews,
		Penalties:  executor,
		Notifier:   dispatcher,
		Events:     bus,
	})

	engine := detection.NewEngineFromConfig(cfg.Detection, st)
	validator := pipeline.New(detection.NewCollector(), engine, st, reviews, bus)

	auditLog := audit.NewLogger(audit.NewMemoryStore(cfg.Audit.MaxEvents), cfg.Audit)

	authn, err := auth.NewMiddleware(cfg.Security)
	if err != nil {
		return nil, fmt.Errorf("configure authentication: %w", err)
	}
	authn.WithAuditor(auditLog)
	enforcer, err := authz.NewEnforcer(cfg.Security.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("configure authorization: %w", err)
	}

	h := api.NewHandler(api.Deps{
		Pipeline:    validator,
		Detections:  st,
		Cases:       reviews,
		Appeals:     appeals,
		Reports:     reports,
		Analytics:   aggregator,
		Staff:       st,
		Health:      st,
		Permissions: enforcer,
		Audit:       auditLog,
		LiveFeed:    feed.Handler(cfg.Server.CORSOrigins),
	})
	router := api.NewRouter(h, authn, authz.NewMiddleware(enforcer).WithAuditor(auditLog),
		api.NewChiMiddleware(api.MiddlewareConfigFromServer(cfg.Server)))
	handler := router.Setup()

	var backups *backup.Manager
	if cfg.Backup.Enabled {
		src, ok := st.(backup.Source)
		if !ok {
			return nil, fmt.Errorf("backups need a file-backed store, got %T", st)
		}
		if backups, err = backup.NewManager(cfg.Backup, src); err != nil {
			return nil, fmt.Errorf("configure backups: %w", err)
		}
	}

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       2 * cfg.Server.WriteTimeout,
	}

	return &app{
		bus:        bus,
		dispatcher: dispatcher,
		auditLog:   auditLog,
		feed:       feed,
		backups:    backups,
		aggregator: aggregator,
		reviews:    reviews,
		appeals:    appeals,
		reports:    reports,
		pipeline:   validator,
		handler:    handler,
		server:     server,
	}, nil
}

// register adds the long-lived services to the tree. The HTTP server only
// starts listening once the event bus router is running.
func (a *app) register(tree *supervisor.SupervisorTree, cfg *config.Config) {
	tree.AddMessagingService(a.bus)
	tree.AddMessagingService(a.dispatcher)
	tree.AddMessagingService(a.feed)

	tree.AddWorkerService(a.auditLog)

	if a.backups != nil {
		tree.AddWorkerService(a.backups)
		logging.Info().Str("dir", cfg.Backup.Dir).Dur("interval", cfg.Backup.Interval).Msg("Database backups added")
	}

	if cfg.Sweeper.Enabled {
		tree.AddWorkerService(services.NewSweeperService(a.reviews, cfg.Sweeper.Interval))
		logging.Info().Dur("interval", cfg.Sweeper.Interval).Msg("Review timeout sweeper added")
	} else {
		logging.Info().Msg("Review timeout sweeper disabled")
	}

	tree.AddAPIService(services.NewHTTPServerService(a.server, cfg.Server.ShutdownTimeout).StartAfter(a.bus.Running()))
}
