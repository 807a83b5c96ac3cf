// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

// Package events carries metric events from the managers to the event log
// and the analytics consumers over an in-process Watermill pub/sub.
//
// Message flow:
//
//	Manager.publish -> Bus.Publish -> gochannel topic -> Router handler
//	                                                      |
//	                                         EventLog.AppendMetricEvent
//	                                                      |
//	                                         Consumers (analytics, ...)
//
// The handler persists first and only append failures are returned to the
// router, so Retry never replays an event into the consumers twice. Messages
// that still fail after retries go to the poison topic, where they are logged
// and dropped.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/metrics"
	"github.com/tomtom215/fairplay/internal/models"
	"github.com/tomtom215/fairplay/internal/store"
)

const (
	// TopicMetricEvents carries serialized models.MetricEvent payloads.
	TopicMetricEvents = "fairplay.metric_events"
	// TopicPoison receives messages that exhausted their retries.
	TopicPoison = "fairplay.metric_events.poison"

	metadataEventType = "event_type"
)

// Consumer receives every persisted metric event.
type Consumer interface {
	Consume(ctx context.Context, e *models.MetricEvent) error
}

// Config holds router tuning.
type Config struct {
	BufferSize           int64
	CloseTimeout         time.Duration
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:           256,
		CloseTimeout:         10 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: 100 * time.Millisecond,
		RetryMaxInterval:     5 * time.Second,
		RetryMultiplier:      2.0,
	}
}

// Bus publishes metric events and runs the consuming router.
type Bus struct {
	cfg       Config
	pubsub    *gochannel.GoChannel
	log       store.EventLog
	consumers []Consumer
	logger    watermill.LoggerAdapter

	ready     chan struct{}
	readyOnce sync.Once
}

// NewBus creates a bus that persists to log and fans out to consumers.
// A nil log skips persistence.
func NewBus(cfg Config, log store.EventLog, consumers ...Consumer) *Bus {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())
	return &Bus{
		cfg: cfg,
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.BufferSize,
		}, logger),
		log:       log,
		consumers: consumers,
		logger:    logger,
		ready:     make(chan struct{}),
	}
}

// Publish serializes e onto the metric topic. It fills ID and OccurredAt
// when the caller left them empty.
func (b *Bus) Publish(ctx context.Context, e *models.MetricEvent) error {
	if e == nil {
		return errors.New("publish nil metric event")
	}
	if e.ID == "" {
		e.ID = watermill.NewUUID()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal metric event: %w", err)
	}
	msg := message.NewMessage(e.ID, payload)
	msg.Metadata.Set(metadataEventType, string(e.Type))
	msg.SetContext(ctx)

	if err := b.pubsub.Publish(TopicMetricEvents, msg); err != nil {
		return fmt.Errorf("publish metric event: %w", err)
	}
	return nil
}

// Serve builds a fresh router and runs it until ctx is canceled. A new
// router per call lets a supervisor restart the service.
func (b *Bus) Serve(ctx context.Context) error {
	router, err := b.newRouter()
	if err != nil {
		return err
	}

	go func() {
		select {
		case <-router.Running():
			b.readyOnce.Do(func() { close(b.ready) })
		case <-ctx.Done():
		}
	}()

	logging.Ctx(ctx).Info().Str("topic", TopicMetricEvents).Msg("Event bus started")
	if err := router.Run(ctx); err != nil {
		return fmt.Errorf("event router: %w", err)
	}
	return ctx.Err()
}

// Running is closed once the first router is consuming.
func (b *Bus) Running() <-chan struct{} {
	return b.ready
}

// Close shuts down the underlying pub/sub.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// String names the service for the supervisor.
func (b *Bus) String() string {
	return "event-bus"
}

func (b *Bus) newRouter() (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: b.cfg.CloseTimeout,
	}, b.logger)
	if err != nil {
		return nil, fmt.Errorf("create event router: %w", err)
	}

	poison, err := middleware.PoisonQueue(b.pubsub, TopicPoison)
	if err != nil {
		return nil, fmt.Errorf("create poison queue middleware: %w", err)
	}
	retry := middleware.Retry{
		MaxRetries:      b.cfg.RetryMaxRetries,
		InitialInterval: b.cfg.RetryInitialInterval,
		MaxInterval:     b.cfg.RetryMaxInterval,
		Multiplier:      b.cfg.RetryMultiplier,
		Logger:          b.logger,
	}
	// Outermost first: poison wraps retry, recoverer turns panics into
	// retryable errors.
	router.AddMiddleware(poison, retry.Middleware, middleware.Recoverer)

	router.AddConsumerHandler("metric_events", TopicMetricEvents, b.pubsub, b.handle)
	router.AddConsumerHandler("metric_events_poison", TopicPoison, b.pubsub, b.handlePoison)
	return router, nil
}

func (b *Bus) handle(msg *message.Message) error {
	ctx := msg.Context()
	var e models.MetricEvent
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return fmt.Errorf("decode metric event %s: %w", msg.UUID, err)
	}

	if b.log != nil {
		if err := b.log.AppendMetricEvent(ctx, &e); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				logging.Ctx(ctx).Debug().Str("event_id", e.ID).Msg("Metric event already persisted")
				return nil
			}
			return fmt.Errorf("append metric event %s: %w", e.ID, err)
		}
	}

	metrics.RecordMetricEvent(string(e.Type))
	for _, c := range b.consumers {
		if err := c.Consume(ctx, &e); err != nil {
			logging.Ctx(ctx).Warn().Err(err).
				Str("event_id", e.ID).
				Str("type", string(e.Type)).
				Msg("Metric event consumer failed")
		}
	}
	return nil
}

func (b *Bus) handlePoison(msg *message.Message) error {
	logging.Ctx(msg.Context()).Error().
		Str("message_id", msg.UUID).
		Str("type", msg.Metadata.Get(metadataEventType)).
		Str("reason", msg.Metadata.Get(middleware.ReasonForPoisonedKey)).
		Msg("Metric event dropped after retries")
	return nil
}
