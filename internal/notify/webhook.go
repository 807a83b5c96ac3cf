// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/fairplay/internal/config"
	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/metrics"
	"github.com/tomtom215/fairplay/internal/models"
)

const breakerName = "notification-webhook"

// ErrBreakerOpen is returned while the webhook circuit is open.
var ErrBreakerOpen = errors.New("notification webhook circuit open")

// WebhookPayload is the body POSTed for each notification.
type WebhookPayload struct {
	Event        string               `json:"event"`
	Timestamp    time.Time            `json:"timestamp"`
	Notification *models.Notification `json:"notification"`
}

// WebhookSender POSTs notifications to a single endpoint, rate limited and
// behind a circuit breaker.
type WebhookSender struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[struct{}]
}

// NewWebhookSender builds a sender from the notification config.
func NewWebhookSender(cfg config.NotificationConfig) *WebhookSender {
	metrics.SetCircuitBreakerState(breakerName, 0)

	maxFailures := cfg.BreakerMaxFailures
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.SetCircuitBreakerState(name, stateValue(to))
		},
	})

	return &WebhookSender{
		url:     cfg.WebhookURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		cb:      cb,
	}
}

// Send delivers one notification. It waits for the rate limiter and fails
// fast with ErrBreakerOpen while the endpoint is unhealthy.
func (s *WebhookSender) Send(ctx context.Context, n *models.Notification) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	_, err := s.cb.Execute(func() (struct{}, error) {
		return struct{}{}, s.post(ctx, n)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrBreakerOpen, err)
	}
	return err
}

func (s *WebhookSender) post(ctx context.Context, n *models.Notification) error {
	body, err := json.Marshal(WebhookPayload{
		Event:        string(n.Kind),
		Timestamp:    n.CreatedAt,
		Notification: n,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Fairplay-Notifier/1.0")
	req.Header.Set("X-Fairplay-Event", string(n.Kind))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
}

// LogSender writes notifications to the log. Used when no webhook is
// configured.
type LogSender struct{}

// Send logs n.
func (LogSender) Send(ctx context.Context, n *models.Notification) error {
	logging.Ctx(ctx).Info().
		Str("notification_id", n.ID).
		Str("kind", string(n.Kind)).
		Str("recipient", n.RecipientID).
		Str("entity_id", n.EntityID).
		Msg(n.Message)
	return nil
}

func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
