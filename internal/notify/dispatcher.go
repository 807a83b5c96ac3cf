// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

// Package notify delivers fire-and-forget notifications to reviewers,
// moderators and players.
//
// Managers call Dispatcher.Notify, which only enqueues. The dispatcher's
// Serve loop hands each notification to a Sender (the webhook sender in
// production, the log sender otherwise). A failed delivery is logged and
// counted; it never reaches back into the workflow that raised it.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/fairplay/internal/config"
	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/metrics"
	"github.com/tomtom215/fairplay/internal/models"
)

// ErrQueueFull is returned by Notify when the buffer is saturated.
var ErrQueueFull = errors.New("notification queue full")

// Sender delivers one notification.
type Sender interface {
	Send(ctx context.Context, n *models.Notification) error
}

// Dispatcher queues notifications and delivers them in the background.
type Dispatcher struct {
	sender Sender
	queue  chan *models.Notification
	now    func() time.Time
}

// NewDispatcher creates a dispatcher with a queue of size queueSize.
func NewDispatcher(sender Sender, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		sender: sender,
		queue:  make(chan *models.Notification, queueSize),
		now:    time.Now,
	}
}

// NewFromConfig picks the webhook sender when a URL is configured and the
// log sender otherwise.
func NewFromConfig(cfg config.NotificationConfig) *Dispatcher {
	var sender Sender = LogSender{}
	if cfg.WebhookURL != "" {
		sender = NewWebhookSender(cfg)
	}
	return NewDispatcher(sender, cfg.QueueSize)
}

// Notify enqueues n without blocking. ID and CreatedAt are filled when empty.
func (d *Dispatcher) Notify(ctx context.Context, n *models.Notification) error {
	if n == nil {
		return errors.New("notify nil notification")
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.now().UTC()
	}

	select {
	case d.queue <- n:
		metrics.NotificationQueueDepth.Set(float64(len(d.queue)))
		return nil
	default:
		metrics.RecordNotification(string(n.Kind), "dropped")
		logging.Ctx(ctx).Warn().
			Str("kind", string(n.Kind)).
			Str("recipient", n.RecipientID).
			Msg("Notification queue full, dropping")
		return ErrQueueFull
	}
}

// Serve delivers queued notifications until ctx is canceled. Whatever is
// still queued at shutdown is attempted once with a short deadline.
func (d *Dispatcher) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return ctx.Err()
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

// String names the service for the supervisor.
func (d *Dispatcher) String() string {
	return "notification-dispatcher"
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case n := <-d.queue:
			d.deliver(ctx, n)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n *models.Notification) {
	metrics.NotificationQueueDepth.Set(float64(len(d.queue)))
	if err := d.sender.Send(ctx, n); err != nil {
		result := "failed"
		if errors.Is(err, ErrBreakerOpen) {
			result = "rejected"
		}
		metrics.RecordNotification(string(n.Kind), result)
		logging.Ctx(ctx).Warn().Err(err).
			Str("notification_id", n.ID).
			Str("kind", string(n.Kind)).
			Str("recipient", n.RecipientID).
			Msg("Notification delivery failed")
		return
	}
	metrics.RecordNotification(string(n.Kind), "sent")
}
