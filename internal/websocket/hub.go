// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package websocket

import (
	"context"
	"slices"
	"sync"

	"github.com/tomtom215/fairplay/internal/logging"
	"github.com/tomtom215/fairplay/internal/metrics"
	"github.com/tomtom215/fairplay/internal/models"
)

// Message types for websocket communication.
const (
	MessageTypeMetricEvent = "metric_event"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
)

const broadcastBuffer = 256

// Message is one websocket frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a Hub. Nothing is delivered until Serve runs.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, broadcastBuffer),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
	}
}

// Serve runs the hub until ctx is canceled, then closes every client.
//
// Lifecycle events are drained before broadcasts so a client registered
// ahead of a message always receives it.
func (h *Hub) Serve(ctx context.Context) error {
	logging.Ctx(ctx).Info().Msg("Live feed started")
	for {
		select {
		case <-ctx.Done():
			n := h.closeAll()
			logging.Info().Str("component", "live-feed").Int("clients_closed", n).Msg("Live feed stopped")
			return ctx.Err()
		default:
		}

		select {
		case c := <-h.register:
			h.add(c)
			continue
		case c := <-h.unregister:
			h.remove(c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// String names the service for the supervisor.
func (h *Hub) String() string {
	return "live-feed"
}

// Consume broadcasts a persisted metric event. It never blocks the bus.
func (h *Hub) Consume(_ context.Context, e *models.MetricEvent) error {
	h.Broadcast(Message{Type: MessageTypeMetricEvent, Data: e})
	return nil
}

// Broadcast queues msg for every client, dropping it when the queue is full.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		metrics.LiveFeedDropped.Inc()
		logging.Warn().Str("message_type", msg.Type).Msg("Live feed queue full, dropping message")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.RecordLiveFeedClients(n)
	logging.Debug().Str("subject", c.subject).Int("total_clients", n).Msg("Live feed client connected")
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.RecordLiveFeedClients(n)
	logging.Debug().Str("subject", c.subject).Int("total_clients", n).Msg("Live feed client disconnected")
}

// deliver sends msg to clients in connection order. A client whose buffer is
// full is dropped.
func (h *Hub) deliver(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.sortedLocked() {
		select {
		case c.send <- msg:
		default:
			metrics.LiveFeedDropped.Inc()
			close(c.send)
			delete(h.clients, c)
			logging.Warn().Str("subject", c.subject).Msg("Live feed client too slow, disconnecting")
		}
	}
	metrics.RecordLiveFeedClients(len(h.clients))
}

func (h *Hub) closeAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sortedLocked()
	for _, c := range clients {
		close(c.send)
		delete(h.clients, c)
	}
	metrics.RecordLiveFeedClients(0)
	return len(clients)
}

func (h *Hub) sortedLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	slices.SortFunc(clients, func(a, b *Client) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	return clients
}
