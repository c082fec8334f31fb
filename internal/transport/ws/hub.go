package ws

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Hub tracks every connected client so they can be closed on shutdown.
type Hub struct {
	clients map[*Client]struct{}
	count   atomic.Int64
	logger  *slog.Logger

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. When ctx ends every client is disconnected
// and later connections are refused.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			h.logger.Debug("ws hub: client connected",
				slog.String("user_id", client.userID),
				slog.Int("total", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.count.Store(int64(len(h.clients)))
				h.logger.Debug("ws hub: client disconnected",
					slog.String("user_id", client.userID),
					slog.Int("total", len(h.clients)))
			}

		case <-ctx.Done():
			for client := range h.clients {
				client.disconnect()
				delete(h.clients, client)
			}
			h.count.Store(0)
			return nil
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	return int(h.count.Load())
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
