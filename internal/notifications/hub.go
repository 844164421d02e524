package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"keystone/internal/middleware"
	"keystone/internal/observability"
)

const (
	maxConnsPerUser = 8
	maxTotalConns   = 10000
)

var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
	ErrHubClosed  = errors.New("notification hub is shut down")
)

// Hub maps user ids to their open notification sockets.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool
}

func NewHub() *Hub {
	return &Hub{conns: make(map[uint]map[*Client]struct{})}
}

// Register adds a connection for userID.
func (h *Hub) Register(userID uint, conn Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		return nil, ErrServerFull
	}
	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, ErrUserFull
	}

	client := newClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnections.Inc()
	return client, nil
}

// UnregisterClient removes the client and stops its write pump. It is safe to call twice.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			observability.WebSocketConnections.Dec()
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	h.mu.Unlock()
	client.close()
}

// Broadcast queues message on every socket of userID and returns how many accepted it.
func (h *Hub) Broadcast(userID uint, message string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	data := []byte(message)
	for c := range h.conns[userID] {
		if c.TrySend(data) {
			delivered++
		}
	}
	return delivered
}

// ConnectionCount returns the number of open sockets for userID.
func (h *Hub) ConnectionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// StartWiring routes notifier output to this hub: through a Redis pattern subscription
// when the notifier has Redis, in-process otherwise.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	if !n.UsesRedis() {
		n.SetLocalDelivery(func(userID uint, payload string) {
			h.Broadcast(userID, payload)
		})
		return nil
	}
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		userID, ok := ParseUserChannel(channel)
		if !ok {
			middleware.Logger.Warn("invalid notification channel", slog.String("channel", channel))
			return
		}
		h.Broadcast(userID, payload)
	})
}

// Shutdown closes every client; their pumps send a close frame and exit.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, h.totalConns)
	for _, m := range h.conns {
		for c := range m {
			clients = append(clients, c)
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	observability.WebSocketConnections.Sub(float64(h.totalConns))
	h.totalConns = 0
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	return nil
}
