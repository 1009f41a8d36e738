// Package ws pushes server events to connected dashboard clients over
// WebSocket. Every frame carries the same envelope: type, data, and a
// millisecond timestamp.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sentinelos/sentineld/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

// Envelope is the wire format for every pushed event.
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// Hub fans events out to all connected clients. Slow clients are
// dropped rather than allowed to stall the broadcast.
type Hub struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is served from arbitrary origins in dev
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger.With().Str("component", "ws").Logger(),
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the connection, sends the greeting frame, and
// keeps the client registered until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	metrics.WSClientsConnected.Set(float64(count))
	h.logger.Info().Int("clients", count).Msg("WebSocket client connected")

	greeting, _ := json.Marshal(Envelope{
		Type:      "connected",
		Data:      map[string]string{"message": "Connected to SentinelOS"},
		Timestamp: time.Now().UnixMilli(),
	})
	c.send <- greeting

	go h.writeLoop(c)
	h.readLoop(c)
}

// Broadcast pushes one event to every connected client.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	frame, err := json.Marshal(Envelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("type", eventType).Msg("Failed to encode broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			// Client is not draining its buffer, cut it loose
			go h.drop(c)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.drop(c)
	}
}

func (h *Hub) writeLoop(c *client) {
	for frame := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.drop(c)
			return
		}
	}
	c.conn.Close()
}

// readLoop discards inbound frames; the protocol is push-only. It
// exists to notice disconnects promptly.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		metrics.WSClientsConnected.Set(float64(count))
		h.logger.Info().Int("clients", count).Msg("WebSocket client disconnected")
	}
}
