package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Snapshot frames are read-only; the API itself is cookie-gated.
		return true
	},
}

// Hub broadcasts snapshot frames to connected websocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool), logger: logger}
}

// Add registers a connection.
func (h *Hub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	h.logger.Debug("websocket client connected")
}

// Remove unregisters and closes a connection.
func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

// Broadcast sends a text frame to every client, dropping clients that fail.
func (h *Hub) Broadcast(payload []byte) {
	h.writeToClients(websocket.TextMessage, payload)
}

// Send writes a text frame to a single client. It takes the hub mutex so a
// direct write can never interleave with a broadcast on the same connection;
// gorilla/websocket forbids concurrent writers.
func (h *Hub) Send(conn *websocket.Conn, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		h.logger.Debug("websocket write failed, dropping client", "err", err)
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *Hub) writeToClients(messageType int, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(messageType, payload); err != nil {
			h.logger.Debug("websocket write failed, dropping client", "err", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Run keeps clients alive with pings until ctx is done, then closes them all.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.writeToClients(websocket.PingMessage, nil)
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
