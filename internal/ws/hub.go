// Package ws streams forecast pipeline progress to browsers over
// WebSocket, one channel per upload session.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// Client represents a connected WebSocket client watching one session.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	send      chan Message
	logger    *zap.Logger
}

// Hub tracks clients per session and fans messages out to them.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Client]struct{}
	logger   *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]map[*Client]struct{}),
		logger:   logger,
	}
}

// Register adds a client to its session.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.sessions[c.sessionID]
	if !ok {
		set = make(map[*Client]struct{})
		h.sessions[c.sessionID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", zap.String("session_id", c.sessionID))
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.sessions[c.sessionID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.sessions, c.sessionID)
		}
	}
	h.mu.Unlock()
	h.logger.Debug("websocket client disconnected", zap.String("session_id", c.sessionID))
}

// Send delivers msg to every client of msg.SessionID. Slow clients drop
// messages rather than block the pipeline.
func (h *Hub) Send(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.sessions[msg.SessionID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("client send buffer full, dropping message",
				zap.String("session_id", c.sessionID))
		}
	}
}

// ClientCount returns the number of clients watching sessionID.
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// writePump sends messages from the client's send channel to the WebSocket.
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				// Channel closed by hub (unregister).
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := wsjson.Write(writeCtx, c.conn, msg); err != nil {
				cancel()
				c.logger.Debug("websocket write error", zap.Error(err))
				return
			}
			cancel()
		}
	}
}

// readPump drains client frames until the connection closes.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}
