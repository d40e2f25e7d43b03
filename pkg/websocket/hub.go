// Package websocket is the transport layer: it owns client sessions,
// drives the connection registry on connect/disconnect, and pushes
// presence events to a user's live sessions.
package websocket

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/silviutimaru/mivton-presence/pkg/logging"
)

// Message is the frame exchanged with clients
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp,omitzero"`
}

// Client represents one connected session
type Client struct {
	ID     string
	UserID string
	Conn   *Conn
	Send   chan *Message
}

// Hub maintains the set of active clients, indexed by client ID and by
// user ID so presence events can be fanned out per user.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	byUser  map[string]map[string]*Client
	stopped bool
	log     *logging.Logger
}

// NewHub creates a WebSocket hub
func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		byUser:  make(map[string]map[string]*Client),
		log:     log,
	}
}

// Register adds a client session to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		close(client.Send)
		return
	}
	if existing, ok := h.clients[client.ID]; ok {
		existing.Conn.Close()
	}
	h.clients[client.ID] = client
	sessions := h.byUser[client.UserID]
	if sessions == nil {
		sessions = make(map[string]*Client)
		h.byUser[client.UserID] = sessions
	}
	sessions[client.ID] = client

	h.log.Debug("client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("total", len(h.clients)))
}

// Unregister removes a client session from the hub
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	if sessions, ok := h.byUser[client.UserID]; ok {
		delete(sessions, client.ID)
		if len(sessions) == 0 {
			delete(h.byUser, client.UserID)
		}
	}
	close(client.Send)

	h.log.Debug("client unregistered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("total", len(h.clients)))
}

// SendToUser delivers a message to all of a user's sessions. Sessions with
// a full send buffer drop the message; presence is ephemeral and the
// client resyncs on its next friends query.
func (h *Hub) SendToUser(userID string, msg *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.byUser[userID] {
		select {
		case client.Send <- msg:
		default:
			h.log.Warn("dropping message: send buffer full",
				zap.String("client_id", client.ID),
				zap.String("user_id", userID))
		}
	}
}

// ClientCount returns the number of connected sessions
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop closes every client connection and rejects further registers
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	h.stopped = true
	for id, client := range h.clients {
		client.Conn.Close()
		close(client.Send)
		delete(h.clients, id)
	}
	h.byUser = make(map[string]map[string]*Client)
	h.log.Info("websocket hub stopped")
}
