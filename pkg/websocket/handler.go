package websocket

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/silviutimaru/mivton-presence/pkg/activity"
	"github.com/silviutimaru/mivton-presence/pkg/logging"
	"github.com/silviutimaru/mivton-presence/pkg/models"
	"github.com/silviutimaru/mivton-presence/pkg/registry"
)

const pingPeriod = 30 * time.Second

// Handler upgrades presence socket connections and ties their lifecycle to
// the connection registry: connect registers, close deregisters, pings and
// inbound frames keep the connection alive and feed the activity tracker.
type Handler struct {
	hub        *Hub
	registry   *registry.Registry
	tracker    *activity.Tracker
	log        *logging.Logger
	sendBuffer int
}

// NewHandler creates the WebSocket endpoint handler
func NewHandler(hub *Hub, reg *registry.Registry, tracker *activity.Tracker, log *logging.Logger, sendBuffer int) *Handler {
	return &Handler{
		hub:        hub,
		registry:   reg,
		tracker:    tracker,
		log:        log,
		sendBuffer: sendBuffer,
	}
}

// ServeHTTP handles GET /ws. The user identity arrives from the upstream
// auth layer via the X-User-ID header (or user_id query parameter for
// browser clients that cannot set headers on WebSocket upgrades).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	clientID := uuid.New().String()

	conn, err := UpgradeHTTP(w, r, func() {
		h.registry.Touch(userID, clientID)
	})
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:     clientID,
		UserID: userID,
		Conn:   conn,
		Send:   make(chan *Message, h.sendBuffer),
	}

	h.hub.Register(client)
	h.registry.RegisterConnection(userID, clientID, models.ConnectionMetadata{
		RemoteAddr: conn.RemoteAddr(),
		UserAgent:  r.UserAgent(),
	})
	h.tracker.RecordActivity(userID, models.ActivityAPICall, time.Time{})

	go h.writePump(client)
	go h.readPump(client)
}

// readPump consumes inbound frames until the connection drops, then tears
// the session down. Activity frames feed the tracker; everything inbound
// counts as keepalive.
func (h *Handler) readPump(client *Client) {
	defer func() {
		client.Conn.Close()
		h.hub.Unregister(client)
		h.registry.DeregisterConnection(client.UserID, client.ID)
	}()

	for {
		msg, err := client.Conn.ReadMessage()
		if err != nil {
			return
		}
		h.registry.Touch(client.UserID, client.ID)

		switch msg.Type {
		case "activity":
			h.tracker.RecordActivity(client.UserID, models.ActivityKeyboard, time.Time{})
		case "heartbeat":
			h.tracker.RecordActivity(client.UserID, models.ActivityHeartbeat, time.Time{})
		}
	}
}

// writePump drains the send buffer and pings on a timer
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			if err := client.Conn.WriteMessage(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.Conn.Ping(); err != nil {
				return
			}
		}
	}
}
