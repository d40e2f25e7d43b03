package events

import (
	"time"

	"github.com/silviutimaru/mivton-presence/pkg/logging"
	"github.com/silviutimaru/mivton-presence/pkg/models"
	"github.com/silviutimaru/mivton-presence/pkg/websocket"
)

// Event type constants pushed to connected clients
const (
	EventPresenceChanged = "presence.changed"
)

// Event represents a presence notification for one recipient's sessions
type Event struct {
	Type      string      // Event type constant
	UserID    string      // Recipient: delivered to all of this user's sessions
	Data      interface{} // Event payload
	Timestamp time.Time   // When the event occurred
}

// Dispatcher sends events to connected clients
type Dispatcher interface {
	Dispatch(event Event)
}

// HubInterface is the slice of the WebSocket hub the dispatcher needs
type HubInterface interface {
	SendToUser(userID string, msg *websocket.Message)
}

// HubDispatcher implements Dispatcher on the WebSocket hub. Delivery is
// at-most-once: events for users with no connected sessions are dropped.
type HubDispatcher struct {
	hub HubInterface
	log *logging.Logger
}

// NewHubDispatcher creates a dispatcher backed by a WebSocket hub
func NewHubDispatcher(hub HubInterface, log *logging.Logger) *HubDispatcher {
	return &HubDispatcher{hub: hub, log: log}
}

// Dispatch sends the event to all of the recipient's sessions
func (d *HubDispatcher) Dispatch(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	d.hub.SendToUser(event.UserID, &websocket.Message{
		Type:      event.Type,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	})
}

// Deliver implements broadcast.Sink: it pushes one viewer's updated
// projection of a subject to the viewer's sessions.
func (d *HubDispatcher) Deliver(viewerID string, profile models.VisibleProfile) {
	d.Dispatch(Event{
		Type:   EventPresenceChanged,
		UserID: viewerID,
		Data:   profile,
	})
}
