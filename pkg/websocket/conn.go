package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps a gorilla WebSocket connection with locking and deadlines
type Conn struct {
	ws            *websocket.Conn
	mu            sync.Mutex
	closed        bool
	readDeadline  time.Duration
	writeDeadline time.Duration
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks belong to the fronting proxy / auth layer
		return true
	},
}

// UpgradeHTTP upgrades an HTTP request to a WebSocket connection. onPong
// runs on every pong frame, after the read deadline has been pushed out.
func UpgradeHTTP(w http.ResponseWriter, r *http.Request, onPong func()) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	conn := &Conn{
		ws:            ws,
		readDeadline:  60 * time.Second,
		writeDeadline: 10 * time.Second,
	}
	ws.SetReadDeadline(time.Now().Add(conn.readDeadline))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(conn.readDeadline))
		if onPong != nil {
			onPong()
		}
		return nil
	})
	return conn, nil
}

// ReadMessage reads and decodes one frame. Blocks; not locked against
// writers since gorilla supports one concurrent reader and one writer.
func (c *Conn) ReadMessage() (*Message, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &msg, nil
}

// WriteMessage encodes and writes one frame
func (c *Conn) WriteMessage(msg *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection closed")
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.writeDeadline))
	return c.ws.WriteJSON(msg)
}

// Ping sends a ping control frame to keep the connection alive
func (c *Conn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection closed")
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeDeadline))
}

// Close closes the connection; safe to call more than once
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.ws.WriteControl(websocket.CloseMessage, nil, time.Now().Add(time.Second))
	return c.ws.Close()
}

// RemoteAddr returns the remote address
func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}
