package models

import "time"

// Connection is the ephemeral record of one live transport-level connection.
// A user may own zero or many concurrent connections (multiple devices/tabs).
type Connection struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	RemoteAddr    string    `json:"remote_addr,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	EstablishedAt time.Time `json:"established_at"`
	LastAliveAt   time.Time `json:"last_alive_at"`
}

// ConnectionMetadata carries optional transport details supplied on register
type ConnectionMetadata struct {
	RemoteAddr string `json:"remote_addr,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
}
