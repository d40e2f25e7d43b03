package models

import "time"

// Status represents a user's presence status
type Status string

const (
	StatusOnline    Status = "online"
	StatusAway      Status = "away"
	StatusBusy      Status = "busy" // Do Not Disturb
	StatusInvisible Status = "invisible"
	StatusOffline   Status = "offline"
)

// Valid reports whether s is one of the five presence statuses
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusInvisible, StatusOffline:
		return true
	}
	return false
}

// Connected reports whether s is a status that requires a live connection
func (s Status) Connected() bool {
	return s.Valid() && s != StatusOffline
}

// PresenceRecord is the authoritative per-user presence state.
//
// Status is the effective status: it is StatusOffline exactly when the user
// has zero live connections. Preferred is the status restored on the next
// 0->1 connection transition; it survives disconnects so a user who chose
// invisible stays invisible across reconnects.
type PresenceRecord struct {
	UserID          string    `json:"user_id"`
	Status          Status    `json:"status"`
	Preferred       Status    `json:"preferred_status"`
	ActivityMessage string    `json:"activity_message,omitempty"`
	Connections     int       `json:"connections"`
	AutoAway        bool      `json:"auto_away"`
	AutoAwaySince   time.Time `json:"auto_away_since,omitzero"`
	LastSeenAt      time.Time `json:"last_seen_at,omitzero"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// VisibleProfile is the viewer-specific projection of a subject's presence,
// produced by the visibility policy engine. It never carries more than the
// subject's settings allow the viewer to see.
type VisibleProfile struct {
	UserID          string     `json:"user_id"`
	Status          Status     `json:"status"`
	ActivityMessage string     `json:"activity_message,omitempty"`
	CanMessage      bool       `json:"can_message"`
	CanSeeLastSeen  bool       `json:"can_see_last_seen"`
	LastSeenAt      *time.Time `json:"last_seen_at,omitempty"`
}

// FriendsPresence is the result of a bulk friends-filtered lookup
type FriendsPresence struct {
	Friends []VisibleProfile `json:"friends"`
	Online  int              `json:"online"`
	Away    int              `json:"away"`
	Busy    int              `json:"busy"`
}
