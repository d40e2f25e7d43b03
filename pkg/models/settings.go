package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PrivacyMode controls who may see a user's presence at all
type PrivacyMode string

const (
	PrivacyEveryone    PrivacyMode = "everyone"
	PrivacyFriends     PrivacyMode = "friends"
	PrivacyActiveChats PrivacyMode = "active_chats"
	PrivacySelected    PrivacyMode = "selected"
	PrivacyNobody      PrivacyMode = "nobody"
)

// Valid reports whether m is a known privacy mode
func (m PrivacyMode) Valid() bool {
	switch m {
	case PrivacyEveryone, PrivacyFriends, PrivacyActiveChats, PrivacySelected, PrivacyNobody:
		return true
	}
	return false
}

// Audience scopes exposure of a single presence attribute
type Audience string

const (
	AudienceEveryone Audience = "everyone"
	AudienceFriends  Audience = "friends"
	AudienceNobody   Audience = "nobody"
)

// Valid reports whether a is a known audience
func (a Audience) Valid() bool {
	switch a {
	case AudienceEveryone, AudienceFriends, AudienceNobody:
		return true
	}
	return false
}

// StringList stores a JSON-encoded string slice in a single text column
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
}

// Contains reports whether l contains s
func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

// VisibilitySettings is the per-user presence privacy configuration.
// Mutated only by its owning user; replaced wholesale on update so readers
// never observe a partially applied change.
type VisibilitySettings struct {
	UserID                string      `gorm:"primaryKey;size:64" json:"user_id"`
	PrivacyMode           PrivacyMode `gorm:"size:20;not null" json:"privacy_mode"`
	AllowedContacts       StringList  `gorm:"type:text" json:"allowed_contacts"`
	AutoAwayEnabled       bool        `json:"auto_away_enabled"`
	AutoAwayMinutes       int         `json:"auto_away_minutes"`
	BlockUnknownUsers     bool        `json:"block_unknown_users"`
	ShowActivityToFriends bool        `json:"show_activity_to_friends"`
	AllowUrgentOverride   bool        `json:"allow_urgent_override"`
	LastSeenVisibility    Audience    `gorm:"size:20;not null" json:"last_seen_visibility"`
	OnlineVisibility      Audience    `gorm:"size:20;not null" json:"online_visibility"`
	QuietHoursEnabled     bool        `json:"quiet_hours_enabled"`
	QuietHoursStart       string      `gorm:"size:5" json:"quiet_hours_start,omitempty"` // "HH:MM"
	QuietHoursEnd         string      `gorm:"size:5" json:"quiet_hours_end,omitempty"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// TableName maps the settings to the external persistence schema
func (VisibilitySettings) TableName() string { return "user_presence_settings" }

// DefaultVisibilitySettings returns the row created lazily on first use
func DefaultVisibilitySettings(userID string) *VisibilitySettings {
	return &VisibilitySettings{
		UserID:                userID,
		PrivacyMode:           PrivacyFriends,
		AutoAwayEnabled:       true,
		AutoAwayMinutes:       10,
		ShowActivityToFriends: true,
		AllowUrgentOverride:   true,
		LastSeenVisibility:    AudienceFriends,
		OnlineVisibility:      AudienceFriends,
	}
}

// InQuietHours reports whether now falls inside the configured quiet-hours
// window. Windows may wrap midnight ("22:00" to "07:00").
func (s *VisibilitySettings) InQuietHours(now time.Time) bool {
	if s == nil || !s.QuietHoursEnabled || s.QuietHoursStart == "" || s.QuietHoursEnd == "" {
		return false
	}
	start, ok1 := parseClock(s.QuietHoursStart)
	end, ok2 := parseClock(s.QuietHoursEnd)
	if !ok1 || !ok2 {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	if start <= end {
		return cur >= start && cur < end
	}
	return cur >= start || cur < end
}

// ValidClock reports whether v is a parseable HH:MM clock value
func ValidClock(v string) bool {
	_, ok := parseClock(v)
	return ok
}

func parseClock(v string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(v, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// SettingsPatch is an explicit partial update for VisibilitySettings.
// Only named fields may be changed; nil means "leave as is".
type SettingsPatch struct {
	PrivacyMode           *PrivacyMode `json:"privacy_mode,omitempty"`
	AllowedContacts       *StringList  `json:"allowed_contacts,omitempty"`
	AutoAwayEnabled       *bool        `json:"auto_away_enabled,omitempty"`
	AutoAwayMinutes       *int         `json:"auto_away_minutes,omitempty"`
	BlockUnknownUsers     *bool        `json:"block_unknown_users,omitempty"`
	ShowActivityToFriends *bool        `json:"show_activity_to_friends,omitempty"`
	AllowUrgentOverride   *bool        `json:"allow_urgent_override,omitempty"`
	LastSeenVisibility    *Audience    `json:"last_seen_visibility,omitempty"`
	OnlineVisibility      *Audience    `json:"online_visibility,omitempty"`
	QuietHoursEnabled     *bool        `json:"quiet_hours_enabled,omitempty"`
	QuietHoursStart       *string      `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd         *string      `json:"quiet_hours_end,omitempty"`
}

// Apply copies the patch's set fields onto a copy of s and returns it
func (p *SettingsPatch) Apply(s VisibilitySettings) VisibilitySettings {
	if p.PrivacyMode != nil {
		s.PrivacyMode = *p.PrivacyMode
	}
	if p.AllowedContacts != nil {
		s.AllowedContacts = *p.AllowedContacts
	}
	if p.AutoAwayEnabled != nil {
		s.AutoAwayEnabled = *p.AutoAwayEnabled
	}
	if p.AutoAwayMinutes != nil {
		s.AutoAwayMinutes = *p.AutoAwayMinutes
	}
	if p.BlockUnknownUsers != nil {
		s.BlockUnknownUsers = *p.BlockUnknownUsers
	}
	if p.ShowActivityToFriends != nil {
		s.ShowActivityToFriends = *p.ShowActivityToFriends
	}
	if p.AllowUrgentOverride != nil {
		s.AllowUrgentOverride = *p.AllowUrgentOverride
	}
	if p.LastSeenVisibility != nil {
		s.LastSeenVisibility = *p.LastSeenVisibility
	}
	if p.OnlineVisibility != nil {
		s.OnlineVisibility = *p.OnlineVisibility
	}
	if p.QuietHoursEnabled != nil {
		s.QuietHoursEnabled = *p.QuietHoursEnabled
	}
	if p.QuietHoursStart != nil {
		s.QuietHoursStart = *p.QuietHoursStart
	}
	if p.QuietHoursEnd != nil {
		s.QuietHoursEnd = *p.QuietHoursEnd
	}
	return s
}

// ContactRestriction narrows what one specific contact may see or do.
// At most one row per ordered (owner, contact) pair; owner != contact.
type ContactRestriction struct {
	OwnerID            string     `gorm:"primaryKey;size:64" json:"owner_id"`
	ContactID          string     `gorm:"primaryKey;size:64" json:"contact_id"`
	CanSeeOnline       bool       `json:"can_see_online"`
	CanSeeActivity     bool       `json:"can_see_activity"`
	CanSendMessages    bool       `json:"can_send_messages"`
	CanMakeCalls       bool       `json:"can_make_calls"`
	CanSeeLastSeen     bool       `json:"can_see_last_seen"`
	OverrideQuietHours bool       `json:"override_quiet_hours"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	Reason             string     `gorm:"size:255" json:"reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName maps restrictions to the external persistence schema
func (ContactRestriction) TableName() string { return "contact_restrictions" }

// Expired reports whether the restriction's temporary expiry has passed
func (r *ContactRestriction) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// DndExceptionKind classifies a do-not-disturb exception
type DndExceptionKind string

const (
	DndUrgentContact   DndExceptionKind = "urgent_contact"
	DndActiveChat      DndExceptionKind = "active_chat"
	DndKeywordOverride DndExceptionKind = "keyword_override"
	DndTimeBased       DndExceptionKind = "time_based"
	DndGroupChat       DndExceptionKind = "group_chat"
)

// Valid reports whether k is a known exception kind
func (k DndExceptionKind) Valid() bool {
	switch k {
	case DndUrgentContact, DndActiveChat, DndKeywordOverride, DndTimeBased, DndGroupChat:
		return true
	}
	return false
}

// DndException lets selected contacts or conditions break through busy (DND).
// Consulted only while the owner's status is busy and the owner allows
// urgent overrides.
type DndException struct {
	ID         string           `gorm:"primaryKey;size:36" json:"id"`
	UserID     string           `gorm:"size:64;index;not null" json:"user_id"`
	Kind       DndExceptionKind `gorm:"size:20;not null" json:"kind"`
	ContactID  string           `gorm:"size:64" json:"contact_id,omitempty"`  // urgent_contact, active_chat
	GroupID    string           `gorm:"size:64" json:"group_id,omitempty"`    // group_chat
	Keyword    string           `gorm:"size:128" json:"keyword,omitempty"`    // keyword_override
	StartClock string           `gorm:"size:5" json:"start_clock,omitempty"`  // time_based, "HH:MM"
	EndClock   string           `gorm:"size:5" json:"end_clock,omitempty"`    // time_based
	ValidFrom  time.Time        `json:"valid_from"`
	ValidUntil *time.Time       `json:"valid_until,omitempty"` // nil = indefinite
	Active     bool             `json:"active"`
	UseCount   int64            `json:"use_count"`
	LastUsedAt *time.Time       `json:"last_used_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// TableName maps exceptions to the external persistence schema
func (DndException) TableName() string { return "dnd_exceptions" }

// EffectiveAt reports whether the exception may fire at the given instant.
// An exception whose valid_until is in the past is inactive even when the
// active flag is still set.
func (e *DndException) EffectiveAt(now time.Time) bool {
	if !e.Active {
		return false
	}
	if !e.ValidFrom.IsZero() && now.Before(e.ValidFrom) {
		return false
	}
	if e.ValidUntil != nil && !e.ValidUntil.After(now) {
		return false
	}
	if e.Kind == DndTimeBased {
		start, ok1 := parseClock(e.StartClock)
		end, ok2 := parseClock(e.EndClock)
		if !ok1 || !ok2 {
			return false
		}
		cur := now.Hour()*60 + now.Minute()
		if start <= end {
			return cur >= start && cur < end
		}
		return cur >= start || cur < end
	}
	return true
}
