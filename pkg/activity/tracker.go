// Package activity records last-interaction timestamps per user and derives
// auto-away transitions from them.
package activity

import (
	"sync"
	"time"

	"github.com/silviutimaru/mivton-presence/pkg/models"
)

// StatusReverter is the slice of the presence store the tracker needs
type StatusReverter interface {
	ClearAutoAway(userID string) bool
	TouchLastSeen(userID string, at time.Time)
}

// Tracker observes low-level "the user did something" signals
type Tracker struct {
	mu           sync.RWMutex
	lastActivity map[string]time.Time
	store        StatusReverter
	clock        func() time.Time
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock injects a deterministic time source for tests
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) { t.clock = clock }
}

// New creates an activity tracker bound to the presence store
func New(store StatusReverter, opts ...Option) *Tracker {
	t := &Tracker{
		lastActivity: make(map[string]time.Time),
		store:        store,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordActivity updates the user's last-activity timestamp, clears any
// auto-away flag, and reverts an auto-away status back to online. A zero
// `at` means "now".
func (t *Tracker) RecordActivity(userID string, kind models.ActivityKind, at time.Time) {
	if at.IsZero() {
		at = t.clock()
	}

	t.mu.Lock()
	if at.After(t.lastActivity[userID]) {
		t.lastActivity[userID] = at
	}
	t.mu.Unlock()

	t.store.TouchLastSeen(userID, at)
	t.store.ClearAutoAway(userID)
}

// LastActivity returns the user's last recorded activity time
func (t *Tracker) LastActivity(userID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	at, ok := t.lastActivity[userID]
	return at, ok
}

// Forget drops tracking state for a user (force-logout path)
func (t *Tracker) Forget(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastActivity, userID)
}

// CheckAutoAway is a pure function: given the user's settings and last
// activity, it reports whether the user should be forced to away. Safe to
// re-run at any time; it derives everything from stored timestamps.
func CheckAutoAway(settings *models.VisibilitySettings, lastActivity time.Time, now time.Time) bool {
	if settings == nil || !settings.AutoAwayEnabled || settings.AutoAwayMinutes <= 0 {
		return false
	}
	if lastActivity.IsZero() {
		return false
	}
	threshold := time.Duration(settings.AutoAwayMinutes) * time.Minute
	return now.Sub(lastActivity) >= threshold
}
