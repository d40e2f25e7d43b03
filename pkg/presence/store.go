// Package presence holds the authoritative per-user presence record and
// enforces the connection-count invariant: the effective status is offline
// exactly when the user has zero live connections.
package presence

import (
	"sync"
	"time"

	"github.com/silviutimaru/mivton-presence/pkg/errors"
	"github.com/silviutimaru/mivton-presence/pkg/models"
)

// ChangeFunc observes effective-status changes. It runs synchronously under
// the user's entry lock so per-user ordering is preserved; it must not call
// back into the store for that user.
type ChangeFunc func(rec models.PresenceRecord)

type entry struct {
	mu  sync.Mutex
	rec models.PresenceRecord
}

// Store is the single source of truth for each user's current status and
// activity message. All mutations for one user are serialized through the
// user's entry lock; reads return copies, never live references.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*entry
	clock    func() time.Time
	onChange ChangeFunc
}

// Option configures a Store
type Option func(*Store)

// WithClock injects a deterministic time source for tests
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// New creates a presence store
func New(opts ...Option) *Store {
	s := &Store{
		users: make(map[string]*entry),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetOnChange installs the effective-status change observer. Wired after
// construction because the broadcaster depends on the store.
func (s *Store) SetOnChange(fn ChangeFunc) { s.onChange = fn }

func (s *Store) getEntry(userID string) *entry {
	s.mu.RLock()
	e, ok := s.users[userID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.users[userID]; ok {
		return e
	}
	e = &entry{rec: models.PresenceRecord{
		UserID: userID,
		Status: models.StatusOffline,
	}}
	s.users[userID] = e
	return e
}

// SetStatus applies an explicit user-driven status change. A user with live
// connections changes both effective and preferred status; a disconnected
// user only records the preference applied on next reconnect (the effective
// status stays offline). activityMessage nil leaves the message unchanged.
func (s *Store) SetStatus(userID string, status models.Status, activityMessage *string) (models.PresenceRecord, error) {
	if !status.Valid() {
		return models.PresenceRecord{}, errors.InvalidStatusf("unknown status %q", status)
	}
	if status == models.StatusOffline {
		return models.PresenceRecord{}, errors.InvalidStatus("offline is set by disconnecting; use invisible to appear offline while connected")
	}

	e := s.getEntry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.rec.Status
	oldMessage := e.rec.ActivityMessage
	e.rec.Preferred = status
	if activityMessage != nil {
		e.rec.ActivityMessage = *activityMessage
	}
	if e.rec.Connections > 0 {
		e.rec.Status = status
		e.rec.AutoAway = false
		e.rec.AutoAwaySince = time.Time{}
	}
	e.rec.UpdatedAt = s.clock()

	// The activity message is part of the viewer-visible projection, so a
	// message-only update must reach observers too. Disconnected users stay
	// silent; their message surfaces on reconnect.
	if e.rec.Status != old || (e.rec.Connections > 0 && e.rec.ActivityMessage != oldMessage) {
		s.fire(e.rec)
	}
	return e.rec, nil
}

// OnConnectionChange is called by the connection registry after every count
// change. A 0->1 transition restores the user's preferred status (default
// online); a transition to 0 forces offline and clears auto-away state.
func (s *Store) OnConnectionChange(userID string, liveCount int) {
	e := s.getEntry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.rec.Status
	wasZero := e.rec.Connections == 0
	now := s.clock()

	e.rec.Connections = liveCount
	e.rec.UpdatedAt = now

	switch {
	case liveCount == 0:
		e.rec.Status = models.StatusOffline
		e.rec.AutoAway = false
		e.rec.AutoAwaySince = time.Time{}
		e.rec.LastSeenAt = now
	case wasZero:
		if e.rec.Preferred.Connected() {
			e.rec.Status = e.rec.Preferred
		} else {
			e.rec.Status = models.StatusOnline
		}
		e.rec.LastSeenAt = now
	}

	if e.rec.Status != old {
		s.fire(e.rec)
	}
}

// MarkAutoAway downgrades online to away for an inactive user. It never
// touches busy, invisible or offline. Returns whether it applied.
func (s *Store) MarkAutoAway(userID string, at time.Time) bool {
	e := s.getEntry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec.Status != models.StatusOnline {
		return false
	}
	e.rec.Status = models.StatusAway
	e.rec.AutoAway = true
	e.rec.AutoAwaySince = at
	e.rec.UpdatedAt = s.clock()
	s.fire(e.rec)
	return true
}

// ClearAutoAway reverts an auto-away downgrade after new activity. A
// user-chosen away (or busy/invisible picked during the away period) is
// left alone. Returns whether a revert happened.
func (s *Store) ClearAutoAway(userID string) bool {
	e := s.getEntry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.rec.AutoAway {
		return false
	}
	e.rec.AutoAway = false
	e.rec.AutoAwaySince = time.Time{}
	if e.rec.Status != models.StatusAway {
		return false
	}
	e.rec.Status = models.StatusOnline
	e.rec.UpdatedAt = s.clock()
	s.fire(e.rec)
	return true
}

// TouchLastSeen records user activity on the presence record
func (s *Store) TouchLastSeen(userID string, at time.Time) {
	e := s.getEntry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if at.After(e.rec.LastSeenAt) {
		e.rec.LastSeenAt = at
	}
}

// Get returns the current record, lazily initialized to offline
func (s *Store) Get(userID string) models.PresenceRecord {
	e := s.getEntry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec
}

// GetMany batch-fetches records for friend-list rendering. One pass over
// the store; missing users come back as offline records.
func (s *Store) GetMany(userIDs []string) map[string]models.PresenceRecord {
	out := make(map[string]models.PresenceRecord, len(userIDs))
	for _, id := range userIDs {
		if _, ok := out[id]; ok {
			continue
		}
		out[id] = s.Get(id)
	}
	return out
}

// Users returns a snapshot of all user IDs the store has seen
func (s *Store) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.users))
	for id := range s.users {
		users = append(users, id)
	}
	return users
}

// Reconcile corrects connection-count drift against the registry's actual
// count. Returns the detected drift as an error for observability; the
// record is already self-healed when it returns.
func (s *Store) Reconcile(userID string, actualCount int) error {
	e := s.getEntry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec.Connections == actualCount {
		return nil
	}
	drift := errors.InconsistentCount(userID, e.rec.Connections, actualCount)

	old := e.rec.Status
	e.rec.Connections = actualCount
	e.rec.UpdatedAt = s.clock()
	if actualCount == 0 {
		e.rec.Status = models.StatusOffline
		e.rec.AutoAway = false
		e.rec.AutoAwaySince = time.Time{}
	} else if old == models.StatusOffline {
		if e.rec.Preferred.Connected() {
			e.rec.Status = e.rec.Preferred
		} else {
			e.rec.Status = models.StatusOnline
		}
	}
	if e.rec.Status != old {
		s.fire(e.rec)
	}
	return drift
}

func (s *Store) fire(rec models.PresenceRecord) {
	if s.onChange != nil {
		s.onChange(rec)
	}
}
