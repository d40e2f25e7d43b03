// Package registry tracks which users currently hold live transport-level
// connections. It is the only component that knows whether a user is
// physically connected, and it feeds every count transition synchronously
// into its listener so presence state is updated before any observer can
// read it.
package registry

import (
	"sync"
	"time"

	"github.com/silviutimaru/mivton-presence/pkg/models"
)

// ConnectionListener receives the live connection count after every change
// for a user. Calls are made synchronously in arrival order per user.
type ConnectionListener interface {
	OnConnectionChange(userID string, liveCount int)
}

type connection struct {
	id            string
	remoteAddr    string
	userAgent     string
	establishedAt time.Time
	lastAliveAt   time.Time
}

// Registry is the in-memory connection bookkeeper. Constructed once at
// process start and injected into dependents; multiple independent
// instances can coexist in tests.
type Registry struct {
	mu       sync.Mutex
	byUser   map[string]map[string]*connection
	listener ConnectionListener
	clock    func() time.Time
}

// Option configures a Registry
type Option func(*Registry)

// WithClock injects a deterministic time source for tests
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) { r.clock = clock }
}

// New creates a connection registry. listener may be nil.
func New(listener ConnectionListener, opts ...Option) *Registry {
	r := &Registry{
		byUser:   make(map[string]map[string]*connection),
		listener: listener,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterConnection adds a connection to the user's set. Idempotent: a
// duplicate connection ID does not raise the count, last write wins for
// metadata. Unknown users simply get a tracking entry.
func (r *Registry) RegisterConnection(userID, connectionID string, meta models.ConnectionMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	conns := r.byUser[userID]
	if conns == nil {
		conns = make(map[string]*connection)
		r.byUser[userID] = conns
	}

	if existing, ok := conns[connectionID]; ok {
		existing.remoteAddr = meta.RemoteAddr
		existing.userAgent = meta.UserAgent
		existing.lastAliveAt = now
		return
	}

	conns[connectionID] = &connection{
		id:            connectionID,
		remoteAddr:    meta.RemoteAddr,
		userAgent:     meta.UserAgent,
		establishedAt: now,
		lastAliveAt:   now,
	}
	r.notify(userID, len(conns))
}

// Touch refreshes a connection's last-seen-alive timestamp (keepalive)
func (r *Registry) Touch(userID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.byUser[userID][connectionID]; ok {
		conn.lastAliveAt = r.clock()
	}
}

// DeregisterConnection removes the connection and reports whether it was
// the user's last live one.
func (r *Registry) DeregisterConnection(userID, connectionID string) (wasLast bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(userID, connectionID)
}

// DeregisterAllForUser force-clears all connections for a user (account
// block / force-logout path).
func (r *Registry) DeregisterAllForUser(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byUser[userID]
	if !ok || len(conns) == 0 {
		return
	}
	delete(r.byUser, userID)
	r.notify(userID, 0)
}

// CountConnections returns the current live count for a user
func (r *Registry) CountConnections(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser[userID])
}

// ConnectedUsers returns all users with at least one live connection
func (r *Registry) ConnectedUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]string, 0, len(r.byUser))
	for userID, conns := range r.byUser {
		if len(conns) > 0 {
			users = append(users, userID)
		}
	}
	return users
}

// Connections returns a snapshot of a user's live connections
func (r *Registry) Connections(userID string) []models.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.byUser[userID]
	out := make([]models.Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, models.Connection{
			ID:            c.id,
			UserID:        userID,
			RemoteAddr:    c.remoteAddr,
			UserAgent:     c.userAgent,
			EstablishedAt: c.establishedAt,
			LastAliveAt:   c.lastAliveAt,
		})
	}
	return out
}

// Sweep removes connections whose last-seen-alive timestamp exceeds
// maxIdle without an explicit deregister (lost disconnect events). Each
// removal goes through the same last-connection logic as an explicit
// deregistration. Returns the number of removed connections.
func (r *Registry) Sweep(maxIdle time.Duration) (removed int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.clock().Add(-maxIdle)
	for userID, conns := range r.byUser {
		for id, conn := range conns {
			if conn.lastAliveAt.Before(cutoff) {
				r.removeLocked(userID, id)
				removed++
			}
		}
	}
	return removed
}

// removeLocked deletes one connection and notifies. Caller holds r.mu.
func (r *Registry) removeLocked(userID, connectionID string) (wasLast bool) {
	conns, ok := r.byUser[userID]
	if !ok {
		return false
	}
	if _, ok := conns[connectionID]; !ok {
		return false
	}
	delete(conns, connectionID)
	remaining := len(conns)
	if remaining == 0 {
		delete(r.byUser, userID)
	}
	r.notify(userID, remaining)
	return remaining == 0
}

// notify calls the listener while holding r.mu, which guarantees per-user
// arrival-order delivery of count transitions. The listener must not call
// back into the registry.
func (r *Registry) notify(userID string, liveCount int) {
	if r.listener != nil {
		r.listener.OnConnectionChange(userID, liveCount)
	}
}
