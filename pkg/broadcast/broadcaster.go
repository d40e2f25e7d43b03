// Package broadcast fans presence-change events out to interested viewers
// and serves the bulk "my friends, filtered" query. Every outgoing view
// goes through the visibility policy engine; viewers whose projection of
// the subject did not change receive nothing.
package broadcast

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/silviutimaru/mivton-presence/pkg/logging"
	"github.com/silviutimaru/mivton-presence/pkg/models"
	"github.com/silviutimaru/mivton-presence/pkg/policy"
	"github.com/silviutimaru/mivton-presence/pkg/presence"
	"github.com/silviutimaru/mivton-presence/pkg/repository"
)

// Sink receives per-viewer presence events. Delivery to a disconnected
// viewer is dropped silently; reconnecting viewers resync via
// FriendsFiltered instead of backfilled history.
type Sink interface {
	Deliver(viewerID string, profile models.VisibleProfile)
}

// Broadcaster pushes presence changes to friends and answers bulk queries
type Broadcaster struct {
	engine    *policy.Engine
	presence  *presence.Store
	relations repository.RelationRepository
	sink      Sink
	log       *logging.Logger
	onEvent   func()

	mu       sync.Mutex
	lastSent map[string]map[string]models.VisibleProfile // viewer -> subject -> projection
}

// Option configures a Broadcaster
type Option func(*Broadcaster)

// WithEventHook installs an observer called once per delivered event
func WithEventHook(fn func()) Option {
	return func(b *Broadcaster) { b.onEvent = fn }
}

// New creates a broadcaster
func New(engine *policy.Engine, store *presence.Store, relations repository.RelationRepository, sink Sink, log *logging.Logger, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		engine:    engine,
		presence:  store,
		relations: relations,
		sink:      sink,
		log:       log,
		lastSent:  make(map[string]map[string]models.VisibleProfile),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnPresenceChanged resolves the subject's new record per friend and
// delivers an event only to friends whose visible projection actually
// changed. A friend who resolves to offline both before and after (nobody
// mode, blocked, invisible) receives nothing.
func (b *Broadcaster) OnPresenceChanged(ctx context.Context, rec models.PresenceRecord) {
	friends, err := b.relations.Friends(ctx, rec.UserID)
	if err != nil {
		b.log.Warn("presence fan-out skipped: friend lookup failed",
			zap.String("user_id", rec.UserID), zap.Error(err))
		return
	}

	for _, viewerID := range friends {
		profile := b.engine.ResolveWithRecord(ctx, viewerID, rec.UserID, rec)
		if !b.projectionChanged(viewerID, rec.UserID, profile) {
			continue
		}
		b.sink.Deliver(viewerID, profile)
		if b.onEvent != nil {
			b.onEvent()
		}
	}

	// The subject's last connection is gone, so their own viewer-side cache
	// goes with it; a reconnecting viewer resyncs via FriendsFiltered.
	if rec.Status == models.StatusOffline {
		b.ForgetViewer(rec.UserID)
	}
}

// FriendsFiltered resolves every friend of the viewer in one batched pass:
// a single bulk presence fetch, then one policy evaluation per friend.
func (b *Broadcaster) FriendsFiltered(ctx context.Context, viewerID string) (models.FriendsPresence, error) {
	friends, err := b.relations.Friends(ctx, viewerID)
	if err != nil {
		return models.FriendsPresence{}, err
	}

	records := b.presence.GetMany(friends)

	result := models.FriendsPresence{Friends: make([]models.VisibleProfile, 0, len(friends))}
	for _, friendID := range friends {
		profile := b.engine.ResolveWithRecord(ctx, viewerID, friendID, records[friendID])
		result.Friends = append(result.Friends, profile)
		switch profile.Status {
		case models.StatusOnline:
			result.Online++
		case models.StatusAway:
			result.Away++
		case models.StatusBusy:
			result.Busy++
		}
	}
	return result, nil
}

// ForgetViewer drops the projection cache for a viewer, called when their
// last connection goes away (disconnect or force-logout).
func (b *Broadcaster) ForgetViewer(viewerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.lastSent, viewerID)
}

// projectionChanged records the new projection and reports whether it
// differs from what this viewer last saw of the subject. A never-seen
// subject is assumed previously offline, so an all-offline projection
// produces no event.
func (b *Broadcaster) projectionChanged(viewerID, subjectID string, profile models.VisibleProfile) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	baseline := models.VisibleProfile{UserID: subjectID, Status: models.StatusOffline}
	bySubject := b.lastSent[viewerID]
	prev, seen := bySubject[subjectID]
	if !seen {
		prev = baseline
	}
	if profilesEqual(prev, profile) {
		return false
	}
	// A plain-offline projection matches the never-seen default, so the
	// entry is dropped rather than kept for subjects who never come back.
	if profilesEqual(profile, baseline) {
		delete(bySubject, subjectID)
		if len(bySubject) == 0 {
			delete(b.lastSent, viewerID)
		}
		return true
	}
	if bySubject == nil {
		bySubject = make(map[string]models.VisibleProfile)
		b.lastSent[viewerID] = bySubject
	}
	bySubject[subjectID] = profile
	return true
}

func profilesEqual(a, b models.VisibleProfile) bool {
	if a.UserID != b.UserID ||
		a.Status != b.Status ||
		a.ActivityMessage != b.ActivityMessage ||
		a.CanMessage != b.CanMessage ||
		a.CanSeeLastSeen != b.CanSeeLastSeen {
		return false
	}
	switch {
	case a.LastSeenAt == nil && b.LastSeenAt == nil:
		return true
	case a.LastSeenAt == nil || b.LastSeenAt == nil:
		return false
	default:
		return a.LastSeenAt.Equal(*b.LastSeenAt)
	}
}
