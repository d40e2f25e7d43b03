// Package policy computes what one user is allowed to see of another's
// presence. Privacy guarantees live here: on any uncertainty the engine
// fails closed and reports the subject as offline and unreachable.
package policy

import (
	"context"
	"strings"
	"time"

	"github.com/silviutimaru/mivton-presence/pkg/errors"
	"github.com/silviutimaru/mivton-presence/pkg/models"
	"github.com/silviutimaru/mivton-presence/pkg/presence"
	"github.com/silviutimaru/mivton-presence/pkg/repository"
)

// ChatSessionService is the messaging subsystem's active-chat relation,
// used by the "active_chats" privacy mode and active_chat DND exceptions.
type ChatSessionService interface {
	HasActiveSession(ctx context.Context, a, b string) (bool, error)
}

// Engine resolves (viewer, subject) pairs into visible profiles
type Engine struct {
	presence  *presence.Store
	settings  repository.SettingsRepository
	relations repository.RelationRepository
	chats     ChatSessionService
	clock     func() time.Time
	onFailure func(err error)
}

// Option configures an Engine
type Option func(*Engine)

// WithClock injects a deterministic time source for tests
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithFailureHook installs an observer for collaborator failures (wired to
// a metrics counter; failures are otherwise swallowed by fail-closed).
func WithFailureHook(fn func(err error)) Option {
	return func(e *Engine) { e.onFailure = fn }
}

// New creates a visibility policy engine
func New(store *presence.Store, settings repository.SettingsRepository, relations repository.RelationRepository, chats ChatSessionService, opts ...Option) *Engine {
	e := &Engine{
		presence:  store,
		settings:  settings,
		relations: relations,
		chats:     chats,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve computes the presence the viewer is entitled to see of the
// subject. It never returns an error: an unknown subject is a valid
// privacy outcome (offline), and collaborator failures degrade to the
// fail-closed default. An empty viewerID is an anonymous viewer, eligible
// only under "everyone" mode.
func (e *Engine) Resolve(ctx context.Context, viewerID, subjectID string) models.VisibleProfile {
	return e.ResolveWithRecord(ctx, viewerID, subjectID, e.presence.Get(subjectID))
}

// ResolveWithRecord is Resolve with the subject's record already in hand,
// used by batch paths to avoid refetching.
func (e *Engine) ResolveWithRecord(ctx context.Context, viewerID, subjectID string, rec models.PresenceRecord) models.VisibleProfile {
	if viewerID == subjectID && viewerID != "" {
		return e.selfView(rec)
	}

	now := e.clock()

	// Rule 1: a blocked viewer sees offline, no matter what else is set.
	if viewerID != "" {
		blocked, err := e.relations.IsBlocked(ctx, subjectID, viewerID)
		if err != nil {
			return e.failClosed(subjectID, err)
		}
		if blocked {
			return offlineProfile(subjectID)
		}
	}

	// Rule 2: invisible presents as offline to every viewer, friends
	// included, with no last-seen leak.
	if rec.Status == models.StatusInvisible {
		return offlineProfile(subjectID)
	}

	settings, err := e.settings.GetSettings(ctx, subjectID)
	if err != nil {
		return e.failClosed(subjectID, err)
	}
	if settings == nil {
		settings = models.DefaultVisibilitySettings(subjectID)
	}

	isFriend := false
	if viewerID != "" {
		isFriend, err = e.relations.AreFriends(ctx, subjectID, viewerID)
		if err != nil {
			return e.failClosed(subjectID, err)
		}
	}

	// Rule 3: the subject's privacy mode decides baseline visibility.
	visible, err := e.modeAllows(ctx, settings, viewerID, subjectID, isFriend)
	if err != nil {
		return e.failClosed(subjectID, err)
	}
	if !visible || !audienceAllows(settings.OnlineVisibility, isFriend) {
		return offlineProfile(subjectID)
	}

	// Rule 4: per-contact restriction, most restrictive wins.
	var restriction *models.ContactRestriction
	if viewerID != "" {
		restriction, err = e.settings.GetRestriction(ctx, subjectID, viewerID)
		if err != nil {
			return e.failClosed(subjectID, err)
		}
		if restriction != nil && restriction.Expired(now) {
			restriction = nil
		}
	}
	if restriction != nil && !restriction.CanSeeOnline {
		p := offlineProfile(subjectID)
		p.CanMessage = restriction.CanSendMessages
		return p
	}

	profile := models.VisibleProfile{
		UserID:     subjectID,
		Status:     rec.Status,
		CanMessage: true,
	}

	// Rule 6: activity is only ever shown to friends.
	if settings.ShowActivityToFriends && isFriend &&
		(restriction == nil || restriction.CanSeeActivity) {
		profile.ActivityMessage = rec.ActivityMessage
	}

	// Rule 5: busy (DND) hides activity and blocks contact unless an
	// exception names this viewer or context and overrides are allowed.
	if rec.Status == models.StatusBusy {
		profile.ActivityMessage = ""
		profile.CanMessage = false
		if settings.AllowUrgentOverride {
			ok, err := e.dndOverride(ctx, settings.UserID, viewerID, now)
			if err != nil {
				return e.failClosed(subjectID, err)
			}
			profile.CanMessage = ok
		}
	} else if settings.InQuietHours(now) &&
		(restriction == nil || !restriction.OverrideQuietHours) {
		// Quiet hours present the subject as busy without consulting DND
		// exceptions; those are scoped to explicit busy status.
		profile.Status = models.StatusBusy
		profile.ActivityMessage = ""
		profile.CanMessage = false
	}

	if restriction != nil && !restriction.CanSendMessages {
		profile.CanMessage = false
	}

	if audienceAllows(settings.LastSeenVisibility, isFriend) &&
		(restriction == nil || restriction.CanSeeLastSeen) &&
		!rec.LastSeenAt.IsZero() {
		profile.CanSeeLastSeen = true
		lastSeen := rec.LastSeenAt
		profile.LastSeenAt = &lastSeen
	}

	return profile
}

// MatchKeyword reports whether any effective keyword_override exception
// matches the message text. Exposed for the message-delivery path; a
// pairwise presence resolution has no message to match against.
func (e *Engine) MatchKeyword(ctx context.Context, subjectID, text string) bool {
	exceptions, err := e.settings.ListDndExceptions(ctx, subjectID)
	if err != nil {
		e.fail(err)
		return false
	}
	now := e.clock()
	lower := strings.ToLower(text)
	for i := range exceptions {
		exc := &exceptions[i]
		if exc.Kind != models.DndKeywordOverride || !exc.EffectiveAt(now) || exc.Keyword == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(exc.Keyword)) {
			_ = e.settings.TouchDndException(ctx, exc.ID, now)
			return true
		}
	}
	return false
}

func (e *Engine) modeAllows(ctx context.Context, settings *models.VisibilitySettings, viewerID, subjectID string, isFriend bool) (bool, error) {
	if settings.BlockUnknownUsers && !isFriend {
		return false, nil
	}
	switch settings.PrivacyMode {
	case models.PrivacyEveryone:
		return true, nil
	case models.PrivacyFriends:
		return isFriend, nil
	case models.PrivacyActiveChats:
		if viewerID == "" {
			return false, nil
		}
		return e.chats.HasActiveSession(ctx, viewerID, subjectID)
	case models.PrivacySelected:
		return viewerID != "" && settings.AllowedContacts.Contains(viewerID), nil
	case models.PrivacyNobody:
		return false, nil
	default:
		return false, nil
	}
}

// dndOverride checks viewer-scoped exception kinds: urgent_contact naming
// the viewer, active_chat with the viewer, or a time_based window. Keyword
// and group exceptions need message/group context and are matched by the
// messaging layer instead.
func (e *Engine) dndOverride(ctx context.Context, subjectID, viewerID string, now time.Time) (bool, error) {
	if viewerID == "" {
		return false, nil
	}
	exceptions, err := e.settings.ListDndExceptions(ctx, subjectID)
	if err != nil {
		return false, err
	}
	for i := range exceptions {
		exc := &exceptions[i]
		if !exc.EffectiveAt(now) {
			continue
		}
		matched := false
		switch exc.Kind {
		case models.DndUrgentContact:
			matched = exc.ContactID == viewerID
		case models.DndActiveChat:
			if exc.ContactID != "" {
				matched = exc.ContactID == viewerID
			} else {
				matched, err = e.chats.HasActiveSession(ctx, viewerID, subjectID)
				if err != nil {
					return false, err
				}
			}
		case models.DndTimeBased:
			matched = true // EffectiveAt already checked the clock window
		}
		if matched {
			_ = e.settings.TouchDndException(ctx, exc.ID, now)
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) selfView(rec models.PresenceRecord) models.VisibleProfile {
	profile := models.VisibleProfile{
		UserID:          rec.UserID,
		Status:          rec.Status,
		ActivityMessage: rec.ActivityMessage,
		CanMessage:      true,
		CanSeeLastSeen:  true,
	}
	if !rec.LastSeenAt.IsZero() {
		lastSeen := rec.LastSeenAt
		profile.LastSeenAt = &lastSeen
	}
	return profile
}

func (e *Engine) failClosed(subjectID string, err error) models.VisibleProfile {
	e.fail(errors.PolicyEvaluation(err))
	return offlineProfile(subjectID)
}

func (e *Engine) fail(err error) {
	if e.onFailure != nil {
		e.onFailure(err)
	}
}

func offlineProfile(subjectID string) models.VisibleProfile {
	return models.VisibleProfile{
		UserID:     subjectID,
		Status:     models.StatusOffline,
		CanMessage: false,
	}
}

func audienceAllows(a models.Audience, isFriend bool) bool {
	switch a {
	case models.AudienceEveryone:
		return true
	case models.AudienceFriends:
		return isFriend
	default:
		return false
	}
}
