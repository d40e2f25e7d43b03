package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/silviutimaru/mivton-presence/pkg/activity"
	"github.com/silviutimaru/mivton-presence/pkg/broadcast"
	"github.com/silviutimaru/mivton-presence/pkg/errors"
	"github.com/silviutimaru/mivton-presence/pkg/logging"
	"github.com/silviutimaru/mivton-presence/pkg/models"
	"github.com/silviutimaru/mivton-presence/pkg/policy"
	"github.com/silviutimaru/mivton-presence/pkg/presence"
	"github.com/silviutimaru/mivton-presence/pkg/registry"
	"github.com/silviutimaru/mivton-presence/pkg/repository"
)

// presenceServiceImpl implements PresenceService
type presenceServiceImpl struct {
	registry    *registry.Registry
	store       *presence.Store
	tracker     *activity.Tracker
	engine      *policy.Engine
	broadcaster *broadcast.Broadcaster
	settings    repository.SettingsRepository
	idleTimeout time.Duration
	clock       func() time.Time
	log         *logging.Logger

	onSweepRemoved  func(n int)
	onAutoAway      func()
	onReconciled    func()
}

// Option configures the presence service
type Option func(*presenceServiceImpl)

// WithClock injects a deterministic time source for tests
func WithClock(clock func() time.Time) Option {
	return func(s *presenceServiceImpl) { s.clock = clock }
}

// WithHooks installs observability callbacks for the background runs
func WithHooks(onSweepRemoved func(n int), onAutoAway func(), onReconciled func()) Option {
	return func(s *presenceServiceImpl) {
		s.onSweepRemoved = onSweepRemoved
		s.onAutoAway = onAutoAway
		s.onReconciled = onReconciled
	}
}

// NewPresenceService creates the presence service facade
func NewPresenceService(
	reg *registry.Registry,
	store *presence.Store,
	tracker *activity.Tracker,
	engine *policy.Engine,
	broadcaster *broadcast.Broadcaster,
	settings repository.SettingsRepository,
	idleTimeout time.Duration,
	log *logging.Logger,
	opts ...Option,
) PresenceService {
	s := &presenceServiceImpl{
		registry:    reg,
		store:       store,
		tracker:     tracker,
		engine:      engine,
		broadcaster: broadcaster,
		settings:    settings,
		idleTimeout: idleTimeout,
		clock:       time.Now,
		log:         log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetSelf retrieves the caller's true presence record
func (s *presenceServiceImpl) GetSelf(ctx context.Context, userID string) models.PresenceRecord {
	return s.store.Get(userID)
}

// SetStatus applies an explicit status change
func (s *presenceServiceImpl) SetStatus(ctx context.Context, userID string, status models.Status, activityMessage *string) (models.PresenceRecord, error) {
	rec, err := s.store.SetStatus(userID, status, activityMessage)
	if err != nil {
		return models.PresenceRecord{}, err
	}
	s.log.Debug("status set",
		zap.String("user_id", userID),
		zap.String("status", string(rec.Status)),
		zap.String("preferred", string(rec.Preferred)))
	return rec, nil
}

// ResolveUser computes the subject's presence as the viewer may see it
func (s *presenceServiceImpl) ResolveUser(ctx context.Context, viewerID, subjectID string) models.VisibleProfile {
	return s.engine.Resolve(ctx, viewerID, subjectID)
}

// FriendsFiltered returns the viewer's filtered friend presences
func (s *presenceServiceImpl) FriendsFiltered(ctx context.Context, viewerID string) (models.FriendsPresence, error) {
	return s.broadcaster.FriendsFiltered(ctx, viewerID)
}

// RecordActivity feeds a user-activity signal into the tracker
func (s *presenceServiceImpl) RecordActivity(ctx context.Context, userID string, kind models.ActivityKind) {
	s.tracker.RecordActivity(userID, kind, s.clock())
}

// ForceLogout clears all of a user's connections
func (s *presenceServiceImpl) ForceLogout(ctx context.Context, userID string) {
	s.registry.DeregisterAllForUser(userID)
	s.tracker.Forget(userID)
	s.broadcaster.ForgetViewer(userID)
	s.log.Info("forced logout", zap.String("user_id", userID))
}

// GetSettings returns the user's settings, falling back to defaults
func (s *presenceServiceImpl) GetSettings(ctx context.Context, userID string) (*models.VisibilitySettings, error) {
	settings, err := s.settings.GetSettings(ctx, userID)
	if err != nil {
		return nil, errors.Internal("failed to load settings", err)
	}
	if settings == nil {
		settings = models.DefaultVisibilitySettings(userID)
	}
	return settings, nil
}

// UpdateSettings validates the patch, applies it to a copy of the current
// settings and replaces the row wholesale.
func (s *presenceServiceImpl) UpdateSettings(ctx context.Context, userID string, patch *models.SettingsPatch) (*models.VisibilitySettings, error) {
	if err := validateSettingsPatch(patch); err != nil {
		return nil, err
	}

	current, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	updated := patch.Apply(*current)
	updated.UserID = userID
	if err := s.settings.SaveSettings(ctx, &updated); err != nil {
		return nil, errors.Internal("failed to save settings", err)
	}
	return &updated, nil
}

func validateSettingsPatch(patch *models.SettingsPatch) error {
	if patch == nil {
		return errors.BadRequest("empty settings patch")
	}
	if patch.PrivacyMode != nil && !patch.PrivacyMode.Valid() {
		return errors.Validation("unknown privacy mode", string(*patch.PrivacyMode))
	}
	if patch.LastSeenVisibility != nil && !patch.LastSeenVisibility.Valid() {
		return errors.Validation("unknown last-seen visibility", string(*patch.LastSeenVisibility))
	}
	if patch.OnlineVisibility != nil && !patch.OnlineVisibility.Valid() {
		return errors.Validation("unknown online visibility", string(*patch.OnlineVisibility))
	}
	// Rejected, not clamped: a zero or negative threshold would make
	// auto-away fire instantly.
	if patch.AutoAwayMinutes != nil && *patch.AutoAwayMinutes <= 0 {
		return errors.InvalidStatus("auto-away minutes must be positive")
	}
	if patch.QuietHoursStart != nil && *patch.QuietHoursStart != "" && !models.ValidClock(*patch.QuietHoursStart) {
		return errors.Validation("quiet hours start must be HH:MM", *patch.QuietHoursStart)
	}
	if patch.QuietHoursEnd != nil && *patch.QuietHoursEnd != "" && !models.ValidClock(*patch.QuietHoursEnd) {
		return errors.Validation("quiet hours end must be HH:MM", *patch.QuietHoursEnd)
	}
	return nil
}

// UpsertRestriction creates or replaces a per-contact restriction
func (s *presenceServiceImpl) UpsertRestriction(ctx context.Context, restriction *models.ContactRestriction) error {
	if restriction.OwnerID == "" || restriction.ContactID == "" {
		return errors.BadRequest("owner and contact are required")
	}
	if restriction.OwnerID == restriction.ContactID {
		return errors.Validation("cannot restrict yourself", restriction.OwnerID)
	}
	if err := s.settings.SaveRestriction(ctx, restriction); err != nil {
		return errors.Internal("failed to save restriction", err)
	}
	return nil
}

// ListRestrictions lists the owner's per-contact restrictions
func (s *presenceServiceImpl) ListRestrictions(ctx context.Context, ownerID string) ([]models.ContactRestriction, error) {
	restrictions, err := s.settings.ListRestrictions(ctx, ownerID)
	if err != nil {
		return nil, errors.Internal("failed to list restrictions", err)
	}
	return restrictions, nil
}

// DeleteRestriction removes a per-contact restriction
func (s *presenceServiceImpl) DeleteRestriction(ctx context.Context, ownerID, contactID string) error {
	if err := s.settings.DeleteRestriction(ctx, ownerID, contactID); err != nil {
		return errors.Internal("failed to delete restriction", err)
	}
	return nil
}

// CreateDndException stores a validated DND exception
func (s *presenceServiceImpl) CreateDndException(ctx context.Context, exception *models.DndException) error {
	if exception.UserID == "" {
		return errors.BadRequest("user is required")
	}
	if !exception.Kind.Valid() {
		return errors.Validation("unknown exception kind", string(exception.Kind))
	}
	switch exception.Kind {
	case models.DndUrgentContact:
		if exception.ContactID == "" {
			return errors.Validation("urgent_contact exception requires a contact", "")
		}
	case models.DndKeywordOverride:
		if exception.Keyword == "" {
			return errors.Validation("keyword_override exception requires a keyword", "")
		}
	case models.DndTimeBased:
		if !models.ValidClock(exception.StartClock) || !models.ValidClock(exception.EndClock) {
			return errors.Validation("time_based exception requires HH:MM start and end", "")
		}
	case models.DndGroupChat:
		if exception.GroupID == "" {
			return errors.Validation("group_chat exception requires a group", "")
		}
	}
	if exception.ValidUntil != nil && !exception.ValidUntil.After(s.clock()) {
		return errors.Validation("exception validity window is already over", "")
	}
	exception.Active = true
	if err := s.settings.CreateDndException(ctx, exception); err != nil {
		return errors.Internal("failed to create exception", err)
	}
	return nil
}

// ListDndExceptions lists a user's DND exceptions
func (s *presenceServiceImpl) ListDndExceptions(ctx context.Context, userID string) ([]models.DndException, error) {
	exceptions, err := s.settings.ListDndExceptions(ctx, userID)
	if err != nil {
		return nil, errors.Internal("failed to list exceptions", err)
	}
	return exceptions, nil
}

// DeleteDndException removes one of the user's DND exceptions
func (s *presenceServiceImpl) DeleteDndException(ctx context.Context, userID, exceptionID string) error {
	if err := s.settings.DeleteDndException(ctx, userID, exceptionID); err != nil {
		return errors.Internal("failed to delete exception", err)
	}
	return nil
}

// RunSweep collects idle connections whose disconnect event was lost
func (s *presenceServiceImpl) RunSweep(ctx context.Context) int {
	removed := s.registry.Sweep(s.idleTimeout)
	if removed > 0 {
		s.log.Info("idle sweep removed connections", zap.Int("removed", removed))
		if s.onSweepRemoved != nil {
			s.onSweepRemoved(removed)
		}
	}
	return removed
}

// RunAutoAwayCheck downgrades inactive online users to away. Pure
// recomputation from stored timestamps; safe to re-run or skip ticks.
func (s *presenceServiceImpl) RunAutoAwayCheck(ctx context.Context) {
	now := s.clock()
	for _, userID := range s.registry.ConnectedUsers() {
		rec := s.store.Get(userID)
		if rec.Status != models.StatusOnline {
			continue
		}
		settings, err := s.settings.GetSettings(ctx, userID)
		if err != nil {
			s.log.Warn("auto-away check skipped user",
				zap.String("user_id", userID), zap.Error(err))
			continue
		}
		if settings == nil {
			settings = models.DefaultVisibilitySettings(userID)
		}
		last, ok := s.tracker.LastActivity(userID)
		if !ok {
			last = rec.LastSeenAt
		}
		if activity.CheckAutoAway(settings, last, now) {
			if s.store.MarkAutoAway(userID, now) && s.onAutoAway != nil {
				s.onAutoAway()
			}
		}
	}
}

// RunReconcile self-heals connection-count drift between store and
// registry. Drift is logged and counted, never surfaced to users.
func (s *presenceServiceImpl) RunReconcile(ctx context.Context) {
	for _, userID := range s.store.Users() {
		if err := s.store.Reconcile(userID, s.registry.CountConnections(userID)); err != nil {
			s.log.Warn("connection count drift corrected", zap.Error(err))
			if s.onReconciled != nil {
				s.onReconciled()
			}
		}
	}
}
