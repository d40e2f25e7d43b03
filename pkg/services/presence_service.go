package services

import (
	"context"

	"github.com/silviutimaru/mivton-presence/pkg/models"
)

// PresenceService defines the presence business logic exposed to the HTTP
// and transport layers.
type PresenceService interface {
	// GetSelf retrieves the caller's true presence record (self-view)
	GetSelf(ctx context.Context, userID string) models.PresenceRecord

	// SetStatus applies an explicit status change with optional activity
	// message; nil message leaves the current one unchanged
	SetStatus(ctx context.Context, userID string, status models.Status, activityMessage *string) (models.PresenceRecord, error)

	// ResolveUser computes the subject's presence as the viewer may see it
	ResolveUser(ctx context.Context, viewerID, subjectID string) models.VisibleProfile

	// FriendsFiltered returns the viewer's friends with per-viewer filtered
	// presence and aggregate counts
	FriendsFiltered(ctx context.Context, viewerID string) (models.FriendsPresence, error)

	// RecordActivity feeds a user-activity signal into the tracker
	RecordActivity(ctx context.Context, userID string, kind models.ActivityKind)

	// ForceLogout clears all of a user's connections (account block path)
	ForceLogout(ctx context.Context, userID string)

	// GetSettings returns the user's visibility settings, defaults if unset
	GetSettings(ctx context.Context, userID string) (*models.VisibilitySettings, error)

	// UpdateSettings applies a validated partial update and persists the
	// replaced settings row
	UpdateSettings(ctx context.Context, userID string, patch *models.SettingsPatch) (*models.VisibilitySettings, error)

	// UpsertRestriction creates or replaces a per-contact restriction
	UpsertRestriction(ctx context.Context, restriction *models.ContactRestriction) error

	// ListRestrictions lists the owner's per-contact restrictions
	ListRestrictions(ctx context.Context, ownerID string) ([]models.ContactRestriction, error)

	// DeleteRestriction removes a per-contact restriction
	DeleteRestriction(ctx context.Context, ownerID, contactID string) error

	// CreateDndException stores a validated DND exception
	CreateDndException(ctx context.Context, exception *models.DndException) error

	// ListDndExceptions lists a user's DND exceptions
	ListDndExceptions(ctx context.Context, userID string) ([]models.DndException, error)

	// DeleteDndException removes one of the user's DND exceptions
	DeleteDndException(ctx context.Context, userID, exceptionID string) error

	// RunSweep collects idle connections; returns how many were removed
	RunSweep(ctx context.Context) int

	// RunAutoAwayCheck downgrades inactive online users to away
	RunAutoAwayCheck(ctx context.Context)

	// RunReconcile self-heals connection-count drift between the store and
	// the registry
	RunReconcile(ctx context.Context)
}
