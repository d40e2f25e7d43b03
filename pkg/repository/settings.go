package repository

import (
	"context"
	"time"

	"github.com/silviutimaru/mivton-presence/pkg/models"
)

// SettingsRepository defines the persistence boundary for visibility
// settings, per-contact restrictions and DND exceptions. Records are
// replaced wholesale on write so concurrent readers never see a partial
// update.
type SettingsRepository interface {
	// GetSettings retrieves a user's visibility settings; nil when the user
	// has never written any (callers fall back to defaults)
	GetSettings(ctx context.Context, userID string) (*models.VisibilitySettings, error)

	// SaveSettings creates or replaces the user's settings row
	SaveSettings(ctx context.Context, settings *models.VisibilitySettings) error

	// GetRestriction retrieves the restriction for an (owner, contact) pair;
	// nil when none exists
	GetRestriction(ctx context.Context, ownerID, contactID string) (*models.ContactRestriction, error)

	// ListRestrictions retrieves all restrictions owned by a user
	ListRestrictions(ctx context.Context, ownerID string) ([]models.ContactRestriction, error)

	// SaveRestriction creates or replaces a restriction row
	SaveRestriction(ctx context.Context, restriction *models.ContactRestriction) error

	// DeleteRestriction removes a restriction row
	DeleteRestriction(ctx context.Context, ownerID, contactID string) error

	// CreateDndException stores a new DND exception
	CreateDndException(ctx context.Context, exception *models.DndException) error

	// ListDndExceptions retrieves all of a user's DND exceptions
	ListDndExceptions(ctx context.Context, userID string) ([]models.DndException, error)

	// DeleteDndException removes one of the user's exceptions
	DeleteDndException(ctx context.Context, userID, exceptionID string) error

	// TouchDndException bumps the usage counter after an exception granted
	// an override
	TouchDndException(ctx context.Context, exceptionID string, at time.Time) error
}

// RelationRepository is the friendship/block relation consulted by the
// visibility policy engine. The write paths for the social graph live in
// the main application; presence only reads it.
type RelationRepository interface {
	// AreFriends reports whether a and b are friends
	AreFriends(ctx context.Context, a, b string) (bool, error)

	// IsBlocked reports whether blocker has blocked blockee
	IsBlocked(ctx context.Context, blocker, blockee string) (bool, error)

	// Friends lists a user's friend IDs
	Friends(ctx context.Context, userID string) ([]string, error)
}
