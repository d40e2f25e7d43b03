package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/silviutimaru/mivton-presence/pkg/models"
)

// settingsRepositoryImpl implements SettingsRepository on gorm
type settingsRepositoryImpl struct {
	db *gorm.DB
}

// NewSettingsRepository creates a gorm-backed settings repository
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepositoryImpl{db: db}
}

// GetSettings retrieves a user's visibility settings
func (r *settingsRepositoryImpl) GetSettings(ctx context.Context, userID string) (*models.VisibilitySettings, error) {
	var settings models.VisibilitySettings
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &settings, nil
}

// SaveSettings creates or replaces the user's settings row
func (r *settingsRepositoryImpl) SaveSettings(ctx context.Context, settings *models.VisibilitySettings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(settings).Error
}

// GetRestriction retrieves the restriction for an (owner, contact) pair
func (r *settingsRepositoryImpl) GetRestriction(ctx context.Context, ownerID, contactID string) (*models.ContactRestriction, error) {
	var restriction models.ContactRestriction
	result := r.db.WithContext(ctx).
		Where("owner_id = ? AND contact_id = ?", ownerID, contactID).
		First(&restriction)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &restriction, nil
}

// ListRestrictions retrieves all restrictions owned by a user
func (r *settingsRepositoryImpl) ListRestrictions(ctx context.Context, ownerID string) ([]models.ContactRestriction, error) {
	var restrictions []models.ContactRestriction
	result := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("contact_id").
		Find(&restrictions)
	return restrictions, result.Error
}

// SaveRestriction creates or replaces a restriction row
func (r *settingsRepositoryImpl) SaveRestriction(ctx context.Context, restriction *models.ContactRestriction) error {
	if restriction.OwnerID == restriction.ContactID {
		return fmt.Errorf("restriction owner and contact must differ")
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "contact_id"}},
			UpdateAll: true,
		}).
		Create(restriction).Error
}

// DeleteRestriction removes a restriction row
func (r *settingsRepositoryImpl) DeleteRestriction(ctx context.Context, ownerID, contactID string) error {
	return r.db.WithContext(ctx).
		Where("owner_id = ? AND contact_id = ?", ownerID, contactID).
		Delete(&models.ContactRestriction{}).Error
}

// CreateDndException stores a new DND exception
func (r *settingsRepositoryImpl) CreateDndException(ctx context.Context, exception *models.DndException) error {
	if exception.ID == "" {
		exception.ID = uuid.New().String()
	}
	if exception.ValidFrom.IsZero() {
		exception.ValidFrom = time.Now()
	}
	return r.db.WithContext(ctx).Create(exception).Error
}

// ListDndExceptions retrieves all of a user's DND exceptions
func (r *settingsRepositoryImpl) ListDndExceptions(ctx context.Context, userID string) ([]models.DndException, error) {
	var exceptions []models.DndException
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&exceptions)
	return exceptions, result.Error
}

// DeleteDndException removes one of the user's exceptions
func (r *settingsRepositoryImpl) DeleteDndException(ctx context.Context, userID, exceptionID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, exceptionID).
		Delete(&models.DndException{}).Error
}

// TouchDndException bumps the usage counter for an exception
func (r *settingsRepositoryImpl) TouchDndException(ctx context.Context, exceptionID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.DndException{}).
		Where("id = ?", exceptionID).
		Updates(map[string]interface{}{
			"use_count":    gorm.Expr("use_count + 1"),
			"last_used_at": at,
		}).Error
}
