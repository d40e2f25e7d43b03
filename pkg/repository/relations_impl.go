package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Friendship is one direction of a confirmed friend relation. The main
// application writes both directions on accept; presence only reads them.
type Friendship struct {
	UserID    string    `gorm:"primaryKey;size:64"`
	FriendID  string    `gorm:"primaryKey;size:64"`
	CreatedAt time.Time
}

// TableName maps friendships to the external schema
func (Friendship) TableName() string { return "friendships" }

// UserBlock records that blocker has blocked blocked
type UserBlock struct {
	BlockerID string    `gorm:"primaryKey;size:64"`
	BlockedID string    `gorm:"primaryKey;size:64"`
	CreatedAt time.Time
}

// TableName maps blocks to the external schema
func (UserBlock) TableName() string { return "user_blocks" }

// relationRepositoryImpl implements RelationRepository on gorm
type relationRepositoryImpl struct {
	db *gorm.DB
}

// NewRelationRepository creates a gorm-backed friendship/block relation
func NewRelationRepository(db *gorm.DB) RelationRepository {
	return &relationRepositoryImpl{db: db}
}

// AreFriends reports whether a and b are friends
func (r *relationRepositoryImpl) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&Friendship{}).
		Where("user_id = ? AND friend_id = ?", a, b).
		Count(&count)
	return count > 0, result.Error
}

// IsBlocked reports whether blocker has blocked blockee
func (r *relationRepositoryImpl) IsBlocked(ctx context.Context, blocker, blockee string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&UserBlock{}).
		Where("blocker_id = ? AND blocked_id = ?", blocker, blockee).
		Count(&count)
	return count > 0, result.Error
}

// Friends lists a user's friend IDs
func (r *relationRepositoryImpl) Friends(ctx context.Context, userID string) ([]string, error) {
	var friendIDs []string
	result := r.db.WithContext(ctx).
		Model(&Friendship{}).
		Where("user_id = ?", userID).
		Pluck("friend_id", &friendIDs)
	return friendIDs, result.Error
}
