package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// ChatSession mirrors the messaging subsystem's open-conversation rows.
// Presence only reads them, for the "active_chats" privacy mode and
// active-chat DND exceptions.
type ChatSession struct {
	ID        string `gorm:"primaryKey;size:64"`
	UserA     string `gorm:"size:64;index:idx_chat_sessions_pair"`
	UserB     string `gorm:"size:64;index:idx_chat_sessions_pair"`
	Active    bool
	UpdatedAt time.Time
}

// TableName maps chat sessions to the external schema
func (ChatSession) TableName() string { return "chat_sessions" }

// ChatSessionRepository answers active-conversation queries from the
// messaging schema.
type ChatSessionRepository struct {
	db *gorm.DB
}

// NewChatSessionRepository creates a gorm-backed chat session lookup
func NewChatSessionRepository(db *gorm.DB) *ChatSessionRepository {
	return &ChatSessionRepository{db: db}
}

// HasActiveSession reports whether a and b have an open conversation.
// Sessions are stored once per pair, in either order.
func (r *ChatSessionRepository) HasActiveSession(ctx context.Context, a, b string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&ChatSession{}).
		Where("active = ?", true).
		Where("(user_a = ? AND user_b = ?) OR (user_a = ? AND user_b = ?)", a, b, b, a).
		Count(&count)
	return count > 0, result.Error
}
