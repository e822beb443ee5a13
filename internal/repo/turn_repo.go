// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for conversation
// turns (the messages table).
//
// Turns are append-only. Reads order by (created_at, id) so rows written in
// the same clock tick keep their insertion order.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-agent/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// AppendTurn inserts a new turn for chatID authored by userID.
func AppendTurn(ctx context.Context, db *gorm.DB, chatID, userID int64, role, text string, meta map[string]any) (*domain.Turn, error) {
	if meta == nil {
		meta = map[string]any{}
	}
	t := &domain.Turn{
		ChatID:    chatID,
		UserID:    userID,
		Role:      role,
		Text:      text,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}
	return t, db.WithContext(ctx).Create(t).Error
}

// RecentTurns returns the most recent limit turns of chatID in chronological
// (oldest-first) order. A limit <= 0 returns no rows.
func RecentTurns(ctx context.Context, db *gorm.DB, chatID int64, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		return []domain.Turn{}, nil
	}
	var out []domain.Turn
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountTurns uses a raw COUNT so a missing table surfaces as an error.
func CountTurns(ctx context.Context, db *gorm.DB, chatID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM messages WHERE chat_id = ?", chatID).Scan(&total).Error
	return total, err
}

// ListTurnsPage returns a paginated slice ordered (created_at ASC, id ASC).
func ListTurnsPage(ctx context.Context, db *gorm.DB, chatID int64, offset, limit int) ([]domain.Turn, error) {
	var out []domain.Turn
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
