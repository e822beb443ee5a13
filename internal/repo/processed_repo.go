// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the processed-message markers that make
// message handling at-most-once per (chat_id, message_id).
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-agent/internal/domain"
)

// IsProcessed reports whether a marker exists for (chatID, messageID).
func IsProcessed(ctx context.Context, db *gorm.DB, chatID, messageID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ProcessedMessage{}).
		Where("chat_id = ? AND message_id = ?", chatID, messageID).
		Count(&n).Error
	return n > 0, err
}

// MarkProcessed records a marker for (chatID, messageID). A duplicate insert
// is a no-op, not an error; inserted reports whether this call created the row.
func MarkProcessed(ctx context.Context, db *gorm.DB, chatID, messageID int64) (inserted bool, err error) {
	rec := &domain.ProcessedMessage{
		ChatID:    chatID,
		MessageID: messageID,
		CreatedAt: time.Now().UTC(),
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
