// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// for conditional responses (ETag generation) and the ops stats endpoint.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-agent/internal/domain"
)

// Totals is a snapshot of row counts across the store.
type Totals struct {
	Processed int64 `json:"processed_messages"`
	Turns     int64 `json:"turns"`
	Facts     int64 `json:"profile_facts"`
}

// TurnsStats returns the number of turns in chatID and the greatest
// CreatedAt among them. When the chat has no turns, count is 0 and
// maxCreatedAt is nil.
func TurnsStats(ctx context.Context, db *gorm.DB, chatID int64) (count int64, maxCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Turn{}).Where("chat_id = ?", chatID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}

// StoreTotals counts rows in every table.
func StoreTotals(ctx context.Context, db *gorm.DB) (Totals, error) {
	var t Totals
	db = db.WithContext(ctx)
	if err := db.Model(&domain.ProcessedMessage{}).Count(&t.Processed).Error; err != nil {
		return Totals{}, err
	}
	if err := db.Model(&domain.Turn{}).Count(&t.Turns).Error; err != nil {
		return Totals{}, err
	}
	if err := db.Model(&domain.ProfileFact{}).Count(&t.Facts).Error; err != nil {
		return Totals{}, err
	}
	return t, nil
}
