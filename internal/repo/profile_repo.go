// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for user profile
// facts.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-agent/internal/domain"
)

// AddProfileFact appends a fact for userID. There is no upsert; rows sharing
// a key are all kept and ordered by recency on read.
func AddProfileFact(ctx context.Context, db *gorm.DB, userID int64, key, value string, confidence float64) (*domain.ProfileFact, error) {
	f := &domain.ProfileFact{
		UserID:     userID,
		FactKey:    key,
		FactValue:  value,
		Confidence: confidence,
		CreatedAt:  time.Now().UTC(),
	}
	return f, db.WithContext(ctx).Create(f).Error
}

// RecentProfileFacts returns up to limit facts for userID, newest first.
func RecentProfileFacts(ctx context.Context, db *gorm.DB, userID int64, limit int) ([]domain.ProfileFact, error) {
	if limit <= 0 {
		return []domain.ProfileFact{}, nil
	}
	var out []domain.ProfileFact
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
