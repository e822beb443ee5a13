package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-agent/internal/domain"
)

// Store binds the repository free functions to one *gorm.DB so that services
// can depend on a small interface instead of the repo package. Every method is
// a single self-contained statement; no transaction spans two calls.
type Store struct {
	DB *gorm.DB
}

// NewStore returns a Store over db.
func NewStore(db *gorm.DB) *Store { return &Store{DB: db} }

// IsProcessed proxies IsProcessed.
func (s *Store) IsProcessed(ctx context.Context, chatID, messageID int64) (bool, error) {
	return IsProcessed(ctx, s.DB, chatID, messageID)
}

// MarkProcessed proxies MarkProcessed.
func (s *Store) MarkProcessed(ctx context.Context, chatID, messageID int64) (bool, error) {
	return MarkProcessed(ctx, s.DB, chatID, messageID)
}

// AppendTurn proxies AppendTurn.
func (s *Store) AppendTurn(ctx context.Context, chatID, userID int64, role, text string, meta map[string]any) error {
	_, err := AppendTurn(ctx, s.DB, chatID, userID, role, text, meta)
	return err
}

// RecentTurns proxies RecentTurns.
func (s *Store) RecentTurns(ctx context.Context, chatID int64, limit int) ([]domain.Turn, error) {
	return RecentTurns(ctx, s.DB, chatID, limit)
}

// AddProfileFact proxies AddProfileFact.
func (s *Store) AddProfileFact(ctx context.Context, userID int64, key, value string, confidence float64) error {
	_, err := AddProfileFact(ctx, s.DB, userID, key, value, confidence)
	return err
}

// RecentProfileFacts proxies RecentProfileFacts.
func (s *Store) RecentProfileFacts(ctx context.Context, userID int64, limit int) ([]domain.ProfileFact, error) {
	return RecentProfileFacts(ctx, s.DB, userID, limit)
}

// TurnsPage returns one page of a chat's turns in chronological order plus the
// chat's total turn count. page is 1-based.
func (s *Store) TurnsPage(ctx context.Context, chatID int64, page, pageSize int) ([]domain.Turn, int64, error) {
	total, err := CountTurns(ctx, s.DB, chatID)
	if err != nil {
		return nil, 0, err
	}
	items, err := ListTurnsPage(ctx, s.DB, chatID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// TurnsStats proxies TurnsStats.
func (s *Store) TurnsStats(ctx context.Context, chatID int64) (int64, *time.Time, error) {
	return TurnsStats(ctx, s.DB, chatID)
}

// Totals proxies StoreTotals.
func (s *Store) Totals(ctx context.Context) (Totals, error) {
	return StoreTotals(ctx, s.DB)
}
