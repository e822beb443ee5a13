package handlers

import (
	"context"
	"time"

	"github.com/tbourn/go-chat-agent/internal/domain"
	"github.com/tbourn/go-chat-agent/internal/repo"
	"github.com/tbourn/go-chat-agent/internal/transport/telegram"
)

// ConversationStore is the read side of the store used by the inspection
// endpoints. *repo.Store satisfies it.
type ConversationStore interface {
	TurnsPage(ctx context.Context, chatID int64, page, pageSize int) ([]domain.Turn, int64, error)
	TurnsStats(ctx context.Context, chatID int64) (int64, *time.Time, error)
	RecentProfileFacts(ctx context.Context, userID int64, limit int) ([]domain.ProfileFact, error)
	Totals(ctx context.Context) (repo.Totals, error)
}

// QueueReporter exposes the runtime's backlog. *services.Runtime satisfies it.
type QueueReporter interface {
	QueueDepth() int
}

// WebhookReceiver accepts pushed Telegram updates. *telegram.Gateway
// satisfies it.
type WebhookReceiver interface {
	SecretMatches(header string) bool
	HandleUpdate(u telegram.Update) bool
}

// Handlers groups the HTTP endpoints. Webhook may be nil when the Telegram
// transport runs in polling mode.
type Handlers struct {
	store   ConversationStore
	queue   QueueReporter
	webhook WebhookReceiver

	factsLimit int
}

// New constructs Handlers. factsLimit is the default number of profile facts
// returned when the request does not specify one.
func New(store ConversationStore, queue QueueReporter, webhook WebhookReceiver, factsLimit int) *Handlers {
	if factsLimit <= 0 {
		factsLimit = 8
	}
	return &Handlers{store: store, queue: queue, webhook: webhook, factsLimit: factsLimit}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}
