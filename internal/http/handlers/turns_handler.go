package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-agent/internal/domain"
	"github.com/tbourn/go-chat-agent/internal/utils"
)

// ListTurnsResponse contains a page of stored turns and pagination metadata.
type ListTurnsResponse struct {
	ChatID     int64         `json:"chat_id"`
	Turns      []domain.Turn `json:"turns"`
	Pagination Pagination    `json:"pagination"`
}

// clampPagination parses page/page_size, applying defaults and caps.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = max(utils.AtoiDefault(c.Query("page"), defaultPage), 1)
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	return page, min(max(pageSize, 1), maxPageSize)
}

// pathInt64 parses a numeric path parameter. Telegram identifiers may be
// negative (group chats), so any int64 is accepted.
func pathInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be an integer")
		return 0, false
	}
	return v, true
}

// ListTurns handles GET {base}/chats/:chat_id/turns.
//
// Turns are returned oldest first. A weak ETag derived from the chat's turn
// count and newest timestamp is attached; a matching If-None-Match yields 304.
func (h *Handlers) ListTurns(c *gin.Context) {
	ctx := c.Request.Context()
	chatID, okID := pathInt64(c, "chat_id")
	if !okID {
		return
	}

	if count, maxTS, err := h.store.TurnsStats(ctx, chatID); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"turns:%d:%d:%d"`, chatID, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	page, pageSize := clampPagination(c)
	items, total, err := h.store.TurnsPage(ctx, chatID, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Turn{}
	}
	ok(c, http.StatusOK, ListTurnsResponse{
		ChatID:     chatID,
		Turns:      items,
		Pagination: newPagination(page, pageSize, total),
	})
}
