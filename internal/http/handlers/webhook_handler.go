package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-agent/internal/http/middleware"
	"github.com/tbourn/go-chat-agent/internal/transport/telegram"
)

// TelegramWebhook handles POST {base}/telegram/webhook.
//
// Requests without the configured secret token are rejected with 401. Once
// authenticated the update is always acknowledged with 200, even when it is
// malformed, ignored or dropped on a full queue, so Telegram does not keep
// re-delivering it.
func (h *Handlers) TelegramWebhook(c *gin.Context) {
	if h.webhook == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "webhook not enabled")
		return
	}
	if !h.webhook.SecretMatches(c.GetHeader(telegram.SecretHeader)) {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid webhook secret")
		return
	}

	var u telegram.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("malformed telegram update")
		ok(c, http.StatusOK, gin.H{"ok": true, "accepted": false})
		return
	}
	accepted := h.webhook.HandleUpdate(u)
	ok(c, http.StatusOK, gin.H{"ok": true, "accepted": accepted})
}
