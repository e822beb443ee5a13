package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-agent/internal/domain"
	"github.com/tbourn/go-chat-agent/internal/utils"
)

const maxFactsLimit = 100

// ListFactsResponse holds a user's most recent profile facts, newest first.
type ListFactsResponse struct {
	UserID int64                `json:"user_id"`
	Facts  []domain.ProfileFact `json:"facts"`
}

// ListFacts handles GET {base}/users/:user_id/facts?limit=N.
func (h *Handlers) ListFacts(c *gin.Context) {
	userID, okID := pathInt64(c, "user_id")
	if !okID {
		return
	}
	limit := utils.AtoiDefault(c.Query("limit"), h.factsLimit)
	if limit < 1 || limit > maxFactsLimit {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "limit must be between 1 and 100")
		return
	}

	facts, err := h.store.RecentProfileFacts(c.Request.Context(), userID, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if facts == nil {
		facts = []domain.ProfileFact{}
	}
	ok(c, http.StatusOK, ListFactsResponse{UserID: userID, Facts: facts})
}
