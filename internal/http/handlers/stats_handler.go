package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-agent/internal/repo"
)

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status     string `json:"status"`
	QueueDepth int    `json:"queue_depth"`
}

// StatsResponse reports store totals alongside the current backlog.
type StatsResponse struct {
	repo.Totals
	QueueDepth int `json:"queue_depth"`
}

func (h *Handlers) queueDepth() int {
	if h.queue == nil {
		return 0
	}
	return h.queue.QueueDepth()
}

// Health handles GET /health.
func (h *Handlers) Health(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{Status: "ok", QueueDepth: h.queueDepth()})
}

// Stats handles GET {base}/stats.
func (h *Handlers) Stats(c *gin.Context) {
	t, err := h.store.Totals(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, StatsResponse{Totals: t, QueueDepth: h.queueDepth()})
}
