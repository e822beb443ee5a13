// Package handlers implements the agent's operational HTTP endpoints: health,
// conversation and profile inspection, store statistics, and the Telegram
// webhook receiver.
//
// Every error leaves through fail(), which writes the ErrorResponse envelope
// and logs 5xx outcomes with the request-scoped logger:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "route not found"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-agent/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors (echo of X-Request-ID).
	RequestID string `json:"request_id,omitempty"`
	// Stable, machine-readable code (see errors.go constants).
	Code string `json:"code"`
	// Human-readable message.
	Message string `json:"message"`
}

// fail aborts the request with a structured error. Server errors are logged.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail, used by router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
