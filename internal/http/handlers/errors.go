package handlers

// Stable, machine-readable error codes carried in ErrorResponse.Code.
// Clients branch on these rather than on messages.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeListFailed  = "list_failed"
	ErrCodeStatsFailed = "stats_failed"
)
