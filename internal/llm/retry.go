package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/genai"
)

// RetryConfig bounds the exponential backoff applied to generation calls.
type RetryConfig struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// AttemptTimeout caps a single attempt; zero disables it.
	AttemptTimeout time.Duration
}

// DefaultRetryConfig is four attempts waiting 0.5s..6s between them.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     4,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     6 * time.Second,
		AttemptTimeout:  60 * time.Second,
	}
}

// Retrying decorates a Client with bounded exponential backoff. Client errors
// that cannot succeed on retry (4xx other than 408 and 429) stop immediately.
type Retrying struct {
	next   Client
	cfg    RetryConfig
	notify func(err error, wait time.Duration)
}

// NewRetrying wraps next. A zero MaxAttempts means a single attempt.
func NewRetrying(next Client, cfg RetryConfig) *Retrying {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		cfg.MaxInterval = cfg.InitialInterval
	}
	return &Retrying{next: next, cfg: cfg}
}

// OnRetry registers a callback invoked before each backoff wait.
func (r *Retrying) OnRetry(fn func(err error, wait time.Duration)) *Retrying {
	r.notify = fn
	return r
}

// Generate implements Client.
func (r *Retrying) Generate(ctx context.Context, req Request) (string, error) {
	op := func() (string, error) {
		actx := ctx
		if r.cfg.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, r.cfg.AttemptTimeout)
			defer cancel()
		}
		out, err := r.next.Generate(actx, req)
		if err != nil && !Retryable(err) {
			return "", backoff.Permanent(err)
		}
		return out, err
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.cfg.InitialInterval
	exp.MaxInterval = r.cfg.MaxInterval
	exp.Multiplier = 2

	opts := []backoff.RetryOption{
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(r.cfg.MaxAttempts),
	}
	if r.notify != nil {
		opts = append(opts, backoff.WithNotify(r.notify))
	}
	return backoff.Retry(ctx, op, opts...)
}

type statusCoder interface {
	HTTPStatusCode() int
}

// Retryable reports whether err is worth another attempt. Unknown errors are
// treated as transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return retryableStatus(sc.HTTPStatusCode())
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return retryableStatus(apiErrPtr.Code)
	}
	return true
}

func retryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 400 && code < 500:
		return false
	default:
		return true
	}
}
