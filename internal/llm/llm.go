// Package llm is the text-generation collaborator of the pipeline. It exposes
// one narrow Client contract with an OpenAI-compatible HTTP implementation and
// a Gemini implementation, a retrying decorator, and helpers for structured
// (JSON object) generation with a caller-supplied fallback.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Request is one generation call.
type Request struct {
	System      string
	User        string
	Temperature float64
	// JSON asks the provider for a JSON object response when it supports it.
	JSON bool
}

// Client generates text for a single system+user prompt pair.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

// Generate implements Client.
func (f ClientFunc) Generate(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

// ErrNoText is returned when a provider answers without any text.
var ErrNoText = errors.New("llm: response contained no text")

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// NormalizeProvider lowercases and trims a provider name.
func NormalizeProvider(p string) string { return strings.ToLower(strings.TrimSpace(p)) }

// Options selects and configures a provider for New.
type Options struct {
	Provider      string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	GeminiKey     string
	GeminiModel   string
	Retry         RetryConfig
}

// New builds the configured provider wrapped in Retrying.
func New(ctx context.Context, o Options) (*Retrying, error) {
	var base Client
	switch NormalizeProvider(o.Provider) {
	case ProviderOpenAI, "":
		var opts []OpenAIOption
		if o.OpenAIBaseURL != "" {
			opts = append(opts, WithBaseURL(o.OpenAIBaseURL))
		}
		c, err := NewOpenAI(o.OpenAIKey, o.OpenAIModel, opts...)
		if err != nil {
			return nil, err
		}
		base = c
	case ProviderGemini:
		c, err := NewGemini(ctx, o.GeminiKey, o.GeminiModel)
		if err != nil {
			return nil, err
		}
		base = c
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", o.Provider)
	}
	return NewRetrying(base, o.Retry), nil
}
