package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// contentGenerator is the slice of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini generates text through the Google Gen AI SDK.
type Gemini struct {
	models contentGenerator
	model  string
}

// NewGemini creates a Gemini API client.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("llm: gemini api key must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create genai client: %w", err)
	}
	return &Gemini{models: client.Models, model: model}, nil
}

// Generate implements Client.
func (g *Gemini) Generate(ctx context.Context, r Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(r.System, genai.RoleUser),
		Temperature:       genai.Ptr(float32(r.Temperature)),
	}
	if r.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	contents := []*genai.Content{genai.NewContentFromText(r.User, genai.RoleUser)}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("llm: gemini generate: %w", err)
	}
	if resp == nil {
		return "", ErrNoText
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
