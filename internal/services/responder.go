package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-chat-agent/internal/llm"
)

// ResponseTemperature is the sampling temperature for final replies.
const ResponseTemperature = 0.3

// Responder produces the final reply text.
type Responder struct {
	LLM       llm.Client
	AgentName string
}

// NewResponder returns a Responder speaking as agentName.
func NewResponder(client llm.Client, agentName string) *Responder {
	return &Responder{LLM: client, AgentName: agentName}
}

// Respond generates a reply. The result is trimmed but not clipped.
func (r *Responder) Respond(ctx context.Context, in ResponseInput) (string, error) {
	ctx, span := otel.Tracer("services/Responder").Start(ctx, "Respond",
		trace.WithAttributes(
			attribute.String("plan.intent", in.Intent),
			attribute.Int("tool.outputs", len(in.ToolOutputs)),
		),
	)
	defer span.End()

	out, err := r.LLM.Generate(ctx, llm.Request{
		System:      responseSystemPrompt(r.AgentName),
		User:        responseUserPrompt(in),
		Temperature: ResponseTemperature,
	})
	if err != nil {
		llmRequestsTotal.WithLabelValues("respond", "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return "", fmt.Errorf("respond: %w", err)
	}
	llmRequestsTotal.WithLabelValues("respond", "ok").Inc()
	return strings.TrimSpace(out), nil
}
