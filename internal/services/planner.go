package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-chat-agent/internal/domain"
	"github.com/tbourn/go-chat-agent/internal/llm"
)

// Planner defaults.
const (
	DefaultIntent     = "general_question"
	DefaultReplyStyle = "clear_direct"
	// MinPlanConfidence is the confidence below which a plan is not acted on.
	MinPlanConfidence = 0.25

	fallbackConfidence = 0.40
	missingConfidence  = 0.5
	fallbackRationale  = "fallback planner path"
)

// Planner asks the text-generation service to classify intent, decide
// reply-worthiness, and pick tool calls.
type Planner struct {
	LLM       llm.Client
	AgentName string
	// Tools is the allow-list; calls to any other name are dropped.
	Tools []string
}

// NewPlanner returns a Planner that only keeps calls to the given tools.
func NewPlanner(client llm.Client, agentName string, tools []string) *Planner {
	return &Planner{LLM: client, AgentName: agentName, Tools: tools}
}

func plannerFallback() map[string]any {
	return map[string]any{
		"should_reply": true,
		"intent":       DefaultIntent,
		"confidence":   fallbackConfidence,
		"reply_style":  DefaultReplyStyle,
		"tool_calls":   []any{},
		"rationale":    fallbackRationale,
	}
}

// Plan returns the planned action for one message. Malformed output yields
// the fallback plan; only a failed generation call is an error.
func (p *Planner) Plan(ctx context.Context, sender, text string, contextLines []string) (domain.PlannedAction, error) {
	ctx, span := otel.Tracer("services/Planner").Start(ctx, "Plan",
		trace.WithAttributes(attribute.Int("context.lines", len(contextLines))),
	)
	defer span.End()

	obj, parsed, err := llm.GenerateJSON(ctx, p.LLM,
		plannerSystemPrompt(p.Tools),
		plannerUserPrompt(p.AgentName, sender, text, contextLines),
		plannerFallback(),
	)
	if err != nil {
		llmRequestsTotal.WithLabelValues("plan", "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return domain.PlannedAction{}, fmt.Errorf("plan: %w", err)
	}
	if !parsed {
		llmRequestsTotal.WithLabelValues("plan", "fallback").Inc()
		zerolog.Ctx(ctx).Warn().Msg("planner output was not a JSON object; using fallback plan")
	} else {
		llmRequestsTotal.WithLabelValues("plan", "ok").Inc()
	}

	plan := p.decode(obj)
	span.SetAttributes(
		attribute.Bool("plan.should_reply", plan.ShouldReply),
		attribute.String("plan.intent", plan.Intent),
		attribute.Float64("plan.confidence", plan.Confidence),
		attribute.Int("plan.tool_calls", len(plan.ToolCalls)),
	)
	return plan, nil
}

// decode maps a loosely-typed object onto a PlannedAction, applying
// defaults, clamping confidence, and filtering tool calls.
func (p *Planner) decode(obj map[string]any) domain.PlannedAction {
	return domain.PlannedAction{
		ShouldReply: asBool(obj["should_reply"], true),
		Intent:      asString(obj["intent"], DefaultIntent),
		Confidence:  clamp01(asFloat(obj["confidence"], missingConfidence)),
		ReplyStyle:  asString(obj["reply_style"], DefaultReplyStyle),
		ToolCalls:   p.filterCalls(obj["tool_calls"]),
		Rationale:   asString(obj["rationale"], ""),
	}
}

func (p *Planner) filterCalls(v any) []domain.ToolCall {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []domain.ToolCall
	for _, it := range items {
		call, ok := it.(map[string]any)
		if !ok {
			continue
		}
		name, _ := call["name"].(string)
		name = strings.TrimSpace(name)
		if !p.allowed(name) {
			continue
		}
		args := map[string]any{}
		if raw, present := call["args"]; present {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			args = m
		}
		out = append(out, domain.ToolCall{Name: name, Args: args})
	}
	return out
}

func (p *Planner) allowed(name string) bool {
	if name == "" {
		return false
	}
	for _, t := range p.Tools {
		if t == name {
			return true
		}
	}
	return false
}

func asBool(v any, def bool) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
			return b
		}
	}
	return def
}

func asString(v any, def string) string {
	switch x := v.(type) {
	case nil:
		return def
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func asFloat(v any, def float64) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
	}
	return def
}

func clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
