package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-chat-agent/internal/domain"
	"github.com/tbourn/go-chat-agent/internal/llm"
)

var testTools = []string{"calculator", "now_time", "recall_user_profile"}

func staticLLM(out string, err error) llm.Client {
	return llm.ClientFunc(func(context.Context, llm.Request) (string, error) { return out, err })
}

func TestPlanner_Plan_ParsesAndFilters(t *testing.T) {
	raw := `{
		"should_reply": true,
		"intent": "math",
		"confidence": 0.9,
		"reply_style": "short",
		"rationale": "user asked for arithmetic",
		"tool_calls": [
			{"name": "calculator", "args": {"expression": "2+2"}},
			{"name": "shell", "args": {"cmd": "ls"}},
			{"name": "now_time"},
			{"name": "calculator", "args": ["2+2"]},
			"recall_user_profile",
			{"name": " recall_user_profile ", "args": {"user_id": 999}}
		]
	}`
	p := NewPlanner(staticLLM(raw, nil), "Orion", testTools)

	got, err := p.Plan(context.Background(), "Dana", "what is 2+2?", nil)
	require.NoError(t, err)
	require.Equal(t, domain.PlannedAction{
		ShouldReply: true,
		Intent:      "math",
		Confidence:  0.9,
		ReplyStyle:  "short",
		Rationale:   "user asked for arithmetic",
		ToolCalls: []domain.ToolCall{
			{Name: "calculator", Args: map[string]any{"expression": "2+2"}},
			{Name: "now_time", Args: map[string]any{}},
			{Name: "recall_user_profile", Args: map[string]any{"user_id": float64(999)}},
		},
	}, got)
}

func TestPlanner_Plan_FallbackOnMalformedOutput(t *testing.T) {
	for _, raw := range []string{"I think you should reply.", "[1,2]", "{broken"} {
		p := NewPlanner(staticLLM(raw, nil), "Orion", testTools)
		got, err := p.Plan(context.Background(), "Dana", "hi?", nil)
		require.NoError(t, err, raw)
		require.True(t, got.ShouldReply)
		require.Equal(t, DefaultIntent, got.Intent)
		require.InDelta(t, 0.40, got.Confidence, 1e-9)
		require.Equal(t, DefaultReplyStyle, got.ReplyStyle)
		require.Empty(t, got.ToolCalls)
		require.Equal(t, "fallback planner path", got.Rationale)
	}
}

func TestPlanner_Plan_ExtractsEmbeddedObject(t *testing.T) {
	raw := "Here you go:\n```json\n{\"should_reply\": false, \"intent\": \"greeting\", \"confidence\": 0.8}\n```"
	p := NewPlanner(staticLLM(raw, nil), "Orion", testTools)
	got, err := p.Plan(context.Background(), "Dana", "hello?", nil)
	require.NoError(t, err)
	require.False(t, got.ShouldReply)
	require.Equal(t, "greeting", got.Intent)
}

func TestPlanner_Plan_GenerationError(t *testing.T) {
	boom := errors.New("upstream down")
	p := NewPlanner(staticLLM("", boom), "Orion", testTools)
	_, err := p.Plan(context.Background(), "Dana", "hi?", nil)
	require.ErrorIs(t, err, boom)
}

func TestPlanner_Decode_Defaults_And_Clamp(t *testing.T) {
	p := NewPlanner(nil, "Orion", testTools)
	cases := []struct {
		name string
		obj  map[string]any
		conf float64
	}{
		{"missing confidence", map[string]any{}, 0.5},
		{"above one", map[string]any{"confidence": 1.7}, 1},
		{"negative", map[string]any{"confidence": -2.0}, 0},
		{"numeric string", map[string]any{"confidence": "0.3"}, 0.3},
		{"junk string", map[string]any{"confidence": "high"}, 0.5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := p.decode(c.obj)
			require.InDelta(t, c.conf, got.Confidence, 1e-9)
			require.True(t, got.ShouldReply)
			require.Equal(t, DefaultIntent, got.Intent)
			require.Equal(t, DefaultReplyStyle, got.ReplyStyle)
			require.Empty(t, got.ToolCalls)
		})
	}

	got := p.decode(map[string]any{"tool_calls": []any{
		map[string]any{"name": "now_time", "args": nil},
		map[string]any{"name": "calculator", "args": map[string]any{"expression": "1+1"}},
	}})
	require.Equal(t, []domain.ToolCall{
		{Name: "calculator", Args: map[string]any{"expression": "1+1"}},
	}, got.ToolCalls)
}

func TestPlanner_SendsPromptsWithAllowList(t *testing.T) {
	var seen llm.Request
	c := llm.ClientFunc(func(_ context.Context, r llm.Request) (string, error) {
		seen = r
		return `{}`, nil
	})
	p := NewPlanner(c, "Orion", testTools)
	_, err := p.Plan(context.Background(), "Dana", "how are you?", []string{"user: hi", "assistant: hello"})
	require.NoError(t, err)

	require.True(t, seen.JSON)
	require.Zero(t, seen.Temperature)
	require.True(t, strings.HasSuffix(seen.System, "Allowed tools: calculator, now_time, recall_user_profile."))
	require.Equal(t, "Agent: Orion\nSender: Dana\nMessage: how are you?\nRecent context:\nuser: hi\nassistant: hello\n", seen.User)
}
