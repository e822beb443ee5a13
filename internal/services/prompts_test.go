package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResponseUserPrompt_EmptyBlocks(t *testing.T) {
	got := responseUserPrompt(ResponseInput{Text: "hi?", Intent: "greeting", ReplyStyle: "warm"})
	want := "User message:\nhi?\n\n" +
		"Detected intent: greeting\n" +
		"Reply style: warm\n\n" +
		"Profile facts:\n(none)\n\n" +
		"Recent context:\n(none)\n\n" +
		"Tool outputs:\n(none)\n\n" +
		"Write the best direct answer for Telegram."
	require.Equal(t, want, got)
}

func TestResponseUserPrompt_FilledBlocks(t *testing.T) {
	got := responseUserPrompt(ResponseInput{
		Text:         "what time is it?",
		ContextLines: []string{"user: what time is it?"},
		ToolOutputs:  []string{"now_time: UTC time: 2024-01-01T00:00:00Z"},
		ProfileFacts: []string{"name: Dana (conf=0.85)", "city: Lisbon (conf=0.80)"},
		Intent:       "time",
		ReplyStyle:   "short",
	})
	require.Contains(t, got, "Profile facts:\nname: Dana (conf=0.85)\ncity: Lisbon (conf=0.80)\n\n")
	require.Contains(t, got, "Tool outputs:\nnow_time: UTC time: 2024-01-01T00:00:00Z\n\n")
}

func TestPlannerPrompts(t *testing.T) {
	require.Contains(t, plannerSystemPrompt(nil), "Allowed tools: (none).")
	require.Equal(t, "Agent: A\nSender: B\nMessage: C\nRecent context:\n(none)\n", plannerUserPrompt("A", "B", "C", nil))
	require.Equal(t,
		"You are Orion, an autonomous Telegram assistant. Be concise, accurate, and practical. "+
			"If unsure, say what is uncertain. Do not claim actions you did not perform.",
		responseSystemPrompt("Orion"))
}
