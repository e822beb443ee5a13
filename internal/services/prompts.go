package services

import (
	"fmt"
	"strings"
)

const noneBlock = "(none)"

// plannerSystemPrompt lists the JSON contract and the allowed tool names.
func plannerSystemPrompt(tools []string) string {
	allowed := noneBlock
	if len(tools) > 0 {
		allowed = strings.Join(tools, ", ")
	}
	return `You are an intent planner for a Telegram assistant.
Return strict JSON with keys:
- should_reply (bool)
- intent (string)
- confidence (number 0..1)
- reply_style (string)
- tool_calls (array of {name:string,args:object})
- rationale (string)

Rules:
- Reply only when the user asks a direct question or requests help.
- Keep confidence realistic.
- Use tools only when needed.
- Never hallucinate tool names. Allowed tools: ` + allowed + "."
}

func plannerUserPrompt(agent, sender, text string, contextLines []string) string {
	return fmt.Sprintf("Agent: %s\nSender: %s\nMessage: %s\nRecent context:\n%s\n",
		agent, sender, text, block(contextLines))
}

func responseSystemPrompt(agent string) string {
	return "You are " + agent + ", an autonomous Telegram assistant. " +
		"Be concise, accurate, and practical. " +
		"If unsure, say what is uncertain. " +
		"Do not claim actions you did not perform."
}

// ResponseInput is everything the response generator sees for one message.
type ResponseInput struct {
	Text         string
	ContextLines []string
	ToolOutputs  []string
	ProfileFacts []string
	Intent       string
	ReplyStyle   string
}

func responseUserPrompt(in ResponseInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User message:\n%s\n\n", in.Text)
	fmt.Fprintf(&b, "Detected intent: %s\n", in.Intent)
	fmt.Fprintf(&b, "Reply style: %s\n\n", in.ReplyStyle)
	fmt.Fprintf(&b, "Profile facts:\n%s\n\n", block(in.ProfileFacts))
	fmt.Fprintf(&b, "Recent context:\n%s\n\n", block(in.ContextLines))
	fmt.Fprintf(&b, "Tool outputs:\n%s\n\n", block(in.ToolOutputs))
	b.WriteString("Write the best direct answer for Telegram.")
	return b.String()
}

func block(lines []string) string {
	if len(lines) == 0 {
		return noneBlock
	}
	return strings.Join(lines, "\n")
}
