package domain

import "time"

// IncomingMessage is one inbound chat message as delivered by the transport.
// It is passed by value and never mutated after construction.
type IncomingMessage struct {
	MessageID  int64
	ChatID     int64
	UserID     int64
	SenderName string
	Text       string
	ReceivedAt time.Time
}

// ToolCall is a single tool invocation selected by the planner.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// PlannedAction is the planner's decision for one message. It lives for a
// single pipeline run; only a projection of it is stored on the assistant turn.
type PlannedAction struct {
	ShouldReply bool
	Intent      string
	Confidence  float64
	ReplyStyle  string
	ToolCalls   []ToolCall
	Rationale   string
}

// ToolResult is the outcome of one tool invocation.
type ToolResult struct {
	Name   string
	OK     bool
	Output string
}

// Line renders the result for prompt assembly ("name: output").
func (r ToolResult) Line() string { return r.Name + ": " + r.Output }
