// Package tools provides the fixed set of sandboxed, side-effect-free
// capabilities the planner may invoke: a UTC clock, a restricted arithmetic
// calculator, and a profile-recall lookup.
//
// Tools form a closed set of kinds (Kind) dispatched through one contract
// (Tool.Execute). Adding a tool means adding a Kind and its implementation;
// the Registry is built once and never mutated.
//
// Registry.Execute never returns an error: every failure, including a panic
// inside a tool, becomes a ToolResult with OK=false. There is no logging in
// this package; the caller records outcomes.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tbourn/go-chat-agent/internal/domain"
)

// Kind identifies one tool variant.
type Kind int

// Tool kinds.
const (
	KindClock Kind = iota + 1
	KindCalculator
	KindProfileRecall
)

var kindNames = map[Kind]string{
	KindClock:         "now_time",
	KindCalculator:    "calculator",
	KindProfileRecall: "recall_user_profile",
}

// String returns the wire name the planner uses for k.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a wire name to its Kind.
func ParseKind(name string) (Kind, bool) {
	name = strings.TrimSpace(name)
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Tool is the single dispatch contract every variant implements.
type Tool interface {
	Kind() Kind
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds one Tool per Kind.
type Registry struct {
	tools map[Kind]Tool
}

// NewRegistry builds a registry from the given tools. A later tool of the
// same kind replaces an earlier one.
func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{tools: make(map[Kind]Tool, len(ts))}
	for _, t := range ts {
		r.tools[t.Kind()] = t
	}
	return r
}

// NewDefaultRegistry wires the clock, calculator, and profile-recall tools.
func NewDefaultRegistry(facts FactReader) *Registry {
	return NewRegistry(NewClock(nil), Calculator{}, NewProfileRecall(facts, DefaultRecallLimit))
}

// Names returns the allow-list of registered tool names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for k := range r.tools {
		out = append(out, k.String())
	}
	sort.Strings(out)
	return out
}

// Has reports whether name resolves to a registered tool.
func (r *Registry) Has(name string) bool {
	k, ok := ParseKind(name)
	if !ok {
		return false
	}
	_, ok = r.tools[k]
	return ok
}

// Execute runs the named tool. Unknown names, tool errors, and panics are
// all reported as ToolResult{OK:false}.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (res domain.ToolResult) {
	res.Name = name
	k, ok := ParseKind(name)
	if !ok {
		res.Output = "unknown tool"
		return res
	}
	t, ok := r.tools[k]
	if !ok {
		res.Output = "unknown tool"
		return res
	}

	defer func() {
		if rec := recover(); rec != nil {
			res.OK = false
			res.Output = fmt.Sprintf("tool error: %v", rec)
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	out, err := t.Execute(ctx, args)
	if err != nil {
		res.Output = "tool error: " + err.Error()
		return res
	}
	res.OK = true
	res.Output = out
	return res
}
