package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// ParseObject decodes raw as a JSON object. When the full text is not a
// valid object it retries on the span between the first '{' and the last
// '}', which recovers objects wrapped in prose or code fences.
func ParseObject(raw string) (map[string]any, bool) {
	if obj, ok := decodeObject(raw); ok {
		return obj, true
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return decodeObject(raw[start : end+1])
	}
	return nil, false
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// GenerateJSON runs a structured generation at temperature 0. A generation
// error is returned as is; output that does not parse yields fallback with
// parsed=false.
func GenerateJSON(ctx context.Context, c Client, system, user string, fallback map[string]any) (obj map[string]any, parsed bool, err error) {
	raw, err := c.Generate(ctx, Request{System: system, User: user, Temperature: 0, JSON: true})
	if err != nil {
		return nil, false, err
	}
	if obj, ok := ParseObject(raw); ok {
		return obj, true, nil
	}
	return fallback, false, nil
}
