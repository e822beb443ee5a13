// Package profile mines short-lived profile facts (stated name, stated city)
// from raw message text with fixed patterns. Extraction is deterministic,
// independent of any text-generation call, and best-effort: no match is not
// an error.
package profile

import (
	"regexp"
	"strings"
)

// Fact is one extracted attribute, ready to be appended to the store.
type Fact struct {
	Key        string
	Value      string
	Confidence float64
}

// Rule binds a fact key to the pattern that captures its value in group 1.
type Rule struct {
	Key        string
	Pattern    *regexp.Regexp
	Confidence float64
}

// DefaultRules returns the name and city rules.
func DefaultRules() []Rule {
	return []Rule{
		{
			Key:        "name",
			Pattern:    regexp.MustCompile(`(?i)\bmy name is\s+([A-Za-z][A-Za-z\- ]{1,40})\b`),
			Confidence: 0.85,
		},
		{
			Key:        "city",
			Pattern:    regexp.MustCompile(`(?i)\bi live in\s+([A-Za-z][A-Za-z\- ]{1,40})\b`),
			Confidence: 0.80,
		},
	}
}

// Extractor applies a fixed rule set to message text.
type Extractor struct {
	rules []Rule
}

// NewExtractor returns an Extractor over rules, or over DefaultRules when
// none are given.
func NewExtractor(rules ...Rule) *Extractor {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Extractor{rules: rules}
}

// Extract returns at most one fact per rule, in rule order.
func (e *Extractor) Extract(text string) []Fact {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []Fact
	for _, r := range e.rules {
		m := r.Pattern.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		v := strings.TrimSpace(m[1])
		if v == "" {
			continue
		}
		out = append(out, Fact{Key: r.Key, Value: v, Confidence: r.Confidence})
	}
	return out
}
