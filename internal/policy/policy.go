// Package policy implements the deterministic admission filter that runs
// before any text-generation call. It decides whether an inbound message is
// eligible for a response at all and whether it warrants a generated reply:
//
//   - No external calls and no logging (callers decide how/what to log)
//   - Rules evaluated in a fixed precedence; the first match wins
//   - Character counts are in runes, not bytes
//
// The package also owns Clip, the single reply-truncation rule used by the
// runtime before anything is sent to the transport.
package policy

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Limits.
const (
	// MaxMessageChars is the hard cap on inbound message length.
	MaxMessageChars = 5000
	// MinReplyChars is the floor for the configured maximum reply length.
	MinReplyChars = 100
	// Ellipsis is appended to clipped replies.
	Ellipsis = "..."
)

// Decision reasons.
const (
	ReasonEmpty         = "empty"
	ReasonTooLong       = "too long"
	ReasonHighRisk      = "high-risk"
	ReasonNotQuestion   = "not a question"
	ReasonInvalidConfig = "invalid configuration"
	ReasonOK            = "ok"
)

// Decision is the outcome of Evaluate.
type Decision struct {
	Allowed     bool
	ShouldReply bool
	Reason      string
}

var highRiskPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:password|otp|2fa|seed phrase|private key)\b`),
	regexp.MustCompile(`(?i)\b(?:hack|ddos|malware|exploit)\b`),
}

var questionHints = []string{
	"?",
	"how ",
	"what ",
	"why ",
	"can you",
	"could you",
	"please help",
	"explain",
}

// Evaluate applies the admission rules to text in this order: empty, too
// long, high-risk, not a question, invalid reply-length configuration, ok.
func Evaluate(text string, maxReplyChars int) Decision {
	switch {
	case strings.TrimSpace(text) == "":
		return Decision{Reason: ReasonEmpty}
	case utf8.RuneCountInString(text) > MaxMessageChars:
		return Decision{Reason: ReasonTooLong}
	case IsHighRisk(text):
		return Decision{Reason: ReasonHighRisk}
	case !LooksLikeQuestion(text):
		return Decision{Allowed: true, Reason: ReasonNotQuestion}
	case maxReplyChars < MinReplyChars:
		return Decision{Reason: ReasonInvalidConfig}
	default:
		return Decision{Allowed: true, ShouldReply: true, Reason: ReasonOK}
	}
}

// IsHighRisk reports whether text mentions credential harvesting or
// hacking/malware terms (case-insensitive, whole words).
func IsHighRisk(text string) bool {
	for _, p := range highRiskPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// LooksLikeQuestion reports whether text contains a question mark or one of
// the question-like phrases (case-insensitive substring match).
func LooksLikeQuestion(text string) bool {
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		return false
	}
	// A Caser is stateful; build one per call so this stays goroutine-safe.
	normalized = cases.Lower(language.Und).String(normalized)
	for _, hint := range questionHints {
		if strings.Contains(normalized, hint) {
			return true
		}
	}
	return false
}

// Clip returns text unchanged when it fits in maxChars runes. Otherwise it
// keeps the first maxChars-3 runes, trims trailing whitespace, and appends
// Ellipsis. The result never exceeds maxChars runes and Clip is idempotent.
func Clip(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	if maxChars < len(Ellipsis) {
		return string(runes[:maxChars])
	}
	head := strings.TrimRightFunc(string(runes[:maxChars-len(Ellipsis)]), unicode.IsSpace)
	return head + Ellipsis
}
