package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-chat-agent/internal/domain"
)

// DefaultRecallLimit is how many facts profile recall returns.
const DefaultRecallLimit = 8

// Clock returns the current UTC time.
type Clock struct {
	now func() time.Time
}

// NewClock returns a Clock; a nil now uses time.Now.
func NewClock(now func() time.Time) Clock {
	if now == nil {
		now = time.Now
	}
	return Clock{now: now}
}

// Kind implements Tool.
func (Clock) Kind() Kind { return KindClock }

// Execute ignores args.
func (c Clock) Execute(context.Context, map[string]any) (string, error) {
	now := c.now
	if now == nil {
		now = time.Now
	}
	return "UTC time: " + now().UTC().Format(time.RFC3339), nil
}

// Calculator evaluates args["expression"] with Evaluate.
type Calculator struct{}

// Kind implements Tool.
func (Calculator) Kind() Kind { return KindCalculator }

// Execute returns "<expression> = <value>".
func (Calculator) Execute(_ context.Context, args map[string]any) (string, error) {
	expr := strings.TrimSpace(stringArg(args["expression"]))
	if expr == "" {
		return "", errors.New("missing expression")
	}
	v, err := Evaluate(expr)
	if err != nil {
		return "", err
	}
	return expr + " = " + FormatNumber(v), nil
}

// FactReader is the read side of the profile store used by ProfileRecall.
type FactReader interface {
	RecentProfileFacts(ctx context.Context, userID int64, limit int) ([]domain.ProfileFact, error)
}

// ProfileRecall lists the most recent profile facts of args["user_id"].
type ProfileRecall struct {
	facts FactReader
	limit int
}

// NewProfileRecall returns a ProfileRecall reading at most limit facts.
func NewProfileRecall(facts FactReader, limit int) ProfileRecall {
	if limit <= 0 {
		limit = DefaultRecallLimit
	}
	return ProfileRecall{facts: facts, limit: limit}
}

// Kind implements Tool.
func (ProfileRecall) Kind() Kind { return KindProfileRecall }

// Execute requires a positive user_id.
func (p ProfileRecall) Execute(ctx context.Context, args map[string]any) (string, error) {
	uid, ok := int64Arg(args["user_id"])
	if !ok || uid <= 0 {
		return "", errors.New("invalid user_id")
	}
	if p.facts == nil {
		return "", errors.New("profile store unavailable")
	}
	facts, err := p.facts.RecentProfileFacts(ctx, uid, p.limit)
	if err != nil {
		return "", err
	}
	if len(facts) == 0 {
		return "no facts", nil
	}
	lines := make([]string, len(facts))
	for i, f := range facts {
		lines[i] = f.String()
	}
	return strings.Join(lines, "\n"), nil
}

func stringArg(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return FormatNumber(x)
	default:
		return fmt.Sprint(x)
	}
}

func int64Arg(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
