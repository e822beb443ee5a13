package tools

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrRejected marks an expression that contains anything other than numeric
// literals, + - * / % **, unary +/-, and parentheses.
var ErrRejected = errors.New("expression rejected")

// Calculator limits.
const (
	MaxExpressionLen = 512
	maxDepth         = 64
)

type tokKind int

const (
	tokNum tokKind = iota
	tokOp
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokKind
	text string
	num  float64
	pos  int
}

// Evaluate parses and evaluates a restricted arithmetic expression. There are
// no identifiers, calls, attribute access, or any other syntax: the first
// foreign character rejects the whole expression with ErrRejected.
func Evaluate(expr string) (float64, error) {
	if len(expr) > MaxExpressionLen {
		return 0, fmt.Errorf("%w: expression longer than %d bytes", ErrRejected, MaxExpressionLen)
	}
	toks, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	p := &parser{toks: toks}
	v, err := p.expr(0)
	if err != nil {
		return 0, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return 0, fmt.Errorf("%w: unexpected %q at %d", ErrRejected, t.text, t.pos)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("result is not a finite number")
	}
	return v, nil
}

// FormatNumber renders v the way a float literal reads: integral values keep
// one decimal ("12.0"), everything else uses the shortest representation.
func FormatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e16 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func tokenize(s string) ([]token, error) {
	var out []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isDigit(c) || (c == '.' && i+1 < len(s) && isDigit(s[i+1])):
			start := i
			i = scanNumber(s, i)
			lit := s[start:i]
			f, err := strconv.ParseFloat(lit, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q", ErrRejected, lit)
			}
			out = append(out, token{kind: tokNum, text: lit, num: f, pos: start})
		case c == '*' && i+1 < len(s) && s[i+1] == '*':
			out = append(out, token{kind: tokOp, text: "**", pos: i})
			i += 2
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			return nil, fmt.Errorf("%w: unsupported operator \"//\" at %d", ErrRejected, i)
		case strings.IndexByte("+-*/%", c) >= 0:
			out = append(out, token{kind: tokOp, text: string(c), pos: i})
			i++
		case c == '(':
			out = append(out, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			out = append(out, token{kind: tokRParen, text: ")", pos: i})
			i++
		default:
			return nil, fmt.Errorf("%w: unsupported syntax %q at %d", ErrRejected, string(c), i)
		}
	}
	return append(out, token{kind: tokEOF, pos: len(s)}), nil
}

// scanNumber consumes digits, an optional fraction, and an optional exponent.
// A letter glued to the literal (e.g. "2x", "1.real") is left for the
// tokenizer to reject.
func scanNumber(s string, i int) int {
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// parser is a recursive-descent evaluator with the usual precedence:
//
//	expr   := term (('+'|'-') term)*
//	term   := unary (('*'|'/'|'%') unary)*
//	unary  := ('+'|'-') unary | power
//	power  := atom ('**' unary)?
//	atom   := NUMBER | '(' expr ')'
//
// '**' binds tighter than a unary minus on its left and is right-associative,
// so -2**2 == -4 and 2**3**2 == 512.
type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) isOp(ops ...string) bool {
	t := p.peek()
	if t.kind != tokOp {
		return false
	}
	for _, op := range ops {
		if t.text == op {
			return true
		}
	}
	return false
}

func (p *parser) expr(depth int) (float64, error) {
	if depth > maxDepth {
		return 0, fmt.Errorf("%w: nesting too deep", ErrRejected)
	}
	left, err := p.term(depth)
	if err != nil {
		return 0, err
	}
	for p.isOp("+", "-") {
		op := p.next().text
		right, err := p.term(depth)
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
	return left, nil
}

func (p *parser) term(depth int) (float64, error) {
	left, err := p.unary(depth)
	if err != nil {
		return 0, err
	}
	for p.isOp("*", "/", "%") {
		op := p.next()
		right, err := p.unary(depth)
		if err != nil {
			return 0, err
		}
		switch op.text {
		case "*":
			left *= right
		case "/":
			if right == 0 {
				return 0, errors.New("division by zero")
			}
			left /= right
		case "%":
			if right == 0 {
				return 0, errors.New("modulo by zero")
			}
			left = floorMod(left, right)
		}
	}
	return left, nil
}

func (p *parser) unary(depth int) (float64, error) {
	if depth > maxDepth {
		return 0, fmt.Errorf("%w: nesting too deep", ErrRejected)
	}
	if p.isOp("+", "-") {
		op := p.next().text
		v, err := p.unary(depth + 1)
		if err != nil {
			return 0, err
		}
		if op == "-" {
			return -v, nil
		}
		return v, nil
	}
	return p.power(depth)
}

func (p *parser) power(depth int) (float64, error) {
	base, err := p.atom(depth)
	if err != nil {
		return 0, err
	}
	if p.isOp("**") {
		p.next()
		exp, err := p.unary(depth + 1)
		if err != nil {
			return 0, err
		}
		if base == 0 && exp < 0 {
			return 0, errors.New("zero cannot be raised to a negative power")
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *parser) atom(depth int) (float64, error) {
	t := p.next()
	switch t.kind {
	case tokNum:
		return t.num, nil
	case tokLParen:
		v, err := p.expr(depth + 1)
		if err != nil {
			return 0, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return 0, fmt.Errorf("%w: expected \")\" at %d", ErrRejected, closing.pos)
		}
		return v, nil
	case tokEOF:
		return 0, fmt.Errorf("%w: unexpected end of expression", ErrRejected)
	default:
		return 0, fmt.Errorf("%w: unexpected %q at %d", ErrRejected, t.text, t.pos)
	}
}

// floorMod takes the sign of the divisor, so -7 % 3 == 2.
func floorMod(a, b float64) float64 {
	r := math.Mod(a, b)
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}
