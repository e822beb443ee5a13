package tools

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestEvaluate_Arithmetic(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"2 + 2 * 5", 12},
		{"(2 + 2) * 5", 20},
		{"7 / 2", 3.5},
		{"-7 % 3", 2},
		{"7 % -3", -2},
		{"2 ** 10", 1024},
		{"2 ** 3 ** 2", 512},
		{"-2 ** 2", -4},
		{"2 ** -1", 0.5},
		{"--3", 3},
		{"+4", 4},
		{"1.5e2 + .5", 150.5},
		{"  ((1))  ", 1},
	}
	for _, c := range cases {
		got, err := Evaluate(c.expr)
		if err != nil {
			t.Fatalf("Evaluate(%q) err: %v", c.expr, err)
		}
		if math.Abs(got-c.want) > 1e-12 {
			t.Fatalf("Evaluate(%q)=%v want %v", c.expr, got, c.want)
		}
	}
}

func TestEvaluate_Rejected(t *testing.T) {
	cases := []string{
		"__import__('os').system('x')",
		"abs(-1)",
		"2x",
		"1 // 2",
		"1 +",
		"(1 + 2",
		"1 2",
		"",
		"2 ; 3",
		strings.Repeat("(", 100) + "1" + strings.Repeat(")", 100),
		strings.Repeat("1+", MaxExpressionLen),
	}
	for _, expr := range cases {
		_, err := Evaluate(expr)
		if !errors.Is(err, ErrRejected) {
			t.Fatalf("Evaluate(%q) err=%v want ErrRejected", expr, err)
		}
	}
}

func TestEvaluate_MathErrors(t *testing.T) {
	for _, expr := range []string{"1 / 0", "5 % 0", "0 ** -1", "10 ** 400"} {
		_, err := Evaluate(expr)
		if err == nil {
			t.Fatalf("Evaluate(%q) expected error", expr)
		}
		if errors.Is(err, ErrRejected) {
			t.Fatalf("Evaluate(%q) is a math error, not a rejection: %v", expr, err)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	cases := map[float64]string{
		12:      "12.0",
		-3:      "-3.0",
		0.5:     "0.5",
		1.0 / 3: "0.3333333333333333",
		1e20:    "1e+20",
	}
	for in, want := range cases {
		if got := FormatNumber(in); got != want {
			t.Fatalf("FormatNumber(%v)=%q want %q", in, got, want)
		}
	}
}
