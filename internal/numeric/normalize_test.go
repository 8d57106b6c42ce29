// internal/numeric/normalize_test.go
package numeric

import (
	"encoding/json"
	"math"
	"testing"
)

func TestNormalizeCount_Strings(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{name: "zero", input: "0", expected: 0},
		{name: "plain integer", input: "1000", expected: 1000},
		{name: "thousands suffix", input: "1.5K", expected: 1500},
		{name: "millions suffix", input: "2M", expected: 2000000},
		{name: "billions suffix", input: "1.1B", expected: 1100000000},
		{name: "negative clamps to zero", input: "-5", expected: 0},
		{name: "garbage defaults to zero", input: "abc", expected: 0},
		{name: "lowercase suffix", input: "500k", expected: 500000},
		{name: "thousands separators", input: "1,234,567", expected: 1234567},
		{name: "surrounding whitespace", input: "  42 ", expected: 42},
		{name: "noise characters", input: "11B Likes", expected: 11000000000},
		{name: "suffix then noise", input: "1.2M followers", expected: 1200000},
		{name: "leading noise", input: "Likes: 2M", expected: 2000000},
		{name: "empty string", input: "", expected: 0},
		{name: "bare dot", input: ".", expected: 0},
		{name: "float without suffix", input: "12.7", expected: 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeCount(tt.input); got != tt.expected {
				t.Errorf("NormalizeCount(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeCount_NonStrings(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected int64
	}{
		{name: "int", input: 123, expected: 123},
		{name: "int64", input: int64(9_000_000_000), expected: 9_000_000_000},
		{name: "negative int", input: -10, expected: 0},
		{name: "float64", input: 1500.0, expected: 1500},
		{name: "json number", input: json.Number("2300000"), expected: 2300000},
		{name: "json number humanized path", input: json.Number("1.5"), expected: 2},
		{name: "nil", input: nil, expected: 0},
		{name: "unsupported type", input: struct{}{}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeCount(tt.input); got != tt.expected {
				t.Errorf("NormalizeCount(%v) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

// Values whose scaled magnitude exceeds int64 saturate instead of wrapping.
func TestNormalizeCount_Saturates(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "integer times suffix", input: "99999999999B"},
		{name: "float times suffix", input: "99999999999.9B"},
		{name: "digits beyond int64", input: "99999999999999999999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeCount(tt.input); got != math.MaxInt64 {
				t.Errorf("NormalizeCount(%q) = %d, want saturation at MaxInt64", tt.input, got)
			}
		})
	}
}

// Normalizing an already-normalized value must return it unchanged.
func TestNormalizeCount_Idempotent(t *testing.T) {
	for _, v := range []int64{0, 1, 1500, 2300000, 1100000000} {
		if got := NormalizeCount(v); got != v {
			t.Errorf("NormalizeCount(%d) = %d, want unchanged", v, got)
		}
	}
}
