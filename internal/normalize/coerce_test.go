package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeString(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: ""},
		{name: "string", in: "calm", want: "calm"},
		{name: "float", in: 7.5, want: "7.5"},
		{name: "whole float", in: float64(8), want: "8"},
		{name: "int", in: 3, want: "3"},
		{name: "bool", in: true, want: "true"},
		{name: "object with name", in: map[string]any{"name": "Openness", "description": "curious"}, want: "Openness"},
		{name: "object with description", in: map[string]any{"description": "curious"}, want: "curious"},
		{name: "object with trait", in: map[string]any{"trait": "Grit"}, want: "Grit"},
		{name: "array", in: []any{"a", 2.0, map[string]any{"name": "c"}}, want: "a, 2, c"},
		{name: "nested array", in: []any{[]any{"a", "b"}, "c"}, want: "a, b, c"},
		{name: "other object", in: map[string]any{"x": 1.0}, want: `{"x":1}`},
		{name: "empty array", in: []any{}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SafeString(tt.in))
		})
	}
}

func TestEnsureStringItems(t *testing.T) {
	require.Equal(t, []string{}, EnsureStringItems(nil))
	require.Equal(t, []string{"a", "1"}, EnsureStringItems([]any{"a", 1.0}))
	require.Equal(t, []string{"solo"}, EnsureStringItems("solo"))
}

func TestFormatTraitScore(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0.8, 8},
		{85, 9},
		{7, 7},
		{1, 10},
		{0, 0},
		{0.04, 0},
		{10, 10},
		{10.4, 1},
		{100, 10},
		{250, 10},
		{-3, 0},
		{math.NaN(), 0},
		{math.Inf(1), 10},
		{6.5, 7},
	}
	for _, tt := range tests {
		require.Equalf(t, tt.want, FormatTraitScore(tt.in), "FormatTraitScore(%v)", tt.in)
	}
}

// 1 sits on both the fraction and the 0..10 ranges; it is read as a fraction.
func TestFormatTraitScoreOneIsAFraction(t *testing.T) {
	require.Equal(t, 10, FormatTraitScore(1.0))
	require.Equal(t, 10, FormatTraitScore(0.96))
	require.Equal(t, 1, FormatTraitScore(1.01))
	require.Equal(t, 1, FormatTraitScore(1.4))
}

func TestFormatTraitScoreAlwaysInRange(t *testing.T) {
	for x := -50.0; x <= 500; x += 0.37 {
		got := FormatTraitScore(x)
		require.GreaterOrEqual(t, got, 0)
		require.LessOrEqual(t, got, 10)
	}
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{in: 7.0, want: 7, wantOK: true},
		{in: "8", want: 8, wantOK: true},
		{in: "85%", want: 0.85, wantOK: true},
		{in: "7/10", want: 0.7, wantOK: true},
		{in: map[string]any{"score": 6.0}, want: 6, wantOK: true},
		{in: "high", wantOK: false},
		{in: "3/0", wantOK: false},
		{in: nil, wantOK: false},
	}
	for _, tt := range tests {
		got, ok := ParseScore(tt.in)
		require.Equalf(t, tt.wantOK, ok, "ParseScore(%v) ok", tt.in)
		if ok {
			require.InDeltaf(t, tt.want, got, 1e-9, "ParseScore(%v)", tt.in)
		}
	}
	pct, _ := ParseScore("85%")
	require.Equal(t, 9, FormatTraitScore(pct))
}
