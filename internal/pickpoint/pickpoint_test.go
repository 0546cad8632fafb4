package pickpoint

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Set
	}{
		{
			name:     "empty string",
			input:    "",
			expected: Set{},
		},
		{
			name:     "whitespace only",
			input:    "   ",
			expected: Set{},
		},
		{
			name:     "single pair",
			input:    "0.5,0.25",
			expected: Set{{X: 0.5, Y: 0.25}},
		},
		{
			name:     "multiple pairs with spacing",
			input:    " 0.5, 0.25 ; 0.1 ,0.9 ",
			expected: Set{{X: 0.5, Y: 0.25}, {X: 0.1, Y: 0.9}},
		},
		{
			name:     "drops malformed pairs",
			input:    "0.5,0.25;abc,0.3;0.7;0.1,0.2,0.3;0.4,0.6",
			expected: Set{{X: 0.5, Y: 0.25}, {X: 0.4, Y: 0.6}},
		},
		{
			name:     "drops non-finite values",
			input:    "NaN,0.1;0.2,Inf;-Inf,0.3;0.3,0.4",
			expected: Set{{X: 0.3, Y: 0.4}},
		},
		{
			name:     "ignores trailing separator",
			input:    "0.1,0.2;",
			expected: Set{{X: 0.1, Y: 0.2}},
		},
		{
			name:     "keeps out of range values",
			input:    "1.5,-0.2",
			expected: Set{{X: 1.5, Y: -0.2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.input)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("Decode(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	if got := Encode(nil); got != "" {
		t.Errorf("Expected empty string for nil set, got %q", got)
	}
	if got := Encode(Set{}); got != "" {
		t.Errorf("Expected empty string for empty set, got %q", got)
	}

	got := Encode(Set{{X: 0.5, Y: 0.25}, {X: 0.1, Y: 0.9}})
	if got != "0.50,0.25;0.10,0.90" {
		t.Errorf("Expected \"0.50,0.25;0.10,0.90\", got %q", got)
	}
}

func TestAppendPreservesInsertionOrder(t *testing.T) {
	text := Clear()
	text = Append(text, Point{X: 0.5, Y: 0.25})
	text = Append(text, Point{X: 0.1, Y: 0.9})

	if text != "0.50,0.25;0.10,0.90" {
		t.Errorf("Expected \"0.50,0.25;0.10,0.90\", got %q", text)
	}
}

func TestAppendToMalformedText(t *testing.T) {
	got := Append("garbage;0.3,0.4", Point{X: 0.123, Y: 0.456})
	if got != "0.30,0.40;0.12,0.46" {
		t.Errorf("Expected malformed pair to be dropped, got %q", got)
	}
}

func TestRoundTripIsStableAfterOnePass(t *testing.T) {
	inputs := []string{
		"0.123,0.456;0.9999,0.001",
		"1,0;0,1",
		" 0.5 , 0.5 ;bad;0.25,0.75",
		"",
	}

	for _, input := range inputs {
		first := Encode(Decode(input))
		second := Encode(Decode(first))
		if first != second {
			t.Errorf("Encoding not stable for %q: %q then %q", input, first, second)
		}

		decoded := Decode(first)
		original := Decode(input)
		if len(decoded) != len(original) {
			t.Fatalf("Expected %d points after round trip, got %d", len(original), len(decoded))
		}
		for i := range decoded {
			if math.Abs(decoded[i].X-round2(original[i].X)) > 1e-9 ||
				math.Abs(decoded[i].Y-round2(original[i].Y)) > 1e-9 {
				t.Errorf("Point %d: got %+v, want %+v rounded", i, decoded[i], original[i])
			}
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
