package filter

import (
	"testing"

	"github.com/klemens/imagehaul/internal/domain"
)

// TestKeywordsMatch verifies caption matching against a keyword list
func TestKeywordsMatch(t *testing.T) {
	testCases := []struct {
		name     string
		terms    []string
		caption  string
		expected bool
	}{
		{
			name:     "single keyword present",
			terms:    []string{"pumpkin", "halloween"},
			caption:  "Halloween pumpkins on the porch",
			expected: true,
		},
		{
			name:     "no keyword present",
			terms:    []string{"pumpkin", "halloween"},
			caption:  "autumn leaves on the lawn",
			expected: false,
		},
		{
			name:     "case insensitive",
			terms:    []string{"PUMPKIN"},
			caption:  "a carved pumpkin",
			expected: true,
		},
		{
			name:     "keyword inside a longer word",
			terms:    []string{"halloween"},
			caption:  "pre-halloweenish decoration",
			expected: true,
		},
		{
			name:     "empty keyword list matches everything",
			terms:    nil,
			caption:  "anything at all",
			expected: true,
		},
		{
			name:     "blank terms are dropped",
			terms:    []string{"", "  "},
			caption:  "anything at all",
			expected: true,
		},
		{
			name:     "empty caption with keywords",
			terms:    []string{"pumpkin"},
			caption:  "",
			expected: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			k := NewKeywords(tc.terms)
			if got := k.Match(tc.caption); got != tc.expected {
				t.Errorf("Match(%q) = %v, want %v", tc.caption, got, tc.expected)
			}
		})
	}
}

// TestParseKeywords verifies comma-separated parsing and normalization
func TestParseKeywords(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "basic list",
			input:    "pumpkin,halloween",
			expected: []string{"pumpkin", "halloween"},
		},
		{
			name:     "spaces and case normalized",
			input:    " Pumpkin , HALLOWEEN ",
			expected: []string{"pumpkin", "halloween"},
		},
		{
			name:     "empty string",
			input:    "",
			expected: []string{},
		},
		{
			name:     "trailing comma",
			input:    "pumpkin,",
			expected: []string{"pumpkin"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			terms := ParseKeywords(tc.input).Terms()
			if len(terms) != len(tc.expected) {
				t.Fatalf("got %d terms %v, want %d %v", len(terms), terms, len(tc.expected), tc.expected)
			}
			for i := range terms {
				if terms[i] != tc.expected[i] {
					t.Errorf("term %d = %q, want %q", i, terms[i], tc.expected[i])
				}
			}
		})
	}
}

// TestMinDimensions verifies the metadata dimension prefilter
func TestMinDimensions(t *testing.T) {
	testCases := []struct {
		name     string
		width    int
		height   int
		min      int
		expected bool
	}{
		{name: "both above minimum", width: 256, height: 300, min: 128, expected: true},
		{name: "exactly at minimum", width: 128, height: 128, min: 128, expected: true},
		{name: "width below minimum", width: 64, height: 256, min: 128, expected: false},
		{name: "height below minimum", width: 256, height: 64, min: 128, expected: false},
		{name: "dimensions absent", width: 0, height: 0, min: 128, expected: false},
		{name: "check disabled", width: 0, height: 0, min: 0, expected: true},
		{name: "negative minimum disables", width: 1, height: 1, min: -1, expected: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			row := domain.MetadataRow{Width: tc.width, Height: tc.height}
			if got := MinDimensions(&row, tc.min); got != tc.expected {
				t.Errorf("MinDimensions(%dx%d, min %d) = %v, want %v", tc.width, tc.height, tc.min, got, tc.expected)
			}
		})
	}
}
