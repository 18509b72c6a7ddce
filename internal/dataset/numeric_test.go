package dataset

import "testing"

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{"3.5", 3.5, true},
		{"0,5", 0.5, true},
		{"1,000", 1000, true},
		{"1.000,25", 1000.25, true},
		{"1,000.25", 1000.25, true},
		{"52 000", 52000, true},
		{"-2e3", -2000, true},
		{"", 0, false},
		{"NaN", 0, false},
		{"F", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumeric(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parseNumeric(%q) = %v,%v want %v,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
