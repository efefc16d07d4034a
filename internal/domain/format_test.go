package domain

import "testing"

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{87000, "87,000.00"},
		{1234567.891, "1,234,567.89"},
		{140.5, "140.50"},
		{0, "0.00"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.in); got != tt.want {
			t.Errorf("FormatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
