package core

import (
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1250.50", "1250.50", false},
		{"1250,50", "1250.50", false},
		{" 42 ", "42", false},
		{"0.01", "0.01", false},
		{"", "", true},
		{"0", "", true},
		{"-3", "", true},
		{"+3", "", true},
		{"abc", "", true},
		{"1.2.3", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) = %s, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) error: %v", tt.in, err)
			}
			if !got.Equal(dec(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParsePercentage(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"40", "40", false},
		{"0", "0", false},
		{"100", "100", false},
		{"33,33", "33.33", false},
		{"100.01", "", true},
		{"-1", "", true},
		{"", "", true},
		{"pct", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePercentage(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParsePercentage(%q) = %s, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePercentage(%q) error: %v", tt.in, err)
			}
			if !got.Equal(dec(tt.want)) {
				t.Errorf("ParsePercentage(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
