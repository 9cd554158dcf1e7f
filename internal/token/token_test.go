package token

import (
	"strings"
	"testing"
)

func TestEstimateFast(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"a", 1},
		{"fever and chills", 4},
		{"one two three four five", 5},
	}
	for _, tt := range tests {
		if got := EstimateFast(tt.text); got != tt.want {
			t.Errorf("EstimateFast(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestTruncateLeavesShortText(t *testing.T) {
	text := "mild headache for two days"
	if got := Truncate(text, 100); got != text {
		t.Fatalf("expected text unchanged, got %q", got)
	}
	if got := Truncate(text, 0); got != text {
		t.Fatalf("expected non-positive budget to be ignored, got %q", got)
	}
}

func TestTruncateRespectsBudget(t *testing.T) {
	text := strings.Repeat("persistent cough with mild fever ", 200)
	truncated := Truncate(text, 50)
	if len(truncated) >= len(text) {
		t.Fatalf("expected truncation")
	}
	if got := Count(truncated); got > 52 {
		t.Fatalf("expected about 50 tokens, got %d", got)
	}
}
