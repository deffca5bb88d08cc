package logger

import (
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		if log := NewLogger(level, true); log == nil {
			t.Errorf("NewLogger(%q, json) returned nil", level)
		}
		if log := NewLogger(level, false); log == nil {
			t.Errorf("NewLogger(%q, text) returned nil", level)
		}
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{in: "short", maxLen: 50, want: "short"},
		{in: "exactly-ten", maxLen: 11, want: "exactly-ten"},
		{in: "this is a longer string", maxLen: 10, want: "this is..."},
		{in: "abcdef", maxLen: 3, want: "..."},
	}

	for _, tt := range tests {
		if got := truncateString(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}
