package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestInit_Level(t *testing.T) {
	defer Init("info", false)

	tests := []struct {
		level    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		Init(tt.level, false)
		if got := Get().GetLevel(); got != tt.expected {
			t.Errorf("Init(%q) level = %v, expected %v", tt.level, got, tt.expected)
		}
	}
}
