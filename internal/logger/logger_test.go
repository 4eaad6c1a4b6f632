package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   zapcore.Level
		wantOK bool
	}{
		{"debug", zapcore.DebugLevel, true},
		{"info", zapcore.InfoLevel, true},
		{"warn", zapcore.WarnLevel, true},
		{"error", zapcore.ErrorLevel, true},
		{"verbose", zapcore.InfoLevel, false},
		{"", zapcore.InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ParseLevel(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggerWith(t *testing.T) {
	log := New("error", false)
	child := log.With(String("run_id", "abc"))
	if child == nil {
		t.Fatal("With() returned nil")
	}

	// Below the configured level, must not panic.
	child.Info("ignored", Int("n", 1), Error(errors.New("boom")))
	NewNop().Error("discarded")
}
