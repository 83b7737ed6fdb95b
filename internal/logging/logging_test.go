package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	for _, tt := range []struct {
		verbose, json bool
		want          zapcore.Level
	}{
		{false, false, zapcore.InfoLevel},
		{true, false, zapcore.DebugLevel},
		{true, true, zapcore.DebugLevel},
		{false, true, zapcore.InfoLevel},
	} {
		l, err := New(tt.verbose, tt.json)
		if err != nil {
			t.Fatalf("New(%v, %v): %v", tt.verbose, tt.json, err)
		}
		if !l.Core().Enabled(tt.want) {
			t.Errorf("New(%v, %v) does not enable %v", tt.verbose, tt.json, tt.want)
		}
		if tt.want == zapcore.InfoLevel && l.Core().Enabled(zapcore.DebugLevel) {
			t.Errorf("New(%v, %v) enables debug", tt.verbose, tt.json)
		}
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
}
