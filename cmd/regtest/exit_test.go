package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/boshu2/regtest/internal/config"
	"github.com/boshu2/regtest/internal/review"
	"github.com/boshu2/regtest/internal/runner"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"state missing", fmt.Errorf("load: %w", review.ErrStateMissing), exitRerun},
		{"lock", fmt.Errorf("%w: pid 12", runner.ErrLockHeld), exitLocked},
		{"incomplete", fmt.Errorf("%w: 1 missing", errIncomplete), exitShortRun},
		{"usage", usageError(errNoIDs), exitUsage},
		{"invalid param", review.ErrInvalidParam, exitUsage},
		{"unknown test", config.ErrUnknownTest, exitUsage},
		{"no config", config.ErrNotFound, exitUsage},
		{"other", errors.New("boom"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestUsageErrorKeepsCause(t *testing.T) {
	err := usageError(errNoIDs)
	if !errors.Is(err, errNoIDs) || !errors.Is(err, errUsage) {
		t.Errorf("usageError should wrap both, got %v", err)
	}
}

func TestSplitIDs(t *testing.T) {
	got := splitIDs([]string{"a;b", "c", " a ", "d e"})
	want := []string{"a", "b", "c", "d", "e"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("splitIDs = %v, want %v", got, want)
	}
	if splitIDs(nil) != nil {
		t.Error("splitIDs(nil) should be nil")
	}
}
