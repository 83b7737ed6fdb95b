package main

import (
	"errors"
	"fmt"

	"github.com/boshu2/regtest/internal/config"
	"github.com/boshu2/regtest/internal/pipeline"
	"github.com/boshu2/regtest/internal/review"
	"github.com/boshu2/regtest/internal/runner"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitRerun    = 3
	exitLocked   = 4
	exitShortRun = 5
)

// errUsage marks invalid command-line input.
var errUsage = errors.New("usage")

// errIncomplete marks a run that finished with failed workers or segments
// missing from the final output.
var errIncomplete = errors.New("run incomplete")

func usageError(err error) error {
	return fmt.Errorf("%w: %w", errUsage, err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, review.ErrStateMissing):
		return exitRerun
	case errors.Is(err, runner.ErrLockHeld):
		return exitLocked
	case errors.Is(err, errIncomplete):
		return exitShortRun
	case errors.Is(err, errUsage),
		errors.Is(err, review.ErrInvalidParam),
		errors.Is(err, config.ErrUnknownTest),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, config.ErrNotFound),
		errors.Is(err, config.ErrUnknownStep),
		errors.Is(err, config.ErrNoCorpora),
		errors.Is(err, pipeline.ErrInvalidStage):
		return exitUsage
	}
	return exitFailure
}
