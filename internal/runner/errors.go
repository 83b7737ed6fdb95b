package runner

import "errors"

// Sentinel errors for the runner package.
var (
	// ErrLockHeld is returned when another live process is running the test.
	ErrLockHeld = errors.New("test is already running")

	// ErrNoCorpora is returned when a job names no corpus files.
	ErrNoCorpora = errors.New("no corpora to run")
)
