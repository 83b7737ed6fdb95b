package review

import "errors"

// Sentinel errors for the review package.
var (
	// ErrStateMissing is returned when the artifacts of a test are missing or
	// unreadable and the test has to be run again.
	ErrStateMissing = errors.New("state missing or invalid, re-run required")

	// ErrInvalidParam is returned for a request missing or misusing a
	// parameter.
	ErrInvalidParam = errors.New("invalid parameter")
)
