package artifact

import "errors"

// Sentinel errors for the artifact package.
var (
	// ErrMalformedTag is returned when a block's open tag cannot be parsed.
	ErrMalformedTag = errors.New("malformed block tag")

	// ErrMissing is returned when an artifact that a run should have produced
	// does not exist.
	ErrMissing = errors.New("artifact missing")
)
