package corpus

import "errors"

// Sentinel errors for the corpus package.
var (
	// ErrBadIndex is returned when a corpus index file has a malformed record.
	ErrBadIndex = errors.New("malformed corpus index")

	// ErrNoSegments is returned when the selected corpora hold no input at all.
	ErrNoSegments = errors.New("no segments in selected corpora")
)
