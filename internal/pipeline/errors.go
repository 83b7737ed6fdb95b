package pipeline

import "errors"

// Sentinel errors for the pipeline package.
var (
	// ErrNoStages is returned when a pipeline has no stages.
	ErrNoStages = errors.New("pipeline has no stages")

	// ErrInvalidStage is returned for a stage that cannot be compiled.
	ErrInvalidStage = errors.New("invalid stage")

	// ErrStageTimeout is returned when a process outlives its wall-clock ceiling.
	ErrStageTimeout = errors.New("stage timed out")

	// ErrStageFailed is returned when a stage process exits unsuccessfully.
	ErrStageFailed = errors.New("stage failed")
)
