package config

import "errors"

// Sentinel errors for the config package.
var (
	// ErrNotFound is returned when regtest.yaml cannot be located.
	ErrNotFound = errors.New("configuration not found")

	// ErrInvalidConfig is returned for a configuration missing required
	// declarations or referencing undefined ones.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownTest is returned when a test name is not declared.
	ErrUnknownTest = errors.New("test is not defined")

	// ErrUnknownStep is returned when a pipe references an undeclared step.
	ErrUnknownStep = errors.New("step is not defined")

	// ErrNoCorpora is returned when a test resolves to no corpus files.
	ErrNoCorpora = errors.New("no corpora matched")
)
