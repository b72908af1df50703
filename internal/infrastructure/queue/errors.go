package queue

import "errors"

var (
	// ErrJobNotFound is returned when a job id does not match any queued action
	ErrJobNotFound = errors.New("queued action not found")

	// ErrNoHandler is returned when a claimed job has no registered handler for its hook
	ErrNoHandler = errors.New("no handler registered for hook")

	// ErrInvalidConfig is returned when worker configuration is invalid
	ErrInvalidConfig = errors.New("invalid queue worker configuration")
)
