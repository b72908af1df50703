package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when scheduler configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrInvalidBatchRange is returned for a malformed or empty batch range
	ErrInvalidBatchRange = errors.New("invalid batch range")

	// ErrInvalidChainArgs is returned when a chain wrapper job carries too few arguments
	ErrInvalidChainArgs = errors.New("dependent action job needs [action, prerequisite] args")
)
