package reports

import "errors"

var (
	// ErrUnknownInterval is returned for an unrecognized bucketing granularity
	ErrUnknownInterval = errors.New("unknown report interval")

	// ErrInvalidDateRange is returned when the requested period ends before it starts
	ErrInvalidDateRange = errors.New("report period ends before it starts")

	// ErrInvalidSyncArgs is returned when a queued sync job carries malformed arguments
	ErrInvalidSyncArgs = errors.New("invalid sync job arguments")
)
