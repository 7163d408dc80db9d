package collector

import "errors"

var (
	// ErrMissingName is returned when a collector spec has no name.
	ErrMissingName = errors.New("collector name is required")

	// ErrDuplicateCollector is returned when two collectors share a name.
	ErrDuplicateCollector = errors.New("duplicate collector name")

	// ErrUnknownCollector is returned when a lookup names no registered
	// collector.
	ErrUnknownCollector = errors.New("unknown collector")

	// ErrMissingMethod is returned when a phase command has no method.
	ErrMissingMethod = errors.New("command method is required")

	// ErrPhaseNotInvoked is returned when a command is attached to a phase
	// the collector's modes never reach.
	ErrPhaseNotInvoked = errors.New("command phase is never invoked for the declared modes")
)
