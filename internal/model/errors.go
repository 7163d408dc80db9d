package model

import "errors"

// Collector mode errors.
// These are configuration errors: they are reported while definitions are
// validated, before any browser session is touched.
var (
	// ErrNoModes is returned when a collector declares no supported modes.
	ErrNoModes = errors.New("collector declares no supported modes")

	// ErrAmbiguousModes is returned when a collector declares both timespan
	// and snapshot, which leaves its terminal phase undecided.
	ErrAmbiguousModes = errors.New("collector declares both timespan and snapshot modes")

	// ErrUnknownMode is returned when a configuration names a mode that does not exist.
	ErrUnknownMode = errors.New("unknown gather mode")

	// ErrUnknownPhase is returned when a configuration names a lifecycle
	// phase that does not exist.
	ErrUnknownPhase = errors.New("unknown lifecycle phase")
)
