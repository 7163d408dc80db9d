package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate and File.Validate.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoURL is returned when no URL to gather is specified.
	ErrNoURL = errors.New("no URL specified")

	// ErrInvalidURL is returned when the URL cannot be parsed or has no scheme.
	ErrInvalidURL = errors.New("invalid URL: must be absolute")

	// ErrInvalidProtocolTimeout is returned when the protocol timeout is not positive.
	ErrInvalidProtocolTimeout = errors.New("invalid protocol timeout: must be positive")

	// ErrInvalidMaxWait is returned when the page load wait is not positive.
	ErrInvalidMaxWait = errors.New("invalid max wait for load: must be positive")

	// ErrInvalidCollectorTimeout is returned when the collector timeout is negative.
	// Use 0 to disable it.
	ErrInvalidCollectorTimeout = errors.New("invalid collector timeout: must be non-negative")

	// ErrInvalidCPUSlowdown is returned when the CPU slowdown multiplier is negative.
	ErrInvalidCPUSlowdown = errors.New("invalid CPU slowdown multiplier: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrNoGatherers is returned when a config file defines no gatherers.
	ErrNoGatherers = errors.New("configuration defines no gatherers")

	// ErrMissingGatherer is returned when an artifact names no gatherer and
	// has no id to fall back on.
	ErrMissingGatherer = errors.New("artifact has no gatherer")
)
