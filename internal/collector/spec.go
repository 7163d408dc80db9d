package collector

import (
	"encoding/json"
	"time"
)

// DefaultMaxEvents bounds how many events one artifact records.
const DefaultMaxEvents = 1000

// Command is a protocol command issued during one lifecycle phase.
type Command struct {
	// Method is the protocol method, e.g. "Runtime.evaluate".
	Method string `yaml:"method" json:"method"`

	// Params are sent as the command parameters.
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`

	// Timeout overrides the session's protocol timeout for this command.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Spec describes a CommandCollector.
type Spec struct {
	// Name identifies the collector in navigation definitions.
	Name string `yaml:"name" json:"name"`

	// Modes lists the supported gather modes.
	Modes []string `yaml:"modes" json:"modes"`

	// Commands maps lifecycle phase names, e.g. "collectArtifact", to the
	// command issued in that phase.
	Commands map[string]Command `yaml:"commands,omitempty" json:"commands,omitempty"`

	// Events lists protocol events to record.
	Events []string `yaml:"events,omitempty" json:"events,omitempty"`

	// MaxEvents caps the recorded events. Zero means DefaultMaxEvents.
	MaxEvents int `yaml:"maxEvents,omitempty" json:"maxEvents,omitempty"`
}

// RecordedEvent is a protocol event captured by a collector.
type RecordedEvent struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Output is the artifact value of a CommandCollector.
type Output struct {
	// Result is the raw result of the terminal phase's command, if any.
	Result json.RawMessage `json:"result,omitempty"`

	// Events are the recorded events in arrival order.
	Events []RecordedEvent `json:"events,omitempty"`

	// Dropped counts events discarded after MaxEvents was reached.
	Dropped int `json:"dropped,omitempty"`
}
