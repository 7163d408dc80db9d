package model

import "fmt"

// Phase is one of the five collector lifecycle operations of a navigation.
// Phases run in the order returned by Phases; the page load happens between
// StartSensitiveInstrumentation and StopSensitiveInstrumentation.
type Phase int

const (
	// PhaseStartInstrumentation begins timespan instrumentation.
	PhaseStartInstrumentation Phase = iota

	// PhaseStartSensitiveInstrumentation begins instrumentation that must
	// only observe the page load itself.
	PhaseStartSensitiveInstrumentation

	// PhaseStopSensitiveInstrumentation ends load-only instrumentation.
	// Terminal for navigation-only collectors.
	PhaseStopSensitiveInstrumentation

	// PhaseStopInstrumentation ends timespan instrumentation.
	// Terminal for timespan collectors.
	PhaseStopInstrumentation

	// PhaseCollectArtifact reads the final page state.
	// Terminal for snapshot collectors.
	PhaseCollectArtifact
)

// Phases returns every phase in execution order.
func Phases() []Phase {
	return []Phase{
		PhaseStartInstrumentation,
		PhaseStartSensitiveInstrumentation,
		PhaseStopSensitiveInstrumentation,
		PhaseStopInstrumentation,
		PhaseCollectArtifact,
	}
}

// String returns the lifecycle operation name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseStartInstrumentation:
		return "startInstrumentation"
	case PhaseStartSensitiveInstrumentation:
		return "startSensitiveInstrumentation"
	case PhaseStopSensitiveInstrumentation:
		return "stopSensitiveInstrumentation"
	case PhaseStopInstrumentation:
		return "stopInstrumentation"
	case PhaseCollectArtifact:
		return "collectArtifact"
	default:
		return "unknown"
	}
}

// Invokes reports whether a collector supporting modes is called in this phase.
// Collectors are called in every phase that applies to one of their modes so
// that stacked instrumentation starts and stops consistently.
func (p Phase) Invokes(modes ModeSet) bool {
	switch p {
	case PhaseStartInstrumentation:
		return modes.Has(ModeTimespan) || modes.Has(ModeNavigation)
	case PhaseStartSensitiveInstrumentation, PhaseStopSensitiveInstrumentation:
		return modes.Has(ModeNavigation)
	case PhaseStopInstrumentation:
		return modes.Has(ModeTimespan)
	case PhaseCollectArtifact:
		return modes.Has(ModeSnapshot)
	default:
		return false
	}
}

// Prior returns the phase whose result gates this one for the same artifact.
// The boolean is false for phases without a predecessor.
func (p Phase) Prior() (Phase, bool) {
	switch p {
	case PhaseStopSensitiveInstrumentation:
		return PhaseStartSensitiveInstrumentation, true
	case PhaseStopInstrumentation:
		return PhaseStartInstrumentation, true
	default:
		return 0, false
	}
}

// CanBeTerminal reports whether any mode set resolves to this phase.
// Only terminal-capable phases contribute values to the merged artifact map.
func (p Phase) CanBeTerminal() bool {
	switch p {
	case PhaseStopSensitiveInstrumentation, PhaseStopInstrumentation, PhaseCollectArtifact:
		return true
	default:
		return false
	}
}

// TerminalPhase returns the phase whose result becomes the artifact value for
// a collector supporting modes. Rules, first match wins:
//
//	navigation only -> PhaseStopSensitiveInstrumentation
//	timespan        -> PhaseStopInstrumentation
//	snapshot        -> PhaseCollectArtifact
//
// A set with both timespan and snapshot is rejected with ErrAmbiguousModes
// and an empty set with ErrNoModes.
func TerminalPhase(modes ModeSet) (Phase, error) {
	if len(modes) == 0 {
		return 0, ErrNoModes
	}

	hasTimespan := modes.Has(ModeTimespan)
	hasSnapshot := modes.Has(ModeSnapshot)

	switch {
	case hasTimespan && hasSnapshot:
		return 0, ErrAmbiguousModes
	case hasTimespan:
		return PhaseStopInstrumentation, nil
	case hasSnapshot:
		return PhaseCollectArtifact, nil
	default:
		return PhaseStopSensitiveInstrumentation, nil
	}
}

// ParsePhase converts a lifecycle phase name, as returned by String, into a
// Phase. Matching is exact.
func ParsePhase(name string) (Phase, error) {
	for _, p := range Phases() {
		if p.String() == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPhase, name)
}
