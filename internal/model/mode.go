package model

import (
	"fmt"
	"strings"
)

// Mode is a gather mode a collector can take part in.
//
// Design decision: Modes are strings rather than iota constants because they
// appear verbatim in configuration files and stored runs, and a string keeps
// both readable without a translation table.
type Mode string

const (
	// ModeSnapshot collects the current page state without observing a load.
	ModeSnapshot Mode = "snapshot"

	// ModeTimespan observes the page over a period of time.
	ModeTimespan Mode = "timespan"

	// ModeNavigation observes a full page load.
	ModeNavigation Mode = "navigation"
)

// ModeSet is the ordered, de-duplicated set of modes a collector supports.
type ModeSet []Mode

// NewModeSet builds a ModeSet, dropping duplicates while keeping first-seen order.
func NewModeSet(modes ...Mode) ModeSet {
	set := make(ModeSet, 0, len(modes))
	for _, m := range modes {
		if !set.Has(m) {
			set = append(set, m)
		}
	}
	return set
}

// ParseModes converts configuration strings into a ModeSet.
// Matching is case-insensitive; unknown names return ErrUnknownMode.
func ParseModes(names []string) (ModeSet, error) {
	modes := make([]Mode, 0, len(names))
	for _, name := range names {
		m := Mode(strings.ToLower(strings.TrimSpace(name)))
		switch m {
		case ModeSnapshot, ModeTimespan, ModeNavigation:
			modes = append(modes, m)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownMode, name)
		}
	}
	return NewModeSet(modes...), nil
}

// Has reports whether the set contains m.
func (s ModeSet) Has(m Mode) bool {
	for _, candidate := range s {
		if candidate == m {
			return true
		}
	}
	return false
}

// Strings returns the modes as plain strings.
func (s ModeSet) Strings() []string {
	out := make([]string, len(s))
	for i, m := range s {
		out[i] = string(m)
	}
	return out
}

// String implements fmt.Stringer.
func (s ModeSet) String() string {
	return "[" + strings.Join(s.Strings(), ",") + "]"
}
