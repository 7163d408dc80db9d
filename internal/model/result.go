package model

import (
	"encoding/json"
	"errors"
	"sort"
)

// Result is the settled outcome of one collector operation: either the value
// it produced or the error it failed with. A Result is never pending.
//
// Design decision: Collector failures are data, not control flow. Keeping
// the error inside the Result lets one broken collector fail its own slot
// without aborting the phase, and lets dependents inherit the original error
// value unchanged.
type Result struct {
	// Value is the data produced by the collector. Nil when Err is set.
	Value any

	// Err is the captured collector error, or nil on success.
	Err error
}

// OK returns a successful Result holding v.
func OK(v any) Result {
	return Result{Value: v}
}

// Fail returns a failed Result holding err.
func Fail(err error) Result {
	return Result{Err: err}
}

// Failed reports whether the result carries an error.
func (r Result) Failed() bool {
	return r.Err != nil
}

// resultJSON is the serialized form of a Result.
type resultJSON struct {
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// unknownError stands in for an error with an empty message so that a
// failure never decodes as a success.
const unknownError = "unknown error"

// MarshalJSON encodes the result as {"value": ...} or {"error": "..."}.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		msg := r.Err.Error()
		if msg == "" {
			msg = unknownError
		}
		return json.Marshal(resultJSON{Error: msg})
	}
	return json.Marshal(resultJSON{Value: r.Value})
}

// UnmarshalJSON decodes a stored result. Errors are restored as plain errors
// carrying the original message; their identity is not preserved.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Error != "" {
		*r = Fail(errors.New(raw.Error))
		return nil
	}
	*r = OK(raw.Value)
	return nil
}

// Artifacts is the merged artifact map: artifact id to its final result.
type Artifacts map[string]Result

// Merge copies every entry of other into a, overwriting ids already present.
// Later navigations are merged over earlier ones, so their values win.
func (a Artifacts) Merge(other Artifacts) {
	for id, r := range other {
		a[id] = r
	}
}

// IDs returns the artifact ids in sorted order.
func (a Artifacts) IDs() []string {
	ids := make([]string, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Failed returns the sorted ids of artifacts that hold an error.
func (a Artifacts) Failed() []string {
	ids := make([]string, 0)
	for _, id := range a.IDs() {
		if a[id].Failed() {
			ids = append(ids, id)
		}
	}
	return ids
}
