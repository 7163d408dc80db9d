package model

import (
	"time"

	"github.com/google/uuid"
)

// Run is the outcome of one gather run against a single requested URL.
// It is what gets written to reports and stored for later comparison.
type Run struct {
	// ID uniquely identifies the run.
	ID string `json:"id"`

	// RequestedURL is the URL every navigation loaded.
	RequestedURL string `json:"requested_url"`

	// FinalURL is the URL after redirects of the last completed navigation.
	FinalURL string `json:"final_url,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall-clock time of the run.
	Duration time.Duration `json:"duration"`

	// Navigations lists the ids of navigations that completed, in order.
	Navigations []string `json:"navigations"`

	// Artifacts is the merged artifact map across all completed navigations.
	Artifacts Artifacts `json:"artifacts"`

	// Fault is the navigation-level failure message, if the run was cut short.
	Fault string `json:"fault,omitempty"`
}

// NewRun creates an empty run for requestedURL with a fresh id.
func NewRun(requestedURL string) *Run {
	return &Run{
		ID:           uuid.NewString(),
		RequestedURL: requestedURL,
		StartedAt:    time.Now(),
		Navigations:  make([]string, 0),
		Artifacts:    make(Artifacts),
	}
}

// Succeeded returns how many artifacts hold a value.
func (r *Run) Succeeded() int {
	return len(r.Artifacts) - len(r.Artifacts.Failed())
}

// Faulted reports whether a navigation-level fault ended the run.
func (r *Run) Faulted() bool {
	return r.Fault != ""
}
