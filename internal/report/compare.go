package report

import (
	"time"

	"github.com/willoughbyrm/lighthouse/internal/model"
)

// Direction describes how a run changed relative to an earlier one.
type Direction string

const (
	// DirectionImproved means fewer artifacts fail than before.
	DirectionImproved Direction = "improved"
	// DirectionRegressed means more artifacts fail than before.
	DirectionRegressed Direction = "regressed"
	// DirectionUnchanged means the failure count did not move.
	DirectionUnchanged Direction = "unchanged"
)

// RunSummary is the part of a run shown next to its comparison.
type RunSummary struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	FinalURL  string        `json:"final_url,omitempty"`
	Artifacts int           `json:"artifacts"`
	Failed    int           `json:"failed"`
	Fault     string        `json:"fault,omitempty"`
}

// summaryOf builds the RunSummary of run.
func summaryOf(run *model.Run) RunSummary {
	return RunSummary{
		ID:        run.ID,
		StartedAt: run.StartedAt,
		Duration:  run.Duration,
		FinalURL:  run.FinalURL,
		Artifacts: len(run.Artifacts),
		Failed:    len(run.Artifacts.Failed()),
		Fault:     run.Fault,
	}
}

// Comparison is the artifact-level difference between two runs of one URL.
// Every artifact id of either run lands in exactly one of the id lists.
type Comparison struct {
	// URL is the requested URL of the current run.
	URL string `json:"url"`

	Previous RunSummary `json:"previous"`
	Current  RunSummary `json:"current"`

	// Added lists artifacts only the current run produced.
	Added []string `json:"added"`

	// Removed lists artifacts only the previous run produced.
	Removed []string `json:"removed"`

	// Broken lists artifacts that held a value before and fail now.
	Broken []string `json:"broken"`

	// Fixed lists artifacts that failed before and hold a value now.
	Fixed []string `json:"fixed"`

	// Unchanged lists artifacts whose success state did not change.
	Unchanged []string `json:"unchanged"`

	// FailedDelta is the current failure count minus the previous one.
	FailedDelta int `json:"failed_delta"`

	Direction Direction `json:"direction"`
}

// Compare computes the difference from previous to current.
//
// Design decision: Artifacts are compared by success state only, not by
// value, because:
//  1. Collector values such as timings and event counts differ on every run
//  2. A value diff of arbitrary protocol payloads would be unreadable
func Compare(previous, current *model.Run) *Comparison {
	c := &Comparison{
		URL:       current.RequestedURL,
		Previous:  summaryOf(previous),
		Current:   summaryOf(current),
		Added:     make([]string, 0),
		Removed:   make([]string, 0),
		Broken:    make([]string, 0),
		Fixed:     make([]string, 0),
		Unchanged: make([]string, 0),
	}

	for _, id := range current.Artifacts.IDs() {
		now := current.Artifacts[id]
		before, ok := previous.Artifacts[id]
		switch {
		case !ok:
			c.Added = append(c.Added, id)
		case !before.Failed() && now.Failed():
			c.Broken = append(c.Broken, id)
		case before.Failed() && !now.Failed():
			c.Fixed = append(c.Fixed, id)
		default:
			c.Unchanged = append(c.Unchanged, id)
		}
	}
	for _, id := range previous.Artifacts.IDs() {
		if _, ok := current.Artifacts[id]; !ok {
			c.Removed = append(c.Removed, id)
		}
	}

	c.FailedDelta = c.Current.Failed - c.Previous.Failed
	switch {
	case c.FailedDelta < 0:
		c.Direction = DirectionImproved
	case c.FailedDelta > 0:
		c.Direction = DirectionRegressed
	default:
		c.Direction = DirectionUnchanged
	}
	return c
}

// HasChanges reports whether any artifact changed between the runs.
func (c *Comparison) HasChanges() bool {
	return len(c.Added)+len(c.Removed)+len(c.Broken)+len(c.Fixed) > 0
}
