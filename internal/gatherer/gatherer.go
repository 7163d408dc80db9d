package gatherer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/willoughbyrm/lighthouse/internal/model"
	"github.com/willoughbyrm/lighthouse/internal/session"
)

// Meta describes a collector.
type Meta struct {
	// Name identifies the collector kind in logs and traces.
	Name string

	// SupportedModes is the non-empty set of modes the collector supports.
	SupportedModes model.ModeSet
}

// Context is what a collector receives on every lifecycle call.
// The scheduler builds a fresh Context per artifact per phase, so collectors
// may keep references to it only for the duration of the call.
type Context struct {
	// Session is the live session shared by every collector of the run.
	Session session.Session

	// URL is the requested URL of the navigation.
	URL string

	// GatherMode is the mode of the run. Navigation runs use
	// model.ModeNavigation.
	GatherMode model.Mode

	// ArtifactID is the id of the artifact being gathered.
	ArtifactID string

	// Dependencies maps each declared logical dependency name to the resolved
	// value of the referenced artifact. It is only populated at the artifact's
	// terminal phase.
	Dependencies map[string]any

	// Logger is scoped to the artifact.
	Logger *slog.Logger
}

// Collector is a pluggable unit that produces one artifact.
//
// Design decision: Every collector implements all five lifecycle operations.
// Collectors embed Base to get no-op defaults and override only what their
// supported modes need. Dispatch is a closed switch (see Invoke), so adding a
// phase is a compile error in every collector rather than a silent skip.
type Collector interface {
	// Meta returns the collector description.
	Meta() Meta

	// StartInstrumentation begins observation before the page load.
	StartInstrumentation(ctx context.Context, pc *Context) (any, error)

	// StartSensitiveInstrumentation begins observation that would be
	// disturbed by other instrumentation, such as tracing.
	StartSensitiveInstrumentation(ctx context.Context, pc *Context) (any, error)

	// StopSensitiveInstrumentation ends sensitive observation. It is the
	// terminal phase for navigation-only collectors.
	StopSensitiveInstrumentation(ctx context.Context, pc *Context) (any, error)

	// StopInstrumentation ends observation. It is the terminal phase for
	// timespan collectors.
	StopInstrumentation(ctx context.Context, pc *Context) (any, error)

	// CollectArtifact reads the page state. It is the terminal phase for
	// snapshot collectors.
	CollectArtifact(ctx context.Context, pc *Context) (any, error)
}

// Cleaner is implemented by collectors that hold per-artifact resources,
// such as event subscriptions, from one phase to a later one. The runner
// calls Cleanup for every artifact when its navigation ends, whether or not
// the terminal phase ran. Cleanup must be idempotent.
type Cleaner interface {
	Cleanup(artifactID string)
}

// Base provides no-op lifecycle operations. Embed it and set Info.
type Base struct {
	Info Meta
}

// Meta implements Collector.
func (b Base) Meta() Meta { return b.Info }

// StartInstrumentation implements Collector.
func (Base) StartInstrumentation(context.Context, *Context) (any, error) { return nil, nil }

// StartSensitiveInstrumentation implements Collector.
func (Base) StartSensitiveInstrumentation(context.Context, *Context) (any, error) {
	return nil, nil
}

// StopSensitiveInstrumentation implements Collector.
func (Base) StopSensitiveInstrumentation(context.Context, *Context) (any, error) {
	return nil, nil
}

// StopInstrumentation implements Collector.
func (Base) StopInstrumentation(context.Context, *Context) (any, error) { return nil, nil }

// CollectArtifact implements Collector.
func (Base) CollectArtifact(context.Context, *Context) (any, error) { return nil, nil }

// Invoke calls the lifecycle operation of c that corresponds to phase.
func Invoke(ctx context.Context, c Collector, phase model.Phase, pc *Context) (any, error) {
	switch phase {
	case model.PhaseStartInstrumentation:
		return c.StartInstrumentation(ctx, pc)
	case model.PhaseStartSensitiveInstrumentation:
		return c.StartSensitiveInstrumentation(ctx, pc)
	case model.PhaseStopSensitiveInstrumentation:
		return c.StopSensitiveInstrumentation(ctx, pc)
	case model.PhaseStopInstrumentation:
		return c.StopInstrumentation(ctx, pc)
	case model.PhaseCollectArtifact:
		return c.CollectArtifact(ctx, pc)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPhase, phase)
	}
}
