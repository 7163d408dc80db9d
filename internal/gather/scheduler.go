package gather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/willoughbyrm/lighthouse/internal/gatherer"
	"github.com/willoughbyrm/lighthouse/internal/model"
	"github.com/willoughbyrm/lighthouse/internal/session"
	"github.com/willoughbyrm/lighthouse/internal/tracing"
)

// NavigationContext is what every phase of one navigation shares.
type NavigationContext struct {
	// Session is the connected session of the driver.
	Session session.Session

	// Navigation is the navigation being gathered.
	Navigation NavigationDefn

	// RequestedURL is the URL the navigation loads.
	RequestedURL string
}

// slot is one artifact's pending result within a running phase.
// done is closed once result and record are final.
type slot struct {
	done   chan struct{}
	result model.Result
	record bool
}

// CollectPhaseArtifacts runs phase for every artifact of the navigation and
// records the results in state.
//
// Every artifact whose modes invoke phase is called concurrently. Start
// phases record every invoked artifact so later phases can check their
// predecessor. Stop and collect phases record only the artifacts whose
// terminal phase they are; other invocations run for their side effects and
// their failures are logged.
//
// An artifact is not invoked when the result of its prior phase failed
// (stopInstrumentation after startInstrumentation, stopSensitiveInstrumentation
// after startSensitiveInstrumentation), or, at its terminal phase, when a
// dependency failed. The original error is recorded in its place.
//
// Collector failures are data. The only error returned is a *ConfigError for
// an invalid artifact list.
func (r *Runner) CollectPhaseArtifacts(ctx context.Context, nc NavigationContext, phase model.Phase, state *ArtifactState) error {
	p, err := planArtifacts(nc.Navigation.Artifacts, state)
	if err != nil {
		return withNavigation(err, nc.Navigation.ID)
	}
	return r.collectPhase(ctx, nc, p, phase, state)
}

func (r *Runner) collectPhase(ctx context.Context, nc NavigationContext, p *plan, phase model.Phase, state *ArtifactState) error {
	ctx, span := r.tracer.Start(ctx, "phase "+phase.String(), trace.WithAttributes(
		tracing.AttrNavigationID.String(nc.Navigation.ID),
		tracing.AttrPhase.String(phase.String()),
	))
	defer span.End()

	r.logger.Debug("collecting phase artifacts",
		"navigation", nc.Navigation.ID,
		"phase", phase.String(),
		"artifacts", len(p.artifacts),
	)

	slots := make([]*slot, len(p.artifacts))
	for i := range slots {
		slots[i] = &slot{done: make(chan struct{})}
	}

	// No limit: every eligible artifact runs at once.
	var g errgroup.Group
	for i, a := range p.artifacts {
		g.Go(func() error {
			defer close(slots[i].done)
			slots[i].result, slots[i].record = r.runArtifact(ctx, nc, p, a, phase, slots, state)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // artifact goroutines never fail

	for i, a := range p.artifacts {
		if slots[i].record {
			state.Record(phase, a.defn.ID, slots[i].result)
		}
	}
	return nil
}

// runArtifact computes one artifact's result for phase. record reports
// whether the result belongs in the phase map.
func (r *Runner) runArtifact(
	ctx context.Context,
	nc NavigationContext,
	p *plan,
	a plannedArtifact,
	phase model.Phase,
	slots []*slot,
	state *ArtifactState,
) (result model.Result, record bool) {
	if !phase.Invokes(a.modes) {
		return model.Result{}, false
	}

	id := a.defn.ID
	terminal := a.terminal == phase
	record = terminal || !phase.CanBeTerminal()
	logger := r.logger.With("navigation", nc.Navigation.ID, "artifact", id, "phase", phase.String())

	if prior, ok := phase.Prior(); ok {
		if pr, found := state.Lookup(prior, id); found && pr.Failed() {
			logger.Debug("skipping artifact, prior phase failed", "prior", prior.String(), "error", pr.Err)
			return pr, record
		}
	}

	var deps map[string]any
	if terminal {
		var depFailure model.Result
		var ok bool
		deps, depFailure, ok = r.resolveDependencies(ctx, p, a, phase, slots, state)
		if !ok {
			logger.Debug("skipping artifact, dependency failed", "error", depFailure.Err)
			return depFailure, record
		}
	}

	pc := &gatherer.Context{
		Session:      nc.Session,
		URL:          nc.RequestedURL,
		GatherMode:   model.ModeNavigation,
		ArtifactID:   id,
		Dependencies: deps,
		Logger:       logger,
	}

	value, err := r.invoke(ctx, a, phase, pc)
	if err != nil {
		if record {
			logger.Warn("artifact failed", "error", err)
		} else {
			logger.Warn("collector phase failed", "error", err)
		}
		return model.Fail(err), record
	}
	return model.OK(value), record
}

// resolveDependencies maps each logical dependency name of a to the value of
// the referenced artifact. Dependencies in the same phase are awaited. ok is
// false when a dependency failed; failure then carries its result.
func (r *Runner) resolveDependencies(
	ctx context.Context,
	p *plan,
	a plannedArtifact,
	phase model.Phase,
	slots []*slot,
	state *ArtifactState,
) (deps map[string]any, failure model.Result, ok bool) {
	if len(a.defn.Dependencies) == 0 {
		return nil, model.Result{}, true
	}

	deps = make(map[string]any, len(a.defn.Dependencies))
	for _, name := range dependencyNames(a.defn) {
		ref := a.defn.Dependencies[name]

		var res model.Result
		var found bool
		if j, inPlan := p.byID[ref.ID]; inPlan && p.artifacts[j].terminal == phase {
			select {
			case <-slots[j].done:
				res, found = slots[j].result, true
			case <-ctx.Done():
				return nil, model.Fail(ctx.Err()), false
			}
		} else {
			res, found = state.terminalResult(ref.ID, phase)
		}

		if !found {
			return nil, model.Fail(fmt.Errorf("dependency %s (%q): %w", name, ref.ID, errNotCollected)), false
		}
		if res.Failed() {
			return nil, res, false
		}
		deps[name] = res.Value
	}
	return deps, model.Result{}, true
}

// invoke calls the collector operation for phase under the collector
// timeout. A panic or an expired timeout becomes the call's error; a
// collector that ignores its context is abandoned.
func (r *Runner) invoke(ctx context.Context, a plannedArtifact, phase model.Phase, pc *gatherer.Context) (any, error) {
	ctx, span := r.tracer.Start(ctx, "collector "+a.defn.ID, trace.WithAttributes(
		tracing.AttrArtifactID.String(a.defn.ID),
		tracing.AttrCollector.String(a.defn.Collector.Meta().Name),
		tracing.AttrPhase.String(phase.String()),
		tracing.AttrTerminal.Bool(a.terminal == phase),
	))
	defer span.End()

	parent := ctx
	if r.collectorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.collectorTimeout)
		defer cancel()
	}

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("collector panicked",
					slog.String("artifact", a.defn.ID),
					slog.String("phase", phase.String()),
					slog.Any("panic", p),
				)
				done <- outcome{err: fmt.Errorf("%w: %v", ErrCollectorPanic, p)}
			}
		}()
		value, err := gatherer.Invoke(ctx, a.defn.Collector, phase, pc)
		done <- outcome{value: value, err: err}
	}()

	var o outcome
	select {
	case o = <-done:
	case <-ctx.Done():
		o.err = ctx.Err()
		if parent.Err() == nil && errors.Is(o.err, context.DeadlineExceeded) {
			o.err = fmt.Errorf("%w after %s", ErrCollectorTimeout, r.collectorTimeout)
		}
	}

	tracing.RecordError(span, o.err)
	return o.value, o.err
}
