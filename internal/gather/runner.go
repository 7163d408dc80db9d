package gather

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/willoughbyrm/lighthouse/internal/driver"
	"github.com/willoughbyrm/lighthouse/internal/gatherer"
	"github.com/willoughbyrm/lighthouse/internal/model"
	"github.com/willoughbyrm/lighthouse/internal/prepare"
	"github.com/willoughbyrm/lighthouse/internal/tracing"
)

// Runner gathers artifacts for navigations of one requested URL over a
// single driver.
//
// Design decision: Runner keeps the driver for its whole life and runs
// navigations strictly one after another. Each navigation depends on the page
// and session state left by the previous one, so there is nothing to gain
// from parallelism and a lot to lose.
type Runner struct {
	// driver owns the browser target.
	driver driver.Driver

	// settings apply to every navigation.
	settings Settings

	// logger is used for structured logging during gathering.
	logger *slog.Logger

	// tracer records run, navigation, phase and collector spans.
	tracer trace.Tracer

	// collectorTimeout bounds each collector call. Zero disables it.
	collectorTimeout time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithTracer sets the tracer spans are recorded with.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = tracer
	}
}

// WithSettings sets the run-wide settings.
func WithSettings(settings Settings) Option {
	return func(r *Runner) {
		r.settings = settings
	}
}

// WithCollectorTimeout bounds every collector call. A call that exceeds it
// fails with ErrCollectorTimeout without affecting its siblings.
func WithCollectorTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.collectorTimeout = d
		}
	}
}

// New creates a Runner over d.
func New(d driver.Driver, opts ...Option) *Runner {
	r := &Runner{
		driver:   d,
		settings: DefaultSettings(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.tracer == nil {
		r.tracer = tracing.Tracer()
	}
	if r.settings.MaxWaitForLoad <= 0 {
		r.settings.MaxWaitForLoad = DefaultMaxWaitForLoad
	}

	return r
}

// NavigationResult is the outcome of one navigation.
type NavigationResult struct {
	// FinalURL is the page URL after redirects.
	FinalURL string

	// Artifacts holds one entry per artifact of the navigation.
	Artifacts model.Artifacts
}

// NavigationsResult is the outcome of a navigation set.
type NavigationsResult struct {
	// FinalURL is the final URL of the last completed navigation.
	FinalURL string

	// Completed lists the ids of navigations that finished, in order.
	Completed []string

	// Artifacts is the union of every completed navigation's artifacts.
	Artifacts model.Artifacts
}

// Setup connects the driver, parks the target on the blank page and fails
// when another client shares a service worker with the requested origin.
func (r *Runner) Setup(ctx context.Context, requestedURL string) error {
	ctx, span := r.tracer.Start(ctx, "setup", trace.WithAttributes(tracing.AttrURL.String(requestedURL)))
	defer span.End()

	fault := func(err error) error {
		tracing.RecordError(span, err)
		return &NavigationError{Step: "setup", URL: requestedURL, Err: err}
	}

	if err := r.driver.Connect(ctx); err != nil {
		return fault(err)
	}
	if _, err := r.driver.Goto(ctx, driver.BlankPage, driver.GotoOptions{}); err != nil {
		return fault(err)
	}
	if err := prepare.AssertNoSameOriginServiceWorkerClients(ctx, r.driver.Session(), requestedURL); err != nil {
		return fault(err)
	}
	return nil
}

// SetupNavigation loads the navigation's blank page, resets storage unless
// disabled and applies devtools throttling when configured.
func (r *Runner) SetupNavigation(ctx context.Context, nav NavigationDefn, requestedURL string) error {
	blank := nav.BlankPage
	if blank == "" {
		blank = driver.BlankPage
	}
	fault := func(err error) error {
		return &NavigationError{Navigation: nav.ID, Step: "setupNavigation", URL: blank, Err: err}
	}

	if _, err := r.driver.Goto(ctx, blank, driver.GotoOptions{}); err != nil {
		return fault(err)
	}

	s := r.driver.Session()
	if !r.settings.DisableStorageReset && !nav.DisableStorageReset {
		if err := prepare.ClearDataForOrigin(ctx, s, requestedURL); err != nil {
			return fault(err)
		}
		if err := prepare.ClearBrowserCache(ctx, s); err != nil {
			return fault(err)
		}
	}

	if r.settings.ThrottlingMethod == prepare.ThrottlingDevtools && !nav.DisableThrottling {
		if err := prepare.EnableThrottling(ctx, s, r.settings.Throttling); err != nil {
			return fault(err)
		}
	}
	return nil
}

// Navigate prepares the target and loads requestedURL. The returned cleanup
// removes the subscriptions installed for the page and must be called when
// the navigation ends.
func (r *Runner) Navigate(ctx context.Context, nav NavigationDefn, requestedURL string) (string, func(), error) {
	fault := func(err error) error {
		return &NavigationError{Navigation: nav.ID, Step: "navigate", URL: requestedURL, Err: err}
	}

	s := r.driver.Session()
	cleanup, err := prepare.PrepareTargetForNavigation(ctx, s, r.settings.prepareSettings(), r.logger)
	if err != nil {
		return "", nil, fault(err)
	}

	finalURL, err := r.driver.Goto(ctx, requestedURL, driver.GotoOptions{
		WaitForLoad:    true,
		MaxWaitForLoad: r.settings.MaxWaitForLoad,
	})
	if err != nil {
		cleanup()
		return "", nil, fault(err)
	}

	if r.settings.ThrottlingMethod == prepare.ThrottlingDevtools && !nav.DisableThrottling {
		if err := prepare.ClearThrottling(ctx, s); err != nil {
			cleanup()
			return "", nil, fault(err)
		}
	}
	return finalURL, cleanup, nil
}

// Navigation runs one navigation: blank page setup, the start phases, the
// page load, then the stop and collect phases. Collector failures are
// recorded in the returned artifacts. A *ConfigError or *NavigationError
// is returned for faults that invalidate the whole navigation; no artifacts
// are returned with them.
func (r *Runner) Navigation(ctx context.Context, nav NavigationDefn, requestedURL string) (*NavigationResult, error) {
	p, err := planArtifacts(nav.Artifacts, nil)
	if err != nil {
		return nil, withNavigation(err, nav.ID)
	}

	ctx, span := r.tracer.Start(ctx, "navigation "+nav.ID, trace.WithAttributes(
		tracing.AttrNavigationID.String(nav.ID),
		tracing.AttrURL.String(requestedURL),
		tracing.AttrArtifacts.Int(len(p.artifacts)),
	))
	defer span.End()

	r.logger.Info("starting navigation",
		"navigation", nav.ID,
		"url", requestedURL,
		"artifacts", len(p.artifacts),
	)
	startTime := time.Now()

	if err := r.SetupNavigation(ctx, nav, requestedURL); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	nc := NavigationContext{
		Session:      r.driver.Session(),
		Navigation:   nav,
		RequestedURL: requestedURL,
	}
	state := NewArtifactState()
	defer r.cleanupArtifacts(p)

	for _, phase := range []model.Phase{
		model.PhaseStartInstrumentation,
		model.PhaseStartSensitiveInstrumentation,
	} {
		if err := r.collectPhase(ctx, nc, p, phase, state); err != nil {
			return nil, err
		}
	}

	finalURL, cleanup, err := r.Navigate(ctx, nav, requestedURL)
	if err != nil {
		tracing.RecordError(span, err)
		r.logger.Error("navigation failed",
			"navigation", nav.ID,
			"url", requestedURL,
			"error", err,
		)
		return nil, err
	}
	defer cleanup()

	for _, phase := range []model.Phase{
		model.PhaseStopSensitiveInstrumentation,
		model.PhaseStopInstrumentation,
		model.PhaseCollectArtifact,
	} {
		if err := r.collectPhase(ctx, nc, p, phase, state); err != nil {
			return nil, err
		}
	}

	artifacts := state.merged(p)
	r.logger.Info("navigation complete",
		"navigation", nav.ID,
		"final_url", finalURL,
		"artifacts", len(artifacts),
		"failed", len(artifacts.Failed()),
		"elapsed", time.Since(startTime),
	)

	return &NavigationResult{FinalURL: finalURL, Artifacts: artifacts}, nil
}

// cleanupArtifacts lets collectors release what they hold for the
// artifacts of p.
func (r *Runner) cleanupArtifacts(p *plan) {
	for _, a := range p.artifacts {
		if c, ok := a.defn.Collector.(gatherer.Cleaner); ok {
			c.Cleanup(a.defn.ID)
		}
	}
}

// Navigations runs every navigation in order and unions their artifacts; a
// later navigation's artifact replaces an earlier one with the same id.
// It stops at the first navigation fault and returns the union so far with
// the fault. Configuration errors are reported before any navigation runs.
func (r *Runner) Navigations(ctx context.Context, navigations []NavigationDefn, requestedURL string) (*NavigationsResult, error) {
	if err := ValidateNavigations(navigations); err != nil {
		return nil, err
	}

	result := &NavigationsResult{
		Completed: make([]string, 0, len(navigations)),
		Artifacts: make(model.Artifacts),
	}

	for _, nav := range navigations {
		// Check for cancellation before starting each navigation
		select {
		case <-ctx.Done():
			r.logger.Warn("gathering cancelled",
				"navigation", nav.ID,
				"reason", ctx.Err(),
			)
			return result, &NavigationError{Navigation: nav.ID, Step: "navigate", URL: requestedURL, Err: ctx.Err()}
		default:
		}

		nr, err := r.Navigation(ctx, nav, requestedURL)
		if err != nil {
			return result, err
		}

		result.Artifacts.Merge(nr.Artifacts)
		result.Completed = append(result.Completed, nav.ID)
		result.FinalURL = nr.FinalURL
	}

	return result, nil
}

// Gather validates the navigation set, sets up the session and runs every
// navigation, producing a Run. A configuration error returns a nil Run.
// A navigation fault returns the Run gathered so far, with Fault set,
// together with the fault.
func (r *Runner) Gather(ctx context.Context, navigations []NavigationDefn, requestedURL string) (*model.Run, error) {
	if err := ValidateNavigations(navigations); err != nil {
		return nil, err
	}

	run := model.NewRun(requestedURL)

	ctx, span := r.tracer.Start(ctx, "gather", trace.WithAttributes(
		tracing.AttrRunID.String(run.ID),
		tracing.AttrURL.String(requestedURL),
	))
	defer span.End()

	r.logger.Info("starting gather run",
		"run", run.ID,
		"url", requestedURL,
		"navigations", len(navigations),
	)

	finish := func(err error) (*model.Run, error) {
		run.Duration = time.Since(run.StartedAt)
		if err != nil {
			run.Fault = err.Error()
			tracing.RecordError(span, err)
		}
		r.logger.Info("gather run complete",
			"run", run.ID,
			"artifacts", len(run.Artifacts),
			"failed", len(run.Artifacts.Failed()),
			"faulted", run.Faulted(),
			"elapsed", run.Duration,
		)
		return run, err
	}

	if err := r.Setup(ctx, requestedURL); err != nil {
		return finish(err)
	}

	result, err := r.Navigations(ctx, navigations, requestedURL)
	if result != nil {
		run.FinalURL = result.FinalURL
		run.Navigations = result.Completed
		run.Artifacts = result.Artifacts
	}
	return finish(err)
}
