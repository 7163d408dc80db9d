package gather

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/willoughbyrm/lighthouse/internal/collector"
	"github.com/willoughbyrm/lighthouse/internal/driver"
	"github.com/willoughbyrm/lighthouse/internal/gatherer"
	"github.com/willoughbyrm/lighthouse/internal/model"
	"github.com/willoughbyrm/lighthouse/internal/session"
	"github.com/willoughbyrm/lighthouse/internal/session/sessiontest"
)

// fakeDriver is a test helper that implements driver.Driver over a
// sessiontest session.
type fakeDriver struct {
	session *sessiontest.Session

	mu         sync.Mutex
	connects   int
	gotos      []string
	gotoOpts   []driver.GotoOptions
	gotoErrs   map[string]error
	connectErr error
}

func newFakeDriver() *fakeDriver {
	s := sessiontest.New()
	s.Handle("ServiceWorker.enable", func(json.RawMessage) (any, error) {
		s.Emit("ServiceWorker.workerRegistrationUpdated", map[string]any{"registrations": []any{}})
		s.Emit("ServiceWorker.workerVersionUpdated", map[string]any{"versions": []any{}})
		return nil, nil
	})
	return &fakeDriver{session: s, gotoErrs: make(map[string]error)}
}

// Connect implements driver.Driver.
func (d *fakeDriver) Connect(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connects++
	return d.connectErr
}

// Session implements driver.Driver.
func (d *fakeDriver) Session() session.Session {
	return d.session
}

// Goto implements driver.Driver.
func (d *fakeDriver) Goto(_ context.Context, url string, opts driver.GotoOptions) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gotos = append(d.gotos, url)
	d.gotoOpts = append(d.gotoOpts, opts)
	if err := d.gotoErrs[url]; err != nil {
		return "", err
	}
	return url, nil
}

// Close implements driver.Driver.
func (d *fakeDriver) Close() error { return nil }

func (d *fakeDriver) failGoto(url string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gotoErrs[url] = err
}

func (d *fakeDriver) visited() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.gotos))
	copy(out, d.gotos)
	return out
}

func (d *fakeDriver) loadsOf(url string) int {
	n := 0
	for _, u := range d.visited() {
		if u == url {
			n++
		}
	}
	return n
}

// phaseFunc overrides one lifecycle operation of a mockCollector.
type phaseFunc func(ctx context.Context, pc *gatherer.Context) (any, error)

// mockCollector is a test helper that implements gatherer.Collector and
// records every call.
type mockCollector struct {
	gatherer.Base

	mu    sync.Mutex
	calls map[model.Phase]int
	deps  map[model.Phase][]map[string]any
	funcs map[model.Phase]phaseFunc
}

func newCollector(name string, modes ...model.Mode) *mockCollector {
	return &mockCollector{
		Base: gatherer.Base{Info: gatherer.Meta{
			Name:           name,
			SupportedModes: model.NewModeSet(modes...),
		}},
		calls: make(map[model.Phase]int),
		deps:  make(map[model.Phase][]map[string]any),
		funcs: make(map[model.Phase]phaseFunc),
	}
}

// on sets the behavior of phase.
func (m *mockCollector) on(phase model.Phase, fn phaseFunc) *mockCollector {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs[phase] = fn
	return m
}

// returns makes phase resolve with v.
func (m *mockCollector) returns(phase model.Phase, v any) *mockCollector {
	return m.on(phase, func(context.Context, *gatherer.Context) (any, error) { return v, nil })
}

// fails makes phase reject with err.
func (m *mockCollector) fails(phase model.Phase, err error) *mockCollector {
	return m.on(phase, func(context.Context, *gatherer.Context) (any, error) { return nil, err })
}

func (m *mockCollector) called(phase model.Phase) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[phase]
}

func (m *mockCollector) dependenciesOf(phase model.Phase, call int) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if call >= len(m.deps[phase]) {
		return nil
	}
	return m.deps[phase][call]
}

func (m *mockCollector) call(ctx context.Context, phase model.Phase, pc *gatherer.Context) (any, error) {
	m.mu.Lock()
	m.calls[phase]++
	m.deps[phase] = append(m.deps[phase], pc.Dependencies)
	fn := m.funcs[phase]
	m.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(ctx, pc)
}

func (m *mockCollector) StartInstrumentation(ctx context.Context, pc *gatherer.Context) (any, error) {
	return m.call(ctx, model.PhaseStartInstrumentation, pc)
}

func (m *mockCollector) StartSensitiveInstrumentation(ctx context.Context, pc *gatherer.Context) (any, error) {
	return m.call(ctx, model.PhaseStartSensitiveInstrumentation, pc)
}

func (m *mockCollector) StopSensitiveInstrumentation(ctx context.Context, pc *gatherer.Context) (any, error) {
	return m.call(ctx, model.PhaseStopSensitiveInstrumentation, pc)
}

func (m *mockCollector) StopInstrumentation(ctx context.Context, pc *gatherer.Context) (any, error) {
	return m.call(ctx, model.PhaseStopInstrumentation, pc)
}

func (m *mockCollector) CollectArtifact(ctx context.Context, pc *gatherer.Context) (any, error) {
	return m.call(ctx, model.PhaseCollectArtifact, pc)
}

// kind is the value each mock collector resolves with at its terminal phase.
type kind struct {
	Type string `json:"type"`
}

// collectors are the three mode classes used throughout the tests.
type collectors struct {
	timespan   *mockCollector
	snapshot   *mockCollector
	navigation *mockCollector
}

// createNavigation returns a navigation with a Timespan, a Snapshot and a
// Navigation artifact, each resolving with its kind at its terminal phase.
func createNavigation() (NavigationDefn, collectors) {
	c := collectors{
		timespan: newCollector("Timespan", model.ModeTimespan, model.ModeNavigation).
			returns(model.PhaseStopInstrumentation, kind{Type: "timespan"}),
		snapshot: newCollector("Snapshot", model.ModeSnapshot, model.ModeNavigation).
			returns(model.PhaseCollectArtifact, kind{Type: "snapshot"}),
		navigation: newCollector("Navigation", model.ModeNavigation).
			returns(model.PhaseStopSensitiveInstrumentation, kind{Type: "navigation"}),
	}

	nav := NavigationDefn{
		ID: "default",
		Artifacts: []ArtifactDefn{
			{ID: "Timespan", Collector: c.timespan},
			{ID: "Snapshot", Collector: c.snapshot},
			{ID: "Navigation", Collector: c.navigation},
		},
	}
	return nav, c
}

// values strips results down to their values, failing on errors.
func values(artifacts model.Artifacts) map[string]any {
	out := make(map[string]any, len(artifacts))
	for id, r := range artifacts {
		if r.Failed() {
			out[id] = r.Err
			continue
		}
		out[id] = r.Value
	}
	return out
}

// newEventCollector returns a timespan collector that records event from its
// start phase until its terminal phase.
func newEventCollector(t *testing.T, name, event string) *collector.CommandCollector {
	t.Helper()

	c, err := collector.New(collector.Spec{
		Name:   name,
		Modes:  []string{"timespan", "navigation"},
		Events: []string{event},
	})
	if err != nil {
		t.Fatalf("collector.New() error = %v", err)
	}
	return c
}
