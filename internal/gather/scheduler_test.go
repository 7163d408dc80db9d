package gather

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/willoughbyrm/lighthouse/internal/gatherer"
	"github.com/willoughbyrm/lighthouse/internal/model"
)

func phaseContext(d *fakeDriver, nav NavigationDefn) NavigationContext {
	return NavigationContext{
		Session:      d.session,
		Navigation:   nav,
		RequestedURL: "http://example.com",
	}
}

// TestCollectPhaseArtifacts tests one phase across collectors of every mode class.
func TestCollectPhaseArtifacts(t *testing.T) {
	t.Parallel()

	t.Run("runs the navigation phase of navigation collectors", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		nav, c := createNavigation()
		state := NewArtifactState()

		err := New(d).CollectPhaseArtifacts(context.Background(), phaseContext(d, nav), model.PhaseStopSensitiveInstrumentation, state)
		if err != nil {
			t.Fatalf("CollectPhaseArtifacts() error = %v", err)
		}

		got := values(state.Phase(model.PhaseStopSensitiveInstrumentation))
		want := map[string]any{"Navigation": kind{Type: "navigation"}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("phase map = %v, want %v", got, want)
		}
		// Invoked for their side effects, but no artifact was produced.
		for name, m := range map[string]*mockCollector{"navigation": c.navigation, "timespan": c.timespan, "snapshot": c.snapshot} {
			if m.called(model.PhaseStopSensitiveInstrumentation) != 1 {
				t.Errorf("%s collector: stopSensitiveInstrumentation not called", name)
			}
		}
	})

	t.Run("runs the snapshot phase of snapshot collectors only", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		nav, c := createNavigation()
		state := NewArtifactState()

		if err := New(d).CollectPhaseArtifacts(context.Background(), phaseContext(d, nav), model.PhaseCollectArtifact, state); err != nil {
			t.Fatalf("error = %v", err)
		}

		got := values(state.Phase(model.PhaseCollectArtifact))
		want := map[string]any{"Snapshot": kind{Type: "snapshot"}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("phase map = %v, want %v", got, want)
		}
		if c.snapshot.called(model.PhaseCollectArtifact) != 1 {
			t.Error("snapshot collector not called")
		}
		if c.navigation.called(model.PhaseCollectArtifact) != 0 || c.timespan.called(model.PhaseCollectArtifact) != 0 {
			t.Error("collectArtifact called on a collector without snapshot mode")
		}
	})

	t.Run("runs the timespan phase of timespan collectors only", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		nav, c := createNavigation()
		state := NewArtifactState()

		if err := New(d).CollectPhaseArtifacts(context.Background(), phaseContext(d, nav), model.PhaseStopInstrumentation, state); err != nil {
			t.Fatalf("error = %v", err)
		}

		got := values(state.Phase(model.PhaseStopInstrumentation))
		want := map[string]any{"Timespan": kind{Type: "timespan"}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("phase map = %v, want %v", got, want)
		}
		if c.snapshot.called(model.PhaseStopInstrumentation) != 0 || c.navigation.called(model.PhaseStopInstrumentation) != 0 {
			t.Error("stopInstrumentation called on a collector without timespan mode")
		}
	})

	t.Run("start phases record every invoked artifact", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		nav, _ := createNavigation()
		state := NewArtifactState()
		r := New(d)

		if err := r.CollectPhaseArtifacts(context.Background(), phaseContext(d, nav), model.PhaseStartInstrumentation, state); err != nil {
			t.Fatal(err)
		}
		if got := state.Phase(model.PhaseStartInstrumentation).IDs(); !reflect.DeepEqual(got, []string{"Navigation", "Snapshot", "Timespan"}) {
			t.Errorf("startInstrumentation ids = %v", got)
		}
	})

	t.Run("passes dependencies from a prior phase", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		_, c := createNavigation()
		images := []map[string]string{{"src": "https://example.com/image.jpg"}}

		state := NewArtifactState()
		state.Record(model.PhaseStopInstrumentation, "Dependency", model.OK(images))

		nav := NavigationDefn{ID: "default", Artifacts: []ArtifactDefn{
			{ID: "Snapshot", Collector: c.snapshot, Dependencies: map[string]DependencyRef{"ImageElements": {ID: "Dependency"}}},
		}}
		if err := New(d).CollectPhaseArtifacts(context.Background(), phaseContext(d, nav), model.PhaseCollectArtifact, state); err != nil {
			t.Fatalf("error = %v", err)
		}

		got := c.snapshot.dependenciesOf(model.PhaseCollectArtifact, 0)
		want := map[string]any{"ImageElements": images}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("dependencies = %v, want %v", got, want)
		}
	})

	t.Run("passes dependencies within the same phase", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		_, c := createNavigation()
		nav := NavigationDefn{ID: "default", Artifacts: []ArtifactDefn{
			{ID: "Dependency", Collector: c.snapshot},
			{ID: "Snapshot", Collector: c.snapshot, Dependencies: map[string]DependencyRef{"ImageElements": {ID: "Dependency"}}},
		}}
		state := NewArtifactState()

		if err := New(d).CollectPhaseArtifacts(context.Background(), phaseContext(d, nav), model.PhaseCollectArtifact, state); err != nil {
			t.Fatalf("error = %v", err)
		}

		if got := state.Phase(model.PhaseCollectArtifact).IDs(); !reflect.DeepEqual(got, []string{"Dependency", "Snapshot"}) {
			t.Errorf("phase ids = %v", got)
		}
		if n := c.snapshot.called(model.PhaseCollectArtifact); n != 2 {
			t.Fatalf("collectArtifact called %d times, want 2", n)
		}
		// The dependent waits for its dependency, so its call is the second.
		got := c.snapshot.dependenciesOf(model.PhaseCollectArtifact, 1)
		want := map[string]any{"ImageElements": kind{Type: "snapshot"}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("dependencies = %v, want %v", got, want)
		}
	})

	t.Run("dependent waits for a slow same-phase dependency", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		slow := newCollector("Slow", model.ModeSnapshot).on(model.PhaseCollectArtifact,
			func(context.Context, *gatherer.Context) (any, error) {
				time.Sleep(30 * time.Millisecond)
				return "slow value", nil
			})
		dependent := newCollector("Dependent", model.ModeSnapshot).on(model.PhaseCollectArtifact,
			func(_ context.Context, pc *gatherer.Context) (any, error) {
				return pc.Dependencies["Slow"], nil
			})
		nav := NavigationDefn{ID: "default", Artifacts: []ArtifactDefn{
			{ID: "Slow", Collector: slow},
			{ID: "Dependent", Collector: dependent, Dependencies: map[string]DependencyRef{"Slow": {ID: "Slow"}}},
		}}
		state := NewArtifactState()

		if err := New(d).CollectPhaseArtifacts(context.Background(), phaseContext(d, nav), model.PhaseCollectArtifact, state); err != nil {
			t.Fatal(err)
		}
		if r, _ := state.Lookup(model.PhaseCollectArtifact, "Dependent"); r.Value != "slow value" {
			t.Errorf("Dependent = %v, want slow value", r.Value)
		}
	})

	t.Run("carries a prior phase error without invoking", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		nav, c := createNavigation()
		startErr := errors.New("startInstrumentation rejection")

		state := NewArtifactState()
		state.Record(model.PhaseStartInstrumentation, "Timespan", model.Fail(startErr))

		if err := New(d).CollectPhaseArtifacts(context.Background(), phaseContext(d, nav), model.PhaseStopInstrumentation, state); err != nil {
			t.Fatal(err)
		}

		r, ok := state.Lookup(model.PhaseStopInstrumentation, "Timespan")
		if !ok || r.Err != startErr {
			t.Errorf("Timespan = %+v, want the original error", r)
		}
		if c.timespan.called(model.PhaseStopInstrumentation) != 0 {
			t.Error("stopInstrumentation invoked despite failed startInstrumentation")
		}
		if c.snapshot.called(model.PhaseStopInstrumentation) != 0 {
			t.Error("stopInstrumentation invoked on snapshot collector")
		}
	})

	t.Run("non-terminal failures are not recorded", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		nav, c := createNavigation()
		c.timespan.fails(model.PhaseStopSensitiveInstrumentation, errors.New("side effect failed"))
		state := NewArtifactState()

		if err := New(d).CollectPhaseArtifacts(context.Background(), phaseContext(d, nav), model.PhaseStopSensitiveInstrumentation, state); err != nil {
			t.Fatal(err)
		}
		if _, ok := state.Lookup(model.PhaseStopSensitiveInstrumentation, "Timespan"); ok {
			t.Error("non-terminal result was recorded")
		}
	})

	t.Run("unknown dependency is a configuration error", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		_, c := createNavigation()
		nav := NavigationDefn{ID: "default", Artifacts: []ArtifactDefn{
			{ID: "Snapshot", Collector: c.snapshot, Dependencies: map[string]DependencyRef{"X": {ID: "Missing"}}},
		}}

		err := New(d).CollectPhaseArtifacts(context.Background(), phaseContext(d, nav), model.PhaseCollectArtifact, NewArtifactState())
		if !errors.Is(err, ErrUnknownDependency) {
			t.Fatalf("error = %v, want ErrUnknownDependency", err)
		}
		if c.snapshot.called(model.PhaseCollectArtifact) != 0 {
			t.Error("collector invoked despite configuration error")
		}
	})

	t.Run("every artifact settles when siblings fail", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		a := newCollector("A", model.ModeSnapshot).fails(model.PhaseCollectArtifact, errors.New("a failed"))
		b := newCollector("B", model.ModeSnapshot).returns(model.PhaseCollectArtifact, "b")
		nav := NavigationDefn{ID: "default", Artifacts: []ArtifactDefn{
			{ID: "A", Collector: a},
			{ID: "B", Collector: b},
		}}
		state := NewArtifactState()

		if err := New(d).CollectPhaseArtifacts(context.Background(), phaseContext(d, nav), model.PhaseCollectArtifact, state); err != nil {
			t.Fatal(err)
		}
		got := state.Phase(model.PhaseCollectArtifact)
		if !got["A"].Failed() || got["B"].Value != "b" {
			t.Errorf("phase map = %v", got)
		}
	})
}

// TestCollectorIsolation tests timeouts and panics.
func TestCollectorIsolation(t *testing.T) {
	t.Parallel()

	t.Run("timeout fails only the slow collector", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		t.Cleanup(func() { close(release) })

		d := newFakeDriver()
		stuck := newCollector("Stuck", model.ModeSnapshot).on(model.PhaseCollectArtifact,
			func(context.Context, *gatherer.Context) (any, error) {
				<-release
				return nil, nil
			})
		fine := newCollector("Fine", model.ModeSnapshot).returns(model.PhaseCollectArtifact, "ok")
		nav := NavigationDefn{ID: "default", Artifacts: []ArtifactDefn{
			{ID: "Stuck", Collector: stuck},
			{ID: "Fine", Collector: fine},
		}}
		state := NewArtifactState()

		r := New(d, WithCollectorTimeout(20*time.Millisecond))
		if err := r.CollectPhaseArtifacts(context.Background(), phaseContext(d, nav), model.PhaseCollectArtifact, state); err != nil {
			t.Fatal(err)
		}

		got := state.Phase(model.PhaseCollectArtifact)
		if !errors.Is(got["Stuck"].Err, ErrCollectorTimeout) {
			t.Errorf("Stuck = %+v, want ErrCollectorTimeout", got["Stuck"])
		}
		if got["Fine"].Value != "ok" {
			t.Errorf("Fine = %+v", got["Fine"])
		}
	})

	t.Run("panic becomes the artifact error", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		bad := newCollector("Bad", model.ModeSnapshot).on(model.PhaseCollectArtifact,
			func(context.Context, *gatherer.Context) (any, error) {
				panic("nil map write")
			})
		nav := NavigationDefn{ID: "default", Artifacts: []ArtifactDefn{{ID: "Bad", Collector: bad}}}
		state := NewArtifactState()

		if err := New(d).CollectPhaseArtifacts(context.Background(), phaseContext(d, nav), model.PhaseCollectArtifact, state); err != nil {
			t.Fatal(err)
		}
		if r, _ := state.Lookup(model.PhaseCollectArtifact, "Bad"); !errors.Is(r.Err, ErrCollectorPanic) {
			t.Errorf("Bad = %+v, want ErrCollectorPanic", r)
		}
	})
}
