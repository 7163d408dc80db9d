package gather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/willoughbyrm/lighthouse/internal/driver"
	"github.com/willoughbyrm/lighthouse/internal/model"
	"github.com/willoughbyrm/lighthouse/internal/prepare"
)

const requestedURL = "http://example.com"

// TestRunnerSetup tests session setup before any navigation.
func TestRunnerSetup(t *testing.T) {
	t.Parallel()

	t.Run("connects and parks on the blank page", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		if err := New(d).Setup(context.Background(), requestedURL); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if d.connects != 1 {
			t.Errorf("Connect called %d times, want 1", d.connects)
		}
		if got := d.visited(); !slices.Equal(got, []string{driver.BlankPage}) {
			t.Errorf("visited = %v, want [about:blank]", got)
		}
	})

	t.Run("fails on a same-origin service worker client", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		d.session.Handle("ServiceWorker.enable", func(json.RawMessage) (any, error) {
			d.session.Emit("ServiceWorker.workerRegistrationUpdated", map[string]any{
				"registrations": []map[string]any{{"registrationId": "1", "scopeURL": "http://example.com/"}},
			})
			d.session.Emit("ServiceWorker.workerVersionUpdated", map[string]any{
				"versions": []map[string]any{{"registrationId": "1", "status": "activated", "controlledClients": []string{"other-tab"}}},
			})
			return nil, nil
		})

		err := New(d).Setup(context.Background(), requestedURL)
		var navErr *NavigationError
		if !errors.As(err, &navErr) || navErr.Step != "setup" {
			t.Fatalf("error = %v, want setup NavigationError", err)
		}
		if !errors.Is(err, prepare.ErrServiceWorkerConflict) {
			t.Errorf("error = %v, want ErrServiceWorkerConflict", err)
		}
	})

	t.Run("connection failure is a navigation fault", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		d.connectErr = errors.New("no browser")

		var navErr *NavigationError
		if err := New(d).Setup(context.Background(), requestedURL); !errors.As(err, &navErr) {
			t.Fatalf("error = %v, want NavigationError", err)
		}
		if len(d.visited()) != 0 {
			t.Error("navigated despite failed connection")
		}
	})
}

// TestRunnerSetupNavigation tests per-navigation page setup.
func TestRunnerSetupNavigation(t *testing.T) {
	t.Parallel()

	t.Run("loads the configured blank page", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		nav := NavigationDefn{ID: "default", BlankPage: "data:text/html;..."}
		if err := New(d).SetupNavigation(context.Background(), nav, requestedURL); err != nil {
			t.Fatal(err)
		}
		if got := d.visited(); !slices.Equal(got, []string{"data:text/html;..."}) {
			t.Errorf("visited = %v", got)
		}
	})

	t.Run("resets storage and cache", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		if err := New(d).SetupNavigation(context.Background(), NavigationDefn{ID: "default"}, requestedURL); err != nil {
			t.Fatal(err)
		}
		if len(d.session.CallsTo("Storage.clearDataForOrigin")) != 1 {
			t.Error("storage not cleared")
		}
		if len(d.session.CallsTo("Network.clearBrowserCache")) != 1 {
			t.Error("cache not cleared")
		}
	})

	t.Run("skips reset when disabled on the navigation or run", func(t *testing.T) {
		t.Parallel()

		settings := DefaultSettings()
		settings.DisableStorageReset = true

		for name, r := range map[string]struct {
			nav  NavigationDefn
			opts []Option
		}{
			"navigation": {nav: NavigationDefn{ID: "default", DisableStorageReset: true}},
			"run":        {nav: NavigationDefn{ID: "default"}, opts: []Option{WithSettings(settings)}},
		} {
			d := newFakeDriver()
			if err := New(d, r.opts...).SetupNavigation(context.Background(), r.nav, requestedURL); err != nil {
				t.Fatal(err)
			}
			if len(d.session.CallsTo("Storage.clearDataForOrigin")) != 0 {
				t.Errorf("%s: storage cleared despite reset being disabled", name)
			}
		}
	})

	t.Run("applies devtools throttling", func(t *testing.T) {
		t.Parallel()

		settings := DefaultSettings()
		settings.ThrottlingMethod = prepare.ThrottlingDevtools

		d := newFakeDriver()
		if err := New(d, WithSettings(settings)).SetupNavigation(context.Background(), NavigationDefn{ID: "default"}, requestedURL); err != nil {
			t.Fatal(err)
		}
		if len(d.session.CallsTo("Network.emulateNetworkConditions")) != 1 {
			t.Error("network throttling not applied")
		}

		d = newFakeDriver()
		nav := NavigationDefn{ID: "default", DisableThrottling: true}
		if err := New(d, WithSettings(settings)).SetupNavigation(context.Background(), nav, requestedURL); err != nil {
			t.Fatal(err)
		}
		if len(d.session.CallsTo("Network.emulateNetworkConditions")) != 0 {
			t.Error("throttling applied to a navigation that disables it")
		}
	})
}

// TestRunnerNavigate tests the page load step.
func TestRunnerNavigate(t *testing.T) {
	t.Parallel()

	t.Run("navigates the page and waits for load", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		finalURL, cleanup, err := New(d).Navigate(context.Background(), NavigationDefn{ID: "default"}, requestedURL)
		if err != nil {
			t.Fatal(err)
		}
		defer cleanup()

		if finalURL != requestedURL {
			t.Errorf("final URL = %q", finalURL)
		}
		if got := d.visited(); !slices.Equal(got, []string{requestedURL}) {
			t.Errorf("visited = %v", got)
		}
		if opts := d.gotoOpts[0]; !opts.WaitForLoad || opts.MaxWaitForLoad != DefaultMaxWaitForLoad {
			t.Errorf("goto options = %+v", opts)
		}
		if len(d.session.CallsTo("Runtime.enable")) != 1 {
			t.Error("runtime events not enabled")
		}
	})

	t.Run("disables throttling when finished", func(t *testing.T) {
		t.Parallel()

		settings := DefaultSettings()
		settings.ThrottlingMethod = prepare.ThrottlingDevtools

		d := newFakeDriver()
		_, cleanup, err := New(d, WithSettings(settings)).Navigate(context.Background(), NavigationDefn{ID: "default"}, requestedURL)
		if err != nil {
			t.Fatal(err)
		}
		defer cleanup()

		rates := d.session.CallsTo("Emulation.setCPUThrottlingRate")
		if len(rates) != 1 || string(rates[0].Params) != `{"rate":1}` {
			t.Errorf("CPU throttling calls = %v", rates)
		}
	})

	t.Run("captures page load errors", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		loadErr := errors.New("load timeout")
		d.failGoto(requestedURL, loadErr)

		_, _, err := New(d).Navigate(context.Background(), NavigationDefn{ID: "default"}, requestedURL)
		var navErr *NavigationError
		if !errors.As(err, &navErr) || navErr.Step != "navigate" || !errors.Is(err, loadErr) {
			t.Fatalf("error = %v, want navigate NavigationError wrapping load error", err)
		}
		if n := d.session.ListenerCount("Page.javascriptDialogOpening"); n != 0 {
			t.Errorf("dialog listener leaked after failed load: %d", n)
		}
	})
}

// TestRunnerNavigation tests a single end-to-end navigation.
func TestRunnerNavigation(t *testing.T) {
	t.Parallel()

	t.Run("collects timespan, snapshot and navigation artifacts", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		nav, _ := createNavigation()

		result, err := New(d).Navigation(context.Background(), nav, requestedURL)
		if err != nil {
			t.Fatalf("Navigation() error = %v", err)
		}

		want := map[string]any{
			"Navigation": kind{Type: "navigation"},
			"Timespan":   kind{Type: "timespan"},
			"Snapshot":   kind{Type: "snapshot"},
		}
		if got := values(result.Artifacts); !reflect.DeepEqual(got, want) {
			t.Errorf("artifacts = %v, want %v", got, want)
		}
		if d.loadsOf(requestedURL) != 1 {
			t.Errorf("requested URL loaded %d times, want 1", d.loadsOf(requestedURL))
		}
		if n := d.session.ListenerCount("Page.javascriptDialogOpening"); n != 0 {
			t.Errorf("dialog listener leaked: %d", n)
		}
	})

	t.Run("supports dependencies between phases", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		nav, c := createNavigation()
		nav.Artifacts[1].Dependencies = map[string]DependencyRef{"Accessibility": {ID: "Timespan"}}

		result, err := New(d).Navigation(context.Background(), nav, requestedURL)
		if err != nil {
			t.Fatal(err)
		}
		if got := result.Artifacts["Snapshot"].Value; got != (kind{Type: "snapshot"}) {
			t.Errorf("Snapshot = %v", got)
		}

		got := c.snapshot.dependenciesOf(model.PhaseCollectArtifact, 0)
		want := map[string]any{"Accessibility": kind{Type: "timespan"}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("dependencies = %v, want %v", got, want)
		}
	})

	t.Run("rejects a dependency on a later phase before touching the session", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		nav, c := createNavigation()
		// Navigation is terminal at stopSensitiveInstrumentation, Timespan only
		// at the later stopInstrumentation.
		nav.Artifacts[2].Dependencies = map[string]DependencyRef{"Accessibility": {ID: "Timespan"}}

		_, err := New(d).Navigation(context.Background(), nav, requestedURL)
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) || !errors.Is(err, ErrForwardDependency) {
			t.Fatalf("error = %v, want forward dependency ConfigError", err)
		}
		if cfgErr.Navigation != "default" || cfgErr.Artifact != "Navigation" {
			t.Errorf("ConfigError = %+v", cfgErr)
		}
		if len(d.visited()) != 0 || len(d.session.Calls()) != 0 {
			t.Error("session touched despite configuration error")
		}
		if c.timespan.called(model.PhaseStartInstrumentation) != 0 {
			t.Error("collector invoked despite configuration error")
		}
	})

	t.Run("passes through an error in dependencies", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		nav, c := createNavigation()
		depErr := errors.New("Error in dependency chain")
		c.timespan.fails(model.PhaseStartInstrumentation, depErr)
		nav.Artifacts[1].Dependencies = map[string]DependencyRef{"Accessibility": {ID: "Timespan"}}

		result, err := New(d).Navigation(context.Background(), nav, requestedURL)
		if err != nil {
			t.Fatal(err)
		}

		if result.Artifacts["Timespan"].Err != depErr {
			t.Errorf("Timespan = %+v, want the original error", result.Artifacts["Timespan"])
		}
		if result.Artifacts["Snapshot"].Err != depErr {
			t.Errorf("Snapshot = %+v, want the inherited error", result.Artifacts["Snapshot"])
		}
		if result.Artifacts["Navigation"].Value != (kind{Type: "navigation"}) {
			t.Errorf("Navigation = %+v", result.Artifacts["Navigation"])
		}
		if c.snapshot.called(model.PhaseCollectArtifact) != 0 {
			t.Error("dependent collector invoked despite failed dependency")
		}
		if c.timespan.called(model.PhaseStopInstrumentation) != 0 {
			t.Error("stopInstrumentation invoked despite failed startInstrumentation")
		}
	})

	t.Run("passes through an error in startSensitiveInstrumentation", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		nav, c := createNavigation()
		sensitiveErr := errors.New("Error in startSensitiveInstrumentation")
		c.navigation.fails(model.PhaseStartSensitiveInstrumentation, sensitiveErr)

		result, err := New(d).Navigation(context.Background(), nav, requestedURL)
		if err != nil {
			t.Fatal(err)
		}

		want := map[string]any{
			"Navigation": sensitiveErr,
			"Timespan":   kind{Type: "timespan"},
			"Snapshot":   kind{Type: "snapshot"},
		}
		if got := values(result.Artifacts); !reflect.DeepEqual(got, want) {
			t.Errorf("artifacts = %v, want %v", got, want)
		}
		if c.navigation.called(model.PhaseStopSensitiveInstrumentation) != 0 {
			t.Error("stopSensitiveInstrumentation invoked despite failed start")
		}
	})

	t.Run("passes through an error in startInstrumentation", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		nav, c := createNavigation()
		startErr := errors.New("Error in startInstrumentation")
		c.timespan.fails(model.PhaseStartInstrumentation, startErr)

		result, err := New(d).Navigation(context.Background(), nav, requestedURL)
		if err != nil {
			t.Fatal(err)
		}

		want := map[string]any{
			"Navigation": kind{Type: "navigation"},
			"Timespan":   startErr,
			"Snapshot":   kind{Type: "snapshot"},
		}
		if got := values(result.Artifacts); !reflect.DeepEqual(got, want) {
			t.Errorf("artifacts = %v, want %v", got, want)
		}
	})

	t.Run("navigation-only artifact is gated by startSensitiveInstrumentation only", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		nav, c := createNavigation()
		c.navigation.fails(model.PhaseStartInstrumentation, errors.New("start failed"))

		result, err := New(d).Navigation(context.Background(), nav, requestedURL)
		if err != nil {
			t.Fatal(err)
		}
		if got := result.Artifacts["Navigation"].Value; got != (kind{Type: "navigation"}) {
			t.Errorf("Navigation = %+v, want its stopSensitiveInstrumentation value", result.Artifacts["Navigation"])
		}
		if c.navigation.called(model.PhaseStopSensitiveInstrumentation) != 1 {
			t.Error("stopSensitiveInstrumentation not invoked")
		}
	})

	t.Run("collectArtifact has no prior phase", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		nav, c := createNavigation()
		c.snapshot.fails(model.PhaseStartInstrumentation, errors.New("start failed"))
		c.snapshot.fails(model.PhaseStartSensitiveInstrumentation, errors.New("sensitive start failed"))

		result, err := New(d).Navigation(context.Background(), nav, requestedURL)
		if err != nil {
			t.Fatal(err)
		}
		if c.snapshot.called(model.PhaseCollectArtifact) != 1 {
			t.Errorf("collectArtifact calls = %d, want 1", c.snapshot.called(model.PhaseCollectArtifact))
		}
		if got := result.Artifacts["Snapshot"].Value; got != (kind{Type: "snapshot"}) {
			t.Errorf("Snapshot = %+v", result.Artifacts["Snapshot"])
		}
	})

	t.Run("produces one entry per artifact", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		var artifacts []ArtifactDefn
		for i := range 12 {
			modes := [][]model.Mode{
				{model.ModeNavigation},
				{model.ModeTimespan, model.ModeNavigation},
				{model.ModeSnapshot, model.ModeNavigation},
				{model.ModeSnapshot},
			}[i%4]
			c := newCollector(fmt.Sprintf("C%d", i), modes...)
			if i%3 == 0 {
				for _, p := range model.Phases() {
					c.fails(p, fmt.Errorf("collector %d failed at %s", i, p))
				}
			}
			artifacts = append(artifacts, ArtifactDefn{ID: fmt.Sprintf("A%d", i), Collector: c})
		}

		result, err := New(d).Navigation(context.Background(), NavigationDefn{ID: "default", Artifacts: artifacts}, requestedURL)
		if err != nil {
			t.Fatal(err)
		}
		if len(result.Artifacts) != len(artifacts) {
			t.Fatalf("got %d artifacts, want %d", len(result.Artifacts), len(artifacts))
		}
		for _, a := range artifacts {
			if _, ok := result.Artifacts[a.ID]; !ok {
				t.Errorf("artifact %s missing", a.ID)
			}
		}
		if got := len(result.Artifacts.Failed()); got != 4 {
			t.Errorf("failed artifacts = %d, want 4", got)
		}
	})

	t.Run("page load failure is a navigation fault", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		d.failGoto(requestedURL, errors.New("net::ERR_NAME_NOT_RESOLVED"))
		nav, c := createNavigation()

		result, err := New(d).Navigation(context.Background(), nav, requestedURL)
		var navErr *NavigationError
		if !errors.As(err, &navErr) {
			t.Fatalf("error = %v, want NavigationError", err)
		}
		if result != nil {
			t.Errorf("artifacts returned with a navigation fault: %v", result)
		}
		if c.timespan.called(model.PhaseStopInstrumentation) != 0 {
			t.Error("stop phases ran after a failed load")
		}
	})

	t.Run("releases event subscriptions when the terminal phase is skipped", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		depErr := errors.New("dep broke")
		dep := newCollector("Dep", model.ModeNavigation).fails(model.PhaseStopSensitiveInstrumentation, depErr)
		console := newEventCollector(t, "Console", "Log.entryAdded")
		nav := NavigationDefn{ID: "default", Artifacts: []ArtifactDefn{
			{ID: "Dep", Collector: dep},
			{ID: "Console", Collector: console, Dependencies: map[string]DependencyRef{"Dep": {ID: "Dep"}}},
		}}

		result, err := New(d).Navigation(context.Background(), nav, requestedURL)
		if err != nil {
			t.Fatal(err)
		}
		if result.Artifacts["Console"].Err != depErr {
			t.Errorf("Console = %+v, want the dependency error", result.Artifacts["Console"])
		}
		if n := d.session.ListenerCount("Log.entryAdded"); n != 0 {
			t.Errorf("Log.entryAdded listeners after the navigation = %d, want 0", n)
		}
	})

	t.Run("releases event subscriptions when the page load fails", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		d.failGoto(requestedURL, errors.New("net::ERR_CONNECTION_RESET"))
		console := newEventCollector(t, "Console", "Log.entryAdded")
		nav := NavigationDefn{ID: "default", Artifacts: []ArtifactDefn{{ID: "Console", Collector: console}}}

		_, err := New(d).Navigation(context.Background(), nav, requestedURL)
		var navErr *NavigationError
		if !errors.As(err, &navErr) {
			t.Fatalf("error = %v, want NavigationError", err)
		}
		if n := d.session.ListenerCount("Log.entryAdded"); n != 0 {
			t.Errorf("Log.entryAdded listeners after the fault = %d, want 0", n)
		}
	})

	t.Run("ambiguous modes are a configuration error", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		c := newCollector("Both", model.ModeTimespan, model.ModeSnapshot)
		nav := NavigationDefn{ID: "default", Artifacts: []ArtifactDefn{{ID: "Both", Collector: c}}}

		_, err := New(d).Navigation(context.Background(), nav, requestedURL)
		if !errors.Is(err, model.ErrAmbiguousModes) {
			t.Fatalf("error = %v, want ErrAmbiguousModes", err)
		}
	})
}

// TestRunnerNavigations tests the multi-navigation coordinator.
func TestRunnerNavigations(t *testing.T) {
	t.Parallel()

	t.Run("fails without navigations", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		for _, navs := range [][]NavigationDefn{nil, {}} {
			_, err := New(d).Navigations(context.Background(), navs, requestedURL)
			if !errors.Is(err, ErrNoNavigations) {
				t.Errorf("error = %v, want ErrNoNavigations", err)
			}
		}
		if len(d.visited()) != 0 {
			t.Error("navigated without navigations")
		}
	})

	t.Run("navigates as many times as there are navigations", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		navs := []NavigationDefn{{ID: "default"}, {ID: "second"}, {ID: "third"}, {ID: "fourth"}}

		result, err := New(d).Navigations(context.Background(), navs, requestedURL)
		if err != nil {
			t.Fatal(err)
		}
		if n := d.loadsOf(requestedURL); n != 4 {
			t.Errorf("requested URL loaded %d times, want 4", n)
		}
		if !slices.Equal(result.Completed, []string{"default", "second", "third", "fourth"}) {
			t.Errorf("completed = %v", result.Completed)
		}
	})

	t.Run("merges artifacts between navigations", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		fontSize := newCollector("FontSize", model.ModeSnapshot).fails(model.PhaseCollectArtifact, errors.New("no fonts"))
		console := newCollector("ConsoleMessages", model.ModeTimespan).returns(model.PhaseStopInstrumentation, "messages")
		navs := []NavigationDefn{
			{ID: "default", Artifacts: []ArtifactDefn{{ID: "FontSize", Collector: fontSize}}},
			{ID: "second", Artifacts: []ArtifactDefn{{ID: "ConsoleMessages", Collector: console}}},
		}

		result, err := New(d).Navigations(context.Background(), navs, requestedURL)
		if err != nil {
			t.Fatal(err)
		}
		if got := result.Artifacts.IDs(); !slices.Equal(got, []string{"ConsoleMessages", "FontSize"}) {
			t.Errorf("artifact ids = %v", got)
		}
	})

	t.Run("later navigation overwrites the same id", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		first := newCollector("X", model.ModeSnapshot).returns(model.PhaseCollectArtifact, "first")
		second := newCollector("X", model.ModeSnapshot).returns(model.PhaseCollectArtifact, "second")
		navs := []NavigationDefn{
			{ID: "default", Artifacts: []ArtifactDefn{{ID: "X", Collector: first}}},
			{ID: "second", Artifacts: []ArtifactDefn{{ID: "X", Collector: second}}},
		}

		result, err := New(d).Navigations(context.Background(), navs, requestedURL)
		if err != nil {
			t.Fatal(err)
		}
		if got := result.Artifacts["X"].Value; got != "second" {
			t.Errorf("X = %v, want second", got)
		}
	})

	t.Run("dependencies do not cross navigations", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		first := newCollector("A", model.ModeSnapshot).returns(model.PhaseCollectArtifact, "a")
		second := newCollector("B", model.ModeSnapshot).returns(model.PhaseCollectArtifact, "b")
		navs := []NavigationDefn{
			{ID: "default", Artifacts: []ArtifactDefn{{ID: "A", Collector: first}}},
			{ID: "second", Artifacts: []ArtifactDefn{
				{ID: "B", Collector: second, Dependencies: map[string]DependencyRef{"Prev": {ID: "A"}}},
			}},
		}

		_, err := New(d).Navigations(context.Background(), navs, requestedURL)
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) || !errors.Is(err, ErrUnknownDependency) {
			t.Fatalf("error = %v, want unknown dependency ConfigError", err)
		}
		if cfgErr.Navigation != "second" || cfgErr.Artifact != "B" {
			t.Errorf("ConfigError = %+v", cfgErr)
		}
		if len(d.visited()) != 0 {
			t.Error("navigated despite configuration error")
		}
	})

	t.Run("stops at the first fault and keeps earlier artifacts", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		first := newCollector("A", model.ModeSnapshot).returns(model.PhaseCollectArtifact, "a")
		second := newCollector("B", model.ModeSnapshot).returns(model.PhaseCollectArtifact, "b")
		third := newCollector("C", model.ModeSnapshot).returns(model.PhaseCollectArtifact, "c")
		navs := []NavigationDefn{
			{ID: "default", Artifacts: []ArtifactDefn{{ID: "A", Collector: first}}},
			{ID: "broken", BlankPage: "data:text/html,broken", Artifacts: []ArtifactDefn{{ID: "B", Collector: second}}},
			{ID: "third", Artifacts: []ArtifactDefn{{ID: "C", Collector: third}}},
		}
		d.failGoto("data:text/html,broken", errors.New("renderer crashed"))

		result, err := New(d).Navigations(context.Background(), navs, requestedURL)
		var navErr *NavigationError
		if !errors.As(err, &navErr) || navErr.Navigation != "broken" || navErr.Step != "setupNavigation" {
			t.Fatalf("error = %v, want setupNavigation fault of broken", err)
		}
		if got := result.Artifacts.IDs(); !slices.Equal(got, []string{"A"}) {
			t.Errorf("artifact ids = %v, want [A]", got)
		}
		if third.called(model.PhaseCollectArtifact) != 0 {
			t.Error("navigation after the fault ran")
		}
	})

	t.Run("validates every navigation before the first runs", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		ok := newCollector("OK", model.ModeSnapshot)
		navs := []NavigationDefn{
			{ID: "default", Artifacts: []ArtifactDefn{{ID: "OK", Collector: ok}}},
			{ID: "second", Artifacts: []ArtifactDefn{{ID: "Bad", Collector: ok, Dependencies: map[string]DependencyRef{"x": {ID: "Nope"}}}}},
		}

		_, err := New(d).Navigations(context.Background(), navs, requestedURL)
		if !errors.Is(err, ErrUnknownDependency) {
			t.Fatalf("error = %v, want ErrUnknownDependency", err)
		}
		if ok.called(model.PhaseCollectArtifact) != 0 || len(d.visited()) != 0 {
			t.Error("navigation ran before validation completed")
		}
	})
}

// TestRunnerGather tests the full run entry point.
func TestRunnerGather(t *testing.T) {
	t.Parallel()

	t.Run("produces a run", func(t *testing.T) {
		t.Parallel()

		exporter := tracetest.NewInMemoryExporter()
		provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

		d := newFakeDriver()
		nav, _ := createNavigation()

		run, err := New(d, WithTracer(provider.Tracer("test"))).Gather(context.Background(), []NavigationDefn{nav}, requestedURL)
		if err != nil {
			t.Fatalf("Gather() error = %v", err)
		}
		if run.ID == "" || run.RequestedURL != requestedURL || run.FinalURL != requestedURL {
			t.Errorf("run = %+v", run)
		}
		if run.Faulted() || run.Succeeded() != 3 {
			t.Errorf("faulted = %v, succeeded = %d", run.Faulted(), run.Succeeded())
		}
		if !slices.Equal(run.Navigations, []string{"default"}) {
			t.Errorf("navigations = %v", run.Navigations)
		}
		// Setup goes to the blank page first, then the navigation does again.
		if got := d.visited(); !slices.Equal(got, []string{driver.BlankPage, driver.BlankPage, requestedURL}) {
			t.Errorf("visited = %v", got)
		}

		names := make(map[string]bool)
		for _, s := range exporter.GetSpans() {
			names[s.Name] = true
		}
		for _, want := range []string{"gather", "setup", "navigation default", "phase collectArtifact", "collector Snapshot"} {
			if !names[want] {
				t.Errorf("span %q not recorded", want)
			}
		}
	})

	t.Run("records a fault", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		d.failGoto(requestedURL, errors.New("load timeout"))
		nav, _ := createNavigation()

		run, err := New(d).Gather(context.Background(), []NavigationDefn{nav}, requestedURL)
		if err == nil {
			t.Fatal("expected error")
		}
		if run == nil || !run.Faulted() || len(run.Artifacts) != 0 {
			t.Errorf("run = %+v", run)
		}
	})

	t.Run("configuration error returns no run", func(t *testing.T) {
		t.Parallel()

		d := newFakeDriver()
		run, err := New(d).Gather(context.Background(), nil, requestedURL)
		if !errors.Is(err, ErrNoNavigations) || run != nil {
			t.Errorf("got (%v, %v)", run, err)
		}
		if d.connects != 0 {
			t.Error("connected despite configuration error")
		}
	})
}

// TestValidateNavigation tests definition validation.
func TestValidateNavigation(t *testing.T) {
	t.Parallel()

	snapshot := newCollector("S", model.ModeSnapshot)
	timespan := newCollector("T", model.ModeTimespan)
	navOnly := newCollector("N", model.ModeNavigation)
	none := newCollector("None")

	tests := []struct {
		name      string
		artifacts []ArtifactDefn
		wantErr   error
	}{
		{
			name:      "empty navigation",
			artifacts: nil,
		},
		{
			name: "earlier phase dependency",
			artifacts: []ArtifactDefn{
				{ID: "S", Collector: snapshot, Dependencies: map[string]DependencyRef{"t": {ID: "T"}}},
				{ID: "T", Collector: timespan},
			},
		},
		{
			name: "earlier position in the same phase",
			artifacts: []ArtifactDefn{
				{ID: "A", Collector: snapshot},
				{ID: "B", Collector: snapshot, Dependencies: map[string]DependencyRef{"a": {ID: "A"}}},
			},
		},
		{
			name: "later position in the same phase",
			artifacts: []ArtifactDefn{
				{ID: "B", Collector: snapshot, Dependencies: map[string]DependencyRef{"a": {ID: "A"}}},
				{ID: "A", Collector: snapshot},
			},
			wantErr: ErrForwardDependency,
		},
		{
			name: "later phase",
			artifacts: []ArtifactDefn{
				{ID: "N", Collector: navOnly, Dependencies: map[string]DependencyRef{"t": {ID: "T"}}},
				{ID: "T", Collector: timespan},
			},
			wantErr: ErrForwardDependency,
		},
		{
			name: "self dependency",
			artifacts: []ArtifactDefn{
				{ID: "A", Collector: snapshot, Dependencies: map[string]DependencyRef{"a": {ID: "A"}}},
			},
			wantErr: ErrForwardDependency,
		},
		{
			name: "unknown dependency",
			artifacts: []ArtifactDefn{
				{ID: "A", Collector: snapshot, Dependencies: map[string]DependencyRef{"x": {ID: "X"}}},
			},
			wantErr: ErrUnknownDependency,
		},
		{
			name: "duplicate id",
			artifacts: []ArtifactDefn{
				{ID: "A", Collector: snapshot},
				{ID: "A", Collector: timespan},
			},
			wantErr: ErrDuplicateArtifact,
		},
		{
			name:      "missing id",
			artifacts: []ArtifactDefn{{Collector: snapshot}},
			wantErr:   ErrMissingArtifactID,
		},
		{
			name:      "missing collector",
			artifacts: []ArtifactDefn{{ID: "A"}},
			wantErr:   ErrMissingCollector,
		},
		{
			name:      "no modes",
			artifacts: []ArtifactDefn{{ID: "A", Collector: none}},
			wantErr:   model.ErrNoModes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateNavigation(NavigationDefn{ID: "default", Artifacts: tt.artifacts})
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Navigation != "default" {
				t.Errorf("expected ConfigError for navigation default, got %#v", err)
			}
		})
	}

	t.Run("navigation set", func(t *testing.T) {
		t.Parallel()

		if err := ValidateNavigations([]NavigationDefn{{ID: "a"}, {ID: "a"}}); !errors.Is(err, ErrDuplicateNavigation) {
			t.Errorf("duplicate: error = %v", err)
		}
		if err := ValidateNavigations([]NavigationDefn{{}}); !errors.Is(err, ErrMissingNavigationID) {
			t.Errorf("missing id: error = %v", err)
		}
	})
}
