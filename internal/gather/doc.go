// Package gather is the navigation orchestration engine. It sequences page
// loads through the fixed collector lifecycle, resolves dependencies between
// artifacts, isolates collector failures and merges artifacts across
// navigations.
//
// # Overview
//
// A run is a list of NavigationDefn values sharing one requested URL.
// Runner.Gather validates them, sets the session up once and hands them to
// Runner.Navigations, which runs each navigation strictly in order through
// Runner.Navigation and unions the results. Within a navigation the phases
// run in this order:
//
//  1. startInstrumentation           (timespan or navigation collectors)
//  2. startSensitiveInstrumentation  (navigation collectors)
//  3. navigate                       (not a collector phase: page load)
//  4. stopSensitiveInstrumentation   (navigation collectors)
//  5. stopInstrumentation            (timespan collectors)
//  6. collectArtifact                (snapshot collectors)
//
// Runner.CollectPhaseArtifacts runs one phase for every artifact at once and
// writes the settled results to the navigation's ArtifactState.
//
// # Failure model
//
// Collector failures, timeouts and panics are values: they are stored as the
// artifact's result and inherited, unchanged, by any later phase or
// dependent artifact instead of invoking its collector. A failed page load
// or session setup is a *NavigationError that ends the run. Invalid
// definitions are a *ConfigError reported before the session is touched.
package gather
