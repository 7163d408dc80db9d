// Package model defines the core data structures shared by the gather engine.
//
// This package contains the following main types:
//   - Mode and ModeSet: the gather modes a collector supports
//   - Phase: the five collector lifecycle operations, in execution order
//   - Result: a settled value-or-error for one collector operation
//   - Artifacts: the merged artifact map of a navigation or run
//   - Run: one gather run against a requested URL
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The gather engine, collectors, storage and report writers all
// use these types, so centralizing them prevents import cycles.
//
// TerminalPhase is kept here as a pure function so that the mapping from
// supported modes to the phase that produces an artifact can be tested in
// isolation from any scheduling.
package model
