// Package gatherer defines the collector capability consumed by the gather
// engine.
//
// A collector declares which modes it supports and implements five lifecycle
// operations. The engine calls the operations that apply to the collector's
// modes in a fixed order and records the result of exactly one of them, the
// terminal phase, as the artifact value (see model.TerminalPhase).
package gatherer
