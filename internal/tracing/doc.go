// Package tracing wires OpenTelemetry into the gather engine.
//
// The engine records one span per run, navigation, phase and collector call.
// Spans go to the global tracer provider, which is a no-op unless the CLI
// creates a Provider (gather --trace), in which case they are written as JSON
// through the stdout exporter.
package tracing
