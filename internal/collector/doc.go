// Package collector provides the collectors the command line can run
// without writing Go code.
//
// A CommandCollector is described by a Spec, usually loaded from the gather
// config file: the modes it supports, an optional protocol command for any
// lifecycle phase and a list of protocol events to record. Its artifact is an
// Output holding the terminal phase's command result and the events seen
// between its first start phase and its terminal phase.
//
// Registry maps collector names to collectors so that navigation
// definitions can refer to them by name.
package collector
