// Package main provides the entry point for the lighthouse CLI.
//
// lighthouse drives a Chrome instance through one or more navigations of a
// URL and runs the configured collectors at each lifecycle phase, producing
// a run of artifacts.
//
// Usage:
//
//	lighthouse gather <url>
//	lighthouse compare <url>
//
// See --help for all available options.
package main

// main is the entry point for lighthouse.
func main() {
	Execute()
}
