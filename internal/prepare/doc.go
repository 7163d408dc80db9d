// Package prepare contains the session setup helpers the navigation runner
// applies before and around each page load.
//
// Helpers are plain functions over session.Session. Those that install event
// subscriptions return the unsubscribe function so the caller can tear them
// down when the navigation ends.
//
// Design decision: Event-driven helpers (service worker inspection, dialog
// dismissal) block on buffered channels fed by non-blocking handlers instead
// of issuing commands from inside the handler. The driver dispatches events
// on a single goroutine, and a handler that waited on a command response
// would deadlock it.
package prepare
