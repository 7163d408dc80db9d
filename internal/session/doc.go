// Package session defines the facade the gather engine uses to talk to a
// remote browsing session: command dispatch, event subscription and a per-call
// timeout override.
//
// The package does not know how commands are transported. The Chrome driver
// in internal/driver implements Session on top of chromedp, and
// internal/session/sessiontest provides a scriptable fake for tests.
//
// Emitter is the shared subscription registry both implementations embed.
// Command helpers such as GetRequestContent are written against the Session
// interface so collectors can use them with any implementation.
package session
