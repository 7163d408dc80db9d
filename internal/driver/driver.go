package driver

import (
	"context"
	"time"

	"github.com/willoughbyrm/lighthouse/internal/session"
)

// BlankPage is the neutral page loaded between navigations.
const BlankPage = "about:blank"

// GotoOptions controls a page load.
type GotoOptions struct {
	// WaitForLoad waits for the load event when true. Interstitial loads of
	// the blank page skip it.
	WaitForLoad bool

	// MaxWaitForLoad bounds the wait. Zero leaves it to the caller's context.
	MaxWaitForLoad time.Duration
}

// Driver owns the connection to one browser target.
type Driver interface {
	// Connect establishes the session. It is idempotent.
	Connect(ctx context.Context) error

	// Session returns the session of the connected target.
	Session() session.Session

	// Goto loads url and returns the final URL after redirects.
	Goto(ctx context.Context, url string, opts GotoOptions) (string, error)

	// Close releases the target and the browser process if this driver
	// started it.
	Close() error
}
