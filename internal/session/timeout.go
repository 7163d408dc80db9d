package session

import (
	"context"
	"sync"
	"time"
)

type protocolTimeoutKey struct{}

// WithProtocolTimeout returns a copy of ctx whose commands use timeout d
// instead of the session's protocol timeout. Unlike SetNextProtocolTimeout it
// only affects commands sent with the returned context, so collectors running
// in the same phase cannot take each other's override.
func WithProtocolTimeout(ctx context.Context, d time.Duration) context.Context {
	if d <= 0 {
		return ctx
	}
	return context.WithValue(ctx, protocolTimeoutKey{}, d)
}

// ProtocolTimeout returns the timeout set on ctx by WithProtocolTimeout.
func ProtocolTimeout(ctx context.Context) (time.Duration, bool) {
	d, ok := ctx.Value(protocolTimeoutKey{}).(time.Duration)
	return d, ok
}

// TimeoutOverride holds a one-shot timeout for the next command.
// The zero value is ready to use.
type TimeoutOverride struct {
	mu   sync.Mutex
	next time.Duration
}

// Set stores d as the timeout for the next Take.
func (t *TimeoutOverride) Set(d time.Duration) {
	t.mu.Lock()
	t.next = d
	t.mu.Unlock()
}

// Take returns the pending override, or def when none is set, and clears it.
func (t *TimeoutOverride) Take(def time.Duration) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := t.next
	t.next = 0
	if d <= 0 {
		return def
	}
	return d
}

// For returns the timeout of a command sent with ctx: the value set by
// WithProtocolTimeout, else the pending override, else def. A context
// timeout leaves the pending override for the next command.
func (t *TimeoutOverride) For(ctx context.Context, def time.Duration) time.Duration {
	if d, ok := ProtocolTimeout(ctx); ok {
		return d
	}
	return t.Take(def)
}
