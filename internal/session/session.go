package session

import (
	"context"
	"encoding/json"
	"time"
)

// Event is a protocol event delivered to subscribers.
type Event struct {
	// Method is the protocol event name, e.g. "Page.javascriptDialogOpening".
	Method string

	// Params is the raw JSON payload of the event.
	Params json.RawMessage
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if len(e.Params) == 0 {
		return nil
	}
	return json.Unmarshal(e.Params, v)
}

// Handler receives events. Handlers run on the dispatching goroutine and must
// not block; anything that issues commands should do so asynchronously.
type Handler func(Event)

// Session is the command and event facade over a remote browsing session.
// The gather engine treats it as an opaque capability: it never needs to know
// how commands travel to the browser.
//
// Design decision: Subscriptions return an unsubscribe function instead of
// pairing On with an Off(handler) call. Go functions are not comparable, and
// an explicit handle makes it hard to leak listeners across navigations.
type Session interface {
	// SendCommand issues a protocol command and returns its raw result.
	// Transport failures, protocol error responses and timeouts are returned
	// as *ProtocolError.
	SendCommand(ctx context.Context, method string, params any) (json.RawMessage, error)

	// On subscribes h to every occurrence of event until unsubscribed.
	On(event string, h Handler) (unsubscribe func())

	// Once subscribes h to the next occurrence of event only.
	Once(event string, h Handler) (unsubscribe func())

	// SetNextProtocolTimeout overrides the timeout of the next SendCommand
	// call, whoever makes it. Concurrent callers should use
	// WithProtocolTimeout instead.
	SetNextProtocolTimeout(d time.Duration)
}

// Send is a typed convenience over Session.SendCommand: it issues the command
// and decodes the result into out when out is non-nil.
func Send(ctx context.Context, s Session, method string, params, out any) error {
	raw, err := s.SendCommand(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ProtocolError{Method: method, Message: "malformed result: " + err.Error()}
	}
	return nil
}
