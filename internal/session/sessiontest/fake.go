// Package sessiontest provides a scriptable in-memory session.Session for
// tests. Commands are answered from registered responders and recorded in
// order; events are injected with Emit.
package sessiontest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/willoughbyrm/lighthouse/internal/session"
)

// Call is one recorded command.
type Call struct {
	Method  string
	Params  json.RawMessage
	Timeout time.Duration
}

// Responder produces the result of a command.
type Responder func(params json.RawMessage) (any, error)

// Session is a fake session.Session. Unknown commands succeed with "{}".
type Session struct {
	*session.Emitter

	mu         sync.Mutex
	responders map[string]Responder
	calls      []Call
	timeout    session.TimeoutOverride
}

var _ session.Session = (*Session)(nil)

// New creates an empty fake session.
func New() *Session {
	return &Session{
		Emitter:    session.NewEmitter(),
		responders: make(map[string]Responder),
	}
}

// Handle registers fn as the responder for method.
func (s *Session) Handle(method string, fn Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responders[method] = fn
}

// Respond makes method succeed with result.
func (s *Session) Respond(method string, result any) {
	s.Handle(method, func(json.RawMessage) (any, error) { return result, nil })
}

// Fail makes method fail with a protocol error carrying message.
func (s *Session) Fail(method, message string) {
	s.Handle(method, func(json.RawMessage) (any, error) {
		return nil, &session.ProtocolError{Method: method, Message: message}
	})
}

// SendCommand implements session.Session.
func (s *Session) SendCommand(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	if params == nil {
		raw = nil
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: method, Params: raw, Timeout: s.timeout.For(ctx, 0)})
	fn := s.responders[method]
	s.mu.Unlock()

	if fn == nil {
		return json.RawMessage("{}"), nil
	}
	result, err := fn(raw)
	if err != nil {
		return nil, err
	}
	if rm, ok := result.(json.RawMessage); ok {
		return rm, nil
	}
	return json.Marshal(result)
}

// SetNextProtocolTimeout implements session.Session. The value is recorded
// on the next Call.
func (s *Session) SetNextProtocolTimeout(d time.Duration) {
	s.timeout.Set(d)
}

// Emit dispatches an event with params marshaled to JSON.
func (s *Session) Emit(method string, params any) {
	raw, _ := json.Marshal(params)
	s.Emitter.Emit(session.Event{Method: method, Params: raw})
}

// Calls returns every recorded command in order.
func (s *Session) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Methods returns the method names of every recorded command in order.
func (s *Session) Methods() []string {
	calls := s.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

// CallsTo returns the recorded commands for method.
func (s *Session) CallsTo(method string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}
