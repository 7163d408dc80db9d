package driver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/mailru/easyjson"

	"github.com/willoughbyrm/lighthouse/internal/session"
)

// chromeSession implements session.Session on top of a chromedp target.
type chromeSession struct {
	*session.Emitter

	ctx             context.Context
	protocolTimeout time.Duration
	timeout         session.TimeoutOverride
	logger          *slog.Logger

	// eventNames maps the Go type chromedp decodes an event into back to its
	// protocol name. It is filled as events are subscribed to.
	mu         sync.RWMutex
	eventNames map[reflect.Type]string
}

var _ session.Session = (*chromeSession)(nil)

func newChromeSession(ctx context.Context, protocolTimeout time.Duration, logger *slog.Logger) *chromeSession {
	return &chromeSession{
		Emitter:         session.NewEmitter(),
		ctx:             ctx,
		protocolTimeout: protocolTimeout,
		logger:          logger,
		eventNames:      make(map[reflect.Type]string),
	}
}

// SendCommand implements session.Session.
func (s *chromeSession) SendCommand(ctx context.Context, method string, params any) (json.RawMessage, error) {
	timeout := s.timeout.For(ctx, s.protocolTimeout)

	var b json.RawMessage
	var in easyjson.Marshaler
	if params != nil {
		var err error
		if b, err = json.Marshal(params); err != nil {
			return nil, &session.ProtocolError{Method: method, Message: "invalid params: " + err.Error()}
		}
		raw := easyjson.RawMessage(b)
		in = &raw
	}

	runCtx, stop := withCaller(s.ctx, ctx, timeout)
	defer stop()

	start := time.Now()
	var out easyjson.RawMessage
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return cdp.Execute(ctx, method, in, &out)
	}))
	if err != nil {
		err = toProtocolError(method, err, ctx)
	}
	s.logCommand(ctx, method, b, len(out), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

// logCommand logs a finished command with its params at debug level. Params
// are passed raw so a redacting handler can mask credentials in them.
func (s *chromeSession) logCommand(ctx context.Context, method string, params json.RawMessage, resultBytes int, elapsed time.Duration, err error) {
	if !s.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	attrs := []any{"method", method, "elapsed", elapsed}
	if len(params) > 0 {
		attrs = append(attrs, "params", params)
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	} else {
		attrs = append(attrs, "result_bytes", resultBytes)
	}
	s.logger.Debug("protocol command", attrs...)
}

// SetNextProtocolTimeout implements session.Session.
func (s *chromeSession) SetNextProtocolTimeout(d time.Duration) {
	s.timeout.Set(d)
}

// On implements session.Session.
func (s *chromeSession) On(event string, h session.Handler) func() {
	s.register(event)
	return s.Emitter.On(event, h)
}

// Once implements session.Session.
func (s *chromeSession) Once(event string, h session.Handler) func() {
	s.register(event)
	return s.Emitter.Once(event, h)
}

// register learns the Go type chromedp uses for event.
func (s *chromeSession) register(event string) {
	v, err := cdproto.UnmarshalMessage(&cdproto.Message{
		Method: cdproto.MethodType(event),
		Params: easyjson.RawMessage("{}"),
	})
	if err != nil {
		s.logger.Debug("event not known to the protocol bindings", "event", event, "error", err)
		return
	}

	s.mu.Lock()
	s.eventNames[reflect.TypeOf(v)] = event
	s.mu.Unlock()
}

// dispatch receives decoded events from chromedp and re-emits the subscribed
// ones as raw events.
func (s *chromeSession) dispatch(ev any) {
	s.mu.RLock()
	name, ok := s.eventNames[reflect.TypeOf(ev)]
	s.mu.RUnlock()
	if !ok || s.ListenerCount(name) == 0 {
		return
	}

	params, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("failed to encode event", "event", name, "error", err)
		return
	}
	s.logger.Debug("protocol event", "method", name, "params", json.RawMessage(params))
	s.Emit(session.Event{Method: name, Params: params})
}

// toProtocolError converts a chromedp or transport error into a
// *session.ProtocolError. A deadline hit while the caller's context is still
// alive is reported as a protocol timeout.
func toProtocolError(method string, err error, caller context.Context) error {
	var pe *session.ProtocolError
	if errors.As(err, &pe) {
		return pe
	}

	var cdpErr *cdproto.Error
	if errors.As(err, &cdpErr) {
		return &session.ProtocolError{Method: method, Code: int64(cdpErr.Code), Message: cdpErr.Message}
	}

	if caller.Err() != nil {
		return &session.ProtocolError{Method: method, Message: caller.Err().Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &session.ProtocolError{Method: method, Timeout: true}
	}
	if errors.Is(err, context.Canceled) {
		return &session.ProtocolError{Method: method, Message: "session closed"}
	}
	return &session.ProtocolError{Method: method, Message: err.Error()}
}
