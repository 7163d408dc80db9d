package log

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
)

// SecureHandler wraps an slog.Handler and redacts attributes before they
// reach it. Attributes holding JSON payloads (json.RawMessage, or values
// decoded from JSON) are redacted field by field; see Redact.
//
// Design decision: Redaction lives in a handler rather than at the call
// sites because:
//  1. The driver logs payloads it knows nothing about; any collector can
//     send any protocol command
//  2. Attributes attached with Logger.With are covered too
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler wraps handler. A nil handler wraps slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled implements slog.Handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.handler.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(redacted)}
}

// WithGroup implements slog.Handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		redacted := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			redacted[i] = redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	}

	if isSensitiveName(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if isSensitiveValue(s) {
			return slog.String(a.Key, MaskValue)
		}
		if strings.HasSuffix(strings.ToLower(a.Key), "url") {
			return slog.String(a.Key, RedactURL(s))
		}
		return a
	case slog.KindAny:
		return redactAny(a)
	default:
		return a
	}
}

// redactAny redacts JSON payloads. Raw JSON stays raw so a JSON handler
// embeds it as an object and a text handler prints it as one string.
func redactAny(a slog.Attr) slog.Attr {
	switch v := a.Value.Any().(type) {
	case json.RawMessage:
		return slog.Any(a.Key, redactRaw(v))
	case map[string]any, []any:
		return slog.Any(a.Key, Redact(v))
	default:
		return a
	}
}

func redactRaw(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return raw
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return json.RawMessage(`"(invalid JSON)"`)
	}

	out, err := json.Marshal(Redact(v))
	if err != nil {
		return json.RawMessage(`"(unprintable)"`)
	}
	return out
}

// NewSecureLogger returns a redacting text logger writing to w. verbose
// lowers the level from Warn to Debug, which includes protocol traffic.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
