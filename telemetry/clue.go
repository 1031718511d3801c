package telemetry

import (
	"context"

	"goa.design/clue/log"
)

// ClueLogger delegates every call to goa.design/clue/log, so log output
// honors whatever format/debug settings the caller installed on ctx via
// log.Context / log.WithFormat / log.WithDebug. This is the Logger
// callers should wire in production; NoopLogger remains the Executor and
// Controller default for callers that never configure one.
type ClueLogger struct{}

// NewClueLogger constructs a Logger backed by goa.design/clue/log.
func NewClueLogger() ClueLogger { return ClueLogger{} }

// Debug emits a debug-level entry with msg plus keyvals as structured fields.
func (ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, fielders(msg, keyvals)...)
}

// Info emits an info-level entry with msg plus keyvals as structured fields.
func (ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, fielders(msg, keyvals)...)
}

// Warn emits a warning-level entry with msg plus keyvals as structured fields.
func (ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	log.Warn(ctx, fielders(msg, keyvals)...)
}

// Error emits an error-level entry with msg plus keyvals as structured
// fields. The engine's Logger interface carries no separate error value,
// so nil is passed as the cause to clue/log.Error.
func (ClueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, nil, fielders(msg, keyvals)...)
}

// fielders converts a message plus variadic (key, value, key, value, ...)
// pairs into clue/log.Fielder values. A trailing key with no paired value
// is recorded with a nil value.
func fielders(msg string, keyvals []any) []log.Fielder {
	out := make([]log.Fielder, 0, 1+len(keyvals)/2)
	out = append(out, log.KV{K: "msg", V: msg})
	for i := 0; i < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		out = append(out, log.KV{K: k, V: v})
	}
	return out
}
