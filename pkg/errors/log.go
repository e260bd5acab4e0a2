package errors

import (
	"context"
	"log/slog"
)

// LogHandler is an ErrorHandler that logs through slog.
type LogHandler struct {
	// Logger receives the records. Nil means slog.Default().
	Logger *slog.Logger
	// Verbose enables detailed output including stack traces.
	Verbose bool
}

func (h *LogHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default().With("component", "databind")
}

func (h *LogHandler) stack(attrs []any, trace string) []any {
	if h.Verbose && trace != "" {
		attrs = append(attrs, "stack", trace)
	}
	return attrs
}

// HandleError logs a BindError.
func (h *LogHandler) HandleError(err *BindError) {
	if err == nil {
		return
	}
	attrs := []any{"op", err.Op, "kind", err.Kind.String(), "error", err.Err}
	if err.Source != "" {
		attrs = append(attrs, "source", err.Source)
	}
	h.logger().Log(context.Background(), slog.LevelError, "binding error", h.stack(attrs, err.StackTrace)...)
}

// HandlePanic logs a PanicError.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	attrs := []any{"value", err.Value}
	if err.Op != "" {
		attrs = append(attrs, "op", err.Op)
	}
	h.logger().Log(context.Background(), slog.LevelError, "recovered panic", h.stack(attrs, err.StackTrace)...)
}

// HandleHandlerError logs a HandlerError with the offending handler name.
func (h *LogHandler) HandleHandlerError(err *HandlerError) {
	if err == nil {
		return
	}
	attrs := []any{"handler", err.Handler, "phase", err.Phase, "host", err.Host}
	if err.Element != "" {
		attrs = append(attrs, "element", err.Element)
	}
	if err.Recovered != nil {
		attrs = append(attrs, "panic", err.Recovered)
	}
	if err.Err != nil {
		attrs = append(attrs, "error", err.Err)
	}
	h.logger().Log(context.Background(), slog.LevelWarn, "handler failed", h.stack(attrs, err.StackTrace)...)
}
