package errors

import (
	"context"
	"log/slog"

	"github.com/go-drift/surfacekit/pkg/logx"
)

// LogHandler is an ErrorHandler that writes to the shared logx logger.
type LogHandler struct {
	// Verbose includes stack traces.
	Verbose bool
}

// HandleError logs a SurfaceError at error level, or debug for not-ready.
func (h *LogHandler) HandleError(err *SurfaceError) {
	if err == nil {
		return
	}
	level := slog.LevelError
	if err.Kind == KindNotReady {
		level = slog.LevelDebug
	}
	attrs := []any{"op", err.Op, "kind", err.Kind.String(), "err", err.Err}
	if err.Backend != "" {
		attrs = append(attrs, "backend", err.Backend)
	}
	if h.Verbose && err.StackTrace != "" {
		attrs = append(attrs, "stack", err.StackTrace)
	}
	logx.Logger().Log(context.Background(), level, "surfacekit error", attrs...)
}

// HandlePanic logs a PanicError at error level.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	attrs := []any{"op", err.Op, "value", err.Value}
	if h.Verbose && err.StackTrace != "" {
		attrs = append(attrs, "stack", err.StackTrace)
	}
	logx.Logger().Error("surfacekit panic", attrs...)
}
