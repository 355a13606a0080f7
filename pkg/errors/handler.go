package errors

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-drift/surfacekit/pkg/logx"
)

type handlerSlot struct{ h ErrorHandler }

var current atomic.Pointer[handlerSlot]

func init() { current.Store(&handlerSlot{h: &LogHandler{}}) }

// Handler returns the installed error handler.
func Handler() ErrorHandler { return current.Load().h }

// SetHandler installs h and returns the handler it replaces. nil restores
// a LogHandler.
func SetHandler(h ErrorHandler) ErrorHandler {
	if h == nil {
		h = &LogHandler{}
	}
	return current.Swap(&handlerSlot{h: h}).h
}

// Funcs adapts plain functions to ErrorHandler. Nil fields drop the event.
type Funcs struct {
	OnError func(*SurfaceError)
	OnPanic func(*PanicError)
}

func (f Funcs) HandleError(err *SurfaceError) {
	if f.OnError != nil {
		f.OnError(err)
	}
}

func (f Funcs) HandlePanic(err *PanicError) {
	if f.OnPanic != nil {
		f.OnPanic(err)
	}
}

// Report stamps err if needed and hands it to the installed handler.
func Report(err *SurfaceError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	Handler().HandleError(err)
}

// ReportPanic hands a recovered panic to the installed handler.
func ReportPanic(err *PanicError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	Handler().HandlePanic(err)
}

// Recover reports a panic in progress. Use it deferred:
//
//	defer errors.Recover("video.NextImage")
func Recover(op string) {
	if r := recover(); r != nil {
		ReportPanic(&PanicError{Op: op, Value: r, StackTrace: captureStack(3)})
	}
}

// Suppress runs a best-effort housekeeping call. Errors and panics from fn
// are logged at warn level and never propagate; known benign failures of
// OS calls such as SurfaceTexture.updateTexImage go through here.
func Suppress(op string, fn func() error) {
	if fn == nil {
		return
	}
	if err := guard(fn); err != nil {
		logx.Logger().Warn("suppressed best-effort failure", "op", op, "err", err)
	}
}

func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered: %v", r)
		}
	}()
	return fn()
}

// CaptureStack returns the caller's stack, one "function\n\tfile:line"
// entry per frame, without runtime frames.
func CaptureStack() string { return captureStack(3) }

func captureStack(skip int) string {
	pcs := make([]uintptr, 32)
	pcs = pcs[:runtime.Callers(skip, pcs)]
	if len(pcs) == 0 {
		return ""
	}
	var sb strings.Builder
	frames := runtime.CallersFrames(pcs)
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			fmt.Fprintf(&sb, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		}
		if !more {
			break
		}
	}
	return sb.String()
}
