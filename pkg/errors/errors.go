// Package errors provides structured error handling for surfacekit.
//
// Surface and video operations keep a bool/empty-result contract toward the
// host; the cause of a failure is reported here instead.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindNotReady indicates an expected lifecycle gap (no surface yet, zero size).
	KindNotReady
	// KindGPU indicates a failed GPU operation (make current, swap, context loss).
	KindGPU
	// KindPlatform indicates a failure inside an OS or host API call.
	KindPlatform
	// KindDecode indicates a media decoding failure.
	KindDecode
	// KindConfig indicates invalid configuration.
	KindConfig
	// KindPanic indicates a recovered panic.
	KindPanic
)

var kindNames = [...]string{
	KindUnknown:  "unknown",
	KindNotReady: "not-ready",
	KindGPU:      "gpu",
	KindPlatform: "platform",
	KindDecode:   "decode",
	KindConfig:   "config",
	KindPanic:    "panic",
}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

var (
	// ErrNotReady is returned when no drawable surface is available yet.
	ErrNotReady = errors.New("surface not ready")
	// ErrContextLost is returned when the GPU context can no longer be used.
	ErrContextLost = errors.New("gpu context lost")
	// ErrInvalidSurface is returned for released or zero-sized targets.
	ErrInvalidSurface = errors.New("invalid surface")
	// ErrWrongThread is returned when a thread context is used off its owning thread.
	ErrWrongThread = errors.New("gpu context used from foreign thread")
	// ErrUnsupported is returned by backends that lack an operation.
	ErrUnsupported = errors.New("not supported by backend")
)

// SurfaceError represents a structured surfacekit error.
type SurfaceError struct {
	Op      string // failing operation, e.g. "surface.Present"
	Kind    ErrorKind
	Backend string // GPU backend name, empty outside gpu code
	Err     error

	StackTrace string
	Timestamp  time.Time
}

func (e *SurfaceError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("%s [%s] backend=%s: %v", e.Op, e.Kind, e.Backend, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *SurfaceError) Unwrap() error { return e.Err }

// New builds a SurfaceError without reporting it.
func New(op string, kind ErrorKind, err error) *SurfaceError {
	return &SurfaceError{Op: op, Kind: kind, Err: err, Timestamp: time.Now()}
}

// PanicError represents a recovered panic.
type PanicError struct {
	Op    string
	Value any // as passed to panic

	StackTrace string
	Timestamp  time.Time
}

func (e *PanicError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("panic: %v", e.Value)
	}
	return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// ErrorHandler receives errors reported by surfacekit.
type ErrorHandler interface {
	HandleError(err *SurfaceError)
	HandlePanic(err *PanicError)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return errors.As(err, target) }
