package surface

import (
	"sync"
	"unsafe"

	"github.com/go-drift/surfacekit/pkg/gpu"
)

// Window is an owning reference to a native window. The reference is
// dropped exactly once, by Release.
type Window struct {
	mu      sync.Mutex
	native  gpu.NativeWindow
	release func()
}

// AcquireWindow takes ownership of native. release is called once when the
// reference is dropped and may be nil.
func AcquireWindow(native gpu.NativeWindow, release func()) *Window {
	return &Window{native: native, release: release}
}

// Native returns the native window, or nil after Release.
func (w *Window) Native() gpu.NativeWindow {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.native
}

// Handle returns the OS pointer, or nil after Release.
func (w *Window) Handle() unsafe.Pointer {
	if n := w.Native(); n != nil {
		return n.Handle()
	}
	return nil
}

// Valid reports whether the window is held and still backed by the OS.
func (w *Window) Valid() bool {
	n := w.Native()
	return n != nil && n.Valid()
}

// Release drops the reference. It is safe to call more than once.
func (w *Window) Release() {
	if w == nil {
		return
	}
	w.mu.Lock()
	release := w.release
	w.native = nil
	w.release = nil
	w.mu.Unlock()
	if release != nil {
		release()
	}
}
