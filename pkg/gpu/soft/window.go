package soft

import (
	"image"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Window is an in-memory native window. Presented frames land in its front
// buffer, where tests and the CLI read them back.
type Window struct {
	mu        sync.Mutex
	width     int
	height    int
	front     *image.RGBA
	presented int
	closed    bool

	refs atomic.Int32
}

// NewWindow creates an open window of the given size.
func NewWindow(width, height int) *Window {
	return &Window{width: width, height: height}
}

// Handle implements gpu.NativeWindow.
func (w *Window) Handle() unsafe.Pointer { return unsafe.Pointer(w) }

// Valid implements gpu.NativeWindow.
func (w *Window) Valid() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed
}

// Acquire takes a reference to the window.
func (w *Window) Acquire() { w.refs.Add(1) }

// Release drops a reference taken with Acquire.
func (w *Window) Release() { w.refs.Add(-1) }

// Refs returns the number of outstanding references.
func (w *Window) Refs() int { return int(w.refs.Load()) }

// Close marks the window destroyed by the OS. Later presents fail.
func (w *Window) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

// Resize changes the OS-side window size.
func (w *Window) Resize(width, height int) {
	w.mu.Lock()
	w.width, w.height = width, height
	w.mu.Unlock()
}

// Size returns the OS-side window size.
func (w *Window) Size() (width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// Frame returns a copy of the last presented frame, or nil.
func (w *Window) Frame() *image.RGBA {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.front == nil {
		return nil
	}
	out := image.NewRGBA(w.front.Rect)
	copy(out.Pix, w.front.Pix)
	return out
}

// Presented returns the number of presented frames.
func (w *Window) Presented() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.presented
}

func (w *Window) present(img *image.RGBA) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.front = img
	w.presented++
	return true
}
