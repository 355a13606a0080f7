//go:build android

package egl

/*
#cgo LDFLAGS: -landroid

#include <jni.h>
#include <android/native_window.h>
#include <android/native_window_jni.h>

static ANativeWindow *sk_window_from_surface(uintptr_t env, uintptr_t surface) {
	return ANativeWindow_fromSurface((JNIEnv *)env, (jobject)surface);
}
*/
import "C"

import (
	"errors"
	"sync/atomic"
	"unsafe"

	"github.com/go-drift/surfacekit/pkg/surface"
)

// Window is an ANativeWindow reference.
type Window struct {
	ptr      *C.ANativeWindow
	released atomic.Bool
}

// Handle implements gpu.NativeWindow.
func (w *Window) Handle() unsafe.Pointer { return unsafe.Pointer(w.ptr) }

// Valid implements gpu.NativeWindow.
func (w *Window) Valid() bool { return w.ptr != nil && !w.released.Load() }

// Width returns the window's current width in pixels.
func (w *Window) Width() int { return int(C.ANativeWindow_getWidth(w.ptr)) }

// Height returns the window's current height in pixels.
func (w *Window) Height() int { return int(C.ANativeWindow_getHeight(w.ptr)) }

// Release drops the window reference once.
func (w *Window) Release() {
	if w.ptr != nil && w.released.CompareAndSwap(false, true) {
		C.ANativeWindow_release(w.ptr)
	}
}

// WindowFromSurface acquires the ANativeWindow behind an android.view.Surface.
// env is the calling thread's JNIEnv* and jsurface a local or global reference.
func WindowFromSurface(env, jsurface uintptr) (*Window, error) {
	ptr := C.sk_window_from_surface(C.uintptr_t(env), C.uintptr_t(jsurface))
	if ptr == nil {
		return nil, errors.New("egl: ANativeWindow_fromSurface returned null")
	}
	return &Window{ptr: ptr}, nil
}

// AcquireSurfaceWindow returns an owning surface.Window for jsurface.
func AcquireSurfaceWindow(env, jsurface uintptr) (*surface.Window, error) {
	w, err := WindowFromSurface(env, jsurface)
	if err != nil {
		return nil, err
	}
	return surface.AcquireWindow(w, w.Release), nil
}
