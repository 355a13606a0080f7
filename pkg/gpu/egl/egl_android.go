//go:build android

package egl

/*
#cgo LDFLAGS: -lEGL -lGLESv2 -landroid

#include <EGL/egl.h>
#include <EGL/eglext.h>
#include <GLES2/gl2.h>
#include <android/native_window.h>
#include <string.h>

#ifndef EGL_GL_COLORSPACE_KHR
#define EGL_GL_COLORSPACE_KHR 0x309D
#define EGL_GL_COLORSPACE_SRGB_KHR 0x3089
#endif

typedef struct {
	EGLDisplay disp;
	EGLConfig config;
	EGLContext ctx;
	EGLSurface pbuffer;
	int srgb;
	int samples;
	int major;
} sk_egl;

static int sk_egl_create(sk_egl *e) {
	memset(e, 0, sizeof(*e));
	e->disp = eglGetDisplay(EGL_DEFAULT_DISPLAY);
	if (e->disp == EGL_NO_DISPLAY) {
		return 1;
	}
	EGLint major, minor;
	if (!eglInitialize(e->disp, &major, &minor)) {
		return 2;
	}
	const char *exts = eglQueryString(e->disp, EGL_EXTENSIONS);
	e->srgb = major > 1 || minor >= 5 || (exts != NULL && strstr(exts, "EGL_KHR_gl_colorspace") != NULL);

	EGLint attribs[] = {
		EGL_RENDERABLE_TYPE, EGL_OPENGL_ES2_BIT,
		EGL_SURFACE_TYPE, EGL_WINDOW_BIT | EGL_PBUFFER_BIT,
		EGL_RED_SIZE, 8,
		EGL_GREEN_SIZE, 8,
		EGL_BLUE_SIZE, 8,
		EGL_ALPHA_SIZE, 8,
		EGL_STENCIL_SIZE, 8,
		EGL_CONFIG_CAVEAT, EGL_NONE,
		EGL_NONE,
	};
	EGLint n = 0;
	if (!eglChooseConfig(e->disp, attribs, &e->config, 1, &n) || n == 0) {
		return 3;
	}
	eglGetConfigAttrib(e->disp, e->config, EGL_SAMPLES, &e->samples);

	EGLint ctx3[] = {EGL_CONTEXT_CLIENT_VERSION, 3, EGL_NONE};
	e->ctx = eglCreateContext(e->disp, e->config, EGL_NO_CONTEXT, ctx3);
	e->major = 3;
	if (e->ctx == EGL_NO_CONTEXT) {
		EGLint ctx2[] = {EGL_CONTEXT_CLIENT_VERSION, 2, EGL_NONE};
		e->ctx = eglCreateContext(e->disp, e->config, EGL_NO_CONTEXT, ctx2);
		e->major = 2;
	}
	if (e->ctx == EGL_NO_CONTEXT) {
		return 4;
	}
	EGLint pb[] = {EGL_WIDTH, 1, EGL_HEIGHT, 1, EGL_NONE};
	e->pbuffer = eglCreatePbufferSurface(e->disp, e->config, pb);
	if (e->pbuffer == EGL_NO_SURFACE) {
		return 5;
	}
	if (!eglMakeCurrent(e->disp, e->pbuffer, e->pbuffer, e->ctx)) {
		return 6;
	}
	return 0;
}

static EGLSurface sk_egl_window_surface(sk_egl *e, ANativeWindow *win, int want_srgb) {
	EGLSurface s = EGL_NO_SURFACE;
	if (want_srgb && e->srgb) {
		EGLint attribs[] = {EGL_GL_COLORSPACE_KHR, EGL_GL_COLORSPACE_SRGB_KHR, EGL_NONE};
		s = eglCreateWindowSurface(e->disp, e->config, win, attribs);
	}
	if (s == EGL_NO_SURFACE) {
		s = eglCreateWindowSurface(e->disp, e->config, win, NULL);
	}
	return s;
}

static int sk_egl_make_current(sk_egl *e, EGLSurface s) {
	return eglMakeCurrent(e->disp, s, s, e->ctx);
}

static int sk_egl_swap(sk_egl *e, EGLSurface s) {
	return eglSwapBuffers(e->disp, s);
}

static void sk_egl_swap_interval(sk_egl *e, int interval) {
	eglSwapInterval(e->disp, interval);
}

static void sk_egl_destroy_surface(sk_egl *e, EGLSurface s) {
	if (eglGetCurrentSurface(EGL_DRAW) == s) {
		eglMakeCurrent(e->disp, e->pbuffer, e->pbuffer, e->ctx);
	}
	eglDestroySurface(e->disp, s);
}

static void sk_egl_destroy(sk_egl *e) {
	if (e->disp == EGL_NO_DISPLAY) {
		return;
	}
	eglMakeCurrent(e->disp, EGL_NO_SURFACE, EGL_NO_SURFACE, EGL_NO_CONTEXT);
	if (e->pbuffer != EGL_NO_SURFACE) {
		eglDestroySurface(e->disp, e->pbuffer);
	}
	if (e->ctx != EGL_NO_CONTEXT) {
		eglDestroyContext(e->disp, e->ctx);
	}
	eglReleaseThread();
	memset(e, 0, sizeof(*e));
}

static const char *sk_gl_version(void) {
	return (const char *)glGetString(GL_VERSION);
}

static const char *sk_gl_renderer(void) {
	return (const char *)glGetString(GL_RENDERER);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/go-drift/surfacekit/pkg/errors"
	"github.com/go-drift/surfacekit/pkg/gpu"
	"github.com/go-drift/surfacekit/pkg/gpu/internal/skiasurf"
	"github.com/go-drift/surfacekit/pkg/gpu/soft"
	"github.com/go-drift/surfacekit/pkg/logx"
	"github.com/go-drift/surfacekit/pkg/skia"
)

// Name is the backend's registry name.
const Name = "gl"

func init() {
	gpu.Register(Name, 100, func() (gpu.Backend, error) { return Backend{}, nil }, nil)
}

// Backend creates EGL devices.
type Backend struct{}

func (Backend) Name() string { return Name }

func (Backend) NewDevice(cfg gpu.DeviceConfig) (gpu.Device, error) {
	d := &Device{cfg: cfg}
	if rc := C.sk_egl_create(&d.egl); rc != 0 {
		err := fmt.Errorf("egl setup failed at step %d: 0x%x", int(rc), int(C.eglGetError()))
		C.sk_egl_destroy(&d.egl)
		return nil, err
	}
	version := C.GoString(C.sk_gl_version())
	if !gpu.VersionAtLeast(version, cfg.MinGLVersion) {
		C.sk_egl_destroy(&d.egl)
		return nil, fmt.Errorf("%w: %q is below %s", errors.ErrUnsupported, version, cfg.MinGLVersion)
	}
	sk, err := skia.NewGLContext()
	if err != nil {
		C.sk_egl_destroy(&d.egl)
		return nil, err
	}
	d.sk = sk
	d.renderer = C.GoString(C.sk_gl_renderer())
	if err := sk.WarmupShaders("gl"); err != nil {
		logx.Logger().Warn("shader warmup failed", "backend", Name, "error", err)
	}
	logx.Logger().Info("egl device ready", "gl", version, "client", int(d.egl.major), "srgb", d.egl.srgb != 0)
	return d, nil
}

// Device is an EGL context and the library's GL context on one thread.
type Device struct {
	cfg      gpu.DeviceConfig
	egl      C.sk_egl
	sk       *skia.Context
	renderer string
}

var _ gpu.Device = (*Device)(nil)

func (d *Device) Poll(wait bool) {
	if d.sk != nil {
		d.sk.FlushAndSubmit(wait)
	}
}

func (d *Device) Destroy() {
	if d.sk != nil {
		d.sk.Destroy()
		d.sk = nil
	}
	C.sk_egl_destroy(&d.egl)
}

// Queue returns the EGLContext; GL submits through the current context.
func (d *Device) Queue() gpucontext.Queue { return unsafe.Pointer(d.egl.ctx) }

func (d *Device) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: d.renderer, Type: gpucontext.AdapterTypeUnknown}
}

func (d *Device) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatRGBA8Unorm }

type target struct {
	d    *Device
	surf C.EGLSurface
}

func (t *target) Release() {
	if t.surf != nil {
		C.sk_egl_destroy_surface(&t.d.egl, t.surf)
		t.surf = nil
	}
}

func (d *Device) CreateWindowTarget(win gpu.NativeWindow, width, height int) (gpu.Target, error) {
	anw := (*C.ANativeWindow)(win.Handle())
	surf := C.sk_egl_window_surface(&d.egl, anw, C.int(boolInt(d.cfg.SRGB)))
	if surf == nil {
		return nil, fmt.Errorf("eglCreateWindowSurface failed: 0x%x", int(C.eglGetError()))
	}
	return &target{d: d, surf: surf}, nil
}

func (d *Device) MakeCurrent(t gpu.Target) error {
	tt, ok := t.(*target)
	if !ok || tt.surf == nil {
		return errors.ErrInvalidSurface
	}
	if C.sk_egl_make_current(&d.egl, tt.surf) == 0 {
		return fmt.Errorf("%w: eglMakeCurrent 0x%x", errors.ErrContextLost, int(C.eglGetError()))
	}
	C.sk_egl_swap_interval(&d.egl, C.int(d.cfg.SwapInterval))
	return nil
}

// WrapTarget binds t, then wraps its default framebuffer.
func (d *Device) WrapTarget(t gpu.Target, width, height int) (gpu.Surface, error) {
	if err := d.MakeCurrent(t); err != nil {
		return nil, err
	}
	s, err := d.sk.MakeGLSurface(width, height, 0, int(d.egl.samples))
	if err != nil {
		return nil, err
	}
	return skiasurf.New(s), nil
}

func (d *Device) NewOffscreenSurface(width, height int) (gpu.Surface, error) {
	s, err := d.sk.MakeOffscreenSurfaceGL(width, height)
	if err != nil {
		return nil, err
	}
	return skiasurf.New(s), nil
}

func (d *Device) FlushAndSubmit() {
	d.sk.FlushAndSubmit(false)
}

func (d *Device) SwapBuffers(t gpu.Target) error {
	tt, ok := t.(*target)
	if !ok || tt.surf == nil {
		return errors.ErrInvalidSurface
	}
	if C.sk_egl_swap(&d.egl, tt.surf) == 0 {
		return fmt.Errorf("eglSwapBuffers failed: 0x%x", int(C.eglGetError()))
	}
	return nil
}

// NewTextureCache returns a host-memory cache; video planes are uploaded
// by the library when drawn.
func (d *Device) NewTextureCache(capacity int) (gpu.TextureCache, error) {
	return soft.NewTextureCache(capacity), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
