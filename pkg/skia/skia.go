//go:build (android || darwin || ios) && cgo && !noskia

// Package skia provides CGO bindings to a minimal Skia shim.
//
// The static CGO directives below reference third_party/skia paths relative
// to this source file. Builds outside the repo override them through
// CGO_LDFLAGS. Build with -tags noskia to use the stub on Apple desktops.
package skia

/*
#cgo CXXFLAGS: -std=c++17
#cgo CFLAGS: -I${SRCDIR}
#cgo CXXFLAGS: -I${SRCDIR}

#cgo android,arm64 LDFLAGS: -L${SRCDIR}/../../third_party/skia/android/arm64 -lsurfacekit_skia -lc++_shared -lGLESv2 -lEGL -landroid -llog -lm
#cgo android,arm LDFLAGS: -L${SRCDIR}/../../third_party/skia/android/arm -lsurfacekit_skia -lc++_shared -lGLESv2 -lEGL -landroid -llog -lm
#cgo android,amd64 LDFLAGS: -L${SRCDIR}/../../third_party/skia/android/amd64 -lsurfacekit_skia -lc++_shared -lGLESv2 -lEGL -landroid -llog -lm

#cgo ios,arm64 LDFLAGS: -L${SRCDIR}/../../third_party/skia/ios/arm64 -lsurfacekit_skia -lc++ -framework Metal -framework CoreGraphics -framework Foundation -framework UIKit

#cgo darwin,!ios,arm64 LDFLAGS: -L${SRCDIR}/../../third_party/skia/ios-simulator/arm64 -lsurfacekit_skia -lc++ -framework Metal -framework CoreGraphics -framework Foundation
#cgo darwin,!ios,amd64 LDFLAGS: -L${SRCDIR}/../../third_party/skia/ios-simulator/amd64 -lsurfacekit_skia -lc++ -framework Metal -framework CoreGraphics -framework Foundation

#include "skia_bridge.h"
#include <stdlib.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrNilContext is returned by Context methods called after Destroy.
var ErrNilContext = errors.New("skia: nil context")

// Context is a GrDirectContext bound to the GL or Metal context that was
// current when it was created.
type Context struct {
	ptr C.SkSkiaContext
}

// Surface is a GPU render target owned by a Context.
type Surface struct {
	ptr    C.SkSkiaSurface
	ctx    *Context
	width  int
	height int
}

// Image is a texture-backed SkImage.
type Image struct {
	ptr C.SkSkiaImage
}

func wrapContext(ptr C.SkSkiaContext, api string) (*Context, error) {
	if ptr == nil {
		return nil, fmt.Errorf("skia: %s context creation failed", api)
	}
	return &Context{ptr: ptr}, nil
}

// NewGLContext binds to the GL context current on this thread.
func NewGLContext() (*Context, error) {
	return wrapContext(C.sk_context_create_gl(), "GL")
}

// NewMetalContext binds to an MTLDevice and its command queue.
func NewMetalContext(device, queue unsafe.Pointer) (*Context, error) {
	return wrapContext(C.sk_context_create_metal(device, queue), "Metal")
}

func (c *Context) alive() bool { return c != nil && c.ptr != nil }

func (c *Context) Destroy() {
	if !c.alive() {
		return
	}
	C.sk_context_destroy(c.ptr)
	c.ptr = nil
}

// FlushAndSubmit submits recorded work. With syncCPU set it waits for the
// GPU to finish.
func (c *Context) FlushAndSubmit(syncCPU bool) {
	if c.alive() {
		C.sk_context_flush_and_submit(c.ptr, boolToInt(syncCPU))
	}
}

func (c *Context) wrapSurface(ptr C.SkSkiaSurface, width, height int, kind string) (*Surface, error) {
	if ptr == nil {
		return nil, fmt.Errorf("skia: %s surface %dx%d creation failed", kind, width, height)
	}
	return &Surface{ptr: ptr, ctx: c, width: width, height: height}, nil
}

// MakeGLSurface wraps a GL framebuffer. fbo 0 is the window surface bound
// by eglMakeCurrent.
func (c *Context) MakeGLSurface(width, height, fbo, samples int) (*Surface, error) {
	if !c.alive() {
		return nil, ErrNilContext
	}
	return c.wrapSurface(C.sk_surface_create_gl(c.ptr, C.int(width), C.int(height), C.int(fbo), C.int(samples)),
		width, height, "GL")
}

func (c *Context) MakeOffscreenSurfaceGL(width, height int) (*Surface, error) {
	if !c.alive() {
		return nil, ErrNilContext
	}
	return c.wrapSurface(C.sk_surface_create_offscreen_gl(c.ptr, C.int(width), C.int(height)),
		width, height, "offscreen GL")
}

func (c *Context) MakeOffscreenSurfaceMetal(width, height int) (*Surface, error) {
	if !c.alive() {
		return nil, ErrNilContext
	}
	return c.wrapSurface(C.sk_surface_create_offscreen_metal(c.ptr, C.int(width), C.int(height)),
		width, height, "offscreen Metal")
}

// MakeMetalSurface renders into a drawable's MTLTexture.
func (c *Context) MakeMetalSurface(texture unsafe.Pointer, width, height int) (*Surface, error) {
	switch {
	case !c.alive():
		return nil, ErrNilContext
	case texture == nil:
		return nil, errors.New("skia: Metal surface without texture")
	}
	return c.wrapSurface(C.sk_surface_create_metal(c.ptr, texture, C.int(width), C.int(height)),
		width, height, "Metal")
}

// MakeImageFromMetalTexture wraps a single BGRA or RGBA Metal texture.
func (c *Context) MakeImageFromMetalTexture(texture unsafe.Pointer, width, height int, bgra bool) (*Image, error) {
	if !c.alive() {
		return nil, ErrNilContext
	}
	img := C.sk_image_create_metal(c.ptr, texture, C.int(width), C.int(height), boolToInt(bgra))
	if img == nil {
		return nil, fmt.Errorf("skia: wrap %dx%d Metal texture failed", width, height)
	}
	return &Image{ptr: img}, nil
}

// MakeImageFromYUVAMetalTextures assembles up to four plane textures into
// one image that samples as RGB.
func (c *Context) MakeImageFromYUVAMetalTextures(textures []unsafe.Pointer, info YUVAInfo) (*Image, error) {
	switch {
	case !c.alive():
		return nil, ErrNilContext
	case len(textures) == 0:
		return nil, errors.New("skia: YUVA image without planes")
	}
	// The array is read by C, so it cannot live in Go memory.
	arr := (*[4]unsafe.Pointer)(C.malloc(C.size_t(unsafe.Sizeof(uintptr(0))) * 4))
	defer C.free(unsafe.Pointer(arr))
	n := copy(arr[:], textures)
	img := C.sk_image_create_yuva_metal(c.ptr, (*unsafe.Pointer)(unsafe.Pointer(arr)), C.int(n),
		C.int(info.Width), C.int(info.Height),
		C.int(info.PlaneConfig), C.int(info.Subsampling), C.int(info.ColorSpace))
	if img == nil {
		return nil, fmt.Errorf("skia: YUVA image from %d planes failed", n)
	}
	return &Image{ptr: img}, nil
}

// Canvas returns the SkCanvas pointer, nil after Destroy.
func (s *Surface) Canvas() unsafe.Pointer {
	if s == nil || s.ptr == nil {
		return nil
	}
	return unsafe.Pointer(C.sk_surface_get_canvas(s.ptr))
}

func (s *Surface) Width() int  { return s.width }
func (s *Surface) Height() int { return s.height }

// Flush resolves pending draws into the target. The owning context still
// needs FlushAndSubmit before present.
func (s *Surface) Flush() {
	if s != nil && s.ptr != nil && s.ctx.alive() {
		C.sk_surface_flush(s.ctx.ptr, s.ptr)
	}
}

func (s *Surface) Destroy() {
	if s == nil || s.ptr == nil {
		return
	}
	C.sk_surface_destroy(s.ptr)
	s.ptr = nil
}

// Ptr returns the SkImage pointer.
func (i *Image) Ptr() unsafe.Pointer {
	if i == nil {
		return nil
	}
	return unsafe.Pointer(i.ptr)
}

// Width returns the image width.
func (i *Image) Width() int {
	if i == nil || i.ptr == nil {
		return 0
	}
	return int(C.sk_image_width(i.ptr))
}

// Height returns the image height.
func (i *Image) Height() int {
	if i == nil || i.ptr == nil {
		return 0
	}
	return int(C.sk_image_height(i.ptr))
}

// Destroy releases the image and its texture references.
func (i *Image) Destroy() {
	if i == nil || i.ptr == nil {
		return
	}
	C.sk_image_destroy(i.ptr)
	i.ptr = nil
}

// CanvasClear fills the whole canvas with argb, ignoring the clip.
func CanvasClear(canvas unsafe.Pointer, argb uint32) {
	C.sk_canvas_clear(C.SkSkiaCanvas(canvas), C.uint32_t(argb))
}

// CanvasFillRect fills a rectangle with a solid color.
func CanvasFillRect(canvas unsafe.Pointer, left, top, right, bottom float32, argb uint32) {
	C.sk_canvas_fill_rect(C.SkSkiaCanvas(canvas),
		C.float(left), C.float(top), C.float(right), C.float(bottom), C.uint32_t(argb))
}

// CanvasDrawImage draws a texture-backed image into the destination rect.
func CanvasDrawImage(canvas, image unsafe.Pointer, left, top, right, bottom float32) {
	if image == nil {
		return
	}
	C.sk_canvas_draw_image(C.SkSkiaCanvas(canvas), C.SkSkiaImage(image),
		C.float(left), C.float(top), C.float(right), C.float(bottom))
}

// CanvasDrawImageRGBA uploads and draws CPU RGBA pixels into the destination rect.
func CanvasDrawImageRGBA(canvas unsafe.Pointer, pixels []uint8, width, height, stride int, left, top, right, bottom float32) {
	if len(pixels) == 0 || stride <= 0 {
		return
	}
	C.sk_canvas_draw_image_rgba(
		C.SkSkiaCanvas(canvas),
		(*C.uint8_t)(unsafe.Pointer(&pixels[0])),
		C.int(width), C.int(height), C.int(stride),
		C.float(left), C.float(top), C.float(right), C.float(bottom),
	)
}

func boolToInt(v bool) C.int {
	if v {
		return 1
	}
	return 0
}
