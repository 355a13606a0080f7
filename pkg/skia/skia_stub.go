//go:build (!android && !darwin && !ios) || !cgo || noskia

// Package skia provides a stub implementation for platforms without the
// Skia shim. It compiles everywhere so headless builds and tests work;
// every constructor reports errStubNotSupported.
package skia

import (
	"errors"
	"unsafe"
)

var errStubNotSupported = errors.New("skia: not supported on this platform")

// ErrNilContext is returned by Context methods called after Destroy.
var ErrNilContext = errors.New("skia: nil context")

type Context struct{}

type Surface struct {
	width, height int
}

type Image struct{}

func NewGLContext() (*Context, error) { return nil, errStubNotSupported }

func NewMetalContext(device, queue unsafe.Pointer) (*Context, error) {
	return nil, errStubNotSupported
}

func (c *Context) Destroy() {}

func (c *Context) FlushAndSubmit(syncCPU bool) {}

func (c *Context) MakeGLSurface(width, height, fbo, samples int) (*Surface, error) {
	return nil, errStubNotSupported
}

func (c *Context) MakeOffscreenSurfaceGL(width, height int) (*Surface, error) {
	return nil, errStubNotSupported
}

func (c *Context) MakeOffscreenSurfaceMetal(width, height int) (*Surface, error) {
	return nil, errStubNotSupported
}

func (c *Context) MakeMetalSurface(texture unsafe.Pointer, width, height int) (*Surface, error) {
	return nil, errStubNotSupported
}

func (c *Context) MakeImageFromMetalTexture(texture unsafe.Pointer, width, height int, bgra bool) (*Image, error) {
	return nil, errStubNotSupported
}

func (c *Context) MakeImageFromYUVAMetalTextures(textures []unsafe.Pointer, info YUVAInfo) (*Image, error) {
	return nil, errStubNotSupported
}

func (s *Surface) Canvas() unsafe.Pointer { return nil }

func (s *Surface) Width() int {
	if s == nil {
		return 0
	}
	return s.width
}

func (s *Surface) Height() int {
	if s == nil {
		return 0
	}
	return s.height
}

func (s *Surface) Flush() {}

func (s *Surface) Destroy() {}

func (i *Image) Ptr() unsafe.Pointer { return nil }

func (i *Image) Width() int { return 0 }

func (i *Image) Height() int { return 0 }

func (i *Image) Destroy() {}

func CanvasClear(canvas unsafe.Pointer, argb uint32) {}

func CanvasFillRect(canvas unsafe.Pointer, left, top, right, bottom float32, argb uint32) {}

func CanvasDrawImage(canvas, image unsafe.Pointer, left, top, right, bottom float32) {}

func CanvasDrawImageRGBA(canvas unsafe.Pointer, pixels []uint8, width, height, stride int, left, top, right, bottom float32) {
}

func (c *Context) WarmupShaders(backend string) error { return errStubNotSupported }
