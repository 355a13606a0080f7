//go:build (android || darwin || ios) && cgo && !noskia

package skia

import (
	"fmt"
	"unsafe"
)

const warmupSize = 16

var warmupTargets = map[string]func(*Context, int, int) (*Surface, error){
	"gl":    (*Context).MakeOffscreenSurfaceGL,
	"metal": (*Context).MakeOffscreenSurfaceMetal,
}

// WarmupShaders draws the clear, fill and image primitives once into a
// small offscreen target so their pipelines are compiled before the first
// window frame. The backend context must be current on the calling thread.
func (c *Context) WarmupShaders(backend string) error {
	if c == nil || c.ptr == nil {
		return ErrNilContext
	}
	makeTarget, ok := warmupTargets[backend]
	if !ok {
		return fmt.Errorf("skia: no warmup target for backend %q", backend)
	}
	s, err := makeTarget(c, warmupSize, warmupSize)
	if err != nil {
		return fmt.Errorf("skia: warmup target: %w", err)
	}
	defer s.Destroy()

	cv := s.Canvas()
	if cv == nil {
		return fmt.Errorf("skia: warmup target has no canvas")
	}
	drawWarmup(cv)
	s.Flush()
	c.FlushAndSubmit(true)
	return nil
}

// drawWarmup covers an opaque clear, an opaque and a translucent fill, and
// one RGBA upload scaled to the full target, matching what video frames
// and the canvas provider issue.
func drawWarmup(cv unsafe.Pointer) {
	CanvasClear(cv, 0xFF000000)
	CanvasFillRect(cv, 0, 0, warmupSize/2, warmupSize/2, 0xFF00FF00)
	CanvasFillRect(cv, warmupSize/4, warmupSize/4, warmupSize, warmupSize, 0x80FFFFFF)

	const side = 4
	px := make([]uint8, side*side*4)
	for i := range px {
		px[i] = uint8(i * 16)
	}
	CanvasDrawImageRGBA(cv, px, side, side, side*4, 0, 0, warmupSize, warmupSize)
}
