// Package skiasurf adapts library-owned surfaces to gpu.Surface.
package skiasurf

import (
	"github.com/go-drift/surfacekit/pkg/graphics"
	"github.com/go-drift/surfacekit/pkg/skia"
)

// Surface is a gpu.Surface backed by a skia.Surface.
type Surface struct {
	sk     *skia.Surface
	canvas *graphics.SkiaCanvas
}

// New wraps s.
func New(s *skia.Surface) *Surface {
	size := graphics.Size{Width: float64(s.Width()), Height: float64(s.Height())}
	return &Surface{sk: s, canvas: graphics.NewSkiaCanvas(s.Canvas(), size)}
}

func (s *Surface) Width() int  { return s.sk.Width() }
func (s *Surface) Height() int { return s.sk.Height() }

func (s *Surface) Canvas() graphics.Canvas { return s.canvas }

func (s *Surface) Flush() { s.sk.Flush() }

func (s *Surface) Release() {
	if s.sk != nil {
		s.sk.Destroy()
		s.sk = nil
	}
}
