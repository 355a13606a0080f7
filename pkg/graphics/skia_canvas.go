package graphics

import (
	"image"
	"unsafe"

	"github.com/go-drift/surfacekit/pkg/skia"
)

// SkiaCanvas implements Canvas on a Skia canvas owned by a GPU surface.
type SkiaCanvas struct {
	canvas unsafe.Pointer
	size   Size
}

// NewSkiaCanvas wraps a Skia canvas pointer as a Canvas.
func NewSkiaCanvas(canvas unsafe.Pointer, size Size) *SkiaCanvas {
	return &SkiaCanvas{
		canvas: canvas,
		size:   size,
	}
}

// Native returns the SkCanvas pointer.
func (c *SkiaCanvas) Native() unsafe.Pointer { return c.canvas }

func (c *SkiaCanvas) Size() Size { return c.size }

func (c *SkiaCanvas) Clear(color Color) {
	skia.CanvasClear(c.canvas, uint32(color))
}

func (c *SkiaCanvas) DrawRect(rect Rect, color Color) {
	if rect.IsEmpty() {
		return
	}
	skia.CanvasFillRect(c.canvas,
		float32(rect.Left), float32(rect.Top), float32(rect.Right), float32(rect.Bottom),
		uint32(color))
}

func (c *SkiaCanvas) DrawImage(img image.Image, dst Rect) {
	if img == nil || dst.IsEmpty() {
		return
	}
	if n, ok := img.(NativeImage); ok {
		if ptr := n.NativeImage(); ptr != nil {
			skia.CanvasDrawImage(c.canvas, ptr,
				float32(dst.Left), float32(dst.Top), float32(dst.Right), float32(dst.Bottom))
			return
		}
	}
	rgba := toRGBA(img)
	if rgba.Bounds().Empty() {
		return
	}
	skia.CanvasDrawImageRGBA(c.canvas, rgba.Pix, rgba.Bounds().Dx(), rgba.Bounds().Dy(), rgba.Stride,
		float32(dst.Left), float32(dst.Top), float32(dst.Right), float32(dst.Bottom))
}
