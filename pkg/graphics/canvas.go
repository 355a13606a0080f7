// Package graphics defines the drawing surface handed to host draw callbacks.
package graphics

import (
	"image"
	"unsafe"
)

// Size is a width/height pair in pixels.
type Size struct {
	Width, Height float64
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	Left, Top, Right, Bottom float64
}

// RectFromLTWH builds a Rect from origin and extent.
func RectFromLTWH(left, top, width, height float64) Rect {
	return Rect{Left: left, Top: top, Right: left + width, Bottom: top + height}
}

// Width returns the rectangle width.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height returns the rectangle height.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool { return r.Right <= r.Left || r.Bottom <= r.Top }

// Canvas receives drawing commands for one frame.
//
// A canvas is only valid inside the draw callback it was passed to.
type Canvas interface {
	// Size returns the canvas dimensions in pixels.
	Size() Size

	// Clear fills the entire canvas with the given color.
	Clear(color Color)

	// DrawRect fills a rectangle with a solid color.
	DrawRect(rect Rect, color Color)

	// DrawImage draws img scaled into dst. Images implementing NativeImage
	// are drawn without a CPU round trip on backends that understand them.
	DrawImage(img image.Image, dst Rect)
}

// NativeImage is implemented by images backed by library-owned GPU textures.
type NativeImage interface {
	// NativeImage returns the wrapped library image pointer, or nil.
	NativeImage() unsafe.Pointer
}
