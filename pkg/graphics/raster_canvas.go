package graphics

import (
	"image"
	"image/color"

	"github.com/gogpu/gg"
	xdraw "golang.org/x/image/draw"
)

// RasterCanvas implements Canvas on a gg software context.
type RasterCanvas struct {
	dc *gg.Context
}

// NewRasterCanvas wraps a gg context.
func NewRasterCanvas(dc *gg.Context) *RasterCanvas {
	return &RasterCanvas{dc: dc}
}

// Context returns the underlying gg context.
func (c *RasterCanvas) Context() *gg.Context { return c.dc }

func (c *RasterCanvas) Size() Size {
	return Size{Width: float64(c.dc.Width()), Height: float64(c.dc.Height())}
}

func (c *RasterCanvas) Clear(col Color) {
	c.dc.ClearWithColor(col.GG())
}

func (c *RasterCanvas) DrawRect(rect Rect, col Color) {
	if rect.IsEmpty() {
		return
	}
	r, g, b, a := col.RGBAF()
	c.dc.SetRGBA(r, g, b, a)
	c.dc.DrawRectangle(rect.Left, rect.Top, rect.Width(), rect.Height())
	_ = c.dc.Fill()
}

func (c *RasterCanvas) DrawImage(img image.Image, dst Rect) {
	if img == nil || dst.IsEmpty() || img.Bounds().Empty() {
		return
	}
	c.dc.DrawImageEx(gg.ImageBufFromImage(toRGBA(img)), gg.DrawImageOptions{
		X:             dst.Left,
		Y:             dst.Top,
		DstWidth:      dst.Width(),
		DstHeight:     dst.Height(),
		Interpolation: gg.InterpBilinear,
		Opacity:       1,
		BlendMode:     gg.BlendNormal,
	})
}

// toRGBA converts planar or paletted images before handing them to gg.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(out, out.Bounds(), img, b.Min, xdraw.Src)
	return out
}

// ScaleInto resamples src into a new RGBA image of the given size.
func ScaleInto(src image.Image, width, height int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.BiLinear.Scale(out, out.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return out
}

// Pixel returns the color at (x, y) of a rendered image.
func Pixel(img image.Image, x, y int) Color {
	if img == nil {
		return ColorTransparent
	}
	return FromColor(color.NRGBAModel.Convert(img.At(x, y)))
}
