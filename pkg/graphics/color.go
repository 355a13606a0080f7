package graphics

import (
	"image/color"
	"math"

	"github.com/gogpu/gg"
)

// Color is a non-premultiplied 0xAARRGGBB word, the layout Skia's SkColor
// uses.
type Color uint32

// Palette entries used by the renderers and tests.
const (
	ColorTransparent Color = 0x00000000
	ColorBlack       Color = 0xFF000000
	ColorWhite       Color = 0xFFFFFFFF
	ColorRed         Color = 0xFFFF0000
	ColorGreen       Color = 0xFF00FF00
	ColorBlue        Color = 0xFF0000FF
)

// RGB returns an opaque color.
func RGB(r, g, b uint8) Color {
	return pack(r, g, b, 0xFF)
}

// FromColor converts a stdlib color, un-premultiplying as needed.
func FromColor(c color.Color) Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return pack(n.R, n.G, n.B, n.A)
}

func pack(r, g, b, a uint8) Color {
	return Color(a)<<24 | Color(r)<<16 | Color(g)<<8 | Color(b)
}

func (c Color) channels() (r, g, b, a uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c), uint8(c >> 24)
}

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) { return c.NRGBA().RGBA() }

func (c Color) NRGBA() color.NRGBA {
	r, g, b, a := c.channels()
	return color.NRGBA{R: r, G: g, B: b, A: a}
}

// RGBAF returns the channels scaled to [0, 1].
func (c Color) RGBAF() (r, g, b, a float64) {
	r8, g8, b8, a8 := c.channels()
	return unit(r8), unit(g8), unit(b8), unit(a8)
}

// GG converts to the gg color type.
func (c Color) GG() gg.RGBA {
	r, g, b, a := c.RGBAF()
	return gg.RGBA{R: r, G: g, B: b, A: a}
}

// WithAlpha replaces the alpha channel. a is clamped to [0, 1].
func (c Color) WithAlpha(a float64) Color {
	a = math.Max(0, math.Min(1, a))
	return c&0x00FFFFFF | Color(math.Round(a*255))<<24
}

func unit(v uint8) float64 { return float64(v) / 255 }
