package video

import (
	"image"

	"github.com/go-drift/surfacekit/pkg/skia"
)

// YUVAInfo is the multi-plane layout a YUV image is sampled with.
type YUVAInfo struct {
	Width       int
	Height      int
	PlaneConfig skia.PlaneConfig
	Subsampling skia.Subsampling
	ColorSpace  skia.YUVColorSpace
}

// YUVAInfoFor returns the layout of a width x height frame in format f. ok
// is false for formats that are not YUV.
func YUVAInfoFor(f PixelFormat, width, height int) (info YUVAInfo, ok bool) {
	fi, known := f.info()
	if !known || fi.base != BaseYUV {
		return YUVAInfo{}, false
	}
	return YUVAInfo{
		Width:       width,
		Height:      height,
		PlaneConfig: fi.planeConfig,
		Subsampling: fi.subsampling,
		ColorSpace:  fi.colorSpace,
	}, true
}

// NumPlanes returns the plane count implied by the plane config.
func (y YUVAInfo) NumPlanes() int {
	if y.PlaneConfig == skia.PlaneConfigYUV2 {
		return 2
	}
	return 3
}

// PlaneDimensions returns each plane's size in texels.
func (y YUVAInfo) PlaneDimensions() []image.Point {
	cw, ch := y.Width, y.Height
	switch y.Subsampling {
	case skia.Subsampling420:
		cw, ch = (y.Width+1)/2, (y.Height+1)/2
	case skia.Subsampling422:
		cw = (y.Width + 1) / 2
	}
	dims := []image.Point{{X: y.Width, Y: y.Height}, {X: cw, Y: ch}}
	if y.NumPlanes() == 3 {
		dims = append(dims, image.Point{X: cw, Y: ch})
	}
	return dims
}

func (y YUVAInfo) toSkia() skia.YUVAInfo {
	return skia.YUVAInfo{
		Width:       y.Width,
		Height:      y.Height,
		PlaneConfig: y.PlaneConfig,
		Subsampling: y.Subsampling,
		ColorSpace:  y.ColorSpace,
	}
}

func (y YUVAInfo) subsampleRatio() image.YCbCrSubsampleRatio {
	switch y.Subsampling {
	case skia.Subsampling420:
		return image.YCbCrSubsampleRatio420
	case skia.Subsampling422:
		return image.YCbCrSubsampleRatio422
	}
	return image.YCbCrSubsampleRatio444
}
