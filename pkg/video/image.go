package video

import (
	"image"
	"image/color"
	"sync"
	"unsafe"

	"github.com/go-drift/surfacekit/pkg/gpu"
	"github.com/go-drift/surfacekit/pkg/graphics"
	"github.com/go-drift/surfacekit/pkg/skia"
)

// Image is a drawable frame: one texture per plane, the YUVA layout for YUV
// frames and, on GPU backends, the library image assembled from them.
//
// Image implements image.Image through a CPU view of host-memory textures;
// frames held only in GPU memory read as transparent.
type Image struct {
	width    int
	height   int
	format   PixelFormat
	textures []gpu.Texture
	yuva     *YUVAInfo
	native   *skia.Image

	viewOnce sync.Once
	view     image.Image
}

var (
	_ image.Image          = (*Image)(nil)
	_ graphics.NativeImage = (*Image)(nil)
)

func (m *Image) Width() int          { return m.width }
func (m *Image) Height() int         { return m.height }
func (m *Image) Format() PixelFormat { return m.format }

// PlaneCount returns the number of plane textures.
func (m *Image) PlaneCount() int { return len(m.textures) }

// Texture returns plane i's texture.
func (m *Image) Texture(i int) gpu.Texture { return m.textures[i] }

// IsYUV reports whether the image is sampled from YUV planes.
func (m *Image) IsYUV() bool { return m.yuva != nil }

// YUVAInfo returns the YUV layout; ok is false for RGB images.
func (m *Image) YUVAInfo() (info YUVAInfo, ok bool) {
	if m.yuva == nil {
		return YUVAInfo{}, false
	}
	return *m.yuva, true
}

// NativeImage implements graphics.NativeImage.
func (m *Image) NativeImage() unsafe.Pointer {
	if m.native == nil {
		return nil
	}
	return m.native.Ptr()
}

// Release frees the library image and returns the plane textures to their
// cache.
func (m *Image) Release() {
	if m.native != nil {
		m.native.Destroy()
		m.native = nil
	}
	for _, t := range m.textures {
		t.Release()
	}
	m.textures = nil
}

func (m *Image) ColorModel() color.Model { return m.cpuView().ColorModel() }
func (m *Image) Bounds() image.Rectangle { return image.Rect(0, 0, m.width, m.height) }
func (m *Image) At(x, y int) color.Color { return m.cpuView().At(x, y) }

func (m *Image) cpuView() image.Image {
	m.viewOnce.Do(func() {
		m.view = m.buildView()
	})
	return m.view
}

func (m *Image) buildView() image.Image {
	planes := make([][]byte, len(m.textures))
	strides := make([]int, len(m.textures))
	for i, t := range m.textures {
		ct, ok := t.(gpu.CPUTexture)
		if !ok {
			return image.NewNRGBA(m.Bounds())
		}
		planes[i], strides[i] = ct.Pixels()
	}
	if len(planes) == 0 {
		return image.NewNRGBA(m.Bounds())
	}

	if m.yuva != nil {
		return m.ycbcrView(planes, strides)
	}

	out := image.NewRGBA(m.Bounds())
	row := m.width * 4
	for y := 0; y < m.height; y++ {
		src := planes[0][y*strides[0] : y*strides[0]+row]
		dst := out.Pix[y*out.Stride : y*out.Stride+row]
		copy(dst, src)
		if m.format == PixelFormatBGRA {
			for x := 0; x < row; x += 4 {
				dst[x], dst[x+2] = dst[x+2], dst[x]
			}
		}
	}
	return out
}

func (m *Image) ycbcrView(planes [][]byte, strides []int) image.Image {
	info := *m.yuva
	out := image.NewYCbCr(m.Bounds(), info.subsampleRatio())
	dims := info.PlaneDimensions()
	limited := info.ColorSpace != skia.ColorSpaceJPEGFull

	for y := 0; y < dims[0].Y; y++ {
		src := planes[0][y*strides[0] : y*strides[0]+dims[0].X]
		dst := out.Y[y*out.YStride : y*out.YStride+dims[0].X]
		for x, v := range src {
			dst[x] = lumaLevel(v, limited)
		}
	}
	cw, ch := dims[1].X, dims[1].Y
	for y := 0; y < ch; y++ {
		cb := out.Cb[y*out.CStride : y*out.CStride+cw]
		cr := out.Cr[y*out.CStride : y*out.CStride+cw]
		if info.PlaneConfig == skia.PlaneConfigYUV2 {
			uv := planes[1][y*strides[1] : y*strides[1]+2*cw]
			for x := 0; x < cw; x++ {
				cb[x] = chromaLevel(uv[2*x], limited)
				cr[x] = chromaLevel(uv[2*x+1], limited)
			}
			continue
		}
		u := planes[1][y*strides[1] : y*strides[1]+cw]
		v := planes[2][y*strides[2] : y*strides[2]+cw]
		if info.PlaneConfig == skia.PlaneConfigYVU {
			u, v = v, u
		}
		for x := 0; x < cw; x++ {
			cb[x] = chromaLevel(u[x], limited)
			cr[x] = chromaLevel(v[x], limited)
		}
	}
	return out
}

// lumaLevel maps video-range luma (16-235) onto the full range image.YCbCr
// converts with.
func lumaLevel(v uint8, limited bool) uint8 {
	if !limited {
		return v
	}
	return clampLevel((int(v) - 16) * 255 / 219)
}

// chromaLevel maps video-range chroma (16-240) onto the full range.
func chromaLevel(v uint8, limited bool) uint8 {
	if !limited {
		return v
	}
	return clampLevel((int(v)-128)*255/224 + 128)
}

func clampLevel(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
