// Package video decodes video sources into drawable images, one frame at a
// time, importing each decoded plane as a texture.
package video

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/go-drift/surfacekit/pkg/skia"
)

// PixelFormat is a decoded buffer's layout, as a big-endian FourCC. Values
// shared with CoreVideo use its codes.
type PixelFormat uint32

const (
	PixelFormatUnknown PixelFormat = 0
	// PixelFormatI420 is 8-bit 4:2:0 with separate Y, U and V planes, video range.
	PixelFormatI420 PixelFormat = 0x79343230 // 'y420'
	// PixelFormatI420Full is PixelFormatI420 in full range.
	PixelFormatI420Full PixelFormat = 0x66343230 // 'f420'
	// PixelFormatNV12 is 8-bit 4:2:0 with a Y plane and an interleaved UV plane, video range.
	PixelFormatNV12 PixelFormat = 0x34323076 // '420v'
	// PixelFormatNV12Full is PixelFormatNV12 in full range.
	PixelFormatNV12Full PixelFormat = 0x34323066 // '420f'
	// PixelFormatI422 is 8-bit 4:2:2 with three planes, video range.
	PixelFormatI422 PixelFormat = 0x79343232 // 'y422'
	// PixelFormatI444 is 8-bit 4:4:4 with three planes, video range.
	PixelFormatI444 PixelFormat = 0x79343434 // 'y444'
	PixelFormatBGRA PixelFormat = 0x42475241 // 'BGRA'
	PixelFormatRGBA PixelFormat = 0x52474241 // 'RGBA'
)

// BaseFormat separates multi-plane YUV layouts from packed RGB ones.
type BaseFormat int

const (
	BaseUnknown BaseFormat = iota
	BaseYUV
	BaseRGB
)

func (b BaseFormat) String() string {
	switch b {
	case BaseYUV:
		return "yuv"
	case BaseRGB:
		return "rgb"
	default:
		return "unknown"
	}
}

type formatInfo struct {
	name        string
	base        BaseFormat
	planeConfig skia.PlaneConfig
	subsampling skia.Subsampling
	colorSpace  skia.YUVColorSpace
	planes      []gputypes.TextureFormat
}

var (
	threePlanes = []gputypes.TextureFormat{gputypes.TextureFormatR8Unorm, gputypes.TextureFormatR8Unorm, gputypes.TextureFormatR8Unorm}
	twoPlanes   = []gputypes.TextureFormat{gputypes.TextureFormatR8Unorm, gputypes.TextureFormatRG8Unorm}
)

var formats = map[PixelFormat]formatInfo{
	PixelFormatI420:     {"I420", BaseYUV, skia.PlaneConfigYUV, skia.Subsampling420, skia.ColorSpaceRec601Limited, threePlanes},
	PixelFormatI420Full: {"I420 full", BaseYUV, skia.PlaneConfigYUV, skia.Subsampling420, skia.ColorSpaceJPEGFull, threePlanes},
	PixelFormatNV12:     {"NV12", BaseYUV, skia.PlaneConfigYUV2, skia.Subsampling420, skia.ColorSpaceRec601Limited, twoPlanes},
	PixelFormatNV12Full: {"NV12 full", BaseYUV, skia.PlaneConfigYUV2, skia.Subsampling420, skia.ColorSpaceJPEGFull, twoPlanes},
	PixelFormatI422:     {"I422", BaseYUV, skia.PlaneConfigYUV, skia.Subsampling422, skia.ColorSpaceRec601Limited, threePlanes},
	PixelFormatI444:     {"I444", BaseYUV, skia.PlaneConfigYUV, skia.Subsampling444, skia.ColorSpaceRec601Limited, threePlanes},
	PixelFormatBGRA:     {name: "BGRA", base: BaseRGB, planes: []gputypes.TextureFormat{gputypes.TextureFormatBGRA8Unorm}},
	PixelFormatRGBA:     {name: "RGBA", base: BaseRGB, planes: []gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm}},
}

func (f PixelFormat) info() (formatInfo, bool) {
	fi, ok := formats[f]
	return fi, ok
}

// FourCC returns the four-character code.
func (f PixelFormat) FourCC() string {
	return string([]byte{byte(f >> 24), byte(f >> 16), byte(f >> 8), byte(f)})
}

func (f PixelFormat) String() string {
	if fi, ok := f.info(); ok {
		return fi.name
	}
	return fmt.Sprintf("PixelFormat(%#08x)", uint32(f))
}

// Base classifies the format as YUV or RGB.
func (f PixelFormat) Base() BaseFormat {
	fi, _ := f.info()
	return fi.base
}

// PlaneCount returns the number of planes, or 0 for unknown formats.
func (f PixelFormat) PlaneCount() int {
	fi, _ := f.info()
	return len(fi.planes)
}

// PlaneFormat returns the texture format plane i is imported with.
func (f PixelFormat) PlaneFormat(i int) gputypes.TextureFormat {
	fi, _ := f.info()
	if i < 0 || i >= len(fi.planes) {
		return gputypes.TextureFormatUndefined
	}
	return fi.planes[i]
}

// chromaShift returns the log2 horizontal and vertical chroma subsampling.
func (f PixelFormat) chromaShift() (x, y uint) {
	fi, _ := f.info()
	if fi.base != BaseYUV {
		return 0, 0
	}
	switch fi.subsampling {
	case skia.Subsampling420:
		return 1, 1
	case skia.Subsampling422:
		return 1, 0
	}
	return 0, 0
}

// PlaneSize returns plane i's size in texels for a width x height frame.
// Chroma dimensions round up.
func (f PixelFormat) PlaneSize(i, width, height int) (int, int) {
	if i == 0 || f.Base() != BaseYUV {
		return width, height
	}
	sx, sy := f.chromaShift()
	return (width + (1 << sx) - 1) >> sx, (height + (1 << sy) - 1) >> sy
}

// bytesPerTexel returns plane i's texel size.
func (f PixelFormat) bytesPerTexel(i int) int {
	switch f.PlaneFormat(i) {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRG8Unorm:
		return 2
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return 4
	}
	return 0
}
