package video

import (
	"fmt"
	"unsafe"

	"github.com/go-drift/surfacekit/pkg/gpu"
)

// Plane is one plane of a pixel buffer.
type Plane struct {
	Data   []byte
	Stride int
	Width  int
	Height int
}

// PixelBuffer is one decoded frame's pixel data.
type PixelBuffer struct {
	Format PixelFormat
	Width  int
	Height int
	Planes []Plane

	native  unsafe.Pointer
	release func()
}

var _ gpu.PlaneBuffer = (*PixelBuffer)(nil)

// MaxFrameDimension bounds frame width and height accepted by readers and
// NewPixelBuffer.
const MaxFrameDimension = 16384

// NewPixelBuffer allocates a tightly packed buffer for a width x height
// frame in format f.
func NewPixelBuffer(f PixelFormat, width, height int) (*PixelBuffer, error) {
	if f.PlaneCount() == 0 {
		return nil, fmt.Errorf("video: unsupported pixel format %v", f)
	}
	if width <= 0 || height <= 0 || width > MaxFrameDimension || height > MaxFrameDimension {
		return nil, fmt.Errorf("video: invalid frame size %dx%d", width, height)
	}
	b := &PixelBuffer{Format: f, Width: width, Height: height}
	for i := 0; i < f.PlaneCount(); i++ {
		w, h := f.PlaneSize(i, width, height)
		stride := w * f.bytesPerTexel(i)
		b.Planes = append(b.Planes, Plane{
			Data:   make([]byte, stride*h),
			Stride: stride,
			Width:  w,
			Height: h,
		})
	}
	return b, nil
}

// WrapNative returns a buffer backed by a platform pixel buffer. release is
// called once by Release.
func WrapNative(f PixelFormat, width, height int, native unsafe.Pointer, planes []Plane, release func()) *PixelBuffer {
	return &PixelBuffer{Format: f, Width: width, Height: height, Planes: planes, native: native, release: release}
}

// Native implements gpu.PlaneBuffer.
func (b *PixelBuffer) Native() unsafe.Pointer { return b.native }

// PlaneCount implements gpu.PlaneBuffer.
func (b *PixelBuffer) PlaneCount() int { return len(b.Planes) }

// PlaneSize implements gpu.PlaneBuffer.
func (b *PixelBuffer) PlaneSize(i int) (int, int) {
	return b.Planes[i].Width, b.Planes[i].Height
}

// PlaneData implements gpu.PlaneBuffer.
func (b *PixelBuffer) PlaneData(i int) ([]byte, int) {
	return b.Planes[i].Data, b.Planes[i].Stride
}

// Validate checks the planes against the format and frame size.
func (b *PixelBuffer) Validate() error {
	if b.Format.PlaneCount() == 0 {
		return fmt.Errorf("video: unsupported pixel format %v", b.Format)
	}
	if len(b.Planes) != b.Format.PlaneCount() {
		return fmt.Errorf("video: %v has %d planes, want %d", b.Format, len(b.Planes), b.Format.PlaneCount())
	}
	for i, p := range b.Planes {
		w, h := b.Format.PlaneSize(i, b.Width, b.Height)
		if p.Width != w || p.Height != h {
			return fmt.Errorf("video: plane %d is %dx%d, want %dx%d", i, p.Width, p.Height, w, h)
		}
		if b.native != nil && p.Data == nil {
			continue
		}
		if !gpu.PlaneFits(len(p.Data), p.Stride, w, h, b.Format.bytesPerTexel(i)) {
			return fmt.Errorf("video: plane %d data too short", i)
		}
	}
	return nil
}

// Release frees the platform buffer, if any.
func (b *PixelBuffer) Release() {
	if b.release != nil {
		b.release()
		b.release = nil
	}
}
