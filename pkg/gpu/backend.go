// Package gpu holds the per-thread GPU contexts surfacekit renders with and
// the interfaces platform backends implement.
//
// GPU contexts are thread-affine: every OS thread that draws owns exactly one
// Context, created on first use and kept until the Registry is closed.
// Callers pin a surface to one goroutine and lock that goroutine to its OS
// thread with runtime.LockOSThread.
package gpu

import (
	"image"
	"math"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/go-drift/surfacekit/pkg/graphics"
	"github.com/go-drift/surfacekit/pkg/skia"
)

// Backend creates per-thread devices for one graphics API.
type Backend interface {
	// Name identifies the backend ("gl", "metal", "software").
	Name() string
	// NewDevice creates a device bound to the calling OS thread.
	NewDevice(cfg DeviceConfig) (Device, error)
}

// DeviceConfig carries the resolved settings a device is created with.
type DeviceConfig struct {
	// MinGLVersion is the lowest acceptable GL ES version ("v3.0").
	MinGLVersion string
	SwapInterval int
	SRGB         bool
	// PixelFormat is the window surface format.
	PixelFormat gputypes.TextureFormat
	// MaxInflight bounds queued frames on backends that pipeline presentation.
	MaxInflight int
	// TextureCacheCapacity bounds pooled plane textures; 0 disables the cache.
	TextureCacheCapacity int
}

// NativeWindow is an OS drawing target: an ANativeWindow, a CAMetalLayer or
// an in-memory window of the software backend.
type NativeWindow interface {
	// Handle returns the OS pointer.
	Handle() unsafe.Pointer
	// Valid reports whether the OS still backs the window.
	Valid() bool
}

// Device is a backend device, its command queue and the rendering
// library's interop context for one OS thread.
type Device interface {
	// Poll processes completed GPU work; wait blocks until the queue drains.
	Poll(wait bool)
	// Destroy releases the device. It is only called when the registry closes.
	Destroy()
	// Queue returns the command submission queue.
	Queue() gpucontext.Queue
	// SurfaceFormat returns the window surface pixel format.
	SurfaceFormat() gputypes.TextureFormat

	// CreateWindowTarget creates the GPU-interop surface for a native window.
	CreateWindowTarget(win NativeWindow, width, height int) (Target, error)
	// MakeCurrent binds the device to the target for drawing.
	MakeCurrent(t Target) error
	// WrapTarget wraps the target as a drawable surface of the given size.
	WrapTarget(t Target, width, height int) (Surface, error)
	// NewOffscreenSurface creates a drawable surface with no presentation target.
	NewOffscreenSurface(width, height int) (Surface, error)
	// FlushAndSubmit flushes pending library work to the GPU.
	FlushAndSubmit()
	// SwapBuffers presents the target's back buffer.
	SwapBuffers(t Target) error
	// NewTextureCache creates a cache for importing pixel buffer planes.
	NewTextureCache(capacity int) (TextureCache, error)
}

// AdapterDescriber is implemented by devices that can name their adapter.
type AdapterDescriber interface {
	AdapterInfo() gpucontext.AdapterInfo
}

// ProviderBinder is implemented by devices that build surfaces through a
// gpucontext.DeviceProvider consumer. The registry binds each such device to
// the Context that owns it before the context is handed out.
type ProviderBinder interface {
	BindProvider(p gpucontext.DeviceProvider)
}

// Target is the GPU-interop surface created from a native window
// (an EGLSurface or a CAMetalLayer binding).
type Target interface {
	Release()
}

// Surface is a GPU-backed render target the host draws into.
type Surface interface {
	Width() int
	Height() int
	// Canvas returns the drawing canvas, valid until the next Flush.
	Canvas() graphics.Canvas
	// Flush pushes recorded drawing to the device.
	Flush()
	Release()
}

// Snapshotter is implemented by surfaces whose pixels can be read back.
type Snapshotter interface {
	Snapshot() *image.RGBA
}

// PlaneBuffer is a decoded pixel buffer whose planes can be imported.
type PlaneBuffer interface {
	// Native returns the platform buffer (CVPixelBufferRef) or nil.
	Native() unsafe.Pointer
	PlaneCount() int
	// PlaneSize returns plane i's dimensions in texels.
	PlaneSize(i int) (width, height int)
	// PlaneData returns plane i's bytes and row stride.
	PlaneData(i int) (data []byte, stride int)
}

// PlaneFits reports whether size bytes hold height rows of width texels of
// bpt bytes each, laid out stride bytes apart. Products that overflow int
// never fit.
func PlaneFits(size, stride, width, height, bpt int) bool {
	if width <= 0 || height <= 0 || bpt <= 0 || width > math.MaxInt/bpt {
		return false
	}
	row := width * bpt
	if stride < row || height-1 > (math.MaxInt-row)/stride {
		return false
	}
	return size >= stride*(height-1)+row
}

// Texture is one imported plane.
type Texture interface {
	Width() int
	Height() int
	Format() gputypes.TextureFormat
	// Native returns the GPU texture (id<MTLTexture>) or nil for CPU textures.
	Native() unsafe.Pointer
	Release()
}

// CPUTexture is implemented by textures whose texels live in host memory.
type CPUTexture interface {
	Texture
	Pixels() (data []byte, stride int)
}

// TextureCache imports pixel buffer planes as textures without allocating
// per frame.
type TextureCache interface {
	TextureFromPlane(buf PlaneBuffer, plane int, format gputypes.TextureFormat) (Texture, error)
	// Flush recycles textures whose frames have been released.
	Flush()
	Release()
}

// ImageAssembler is implemented by devices that combine plane textures into
// one rendering library image.
type ImageAssembler interface {
	AssembleRGBA(tex Texture, bgra bool) (*skia.Image, error)
	AssembleYUVA(textures []Texture, info skia.YUVAInfo) (*skia.Image, error)
}
