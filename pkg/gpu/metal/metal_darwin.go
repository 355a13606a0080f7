//go:build darwin && cgo

package metal

/*
#cgo CFLAGS: -Werror -Wno-deprecated-declarations -fobjc-arc -x objective-c
#cgo LDFLAGS: -framework Metal -framework QuartzCore -framework CoreVideo -framework Foundation

#import <Metal/Metal.h>
#import <QuartzCore/CAMetalLayer.h>
#import <CoreVideo/CoreVideo.h>
#import <CoreVideo/CVMetalTextureCache.h>

static CFTypeRef sk_mtl_device(void) {
	@autoreleasepool {
		return CFBridgingRetain(MTLCreateSystemDefaultDevice());
	}
}

static CFTypeRef sk_mtl_queue(CFTypeRef devRef) {
	@autoreleasepool {
		id<MTLDevice> dev = (__bridge id<MTLDevice>)devRef;
		return CFBridgingRetain([dev newCommandQueue]);
	}
}

static void sk_mtl_configure_layer(CFTypeRef layerRef, CFTypeRef devRef, int format, int width, int height, int maxInflight) {
	@autoreleasepool {
		CAMetalLayer *layer = (__bridge CAMetalLayer *)layerRef;
		layer.device = (__bridge id<MTLDevice>)devRef;
		layer.pixelFormat = (MTLPixelFormat)format;
		layer.framebufferOnly = NO;
		layer.drawableSize = CGSizeMake(width, height);
		if (@available(iOS 11.2, macOS 10.13.2, *)) {
			layer.maximumDrawableCount = maxInflight == 2 ? 2 : 3;
		}
	}
}

static CFTypeRef sk_mtl_next_drawable(CFTypeRef layerRef) {
	@autoreleasepool {
		CAMetalLayer *layer = (__bridge CAMetalLayer *)layerRef;
		return CFBridgingRetain([layer nextDrawable]);
	}
}

static CFTypeRef sk_mtl_drawable_texture(CFTypeRef drawableRef) {
	id<CAMetalDrawable> drawable = (__bridge id<CAMetalDrawable>)drawableRef;
	return (__bridge CFTypeRef)drawable.texture;
}

static void sk_mtl_present(CFTypeRef queueRef, CFTypeRef drawableRef) {
	@autoreleasepool {
		id<MTLCommandQueue> queue = (__bridge id<MTLCommandQueue>)queueRef;
		id<CAMetalDrawable> drawable = (__bridge id<CAMetalDrawable>)drawableRef;
		id<MTLCommandBuffer> cmd = [queue commandBuffer];
		[cmd presentDrawable:drawable];
		[cmd commit];
	}
}

static CFTypeRef sk_cv_cache(CFTypeRef devRef) {
	CVMetalTextureCacheRef cache = NULL;
	CVReturn rc = CVMetalTextureCacheCreate(kCFAllocatorDefault, NULL, (__bridge id<MTLDevice>)devRef, NULL, &cache);
	if (rc != kCVReturnSuccess) {
		return 0;
	}
	return (CFTypeRef)cache;
}

// sk_cv_texture imports one plane. On success *mtl is the unretained
// id<MTLTexture> owned by the returned CVMetalTextureRef.
static CFTypeRef sk_cv_texture(CFTypeRef cacheRef, void *pixelBuffer, int plane, int format, int width, int height, CFTypeRef *mtl) {
	CVMetalTextureRef tex = NULL;
	CVReturn rc = CVMetalTextureCacheCreateTextureFromImage(kCFAllocatorDefault,
		(CVMetalTextureCacheRef)cacheRef, (CVPixelBufferRef)pixelBuffer, NULL,
		(MTLPixelFormat)format, width, height, plane, &tex);
	if (rc != kCVReturnSuccess || tex == NULL) {
		return 0;
	}
	*mtl = (__bridge CFTypeRef)CVMetalTextureGetTexture(tex);
	return (CFTypeRef)tex;
}

static void sk_cv_flush(CFTypeRef cacheRef) {
	CVMetalTextureCacheFlush((CVMetalTextureCacheRef)cacheRef, 0);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"image"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	skerrors "github.com/go-drift/surfacekit/pkg/errors"
	"github.com/go-drift/surfacekit/pkg/gpu"
	"github.com/go-drift/surfacekit/pkg/gpu/internal/skiasurf"
	"github.com/go-drift/surfacekit/pkg/graphics"
	"github.com/go-drift/surfacekit/pkg/logx"
	"github.com/go-drift/surfacekit/pkg/skia"
)

// Name is the backend's registry name.
const Name = "metal"

// MTLPixelFormat values for the formats surfaces and planes use.
const (
	mtlR8Unorm        = 10
	mtlRG8Unorm       = 30
	mtlRGBA8Unorm     = 70
	mtlBGRA8Unorm     = 80
	mtlBGRA8UnormSRGB = 81
)

func init() {
	gpu.Register(Name, 100, func() (gpu.Backend, error) { return Backend{}, nil }, available)
}

func available() bool {
	dev := C.sk_mtl_device()
	if dev == 0 {
		return false
	}
	C.CFRelease(dev)
	return true
}

// Backend creates Metal devices.
type Backend struct{}

func (Backend) Name() string { return Name }

func (Backend) NewDevice(cfg gpu.DeviceConfig) (gpu.Device, error) {
	dev := C.sk_mtl_device()
	if dev == 0 {
		return nil, errors.New("metal: no system default device")
	}
	queue := C.sk_mtl_queue(dev)
	if queue == 0 {
		C.CFRelease(dev)
		return nil, errors.New("metal: failed to create command queue")
	}
	sk, err := skia.NewMetalContext(unsafe.Pointer(uintptr(dev)), unsafe.Pointer(uintptr(queue)))
	if err != nil {
		C.CFRelease(queue)
		C.CFRelease(dev)
		return nil, err
	}
	if err := sk.WarmupShaders("metal"); err != nil {
		logx.Logger().Warn("shader warmup failed", "backend", Name, "error", err)
	}
	return &Device{cfg: cfg, dev: dev, queue: queue, sk: sk}, nil
}

// Layer is a CAMetalLayer native window.
type Layer struct {
	ref C.CFTypeRef
}

// NewLayer wraps a CAMetalLayer. The layer is retained until Release.
func NewLayer(layer unsafe.Pointer) *Layer {
	ref := C.CFTypeRef(uintptr(layer))
	C.CFRetain(ref)
	return &Layer{ref: ref}
}

// Handle implements gpu.NativeWindow.
func (l *Layer) Handle() unsafe.Pointer { return unsafe.Pointer(uintptr(l.ref)) }

// Valid implements gpu.NativeWindow.
func (l *Layer) Valid() bool { return l.ref != 0 }

// Release drops the layer reference.
func (l *Layer) Release() {
	if l.ref != 0 {
		C.CFRelease(l.ref)
		l.ref = 0
	}
}

// Device is a Metal device, its command queue and the library's Metal
// context.
type Device struct {
	cfg   gpu.DeviceConfig
	dev   C.CFTypeRef
	queue C.CFTypeRef
	sk    *skia.Context
}

var (
	_ gpu.Device         = (*Device)(nil)
	_ gpu.ImageAssembler = (*Device)(nil)
)

func (d *Device) Poll(wait bool) { d.sk.FlushAndSubmit(wait) }

func (d *Device) Destroy() {
	if d.sk != nil {
		d.sk.Destroy()
		d.sk = nil
	}
	if d.queue != 0 {
		C.CFRelease(d.queue)
		d.queue = 0
	}
	if d.dev != 0 {
		C.CFRelease(d.dev)
		d.dev = 0
	}
}

// Queue returns the id<MTLCommandQueue>.
func (d *Device) Queue() gpucontext.Queue { return unsafe.Pointer(uintptr(d.queue)) }

func (d *Device) SurfaceFormat() gputypes.TextureFormat { return d.cfg.PixelFormat }

func (d *Device) layerFormat() int {
	switch {
	case d.cfg.PixelFormat == gputypes.TextureFormatRGBA8Unorm:
		return mtlRGBA8Unorm
	case d.cfg.SRGB:
		return mtlBGRA8UnormSRGB
	default:
		return mtlBGRA8Unorm
	}
}

type target struct {
	d        *Device
	layer    C.CFTypeRef
	drawable C.CFTypeRef
}

func (t *target) releaseDrawable() {
	if t.drawable != 0 {
		C.CFRelease(t.drawable)
		t.drawable = 0
	}
}

func (t *target) Release() { t.releaseDrawable() }

func (t *target) texture() unsafe.Pointer {
	if t.drawable == 0 {
		return nil
	}
	return unsafe.Pointer(uintptr(C.sk_mtl_drawable_texture(t.drawable)))
}

func (d *Device) CreateWindowTarget(win gpu.NativeWindow, width, height int) (gpu.Target, error) {
	ref := C.CFTypeRef(uintptr(win.Handle()))
	if ref == 0 {
		return nil, skerrors.ErrInvalidSurface
	}
	C.sk_mtl_configure_layer(ref, d.dev, C.int(d.layerFormat()), C.int(width), C.int(height), C.int(d.cfg.MaxInflight))
	return &target{d: d, layer: ref}, nil
}

// MakeCurrent acquires the layer's next drawable.
func (d *Device) MakeCurrent(t gpu.Target) error {
	tt, ok := t.(*target)
	if !ok {
		return skerrors.ErrInvalidSurface
	}
	if tt.drawable != 0 {
		return nil
	}
	tt.drawable = C.sk_mtl_next_drawable(tt.layer)
	if tt.drawable == 0 {
		return fmt.Errorf("%w: nextDrawable returned nil", skerrors.ErrNotReady)
	}
	return nil
}

func (d *Device) WrapTarget(t gpu.Target, width, height int) (gpu.Surface, error) {
	tt, ok := t.(*target)
	if !ok {
		return nil, skerrors.ErrInvalidSurface
	}
	C.sk_mtl_configure_layer(tt.layer, d.dev, C.int(d.layerFormat()), C.int(width), C.int(height), C.int(d.cfg.MaxInflight))
	return &layerSurface{t: tt, width: width, height: height}, nil
}

func (d *Device) NewOffscreenSurface(width, height int) (gpu.Surface, error) {
	s, err := d.sk.MakeOffscreenSurfaceMetal(width, height)
	if err != nil {
		return nil, err
	}
	return skiasurf.New(s), nil
}

func (d *Device) FlushAndSubmit() { d.sk.FlushAndSubmit(false) }

// SwapBuffers commits a command buffer presenting the acquired drawable.
func (d *Device) SwapBuffers(t gpu.Target) error {
	tt, ok := t.(*target)
	if !ok {
		return skerrors.ErrInvalidSurface
	}
	if tt.drawable == 0 {
		return skerrors.ErrNotReady
	}
	C.sk_mtl_present(d.queue, tt.drawable)
	tt.releaseDrawable()
	return nil
}

// layerSurface draws into whichever drawable the target holds, rebinding
// the library surface when the drawable changes.
type layerSurface struct {
	t      *target
	width  int
	height int
	bound  unsafe.Pointer
	sk     *skiasurf.Surface
}

func (s *layerSurface) Width() int  { return s.width }
func (s *layerSurface) Height() int { return s.height }

func (s *layerSurface) Canvas() graphics.Canvas {
	if s.t.drawable == 0 {
		if err := s.t.d.MakeCurrent(s.t); err != nil {
			return nopCanvas{size: graphics.Size{Width: float64(s.width), Height: float64(s.height)}}
		}
	}
	tex := s.t.texture()
	if s.sk == nil || tex != s.bound {
		s.releaseSurface()
		sk, err := s.t.d.sk.MakeMetalSurface(tex, s.width, s.height)
		if err != nil {
			logx.Logger().Error("metal surface", "error", err)
			return nopCanvas{size: graphics.Size{Width: float64(s.width), Height: float64(s.height)}}
		}
		s.sk = skiasurf.New(sk)
		s.bound = tex
	}
	return s.sk.Canvas()
}

func (s *layerSurface) Flush() {
	if s.sk != nil {
		s.sk.Flush()
	}
}

func (s *layerSurface) releaseSurface() {
	if s.sk != nil {
		s.sk.Release()
		s.sk = nil
	}
	s.bound = nil
}

func (s *layerSurface) Release() { s.releaseSurface() }

type nopCanvas struct{ size graphics.Size }

func (c nopCanvas) Size() graphics.Size                  { return c.size }
func (nopCanvas) Clear(graphics.Color)                   {}
func (nopCanvas) DrawRect(graphics.Rect, graphics.Color) {}
func (nopCanvas) DrawImage(image.Image, graphics.Rect)   {}

func (d *Device) NewTextureCache(capacity int) (gpu.TextureCache, error) {
	ref := C.sk_cv_cache(d.dev)
	if ref == 0 {
		return nil, errors.New("metal: CVMetalTextureCacheCreate failed")
	}
	return &textureCache{ref: ref}, nil
}

func (d *Device) AssembleRGBA(tex gpu.Texture, bgra bool) (*skia.Image, error) {
	return d.sk.MakeImageFromMetalTexture(tex.Native(), tex.Width(), tex.Height(), bgra)
}

func (d *Device) AssembleYUVA(textures []gpu.Texture, info skia.YUVAInfo) (*skia.Image, error) {
	ptrs := make([]unsafe.Pointer, len(textures))
	for i, t := range textures {
		if t.Native() == nil {
			return nil, fmt.Errorf("metal: plane %d has no GPU texture", i)
		}
		ptrs[i] = t.Native()
	}
	return d.sk.MakeImageFromYUVAMetalTextures(ptrs, info)
}

// textureCache imports CVPixelBuffer planes as Metal textures without
// copying.
type textureCache struct {
	ref C.CFTypeRef
}

func mtlFormat(f gputypes.TextureFormat) (int, bool) {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return mtlR8Unorm, true
	case gputypes.TextureFormatRG8Unorm:
		return mtlRG8Unorm, true
	case gputypes.TextureFormatRGBA8Unorm:
		return mtlRGBA8Unorm, true
	case gputypes.TextureFormatBGRA8Unorm:
		return mtlBGRA8Unorm, true
	}
	return 0, false
}

func (c *textureCache) TextureFromPlane(buf gpu.PlaneBuffer, plane int, format gputypes.TextureFormat) (gpu.Texture, error) {
	if c.ref == 0 {
		return nil, skerrors.ErrContextLost
	}
	native := buf.Native()
	if native == nil {
		return nil, fmt.Errorf("%w: buffer has no CVPixelBuffer", skerrors.ErrUnsupported)
	}
	mf, ok := mtlFormat(format)
	if !ok {
		return nil, fmt.Errorf("%w: plane format %v", skerrors.ErrUnsupported, format)
	}
	w, h := buf.PlaneSize(plane)
	var mtl C.CFTypeRef
	ref := C.sk_cv_texture(c.ref, native, C.int(plane), C.int(mf), C.int(w), C.int(h), &mtl)
	if ref == 0 {
		return nil, fmt.Errorf("metal: CVMetalTextureCacheCreateTextureFromImage failed for plane %d", plane)
	}
	return &texture{ref: ref, mtl: mtl, width: w, height: h, format: format}, nil
}

func (c *textureCache) Flush() {
	if c.ref != 0 {
		C.sk_cv_flush(c.ref)
	}
}

func (c *textureCache) Release() {
	if c.ref != 0 {
		C.CFRelease(c.ref)
		c.ref = 0
	}
}

type texture struct {
	ref    C.CFTypeRef
	mtl    C.CFTypeRef
	width  int
	height int
	format gputypes.TextureFormat
}

func (t *texture) Width() int                     { return t.width }
func (t *texture) Height() int                    { return t.height }
func (t *texture) Format() gputypes.TextureFormat { return t.format }
func (t *texture) Native() unsafe.Pointer         { return unsafe.Pointer(uintptr(t.mtl)) }

func (t *texture) Release() {
	if t.ref != 0 {
		C.CFRelease(t.ref)
		t.ref = 0
		t.mtl = 0
	}
}
