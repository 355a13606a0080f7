// Package soft is the CPU backend. It renders with gg and presents into
// in-memory windows, so surfaces work without a GPU or a display.
package soft

import (
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/integration/ggcanvas"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/go-drift/surfacekit/pkg/errors"
	"github.com/go-drift/surfacekit/pkg/gpu"
	"github.com/go-drift/surfacekit/pkg/graphics"
)

// Name is the backend's registry name.
const Name = "software"

func init() {
	gpu.Register(Name, 10, func() (gpu.Backend, error) { return Backend{}, nil }, nil)
}

// Backend creates software devices.
type Backend struct{}

func (Backend) Name() string { return Name }

func (Backend) NewDevice(cfg gpu.DeviceConfig) (gpu.Device, error) {
	format := cfg.PixelFormat
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatRGBA8Unorm
	}
	return &Device{format: format}, nil
}

// Stats counts device operations.
type Stats struct {
	MakeCurrent int
	Flushes     int
	Swaps       int
	Polls       int
	// Waits counts blocking polls.
	Waits int
}

// Queue tracks command batches. Rendering is synchronous, so a batch is
// complete once polled.
type Queue struct {
	mu        sync.Mutex
	submitted uint64
	completed uint64
}

func (q *Queue) submit() {
	q.mu.Lock()
	q.submitted++
	q.mu.Unlock()
}

func (q *Queue) retire() {
	q.mu.Lock()
	q.completed = q.submitted
	q.mu.Unlock()
}

// Pending returns the number of submitted batches not yet polled.
func (q *Queue) Pending() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.submitted - q.completed
}

// Device is a software device.
type Device struct {
	mu       sync.Mutex
	format   gputypes.TextureFormat
	queue    Queue
	provider gpucontext.DeviceProvider
	current  *target
	stats    Stats
	lost     bool
}

var (
	_ gpu.Device           = (*Device)(nil)
	_ gpu.ProviderBinder   = (*Device)(nil)
	_ gpu.AdapterDescriber = (*Device)(nil)
)

func (d *Device) Poll(wait bool) {
	d.queue.retire()
	d.mu.Lock()
	d.stats.Polls++
	if wait {
		d.stats.Waits++
	}
	d.mu.Unlock()
}

// BindProvider sets the provider surfaces are created through.
func (d *Device) BindProvider(p gpucontext.DeviceProvider) {
	d.mu.Lock()
	d.provider = p
	d.mu.Unlock()
}

func (d *Device) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "surfacekit software rasterizer", Type: gpucontext.AdapterTypeSoftware}
}

func (d *Device) Destroy() {
	d.mu.Lock()
	d.current = nil
	d.mu.Unlock()
}

func (d *Device) Queue() gpucontext.Queue { return &d.queue }

func (d *Device) SurfaceFormat() gputypes.TextureFormat { return d.format }

// Stats returns operation counts.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// LoseContext makes MakeCurrent and SwapBuffers fail until Restore.
func (d *Device) LoseContext() {
	d.mu.Lock()
	d.lost = true
	d.mu.Unlock()
}

// Restore undoes LoseContext.
func (d *Device) Restore() {
	d.mu.Lock()
	d.lost = false
	d.mu.Unlock()
}

type target struct {
	win     *Window
	surface *surface
}

func (t *target) Release() {
	t.surface = nil
}

func (d *Device) CreateWindowTarget(win gpu.NativeWindow, width, height int) (gpu.Target, error) {
	w, ok := win.(*Window)
	if !ok {
		return nil, fmt.Errorf("software backend cannot present to %T", win)
	}
	return &target{win: w}, nil
}

func (d *Device) MakeCurrent(t gpu.Target) error {
	tt, ok := t.(*target)
	if !ok {
		return errors.ErrInvalidSurface
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return errors.ErrContextLost
	}
	if !tt.win.Valid() {
		return errors.ErrInvalidSurface
	}
	d.current = tt
	d.stats.MakeCurrent++
	return nil
}

func (d *Device) WrapTarget(t gpu.Target, width, height int) (gpu.Surface, error) {
	tt, ok := t.(*target)
	if !ok {
		return nil, errors.ErrInvalidSurface
	}
	if width <= 0 || height <= 0 {
		return nil, errors.ErrInvalidSurface
	}
	s, err := d.newSurface(width, height)
	if err != nil {
		return nil, err
	}
	tt.surface = s
	return s, nil
}

func (d *Device) NewOffscreenSurface(width, height int) (gpu.Surface, error) {
	return d.newSurface(width, height)
}

func (d *Device) FlushAndSubmit() {
	d.queue.submit()
	d.mu.Lock()
	d.stats.Flushes++
	d.mu.Unlock()
}

func (d *Device) SwapBuffers(t gpu.Target) error {
	tt, ok := t.(*target)
	if !ok {
		return errors.ErrInvalidSurface
	}
	d.mu.Lock()
	lost := d.lost
	d.mu.Unlock()
	if lost {
		return errors.ErrContextLost
	}
	if tt.surface == nil {
		return errors.ErrNotReady
	}
	if !tt.win.present(tt.surface.Snapshot()) {
		return errors.ErrInvalidSurface
	}
	d.mu.Lock()
	d.stats.Swaps++
	d.mu.Unlock()
	return nil
}

func (d *Device) NewTextureCache(capacity int) (gpu.TextureCache, error) {
	return NewTextureCache(capacity), nil
}

// selfProvider stands in for the owning Context on devices created outside
// a registry.
type selfProvider struct{ d *Device }

func (p selfProvider) Device() gpucontext.Device             { return p.d }
func (p selfProvider) Queue() gpucontext.Queue               { return p.d.Queue() }
func (p selfProvider) Adapter() gpucontext.Adapter           { return nil }
func (p selfProvider) SurfaceFormat() gputypes.TextureFormat { return p.d.format }
func (p selfProvider) AdapterInfo() gpucontext.AdapterInfo   { return p.d.AdapterInfo() }

func (d *Device) newSurface(width, height int) (*surface, error) {
	d.mu.Lock()
	p := d.provider
	d.mu.Unlock()
	if p == nil {
		p = selfProvider{d}
	}
	gc, err := ggcanvas.New(p, width, height)
	if err != nil {
		return nil, err
	}
	dc := gc.Context()
	return &surface{gc: gc, dc: dc, canvas: graphics.NewRasterCanvas(dc)}, nil
}

// surface is a gg canvas bound to the device's provider.
type surface struct {
	gc     *ggcanvas.Canvas
	dc     *gg.Context
	canvas *graphics.RasterCanvas
}

var (
	_ gpu.Surface     = (*surface)(nil)
	_ gpu.Snapshotter = (*surface)(nil)
)

// Provider returns the DeviceProvider the surface was created with, or nil
// once released.
func (s *surface) Provider() gpucontext.DeviceProvider { return s.gc.Provider() }

func (s *surface) Width() int  { return s.dc.Width() }
func (s *surface) Height() int { return s.dc.Height() }

func (s *surface) Canvas() graphics.Canvas { return s.canvas }

func (s *surface) Flush() {
	_ = s.dc.FlushGPU()
	s.gc.MarkDirty()
}

func (s *surface) Release() {
	_ = s.gc.Close()
}

// Snapshot copies the surface's pixels.
func (s *surface) Snapshot() *image.RGBA {
	img := s.dc.Image()
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	return graphics.ScaleInto(img, s.dc.Width(), s.dc.Height())
}
