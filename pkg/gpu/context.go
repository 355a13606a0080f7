package gpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/go-drift/surfacekit/pkg/errors"
)

var _ gpucontext.DeviceProvider = (*Context)(nil)

// Context is the GPU state owned by one OS thread.
type Context struct {
	backend string
	thread  uint64
	device  Device
	cfg     DeviceConfig
	cache   TextureCache

	// inflight counts frames presented since the queue last drained.
	inflight int
}

// Backend returns the backend name.
func (c *Context) Backend() string { return c.backend }

// Thread returns the id of the owning OS thread.
func (c *Context) Thread() uint64 { return c.thread }

// Raw returns the backend device.
func (c *Context) Raw() Device { return c.device }

// Device implements gpucontext.DeviceProvider.
func (c *Context) Device() gpucontext.Device { return c.device }

// Queue implements gpucontext.DeviceProvider.
func (c *Context) Queue() gpucontext.Queue { return c.device.Queue() }

// Adapter implements gpucontext.DeviceProvider.
func (c *Context) Adapter() gpucontext.Adapter {
	if a, ok := c.device.(gpucontext.Adapter); ok {
		return a
	}
	return nil
}

// AdapterInfo implements gpucontext.DeviceProvider. Devices that cannot
// describe their adapter report the backend name with an unknown type.
func (c *Context) AdapterInfo() gpucontext.AdapterInfo {
	if d, ok := c.device.(AdapterDescriber); ok {
		return d.AdapterInfo()
	}
	return gpucontext.AdapterInfo{Name: c.backend, Type: gpucontext.AdapterTypeUnknown}
}

// SurfaceFormat implements gpucontext.DeviceProvider.
func (c *Context) SurfaceFormat() gputypes.TextureFormat { return c.device.SurfaceFormat() }

// OnOwnerThread reports whether the caller runs on the owning OS thread.
func (c *Context) OnOwnerThread() bool {
	return ThreadID() == c.thread
}

func (c *Context) checkThread(op string) error {
	if !c.OnOwnerThread() {
		return c.wrap(op, errors.KindGPU, fmt.Errorf("%w: owner %d, caller %d", errors.ErrWrongThread, c.thread, ThreadID()))
	}
	return nil
}

func (c *Context) wrap(op string, kind errors.ErrorKind, err error) error {
	return &errors.SurfaceError{Op: op, Kind: kind, Backend: c.backend, Err: err}
}

// CreateWindowTarget creates the GPU-interop surface for win.
func (c *Context) CreateWindowTarget(win NativeWindow, width, height int) (Target, error) {
	if err := c.checkThread("gpu.CreateWindowTarget"); err != nil {
		return nil, err
	}
	if win == nil || !win.Valid() {
		return nil, c.wrap("gpu.CreateWindowTarget", errors.KindNotReady, errors.ErrInvalidSurface)
	}
	t, err := c.device.CreateWindowTarget(win, width, height)
	if err != nil {
		return nil, c.wrap("gpu.CreateWindowTarget", errors.KindGPU, err)
	}
	return t, nil
}

// WrapTarget wraps t as a drawable surface.
func (c *Context) WrapTarget(t Target, width, height int) (Surface, error) {
	if err := c.checkThread("gpu.WrapTarget"); err != nil {
		return nil, err
	}
	s, err := c.device.WrapTarget(t, width, height)
	if err != nil {
		return nil, c.wrap("gpu.WrapTarget", errors.KindGPU, err)
	}
	return s, nil
}

// NewOffscreenSurface creates a drawable surface with no presentation target.
func (c *Context) NewOffscreenSurface(width, height int) (Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, c.wrap("gpu.NewOffscreenSurface", errors.KindNotReady, errors.ErrInvalidSurface)
	}
	if err := c.checkThread("gpu.NewOffscreenSurface"); err != nil {
		return nil, err
	}
	s, err := c.device.NewOffscreenSurface(width, height)
	if err != nil {
		return nil, c.wrap("gpu.NewOffscreenSurface", errors.KindGPU, err)
	}
	return s, nil
}

// MakeCurrent binds this context to t.
func (c *Context) MakeCurrent(t Target) error {
	if err := c.checkThread("gpu.MakeCurrent"); err != nil {
		return err
	}
	if t == nil {
		return c.wrap("gpu.MakeCurrent", errors.KindNotReady, errors.ErrInvalidSurface)
	}
	if err := c.device.MakeCurrent(t); err != nil {
		return c.wrap("gpu.MakeCurrent", errors.KindGPU, err)
	}
	return nil
}

// Present flushes all pending GPU commands and swaps t's buffers. Once
// MaxInflight frames are queued it blocks until the device drains them;
// otherwise it polls for completed work without waiting.
func (c *Context) Present(t Target) error {
	if err := c.checkThread("gpu.Present"); err != nil {
		return err
	}
	if t == nil {
		return c.wrap("gpu.Present", errors.KindNotReady, errors.ErrInvalidSurface)
	}
	c.device.FlushAndSubmit()
	c.pace()
	if err := c.device.SwapBuffers(t); err != nil {
		return c.wrap("gpu.Present", errors.KindGPU, err)
	}
	return nil
}

func (c *Context) pace() {
	c.inflight++
	if c.cfg.MaxInflight > 0 && c.inflight >= c.cfg.MaxInflight {
		c.device.Poll(true)
		c.inflight = 0
		return
	}
	c.device.Poll(false)
}

// TextureCache returns the context's shared plane texture cache, creating
// it on first use.
func (c *Context) TextureCache() (TextureCache, error) {
	if c.cache != nil {
		return c.cache, nil
	}
	cache, err := c.device.NewTextureCache(c.cfg.TextureCacheCapacity)
	if err != nil {
		return nil, c.wrap("gpu.TextureCache", errors.KindGPU, err)
	}
	c.cache = cache
	return cache, nil
}

func (c *Context) destroy() {
	if c.cache != nil {
		c.cache.Release()
		c.cache = nil
	}
	if c.device != nil {
		c.device.Destroy()
		c.device = nil
	}
}
