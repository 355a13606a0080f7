package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/go-drift/surfacekit/pkg/config"
	"github.com/go-drift/surfacekit/pkg/errors"
	"github.com/go-drift/surfacekit/pkg/logx"
)

// Registry owns the per-thread contexts of one backend.
//
// Contexts are keyed on the OS thread id and live until Close or until their
// thread calls ReleaseCurrent. When a goroutine locked with
// runtime.LockOSThread exits without unlocking, Go terminates its thread and
// the kernel may hand the id to a new thread, which would then inherit a
// context bound to the dead one. Render goroutines that exit before the
// registry is closed must call ReleaseCurrent first.
type Registry struct {
	mu       sync.Mutex
	backend  Backend
	cfg      DeviceConfig
	contexts map[uint64]*Context
	closed   bool
}

// NewRegistry creates a registry that builds contexts with b.
func NewRegistry(b Backend, cfg DeviceConfig) *Registry {
	return &Registry{
		backend:  b,
		cfg:      cfg,
		contexts: make(map[uint64]*Context),
	}
}

// NewRegistryFromConfig opens the configured backend and creates a registry
// for it.
func NewRegistryFromConfig(cfg *config.Resolved) (*Registry, error) {
	b, err := Open(cfg.Backend)
	if err != nil {
		return nil, errors.New("gpu.NewRegistryFromConfig", errors.KindConfig, err)
	}
	return NewRegistry(b, DeviceConfigFrom(cfg)), nil
}

// DeviceConfigFrom maps resolved settings onto device settings.
func DeviceConfigFrom(cfg *config.Resolved) DeviceConfig {
	dc := DeviceConfig{
		MinGLVersion: cfg.GLMinVersion,
		SwapInterval: cfg.SwapInterval,
		SRGB:         cfg.SRGB,
		PixelFormat:  ParseTextureFormat(cfg.PixelFormat),
		MaxInflight:  cfg.MaxInflight,
	}
	if cfg.TextureCache {
		dc.TextureCacheCapacity = cfg.CacheCapacity
	}
	return dc
}

// ParseTextureFormat maps a config format name to a texture format.
// sRGB variants and unknown names map to BGRA8Unorm; sRGB encoding is
// selected separately through DeviceConfig.SRGB.
func ParseTextureFormat(name string) gputypes.TextureFormat {
	switch name {
	case "rgba8unorm":
		return gputypes.TextureFormatRGBA8Unorm
	default:
		return gputypes.TextureFormatBGRA8Unorm
	}
}

// Backend returns the registry's backend.
func (r *Registry) Backend() Backend { return r.backend }

// Current returns the calling OS thread's context, creating it on first use.
// The caller must be locked to its OS thread.
func (r *Registry) Current() (*Context, error) {
	tid := ThreadID()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errors.New("gpu.Current", errors.KindGPU, errors.ErrContextLost)
	}
	if ctx, ok := r.contexts[tid]; ok {
		return ctx, nil
	}

	dev, err := r.backend.NewDevice(r.cfg)
	if err != nil {
		return nil, &errors.SurfaceError{
			Op:      "gpu.Current",
			Kind:    errors.KindGPU,
			Backend: r.backend.Name(),
			Err:     fmt.Errorf("create device: %w", err),
		}
	}
	ctx := &Context{
		backend: r.backend.Name(),
		thread:  tid,
		device:  dev,
		cfg:     r.cfg,
	}
	if b, ok := dev.(ProviderBinder); ok {
		b.BindProvider(ctx)
	}
	r.contexts[tid] = ctx
	logx.Logger().Debug("gpu context created", "backend", ctx.backend, "thread", tid)
	return ctx, nil
}

// ReleaseCurrent destroys the calling thread's context, if any. The next
// Current call on this thread creates a fresh one.
func (r *Registry) ReleaseCurrent() {
	tid := ThreadID()
	r.mu.Lock()
	ctx, ok := r.contexts[tid]
	delete(r.contexts, tid)
	r.mu.Unlock()
	if ok {
		ctx.destroy()
		logx.Logger().Debug("gpu context released", "backend", ctx.backend, "thread", tid)
	}
}

// Len returns the number of live contexts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}

// Close destroys every context. Later Current calls fail.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for tid, ctx := range r.contexts {
		ctx.destroy()
		delete(r.contexts, tid)
	}
}
