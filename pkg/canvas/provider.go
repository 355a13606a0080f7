// Package canvas drives a host view's drawing: it tracks the native
// surface's lifecycle and runs one synchronous draw per renderToCanvas call.
package canvas

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-drift/surfacekit/pkg/errors"
	"github.com/go-drift/surfacekit/pkg/gpu"
	"github.com/go-drift/surfacekit/pkg/graphics"
	"github.com/go-drift/surfacekit/pkg/logx"
	"github.com/go-drift/surfacekit/pkg/surface"
)

// NativeSurface is the host's handle to an OS view surface (an Android
// SurfaceTexture, an iOS layer host, a test window).
type NativeSurface interface {
	// AcquireWindow returns a new owning reference to the surface's window.
	AcquireWindow() (*surface.Window, error)
	// Retain takes the provider's reference to the surface.
	Retain()
	// Release drops the reference taken by Retain.
	Release()
}

// TexImageUpdater is implemented by native surfaces that must latch their
// latest image before each draw.
type TexImageUpdater interface {
	UpdateTexImage() error
}

// State is the provider's surface lifecycle state.
type State int32

const (
	// StateUnattached means no surface has been made available yet.
	StateUnattached State = iota
	// StateAvailable means a surface is attached and can be drawn.
	StateAvailable
	// StateDestroyed means the last surface was torn down.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUnattached:
		return "unattached"
	case StateAvailable:
		return "available"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Provider owns one view's windowed surface.
//
// Lifecycle calls arrive from the host's UI thread and RenderToCanvas from
// its render thread; the host serializes them. The lock only guards the
// attached surface, never a draw, so the draw callback may call back into
// the provider, including SurfaceSizeChanged and SurfaceDestroyed.
type Provider struct {
	registry *gpu.Registry
	redraw   func()

	mu     sync.Mutex
	state  State
	holder *surface.WindowHolder
	native NativeSurface

	width  atomic.Int64
	height atomic.Int64
}

// NewProvider creates a provider drawing with reg's contexts. redraw is
// invoked when the host should schedule a RenderToCanvas call; it may be nil.
func NewProvider(reg *gpu.Registry, redraw func()) *Provider {
	return &Provider{registry: reg, redraw: redraw}
}

// State returns the lifecycle state.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// ScaledWidth returns the surface width in pixels, or 0 when no surface is
// attached.
func (p *Provider) ScaledWidth() int { return int(p.width.Load()) }

// ScaledHeight returns the surface height in pixels, or 0 when no surface is
// attached.
func (p *Provider) ScaledHeight() int { return int(p.height.Load()) }

func (p *Provider) requestRedraw() {
	if p.redraw != nil {
		p.redraw()
	}
}

// RenderToCanvas draws one frame. It returns false without calling draw
// when no surface is attached or draw is nil, and without presenting when
// the surface is not ready or cannot be made current. draw runs exactly
// once, synchronously, before the frame is presented; a panic in draw is
// reported and the frame is dropped. A surface destroyed or replaced from
// inside draw is not presented.
func (p *Provider) RenderToCanvas(draw func(graphics.Canvas)) bool {
	if draw == nil {
		return false
	}
	p.mu.Lock()
	holder, native := p.holder, p.native
	p.mu.Unlock()
	if holder == nil {
		return false
	}

	s := holder.Surface()
	if s == nil {
		return false
	}
	if !holder.MakeCurrent() {
		return false
	}
	if u, ok := native.(TexImageUpdater); ok {
		errors.Suppress("canvas.UpdateTexImage", u.UpdateTexImage)
	}

	if !p.draw(draw, s.Canvas()) {
		return false
	}
	if !p.attached(holder) {
		logx.Logger().Debug("surface detached during draw; frame dropped")
		return false
	}
	return holder.Present()
}

func (p *Provider) attached(h *surface.WindowHolder) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.holder == h
}

func (p *Provider) draw(draw func(graphics.Canvas), c graphics.Canvas) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			errors.ReportPanic(&errors.PanicError{
				Op:         "canvas.RenderToCanvas",
				Value:      r,
				StackTrace: errors.CaptureStack(),
				Timestamp:  time.Now(),
			})
			ok = false
		}
	}()
	draw(c)
	return true
}

// SurfaceAvailable attaches the host's surface. The provider takes
// ownership of ns until SurfaceDestroyed. It requests a redraw rather than
// drawing. A replaced native handle must go through SurfaceDestroyed first;
// calling SurfaceAvailable while attached tears the old surface down.
func (p *Provider) SurfaceAvailable(ns NativeSurface, width, height int) {
	p.mu.Lock()
	if p.holder != nil {
		logx.Logger().Warn("surface available while attached; releasing previous surface")
		p.teardown()
	}

	var win *surface.Window
	if ns != nil {
		ns.Retain()
		w, err := ns.AcquireWindow()
		if err != nil {
			errors.Report(errors.New("canvas.SurfaceAvailable", errors.KindPlatform, err))
		} else {
			win = w
		}
	}
	p.native = ns
	p.holder = surface.MakeWindowedSurface(p.registry, win, width, height)
	p.state = StateAvailable
	p.width.Store(int64(width))
	p.height.Store(int64(height))
	p.mu.Unlock()

	logx.Logger().Debug("surface available", "width", width, "height", height)
	p.requestRedraw()
}

// SurfaceDestroyed releases the surface's GPU and native resources. It is a
// no-op when nothing is attached.
func (p *Provider) SurfaceDestroyed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.holder == nil && p.native == nil {
		return
	}
	p.teardown()
	p.state = StateDestroyed
	logx.Logger().Debug("surface destroyed")
}

func (p *Provider) teardown() {
	if p.holder != nil {
		p.holder.Release()
		p.holder = nil
	}
	if p.native != nil {
		p.native.Release()
		p.native = nil
	}
	p.width.Store(0)
	p.height.Store(0)
}

// SurfaceSizeChanged resizes the attached surface and requests a redraw.
// Sizes with a zero or negative dimension are transient and ignored, as is
// a resize with no surface attached.
func (p *Provider) SurfaceSizeChanged(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	p.mu.Lock()
	if p.holder == nil {
		p.mu.Unlock()
		return
	}
	p.holder.Resize(width, height)
	p.width.Store(int64(width))
	p.height.Store(int64(height))
	p.mu.Unlock()

	p.requestRedraw()
}
