// Package surface binds native windows to GPU render targets.
package surface

import (
	"fmt"

	"github.com/go-drift/surfacekit/pkg/errors"
	"github.com/go-drift/surfacekit/pkg/gpu"
	"github.com/go-drift/surfacekit/pkg/logx"
)

// Releaser is a secondary native handle a holder owns alongside its window,
// such as a platform texture object.
type Releaser interface {
	Release()
}

// Option configures a WindowHolder.
type Option func(*WindowHolder)

// WithSecondary hands the holder an extra handle to release with the window.
func WithSecondary(r Releaser) Option {
	return func(h *WindowHolder) { h.secondary = r }
}

// WindowHolder couples a native window with the render target drawn into
// it. All methods must run on one OS thread, the one the surface is first
// built on.
type WindowHolder struct {
	registry  *gpu.Registry
	window    *Window
	secondary Releaser

	width  int
	height int

	owner   *gpu.Context
	target  gpu.Target
	surface gpu.Surface

	released bool
}

// Width returns the stored width in pixels.
func (h *WindowHolder) Width() int { return h.width }

// Height returns the stored height in pixels.
func (h *WindowHolder) Height() int { return h.height }

// Window returns the held window.
func (h *WindowHolder) Window() *Window { return h.window }

// context returns the calling thread's GPU context, which must be the one
// the target was built on.
func (h *WindowHolder) context(op string) (*gpu.Context, error) {
	ctx, err := h.registry.Current()
	if err != nil {
		return nil, err
	}
	if h.owner != nil && ctx != h.owner {
		return nil, &errors.SurfaceError{
			Op:      op,
			Kind:    errors.KindGPU,
			Backend: ctx.Backend(),
			Err:     fmt.Errorf("%w: surface bound to thread %d", errors.ErrWrongThread, h.owner.Thread()),
		}
	}
	return ctx, nil
}

// Surface returns the drawable surface, building it on first use after
// creation or a resize. It returns nil when the window is gone, a
// dimension is zero or the GPU fails; failures are reported.
func (h *WindowHolder) Surface() gpu.Surface {
	if h.released {
		return nil
	}
	if h.surface != nil {
		return h.surface
	}
	if h.width <= 0 || h.height <= 0 || !h.window.Valid() {
		return nil
	}
	ctx, err := h.context("surface.Surface")
	if err != nil {
		errors.Report(asSurfaceError("surface.Surface", err))
		return nil
	}
	if h.target == nil {
		t, err := ctx.CreateWindowTarget(h.window.Native(), h.width, h.height)
		if err != nil {
			errors.Report(asSurfaceError("surface.Surface", err))
			return nil
		}
		h.target = t
		h.owner = ctx
	}
	s, err := ctx.WrapTarget(h.target, h.width, h.height)
	if err != nil {
		errors.Report(asSurfaceError("surface.Surface", err))
		return nil
	}
	h.surface = s
	logx.Logger().Debug("surface built", "backend", ctx.Backend(), "width", h.width, "height", h.height)
	return s
}

// Resize stores new dimensions and drops the cached surface so the next
// Surface call rebuilds it at the new size. The render target is kept.
func (h *WindowHolder) Resize(width, height int) {
	h.width = width
	h.height = height
	if h.surface != nil {
		h.surface.Release()
		h.surface = nil
	}
}

// MakeCurrent binds the calling thread's GPU context to the window's
// render target. It returns false when there is no target or binding fails.
func (h *WindowHolder) MakeCurrent() bool {
	if h.released || h.target == nil {
		return false
	}
	ctx, err := h.context("surface.MakeCurrent")
	if err == nil {
		err = ctx.MakeCurrent(h.target)
	}
	if err != nil {
		errors.Report(asSurfaceError("surface.MakeCurrent", err))
		return false
	}
	return true
}

// Present flushes drawing and shows the frame in the window.
func (h *WindowHolder) Present() bool {
	if h.released || h.target == nil {
		return false
	}
	ctx, err := h.context("surface.Present")
	if err != nil {
		errors.Report(asSurfaceError("surface.Present", err))
		return false
	}
	if h.surface != nil {
		h.surface.Flush()
	}
	if err := ctx.Present(h.target); err != nil {
		errors.Report(asSurfaceError("surface.Present", err))
		return false
	}
	return true
}

// Release frees the surface, the target, the window reference and any
// secondary handle. It is safe to call more than once.
func (h *WindowHolder) Release() {
	if h.released {
		return
	}
	h.released = true
	if h.surface != nil {
		h.surface.Release()
		h.surface = nil
	}
	if h.target != nil {
		h.target.Release()
		h.target = nil
	}
	h.window.Release()
	if h.secondary != nil {
		h.secondary.Release()
		h.secondary = nil
	}
}

func asSurfaceError(op string, err error) *errors.SurfaceError {
	var se *errors.SurfaceError
	if errors.As(err, &se) {
		return se
	}
	return errors.New(op, errors.KindGPU, err)
}
