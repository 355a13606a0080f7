package surface

import (
	"github.com/go-drift/surfacekit/pkg/errors"
	"github.com/go-drift/surfacekit/pkg/gpu"
)

// MakeWindowedSurface creates a holder owning win. The GPU target is built
// lazily by the first Surface call on the rendering thread, so this never
// fails; a nil or invalid window yields a holder whose Surface is nil.
func MakeWindowedSurface(reg *gpu.Registry, win *Window, width, height int, opts ...Option) *WindowHolder {
	h := &WindowHolder{
		registry: reg,
		window:   win,
		width:    width,
		height:   height,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// MakeOffscreenSurface creates a surface with no window on the calling
// thread's GPU context.
func MakeOffscreenSurface(reg *gpu.Registry, width, height int) (gpu.Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New("surface.MakeOffscreenSurface", errors.KindNotReady, errors.ErrInvalidSurface)
	}
	ctx, err := reg.Current()
	if err != nil {
		return nil, err
	}
	return ctx.NewOffscreenSurface(width, height)
}
