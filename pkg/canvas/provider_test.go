package canvas

import (
	stderrors "errors"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/surfacekit/pkg/errors"
	"github.com/go-drift/surfacekit/pkg/gpu"
	"github.com/go-drift/surfacekit/pkg/gpu/soft"
	"github.com/go-drift/surfacekit/pkg/graphics"
	"github.com/go-drift/surfacekit/pkg/surface"
)

type testSurface struct {
	win      *soft.Window
	retained int
	released int
	acquire  error
}

func (s *testSurface) AcquireWindow() (*surface.Window, error) {
	if s.acquire != nil {
		return nil, s.acquire
	}
	s.win.Acquire()
	return surface.AcquireWindow(s.win, s.win.Release), nil
}

func (s *testSurface) Retain()  { s.retained++ }
func (s *testSurface) Release() { s.released++ }

type texSurface struct {
	testSurface
	updates int
	fail    bool
}

func (s *texSurface) UpdateTexImage() error {
	s.updates++
	if s.fail {
		panic("surface abandoned")
	}
	return nil
}

type errorCounter struct {
	errs   atomic.Int32
	panics atomic.Int32
}

func (h *errorCounter) HandleError(*errors.SurfaceError) { h.errs.Add(1) }
func (h *errorCounter) HandlePanic(*errors.PanicError)   { h.panics.Add(1) }

type fixture struct {
	provider *Provider
	redraws  int
	errs     *errorCounter
	device   func() *soft.Device
}

func setup(t *testing.T) *fixture {
	t.Helper()
	runtime.LockOSThread()
	t.Cleanup(runtime.UnlockOSThread)

	errs := &errorCounter{}
	old := errors.SetHandler(errs)
	t.Cleanup(func() { errors.SetHandler(old) })

	reg := gpu.NewRegistry(soft.Backend{}, gpu.DeviceConfig{})
	t.Cleanup(reg.Close)

	f := &fixture{errs: errs}
	f.provider = NewProvider(reg, func() { f.redraws++ })
	f.device = func() *soft.Device {
		ctx, err := reg.Current()
		require.NoError(t, err)
		return ctx.Raw().(*soft.Device)
	}
	return f
}

func newSurface(w, h int) *testSurface {
	return &testSurface{win: soft.NewWindow(w, h)}
}

func TestRenderBeforeAvailable(t *testing.T) {
	f := setup(t)
	called := false
	assert.False(t, f.provider.RenderToCanvas(func(graphics.Canvas) { called = true }))
	assert.False(t, called, "draw ran before SurfaceAvailable")
	assert.Zero(t, f.provider.ScaledWidth())
	assert.Zero(t, f.provider.ScaledHeight())
	assert.Equal(t, StateUnattached, f.provider.State())
}

func TestAvailableRenderScenario(t *testing.T) {
	f := setup(t)
	ns := newSurface(100, 200)
	f.provider.SurfaceAvailable(ns, 100, 200)

	assert.Equal(t, 1, f.redraws)
	assert.Zero(t, ns.win.Presented(), "SurfaceAvailable must not draw synchronously")
	assert.Equal(t, 100, f.provider.ScaledWidth())
	assert.Equal(t, 200, f.provider.ScaledHeight())
	assert.Equal(t, StateAvailable, f.provider.State())

	calls := 0
	ok := f.provider.RenderToCanvas(func(c graphics.Canvas) {
		calls++
		require.NotNil(t, c)
		assert.Equal(t, graphics.Size{Width: 100, Height: 200}, c.Size())
		assert.Equal(t, 100, f.provider.ScaledWidth())
		c.Clear(graphics.ColorBlue)
	})
	require.True(t, ok)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, ns.win.Presented())
	assert.Equal(t, graphics.ColorBlue, graphics.Pixel(ns.win.Frame(), 50, 100))
	assert.Equal(t, 1, ns.retained)
}

func TestRenderNilCallback(t *testing.T) {
	f := setup(t)
	f.provider.SurfaceAvailable(newSurface(10, 10), 10, 10)
	assert.False(t, f.provider.RenderToCanvas(nil))
	assert.Equal(t, soft.Stats{}, f.device().Stats(), "nil callback performed GPU work")
}

func TestZeroSizeChangeIgnored(t *testing.T) {
	f := setup(t)
	f.provider.SurfaceAvailable(newSurface(100, 200), 100, 200)
	require.True(t, f.provider.RenderToCanvas(func(graphics.Canvas) {}))
	redraws := f.redraws

	for _, size := range [][2]int{{0, 0}, {0, 50}, {50, 0}, {-1, 10}} {
		f.provider.SurfaceSizeChanged(size[0], size[1])
		assert.Equal(t, 100, f.provider.ScaledWidth(), "size %v", size)
		assert.Equal(t, 200, f.provider.ScaledHeight(), "size %v", size)
	}
	assert.Equal(t, redraws, f.redraws)
	assert.True(t, f.provider.RenderToCanvas(func(graphics.Canvas) {}))
}

func TestSizeChanged(t *testing.T) {
	f := setup(t)
	f.provider.SurfaceAvailable(newSurface(100, 200), 100, 200)
	f.provider.RenderToCanvas(func(graphics.Canvas) {})

	f.provider.SurfaceSizeChanged(300, 150)
	assert.Equal(t, 2, f.redraws)
	assert.Equal(t, 300, f.provider.ScaledWidth())
	assert.Equal(t, 150, f.provider.ScaledHeight())

	var got graphics.Size
	f.provider.RenderToCanvas(func(c graphics.Canvas) { got = c.Size() })
	assert.Equal(t, graphics.Size{Width: 300, Height: 150}, got)
}

func TestSizeChangedUnattached(t *testing.T) {
	f := setup(t)
	f.provider.SurfaceSizeChanged(10, 10)
	assert.Zero(t, f.redraws)
	assert.Zero(t, f.provider.ScaledWidth())
}

func TestDestroyedStopsRendering(t *testing.T) {
	f := setup(t)
	ns := newSurface(10, 10)
	f.provider.SurfaceAvailable(ns, 10, 10)
	f.provider.SurfaceDestroyed()

	assert.Equal(t, 1, ns.released)
	assert.Zero(t, ns.win.Refs())
	assert.Equal(t, StateDestroyed, f.provider.State())
	called := false
	for i := 0; i < 3; i++ {
		assert.False(t, f.provider.RenderToCanvas(func(graphics.Canvas) { called = true }))
	}
	assert.False(t, called, "draw ran after SurfaceDestroyed")
	assert.Zero(t, f.provider.ScaledWidth())

	f.provider.SurfaceDestroyed()
	assert.Equal(t, 1, ns.released, "second SurfaceDestroyed released again")

	f.provider.SurfaceAvailable(newSurface(20, 20), 20, 20)
	assert.True(t, f.provider.RenderToCanvas(func(graphics.Canvas) {}))
}

func TestDestroyedBeforeAvailable(t *testing.T) {
	f := setup(t)
	f.provider.SurfaceDestroyed()
	assert.Equal(t, StateUnattached, f.provider.State())
}

func TestAvailableTwiceReleasesPrevious(t *testing.T) {
	f := setup(t)
	first := newSurface(10, 10)
	f.provider.SurfaceAvailable(first, 10, 10)
	f.provider.SurfaceAvailable(newSurface(20, 20), 20, 20)
	assert.Equal(t, 1, first.released)
	assert.Zero(t, first.win.Refs())
	assert.Equal(t, 20, f.provider.ScaledWidth())
}

func TestMakeCurrentFailureSkipsDraw(t *testing.T) {
	f := setup(t)
	f.provider.SurfaceAvailable(newSurface(10, 10), 10, 10)
	f.device().LoseContext()

	called := false
	assert.False(t, f.provider.RenderToCanvas(func(graphics.Canvas) { called = true }))
	assert.False(t, called, "draw ran after MakeCurrent failed")
	assert.NotZero(t, f.errs.errs.Load(), "MakeCurrent failure not reported")
}

func TestWindowGoneReturnsFalse(t *testing.T) {
	f := setup(t)
	ns := &testSurface{win: soft.NewWindow(10, 10), acquire: stderrors.New("no window")}
	f.provider.SurfaceAvailable(ns, 10, 10)
	assert.False(t, f.provider.RenderToCanvas(func(graphics.Canvas) {}))
	assert.Equal(t, int32(1), f.errs.errs.Load())
}

func TestTexImageUpdate(t *testing.T) {
	f := setup(t)
	ns := &texSurface{testSurface: testSurface{win: soft.NewWindow(10, 10)}}
	f.provider.SurfaceAvailable(ns, 10, 10)

	f.provider.RenderToCanvas(func(graphics.Canvas) {})
	assert.Equal(t, 1, ns.updates)

	ns.fail = true
	assert.True(t, f.provider.RenderToCanvas(func(graphics.Canvas) {}), "a failing texture update should be suppressed")
}

func TestDrawPanicDropsFrame(t *testing.T) {
	f := setup(t)
	ns := newSurface(10, 10)
	f.provider.SurfaceAvailable(ns, 10, 10)
	assert.False(t, f.provider.RenderToCanvas(func(graphics.Canvas) { panic("boom") }))
	assert.Equal(t, int32(1), f.errs.panics.Load())
	assert.Zero(t, ns.win.Presented(), "a panicking frame must not be presented")
}

func TestDrawCallsBackIntoProvider(t *testing.T) {
	f := setup(t)
	ns := newSurface(40, 30)
	f.provider.SurfaceAvailable(ns, 40, 30)

	var state State
	ok := f.provider.RenderToCanvas(func(c graphics.Canvas) {
		state = f.provider.State()
		c.Clear(graphics.ColorRed)
		f.provider.SurfaceSizeChanged(80, 60)
	})
	assert.True(t, ok)
	assert.Equal(t, StateAvailable, state)
	assert.Equal(t, 80, f.provider.ScaledWidth())
	assert.Equal(t, 1, ns.win.Presented())
}

func TestDestroyFromDrawDropsFrame(t *testing.T) {
	f := setup(t)
	ns := newSurface(10, 10)
	f.provider.SurfaceAvailable(ns, 10, 10)

	ok := f.provider.RenderToCanvas(func(graphics.Canvas) { f.provider.SurfaceDestroyed() })
	assert.False(t, ok)
	assert.Equal(t, StateDestroyed, f.provider.State())
	assert.Zero(t, ns.win.Presented())
	assert.Equal(t, 1, ns.released)
	assert.Zero(t, ns.win.Refs())
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateUnattached: "unattached",
		StateAvailable:  "available",
		StateDestroyed:  "destroyed",
		State(9):        "State(9)",
	} {
		assert.Equal(t, want, s.String())
	}
}
