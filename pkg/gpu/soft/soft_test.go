package soft

import (
	"math"
	"runtime"
	"testing"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/surfacekit/pkg/errors"
	"github.com/go-drift/surfacekit/pkg/gpu"
	"github.com/go-drift/surfacekit/pkg/graphics"
)

func newContext(t *testing.T) *gpu.Context {
	t.Helper()
	r := gpu.NewRegistry(Backend{}, gpu.DeviceConfig{TextureCacheCapacity: 4})
	t.Cleanup(r.Close)
	ctx, err := r.Current()
	require.NoError(t, err)
	return ctx
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, gpu.Backends(), Name)
	b, err := gpu.Open(Name)
	require.NoError(t, err)
	assert.Equal(t, Name, b.Name())
}

func TestPresentToWindow(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ctx := newContext(t)
	win := NewWindow(8, 6)
	target, err := ctx.CreateWindowTarget(win, 8, 6)
	require.NoError(t, err)
	defer target.Release()

	require.NoError(t, ctx.MakeCurrent(target))
	s, err := ctx.WrapTarget(target, 8, 6)
	require.NoError(t, err)
	defer s.Release()
	assert.Equal(t, 8, s.Width())
	assert.Equal(t, 6, s.Height())

	s.Canvas().Clear(graphics.ColorRed)
	s.Flush()
	require.NoError(t, ctx.Present(target))

	frame := win.Frame()
	require.NotNil(t, frame)
	assert.Equal(t, 8, frame.Bounds().Dx())
	assert.Equal(t, graphics.ColorRed, graphics.Pixel(frame, 4, 3))
	assert.Equal(t, 1, win.Presented())

	stats := ctx.Raw().(*Device).Stats()
	assert.Equal(t, Stats{MakeCurrent: 1, Flushes: 1, Swaps: 1, Polls: 1}, stats)
}

func TestSurfacesUseContextAsProvider(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ctx := newContext(t)
	s, err := ctx.NewOffscreenSurface(4, 4)
	require.NoError(t, err)
	sp, ok := s.(*surface)
	require.True(t, ok)
	assert.Same(t, ctx, sp.Provider())

	info := ctx.AdapterInfo()
	assert.Equal(t, gpucontext.AdapterTypeSoftware, info.Type)

	s.Release()
	assert.Nil(t, sp.Provider())
}

func TestPresentDrainsQueue(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	r := gpu.NewRegistry(Backend{}, gpu.DeviceConfig{MaxInflight: 2})
	t.Cleanup(r.Close)
	ctx, err := r.Current()
	require.NoError(t, err)
	q, ok := ctx.Queue().(*Queue)
	require.True(t, ok)

	win := NewWindow(4, 4)
	target, err := ctx.CreateWindowTarget(win, 4, 4)
	require.NoError(t, err)
	_, err = ctx.WrapTarget(target, 4, 4)
	require.NoError(t, err)

	ctx.Raw().FlushAndSubmit()
	assert.Equal(t, uint64(1), q.Pending())

	for i := 0; i < 4; i++ {
		require.NoError(t, ctx.Present(target))
	}
	assert.Zero(t, q.Pending())
	stats := ctx.Raw().(*Device).Stats()
	assert.Equal(t, 4, stats.Polls)
	assert.Equal(t, 2, stats.Waits)
}

func TestClosedWindowFails(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ctx := newContext(t)
	win := NewWindow(4, 4)
	target, err := ctx.CreateWindowTarget(win, 4, 4)
	require.NoError(t, err)
	_, err = ctx.WrapTarget(target, 4, 4)
	require.NoError(t, err)

	win.Close()
	assert.ErrorIs(t, ctx.MakeCurrent(target), errors.ErrInvalidSurface)
	assert.ErrorIs(t, ctx.Present(target), errors.ErrInvalidSurface)
	assert.Equal(t, 0, win.Presented())
}

func TestLostContext(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ctx := newContext(t)
	dev := ctx.Raw().(*Device)
	target, err := ctx.CreateWindowTarget(NewWindow(4, 4), 4, 4)
	require.NoError(t, err)

	dev.LoseContext()
	assert.ErrorIs(t, ctx.MakeCurrent(target), errors.ErrContextLost)
	dev.Restore()
	assert.NoError(t, ctx.MakeCurrent(target))
}

func TestPresentBeforeWrapIsNotReady(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ctx := newContext(t)
	target, err := ctx.CreateWindowTarget(NewWindow(4, 4), 4, 4)
	require.NoError(t, err)
	assert.ErrorIs(t, ctx.Present(target), errors.ErrNotReady)
}

func TestOffscreenSnapshot(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ctx := newContext(t)
	s, err := ctx.NewOffscreenSurface(10, 10)
	require.NoError(t, err)
	defer s.Release()

	s.Canvas().Clear(graphics.ColorWhite)
	s.Canvas().DrawRect(graphics.RectFromLTWH(0, 0, 5, 10), graphics.ColorBlue)
	s.Flush()
	img := s.(gpu.Snapshotter).Snapshot()
	assert.Equal(t, graphics.ColorBlue, graphics.Pixel(img, 2, 5))
	assert.Equal(t, graphics.ColorWhite, graphics.Pixel(img, 8, 5))
}

type planes struct {
	sizes   [][2]int
	data    [][]byte
	strides []int
}

func (p *planes) Native() unsafe.Pointer { return nil }
func (p *planes) PlaneCount() int        { return len(p.sizes) }
func (p *planes) PlaneSize(i int) (int, int) {
	return p.sizes[i][0], p.sizes[i][1]
}
func (p *planes) PlaneData(i int) ([]byte, int) { return p.data[i], p.strides[i] }

func TestTextureCacheCopiesAndRecycles(t *testing.T) {
	c := NewTextureCache(2)
	defer c.Release()

	// 2x2 luma with a padded stride of 4.
	buf := &planes{
		sizes:   [][2]int{{2, 2}},
		data:    [][]byte{{1, 2, 0xff, 0xff, 3, 4, 0xff, 0xff}},
		strides: []int{4},
	}
	tex, err := c.TextureFromPlane(buf, 0, gputypes.TextureFormatR8Unorm)
	require.NoError(t, err)
	assert.Equal(t, 2, tex.Width())
	assert.Equal(t, 2, tex.Height())
	assert.Equal(t, gputypes.TextureFormatR8Unorm, tex.Format())
	assert.Nil(t, tex.Native())

	pix, stride := tex.(gpu.CPUTexture).Pixels()
	assert.Equal(t, 2, stride)
	assert.Equal(t, []byte{1, 2, 3, 4}, pix)

	first := &pix[0]
	tex.Release()
	tex.Release()
	c.Flush()

	again, err := c.TextureFromPlane(buf, 0, gputypes.TextureFormatR8Unorm)
	require.NoError(t, err)
	pix2, _ := again.(gpu.CPUTexture).Pixels()
	assert.Same(t, first, &pix2[0], "expected the released buffer to be reused")
	assert.Equal(t, CacheStats{Hits: 1, Misses: 1}, c.Stats())
}

func TestTextureCacheRejectsOverflowingPlanes(t *testing.T) {
	c := NewTextureCache(1)
	defer c.Release()
	huge := math.MaxInt/2 + 1
	for _, dims := range [][3]int{
		{huge, huge, huge},
		{huge, 2, huge},
		{2, huge, 2},
	} {
		buf := &planes{
			sizes:   [][2]int{{dims[0], dims[1]}},
			data:    [][]byte{nil},
			strides: []int{dims[2]},
		}
		_, err := c.TextureFromPlane(buf, 0, gputypes.TextureFormatRGBA8Unorm)
		assert.Error(t, err, "plane %dx%d stride %d", dims[0], dims[1], dims[2])
	}
}

func TestTextureCacheRejectsBadPlanes(t *testing.T) {
	c := NewTextureCache(0)
	buf := &planes{
		sizes:   [][2]int{{4, 4}},
		data:    [][]byte{make([]byte, 8)},
		strides: []int{4},
	}
	_, err := c.TextureFromPlane(buf, 0, gputypes.TextureFormatR8Unorm)
	assert.Error(t, err)
	_, err = c.TextureFromPlane(buf, 1, gputypes.TextureFormatR8Unorm)
	assert.Error(t, err)
	_, err = c.TextureFromPlane(buf, 0, gputypes.TextureFormatDepth24PlusStencil8)
	assert.Error(t, err)
}

func TestWindowRefs(t *testing.T) {
	w := NewWindow(1, 1)
	w.Acquire()
	w.Acquire()
	w.Release()
	assert.Equal(t, 1, w.Refs())
	assert.True(t, w.Valid())
	w.Resize(3, 2)
	width, height := w.Size()
	assert.Equal(t, [2]int{3, 2}, [2]int{width, height})
}
