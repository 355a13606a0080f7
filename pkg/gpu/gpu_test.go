package gpu

import (
	stderrors "errors"
	"math"
	"runtime"
	"sync"
	"testing"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/go-drift/surfacekit/pkg/config"
	"github.com/go-drift/surfacekit/pkg/errors"
)

type fakeBackend struct {
	mu      sync.Mutex
	created int
	devices []*fakeDevice
	fail    error
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) NewDevice(DeviceConfig) (Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return nil, b.fail
	}
	b.created++
	d := &fakeDevice{}
	b.devices = append(b.devices, d)
	return d, nil
}

type fakeQueue struct{}

type fakeDevice struct {
	destroyed bool
	flushes   int
	swaps     int
	polls     []bool
	provider  gpucontext.DeviceProvider
}

type fakeTarget struct{ released bool }

func (t *fakeTarget) Release() { t.released = true }

func (d *fakeDevice) Poll(wait bool)                        { d.polls = append(d.polls, wait) }
func (d *fakeDevice) Destroy()                              { d.destroyed = true }
func (d *fakeDevice) Queue() gpucontext.Queue               { return &fakeQueue{} }
func (d *fakeDevice) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }
func (d *fakeDevice) CreateWindowTarget(NativeWindow, int, int) (Target, error) {
	return &fakeTarget{}, nil
}
func (d *fakeDevice) MakeCurrent(Target) error { return nil }
func (d *fakeDevice) WrapTarget(Target, int, int) (Surface, error) {
	return nil, stderrors.New("not implemented")
}
func (d *fakeDevice) NewOffscreenSurface(int, int) (Surface, error) {
	return nil, stderrors.New("not implemented")
}
func (d *fakeDevice) FlushAndSubmit() { d.flushes++ }
func (d *fakeDevice) SwapBuffers(Target) error {
	d.swaps++
	return nil
}
func (d *fakeDevice) NewTextureCache(int) (TextureCache, error) {
	return &fakeCache{}, nil
}
func (d *fakeDevice) BindProvider(p gpucontext.DeviceProvider) { d.provider = p }

type fakeCache struct{ released bool }

func (c *fakeCache) TextureFromPlane(PlaneBuffer, int, gputypes.TextureFormat) (Texture, error) {
	return nil, errors.ErrUnsupported
}
func (c *fakeCache) Flush()   {}
func (c *fakeCache) Release() { c.released = true }

type fakeWindow struct{ valid bool }

func (w *fakeWindow) Handle() unsafe.Pointer { return unsafe.Pointer(w) }
func (w *fakeWindow) Valid() bool            { return w.valid }

func TestCurrentReusesContextOnSameThread(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	b := &fakeBackend{}
	r := NewRegistry(b, DeviceConfig{})
	defer r.Close()

	first, err := r.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	second, err := r.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if first != second {
		t.Error("expected the same context for repeated lookups on one thread")
	}
	if b.created != 1 {
		t.Errorf("devices created = %d, want 1", b.created)
	}
	if first.Thread() != ThreadID() {
		t.Errorf("Thread() = %d, want %d", first.Thread(), ThreadID())
	}
	if !first.OnOwnerThread() {
		t.Error("expected OnOwnerThread on the creating thread")
	}
}

func TestCurrentCreatesContextPerThread(t *testing.T) {
	if ThreadID() == 0 {
		t.Skip("thread ids unavailable on this platform")
	}
	b := &fakeBackend{}
	r := NewRegistry(b, DeviceConfig{})
	defer r.Close()

	const threads = 4
	ctxs := make([]*Context, threads)
	var wg sync.WaitGroup
	var release sync.WaitGroup
	release.Add(1)
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func(i int) {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			ctx, err := r.Current()
			if err != nil {
				t.Errorf("Current: %v", err)
			}
			ctxs[i] = ctx
			wg.Done()
			// Hold the thread so no two goroutines share it.
			release.Wait()
		}(i)
	}
	wg.Wait()
	release.Done()

	seen := map[*Context]bool{}
	for _, c := range ctxs {
		if c == nil {
			t.Fatal("missing context")
		}
		seen[c] = true
	}
	if len(seen) != threads {
		t.Errorf("distinct contexts = %d, want %d", len(seen), threads)
	}
	if r.Len() != threads {
		t.Errorf("Len() = %d, want %d", r.Len(), threads)
	}
}

func TestContextWrongThread(t *testing.T) {
	if ThreadID() == 0 {
		t.Skip("thread ids unavailable on this platform")
	}
	b := &fakeBackend{}
	r := NewRegistry(b, DeviceConfig{})
	defer r.Close()

	ctxCh := make(chan *Context)
	done := make(chan struct{})
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		ctx, _ := r.Current()
		ctxCh <- ctx
		<-done
	}()
	ctx := <-ctxCh
	defer close(done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	err := ctx.MakeCurrent(&fakeTarget{})
	if !stderrors.Is(err, errors.ErrWrongThread) {
		t.Fatalf("MakeCurrent from another thread = %v, want ErrWrongThread", err)
	}
}

func TestContextPresentFlushesThenSwaps(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	b := &fakeBackend{}
	r := NewRegistry(b, DeviceConfig{})
	defer r.Close()
	ctx, err := r.Current()
	if err != nil {
		t.Fatal(err)
	}
	target, err := ctx.CreateWindowTarget(&fakeWindow{valid: true}, 10, 10)
	if err != nil {
		t.Fatalf("CreateWindowTarget: %v", err)
	}
	if err := ctx.Present(target); err != nil {
		t.Fatalf("Present: %v", err)
	}
	dev := b.devices[0]
	if dev.flushes != 1 || dev.swaps != 1 {
		t.Errorf("flushes=%d swaps=%d, want 1 and 1", dev.flushes, dev.swaps)
	}
	if err := ctx.Present(nil); !stderrors.Is(err, errors.ErrInvalidSurface) {
		t.Errorf("Present(nil) = %v, want ErrInvalidSurface", err)
	}
}

func TestPresentPacesWithMaxInflight(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	b := &fakeBackend{}
	r := NewRegistry(b, DeviceConfig{MaxInflight: 2})
	defer r.Close()
	ctx, err := r.Current()
	if err != nil {
		t.Fatal(err)
	}
	target, _ := ctx.CreateWindowTarget(&fakeWindow{valid: true}, 10, 10)
	for i := 0; i < 5; i++ {
		if err := ctx.Present(target); err != nil {
			t.Fatalf("Present %d: %v", i, err)
		}
	}
	want := []bool{false, true, false, true, false}
	got := b.devices[0].polls
	if len(got) != len(want) {
		t.Fatalf("polls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("poll %d wait = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestContextIsBoundAsDeviceProvider(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	b := &fakeBackend{}
	r := NewRegistry(b, DeviceConfig{})
	defer r.Close()
	ctx, err := r.Current()
	if err != nil {
		t.Fatal(err)
	}
	dev := b.devices[0]
	if dev.provider != gpucontext.DeviceProvider(ctx) {
		t.Errorf("device bound to %v, want the owning context", dev.provider)
	}
	if _, ok := ctx.Queue().(*fakeQueue); !ok {
		t.Errorf("Queue() = %T, want *fakeQueue", ctx.Queue())
	}
	info := ctx.AdapterInfo()
	if info.Name != "fake" || info.Type != gpucontext.AdapterTypeUnknown {
		t.Errorf("AdapterInfo() = %+v, want fake/unknown", info)
	}
	if ctx.SurfaceFormat() != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("SurfaceFormat() = %v", ctx.SurfaceFormat())
	}
}

func TestCreateWindowTargetRejectsInvalidWindow(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	r := NewRegistry(&fakeBackend{}, DeviceConfig{})
	defer r.Close()
	ctx, _ := r.Current()
	if _, err := ctx.CreateWindowTarget(&fakeWindow{}, 10, 10); !stderrors.Is(err, errors.ErrInvalidSurface) {
		t.Errorf("got %v, want ErrInvalidSurface", err)
	}
	if _, err := ctx.CreateWindowTarget(nil, 10, 10); !stderrors.Is(err, errors.ErrInvalidSurface) {
		t.Errorf("nil window: got %v, want ErrInvalidSurface", err)
	}
	if _, err := ctx.NewOffscreenSurface(0, 10); !stderrors.Is(err, errors.ErrInvalidSurface) {
		t.Errorf("zero offscreen: got %v, want ErrInvalidSurface", err)
	}
}

func TestRegistryCloseDestroysContexts(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	b := &fakeBackend{}
	r := NewRegistry(b, DeviceConfig{})
	ctx, _ := r.Current()
	cache, err := ctx.TextureCache()
	if err != nil {
		t.Fatal(err)
	}
	again, _ := ctx.TextureCache()
	if cache != again {
		t.Error("expected TextureCache to be shared per context")
	}

	r.Close()
	r.Close()
	if !b.devices[0].destroyed {
		t.Error("expected device destroyed on Close")
	}
	if !cache.(*fakeCache).released {
		t.Error("expected texture cache released on Close")
	}
	if _, err := r.Current(); !stderrors.Is(err, errors.ErrContextLost) {
		t.Errorf("Current after Close = %v, want ErrContextLost", err)
	}
}

func TestReleaseCurrentDropsThreadContext(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	b := &fakeBackend{}
	r := NewRegistry(b, DeviceConfig{})
	defer r.Close()

	r.ReleaseCurrent()
	first, err := r.Current()
	if err != nil {
		t.Fatal(err)
	}
	r.ReleaseCurrent()
	if r.Len() != 0 {
		t.Errorf("Len() = %d after ReleaseCurrent, want 0", r.Len())
	}
	if !b.devices[0].destroyed {
		t.Error("expected released context's device destroyed")
	}
	second, err := r.Current()
	if err != nil {
		t.Fatal(err)
	}
	if second == first || b.created != 2 {
		t.Errorf("expected a fresh context after ReleaseCurrent, created = %d", b.created)
	}
}

func TestCurrentDeviceFailure(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	r := NewRegistry(&fakeBackend{fail: stderrors.New("no display")}, DeviceConfig{})
	defer r.Close()
	_, err := r.Current()
	var se *errors.SurfaceError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SurfaceError, got %v", err)
	}
	if se.Backend != "fake" {
		t.Errorf("Backend = %q, want fake", se.Backend)
	}
	if r.Len() != 0 {
		t.Errorf("failed creation should not register a context")
	}
}

func TestBackendRegistry(t *testing.T) {
	Register("test-low", -100, func() (Backend, error) { return &fakeBackend{}, nil }, nil)
	Register("test-off", 1000, func() (Backend, error) { return &fakeBackend{}, nil }, func() bool { return false })
	defer Unregister("test-low")
	defer Unregister("test-off")

	names := Backends()
	for _, n := range names {
		if n == "test-off" {
			t.Error("unavailable backend listed")
		}
	}
	if len(names) == 0 || names[len(names)-1] != "test-low" {
		t.Errorf("Backends() = %v, want test-low last", names)
	}
	if _, err := Open("test-off"); err == nil {
		t.Error("expected error opening unavailable backend")
	}
	if _, err := Open("missing"); err == nil {
		t.Error("expected error opening unregistered backend")
	}
	b, err := Open("test-low")
	if err != nil || b.Name() != "fake" {
		t.Errorf("Open(test-low) = %v, %v", b, err)
	}
}

func TestDeviceConfigFrom(t *testing.T) {
	r, err := (&config.Config{}).Resolve()
	if err != nil {
		t.Fatal(err)
	}
	dc := DeviceConfigFrom(r)
	if dc.SwapInterval != 1 || !dc.SRGB {
		t.Errorf("unexpected defaults: %+v", dc)
	}
	if dc.PixelFormat != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("PixelFormat = %v", dc.PixelFormat)
	}
	if dc.TextureCacheCapacity != 8 {
		t.Errorf("TextureCacheCapacity = %d, want 8", dc.TextureCacheCapacity)
	}
	r.TextureCache = false
	if DeviceConfigFrom(r).TextureCacheCapacity != 0 {
		t.Error("disabled cache should have zero capacity")
	}
}

func TestVersionAtLeast(t *testing.T) {
	tests := []struct {
		have, min string
		want      bool
	}{
		{"OpenGL ES 3.2 build 1.13@5776728", "v3.0", true},
		{"OpenGL ES 2.0", "v3.0", false},
		{"OpenGL ES 3.0 V@0502.0", "v3.0", true},
		{"garbage", "v2.0", false},
		{"OpenGL ES 2.0", "", true},
		{"OpenGL ES 3.1", "3.0", false},
	}
	for _, tt := range tests {
		if got := VersionAtLeast(tt.have, tt.min); got != tt.want {
			t.Errorf("VersionAtLeast(%q, %q) = %v, want %v", tt.have, tt.min, got, tt.want)
		}
	}
	if got := ParseGLVersion("OpenGL ES 3.2"); got != "v3.2" {
		t.Errorf("ParseGLVersion = %q", got)
	}
}

func TestPlaneFits(t *testing.T) {
	huge := math.MaxInt/2 + 1
	tests := []struct {
		size, stride, width, height, bpt int
		want                             bool
	}{
		{16, 4, 4, 4, 1, true},
		{14, 4, 2, 4, 1, true},
		{13, 4, 2, 4, 1, false},
		{16, 2, 4, 4, 1, false},
		{0, 0, 0, 1, 1, false},
		{0, huge, huge, 2, 1, false},
		{0, 8, huge, 1, 4, false},
		{0, huge, 1, huge, 1, false},
	}
	for _, tt := range tests {
		if got := PlaneFits(tt.size, tt.stride, tt.width, tt.height, tt.bpt); got != tt.want {
			t.Errorf("PlaneFits(%d, %d, %d, %d, %d) = %v, want %v",
				tt.size, tt.stride, tt.width, tt.height, tt.bpt, got, tt.want)
		}
	}
}
