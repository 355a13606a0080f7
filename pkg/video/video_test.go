package video

import (
	"bytes"
	stderrors "errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/surfacekit/pkg/errors"
	"github.com/go-drift/surfacekit/pkg/gpu"
	"github.com/go-drift/surfacekit/pkg/gpu/soft"
	"github.com/go-drift/surfacekit/pkg/skia"
)

type recordingPlatform struct {
	reg  *gpu.Registry
	errs []error
}

func (p *recordingPlatform) Context() (*gpu.Context, error) { return p.reg.Current() }
func (p *recordingPlatform) ReportError(err error)          { p.errs = append(p.errs, err) }

func newPlatform(t *testing.T) *recordingPlatform {
	t.Helper()
	runtime.LockOSThread()
	t.Cleanup(runtime.UnlockOSThread)
	reg := gpu.NewRegistry(soft.Backend{}, gpu.DeviceConfig{TextureCacheCapacity: 4})
	t.Cleanup(reg.Close)
	return &recordingPlatform{reg: reg}
}

// writeY4M writes frames of a uniform color.
func writeY4M(t *testing.T, f PixelFormat, w, h, frames int, yuv [3]byte) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, WriteY4MHeader(&out, f, w, h, 30, 1))
	for i := 0; i < frames; i++ {
		buf, err := NewPixelBuffer(f, w, h)
		require.NoError(t, err)
		for p := range buf.Planes {
			for j := range buf.Planes[p].Data {
				buf.Planes[p].Data[j] = yuv[p]
			}
		}
		require.NoError(t, WriteY4MFrame(&out, buf))
	}
	path := filepath.Join(t.TempDir(), "clip.y4m")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o644))
	return path
}

func TestPixelFormatClassification(t *testing.T) {
	tests := []struct {
		format PixelFormat
		base   BaseFormat
		planes int
		fourcc string
	}{
		{PixelFormatI420, BaseYUV, 3, "y420"},
		{PixelFormatI420Full, BaseYUV, 3, "f420"},
		{PixelFormatNV12, BaseYUV, 2, "420v"},
		{PixelFormatNV12Full, BaseYUV, 2, "420f"},
		{PixelFormatI422, BaseYUV, 3, "y422"},
		{PixelFormatI444, BaseYUV, 3, "y444"},
		{PixelFormatBGRA, BaseRGB, 1, "BGRA"},
		{PixelFormatRGBA, BaseRGB, 1, "RGBA"},
		{PixelFormat(0x61626364), BaseUnknown, 0, "abcd"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.base, tt.format.Base(), tt.fourcc)
		assert.Equal(t, tt.planes, tt.format.PlaneCount(), tt.fourcc)
		assert.Equal(t, tt.fourcc, tt.format.FourCC())
	}
	assert.Equal(t, gputypes.TextureFormatRG8Unorm, PixelFormatNV12.PlaneFormat(1))
	assert.Equal(t, gputypes.TextureFormatBGRA8Unorm, PixelFormatBGRA.PlaneFormat(0))
	assert.Equal(t, gputypes.TextureFormatUndefined, PixelFormatBGRA.PlaneFormat(1))
	assert.Equal(t, "yuv", BaseYUV.String())
}

func TestYUVAInfoPlaneDimensions(t *testing.T) {
	info, ok := YUVAInfoFor(PixelFormatI420, 101, 51)
	require.True(t, ok)
	assert.Equal(t, skia.Subsampling420, info.Subsampling)
	assert.Equal(t, []image.Point{{101, 51}, {51, 26}, {51, 26}}, info.PlaneDimensions())

	info, _ = YUVAInfoFor(PixelFormatNV12Full, 64, 32)
	assert.Equal(t, skia.ColorSpaceJPEGFull, info.ColorSpace)
	assert.Equal(t, []image.Point{{64, 32}, {32, 16}}, info.PlaneDimensions())

	info, _ = YUVAInfoFor(PixelFormatI422, 64, 32)
	assert.Equal(t, []image.Point{{64, 32}, {32, 32}, {32, 32}}, info.PlaneDimensions())

	_, ok = YUVAInfoFor(PixelFormatBGRA, 64, 32)
	assert.False(t, ok)
}

func TestImportYUV420HasThreePlanes(t *testing.T) {
	p := newPlatform(t)
	path := writeY4M(t, PixelFormatI420, 64, 48, 2, [3]byte{128, 128, 128})

	im := NewImporter(path, p)
	require.NoError(t, im.InitializeReader())
	defer im.Close()
	assert.Equal(t, PixelFormatI420, im.Track().Format)
	assert.Equal(t, 30.0, im.Track().FrameRate)

	frame, err := im.NextImage()
	require.NoError(t, err)
	img := frame.Image
	defer img.Release()

	require.Equal(t, 3, img.PlaneCount())
	luma := img.Texture(0)
	assert.Equal(t, 64, luma.Width())
	assert.Equal(t, 48, luma.Height())
	for i := 1; i < 3; i++ {
		assert.Equal(t, luma.Width()/2, img.Texture(i).Width(), "plane %d width", i)
		assert.Equal(t, luma.Height()/2, img.Texture(i).Height(), "plane %d height", i)
	}
	info, ok := img.YUVAInfo()
	require.True(t, ok)
	assert.Equal(t, skia.Subsampling420, info.Subsampling)
	assert.True(t, img.IsYUV())
	assert.Nil(t, img.NativeImage(), "software backend has no library image")
	assert.Equal(t, time.Duration(0), frame.Timestamp)

	second, err := im.NextImage()
	require.NoError(t, err)
	assert.Equal(t, time.Second/30, second.Timestamp)
	second.Image.Release()

	_, err = im.NextImage()
	assert.ErrorIs(t, err, io.EOF)
	assert.Empty(t, p.errs)
}

func TestImageViewConvertsColor(t *testing.T) {
	p := newPlatform(t)
	// Video-range black and white.
	for _, tt := range []struct {
		y    byte
		want uint8
	}{{16, 0}, {235, 255}} {
		path := writeY4M(t, PixelFormatI420, 4, 4, 1, [3]byte{tt.y, 128, 128})
		im := NewImporter(path, p)
		require.NoError(t, im.InitializeReader())
		frame, err := im.NextImage()
		require.NoError(t, err)

		r, g, b, a := frame.Image.At(1, 1).RGBA()
		assert.Equal(t, tt.want, uint8(r>>8))
		assert.Equal(t, tt.want, uint8(g>>8))
		assert.Equal(t, tt.want, uint8(b>>8))
		assert.Equal(t, uint8(0xff), uint8(a>>8))
		assert.Equal(t, image.Rect(0, 0, 4, 4), frame.Image.Bounds())
		frame.Image.Release()
		im.Close()
	}
}

func TestMakeImageNV12AndBGRA(t *testing.T) {
	p := newPlatform(t)
	ctx, err := p.Context()
	require.NoError(t, err)

	nv12, err := NewPixelBuffer(PixelFormatNV12Full, 8, 4)
	require.NoError(t, err)
	img, err := MakeImage(ctx, nv12)
	require.NoError(t, err)
	assert.Equal(t, 2, img.PlaneCount())
	assert.Equal(t, gputypes.TextureFormatRG8Unorm, img.Texture(1).Format())
	assert.Equal(t, 4, img.Texture(1).Width())
	assert.Equal(t, 2, img.Texture(1).Height())
	img.Release()

	bgra, err := NewPixelBuffer(PixelFormatBGRA, 2, 1)
	require.NoError(t, err)
	copy(bgra.Planes[0].Data, []byte{255, 0, 0, 255, 0, 0, 255, 255})
	img, err = MakeImage(ctx, bgra)
	require.NoError(t, err)
	defer img.Release()
	assert.False(t, img.IsYUV())
	assert.Equal(t, 1, img.PlaneCount())
	assert.Equal(t, color.RGBA{B: 255, A: 255}, img.At(0, 0))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.At(1, 0))
}

func TestMakeImageRejectsUnknownFormat(t *testing.T) {
	p := newPlatform(t)
	ctx, _ := p.Context()
	_, err := MakeImage(ctx, &PixelBuffer{Format: PixelFormat(1), Width: 1, Height: 1})
	assert.ErrorIs(t, err, errors.ErrUnsupported)

	bad := &PixelBuffer{Format: PixelFormatI420, Width: 4, Height: 4, Planes: []Plane{{Width: 4, Height: 4}}}
	_, err = MakeImage(ctx, bad)
	assert.Error(t, err)
}

func TestNextImageBeforeInitialize(t *testing.T) {
	p := newPlatform(t)
	_, err := NewImporter("missing.y4m", p).NextImage()
	assert.ErrorIs(t, err, errors.ErrNotReady)
}

func TestImporterIDs(t *testing.T) {
	p := newPlatform(t)
	a, b := NewImporter("a.y4m", p), NewImporter("b.y4m", p)
	_, err := uuid.Parse(a.ID())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestInitializeReaderFailureReported(t *testing.T) {
	p := newPlatform(t)
	im := NewImporter(filepath.Join(t.TempDir(), "missing.y4m"), p)
	assert.Error(t, im.InitializeReader())
	assert.Len(t, p.errs, 1)
}

func TestReinitializeRestarts(t *testing.T) {
	p := newPlatform(t)
	path := writeY4M(t, PixelFormatI444, 4, 4, 1, [3]byte{100, 128, 128})
	im := NewImporter(path, p)
	require.NoError(t, im.InitializeReader())
	defer im.Close()

	f, err := im.NextImage()
	require.NoError(t, err)
	f.Image.Release()
	_, err = im.NextImage()
	require.ErrorIs(t, err, io.EOF)

	require.NoError(t, im.InitializeReader())
	f, err = im.NextImage()
	require.NoError(t, err)
	assert.Equal(t, 3, f.Image.PlaneCount())
	assert.Equal(t, 4, f.Image.Texture(2).Width())
	f.Image.Release()
}

func TestTruncatedY4MReportsDecodeError(t *testing.T) {
	p := newPlatform(t)
	var out bytes.Buffer
	require.NoError(t, WriteY4MHeader(&out, PixelFormatI420, 4, 4, 25, 1))
	out.WriteString("FRAME\n")
	out.Write(make([]byte, 5))
	path := filepath.Join(t.TempDir(), "short.y4m")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o644))

	im := NewImporter(path, p)
	require.NoError(t, im.InitializeReader())
	_, err := im.NextImage()
	require.Error(t, err)
	assert.False(t, stderrors.Is(err, io.EOF))
	require.Len(t, p.errs, 1)
	var se *errors.SurfaceError
	require.True(t, errors.As(p.errs[0], &se))
	assert.Equal(t, errors.KindDecode, se.Kind)
}

func TestY4MHeaderParsing(t *testing.T) {
	tests := []struct {
		header string
		format PixelFormat
		fps    float64
		ok     bool
	}{
		{"YUV4MPEG2 W2 H2 F30000:1001 C420mpeg2\n", PixelFormatI420, 30000.0 / 1001, true},
		{"YUV4MPEG2 W2 H2 XCOLORRANGE=FULL\n", PixelFormatI420Full, 25, true},
		{"YUV4MPEG2 W2 H2 C444\n", PixelFormatI444, 25, true},
		{"YUV4MPEG2 W2 H2 Cmono\n", 0, 0, false},
		{"YUV4MPEG2 W0 H2\n", 0, 0, false},
		{"YUV4MPEG2 W2 H2 C420paldv\n", PixelFormatI420, 25, true},
		{"YUV4MPEG2 W2 H2 C420p10\n", 0, 0, false},
		{"YUV4MPEG2 W2 H2 C420p12\n", 0, 0, false},
		{"YUV4MPEG2 W2 H2 C444p16\n", 0, 0, false},
		{"YUV4MPEG2 W4294967296 H4294967296 C444\n", 0, 0, false},
		{"YUV4MPEG2 W16385 H2\n", 0, 0, false},
		{"YUV4MPEG2 Wabc H2\n", 0, 0, false},
		{"MPEG W2 H2\n", 0, 0, false},
	}
	for _, tt := range tests {
		r, err := NewY4MReader(bytes.NewReader([]byte(tt.header)))
		if !tt.ok {
			assert.Error(t, err, tt.header)
			continue
		}
		require.NoError(t, err, tt.header)
		track, err := r.SelectVideoTrack()
		require.NoError(t, err)
		assert.Equal(t, tt.format, track.Format, tt.header)
		assert.InDelta(t, tt.fps, track.FrameRate, 1e-9, tt.header)
		_, err = r.NextSample()
		assert.ErrorIs(t, err, io.EOF)
	}
}

func TestOversizedY4MHeaderFailsInit(t *testing.T) {
	p := newPlatform(t)
	path := filepath.Join(t.TempDir(), "huge.y4m")
	require.NoError(t, os.WriteFile(path, []byte("YUV4MPEG2 W4294967296 H4294967296 F25:1 C444\nFRAME\n"), 0o644))

	im := NewImporter(path, p)
	assert.Error(t, im.InitializeReader())
	assert.NotPanics(t, func() {
		_, err := im.NextImage()
		assert.Error(t, err)
	})
}

type panicReader struct{}

func (panicReader) SelectVideoTrack() (TrackInfo, error) {
	return TrackInfo{Width: 2, Height: 2, Format: PixelFormatI420}, nil
}
func (panicReader) NextSample() (Sample, error) { panic("corrupt sample") }
func (panicReader) Close() error                { return nil }

func TestNextImageRecoversReaderPanic(t *testing.T) {
	RegisterOpener("panic-test", 1, func(_, ext string) bool { return ext == ".panictest" },
		func(string) (Reader, error) { return panicReader{}, nil })

	var panics int
	old := errors.SetHandler(errors.Funcs{OnPanic: func(*errors.PanicError) { panics++ }})
	t.Cleanup(func() { errors.SetHandler(old) })

	im := NewImporter("clip.panictest", newPlatform(t))
	require.NoError(t, im.InitializeReader())
	var err error
	require.NotPanics(t, func() { _, err = im.NextImage() })
	var se *errors.SurfaceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, errors.KindPanic, se.Kind)
	assert.Equal(t, 1, panics)
}

func TestImageSequence(t *testing.T) {
	p := newPlatform(t)
	dir := t.TempDir()
	colors := []color.NRGBA{{R: 255, A: 255}, {G: 255, A: 255}, {B: 255, A: 255}}
	for i, c := range colors {
		img := image.NewNRGBA(image.Rect(0, 0, 6, 4))
		for y := 0; y < 4; y++ {
			for x := 0; x < 6; x++ {
				img.SetNRGBA(x, y, c)
			}
		}
		f, err := os.Create(filepath.Join(dir, []string{"a.png", "b.png", "c.png"}[i]))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}
	// Non-image files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	im := NewImporter("imgseq://"+dir+"?fps=10", p)
	require.NoError(t, im.InitializeReader())
	defer im.Close()
	track := im.Track()
	assert.Equal(t, 6, track.Width)
	assert.Equal(t, 10.0, track.FrameRate)
	assert.Equal(t, 300*time.Millisecond, track.Duration)

	for i, want := range colors {
		frame, err := im.NextImage()
		require.NoError(t, err)
		assert.Equal(t, time.Duration(i)*100*time.Millisecond, frame.Timestamp)
		r, g, b, _ := frame.Image.At(2, 2).RGBA()
		assert.Equal(t, [3]uint8{want.R, want.G, want.B}, [3]uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)})
		frame.Image.Release()
	}
	_, err := im.NextImage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenNoReader(t *testing.T) {
	_, err := Open("gopher://example.com/clip.xyz")
	assert.Error(t, err)
	assert.Contains(t, Openers(), "y4m")
	assert.Contains(t, Openers(), "imgseq")
}

func TestSplitLocator(t *testing.T) {
	scheme, ext := splitLocator("file:///tmp/Clip.Y4M")
	assert.Equal(t, "file", scheme)
	assert.Equal(t, ".y4m", ext)
	scheme, ext = splitLocator("/tmp/frames")
	assert.Equal(t, "", scheme)
	assert.Equal(t, "", ext)
}
