package cmd

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"strconv"

	"github.com/go-drift/surfacekit/pkg/canvas"
	"github.com/go-drift/surfacekit/pkg/gpu"
	"github.com/go-drift/surfacekit/pkg/gpu/soft"
	"github.com/go-drift/surfacekit/pkg/graphics"
	"github.com/go-drift/surfacekit/pkg/logx"
	"github.com/go-drift/surfacekit/pkg/surface"
	"github.com/go-drift/surfacekit/pkg/video"
)

func init() {
	RegisterCommand(&Command{
		Name:  "render",
		Short: "Render a test pattern to a PNG",
		Long: `Render a test pattern and write it to a PNG file.

With the software backend the pattern is drawn through a canvas provider
attached to an in-memory window, exactly as a platform view would drive it,
and the presented frame is saved. Other backends render offscreen.

Flags:
  --width N      Surface width in pixels (default: 320)
  --height N     Surface height in pixels (default: 240)
  --video SRC    Draw the first frame of SRC over the pattern
  --out FILE     Output path (default: render.png)`,
		Usage: "surfacekit render [--width N] [--height N] [--video SRC] [--out FILE]",
		Run:   runRender,
	})
}

type renderOptions struct {
	width  int
	height int
	video  string
	out    string
}

func parseRenderArgs(args []string) (renderOptions, error) {
	opts := renderOptions{width: 320, height: 240, out: "render.png"}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--width", "--height":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s requires a value", args[i])
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n <= 0 {
				return opts, fmt.Errorf("invalid %s %q", args[i], args[i+1])
			}
			if args[i] == "--width" {
				opts.width = n
			} else {
				opts.height = n
			}
			i++
		case "--video":
			if i+1 >= len(args) {
				return opts, errors.New("--video requires a source")
			}
			opts.video = args[i+1]
			i++
		case "--out":
			if i+1 >= len(args) {
				return opts, errors.New("--out requires a file path")
			}
			opts.out = args[i+1]
			i++
		default:
			return opts, fmt.Errorf("unknown flag %q", args[i])
		}
	}
	return opts, nil
}

func runRender(args []string) error {
	opts, err := parseRenderArgs(args)
	if err != nil {
		return err
	}
	reg, _, err := openRegistry()
	if err != nil {
		return err
	}
	defer reg.Close()

	var overlay image.Image
	if opts.video != "" {
		frame, err := firstFrame(reg, opts.video)
		if err != nil {
			return err
		}
		defer frame.Release()
		overlay = frame
	}
	draw := func(c graphics.Canvas) { drawPattern(c, overlay) }

	var img image.Image
	if reg.Backend().Name() == soft.Name {
		img, err = renderWindowed(reg, opts, draw)
	} else {
		img, err = renderOffscreen(reg, opts, draw)
	}
	if err != nil {
		return err
	}
	if err := writePNG(opts.out, img); err != nil {
		return err
	}
	fmt.Printf("Wrote %dx%d frame to %s (backend %s)\n", opts.width, opts.height, opts.out, reg.Backend().Name())
	return nil
}

// windowSurface adapts an in-memory window to the provider's native surface.
type windowSurface struct {
	win *soft.Window
}

func (s windowSurface) AcquireWindow() (*surface.Window, error) {
	s.win.Acquire()
	return surface.AcquireWindow(s.win, s.win.Release), nil
}

func (windowSurface) Retain()  {}
func (windowSurface) Release() {}

func renderWindowed(reg *gpu.Registry, opts renderOptions, draw func(graphics.Canvas)) (image.Image, error) {
	win := soft.NewWindow(opts.width, opts.height)
	redraws := 0
	p := canvas.NewProvider(reg, func() { redraws++ })
	p.SurfaceAvailable(windowSurface{win: win}, opts.width, opts.height)
	defer p.SurfaceDestroyed()

	logx.Logger().Debug("provider attached", "state", p.State(), "width", p.ScaledWidth(), "height", p.ScaledHeight(), "redraws", redraws)
	if !p.RenderToCanvas(draw) {
		return nil, errors.New("render: frame was not presented")
	}
	frame := win.Frame()
	if frame == nil {
		return nil, errors.New("render: window holds no frame")
	}
	return frame, nil
}

func renderOffscreen(reg *gpu.Registry, opts renderOptions, draw func(graphics.Canvas)) (image.Image, error) {
	s, err := surface.MakeOffscreenSurface(reg, opts.width, opts.height)
	if err != nil {
		return nil, err
	}
	defer s.Release()
	draw(s.Canvas())
	s.Flush()
	snap, ok := s.(gpu.Snapshotter)
	if !ok {
		return nil, fmt.Errorf("render: %s surfaces cannot be read back", reg.Backend().Name())
	}
	return snap.Snapshot(), nil
}

// drawPattern draws colour bars with an optional image inset.
func drawPattern(c graphics.Canvas, overlay image.Image) {
	bars := []graphics.Color{
		graphics.RGB(255, 255, 255),
		graphics.RGB(255, 255, 0),
		graphics.RGB(0, 255, 255),
		graphics.RGB(0, 255, 0),
		graphics.RGB(255, 0, 255),
		graphics.RGB(255, 0, 0),
		graphics.RGB(0, 0, 255),
	}
	size := c.Size()
	c.Clear(graphics.RGB(0, 0, 0))
	w := size.Width / float64(len(bars))
	for i, col := range bars {
		c.DrawRect(graphics.RectFromLTWH(float64(i)*w, 0, w, size.Height*0.75), col)
	}
	if overlay != nil {
		c.DrawImage(overlay, graphics.RectFromLTWH(size.Width/4, size.Height/4, size.Width/2, size.Height/2))
	}
}

func firstFrame(reg *gpu.Registry, src string) (*video.Image, error) {
	im := video.NewImporter(src, video.NewPlatform(reg))
	defer im.Close()
	if err := im.InitializeReader(); err != nil {
		return nil, err
	}
	frame, err := im.NextImage()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	return frame.Image, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
