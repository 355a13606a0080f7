package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-drift/surfacekit/pkg/video"
)

func init() {
	RegisterCommand(&Command{
		Name:  "frames",
		Short: "Decode a video source and export frames as PNG",
		Long: `Decode a video source through the frame importer and write each frame
to a PNG file named frame_NNNN.png.

Sources are .y4m files, image sequences (a directory, a glob or
imgseq://dir?fps=N) and, where they are built in, AVFoundation, GStreamer or
FFmpeg media files.

Flags:
  --out DIR   Output directory (default: frames)
  -n N        Stop after N frames (default: all)`,
		Usage: "surfacekit frames <source> [--out DIR] [-n N]",
		Run:   runFrames,
	})
}

type framesOptions struct {
	src   string
	out   string
	limit int
}

func parseFramesArgs(args []string) (framesOptions, error) {
	opts := framesOptions{out: "frames", limit: -1}
	if len(args) == 0 {
		return opts, fmt.Errorf("source is required\n\nUsage: surfacekit frames <source>")
	}
	opts.src = args[0]
	for i := 1; i < len(args); i++ {
		flag := args[i]
		if flag != "--out" && flag != "-n" {
			return opts, fmt.Errorf("unknown flag %q", flag)
		}
		if i+1 >= len(args) {
			return opts, fmt.Errorf("%s requires a value", flag)
		}
		i++
		if flag == "--out" {
			opts.out = args[i]
			continue
		}
		n, err := strconv.Atoi(args[i])
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid frame count %q", args[i])
		}
		opts.limit = n
	}
	return opts, nil
}

func runFrames(args []string) error {
	opts, err := parseFramesArgs(args)
	if err != nil {
		return err
	}
	src, out, limit := opts.src, opts.out, opts.limit

	reg, _, err := openRegistry()
	if err != nil {
		return err
	}
	defer reg.Close()

	im := video.NewImporter(src, video.NewPlatform(reg))
	defer im.Close()
	if err := im.InitializeReader(); err != nil {
		return err
	}
	track := im.Track()
	fmt.Printf("Track: %dx%d %s @ %.3g fps\n", track.Width, track.Height, track.Format, track.FrameRate)

	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}
	count := 0
	for limit < 0 || count < limit {
		frame, err := im.NextImage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		path := filepath.Join(out, fmt.Sprintf("frame_%04d.png", count))
		planes := frame.Image.PlaneCount()
		err = writePNG(path, frame.Image)
		frame.Image.Release()
		if err != nil {
			return err
		}
		fmt.Printf("  %s  t=%v  planes=%d\n", path, frame.Timestamp, planes)
		count++
	}
	fmt.Printf("Exported %d frames to %s\n", count, out)
	return nil
}
