package video

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

func init() {
	RegisterOpener("imgseq", 10, func(scheme, ext string) bool {
		switch scheme {
		case "imgseq":
			return true
		case "", "file":
			return ext == "" || imageExts[ext]
		}
		return false
	}, func(locator string) (Reader, error) {
		return OpenImageSequence(locator)
	})
}

// DefaultSequenceFPS is the frame rate of image sequences without an fps
// query parameter.
const DefaultSequenceFPS = 30

// ImageSequenceReader plays still images in name order as RGBA frames.
type ImageSequenceReader struct {
	files []string
	fps   float64
	next  int
	track TrackInfo
}

// OpenImageSequence opens a directory, glob pattern or single image.
// imgseq:///dir?fps=24 sets the frame rate.
func OpenImageSequence(locator string) (*ImageSequenceReader, error) {
	path := localPath(locator)
	fps := float64(DefaultSequenceFPS)
	if u, err := url.Parse(locator); err == nil && u.Scheme == "imgseq" {
		path = u.Path
		if v := u.Query().Get("fps"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f <= 0 {
				return nil, fmt.Errorf("imgseq: invalid fps %q", v)
			}
			fps = f
		}
	}

	files, err := sequenceFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("imgseq: no images in %s", path)
	}
	return &ImageSequenceReader{files: files, fps: fps}, nil
}

func sequenceFiles(path string) ([]string, error) {
	if strings.ContainsAny(path, "*?[") {
		matches, err := filepath.Glob(path)
		if err != nil {
			return nil, fmt.Errorf("imgseq: %w", err)
		}
		sort.Strings(matches)
		return matches, nil
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	// ReadDir returns entries sorted by name.
	return files, nil
}

// SelectVideoTrack implements Reader. The first image sets the frame size.
func (r *ImageSequenceReader) SelectVideoTrack() (TrackInfo, error) {
	f, err := os.Open(r.files[0])
	if err != nil {
		return TrackInfo{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return TrackInfo{}, fmt.Errorf("imgseq: %s: %w", r.files[0], err)
	}
	r.next = 0
	r.track = TrackInfo{
		Width:     cfg.Width,
		Height:    cfg.Height,
		FrameRate: r.fps,
		Duration:  r.timestamp(len(r.files)),
		Format:    PixelFormatRGBA,
	}
	return r.track, nil
}

func (r *ImageSequenceReader) timestamp(frame int) time.Duration {
	return time.Duration(float64(frame) * float64(time.Second) / r.fps)
}

// NextSample implements Reader. Images of another size are scaled to the
// track size.
func (r *ImageSequenceReader) NextSample() (Sample, error) {
	if r.next >= len(r.files) {
		return Sample{}, io.EOF
	}
	name := r.files[r.next]
	f, err := os.Open(name)
	if err != nil {
		return Sample{}, err
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return Sample{}, fmt.Errorf("imgseq: %s: %w", name, err)
	}

	buf, err := NewPixelBuffer(PixelFormatRGBA, r.track.Width, r.track.Height)
	if err != nil {
		return Sample{}, err
	}
	dst := &image.RGBA{
		Pix:    buf.Planes[0].Data,
		Stride: buf.Planes[0].Stride,
		Rect:   image.Rect(0, 0, r.track.Width, r.track.Height),
	}
	if img.Bounds().Dx() == r.track.Width && img.Bounds().Dy() == r.track.Height {
		xdraw.Draw(dst, dst.Rect, img, img.Bounds().Min, xdraw.Src)
	} else {
		xdraw.BiLinear.Scale(dst, dst.Rect, img, img.Bounds(), xdraw.Src, nil)
	}

	ts := r.timestamp(r.next)
	r.next++
	return Sample{Buffer: buf, Timestamp: ts}, nil
}

// Close implements Reader.
func (r *ImageSequenceReader) Close() error { return nil }
