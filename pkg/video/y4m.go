package video

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

func init() {
	RegisterOpener("y4m", 20, func(scheme, ext string) bool {
		return ext == ".y4m" && (scheme == "" || scheme == "file")
	}, func(locator string) (Reader, error) {
		f, err := os.Open(localPath(locator))
		if err != nil {
			return nil, err
		}
		r, err := NewY4MReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return r, nil
	})
}

const (
	y4mMagic = "YUV4MPEG2"
	y4mFrame = "FRAME"
)

// Y4MReader decodes YUV4MPEG2 streams.
type Y4MReader struct {
	src    io.ReadSeeker
	br     *bufio.Reader
	track  TrackInfo
	start  int64
	frame  int
	fpsNum int
	fpsDen int
}

// NewY4MReader parses the stream header. The reader closes src on Close
// when src is an io.Closer.
func NewY4MReader(src io.ReadSeeker) (*Y4MReader, error) {
	r := &Y4MReader{src: src, br: bufio.NewReader(src), fpsNum: 25, fpsDen: 1}
	header, err := r.br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("y4m: read header: %w", err)
	}
	if err := r.parseHeader(strings.TrimSuffix(header, "\n")); err != nil {
		return nil, err
	}
	r.start = int64(len(header))
	return r, nil
}

func (r *Y4MReader) parseHeader(header string) error {
	fields := strings.Fields(header)
	if len(fields) == 0 || fields[0] != y4mMagic {
		return fmt.Errorf("y4m: missing %s signature", y4mMagic)
	}
	colorspace := "420jpeg"
	fullRange := false
	for _, f := range fields[1:] {
		if len(f) < 2 {
			continue
		}
		val := f[1:]
		switch f[0] {
		case 'W', 'H':
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 || n > MaxFrameDimension {
				return fmt.Errorf("y4m: invalid %c%s", f[0], val)
			}
			if f[0] == 'W' {
				r.track.Width = n
			} else {
				r.track.Height = n
			}
		case 'F':
			num, den, ok := strings.Cut(val, ":")
			n, err1 := strconv.Atoi(num)
			d, err2 := strconv.Atoi(den)
			if ok && err1 == nil && err2 == nil && n > 0 && d > 0 {
				r.fpsNum, r.fpsDen = n, d
			}
		case 'C':
			colorspace = val
		case 'X':
			if strings.EqualFold(val, "COLORRANGE=FULL") {
				fullRange = true
			}
		}
	}
	if r.track.Width <= 0 || r.track.Height <= 0 {
		return fmt.Errorf("y4m: invalid frame size %dx%d", r.track.Width, r.track.Height)
	}

	// Only 8-bit sample tags; C420p10 and friends are rejected.
	switch colorspace {
	case "420", "420jpeg", "420mpeg2", "420paldv":
		r.track.Format = PixelFormatI420
		if fullRange {
			r.track.Format = PixelFormatI420Full
		}
	case "422":
		r.track.Format = PixelFormatI422
	case "444":
		r.track.Format = PixelFormatI444
	default:
		return fmt.Errorf("y4m: unsupported colorspace C%s", colorspace)
	}
	r.track.FrameRate = float64(r.fpsNum) / float64(r.fpsDen)
	return nil
}

// SelectVideoTrack implements Reader. Y4M carries a single track.
func (r *Y4MReader) SelectVideoTrack() (TrackInfo, error) {
	if _, err := r.src.Seek(r.start, io.SeekStart); err != nil {
		return TrackInfo{}, fmt.Errorf("y4m: rewind: %w", err)
	}
	r.br.Reset(r.src)
	r.frame = 0
	return r.track, nil
}

// NextSample implements Reader.
func (r *Y4MReader) NextSample() (Sample, error) {
	line, err := r.br.ReadBytes('\n')
	if err == io.EOF && len(line) == 0 {
		return Sample{}, io.EOF
	}
	if err != nil {
		return Sample{}, fmt.Errorf("y4m: frame %d: %w", r.frame, err)
	}
	if !bytes.HasPrefix(line, []byte(y4mFrame)) {
		return Sample{}, fmt.Errorf("y4m: frame %d: missing %s marker", r.frame, y4mFrame)
	}

	buf, err := NewPixelBuffer(r.track.Format, r.track.Width, r.track.Height)
	if err != nil {
		return Sample{}, err
	}
	for i := range buf.Planes {
		if _, err := io.ReadFull(r.br, buf.Planes[i].Data); err != nil {
			return Sample{}, fmt.Errorf("y4m: frame %d plane %d: %w", r.frame, i, err)
		}
	}
	ts := time.Duration(int64(r.frame) * int64(time.Second) * int64(r.fpsDen) / int64(r.fpsNum))
	r.frame++
	return Sample{Buffer: buf, Timestamp: ts}, nil
}

// Close implements Reader.
func (r *Y4MReader) Close() error {
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// WriteY4MHeader writes a stream header for width x height frames in f.
func WriteY4MHeader(w io.Writer, f PixelFormat, width, height, fpsNum, fpsDen int) error {
	var cs, extra string
	switch f {
	case PixelFormatI420:
		cs = "420jpeg"
	case PixelFormatI420Full:
		cs, extra = "420jpeg", " XCOLORRANGE=FULL"
	case PixelFormatI422:
		cs = "422"
	case PixelFormatI444:
		cs = "444"
	default:
		return fmt.Errorf("y4m: cannot write %v", f)
	}
	_, err := fmt.Fprintf(w, "%s W%d H%d F%d:%d Ip A1:1 C%s%s\n", y4mMagic, width, height, fpsNum, fpsDen, cs, extra)
	return err
}

// WriteY4MFrame writes one tightly packed frame.
func WriteY4MFrame(w io.Writer, buf *PixelBuffer) error {
	if _, err := io.WriteString(w, y4mFrame+"\n"); err != nil {
		return err
	}
	for i, p := range buf.Planes {
		row := p.Width * buf.Format.bytesPerTexel(i)
		for y := 0; y < p.Height; y++ {
			if _, err := w.Write(p.Data[y*p.Stride : y*p.Stride+row]); err != nil {
				return err
			}
		}
	}
	return nil
}
