//go:build gstreamer

package video

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/go-drift/surfacekit/pkg/logx"
)

func init() {
	RegisterOpener("gstreamer", 4, func(scheme, ext string) bool {
		switch scheme {
		case "", "file", "http", "https", "rtsp":
			return ext != ".y4m"
		}
		return false
	}, func(locator string) (Reader, error) {
		return OpenGStreamer(locator)
	})
}

// GStreamerReader decodes through a uridecodebin → videoconvert → appsink
// pipeline. Frames are NV12 or BGRA depending on SetPreferNV12.
type GStreamerReader struct {
	uri      string
	format   PixelFormat
	pipeline *gst.Pipeline
	sink     *app.Sink
	track    TrackInfo
}

// OpenGStreamer prepares a reader for locator, which may be a local path or
// any URI GStreamer has a source for.
func OpenGStreamer(locator string) (*GStreamerReader, error) {
	gst.Init(nil)
	uri := locator
	if scheme, _ := splitLocator(locator); scheme == "" {
		abs, err := filepath.Abs(locator)
		if err != nil {
			return nil, err
		}
		uri = (&url.URL{Scheme: "file", Path: abs}).String()
	}
	f := PixelFormatBGRA
	if preferNV12.Load() {
		f = PixelFormatNV12
	}
	return &GStreamerReader{uri: uri, format: f}, nil
}

func (r *GStreamerReader) capsFormat() string {
	if r.format == PixelFormatNV12 {
		return "NV12"
	}
	return "BGRA"
}

// SelectVideoTrack implements Reader. It builds a fresh pipeline, so
// selecting again restarts from the first frame.
func (r *GStreamerReader) SelectVideoTrack() (TrackInfo, error) {
	r.stop()

	launch := fmt.Sprintf("uridecodebin uri=%q ! videoconvert ! video/x-raw,format=%s ! appsink name=sink sync=false",
		r.uri, r.capsFormat())
	pipeline, err := gst.NewPipelineFromString(launch)
	if err != nil {
		return TrackInfo{}, fmt.Errorf("gstreamer: create pipeline: %w", err)
	}
	elem, err := pipeline.GetElementByName("sink")
	if err != nil {
		return TrackInfo{}, fmt.Errorf("gstreamer: appsink: %w", err)
	}
	r.pipeline = pipeline
	r.sink = app.SinkFromElement(elem)

	if err := pipeline.SetState(gst.StatePaused); err != nil {
		r.stop()
		return TrackInfo{}, fmt.Errorf("gstreamer: pause %s: %w", r.uri, err)
	}
	// The preroll sample is delivered again by the first PullSample.
	preroll := r.sink.PullPreroll()
	if preroll == nil {
		r.stop()
		return TrackInfo{}, fmt.Errorf("gstreamer: %s has no video track", r.uri)
	}
	width, height, err := sampleSize(preroll)
	if err != nil {
		r.stop()
		return TrackInfo{}, err
	}
	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		r.stop()
		return TrackInfo{}, fmt.Errorf("gstreamer: play %s: %w", r.uri, err)
	}

	r.track = TrackInfo{Width: width, Height: height, Format: r.format}
	if ok, ns := pipeline.QueryDuration(gst.FormatTime); ok && ns > 0 {
		r.track.Duration = time.Duration(ns)
	}
	logx.Logger().Debug("gstreamer pipeline playing", "uri", r.uri, "width", width, "height", height)
	return r.track, nil
}

func sampleSize(s *gst.Sample) (width, height int, err error) {
	caps := s.GetCaps()
	if caps == nil || caps.GetSize() == 0 {
		return 0, 0, errors.New("gstreamer: sample has no caps")
	}
	st := caps.GetStructureAt(0)
	w, err := intField(st, "width")
	if err != nil {
		return 0, 0, err
	}
	h, err := intField(st, "height")
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

func intField(st *gst.Structure, key string) (int, error) {
	v, err := st.GetValue(key)
	if err != nil {
		return 0, fmt.Errorf("gstreamer: caps field %s: %w", key, err)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	}
	return 0, fmt.Errorf("gstreamer: caps field %s has type %T", key, v)
}

// NextSample implements Reader.
func (r *GStreamerReader) NextSample() (Sample, error) {
	if r.sink == nil {
		return Sample{}, errors.New("gstreamer: no track selected")
	}
	s := r.sink.PullSample()
	if s == nil {
		if r.sink.IsEOS() {
			return Sample{}, io.EOF
		}
		return Sample{}, errors.New("gstreamer: pipeline stopped before end of stream")
	}
	buffer := s.GetBuffer()
	if buffer == nil {
		return Sample{}, errors.New("gstreamer: sample has no buffer")
	}
	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	pts := buffer.PresentationTimestamp()
	buf, err := r.copyFrame(data)
	buffer.Unmap()
	if err != nil {
		return Sample{}, err
	}
	if pts < 0 {
		pts = 0
	}
	return Sample{Buffer: buf, Timestamp: pts}, nil
}

// copyFrame copies a mapped frame laid out with GStreamer's default
// 4-byte row alignment into a tightly packed buffer.
func (r *GStreamerReader) copyFrame(data []byte) (*PixelBuffer, error) {
	buf, err := NewPixelBuffer(r.format, r.track.Width, r.track.Height)
	if err != nil {
		return nil, err
	}
	offset := 0
	for i := range buf.Planes {
		p := &buf.Planes[i]
		stride := align4(p.Stride)
		if need := offset + stride*(p.Height-1) + p.Stride; len(data) < need {
			return nil, fmt.Errorf("gstreamer: frame of %d bytes, want %d", len(data), need)
		}
		for y := 0; y < p.Height; y++ {
			copy(p.Data[y*p.Stride:(y+1)*p.Stride], data[offset+y*stride:])
		}
		offset += stride * p.Height
	}
	return buf, nil
}

func align4(n int) int { return (n + 3) &^ 3 }

func (r *GStreamerReader) stop() {
	if r.pipeline != nil {
		if err := r.pipeline.SetState(gst.StateNull); err != nil {
			logx.Logger().Warn("gstreamer: stop pipeline", "error", err)
		}
		r.pipeline = nil
		r.sink = nil
	}
}

// Close implements Reader.
func (r *GStreamerReader) Close() error {
	r.stop()
	return nil
}
