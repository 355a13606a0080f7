//go:build ffmpeg

package video

import (
	"fmt"
	"io"
	"time"

	"github.com/cogentcore/reisen"
)

func init() {
	RegisterOpener("ffmpeg", 5, func(scheme, ext string) bool {
		switch scheme {
		case "", "file", "http", "https", "rtmp", "rtsp":
			return ext != ".y4m"
		}
		return false
	}, func(locator string) (Reader, error) {
		return OpenFFmpeg(localPath(locator))
	})
}

// FFmpegReader decodes any container libavformat understands. Frames are
// converted to RGBA by libswscale.
type FFmpegReader struct {
	path   string
	media  *reisen.Media
	stream *reisen.VideoStream
	track  TrackInfo
}

// OpenFFmpeg opens path for decoding.
func OpenFFmpeg(path string) (*FFmpegReader, error) {
	media, err := reisen.NewMedia(path)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: open %s: %w", path, err)
	}
	return &FFmpegReader{path: path, media: media}, nil
}

// SelectVideoTrack implements Reader. Selecting again rewinds to the start.
func (r *FFmpegReader) SelectVideoTrack() (TrackInfo, error) {
	if r.stream != nil {
		if err := r.stream.Rewind(0); err != nil {
			return TrackInfo{}, fmt.Errorf("ffmpeg: rewind: %w", err)
		}
		return r.track, nil
	}
	if err := r.media.OpenDecode(); err != nil {
		return TrackInfo{}, fmt.Errorf("ffmpeg: decode %s: %w", r.path, err)
	}
	streams := r.media.VideoStreams()
	if len(streams) == 0 {
		return TrackInfo{}, fmt.Errorf("ffmpeg: %s has no video track", r.path)
	}
	stream := streams[0]
	if err := stream.Open(); err != nil {
		return TrackInfo{}, fmt.Errorf("ffmpeg: open video stream: %w", err)
	}
	r.stream = stream

	num, den := stream.FrameRate()
	fps := 0.0
	if den != 0 {
		fps = float64(num) / float64(den)
	}
	duration, _ := r.media.Duration()
	r.track = TrackInfo{
		Width:     stream.Width(),
		Height:    stream.Height(),
		FrameRate: fps,
		Duration:  duration,
		Format:    PixelFormatRGBA,
	}
	return r.track, nil
}

// NextSample implements Reader. Packets of other streams are skipped.
func (r *FFmpegReader) NextSample() (Sample, error) {
	if r.stream == nil {
		return Sample{}, fmt.Errorf("ffmpeg: no track selected")
	}
	for {
		packet, gotPacket, err := r.media.ReadPacket()
		if err != nil {
			return Sample{}, fmt.Errorf("ffmpeg: read packet: %w", err)
		}
		if !gotPacket {
			return Sample{}, io.EOF
		}
		if packet.Type() != reisen.StreamVideo || packet.StreamIndex() != r.stream.Index() {
			continue
		}
		frame, gotFrame, err := r.stream.ReadVideoFrame()
		if err != nil {
			return Sample{}, fmt.Errorf("ffmpeg: decode frame: %w", err)
		}
		if !gotFrame {
			return Sample{}, io.EOF
		}
		if frame == nil {
			continue
		}

		img := frame.Image()
		buf := &PixelBuffer{
			Format: PixelFormatRGBA,
			Width:  img.Rect.Dx(),
			Height: img.Rect.Dy(),
			Planes: []Plane{{Data: img.Pix, Stride: img.Stride, Width: img.Rect.Dx(), Height: img.Rect.Dy()}},
		}
		var ts time.Duration
		if off, err := frame.PresentationOffset(); err == nil {
			ts = off
		}
		return Sample{Buffer: buf, Timestamp: ts}, nil
	}
}

// Close implements Reader.
func (r *FFmpegReader) Close() error {
	if r.stream != nil {
		_ = r.stream.Close()
		r.stream = nil
		_ = r.media.CloseDecode()
	}
	r.media.Close()
	return nil
}
