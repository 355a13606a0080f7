package video

import (
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/go-drift/surfacekit/pkg/errors"
	"github.com/go-drift/surfacekit/pkg/gpu"
	"github.com/go-drift/surfacekit/pkg/logx"
)

// Platform gives the importer access to GPU resources and error reporting.
type Platform interface {
	// Context returns the calling thread's GPU context.
	Context() (*gpu.Context, error)
	// ReportError surfaces a decode or import failure to the host.
	ReportError(err error)
}

type registryPlatform struct {
	reg *gpu.Registry
}

// NewPlatform returns a Platform drawing contexts from reg and reporting
// through the errors package.
func NewPlatform(reg *gpu.Registry) Platform {
	return registryPlatform{reg: reg}
}

func (p registryPlatform) Context() (*gpu.Context, error) { return p.reg.Current() }

func (p registryPlatform) ReportError(err error) {
	var se *errors.SurfaceError
	if !errors.As(err, &se) {
		se = errors.New("video.NextImage", errors.KindDecode, err)
	}
	errors.Report(se)
}

// Frame is one imported frame.
type Frame struct {
	Image     *Image
	Timestamp time.Duration
}

// Importer turns a video source into a sequence of drawable images.
type Importer struct {
	id       string
	locator  string
	platform Platform
	reader   Reader
	track    TrackInfo
}

// NewImporter creates an importer for locator. InitializeReader must be
// called before the first NextImage.
func NewImporter(locator string, platform Platform) *Importer {
	return &Importer{id: uuid.NewString(), locator: locator, platform: platform}
}

// ID returns the importer's trace id, attached to its log lines.
func (im *Importer) ID() string { return im.id }

// InitializeReader opens the source and selects its video track. Calling it
// again restarts decoding from the first frame.
func (im *Importer) InitializeReader() error {
	if im.reader != nil {
		_ = im.reader.Close()
		im.reader = nil
	}
	r, err := Open(im.locator)
	if err != nil {
		err = errors.New("video.InitializeReader", errors.KindDecode, err)
		im.platform.ReportError(err)
		return err
	}
	track, err := r.SelectVideoTrack()
	if err != nil {
		_ = r.Close()
		err = errors.New("video.InitializeReader", errors.KindDecode, err)
		im.platform.ReportError(err)
		return err
	}
	im.reader = r
	im.track = track
	logx.Logger().Debug("video reader ready", "importer", im.id, "locator", im.locator,
		"width", track.Width, "height", track.Height, "fps", track.FrameRate, "format", track.Format.String())
	return nil
}

// Track returns the selected track's description.
func (im *Importer) Track() TrackInfo { return im.track }

// NextImage decodes the next frame and imports it on the calling thread's
// GPU context. It returns io.EOF at end of stream. Decode and import
// failures are reported to the platform and returned. A panic in the
// reader or importer is recovered and returned as a KindPanic error.
func (im *Importer) NextImage() (frame Frame, err error) {
	defer func() {
		if r := recover(); r != nil {
			pe := &errors.PanicError{Op: "video.NextImage", Value: r, StackTrace: errors.CaptureStack()}
			errors.ReportPanic(pe)
			frame, err = Frame{}, errors.New("video.NextImage", errors.KindPanic, pe)
		}
	}()
	if im.reader == nil {
		return Frame{}, errors.New("video.NextImage", errors.KindNotReady, errors.ErrNotReady)
	}
	sample, err := im.reader.NextSample()
	if stderrors.Is(err, io.EOF) {
		logx.Logger().Debug("video end of stream", "importer", im.id)
		return Frame{}, io.EOF
	}
	if err != nil {
		err = errors.New("video.NextImage", errors.KindDecode, err)
		im.platform.ReportError(err)
		return Frame{}, err
	}
	defer sample.Buffer.Release()

	ctx, err := im.platform.Context()
	if err != nil {
		im.platform.ReportError(err)
		return Frame{}, err
	}
	img, err := MakeImage(ctx, sample.Buffer)
	if err != nil {
		err = errors.New("video.NextImage", errors.KindGPU, fmt.Errorf("frame at %v: %w", sample.Timestamp, err))
		im.platform.ReportError(err)
		return Frame{}, err
	}
	return Frame{Image: img, Timestamp: sample.Timestamp}, nil
}

// Close releases the reader.
func (im *Importer) Close() error {
	if im.reader == nil {
		return nil
	}
	err := im.reader.Close()
	im.reader = nil
	return err
}
