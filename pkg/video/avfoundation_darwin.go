//go:build darwin && cgo

package video

/*
#cgo CFLAGS: -x objective-c -fobjc-arc
#cgo LDFLAGS: -framework AVFoundation -framework CoreMedia -framework CoreVideo -framework Foundation

#import <AVFoundation/AVFoundation.h>
#import <CoreVideo/CoreVideo.h>
#include <stdlib.h>

typedef struct {
	uint32_t format;
	int width;
	int height;
	int planes;
	void *base[3];
	int stride[3];
	int plane_width[3];
	int plane_height[3];
} sk_av_buffer;

typedef struct {
	void *reader;
	void *output;
	int width;
	int height;
	double fps;
	double duration;
} sk_av_track;

static void *sk_av_open(const char *url) {
	@autoreleasepool {
		NSString *s = [NSString stringWithUTF8String:url];
		NSURL *u = [s containsString:@"://"] ? [NSURL URLWithString:s] : [NSURL fileURLWithPath:s];
		AVURLAsset *asset = [AVURLAsset URLAssetWithURL:u options:nil];
		if (asset == nil) {
			return NULL;
		}
		return (__bridge_retained void *)asset;
	}
}

static int sk_av_select(void *assetRef, int nv12, sk_av_track *out) {
	@autoreleasepool {
		AVURLAsset *asset = (__bridge AVURLAsset *)assetRef;
		NSArray<AVAssetTrack *> *tracks = [asset tracksWithMediaType:AVMediaTypeVideo];
		if (tracks.count == 0) {
			return -1;
		}
		AVAssetTrack *track = tracks.firstObject;
		NSError *err = nil;
		AVAssetReader *reader = [AVAssetReader assetReaderWithAsset:asset error:&err];
		if (reader == nil) {
			return -2;
		}
		OSType format = nv12 ? kCVPixelFormatType_420YpCbCr8BiPlanarVideoRange : kCVPixelFormatType_32BGRA;
		NSDictionary *settings = @{
			(id)kCVPixelBufferPixelFormatTypeKey: @(format),
			(id)kCVPixelBufferMetalCompatibilityKey: @YES,
		};
		AVAssetReaderTrackOutput *output = [AVAssetReaderTrackOutput assetReaderTrackOutputWithTrack:track outputSettings:settings];
		output.alwaysCopiesSampleData = NO;
		if (![reader canAddOutput:output]) {
			return -3;
		}
		[reader addOutput:output];
		if (![reader startReading]) {
			return -4;
		}
		CGSize size = CGSizeApplyAffineTransform(track.naturalSize, track.preferredTransform);
		out->reader = (__bridge_retained void *)reader;
		out->output = (__bridge_retained void *)output;
		out->width = (int)fabs(size.width);
		out->height = (int)fabs(size.height);
		out->fps = track.nominalFrameRate;
		out->duration = CMTimeGetSeconds(asset.duration);
		return 0;
	}
}

// sk_av_next returns a retained, locked CVPixelBufferRef, NULL at end of
// stream. status is 1 when the reader failed.
static void *sk_av_next(void *readerRef, void *outputRef, double *ts, int *status) {
	@autoreleasepool {
		AVAssetReader *reader = (__bridge AVAssetReader *)readerRef;
		AVAssetReaderTrackOutput *output = (__bridge AVAssetReaderTrackOutput *)outputRef;
		*status = 0;
		CMSampleBufferRef sample = [output copyNextSampleBuffer];
		if (sample == NULL) {
			*status = reader.status == AVAssetReaderStatusFailed ? 1 : 0;
			return NULL;
		}
		*ts = CMTimeGetSeconds(CMSampleBufferGetPresentationTimeStamp(sample));
		CVImageBufferRef image = CMSampleBufferGetImageBuffer(sample);
		if (image != NULL) {
			CVPixelBufferRetain(image);
			CVPixelBufferLockBaseAddress(image, kCVPixelBufferLock_ReadOnly);
		}
		CFRelease(sample);
		return image;
	}
}

static void sk_av_describe(void *ref, sk_av_buffer *out) {
	CVPixelBufferRef buf = (CVPixelBufferRef)ref;
	out->format = CVPixelBufferGetPixelFormatType(buf);
	out->width = (int)CVPixelBufferGetWidth(buf);
	out->height = (int)CVPixelBufferGetHeight(buf);
	if (!CVPixelBufferIsPlanar(buf)) {
		out->planes = 1;
		out->base[0] = CVPixelBufferGetBaseAddress(buf);
		out->stride[0] = (int)CVPixelBufferGetBytesPerRow(buf);
		out->plane_width[0] = out->width;
		out->plane_height[0] = out->height;
		return;
	}
	size_t n = CVPixelBufferGetPlaneCount(buf);
	out->planes = n > 3 ? 3 : (int)n;
	for (int i = 0; i < out->planes; i++) {
		out->base[i] = CVPixelBufferGetBaseAddressOfPlane(buf, i);
		out->stride[i] = (int)CVPixelBufferGetBytesPerRowOfPlane(buf, i);
		out->plane_width[i] = (int)CVPixelBufferGetWidthOfPlane(buf, i);
		out->plane_height[i] = (int)CVPixelBufferGetHeightOfPlane(buf, i);
	}
}

static void sk_av_release_buffer(void *ref) {
	CVPixelBufferRef buf = (CVPixelBufferRef)ref;
	CVPixelBufferUnlockBaseAddress(buf, kCVPixelBufferLock_ReadOnly);
	CVPixelBufferRelease(buf);
}

static void sk_av_close_reader(void *readerRef, void *outputRef) {
	AVAssetReader *reader = (__bridge_transfer AVAssetReader *)readerRef;
	[reader cancelReading];
	(void)(__bridge_transfer AVAssetReaderTrackOutput *)outputRef;
}

static void sk_av_release(void *ref) {
	(void)(__bridge_transfer id)ref;
}
*/
import "C"

import (
	"fmt"
	"io"
	"time"
	"unsafe"
)

func init() {
	RegisterOpener("avfoundation", 8, func(scheme, ext string) bool {
		switch scheme {
		case "", "file", "http", "https":
			return ext != ".y4m" && !imageExts[ext] && ext != ""
		}
		return false
	}, func(locator string) (Reader, error) {
		return OpenAVFoundation(locator, preferNV12.Load())
	})
}

// AVFoundationReader decodes with AVAssetReader into Metal-compatible
// CoreVideo pixel buffers.
type AVFoundationReader struct {
	asset  unsafe.Pointer
	reader unsafe.Pointer
	output unsafe.Pointer
	nv12   bool
	track  TrackInfo
}

// OpenAVFoundation opens locator. nv12 selects biplanar YUV output instead
// of BGRA.
func OpenAVFoundation(locator string, nv12 bool) (*AVFoundationReader, error) {
	curl := C.CString(locator)
	defer C.free(unsafe.Pointer(curl))
	asset := C.sk_av_open(curl)
	if asset == nil {
		return nil, fmt.Errorf("avfoundation: cannot open %s", locator)
	}
	return &AVFoundationReader{asset: asset, nv12: nv12}, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SelectVideoTrack implements Reader. AVAssetReader cannot seek, so
// selecting again starts a new reader.
func (r *AVFoundationReader) SelectVideoTrack() (TrackInfo, error) {
	r.closeReader()
	var t C.sk_av_track
	if rc := C.sk_av_select(r.asset, C.int(boolInt(r.nv12)), &t); rc != 0 {
		return TrackInfo{}, fmt.Errorf("avfoundation: select video track: status %d", int(rc))
	}
	r.reader, r.output = t.reader, t.output
	r.track = TrackInfo{
		Width:     int(t.width),
		Height:    int(t.height),
		FrameRate: float64(t.fps),
		Duration:  time.Duration(float64(t.duration) * float64(time.Second)),
		Format:    PixelFormatBGRA,
	}
	if r.nv12 {
		r.track.Format = PixelFormatNV12
	}
	return r.track, nil
}

// NextSample implements Reader.
func (r *AVFoundationReader) NextSample() (Sample, error) {
	if r.reader == nil {
		return Sample{}, fmt.Errorf("avfoundation: no track selected")
	}
	var ts C.double
	var status C.int
	pb := C.sk_av_next(r.reader, r.output, &ts, &status)
	if pb == nil {
		if status != 0 {
			return Sample{}, fmt.Errorf("avfoundation: reader failed")
		}
		return Sample{}, io.EOF
	}
	buf, err := wrapCVPixelBuffer(pb)
	if err != nil {
		C.sk_av_release_buffer(pb)
		return Sample{}, err
	}
	return Sample{Buffer: buf, Timestamp: time.Duration(float64(ts) * float64(time.Second))}, nil
}

func wrapCVPixelBuffer(pb unsafe.Pointer) (*PixelBuffer, error) {
	var d C.sk_av_buffer
	C.sk_av_describe(pb, &d)
	format := PixelFormat(d.format)
	if format.PlaneCount() == 0 {
		return nil, fmt.Errorf("avfoundation: unsupported pixel format %s", format.FourCC())
	}

	planes := make([]Plane, int(d.planes))
	for i := range planes {
		stride := int(d.stride[i])
		h := int(d.plane_height[i])
		planes[i] = Plane{
			Data:   unsafe.Slice((*byte)(d.base[i]), stride*h),
			Stride: stride,
			Width:  int(d.plane_width[i]),
			Height: h,
		}
	}
	release := func() { C.sk_av_release_buffer(pb) }
	return WrapNative(format, int(d.width), int(d.height), pb, planes, release), nil
}

func (r *AVFoundationReader) closeReader() {
	if r.reader != nil {
		C.sk_av_close_reader(r.reader, r.output)
		r.reader, r.output = nil, nil
	}
}

// Close implements Reader.
func (r *AVFoundationReader) Close() error {
	r.closeReader()
	if r.asset != nil {
		C.sk_av_release(r.asset)
		r.asset = nil
	}
	return nil
}
