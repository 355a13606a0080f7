package video

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var preferNV12 atomic.Bool

func init() { preferNV12.Store(true) }

// SetPreferNV12 selects biplanar YUV output from platform decoders that can
// produce either YUV or BGRA frames.
func SetPreferNV12(v bool) { preferNV12.Store(v) }

// TrackInfo describes the selected video track.
type TrackInfo struct {
	Width     int
	Height    int
	FrameRate float64
	// Duration is 0 when the source does not know its length.
	Duration time.Duration
	Format   PixelFormat
}

// Sample is one decoded frame.
type Sample struct {
	Buffer    *PixelBuffer
	Timestamp time.Duration
}

// Reader decodes a media source.
type Reader interface {
	// SelectVideoTrack picks the first video track and prepares decoding
	// from its start.
	SelectVideoTrack() (TrackInfo, error)
	// NextSample returns the next frame, or io.EOF at end of stream.
	NextSample() (Sample, error)
	Close() error
}

// OpenFunc opens a source locator.
type OpenFunc func(locator string) (Reader, error)

type opener struct {
	name     string
	priority int
	match    func(scheme, ext string) bool
	open     OpenFunc
}

var (
	openersMu sync.RWMutex
	openers   = map[string]*opener{}
)

// RegisterOpener adds a reader for locators matching match, which receives
// the URL scheme ("" for plain paths) and lower-case file extension.
// Higher priorities are tried first.
func RegisterOpener(name string, priority int, match func(scheme, ext string) bool, open OpenFunc) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[name] = &opener{name: name, priority: priority, match: match, open: open}
}

// Openers lists the registered reader names, highest priority first.
func Openers() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()
	list := sortedOpeners()
	names := make([]string, len(list))
	for i, o := range list {
		names[i] = o.name
	}
	return names
}

func sortedOpeners() []*opener {
	list := make([]*opener, 0, len(openers))
	for _, o := range openers {
		list = append(list, o)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority > list[j].priority
		}
		return list[i].name < list[j].name
	})
	return list
}

// splitLocator returns the scheme and extension of a locator.
func splitLocator(locator string) (scheme, ext string) {
	path := locator
	if u, err := url.Parse(locator); err == nil && len(u.Scheme) > 1 {
		scheme = strings.ToLower(u.Scheme)
		path = u.Path
		if path == "" {
			path = u.Opaque
		}
	}
	return scheme, strings.ToLower(filepath.Ext(path))
}

// Open opens locator with the first matching reader.
func Open(locator string) (Reader, error) {
	scheme, ext := splitLocator(locator)

	openersMu.RLock()
	list := sortedOpeners()
	openersMu.RUnlock()

	var lastErr error
	for _, o := range list {
		if !o.match(scheme, ext) {
			continue
		}
		r, err := o.open(locator)
		if err == nil {
			return r, nil
		}
		lastErr = fmt.Errorf("%s: %w", o.name, err)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("video: no reader for %q", locator)
}

// localPath strips a file:// scheme.
func localPath(locator string) string {
	if u, err := url.Parse(locator); err == nil && u.Scheme == "file" {
		return u.Path
	}
	return locator
}
