package soft

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/gputypes"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/go-drift/surfacekit/pkg/gpu"
)

// bytesPerTexel returns the texel size of the plane formats the importer uses.
func bytesPerTexel(f gputypes.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRG8Unorm:
		return 2
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return 4
	}
	return 0
}

type poolKey struct {
	width, height int
	format        gputypes.TextureFormat
}

type pool struct {
	mu   sync.Mutex
	free [][]byte
}

// maxShapes bounds how many distinct plane shapes keep free buffers. The
// least recently used shape is dropped first.
const maxShapes = 16

// CacheStats counts pooled buffer lookups.
type CacheStats struct {
	Hits, Misses uint64
}

// TextureCache copies planes into pooled host buffers. Buffers of released
// textures are reused for later planes of the same size and format.
type TextureCache struct {
	pools    *lru.Cache[poolKey, *pool]
	perPool  int
	mu       sync.Mutex
	pending  []*Texture
	stats    CacheStats
	released bool
}

var _ gpu.TextureCache = (*TextureCache)(nil)

// NewTextureCache creates a cache keeping up to capacity free buffers per
// plane shape. A capacity of 0 disables pooling.
func NewTextureCache(capacity int) *TextureCache {
	pools, err := lru.New[poolKey, *pool](maxShapes)
	if err != nil {
		panic(err) // only for a non-positive size
	}
	return &TextureCache{pools: pools, perPool: capacity}
}

// Stats returns the pool lookup counts.
func (c *TextureCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *TextureCache) poolFor(key poolKey) *pool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pools.Get(key)
	if !ok {
		p = &pool{}
		c.pools.Add(key, p)
	}
	return p
}

func (c *TextureCache) TextureFromPlane(buf gpu.PlaneBuffer, plane int, format gputypes.TextureFormat) (gpu.Texture, error) {
	if plane < 0 || plane >= buf.PlaneCount() {
		return nil, fmt.Errorf("plane %d out of range [0,%d)", plane, buf.PlaneCount())
	}
	bpt := bytesPerTexel(format)
	if bpt == 0 {
		return nil, fmt.Errorf("unsupported plane format %v", format)
	}
	w, h := buf.PlaneSize(plane)
	src, stride := buf.PlaneData(plane)
	if !gpu.PlaneFits(len(src), stride, w, h, bpt) {
		return nil, fmt.Errorf("plane %d: %dx%d with stride %d does not fit %d bytes", plane, w, h, stride, len(src))
	}
	row := w * bpt

	key := poolKey{width: w, height: h, format: format}
	data := c.take(key, row*h)
	for y := 0; y < h; y++ {
		copy(data[y*row:(y+1)*row], src[y*stride:y*stride+row])
	}
	return &Texture{cache: c, key: key, data: data, stride: row}, nil
}

func (c *TextureCache) take(key poolKey, size int) []byte {
	if c.perPool == 0 {
		return make([]byte, size)
	}
	p := c.poolFor(key)
	p.mu.Lock()
	var data []byte
	if n := len(p.free); n > 0 {
		data = p.free[n-1]
		p.free = p.free[:n-1]
	}
	p.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if data != nil {
		c.stats.Hits++
		return data
	}
	c.stats.Misses++
	return make([]byte, size)
}

func (c *TextureCache) recycle(t *Texture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released || c.perPool == 0 {
		return
	}
	c.pending = append(c.pending, t)
}

// Flush returns the buffers of released textures to their pools.
func (c *TextureCache) Flush() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, t := range pending {
		p := c.poolFor(t.key)
		p.mu.Lock()
		if len(p.free) < c.perPool {
			p.free = append(p.free, t.data)
		}
		p.mu.Unlock()
	}
}

func (c *TextureCache) Release() {
	c.mu.Lock()
	c.released = true
	c.pending = nil
	c.pools.Purge()
	c.mu.Unlock()
}

// Texture is a plane held in host memory.
type Texture struct {
	cache    *TextureCache
	key      poolKey
	data     []byte
	stride   int
	released bool
}

var _ gpu.CPUTexture = (*Texture)(nil)

func (t *Texture) Width() int                        { return t.key.width }
func (t *Texture) Height() int                       { return t.key.height }
func (t *Texture) Format() gputypes.TextureFormat    { return t.key.format }
func (t *Texture) Native() unsafe.Pointer            { return nil }
func (t *Texture) Pixels() (data []byte, stride int) { return t.data, t.stride }

func (t *Texture) Release() {
	if t.released {
		return
	}
	t.released = true
	t.cache.recycle(t)
}
