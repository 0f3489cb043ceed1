package buffer

import (
	"sort"
	"sync"

	"github.com/mochi-hpc/yokan-go/pkg/wire"
)

// keepAllCache keeps every released buffer indexed by (mode, size) and
// hands back the smallest one that still satisfies a later request,
// allocating fresh (with a size margin) only on a miss.
type keepAllCache struct {
	mu     sync.Mutex
	margin float64
	free   map[wire.TransferMode][]*Buffer // kept sorted by size ascending
	live   int
}

func newKeepAllCache(marginBytes int) *keepAllCache {
	margin := 0.0
	if marginBytes > 0 {
		// Config.Margin is expressed in bytes by callers that know a
		// typical request size; normalize to a fraction against a 4KiB
		// reference so tiny and huge margins both behave sensibly.
		margin = float64(marginBytes) / 4096.0
	}
	return &keepAllCache{
		margin: margin,
		free:   make(map[wire.TransferMode][]*Buffer),
	}
}

func (c *keepAllCache) Get(size int, mode wire.TransferMode) (*Buffer, error) {
	c.mu.Lock()
	bucket := c.free[mode]
	idx := sort.Search(len(bucket), func(i int) bool { return len(bucket[i].Data) >= size })
	if idx < len(bucket) {
		b := bucket[idx]
		c.free[mode] = append(bucket[:idx], bucket[idx+1:]...)
		c.live++
		c.mu.Unlock()
		b.inUse = 1
		return b, nil
	}
	c.live++
	c.mu.Unlock()

	bufSize := size + int(float64(size)*c.margin)
	b := &Buffer{Data: make([]byte, bufSize), Mode: mode, cache: c}
	b.inUse = 1
	return b, nil
}

func (c *keepAllCache) release(b *Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live--
	bucket := c.free[b.Mode]
	idx := sort.Search(len(bucket), func(i int) bool { return len(bucket[i].Data) >= len(b.Data) })
	bucket = append(bucket, nil)
	copy(bucket[idx+1:], bucket[idx:])
	bucket[idx] = b
	c.free[b.Mode] = bucket
}

func (c *keepAllCache) LiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

func (c *keepAllCache) Close() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	leaked := c.live
	c.free = make(map[wire.TransferMode][]*Buffer)
	return leaked
}
