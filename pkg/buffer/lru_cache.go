package buffer

import (
	"container/list"
	"sync"

	"github.com/mochi-hpc/yokan-go/pkg/wire"
)

// lruCache behaves like keepAllCache but bounds the number of buffers
// retained per transfer mode; on overflow it evicts the oldest released
// buffer for that mode (spec.md §4.2).
type lruCache struct {
	mu       sync.Mutex
	margin   float64
	capacity int // 0 means unbounded (degrades to keep-all behavior)
	free     map[wire.TransferMode]*list.List // each element is *Buffer, front = most recently released
	live     int
}

func newLRUCache(marginBytes, capacity int) *lruCache {
	margin := 0.0
	if marginBytes > 0 {
		margin = float64(marginBytes) / 4096.0
	}
	return &lruCache{
		margin:   margin,
		capacity: capacity,
		free:     make(map[wire.TransferMode]*list.List),
	}
}

func (c *lruCache) listFor(mode wire.TransferMode) *list.List {
	l, ok := c.free[mode]
	if !ok {
		l = list.New()
		c.free[mode] = l
	}
	return l
}

func (c *lruCache) Get(size int, mode wire.TransferMode) (*Buffer, error) {
	c.mu.Lock()
	l := c.listFor(mode)
	for e := l.Front(); e != nil; e = e.Next() {
		b := e.Value.(*Buffer)
		if len(b.Data) >= size {
			l.Remove(e)
			c.live++
			c.mu.Unlock()
			b.inUse = 1
			return b, nil
		}
	}
	c.live++
	c.mu.Unlock()

	bufSize := size + int(float64(size)*c.margin)
	b := &Buffer{Data: make([]byte, bufSize), Mode: mode, cache: c}
	b.inUse = 1
	return b, nil
}

func (c *lruCache) release(b *Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live--
	l := c.listFor(b.Mode)
	l.PushFront(b)
	if c.capacity > 0 {
		for l.Len() > c.capacity {
			l.Remove(l.Back())
		}
	}
}

func (c *lruCache) LiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

func (c *lruCache) Close() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	leaked := c.live
	c.free = make(map[wire.TransferMode]*list.List)
	return leaked
}
