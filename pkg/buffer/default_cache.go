package buffer

import (
	"sync"

	"github.com/mochi-hpc/yokan-go/pkg/wire"
)

// defaultCache allocates on Get and frees on Release; it only tracks the
// live set so Close can report leaks.
type defaultCache struct {
	mu   sync.Mutex
	live map[*Buffer]struct{}
}

func newDefaultCache() *defaultCache {
	return &defaultCache{live: make(map[*Buffer]struct{})}
}

func (c *defaultCache) Get(size int, mode wire.TransferMode) (*Buffer, error) {
	b := &Buffer{Data: make([]byte, size), Mode: mode, cache: c}
	b.inUse = 1
	c.mu.Lock()
	c.live[b] = struct{}{}
	c.mu.Unlock()
	return b, nil
}

func (c *defaultCache) release(b *Buffer) {
	c.mu.Lock()
	delete(c.live, b)
	c.mu.Unlock()
}

func (c *defaultCache) LiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

func (c *defaultCache) Close() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	leaked := len(c.live)
	c.live = make(map[*Buffer]struct{})
	return leaked
}
