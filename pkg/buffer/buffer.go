// Package buffer implements the provider-wide pool of RDMA-registered
// staging buffers described in spec.md §4.2: three named policies
// (default, keep-all, lru) sharing one Buffer type and one Cache
// interface.
package buffer

import (
	"sync/atomic"

	"github.com/mochi-hpc/yokan-go/pkg/wire"
)

// Buffer is a staging area borrowed from a Cache for the duration of one
// request. Callers read/write Data directly; Mode records which RDMA
// direction the buffer was registered for.
type Buffer struct {
	Data []byte
	Mode wire.TransferMode

	cache Cache
	inUse int32 // guarded by atomic ops: the hot-path "spinlock"
}

// markInUse attempts to claim the buffer for the caller using a spinlock
// acquisition on the hot path (spec.md §4.2/§5: "the fast path uses a
// spinlock acquisition"). It never blocks across a context switch — the
// buffer is only ever handed out by one Get call at a time by
// construction, so this just guards against accidental double-release.
func (b *Buffer) markInUse() bool {
	return atomic.CompareAndSwapInt32(&b.inUse, 0, 1)
}

func (b *Buffer) markFree() {
	atomic.StoreInt32(&b.inUse, 0)
}

// Release returns the buffer to the cache it was allocated from. It is
// safe, and a no-op, to call Release more than once.
func (b *Buffer) Release() {
	if b.cache == nil {
		return
	}
	if !atomic.CompareAndSwapInt32(&b.inUse, 1, 0) {
		return
	}
	b.cache.release(b)
}

// Cache hands out and reclaims Buffers. Policy selects default/keep-all/lru
// at construction time (spec.md §6 "buffer_cache" config).
type Cache interface {
	// Get returns a buffer of at least size bytes registered for mode.
	Get(size int, mode wire.TransferMode) (*Buffer, error)
	// LiveCount returns the number of buffers currently checked out.
	LiveCount() int
	// Close tears the cache down and returns the number of buffers that
	// were still checked out, for the caller to log as a leak warning
	// (spec.md §4.2 "Tracks live count to log leaks at teardown").
	Close() int

	release(b *Buffer)
}

// Policy selects one of the three buffer cache implementations.
type Policy string

const (
	PolicyDefault Policy = "default"
	PolicyKeepAll Policy = "keep_all"
	PolicyLRU     Policy = "lru"
)

// Config configures a Cache (spec.md §6 "buffer_cache").
type Config struct {
	Policy Policy
	// Margin scales the extra capacity the keep-all and lru policies
	// add on allocation so a slightly larger future request can reuse
	// the same buffer: a fresh buffer for a request of n bytes gets
	// n + n*Margin/4096 bytes.
	Margin int
	// Capacity bounds the number of buffers kept per transfer mode by
	// the lru policy. Zero means unbounded (falls back to keep-all
	// behavior).
	Capacity int
}

// New constructs a Cache for the given config.
func New(cfg Config) Cache {
	switch cfg.Policy {
	case PolicyKeepAll:
		return newKeepAllCache(cfg.Margin)
	case PolicyLRU:
		return newLRUCache(cfg.Margin, cfg.Capacity)
	default:
		return newDefaultCache()
	}
}

// sizeKey groups pooled buffers by (mode, size class) the way the
// keep-all/lru policies index their free lists.
type sizeKey struct {
	mode wire.TransferMode
	size int
}
