package buffer

import (
	"testing"

	"github.com/mochi-hpc/yokan-go/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestDefaultCacheGetRelease(t *testing.T) {
	c := New(Config{Policy: PolicyDefault})
	b, err := c.Get(128, wire.TransferReadWrite)
	require.NoError(t, err)
	require.Len(t, b.Data, 128)
	require.Equal(t, 1, c.LiveCount())

	b.Release()
	require.Equal(t, 0, c.LiveCount())

	leaked := c.Close()
	require.Equal(t, 0, leaked)
}

func TestDefaultCacheReportsLeak(t *testing.T) {
	c := New(Config{Policy: PolicyDefault})
	_, err := c.Get(16, wire.TransferReadOnly)
	require.NoError(t, err)
	require.Equal(t, 1, c.Close())
}

func TestKeepAllCacheReusesReleasedBuffer(t *testing.T) {
	c := New(Config{Policy: PolicyKeepAll})
	b1, err := c.Get(64, wire.TransferWriteOnly)
	require.NoError(t, err)
	b1.Release()

	b2, err := c.Get(32, wire.TransferWriteOnly)
	require.NoError(t, err)
	// b2 should reuse b1's backing array rather than allocate fresh.
	require.True(t, len(b2.Data) >= 32)
	require.Equal(t, 1, c.LiveCount())
}

func TestKeepAllCacheDoesNotReuseAcrossModes(t *testing.T) {
	c := New(Config{Policy: PolicyKeepAll})
	b1, err := c.Get(64, wire.TransferReadOnly)
	require.NoError(t, err)
	b1.Release()

	b2, err := c.Get(64, wire.TransferWriteOnly)
	require.NoError(t, err)
	require.NotSame(t, b1, b2)
}

func TestLRUCacheEvictsBeyondCapacity(t *testing.T) {
	c := New(Config{Policy: PolicyLRU, Capacity: 1})
	b1, err := c.Get(16, wire.TransferReadWrite)
	require.NoError(t, err)
	b2, err := c.Get(16, wire.TransferReadWrite)
	require.NoError(t, err)

	b1.Release()
	b2.Release() // capacity 1: b1 gets evicted, only b2 stays pooled

	lru := c.(*lruCache)
	require.Equal(t, 1, lru.listFor(wire.TransferReadWrite).Len())
}

func TestReleaseIsIdempotent(t *testing.T) {
	c := New(Config{Policy: PolicyDefault})
	b, err := c.Get(8, wire.TransferReadOnly)
	require.NoError(t, err)
	b.Release()
	require.NotPanics(t, func() { b.Release() })
	require.Equal(t, 0, c.LiveCount())
}
