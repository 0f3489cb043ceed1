package engine

import (
	"context"
	"testing"

	"github.com/mochi-hpc/yokan-go/pkg/backend/mapkv"
	"github.com/mochi-hpc/yokan-go/pkg/codec"
	"github.com/mochi-hpc/yokan-go/pkg/registry"
	"github.com/mochi-hpc/yokan-go/pkg/transport"
	"github.com/mochi-hpc/yokan-go/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestDirectPutGetExistsLengthErase(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	e := New(reg)
	db, err := reg.Open("", "map", "{}", mapkv.New())
	require.NoError(t, err)

	require.NoError(t, e.Put(ctx, db.ID, wire.ModeDefault, []byte("foo"), []byte("bar")))

	v, size, err := e.Get(ctx, db.ID, []byte("foo"))
	require.NoError(t, err)
	require.Equal(t, "bar", string(v))
	require.EqualValues(t, 3, size)

	ok, err := e.Exists(ctx, db.ID, []byte("foo"))
	require.NoError(t, err)
	require.True(t, ok)

	length, err := e.Length(ctx, db.ID, []byte("foo"))
	require.NoError(t, err)
	require.EqualValues(t, 3, length)

	require.NoError(t, e.Erase(ctx, db.ID, []byte("foo")))
	ok, err = e.Exists(ctx, db.ID, []byte("foo"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetMissingKeyReturnsSentinel(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	e := New(reg)
	db, err := reg.Open("", "map", "{}", mapkv.New())
	require.NoError(t, err)

	_, size, err := e.Get(ctx, db.ID, []byte("missing"))
	require.NoError(t, err)
	require.Equal(t, wire.KeyNotFound, size)
}

func TestPutBulkThenGetBulkPacked(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	e := New(reg)
	db, err := reg.Open("", "map", "{}", mapkv.New())
	require.NoError(t, err)

	keys := [][]byte{[]byte("k1"), []byte("k2")}
	values := [][]byte{[]byte("v1"), []byte("value-two")}
	putBuf := make([]byte, codec.PutBulkSize(keys, values))
	n, err := codec.EncodePutBulk(putBuf, keys, values)
	require.NoError(t, err)
	require.NoError(t, e.PutBulk(ctx, db.ID, wire.ModeDefault, transport.NewBulkHandle(putBuf[:n]), len(keys)))

	// get_bulk, packed=true: ksizes, vsizes(unused as input), packed
	// keys, then 32 bytes of destination value area.
	header := 2*len(keys)*8 + len(keys[0]) + len(keys[1])
	getBuf := make([]byte, header+32)
	ksizes := []uint64{uint64(len(keys[0])), uint64(len(keys[1]))}
	off, err := writeU64Vec(getBuf, 0, ksizes)
	require.NoError(t, err)
	off, err = writeU64Vec(getBuf, off, []uint64{0, 0})
	require.NoError(t, err)
	off += copy(getBuf[off:], keys[0])
	off += copy(getBuf[off:], keys[1])

	region := transport.NewBulkHandle(getBuf)
	require.NoError(t, e.GetBulk(ctx, db.ID, region, len(keys), true))

	valueArea := getBuf[header:]
	require.Equal(t, "v1value-two", string(valueArea[:len("v1value-two")]))
}

// TestGetBulkPackedOverflowPoisonsRemainingItems guards against a
// packed get_bulk overflow letting a later, smaller value "sneak in"
// after an earlier item already overflowed the value area.
func TestGetBulkPackedOverflowPoisonsRemainingItems(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	e := New(reg)
	db, err := reg.Open("", "map", "{}", mapkv.New())
	require.NoError(t, err)

	keys := [][]byte{[]byte("k1"), []byte("k2")}
	values := [][]byte{
		[]byte("0123456789"), // 10 bytes: will not fit in an 8-byte area
		[]byte("tiny"),       // 4 bytes: would fit on its own
	}
	putBuf := make([]byte, codec.PutBulkSize(keys, values))
	n, err := codec.EncodePutBulk(putBuf, keys, values)
	require.NoError(t, err)
	require.NoError(t, e.PutBulk(ctx, db.ID, wire.ModeDefault, transport.NewBulkHandle(putBuf[:n]), len(keys)))

	const valueAreaSize = 8
	getBuf := make([]byte, codec.GetBulkSize(keys, valueAreaSize))
	_, err = codec.EncodeGetBulk(getBuf, keys, []uint64{0, 0})
	require.NoError(t, err)

	region := transport.NewBulkHandle(getBuf)
	require.NoError(t, e.GetBulk(ctx, db.ID, region, len(keys), true))

	g, err := codec.DecodeGetBulk(region, len(keys), true)
	require.NoError(t, err)
	require.Equal(t, wire.SizeTooSmall, g.SlotSizes[0])
	require.Equal(t, wire.SizeTooSmall, g.SlotSizes[1], "a later smaller item must not sneak into an already-overflowed packed area")
}

// writeU64Vec mirrors codec's unexported vector writer for test setup;
// duplicated here rather than exported from codec, since only tests
// need to hand-assemble a get_bulk request header.
func writeU64Vec(buf []byte, off int, vals []uint64) (int, error) {
	for i, v := range vals {
		for b := 0; b < 8; b++ {
			buf[off+i*8+b] = byte(v >> (8 * uint(b)))
		}
	}
	return off + len(vals)*8, nil
}
