package mapkv

import (
	"context"
	"testing"

	"github.com/mochi-hpc/yokan-go/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestPutGetExistsLengthErase(t *testing.T) {
	ctx := context.Background()
	b := New()

	require.NoError(t, b.Put(ctx, wire.ModeDefault, []byte("foo"), []byte("bar")))
	v, found, err := b.Get(ctx, []byte("foo"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "bar", string(v))

	ok, err := b.Exists(ctx, []byte("foo"))
	require.NoError(t, err)
	require.True(t, ok)

	n, found, err := b.Length(ctx, []byte("foo"))
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 3, n)

	require.NoError(t, b.Erase(ctx, []byte("foo")))
	ok, err = b.Exists(ctx, []byte("foo"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPutRejectsEmptyKey(t *testing.T) {
	b := New()
	err := b.Put(context.Background(), wire.ModeDefault, nil, []byte("v"))
	require.Error(t, err)
}

func TestPutNewOnlyRejectsExisting(t *testing.T) {
	ctx := context.Background()
	b := New()
	require.NoError(t, b.Put(ctx, wire.ModeDefault, []byte("k"), []byte("1")))
	err := b.Put(ctx, wire.ModeNewOnly, []byte("k"), []byte("2"))
	require.Error(t, err)
}

func TestPutAppend(t *testing.T) {
	ctx := context.Background()
	b := New()
	require.NoError(t, b.Put(ctx, wire.ModeDefault, []byte("k"), []byte("a")))
	require.NoError(t, b.Put(ctx, wire.ModeAppend, []byte("k"), []byte("b")))
	v, _, _ := b.Get(ctx, []byte("k"))
	require.Equal(t, "ab", string(v))
}

func TestListOrderedAndInclusive(t *testing.T) {
	ctx := context.Background()
	b := New()
	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, b.Put(ctx, wire.ModeDefault, []byte(k), []byte(k)))
	}
	var got []string
	err := b.List(ctx, wire.ModeDefault, []byte("b"), 10, nil, true, func(k, v []byte) bool {
		got = append(got, string(k))
		return true
	})
	require.NoError(t, err)
	require.Equal(t, []string{"c", "d"}, got)

	got = nil
	err = b.List(ctx, wire.ModeInclusive, []byte("b"), 10, nil, true, func(k, v []byte) bool {
		got = append(got, string(k))
		return true
	})
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c", "d"}, got)
}

func TestListRespectsMaxCount(t *testing.T) {
	ctx := context.Background()
	b := New()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, b.Put(ctx, wire.ModeDefault, []byte(k), []byte(k)))
	}
	var got []string
	err := b.List(ctx, wire.ModeInclusive, nil, 2, nil, true, func(k, v []byte) bool {
		got = append(got, string(k))
		return true
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, got)
}

func TestDestroyClearsTree(t *testing.T) {
	ctx := context.Background()
	b := New()
	require.NoError(t, b.Put(ctx, wire.ModeDefault, []byte("k"), []byte("v")))
	require.NoError(t, b.Destroy(ctx))
	n, _ := b.Count(ctx)
	require.EqualValues(t, 0, n)
}
