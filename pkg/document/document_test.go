package document_test

import (
	"context"
	"testing"

	"github.com/mochi-hpc/yokan-go/pkg/backend/mapkv"
	"github.com/mochi-hpc/yokan-go/pkg/document"
	"github.com/mochi-hpc/yokan-go/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadUpdateLifecycle(t *testing.T) {
	ctx := context.Background()
	kv := mapkv.New()
	docs := document.NewStore(kv)

	require.NoError(t, docs.Create(ctx, "C"))
	exists, err := docs.Exists(ctx, "C")
	require.NoError(t, err)
	require.True(t, exists)

	id0, err := docs.Store(ctx, "C", []byte("alpha"))
	require.NoError(t, err)
	require.EqualValues(t, 0, id0)

	id1, err := docs.Store(ctx, "C", []byte("beta"))
	require.NoError(t, err)
	require.EqualValues(t, 1, id1)

	size, err := docs.Size(ctx, "C")
	require.NoError(t, err)
	require.EqualValues(t, 2, size)

	last, err := docs.LastID(ctx, "C")
	require.NoError(t, err)
	require.EqualValues(t, 2, last)

	require.NoError(t, docs.Update(ctx, "C", id0, []byte("ALPHA")))
	v, found, err := docs.Load(ctx, "C", id0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "ALPHA", string(v))
}

func TestUpdateUnknownIDFails(t *testing.T) {
	ctx := context.Background()
	docs := document.NewStore(mapkv.New())
	require.NoError(t, docs.Create(ctx, "C"))
	err := docs.Update(ctx, "C", 42, []byte("x"))
	require.Error(t, err)
}

func TestDropRemovesDocumentsAndMetadata(t *testing.T) {
	ctx := context.Background()
	docs := document.NewStore(mapkv.New())
	require.NoError(t, docs.Create(ctx, "C"))
	_, err := docs.Store(ctx, "C", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, docs.Drop(ctx, "C"))
	exists, err := docs.Exists(ctx, "C")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestListIteratesInIDOrder(t *testing.T) {
	ctx := context.Background()
	docs := document.NewStore(mapkv.New())
	require.NoError(t, docs.Create(ctx, "C"))
	for _, v := range []string{"a", "b", "c"} {
		_, err := docs.Store(ctx, "C", []byte(v))
		require.NoError(t, err)
	}

	var ids []uint64
	err := docs.List(ctx, "C", wire.ModeInclusive, 0, 10, nil, func(id uint64, doc []byte) bool {
		ids = append(ids, id)
		return true
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1, 2}, ids)
}

func TestEraseDecrementsCount(t *testing.T) {
	ctx := context.Background()
	docs := document.NewStore(mapkv.New())
	require.NoError(t, docs.Create(ctx, "C"))
	id, err := docs.Store(ctx, "C", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, docs.Erase(ctx, "C", id))
	size, err := docs.Size(ctx, "C")
	require.NoError(t, err)
	require.EqualValues(t, 0, size)
}
