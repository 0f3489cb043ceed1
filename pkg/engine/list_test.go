package engine

import (
	"context"
	"testing"

	"github.com/mochi-hpc/yokan-go/pkg/backend/mapkv"
	"github.com/mochi-hpc/yokan-go/pkg/registry"
	"github.com/mochi-hpc/yokan-go/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestListKeysWithPrefixFilter(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	e := New(reg)
	db, err := reg.Open("", "map", "{}", mapkv.New())
	require.NoError(t, err)

	for _, k := range []string{"apple", "apricot", "banana"} {
		require.NoError(t, e.Put(ctx, db.ID, wire.ModeDefault, []byte(k), []byte(k)))
	}

	results, err := e.ListKeys(ctx, db.ID, wire.ModeInclusive, nil, []byte("ap"), 10, false)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "apple", string(results[0].Key))
	require.Equal(t, "apricot", string(results[1].Key))
}

func TestListKeyvalsIncludesValues(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	e := New(reg)
	db, err := reg.Open("", "map", "{}", mapkv.New())
	require.NoError(t, err)
	require.NoError(t, e.Put(ctx, db.ID, wire.ModeDefault, []byte("k"), []byte("v")))

	results, err := e.ListKeys(ctx, db.ID, wire.ModeInclusive, nil, nil, 10, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "v", string(results[0].Value))
}

func TestDocumentLifecycleThroughEngine(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	e := New(reg)
	db, err := reg.Open("", "map", "{}", mapkv.New())
	require.NoError(t, err)

	require.NoError(t, e.CollCreate(ctx, db.ID, "C"))
	id0, err := e.DocStore(ctx, db.ID, "C", []byte("alpha"))
	require.NoError(t, err)
	require.EqualValues(t, 0, id0)

	size, err := e.CollSize(ctx, db.ID, "C")
	require.NoError(t, err)
	require.EqualValues(t, 1, size)

	require.NoError(t, e.DocUpdate(ctx, db.ID, "C", id0, []byte("ALPHA")))
	v, found, err := e.DocLoad(ctx, db.ID, "C", id0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "ALPHA", string(v))

	docs, err := e.DocList(ctx, db.ID, "C", wire.ModeInclusive, 0, nil, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}
