package rpc_test

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mochi-hpc/yokan-go/pkg/rpc"
	"github.com/mochi-hpc/yokan-go/pkg/streaming"
	"github.com/mochi-hpc/yokan-go/pkg/wire"
)

func startServer(t *testing.T) *rpc.Server {
	t.Helper()
	srv := rpc.NewServer()
	require.NoError(t, srv.Listen("127.0.0.1:0"))
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })
	return srv
}

func adminClient(t *testing.T, srv *rpc.Server) *rpc.Client {
	c := rpc.NewClient(srv.Addr(), "")
	token, _, err := c.GenerateToken(0)
	require.NoError(t, err)
	return rpc.NewClient(srv.Addr(), token)
}

func TestOpenPutGetOverRPC(t *testing.T) {
	srv := startServer(t)
	c := adminClient(t, srv)

	dbID, err := c.OpenDatabase("demo", "map", "{}")
	require.NoError(t, err)
	require.NotEmpty(t, dbID)

	require.NoError(t, c.Put(dbID, wire.ModeDefault, []byte("k"), []byte("v")))
	v, found, err := c.Get(dbID, []byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v", string(v))

	ok, err := c.Exists(dbID, []byte("k"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.Erase(dbID, []byte("k")))
	ok, err = c.Exists(dbID, []byte("k"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListAndOpenRequireToken(t *testing.T) {
	srv := startServer(t)
	unauth := rpc.NewClient(srv.Addr(), "bogus-token")

	_, err := unauth.ListDatabases()
	require.Error(t, err)

	_, err = unauth.OpenDatabase("x", "map", "{}")
	require.Error(t, err)
}

func TestDocStoreLoadOverRPC(t *testing.T) {
	srv := startServer(t)
	c := adminClient(t, srv)

	dbID, err := c.OpenDatabase("", "map", "{}")
	require.NoError(t, err)
	require.NoError(t, c.CollCreate(dbID, "widgets"))

	id, err := c.DocStore(dbID, "widgets", []byte("hello"))
	require.NoError(t, err)

	doc, found, err := c.DocLoad(dbID, "widgets", id)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "hello", string(doc))
}

func TestMigrationLifecycleOverRPC(t *testing.T) {
	srv := startServer(t)
	c := adminClient(t, srv)

	dbID, err := c.OpenDatabase("migrate-me", "map", "{}")
	require.NoError(t, err)

	root, files, err := c.StartMigration(dbID)
	require.NoError(t, err)
	require.Empty(t, root)
	require.Empty(t, files)

	require.NoError(t, c.CompleteMigration(dbID))

	_, _, err = c.Get(dbID, []byte("anything"))
	require.Error(t, err)
}

func TestBulkOpsOverRPC(t *testing.T) {
	srv := startServer(t)
	c := adminClient(t, srv)

	dbID, err := c.OpenDatabase("", "map", "{}")
	require.NoError(t, err)

	keys := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}
	values := [][]byte{[]byte("1"), []byte("22"), []byte("333")}
	require.NoError(t, c.PutBulk(dbID, wire.ModeDefault, keys, values))

	slotSizes := []uint64{1, 2, 3}
	got, sizes, err := c.GetBulk(dbID, keys, slotSizes, false)
	require.NoError(t, err)
	for i := range keys {
		require.Equal(t, uint64(len(values[i])), sizes[i])
		require.Equal(t, string(values[i]), string(got[i]))
	}

	found, err := c.ExistsBulk(dbID, keys)
	require.NoError(t, err)
	require.Equal(t, []bool{true, true, true}, found)

	lens, err := c.LengthBulk(dbID, keys)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3}, lens)

	require.NoError(t, c.EraseBulk(dbID, keys))
	found, err = c.ExistsBulk(dbID, keys)
	require.NoError(t, err)
	require.Equal(t, []bool{false, false, false}, found)
}

func TestGetBulkPackedOverRPC(t *testing.T) {
	srv := startServer(t)
	c := adminClient(t, srv)

	dbID, err := c.OpenDatabase("", "map", "{}")
	require.NoError(t, err)

	keys := [][]byte{[]byte("k1"), []byte("k2")}
	values := [][]byte{[]byte("hello"), []byte("world!")}
	require.NoError(t, c.PutBulk(dbID, wire.ModeDefault, keys, values))

	got, sizes, err := c.GetBulk(dbID, keys, []uint64{5, 6}, true)
	require.NoError(t, err)
	require.Equal(t, uint64(5), sizes[0])
	require.Equal(t, uint64(6), sizes[1])
	require.Equal(t, "hello", string(got[0]))
	require.Equal(t, "world!", string(got[1]))
}

func TestListKeysOverRPC(t *testing.T) {
	srv := startServer(t)
	c := adminClient(t, srv)

	dbID, err := c.OpenDatabase("", "map", "{}")
	require.NoError(t, err)

	require.NoError(t, c.Put(dbID, wire.ModeDefault, []byte("a"), []byte("1")))
	require.NoError(t, c.Put(dbID, wire.ModeDefault, []byte("b"), []byte("2")))
	require.NoError(t, c.Put(dbID, wire.ModeDefault, []byte("c"), []byte("3")))

	keys, err := c.ListKeys(dbID, wire.ModeDefault, nil, nil, 10)
	require.NoError(t, err)
	require.Len(t, keys, 3)

	keys, values, err := c.ListKeyvals(dbID, wire.ModeDefault, nil, nil, 10)
	require.NoError(t, err)
	require.Len(t, keys, 3)
	require.Len(t, values, 3)
}

func TestListKeysBulkOverRPC(t *testing.T) {
	srv := startServer(t)
	c := adminClient(t, srv)

	dbID, err := c.OpenDatabase("", "map", "{}")
	require.NoError(t, err)

	require.NoError(t, c.Put(dbID, wire.ModeDefault, []byte("a"), []byte("1")))
	require.NoError(t, c.Put(dbID, wire.ModeDefault, []byte("bb"), []byte("22")))

	keys, err := c.ListKeysBulk(dbID, wire.ModeDefault, nil, nil, 10, 64)
	require.NoError(t, err)
	require.Len(t, keys, 2)

	keys, values, err := c.ListKeyvalsBulk(dbID, wire.ModeDefault, nil, nil, 10, 64, 64)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.Len(t, values, 2)
}

func TestFetchIterOverRPC(t *testing.T) {
	srv := startServer(t)
	c := adminClient(t, srv)

	dbID, err := c.OpenDatabase("", "map", "{}")
	require.NoError(t, err)

	require.NoError(t, c.Put(dbID, wire.ModeDefault, []byte("a"), []byte("1")))
	require.NoError(t, c.Put(dbID, wire.ModeDefault, []byte("b"), []byte("2")))

	var mu sync.Mutex
	var seen []string
	cb := func(item streaming.Item) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, string(item.Key)+"="+string(item.Value))
		return nil
	}
	require.NoError(t, c.Fetch(dbID, wire.ModeDefault, nil, nil, 10, streaming.DefaultBatchSize, cb))
	sort.Strings(seen)
	require.Equal(t, []string{"a=1", "b=2"}, seen)

	seen = nil
	require.NoError(t, c.Iter(dbID, wire.ModeDefault, nil, nil, 10, streaming.DefaultBatchSize, cb))
	require.Len(t, seen, 2)
}

func TestCollOpsOverRPC(t *testing.T) {
	srv := startServer(t)
	c := adminClient(t, srv)

	dbID, err := c.OpenDatabase("", "map", "{}")
	require.NoError(t, err)

	require.NoError(t, c.CollCreate(dbID, "widgets"))
	ok, err := c.CollExists(dbID, "widgets")
	require.NoError(t, err)
	require.True(t, ok)

	id1, err := c.DocStore(dbID, "widgets", []byte("one"))
	require.NoError(t, err)
	id2, err := c.DocStore(dbID, "widgets", []byte("two"))
	require.NoError(t, err)

	size, err := c.CollSize(dbID, "widgets")
	require.NoError(t, err)
	require.Equal(t, uint64(2), size)

	lastID, err := c.CollLastID(dbID, "widgets")
	require.NoError(t, err)
	require.Equal(t, id2+1, lastID)

	require.NoError(t, c.DocUpdate(dbID, "widgets", id1, []byte("one-updated")))
	doc, found, err := c.DocLoad(dbID, "widgets", id1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "one-updated", string(doc))

	length, found, err := c.DocLength(dbID, "widgets", id1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(len("one-updated")), length)

	ids, docs, err := c.DocList(dbID, "widgets", wire.ModeDefault, 0, nil, 10)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.Len(t, docs, 2)

	require.NoError(t, c.DocErase(dbID, "widgets", id1))
	_, found, err = c.DocLoad(dbID, "widgets", id1)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.CollDrop(dbID, "widgets"))
	ok, err = c.CollExists(dbID, "widgets")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDocBulkOpsOverRPC(t *testing.T) {
	srv := startServer(t)
	c := adminClient(t, srv)

	dbID, err := c.OpenDatabase("", "map", "{}")
	require.NoError(t, err)
	require.NoError(t, c.CollCreate(dbID, "widgets"))

	docs := [][]byte{[]byte("doc-one"), []byte("doc-two")}
	ids, err := c.DocStoreBulk(dbID, "widgets", docs)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	areaSize := len(docs[0]) + len(docs[1])
	loaded, sizes, err := c.DocLoadBulk(dbID, "widgets", ids, areaSize, true)
	require.NoError(t, err)
	require.Equal(t, uint64(len(docs[0])), sizes[0])
	require.Equal(t, uint64(len(docs[1])), sizes[1])
	require.Equal(t, "doc-one", string(loaded[0]))
	require.Equal(t, "doc-two", string(loaded[1]))

	lens, err := c.DocLengthBulk(dbID, "widgets", ids)
	require.NoError(t, err)
	require.Equal(t, uint64(len(docs[0])), lens[0])
	require.Equal(t, uint64(len(docs[1])), lens[1])

	require.NoError(t, c.DocEraseBulk(dbID, "widgets", ids))
	_, found, err := c.DocLoad(dbID, "widgets", ids[0])
	require.NoError(t, err)
	require.False(t, found)
}

func TestDocFetchIterOverRPC(t *testing.T) {
	srv := startServer(t)
	c := adminClient(t, srv)

	dbID, err := c.OpenDatabase("", "map", "{}")
	require.NoError(t, err)
	require.NoError(t, c.CollCreate(dbID, "widgets"))

	_, err = c.DocStore(dbID, "widgets", []byte("one"))
	require.NoError(t, err)
	_, err = c.DocStore(dbID, "widgets", []byte("two"))
	require.NoError(t, err)

	var mu sync.Mutex
	var docs []string
	cb := func(item streaming.Item) error {
		mu.Lock()
		defer mu.Unlock()
		docs = append(docs, string(item.Doc))
		return nil
	}
	require.NoError(t, c.DocFetch(dbID, "widgets", wire.ModeDefault, 0, nil, 10, streaming.DefaultBatchSize, cb))
	sort.Strings(docs)
	require.Equal(t, []string{"one", "two"}, docs)

	docs = nil
	require.NoError(t, c.DocIter(dbID, "widgets", wire.ModeDefault, 0, nil, 10, streaming.DefaultBatchSize, cb))
	require.Len(t, docs, 2)
}
