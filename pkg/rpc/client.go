package rpc

import (
	"encoding/gob"
	"fmt"
	"net"
	"time"

	"github.com/mochi-hpc/yokan-go/pkg/codec"
	"github.com/mochi-hpc/yokan-go/pkg/streaming"
	"github.com/mochi-hpc/yokan-go/pkg/wire"
)

// Client is a thin one-method-per-RPC wrapper around dialing a
// provider's rpc.Server, mirroring warren's pkg/client.Client shape.
// Every call opens its own connection, sends one Request, and reads
// back one Response — the same one-shot dial-send-receive idiom
// pkg/transport.RemoteHandle uses for bulk push/pull.
type Client struct {
	Addr  string
	Token string
}

// NewClient targets the provider listening at addr. token is used for
// admin-gated operations (open/close/destroy/list/migrate); it can be
// empty for plain KV/document calls.
func NewClient(addr, token string) *Client {
	return &Client{Addr: addr, Token: token}
}

func (c *Client) call(req Request) (Response, error) {
	req.Token = c.Token
	conn, err := net.Dial("tcp", c.Addr)
	if err != nil {
		return Response{}, fmt.Errorf("rpc client: dial %s: %w", c.Addr, err)
	}
	defer conn.Close()

	if err := gob.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("rpc client: send: %w", err)
	}
	var resp Response
	if err := gob.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("rpc client: receive: %w", err)
	}
	if resp.Err != "" {
		return Response{}, fmt.Errorf("rpc client: %s", resp.Err)
	}
	return resp, nil
}

// OpenDatabase implements `open_db`.
func (c *Client) OpenDatabase(name, dbType, config string) (string, error) {
	resp, err := c.call(Request{Op: "open", Name: name, DBType: dbType, Config: config})
	if err != nil {
		return "", err
	}
	return resp.DBID, nil
}

// CloseDatabase implements `close_db`.
func (c *Client) CloseDatabase(dbID string) error {
	_, err := c.call(Request{Op: "close", DBID: dbID})
	return err
}

// DestroyDatabase implements `destroy_db`.
func (c *Client) DestroyDatabase(dbID string) error {
	_, err := c.call(Request{Op: "destroy", DBID: dbID})
	return err
}

// ListDatabases implements the registry enumeration admin call.
func (c *Client) ListDatabases() ([]string, error) {
	resp, err := c.call(Request{Op: "list"})
	if err != nil {
		return nil, err
	}
	return resp.Names, nil
}

// GenerateToken mints an admin token valid for ttl (0 defaults to 24h).
func (c *Client) GenerateToken(ttl time.Duration) (string, time.Time, error) {
	resp, err := c.call(Request{Op: "token_generate", TokenTTL: ttl})
	if err != nil {
		return "", time.Time{}, err
	}
	return resp.Token, resp.ExpiresAt, nil
}

// StartMigration implements `start_migration`. The returned root/file
// list is empty for backends without on-disk files (spec.md §4.9).
func (c *Client) StartMigration(dbID string) (root string, files []string, err error) {
	resp, err := c.call(Request{Op: "migrate_start", DBID: dbID})
	if err != nil {
		return "", nil, err
	}
	return string(resp.Value), resp.Names, nil
}

// CompleteMigration implements `complete_migration`.
func (c *Client) CompleteMigration(dbID string) error {
	_, err := c.call(Request{Op: "migrate_complete", DBID: dbID})
	return err
}

// CancelMigration implements `cancel_migration`.
func (c *Client) CancelMigration(dbID string) error {
	_, err := c.call(Request{Op: "migrate_cancel", DBID: dbID})
	return err
}

// Put implements `put`.
func (c *Client) Put(dbID string, mode wire.Mode, key, value []byte) error {
	_, err := c.call(Request{Op: "put", DBID: dbID, Mode: mode, Key: key, Value: value})
	return err
}

// Get implements `get`.
func (c *Client) Get(dbID string, key []byte) (value []byte, found bool, err error) {
	resp, err := c.call(Request{Op: "get", DBID: dbID, Key: key})
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Found, nil
}

// Exists implements `exists`.
func (c *Client) Exists(dbID string, key []byte) (bool, error) {
	resp, err := c.call(Request{Op: "exists", DBID: dbID, Key: key})
	if err != nil {
		return false, err
	}
	return resp.Found, nil
}

// Length implements `length`.
func (c *Client) Length(dbID string, key []byte) (size uint64, found bool, err error) {
	resp, err := c.call(Request{Op: "length", DBID: dbID, Key: key})
	if err != nil {
		return 0, false, err
	}
	return resp.Size, resp.Found, nil
}

// Erase implements `erase`.
func (c *Client) Erase(dbID string, key []byte) error {
	_, err := c.call(Request{Op: "erase", DBID: dbID, Key: key})
	return err
}

// Count implements `count`.
func (c *Client) Count(dbID string) (uint64, error) {
	resp, err := c.call(Request{Op: "count", DBID: dbID})
	if err != nil {
		return 0, err
	}
	return resp.Size, nil
}

// CollCreate implements `coll_create`.
func (c *Client) CollCreate(dbID, collection string) error {
	_, err := c.call(Request{Op: "coll_create", DBID: dbID, Collection: collection})
	return err
}

// DocStore implements `doc_store`.
func (c *Client) DocStore(dbID, collection string, doc []byte) (uint64, error) {
	resp, err := c.call(Request{Op: "doc_store", DBID: dbID, Collection: collection, Value: doc})
	if err != nil {
		return 0, err
	}
	return resp.DocID, nil
}

// DocLoad implements `doc_load`.
func (c *Client) DocLoad(dbID, collection string, docID uint64) (doc []byte, found bool, err error) {
	resp, err := c.call(Request{Op: "doc_load", DBID: dbID, Collection: collection, DocID: docID})
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Found, nil
}

// PutBulk implements `put_bulk`.
func (c *Client) PutBulk(dbID string, mode wire.Mode, keys, values [][]byte) error {
	buf := make([]byte, codec.PutBulkSize(keys, values))
	n, err := codec.EncodePutBulk(buf, keys, values)
	if err != nil {
		return err
	}
	_, err = c.call(Request{Op: "put_bulk", DBID: dbID, Mode: mode, Region: buf[:n], Count: len(keys)})
	return err
}

// GetBulk implements `get_bulk`. packed asks the provider to pack
// results back-to-back into a valueAreaSize-byte area (derived from
// the sum of slotSizes); non-packed pre-allocates one fixed slot per
// key, sized by slotSizes, and every offset below is computed from
// that original request, never from a post-call re-decode of a region
// whose vsizes trailer the provider has since overwritten with result
// sizes.
func (c *Client) GetBulk(dbID string, keys [][]byte, slotSizes []uint64, packed bool) (values [][]byte, sizes []uint64, err error) {
	valueAreaSize := 0
	for _, s := range slotSizes {
		valueAreaSize += int(s)
	}
	buf := make([]byte, codec.GetBulkSize(keys, valueAreaSize))
	if _, err := codec.EncodeGetBulk(buf, keys, slotSizes); err != nil {
		return nil, nil, err
	}
	resp, err := c.call(Request{Op: "get_bulk", DBID: dbID, Region: buf, Count: len(keys), Packed: packed})
	if err != nil {
		return nil, nil, err
	}

	n := len(keys)
	vsizesOff := n * codec.SizeOfUint64
	sizes, err = codec.ReadUint64VecAt(resp.Region, vsizesOff, n)
	if err != nil {
		return nil, nil, err
	}

	headerSize := 2 * n * codec.SizeOfUint64
	for _, k := range keys {
		headerSize += len(k)
	}
	area := resp.Region[headerSize:]

	if packed {
		values, err = codec.SplitPacked(area, 0, sizes)
		if err != nil {
			return nil, nil, err
		}
		return values, sizes, nil
	}

	values = make([][]byte, n)
	pos := 0
	for i, slotSize := range slotSizes {
		if !wire.IsSentinel(sizes[i]) {
			values[i] = append([]byte(nil), area[pos:pos+int(sizes[i])]...)
		}
		pos += int(slotSize)
	}
	return values, sizes, nil
}

// ExistsBulk implements `exists_bulk`.
func (c *Client) ExistsBulk(dbID string, keys [][]byte) ([]bool, error) {
	buf := make([]byte, codec.KeysBulkSize(keys)+codec.BitfieldLen(len(keys)))
	if _, err := codec.EncodeKeysBulk(buf, keys); err != nil {
		return nil, err
	}
	resp, err := c.call(Request{Op: "exists_bulk", DBID: dbID, Region: buf, Count: len(keys)})
	if err != nil {
		return nil, err
	}
	field := resp.Region[len(resp.Region)-codec.BitfieldLen(len(keys)):]
	out := make([]bool, len(keys))
	for i := range keys {
		out[i] = codec.GetBit(field, i)
	}
	return out, nil
}

// LengthBulk implements `length_bulk`.
func (c *Client) LengthBulk(dbID string, keys [][]byte) ([]uint64, error) {
	buf := make([]byte, codec.KeysBulkSize(keys)+len(keys)*codec.SizeOfUint64)
	if _, err := codec.EncodeKeysBulk(buf, keys); err != nil {
		return nil, err
	}
	resp, err := c.call(Request{Op: "length_bulk", DBID: dbID, Region: buf, Count: len(keys)})
	if err != nil {
		return nil, err
	}
	vsizesOff := len(resp.Region) - len(keys)*codec.SizeOfUint64
	return codec.ReadUint64VecAt(resp.Region, vsizesOff, len(keys))
}

// EraseBulk implements `erase_bulk`.
func (c *Client) EraseBulk(dbID string, keys [][]byte) error {
	buf := make([]byte, codec.KeysBulkSize(keys))
	if _, err := codec.EncodeKeysBulk(buf, keys); err != nil {
		return err
	}
	_, err := c.call(Request{Op: "erase_bulk", DBID: dbID, Region: buf, Count: len(keys)})
	return err
}

// ListKeys implements the direct shape of `list_keys`.
func (c *Client) ListKeys(dbID string, mode wire.Mode, fromKey, filter []byte, maxCount int) ([][]byte, error) {
	resp, err := c.call(Request{Op: "list_keys", DBID: dbID, Mode: mode, FromKey: fromKey, Filter: filter, MaxCount: maxCount})
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

// ListKeyvals implements the direct shape of `list_keyvals`.
func (c *Client) ListKeyvals(dbID string, mode wire.Mode, fromKey, filter []byte, maxCount int) (keys, values [][]byte, err error) {
	resp, err := c.call(Request{Op: "list_keyvals", DBID: dbID, Mode: mode, FromKey: fromKey, Filter: filter, MaxCount: maxCount})
	if err != nil {
		return nil, nil, err
	}
	return resp.Keys, resp.Values, nil
}

// ListKeysBulk implements the bulk-pull shape of `list_keys`.
func (c *Client) ListKeysBulk(dbID string, mode wire.Mode, fromKey, filter []byte, count, keyBufSize int) ([][]byte, error) {
	keys, _, err := c.listBulk(dbID, "list_keys_bulk", mode, fromKey, filter, count, keyBufSize, 0, false)
	return keys, err
}

// ListKeyvalsBulk implements the bulk-pull shape of `list_keyvals`.
func (c *Client) ListKeyvalsBulk(dbID string, mode wire.Mode, fromKey, filter []byte, count, keyBufSize, valBufSize int) (keys, values [][]byte, err error) {
	return c.listBulk(dbID, "list_keyvals_bulk", mode, fromKey, filter, count, keyBufSize, valBufSize, true)
}

func (c *Client) listBulk(dbID, op string, mode wire.Mode, fromKey, filter []byte, count, keyBufSize, valBufSize int, withValues bool) ([][]byte, [][]byte, error) {
	size := len(fromKey) + len(filter) + count*codec.SizeOfUint64
	if withValues {
		size += count * codec.SizeOfUint64
	}
	size += keyBufSize
	if withValues {
		size += valBufSize
	}
	buf := make([]byte, size)
	off := copy(buf, fromKey)
	off += copy(buf[off:], filter)
	ksizesOff := off

	resp, err := c.call(Request{
		Op: op, DBID: dbID, Mode: mode, Region: buf, Count: count,
		FromKeySize: len(fromKey), FilterSize: len(filter),
		KeyBufSize: keyBufSize, ValBufSize: valBufSize, WithValues: withValues,
	})
	if err != nil {
		return nil, nil, err
	}

	region := resp.Region
	ksizes, err := codec.ReadUint64VecAt(region, ksizesOff, count)
	if err != nil {
		return nil, nil, err
	}
	pos := ksizesOff + count*codec.SizeOfUint64
	var vsizes []uint64
	if withValues {
		vsizes, err = codec.ReadUint64VecAt(region, pos, count)
		if err != nil {
			return nil, nil, err
		}
		pos += count * codec.SizeOfUint64
	}
	keyArea := region[pos : pos+keyBufSize]
	pos += keyBufSize
	var valArea []byte
	if withValues {
		valArea = region[pos : pos+valBufSize]
	}

	var keys, values [][]byte
	keyPos, valPos := 0, 0
	for i := 0; i < count; i++ {
		if wire.IsSentinel(ksizes[i]) {
			break
		}
		keys = append(keys, append([]byte(nil), keyArea[keyPos:keyPos+int(ksizes[i])]...))
		keyPos += int(ksizes[i])
		if withValues {
			if wire.IsSentinel(vsizes[i]) {
				values = append(values, nil)
				continue
			}
			values = append(values, append([]byte(nil), valArea[valPos:valPos+int(vsizes[i])]...))
			valPos += int(vsizes[i])
		}
	}
	return keys, values, nil
}

// Fetch implements `fetch`: the provider streams key/value pairs back
// over a back-RPC endpoint this call stands up for its duration,
// running cb once per item (spec.md §4.7), instead of returning them
// through the RPC's own response.
func (c *Client) Fetch(dbID string, mode wire.Mode, fromKey, filter []byte, maxCount, batchSize int, cb streaming.Callback) error {
	return c.streamKeys(dbID, "fetch", mode, fromKey, filter, maxCount, batchSize, cb)
}

// Iter implements `iter`: like Fetch, but streamed items carry no value.
func (c *Client) Iter(dbID string, mode wire.Mode, fromKey, filter []byte, maxCount, batchSize int, cb streaming.Callback) error {
	return c.streamKeys(dbID, "iter", mode, fromKey, filter, maxCount, batchSize, cb)
}

func (c *Client) streamKeys(dbID, op string, mode wire.Mode, fromKey, filter []byte, maxCount, batchSize int, cb streaming.Callback) error {
	recv, err := streaming.ListenReceiver("127.0.0.1:0", cb)
	if err != nil {
		return err
	}
	defer recv.Close()
	_, err = c.call(Request{Op: op, DBID: dbID, Mode: mode, FromKey: fromKey, Filter: filter, MaxCount: maxCount, OpRef: recv.Addr(), BatchSize: batchSize})
	return err
}

// DocFetch implements `doc_fetch`: the document-layer counterpart of
// Fetch, streaming id/doc pairs.
func (c *Client) DocFetch(dbID, collection string, mode wire.Mode, fromID uint64, filter []byte, maxCount, batchSize int, cb streaming.Callback) error {
	return c.streamDocs(dbID, "doc_fetch", collection, mode, fromID, filter, maxCount, batchSize, cb)
}

// DocIter implements `doc_iter`: like DocFetch, but streamed items
// carry no document body.
func (c *Client) DocIter(dbID, collection string, mode wire.Mode, fromID uint64, filter []byte, maxCount, batchSize int, cb streaming.Callback) error {
	return c.streamDocs(dbID, "doc_iter", collection, mode, fromID, filter, maxCount, batchSize, cb)
}

func (c *Client) streamDocs(dbID, op, collection string, mode wire.Mode, fromID uint64, filter []byte, maxCount, batchSize int, cb streaming.Callback) error {
	recv, err := streaming.ListenReceiver("127.0.0.1:0", cb)
	if err != nil {
		return err
	}
	defer recv.Close()
	_, err = c.call(Request{Op: op, DBID: dbID, Collection: collection, Mode: mode, FromID: fromID, Filter: filter, MaxCount: maxCount, OpRef: recv.Addr(), BatchSize: batchSize})
	return err
}

// CollDrop implements `coll_drop`.
func (c *Client) CollDrop(dbID, collection string) error {
	_, err := c.call(Request{Op: "coll_drop", DBID: dbID, Collection: collection})
	return err
}

// CollExists implements `coll_exists`.
func (c *Client) CollExists(dbID, collection string) (bool, error) {
	resp, err := c.call(Request{Op: "coll_exists", DBID: dbID, Collection: collection})
	if err != nil {
		return false, err
	}
	return resp.Found, nil
}

// CollSize implements `coll_size`.
func (c *Client) CollSize(dbID, collection string) (uint64, error) {
	resp, err := c.call(Request{Op: "coll_size", DBID: dbID, Collection: collection})
	if err != nil {
		return 0, err
	}
	return resp.Size, nil
}

// CollLastID implements `coll_last_id`.
func (c *Client) CollLastID(dbID, collection string) (uint64, error) {
	resp, err := c.call(Request{Op: "coll_last_id", DBID: dbID, Collection: collection})
	if err != nil {
		return 0, err
	}
	return resp.Size, nil
}

// DocUpdate implements `doc_update`.
func (c *Client) DocUpdate(dbID, collection string, docID uint64, doc []byte) error {
	_, err := c.call(Request{Op: "doc_update", DBID: dbID, Collection: collection, DocID: docID, Value: doc})
	return err
}

// DocErase implements `doc_erase`.
func (c *Client) DocErase(dbID, collection string, docID uint64) error {
	_, err := c.call(Request{Op: "doc_erase", DBID: dbID, Collection: collection, DocID: docID})
	return err
}

// DocLength implements `doc_length`.
func (c *Client) DocLength(dbID, collection string, docID uint64) (size uint64, found bool, err error) {
	resp, err := c.call(Request{Op: "doc_length", DBID: dbID, Collection: collection, DocID: docID})
	if err != nil {
		return 0, false, err
	}
	return resp.Size, resp.Found, nil
}

// DocList implements the direct shape of `doc_list`.
func (c *Client) DocList(dbID, collection string, mode wire.Mode, fromID uint64, filter []byte, maxCount int) (ids []uint64, docs [][]byte, err error) {
	resp, err := c.call(Request{Op: "doc_list", DBID: dbID, Collection: collection, Mode: mode, FromID: fromID, Filter: filter, MaxCount: maxCount})
	if err != nil {
		return nil, nil, err
	}
	return resp.DocIDs, resp.Docs, nil
}

// DocStoreBulk implements `doc_store_bulk`.
func (c *Client) DocStoreBulk(dbID, collection string, docs [][]byte) ([]uint64, error) {
	buf := make([]byte, codec.DocStoreBulkSize(docs))
	if _, err := codec.EncodeDocStoreBulk(buf, docs); err != nil {
		return nil, err
	}
	resp, err := c.call(Request{Op: "doc_store_bulk", DBID: dbID, Collection: collection, Region: buf, Count: len(docs)})
	if err != nil {
		return nil, err
	}
	idsOff := len(resp.Region) - len(docs)*codec.SizeOfUint64
	return codec.ReadUint64VecAt(resp.Region, idsOff, len(docs))
}

// DocLoadBulk implements `doc_load_bulk`.
func (c *Client) DocLoadBulk(dbID, collection string, ids []uint64, docAreaSize int, packed bool) (docs [][]byte, sizes []uint64, err error) {
	buf := make([]byte, codec.DocLoadBulkSize(ids, docAreaSize))
	if _, err := codec.EncodeDocLoadBulk(buf, ids); err != nil {
		return nil, nil, err
	}
	resp, err := c.call(Request{Op: "doc_load_bulk", DBID: dbID, Collection: collection, Region: buf, Count: len(ids), Packed: packed})
	if err != nil {
		return nil, nil, err
	}
	vsizesOff := len(ids) * codec.SizeOfUint64
	sizes, err = codec.ReadUint64VecAt(resp.Region, vsizesOff, len(ids))
	if err != nil {
		return nil, nil, err
	}
	area := resp.Region[2*len(ids)*codec.SizeOfUint64:]
	docs, err = codec.SplitPacked(area, 0, sizes)
	if err != nil {
		return nil, nil, err
	}
	return docs, sizes, nil
}

// DocEraseBulk implements `doc_erase_bulk`.
func (c *Client) DocEraseBulk(dbID, collection string, ids []uint64) error {
	buf := make([]byte, codec.DocIDsBulkSize(ids, false))
	if _, err := codec.EncodeDocIDsBulk(buf, ids); err != nil {
		return err
	}
	_, err := c.call(Request{Op: "doc_erase_bulk", DBID: dbID, Collection: collection, Region: buf, Count: len(ids)})
	return err
}

// DocLengthBulk implements `doc_length_bulk`.
func (c *Client) DocLengthBulk(dbID, collection string, ids []uint64) ([]uint64, error) {
	buf := make([]byte, codec.DocIDsBulkSize(ids, true))
	if _, err := codec.EncodeDocIDsBulk(buf, ids); err != nil {
		return nil, err
	}
	resp, err := c.call(Request{Op: "doc_length_bulk", DBID: dbID, Collection: collection, Region: buf, Count: len(ids)})
	if err != nil {
		return nil, err
	}
	trailerOff := len(ids) * codec.SizeOfUint64
	return codec.ReadUint64VecAt(resp.Region, trailerOff, len(ids))
}
