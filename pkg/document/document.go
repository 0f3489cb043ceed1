// Package document implements the document-collection layer (spec.md
// §4.5) on top of any backend.Backend's KV surface. Every
// backend.Backend gets documents "for free" by wrapping itself with
// NewStore: next_id and count live in a metadata key per collection,
// and documents live under a reserved prefix with the id encoded
// big-endian so KV order matches id order.
package document

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/mochi-hpc/yokan-go/pkg/backend"
	"github.com/mochi-hpc/yokan-go/pkg/wire"
	"github.com/mochi-hpc/yokan-go/pkg/yerr"
)

const (
	docMarker  = 0x00
	metaMarker = 0x01
)

// Store implements backend.DocumentStore over an arbitrary KV backend.
type Store struct {
	kv backend.Backend
}

// NewStore wraps kv with the document-collection schema.
func NewStore(kv backend.Backend) *Store { return &Store{kv: kv} }

func metaKey(collection string) []byte {
	return append([]byte(collection), metaMarker)
}

func docPrefix(collection string) []byte {
	return append([]byte(collection), docMarker)
}

func docKey(collection string, id uint64) []byte {
	k := make([]byte, 0, len(collection)+1+8)
	k = append(k, []byte(collection)...)
	k = append(k, docMarker)
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], id)
	return append(k, idBuf[:]...)
}

// meta packs (next_id, count) into a 16-byte record.
type meta struct {
	nextID uint64
	count  uint64
}

func decodeMeta(b []byte) meta {
	if len(b) < 16 {
		return meta{}
	}
	return meta{
		nextID: binary.BigEndian.Uint64(b[0:8]),
		count:  binary.BigEndian.Uint64(b[8:16]),
	}
}

func (m meta) encode() []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], m.nextID)
	binary.BigEndian.PutUint64(buf[8:16], m.count)
	return buf
}

func (s *Store) loadMeta(ctx context.Context, collection string) (meta, bool, error) {
	v, found, err := s.kv.Get(ctx, metaKey(collection))
	if err != nil || !found {
		return meta{}, found, err
	}
	return decodeMeta(v), true, nil
}

func (s *Store) Create(ctx context.Context, collection string) error {
	_, found, err := s.loadMeta(ctx, collection)
	if err != nil {
		return err
	}
	if found {
		return nil // idempotent create, matching spec.md's upsert-friendly admin ops
	}
	return s.kv.Put(ctx, wire.ModeDefault, metaKey(collection), meta{}.encode())
}

func (s *Store) Drop(ctx context.Context, collection string) error {
	prefix := docPrefix(collection)
	var keys [][]byte
	err := s.kv.List(ctx, wire.ModeInclusive, prefix, maxScan, prefixFilter{prefix}, false, func(k, v []byte) bool {
		keys = append(keys, append([]byte(nil), k...))
		return true
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.kv.Erase(ctx, k); err != nil {
			return err
		}
	}
	return s.kv.Erase(ctx, metaKey(collection))
}

func (s *Store) Exists(ctx context.Context, collection string) (bool, error) {
	_, found, err := s.loadMeta(ctx, collection)
	return found, err
}

func (s *Store) Size(ctx context.Context, collection string) (uint64, error) {
	m, found, err := s.loadMeta(ctx, collection)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, yerr.New(yerr.InvalidDatabase)
	}
	return m.count, nil
}

func (s *Store) LastID(ctx context.Context, collection string) (uint64, error) {
	m, found, err := s.loadMeta(ctx, collection)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, yerr.New(yerr.InvalidDatabase)
	}
	return m.nextID, nil
}

func (s *Store) Store(ctx context.Context, collection string, doc []byte) (uint64, error) {
	m, found, err := s.loadMeta(ctx, collection)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, yerr.New(yerr.InvalidDatabase)
	}
	id := m.nextID
	if err := s.kv.Put(ctx, wire.ModeDefault, docKey(collection, id), doc); err != nil {
		return 0, err
	}
	m.nextID++
	m.count++
	if err := s.kv.Put(ctx, wire.ModeDefault, metaKey(collection), m.encode()); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) Load(ctx context.Context, collection string, id uint64) ([]byte, bool, error) {
	return s.kv.Get(ctx, docKey(collection, id))
}

func (s *Store) Update(ctx context.Context, collection string, id uint64, doc []byte) error {
	_, found, err := s.kv.Get(ctx, docKey(collection, id))
	if err != nil {
		return err
	}
	if !found {
		return yerr.New(yerr.InvalidID)
	}
	return s.kv.Put(ctx, wire.ModeDefault, docKey(collection, id), doc)
}

func (s *Store) Erase(ctx context.Context, collection string, id uint64) error {
	m, found, err := s.loadMeta(ctx, collection)
	if err != nil {
		return err
	}
	if !found {
		return yerr.New(yerr.InvalidDatabase)
	}
	_, existed, err := s.kv.Get(ctx, docKey(collection, id))
	if err != nil {
		return err
	}
	if !existed {
		return nil
	}
	if err := s.kv.Erase(ctx, docKey(collection, id)); err != nil {
		return err
	}
	if m.count > 0 {
		m.count--
	}
	return s.kv.Put(ctx, wire.ModeDefault, metaKey(collection), m.encode())
}

func (s *Store) Length(ctx context.Context, collection string, id uint64) (uint64, bool, error) {
	return s.kv.Length(ctx, docKey(collection, id))
}

func (s *Store) List(ctx context.Context, collection string, mode wire.Mode, fromID uint64, maxCount int, filter backend.Filter, visit backend.DocVisitor) error {
	prefix := docPrefix(collection)
	from := docKey(collection, fromID)
	return s.kv.List(ctx, mode, from, maxCount, prefixAndUserFilter{prefix, filter}, true, func(k, v []byte) bool {
		id := binary.BigEndian.Uint64(k[len(prefix):])
		return visit(id, v)
	})
}

const maxScan = 1 << 30

// prefixFilter matches keys sharing a byte prefix; used internally by
// Drop to enumerate a collection's document keys regardless of any
// caller-supplied filter.
type prefixFilter struct{ prefix []byte }

func (prefixFilter) RequiresValue() bool { return false }
func (f prefixFilter) Check(key, _ []byte) bool {
	return bytes.HasPrefix(key, f.prefix)
}

// prefixAndUserFilter narrows a List scan to one collection's documents
// before applying the caller's filter (spec.md §4.4).
type prefixAndUserFilter struct {
	prefix []byte
	inner  backend.Filter
}

func (f prefixAndUserFilter) RequiresValue() bool {
	return f.inner != nil && f.inner.RequiresValue()
}

func (f prefixAndUserFilter) Check(key, value []byte) bool {
	if !bytes.HasPrefix(key, f.prefix) {
		return false
	}
	if f.inner == nil {
		return true
	}
	if dc, ok := f.inner.(docChecker); ok && len(key) == len(f.prefix)+8 {
		return dc.CheckDoc(binary.BigEndian.Uint64(key[len(f.prefix):]), value)
	}
	return f.inner.Check(key, value)
}

// docChecker is implemented by filters that evaluate a document by id
// and body (pkg/filter.Lua binds __id__/__doc__ this way).
type docChecker interface {
	CheckDoc(id uint64, doc []byte) bool
}
