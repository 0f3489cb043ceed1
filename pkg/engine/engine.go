// Package engine implements the request engine (C6): the per-operation
// dispatch spec.md §4.6 describes — acquire a database reference, take
// its read/write lock, invoke the backend, and (for bulk calls) decode/
// encode through pkg/codec. Direct-shape methods operate on plain
// byte slices for NO_RDMA callers; bulk-shape methods operate on a
// pkg/codec Region backed by a pkg/buffer staging buffer.
package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/mochi-hpc/yokan-go/pkg/codec"
	"github.com/mochi-hpc/yokan-go/pkg/filter"
	"github.com/mochi-hpc/yokan-go/pkg/registry"
	"github.com/mochi-hpc/yokan-go/pkg/wire"
	"github.com/mochi-hpc/yokan-go/pkg/yerr"
)

// Engine dispatches decoded requests to the database a caller named.
type Engine struct {
	Registry *registry.Registry
}

// New creates an Engine bound to reg.
func New(reg *registry.Registry) *Engine { return &Engine{Registry: reg} }

// acquire resolves id to a live, non-migrating database and bumps its
// reference count; the caller must call release when done (spec.md
// §4.6 step 1: "fails with INVALID_DATABASE if unknown or
// mid-migration").
func (e *Engine) acquire(id uuid.UUID) (*registry.Database, error) {
	db, err := e.Registry.Lookup(id)
	if err != nil {
		return nil, err
	}
	if db.MigrationState() == wire.Migrating {
		return nil, yerr.New(yerr.InvalidDatabase)
	}
	if db.MigrationState() == wire.Migrated {
		return nil, yerr.New(yerr.InvalidDatabase)
	}
	db.Acquire()
	return db, nil
}

func release(db *registry.Database) { db.Release() }

// Count implements the `count` RPC.
func (e *Engine) Count(ctx context.Context, id uuid.UUID) (uint64, error) {
	db, err := e.acquire(id)
	if err != nil {
		return 0, err
	}
	defer release(db)
	db.OpLock.RLock()
	defer db.OpLock.RUnlock()
	return db.Backend.Count(ctx)
}

// Put implements the direct `put` RPC for a single key/value.
func (e *Engine) Put(ctx context.Context, id uuid.UUID, mode wire.Mode, key, value []byte) error {
	db, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release(db)
	db.OpLock.Lock()
	defer db.OpLock.Unlock()
	return db.Backend.Put(ctx, mode, key, value)
}

// PutBulk implements `put_bulk`/`put` (bulk-pull shape): decode the
// region per spec.md §4.1 and write every pair.
func (e *Engine) PutBulk(ctx context.Context, id uuid.UUID, mode wire.Mode, r codec.Region, count int) error {
	db, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release(db)

	pb, err := codec.DecodePutBulk(r, count)
	if err != nil {
		return err
	}
	db.OpLock.Lock()
	defer db.OpLock.Unlock()
	for i := range pb.Keys {
		if err := db.Backend.Put(ctx, mode, pb.Keys[i], pb.Values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Get implements the direct `get` RPC for a single key.
func (e *Engine) Get(ctx context.Context, id uuid.UUID, key []byte) ([]byte, uint64, error) {
	db, err := e.acquire(id)
	if err != nil {
		return nil, wire.KeyNotFound, err
	}
	defer release(db)
	db.OpLock.RLock()
	defer db.OpLock.RUnlock()
	v, found, err := db.Backend.Get(ctx, key)
	if err != nil {
		return nil, wire.KeyNotFound, err
	}
	if !found {
		return nil, wire.KeyNotFound, nil
	}
	return v, uint64(len(v)), nil
}

// GetBulk implements `get_bulk`: fills the destination area the region
// describes, honoring the packed vs. scatter distinction of spec.md
// §4.1, and writes the resolved sizes back into the vsizes vector.
func (e *Engine) GetBulk(ctx context.Context, id uuid.UUID, r codec.Region, count int, packed bool) error {
	db, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release(db)

	g, err := codec.DecodeGetBulk(r, count, packed)
	if err != nil {
		return err
	}
	db.OpLock.RLock()
	values := make([][]byte, len(g.Keys))
	sizes := make([]uint64, len(g.Keys))
	for i, k := range g.Keys {
		v, found, err := db.Backend.Get(ctx, k)
		if err != nil {
			db.OpLock.RUnlock()
			return err
		}
		if !found {
			sizes[i] = wire.KeyNotFound
			continue
		}
		values[i] = v
		sizes[i] = uint64(len(v))
	}
	db.OpLock.RUnlock()

	area := g.ValueArea()
	if packed {
		pos := 0
		for i, v := range values {
			if wire.IsSentinel(sizes[i]) {
				continue
			}
			if pos+len(v) > len(area) {
				// Once the packed buffer fills, poison pos so every
				// later item also reports SizeTooSmall instead of
				// being checked against the same unfilled tail.
				sizes[i] = wire.SizeTooSmall
				pos = len(area) + 1
				continue
			}
			pos += copy(area[pos:], v)
		}
	} else {
		offs := g.SlotOffsets()
		for i, v := range values {
			if wire.IsSentinel(sizes[i]) {
				continue
			}
			slotSize := int(g.SlotSizes[i])
			if len(v) > slotSize || offs[i]+len(v) > len(area) {
				sizes[i] = wire.SizeTooSmall
				continue
			}
			copy(area[offs[i]:], v)
		}
	}
	return g.WriteResultSizes(r, sizes)
}

// Exists implements the direct `exists` RPC for a single key.
func (e *Engine) Exists(ctx context.Context, id uuid.UUID, key []byte) (bool, error) {
	db, err := e.acquire(id)
	if err != nil {
		return false, err
	}
	defer release(db)
	db.OpLock.RLock()
	defer db.OpLock.RUnlock()
	return db.Backend.Exists(ctx, key)
}

// ExistsBulk implements `exists_bulk`: fills the trailing bitfield.
func (e *Engine) ExistsBulk(ctx context.Context, id uuid.UUID, r codec.Region, count int) error {
	db, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release(db)

	eb, err := codec.DecodeExistsBulk(r, count)
	if err != nil {
		return err
	}
	db.OpLock.RLock()
	defer db.OpLock.RUnlock()
	for i, k := range eb.Keys {
		ok, err := db.Backend.Exists(ctx, k)
		if err != nil {
			return err
		}
		if ok {
			eb.WriteBit(r, i, true)
		}
	}
	return nil
}

// Length implements the direct `length` RPC for a single key.
func (e *Engine) Length(ctx context.Context, id uuid.UUID, key []byte) (uint64, error) {
	db, err := e.acquire(id)
	if err != nil {
		return wire.KeyNotFound, err
	}
	defer release(db)
	db.OpLock.RLock()
	defer db.OpLock.RUnlock()
	size, found, err := db.Backend.Length(ctx, key)
	if err != nil {
		return wire.KeyNotFound, err
	}
	if !found {
		return wire.KeyNotFound, nil
	}
	return size, nil
}

// LengthBulk implements `length_bulk`.
func (e *Engine) LengthBulk(ctx context.Context, id uuid.UUID, r codec.Region, count int) error {
	db, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release(db)

	lb, err := codec.DecodeLengthBulk(r, count)
	if err != nil {
		return err
	}
	sizes := make([]uint64, len(lb.Keys))
	db.OpLock.RLock()
	for i, k := range lb.Keys {
		size, found, err := db.Backend.Length(ctx, k)
		if err != nil {
			db.OpLock.RUnlock()
			return err
		}
		if !found {
			sizes[i] = wire.KeyNotFound
			continue
		}
		sizes[i] = size
	}
	db.OpLock.RUnlock()
	return lb.WriteResultSizes(r, sizes)
}

// Erase implements the direct `erase` RPC for a single key.
func (e *Engine) Erase(ctx context.Context, id uuid.UUID, key []byte) error {
	db, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release(db)
	db.OpLock.Lock()
	defer db.OpLock.Unlock()
	return db.Backend.Erase(ctx, key)
}

// EraseBulk implements `erase_bulk`.
func (e *Engine) EraseBulk(ctx context.Context, id uuid.UUID, r codec.Region, count int) error {
	db, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release(db)

	keys, err := codec.DecodeKeysBulk(r, count)
	if err != nil {
		return err
	}
	db.OpLock.Lock()
	defer db.OpLock.Unlock()
	for _, k := range keys {
		if err := db.Backend.Erase(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// ListResult is one match from ListKeys/ListKeyvals.
type ListResult struct {
	Key   []byte
	Value []byte
}

// ListKeysBulk implements the bulk-pull shape of `list_keys`/
// `list_keyvals`: the from-key and filter travel in the region's header
// instead of as plain arguments, and matches are packed back into the
// region's trailing key/value areas rather than returned as a slice.
func (e *Engine) ListKeysBulk(ctx context.Context, id uuid.UUID, mode wire.Mode, r codec.Region, count, fromKeySize, filterSize, keyBufSize, valBufSize int, withValues bool) error {
	db, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release(db)

	lb, err := codec.DecodeListBulk(r, count, fromKeySize, filterSize, keyBufSize, valBufSize, withValues)
	if err != nil {
		return err
	}
	f, err := filter.FromMode(mode, lb.Filter)
	if err != nil {
		return err
	}

	results, err := e.scanMatches(ctx, db, mode, lb.FromKey, count, f, withValues)
	if err != nil {
		return err
	}

	ksizes := make([]uint64, count)
	vsizes := make([]uint64, count)
	keyArea, valArea := lb.KeyArea, lb.ValArea
	keyPos, valPos := 0, 0
	for i := 0; i < count; i++ {
		if i >= len(results) {
			ksizes[i] = wire.NoMoreKeys
			if withValues {
				vsizes[i] = wire.NoMoreKeys
			}
			continue
		}
		k := results[i].Key
		if keyPos+len(k) > len(keyArea) {
			ksizes[i] = wire.SizeTooSmall
			keyPos = len(keyArea) + 1
		} else {
			keyPos += copy(keyArea[keyPos:], k)
			ksizes[i] = uint64(len(k))
		}
		if withValues {
			v := results[i].Value
			if valPos+len(v) > len(valArea) {
				vsizes[i] = wire.SizeTooSmall
				valPos = len(valArea) + 1
			} else {
				valPos += copy(valArea[valPos:], v)
				vsizes[i] = uint64(len(v))
			}
		}
	}
	return lb.WriteResultSizes(r, ksizes, vsizes)
}

// scanMatches runs one range scan under the database's read lock,
// shared by ListKeys and ListKeysBulk.
func (e *Engine) scanMatches(ctx context.Context, db *registry.Database, mode wire.Mode, fromKey []byte, maxCount int, f filter.Filter, withValues bool) ([]ListResult, error) {
	var results []ListResult
	db.OpLock.RLock()
	defer db.OpLock.RUnlock()
	err := db.Backend.List(ctx, mode, fromKey, maxCount, f, withValues, func(k, v []byte) bool {
		r := ListResult{Key: append([]byte(nil), k...)}
		if withValues {
			r.Value = append([]byte(nil), v...)
		}
		results = append(results, r)
		return true
	})
	return results, err
}

// ListKeys implements `list_keys`/`list_keyvals`: mode selects prefix/
// suffix/Lua/native filtering (pkg/filter.FromMode); withValues
// distinguishes the two RPCs.
func (e *Engine) ListKeys(ctx context.Context, id uuid.UUID, mode wire.Mode, fromKey, filterField []byte, maxCount int, withValues bool) ([]ListResult, error) {
	db, err := e.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release(db)

	f, err := filter.FromMode(mode, filterField)
	if err != nil {
		return nil, err
	}
	return e.scanMatches(ctx, db, mode, fromKey, maxCount, f, withValues)
}
