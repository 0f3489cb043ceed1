package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/mochi-hpc/yokan-go/pkg/codec"
	"github.com/mochi-hpc/yokan-go/pkg/filter"
	"github.com/mochi-hpc/yokan-go/pkg/wire"
)

// CollCreate implements `coll_create`.
func (e *Engine) CollCreate(ctx context.Context, id uuid.UUID, collection string) error {
	db, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release(db)
	db.OpLock.Lock()
	defer db.OpLock.Unlock()
	return db.Backend.Documents().Create(ctx, collection)
}

// CollDrop implements `coll_drop`.
func (e *Engine) CollDrop(ctx context.Context, id uuid.UUID, collection string) error {
	db, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release(db)
	db.OpLock.Lock()
	defer db.OpLock.Unlock()
	return db.Backend.Documents().Drop(ctx, collection)
}

// CollExists implements `coll_exists`.
func (e *Engine) CollExists(ctx context.Context, id uuid.UUID, collection string) (bool, error) {
	db, err := e.acquire(id)
	if err != nil {
		return false, err
	}
	defer release(db)
	db.OpLock.RLock()
	defer db.OpLock.RUnlock()
	return db.Backend.Documents().Exists(ctx, collection)
}

// CollSize implements `coll_size`.
func (e *Engine) CollSize(ctx context.Context, id uuid.UUID, collection string) (uint64, error) {
	db, err := e.acquire(id)
	if err != nil {
		return 0, err
	}
	defer release(db)
	db.OpLock.RLock()
	defer db.OpLock.RUnlock()
	return db.Backend.Documents().Size(ctx, collection)
}

// CollLastID implements `coll_last_id`.
func (e *Engine) CollLastID(ctx context.Context, id uuid.UUID, collection string) (uint64, error) {
	db, err := e.acquire(id)
	if err != nil {
		return 0, err
	}
	defer release(db)
	db.OpLock.RLock()
	defer db.OpLock.RUnlock()
	return db.Backend.Documents().LastID(ctx, collection)
}

// DocStore implements `doc_store` for a single document.
func (e *Engine) DocStore(ctx context.Context, id uuid.UUID, collection string, doc []byte) (uint64, error) {
	db, err := e.acquire(id)
	if err != nil {
		return wire.InvalidID, err
	}
	defer release(db)
	db.OpLock.Lock()
	defer db.OpLock.Unlock()
	return db.Backend.Documents().Store(ctx, collection, doc)
}

// DocLoad implements `doc_load` for a single id.
func (e *Engine) DocLoad(ctx context.Context, id uuid.UUID, collection string, docID uint64) ([]byte, bool, error) {
	db, err := e.acquire(id)
	if err != nil {
		return nil, false, err
	}
	defer release(db)
	db.OpLock.RLock()
	defer db.OpLock.RUnlock()
	return db.Backend.Documents().Load(ctx, collection, docID)
}

// DocUpdate implements `doc_update`.
func (e *Engine) DocUpdate(ctx context.Context, id uuid.UUID, collection string, docID uint64, doc []byte) error {
	db, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release(db)
	db.OpLock.Lock()
	defer db.OpLock.Unlock()
	return db.Backend.Documents().Update(ctx, collection, docID, doc)
}

// DocErase implements `doc_erase`.
func (e *Engine) DocErase(ctx context.Context, id uuid.UUID, collection string, docID uint64) error {
	db, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release(db)
	db.OpLock.Lock()
	defer db.OpLock.Unlock()
	return db.Backend.Documents().Erase(ctx, collection, docID)
}

// DocLength implements `doc_length`.
func (e *Engine) DocLength(ctx context.Context, id uuid.UUID, collection string, docID uint64) (uint64, bool, error) {
	db, err := e.acquire(id)
	if err != nil {
		return 0, false, err
	}
	defer release(db)
	db.OpLock.RLock()
	defer db.OpLock.RUnlock()
	return db.Backend.Documents().Length(ctx, collection, docID)
}

// DocStoreBulk implements `doc_store_bulk`: the region carries packed
// document bytes in, and the collection's assigned ids out (mirrors
// PutBulk but the collection, not the caller, picks the keys).
func (e *Engine) DocStoreBulk(ctx context.Context, id uuid.UUID, collection string, r codec.Region, count int) error {
	db, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release(db)

	sb, err := codec.DecodeDocStoreBulk(r, count)
	if err != nil {
		return err
	}

	ids := make([]uint64, len(sb.Docs))
	db.OpLock.Lock()
	for i, doc := range sb.Docs {
		docID, err := db.Backend.Documents().Store(ctx, collection, doc)
		if err != nil {
			db.OpLock.Unlock()
			return err
		}
		ids[i] = docID
	}
	db.OpLock.Unlock()
	return sb.WriteAssignedIDs(r, ids)
}

// DocLoadBulk implements `doc_load_bulk`: fills the region's trailing
// document area back-to-back (mirrors GetBulk's packed branch).
func (e *Engine) DocLoadBulk(ctx context.Context, id uuid.UUID, collection string, r codec.Region, count int, packed bool) error {
	db, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release(db)

	dl, err := codec.DecodeDocLoadBulk(r, count, packed)
	if err != nil {
		return err
	}

	docs := make([][]byte, len(dl.IDs))
	sizes := make([]uint64, len(dl.IDs))
	db.OpLock.RLock()
	for i, docID := range dl.IDs {
		doc, found, err := db.Backend.Documents().Load(ctx, collection, docID)
		if err != nil {
			db.OpLock.RUnlock()
			return err
		}
		if !found {
			sizes[i] = wire.KeyNotFound
			continue
		}
		docs[i] = doc
		sizes[i] = uint64(len(doc))
	}
	db.OpLock.RUnlock()

	area := dl.DocArea()
	pos := 0
	for i, doc := range docs {
		if wire.IsSentinel(sizes[i]) {
			continue
		}
		if pos+len(doc) > len(area) {
			sizes[i] = wire.SizeTooSmall
			pos = len(area) + 1
			continue
		}
		pos += copy(area[pos:], doc)
	}
	return dl.WriteResultSizes(r, sizes)
}

// DocEraseBulk implements `doc_erase_bulk`.
func (e *Engine) DocEraseBulk(ctx context.Context, id uuid.UUID, collection string, r codec.Region, count int) error {
	db, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release(db)

	ib, err := codec.DecodeDocIDsBulk(r, count)
	if err != nil {
		return err
	}
	db.OpLock.Lock()
	defer db.OpLock.Unlock()
	for _, docID := range ib.IDs {
		if err := db.Backend.Documents().Erase(ctx, collection, docID); err != nil {
			return err
		}
	}
	return nil
}

// DocLengthBulk implements `doc_length_bulk`.
func (e *Engine) DocLengthBulk(ctx context.Context, id uuid.UUID, collection string, r codec.Region, count int) error {
	db, err := e.acquire(id)
	if err != nil {
		return err
	}
	defer release(db)

	ib, err := codec.DecodeDocIDsBulk(r, count)
	if err != nil {
		return err
	}
	sizes := make([]uint64, len(ib.IDs))
	db.OpLock.RLock()
	for i, docID := range ib.IDs {
		size, found, err := db.Backend.Documents().Length(ctx, collection, docID)
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
	return ib.WriteResultSizes(r, sizes)
}

// DocListResult is one match from DocList.
type DocListResult struct {
	ID  uint64
	Doc []byte
}

// DocList implements `doc_list`/`doc_iter`'s non-streaming enumeration.
func (e *Engine) DocList(ctx context.Context, id uuid.UUID, collection string, mode wire.Mode, fromID uint64, filterField []byte, maxCount int) ([]DocListResult, error) {
	db, err := e.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release(db)

	var f filter.Filter
	if len(filterField) > 0 || mode.Has(wire.ModeLuaFilter) || mode.Has(wire.ModeLibFilter) {
		f, err = filter.FromMode(mode, filterField)
		if err != nil {
			return nil, err
		}
	}

	var results []DocListResult
	db.OpLock.RLock()
	defer db.OpLock.RUnlock()
	err = db.Backend.Documents().List(ctx, collection, mode, fromID, maxCount, f, func(docID uint64, doc []byte) bool {
		results = append(results, DocListResult{ID: docID, Doc: append([]byte(nil), doc...)})
		return true
	})
	return results, err
}
