// Package mapkv implements an ordered, in-memory backend.Backend backed
// by github.com/google/btree, the reference "kv" engine (spec.md §4.3):
// no persistence, full range-iteration support, values preserved.
package mapkv

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/mochi-hpc/yokan-go/pkg/backend"
	"github.com/mochi-hpc/yokan-go/pkg/document"
	"github.com/mochi-hpc/yokan-go/pkg/wire"
	"github.com/mochi-hpc/yokan-go/pkg/yerr"
)

const treeDegree = 32

type item struct {
	key, value []byte
}

func (a *item) Less(than btree.Item) bool {
	return bytes.Compare(a.key, than.(*item).key) < 0
}

// Backend is the in-memory ordered KV engine.
type Backend struct {
	mu   sync.RWMutex
	tree *btree.BTree
	docs backend.DocumentStore
}

// New creates an empty in-memory backend.
func New() *Backend {
	b := &Backend{tree: btree.New(treeDegree)}
	b.docs = document.NewStore(b)
	return b
}

func (b *Backend) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		Name:               "map",
		PreservesValues:    true,
		SupportsIter:       true,
		SupportsDocs:       true,
		SupportsAppend:     true,
		SupportsExistCheck: true,
	}
}

func (b *Backend) Count(ctx context.Context) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return uint64(b.tree.Len()), nil
}

func (b *Backend) Put(ctx context.Context, mode wire.Mode, key, value []byte) error {
	if len(key) == 0 {
		return yerr.New(yerr.InvalidArgs)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, found := b.lookup(key)
	if mode.Has(wire.ModeNewOnly) && found {
		return yerr.New(yerr.InvalidArgs)
	}
	if mode.Has(wire.ModeExistOnly) && !found {
		return yerr.New(yerr.InvalidID)
	}
	if mode.Has(wire.ModeAppend) && found {
		merged := make([]byte, 0, len(existing)+len(value))
		merged = append(merged, existing...)
		merged = append(merged, value...)
		value = merged
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	b.tree.ReplaceOrInsert(&item{key: cloneBytes(key), value: stored})
	return nil
}

func (b *Backend) lookup(key []byte) ([]byte, bool) {
	found := b.tree.Get(&item{key: key})
	if found == nil {
		return nil, false
	}
	return found.(*item).value, true
}

func (b *Backend) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.lookup(key)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (b *Backend) Exists(ctx context.Context, key []byte) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.lookup(key)
	return ok, nil
}

func (b *Backend) Length(ctx context.Context, key []byte) (uint64, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.lookup(key)
	if !ok {
		return 0, false, nil
	}
	return uint64(len(v)), true, nil
}

func (b *Backend) Erase(ctx context.Context, key []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tree.Delete(&item{key: key})
	return nil
}

func (b *Backend) List(ctx context.Context, mode wire.Mode, fromKey []byte, maxCount int, filter backend.Filter, withValues bool, visit backend.Visitor) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	matched := 0
	var scanErr error
	pivot := &item{key: fromKey}
	b.tree.AscendGreaterOrEqual(pivot, func(bi btree.Item) bool {
		it := bi.(*item)
		if !mode.Has(wire.ModeInclusive) && len(fromKey) > 0 && bytes.Equal(it.key, fromKey) {
			return true
		}
		if matched >= maxCount {
			return false
		}
		var val []byte
		if withValues || filter == nil || filter.RequiresValue() {
			val = it.value
		}
		if filter != nil && !filter.Check(it.key, val) {
			return true
		}
		matched++
		if !visit(it.key, it.value) {
			return false
		}
		return true
	})
	return scanErr
}

func (b *Backend) Documents() backend.DocumentStore { return b.docs }

func (b *Backend) GetConfig() (string, error) { return `{"type":"map"}`, nil }

func (b *Backend) Destroy(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tree = btree.New(treeDegree)
	return nil
}

// Freeze/Unfreeze are no-ops for an in-process backend: the provider's
// migration coordinator (pkg/migration) already holds the database's
// operation-isolation lock while frozen, and mapkv has no external
// writers to fence off.
func (b *Backend) Freeze(ctx context.Context) error   { return nil }
func (b *Backend) Unfreeze(ctx context.Context) error { return nil }

func (b *Backend) ExportRange(ctx context.Context, fromKey []byte, maxCount int, visit backend.Visitor) error {
	return b.List(ctx, wire.ModeInclusive, fromKey, maxCount, nil, true, visit)
}

func (b *Backend) ImportRange(ctx context.Context, key, value []byte) error {
	return b.Put(ctx, wire.ModeDefault, key, value)
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
