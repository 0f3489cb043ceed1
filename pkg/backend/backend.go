// Package backend defines the capability surface every storage engine
// implements (spec.md §4.3): put/get/exists/length/erase, range listing,
// document storage, and the migration hooks of §4.9. Batch entry points
// take already-decoded slices pointing into staging buffers — backends
// never see RDMA handles, matching pkg/storage's "Store interface, one
// implementation per engine" shape in the teacher repo.
package backend

import (
	"context"
	"fmt"

	"github.com/mochi-hpc/yokan-go/pkg/wire"
)

// Filter is the minimal surface pkg/filter implementations expose to a
// backend's listing entry points (spec.md §4.4). Backends never
// materialise rejected records; they call Check per candidate and only
// copy through matches.
type Filter interface {
	RequiresValue() bool
	Check(key, value []byte) bool
}

// Visitor is invoked once per matching entry during a list/iterate scan.
// Returning false stops the scan early (e.g. once the caller's output
// buffer is full).
type Visitor func(key, value []byte) (cont bool)

// DocVisitor is the document-layer analogue of Visitor.
type DocVisitor func(id uint64, doc []byte) (cont bool)

// Capabilities answers, per spec.md §4.3, whether a backend supports an
// operation at all, whether it preserves values, and whether it
// supports range iteration. Operations absent from a backend's
// Capabilities must fail with yerr.OpUnsupported rather than panic.
type Capabilities struct {
	Name string

	PreservesValues bool // false for "set" backends that discard values
	SupportsIter    bool // range scan / prefix listing
	SupportsDocs    bool // document-collection layer

	SupportsAppend     bool // ModeAppend on put
	SupportsExistCheck bool // ModeNewOnly / ModeExistOnly on put
}

// Backend is the storage-engine contract every component of C3
// implements. A Database (pkg/registry) holds exactly one Backend.
type Backend interface {
	Capabilities() Capabilities

	Count(ctx context.Context) (uint64, error)
	Put(ctx context.Context, mode wire.Mode, key, value []byte) error
	Get(ctx context.Context, key []byte) (value []byte, found bool, err error)
	Exists(ctx context.Context, key []byte) (bool, error)
	Length(ctx context.Context, key []byte) (size uint64, found bool, err error)
	Erase(ctx context.Context, key []byte) error

	// List scans starting at fromKey (exclusive unless mode has
	// ModeInclusive), visiting at most maxCount matches that pass
	// filter, in key order. withValues controls whether value bytes
	// are loaded even when the filter does not require them.
	List(ctx context.Context, mode wire.Mode, fromKey []byte, maxCount int, filter Filter, withValues bool, visit Visitor) error

	// Documents exposes the document-collection surface (spec.md §4.5)
	// when Capabilities().SupportsDocs is true; nil otherwise.
	Documents() DocumentStore

	GetConfig() (string, error)
	Destroy(ctx context.Context) error

	// Migration hooks (spec.md §4.9).
	Freeze(ctx context.Context) error
	Unfreeze(ctx context.Context) error
	ExportRange(ctx context.Context, fromKey []byte, maxCount int, visit Visitor) error
	ImportRange(ctx context.Context, key, value []byte) error
}

// DocumentStore is the document-collection surface (spec.md §4.5):
// create/drop/exists/size/last_id plus store/load/update/erase/list on
// documents keyed by a 64-bit id the collection assigns.
type DocumentStore interface {
	Create(ctx context.Context, collection string) error
	Drop(ctx context.Context, collection string) error
	Exists(ctx context.Context, collection string) (bool, error)
	Size(ctx context.Context, collection string) (uint64, error)
	LastID(ctx context.Context, collection string) (uint64, error)

	Store(ctx context.Context, collection string, doc []byte) (id uint64, err error)
	Load(ctx context.Context, collection string, id uint64) (doc []byte, found bool, err error)
	Update(ctx context.Context, collection string, id uint64, doc []byte) error
	Erase(ctx context.Context, collection string, id uint64) error
	Length(ctx context.Context, collection string, id uint64) (size uint64, found bool, err error)

	List(ctx context.Context, collection string, mode wire.Mode, fromID uint64, maxCount int, filter Filter, visit DocVisitor) error
}

// CheckMode rejects mode bits a backend cannot honour, per spec.md
// §4.3 "backends must reject unknown bits" / "reject rather than
// silently ignore". known is the set of bits this backend supports for
// the operation being validated.
func CheckMode(m, known wire.Mode) error {
	if unknown := m &^ known; unknown != 0 {
		return fmt.Errorf("backend: unsupported mode bits: %#x", uint32(unknown))
	}
	return nil
}
