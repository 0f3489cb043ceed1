// Package registry implements the provider-wide database registry
// (spec.md §3/§4.6): a {id -> Database} map plus a secondary
// {name -> id} index, both guarded by one reader/writer lock so lookups
// run concurrently with traffic while open/close/destroy take the
// writer side; and an admin-token manager gating open/close/destroy/
// migrate calls (spec.md §9.7), adapted from the teacher's join-token
// manager (pkg/manager/token.go).
package registry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mochi-hpc/yokan-go/pkg/backend"
	"github.com/mochi-hpc/yokan-go/pkg/wire"
	"github.com/mochi-hpc/yokan-go/pkg/yerr"
)

// Database bundles a backend instance, its configuration, a reader/
// writer lock for operation isolation, a migration state, and an
// optional name (spec.md §3 "Database value").
type Database struct {
	ID      uuid.UUID
	Name    string
	Type    string
	Config  string
	Backend backend.Backend

	// OpLock serializes writers and migration freeze against readers,
	// independent of the registry's own top-level lock (which only
	// guards the id/name maps themselves).
	OpLock sync.RWMutex

	migState int32 // wire.MigrationState, accessed atomically

	refs int32 // in-flight operations; Destroy waits for this to reach 0
}

func newDatabase(id uuid.UUID, name, dbType, config string, be backend.Backend) *Database {
	return &Database{ID: id, Name: name, Type: dbType, Config: config, Backend: be}
}

// MigrationState reports the database's current lifecycle state.
func (d *Database) MigrationState() wire.MigrationState {
	return wire.MigrationState(atomic.LoadInt32(&d.migState))
}

// SetMigrationState transitions the database's lifecycle state.
func (d *Database) SetMigrationState(s wire.MigrationState) {
	atomic.StoreInt32(&d.migState, int32(s))
}

// Acquire increments the in-flight operation count; callers must call
// Release on every exit path (spec.md §3 "Lifecycle").
func (d *Database) Acquire() { atomic.AddInt32(&d.refs, 1) }

// Release decrements the in-flight operation count.
func (d *Database) Release() { atomic.AddInt32(&d.refs, -1) }

func (d *Database) refCount() int32 { return atomic.LoadInt32(&d.refs) }

// Registry is the provider-wide database map.
type Registry struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*Database
	byName  map[string]uuid.UUID
	tokens  *TokenManager
}

// New creates an empty registry with its own admin token manager.
func New() *Registry {
	return &Registry{
		byID:   make(map[uuid.UUID]*Database),
		byName: make(map[string]uuid.UUID),
		tokens: NewTokenManager(),
	}
}

// Tokens returns the registry's admin token manager.
func (r *Registry) Tokens() *TokenManager { return r.tokens }

// Open registers a new database under a fresh id, optionally indexed
// by name. Returns yerr.InvalidConfig if name is already taken.
func (r *Registry) Open(name, dbType, config string, be backend.Backend) (*Database, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name != "" {
		if _, exists := r.byName[name]; exists {
			return nil, yerr.New(yerr.InvalidConfig)
		}
	}

	id := uuid.New()
	db := newDatabase(id, name, dbType, config, be)
	r.byID[id] = db
	if name != "" {
		r.byName[name] = id
	}
	return db, nil
}

// Lookup resolves a database by id.
func (r *Registry) Lookup(id uuid.UUID) (*Database, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	db, ok := r.byID[id]
	if !ok {
		return nil, yerr.New(yerr.InvalidDatabase)
	}
	return db, nil
}

// LookupByName resolves a database by its human name.
func (r *Registry) LookupByName(name string) (*Database, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, yerr.New(yerr.InvalidDatabase)
	}
	return r.byID[id], nil
}

// List returns every open database id.
func (r *Registry) List() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	return ids
}

// Close removes a database from the registry without destroying its
// backing storage (the caller is expected to have already drained
// in-flight operations, or to be fine leaving the backend instance
// alive for a later re-open).
func (r *Registry) Close(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	db, ok := r.byID[id]
	if !ok {
		return yerr.New(yerr.InvalidDatabase)
	}
	delete(r.byID, id)
	if db.Name != "" {
		delete(r.byName, db.Name)
	}
	return nil
}

// Destroy closes the database and calls Backend.Destroy, but only
// after its reference count has reached zero (spec.md §3 "A reference
// count on database handles held by in-flight operations must reach
// zero before destroy completes").
func (r *Registry) Destroy(ctx context.Context, id uuid.UUID) error {
	db, err := r.Lookup(id)
	if err != nil {
		return err
	}
	for db.refCount() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	if err := r.Close(id); err != nil {
		return err
	}
	return db.Backend.Destroy(ctx)
}

// Replace swaps the backend under an existing id without changing the
// id callers already hold. pkg/migration does not use it: Receive
// registers transferred data under a fresh id.
func (r *Registry) Replace(id uuid.UUID, be backend.Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	db, ok := r.byID[id]
	if !ok {
		return yerr.New(yerr.InvalidDatabase)
	}
	db.Backend = be
	return nil
}

// AdminToken is a generated credential gating admin RPCs.
type AdminToken struct {
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// TokenManager issues and validates admin-RPC bearer tokens, adapted
// from the teacher's cluster join-token manager
// (pkg/manager/token.go): same random-token/expiry/RWMutex shape,
// retargeted from cluster-join roles to a single admin capability.
type TokenManager struct {
	mu     sync.RWMutex
	tokens map[string]*AdminToken
}

// NewTokenManager creates an empty token manager.
func NewTokenManager() *TokenManager {
	return &TokenManager{tokens: make(map[string]*AdminToken)}
}

// Generate creates a new admin token valid for duration.
func (tm *TokenManager) Generate(duration time.Duration) (*AdminToken, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("registry: generating admin token: %w", err)
	}
	at := &AdminToken{
		Token:     hex.EncodeToString(raw),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(duration),
	}
	tm.mu.Lock()
	tm.tokens[at.Token] = at
	tm.mu.Unlock()
	return at, nil
}

// Validate reports whether token is live and unexpired.
func (tm *TokenManager) Validate(token string) error {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	at, ok := tm.tokens[token]
	if !ok {
		return yerr.New(yerr.InvalidToken)
	}
	if time.Now().After(at.ExpiresAt) {
		return yerr.New(yerr.InvalidToken)
	}
	return nil
}

// Revoke invalidates a token immediately.
func (tm *TokenManager) Revoke(token string) {
	tm.mu.Lock()
	delete(tm.tokens, token)
	tm.mu.Unlock()
}

// CleanupExpired removes expired tokens; intended to run periodically.
func (tm *TokenManager) CleanupExpired() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	now := time.Now()
	for token, at := range tm.tokens {
		if now.After(at.ExpiresAt) {
			delete(tm.tokens, token)
		}
	}
}
