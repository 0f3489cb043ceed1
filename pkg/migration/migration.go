// Package migration implements the migration coordinator (C9):
// moving a database from one provider to another by freezing writes,
// handing the origin's files (or, for backends with none, a streamed
// key/value range) to the external file-transfer subsystem, and
// installing them on the destination (spec.md §4.9). The state
// machine itself — Idle -> Migrating -> Migrated/Idle — lives on
// pkg/registry.Database; this package only drives the transitions and
// talks to the backend's freeze/export/import hooks.
package migration

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mochi-hpc/yokan-go/pkg/backend"
	"github.com/mochi-hpc/yokan-go/pkg/registry"
	"github.com/mochi-hpc/yokan-go/pkg/wire"
	"github.com/mochi-hpc/yokan-go/pkg/yerr"
)

// FileProvider is implemented by backends whose state lives in named
// files on disk (e.g. pkg/backend/boltkv) — start_migration for them
// returns a root directory and file list for the transfer subsystem
// to ship. Backends without it (e.g. pkg/backend/mapkv) are migrated
// by streaming their key/value range instead (see Export/Import).
type FileProvider interface {
	MigrationFiles(ctx context.Context) (root string, files []string, err error)
}

// FileRecoverer is implemented by the same backends as FileProvider;
// RecoverFiles runs on the destination once the transfer subsystem has
// placed the shipped files under root.
type FileRecoverer interface {
	RecoverFiles(ctx context.Context, root string, files []string) error
}

// Coordinator drives migrations for databases held in reg.
type Coordinator struct {
	Registry *registry.Registry
}

// New creates a Coordinator bound to reg.
func New(reg *registry.Registry) *Coordinator {
	return &Coordinator{Registry: reg}
}

// Plan is what StartMigration hands to the caller to carry out the
// transfer: either a root/file list (FileProvider backends) or
// neither, signaling that the caller should drive the transfer with
// Export/Import instead.
type Plan struct {
	Root  string
	Files []string
}

// StartMigration takes the database's write lock, transitions it to
// Migrating, and freezes its backend against further writes. If the
// backend exposes files, it returns their root/list for the external
// transfer subsystem; otherwise the caller streams the database's
// contents via Export/Import.
func (c *Coordinator) StartMigration(ctx context.Context, id uuid.UUID) (*Plan, error) {
	db, err := c.Registry.Lookup(id)
	if err != nil {
		return nil, err
	}
	if db.MigrationState() != wire.Idle {
		return nil, yerr.New(yerr.InvalidDatabase)
	}

	db.OpLock.Lock()
	db.SetMigrationState(wire.Migrating)

	if err := db.Backend.Freeze(ctx); err != nil {
		db.SetMigrationState(wire.Idle)
		db.OpLock.Unlock()
		return nil, fmt.Errorf("migration: freeze: %w", err)
	}

	plan := &Plan{}
	if fp, ok := db.Backend.(FileProvider); ok {
		root, files, err := fp.MigrationFiles(ctx)
		if err != nil {
			db.Backend.Unfreeze(ctx)
			db.SetMigrationState(wire.Idle)
			db.OpLock.Unlock()
			return nil, fmt.Errorf("migration: list files: %w", err)
		}
		plan.Root, plan.Files = root, files
	}
	return plan, nil
}

// CompleteMigration marks the origin database Migrated; subsequent
// operations against id return INVALID_DATABASE (spec.md §4.9). The
// write lock taken by StartMigration is released here, since a
// Migrated database never needs it again.
func (c *Coordinator) CompleteMigration(ctx context.Context, id uuid.UUID) error {
	db, err := c.Registry.Lookup(id)
	if err != nil {
		return err
	}
	if db.MigrationState() != wire.Migrating {
		return yerr.New(yerr.InvalidDatabase)
	}
	db.SetMigrationState(wire.Migrated)
	db.OpLock.Unlock()
	return nil
}

// CancelMigration releases the write lock and unfreezes the backend
// with no state change, per spec.md §4.9.
func (c *Coordinator) CancelMigration(ctx context.Context, id uuid.UUID) error {
	db, err := c.Registry.Lookup(id)
	if err != nil {
		return err
	}
	if db.MigrationState() != wire.Migrating {
		return yerr.New(yerr.InvalidDatabase)
	}
	if err := db.Backend.Unfreeze(ctx); err != nil {
		return fmt.Errorf("migration: unfreeze: %w", err)
	}
	db.SetMigrationState(wire.Idle)
	db.OpLock.Unlock()
	return nil
}

// Export streams the frozen origin database's contents in order,
// maxCount entries per call, for backends without MigrationFiles. The
// caller drives pagination with fromKey across calls.
func (c *Coordinator) Export(ctx context.Context, id uuid.UUID, fromKey []byte, maxCount int, visit backend.Visitor) error {
	db, err := c.Registry.Lookup(id)
	if err != nil {
		return err
	}
	if db.MigrationState() != wire.Migrating {
		return yerr.New(yerr.InvalidDatabase)
	}
	return db.Backend.ExportRange(ctx, fromKey, maxCount, visit)
}

// Receive opens an empty database of the given type on the
// destination registry and, for FileRecoverer backends, asks it to
// recover from the files the transfer subsystem placed under root.
// Streamed (non-file) backends are populated by repeated Import calls
// against the returned database's id instead.
func (c *Coordinator) Receive(ctx context.Context, name, dbType, config string, be backend.Backend, plan *Plan) (uuid.UUID, error) {
	db, err := c.Registry.Open(name, dbType, config, be)
	if err != nil {
		return uuid.Nil, err
	}
	if plan != nil && len(plan.Files) > 0 {
		fr, ok := be.(FileRecoverer)
		if !ok {
			return uuid.Nil, yerr.New(yerr.InvalidBackend)
		}
		if err := fr.RecoverFiles(ctx, plan.Root, plan.Files); err != nil {
			return uuid.Nil, fmt.Errorf("migration: recover: %w", err)
		}
	}
	return db.ID, nil
}

// Import writes one key/value pair into a destination database that
// is still receiving a streamed (non-file) migration.
func (c *Coordinator) Import(ctx context.Context, id uuid.UUID, key, value []byte) error {
	db, err := c.Registry.Lookup(id)
	if err != nil {
		return err
	}
	return db.Backend.ImportRange(ctx, key, value)
}
