package migration_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mochi-hpc/yokan-go/pkg/backend/boltkv"
	"github.com/mochi-hpc/yokan-go/pkg/backend/mapkv"
	"github.com/mochi-hpc/yokan-go/pkg/migration"
	"github.com/mochi-hpc/yokan-go/pkg/registry"
	"github.com/mochi-hpc/yokan-go/pkg/wire"
)

func TestStreamedMigrationLifecycle(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	coord := migration.New(reg)

	origin := mapkv.New()
	require.NoError(t, origin.Put(ctx, wire.ModeDefault, []byte("k1"), []byte("v1")))
	require.NoError(t, origin.Put(ctx, wire.ModeDefault, []byte("k2"), []byte("v2")))
	db, err := reg.Open("mydb", "map", "{}", origin)
	require.NoError(t, err)

	plan, err := coord.StartMigration(ctx, db.ID)
	require.NoError(t, err)
	require.Empty(t, plan.Files)
	require.Equal(t, wire.Migrating, db.MigrationState())

	var exported [][2][]byte
	require.NoError(t, coord.Export(ctx, db.ID, nil, 10, func(k, v []byte) bool {
		exported = append(exported, [2][]byte{k, v})
		return true
	}))
	require.Len(t, exported, 2)

	dest := mapkv.New()
	destID, err := coord.Receive(ctx, "mydb-copy", "map", "{}", dest, plan)
	require.NoError(t, err)
	for _, kv := range exported {
		require.NoError(t, coord.Import(ctx, destID, kv[0], kv[1]))
	}

	v, found, err := dest.Get(ctx, []byte("k1"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v1", string(v))

	require.NoError(t, coord.CompleteMigration(ctx, db.ID))
	require.Equal(t, wire.Migrated, db.MigrationState())
}

func TestFileBackedMigrationPlanAndCancel(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	coord := migration.New(reg)

	path := filepath.Join(t.TempDir(), "origin.db")
	origin, err := boltkv.Open(path)
	require.NoError(t, err)
	require.NoError(t, origin.Put(ctx, wire.ModeDefault, []byte("k"), []byte("v")))
	db, err := reg.Open("boltdb", "bolt", "{}", origin)
	require.NoError(t, err)

	plan, err := coord.StartMigration(ctx, db.ID)
	require.NoError(t, err)
	require.Len(t, plan.Files, 1)
	require.Equal(t, "origin.db", plan.Files[0])

	require.NoError(t, coord.CancelMigration(ctx, db.ID))
	require.Equal(t, wire.Idle, db.MigrationState())
}

func TestCompleteMigrationRequiresMigratingState(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	coord := migration.New(reg)

	db, err := reg.Open("", "map", "{}", mapkv.New())
	require.NoError(t, err)

	err = coord.CompleteMigration(ctx, db.ID)
	require.Error(t, err)
}
