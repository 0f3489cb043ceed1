package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "provider.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
databases:
  - name: sessions
    type: map
  - name: catalog
    type: bolt
    path: `+filepath.Join(dir, "catalog.db")+`
`), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Databases, 2)
	require.Equal(t, "sessions", cfg.Databases[0].Name)
	require.Equal(t, "map", cfg.Databases[0].Type)
	require.Equal(t, "bolt", cfg.Databases[1].Type)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestNewServerFromConfigOpensDatabases(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Databases: []DatabaseConfig{
		{Name: "sessions", Type: "map"},
		{Name: "catalog", Type: "bolt", Path: filepath.Join(dir, "catalog.db")},
	}}

	srv, err := newServerFromConfig(cfg)
	require.NoError(t, err)
	require.Len(t, srv.Registry.List(), 2)
}

func TestNewServerFromConfigUnknownType(t *testing.T) {
	cfg := &Config{Databases: []DatabaseConfig{{Name: "bad", Type: "nope"}}}
	_, err := newServerFromConfig(cfg)
	require.Error(t, err)
}
