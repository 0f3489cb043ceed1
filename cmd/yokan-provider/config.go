package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mochi-hpc/yokan-go/pkg/backend/boltkv"
	"github.com/mochi-hpc/yokan-go/pkg/backend/mapkv"
	"github.com/mochi-hpc/yokan-go/pkg/rpc"
)

// Config is the provider's startup manifest: the set of databases to
// open before serving RPCs, mirroring warren's YAML-manifest idiom
// (cmd/warren's apply.go) but read once at process start rather than
// applied against a running cluster.
type Config struct {
	Databases []DatabaseConfig `yaml:"databases"`
}

// DatabaseConfig describes one database to open at startup.
type DatabaseConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // "map" or "bolt"
	Path string `yaml:"path,omitempty"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func newServerFromConfig(cfg *Config) (*rpc.Server, error) {
	srv := rpc.NewServer()
	for _, dbc := range cfg.Databases {
		switch dbc.Type {
		case "map":
			if _, err := srv.Registry.Open(dbc.Name, dbc.Type, "{}", mapkv.New()); err != nil {
				return nil, fmt.Errorf("open %s: %w", dbc.Name, err)
			}
		case "bolt":
			be, err := boltkv.Open(dbc.Path)
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", dbc.Name, err)
			}
			config := fmt.Sprintf(`{"type":"bolt","path":%q}`, dbc.Path)
			if _, err := srv.Registry.Open(dbc.Name, dbc.Type, config, be); err != nil {
				return nil, fmt.Errorf("open %s: %w", dbc.Name, err)
			}
		default:
			return nil, fmt.Errorf("database %q: unknown type %q", dbc.Name, dbc.Type)
		}
	}
	return srv, nil
}
