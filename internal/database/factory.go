package database

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"msync/internal/bt"
	"msync/internal/config"
)

// StorePath returns the database file of a location's store under dataDir.
func StorePath(dataDir, locationName string) string {
	return filepath.Join(dataDir, url.QueryEscape(locationName)+".db")
}

// NewStoreFromConfig creates the fingerprint store of one location based on the database config type.
func NewStoreFromConfig(cfg config.DatabaseConfig, locationName string) (bt.FingerprintStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return openStore(StorePath(cfg.DataDir, locationName))
	case "memory":
		return openStore(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

func openStore(path string) (bt.FingerprintStore, error) {
	store, err := NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	return store, nil
}
