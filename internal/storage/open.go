// Package storage opens the configured persistence backend.
package storage

import (
	"fmt"

	"taxi-relay/internal/config"
	"taxi-relay/internal/database"
	"taxi-relay/internal/sqlite"
)

// Open returns the data store selected by cfg.Driver. The file driver keeps
// runs in a JSON data file and path costs in a separate cache file; the
// memory driver never touches disk.
func Open(cfg config.StorageConfig) (database.DataStore, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return database.NewMemoryStore(), nil

	case config.StorageFile:
		cachePath, err := database.PathCostCachePath()
		if err != nil {
			return nil, err
		}
		cache, err := database.NewFilePathCostCache(cachePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize path cost cache: %w", err)
		}
		store, err := database.NewJSONStore(cfg.Path, cache)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize data store: %w", err)
		}
		return store, nil

	case config.StorageSQLite, "":
		path := cfg.Path
		if path == "" {
			var err error
			path, err = database.DefaultDBPath()
			if err != nil {
				return nil, err
			}
		}
		store, err := sqlite.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
