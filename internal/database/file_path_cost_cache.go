package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"taxi-relay/internal/logger"
	"taxi-relay/internal/models"
)

// FilePathCostCacheData represents the structure of the cache file
type FilePathCostCacheData struct {
	Entries []models.PathCostEntry `json:"entries"`
}

// FilePathCostCache is a file-based implementation of PathCostRepository
type FilePathCostCache struct {
	filePath string
	data     *FilePathCostCacheData
	index    map[string]int // key -> position in Entries
	mu       sync.RWMutex
	log      *slog.Logger
}

// NewFilePathCostCache opens the cache at filePath, or at the default
// location under the application directory when filePath is empty
func NewFilePathCostCache(filePath string) (*FilePathCostCache, error) {
	if filePath == "" {
		var err error
		filePath, err = PathCostCachePath()
		if err != nil {
			return nil, fmt.Errorf("failed to get cache file path: %w", err)
		}
	}

	cache := &FilePathCostCache{
		filePath: filePath,
		data:     &FilePathCostCacheData{Entries: []models.PathCostEntry{}},
		index:    make(map[string]int),
		log:      logger.WithComponent("path-cost-cache"),
	}
	cache.log.Info("using path cost cache file", "path", filePath)

	if err := cache.load(); err != nil {
		return nil, err
	}

	return cache, nil
}

func (c *FilePathCostCache) load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		c.data = &FilePathCostCacheData{Entries: []models.PathCostEntry{}}
		return c.saveUnlocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read cache file: %w", err)
	}

	if err := json.Unmarshal(data, c.data); err != nil {
		return fmt.Errorf("failed to parse cache file: %w", err)
	}
	if c.data.Entries == nil {
		c.data.Entries = []models.PathCostEntry{}
	}

	c.rebuildIndex()

	c.log.Info("loaded path cost cache", "entries", len(c.data.Entries))
	return nil
}

func (c *FilePathCostCache) saveUnlocked() error {
	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	tmpFile := c.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}

	if err := os.Rename(tmpFile, c.filePath); err != nil {
		return fmt.Errorf("failed to rename temp cache file: %w", err)
	}

	return nil
}

func (c *FilePathCostCache) Get(ctx context.Context, mapID string, origin, dest models.Coordinate) (*models.PathCostEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if idx, ok := c.index[MakeCacheKey(mapID, origin, dest)]; ok {
		// copy so callers cannot modify cache data without the lock
		entryCopy := c.data.Entries[idx]
		return &entryCopy, nil
	}
	return nil, nil
}

func (c *FilePathCostCache) GetBatch(ctx context.Context, mapID string, pairs []CoordinatePair) (map[string]*models.PathCostEntry, error) {
	result := make(map[string]*models.PathCostEntry)

	for _, pair := range pairs {
		entry, err := c.Get(ctx, mapID, pair.Origin, pair.Dest)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			result[MakeCacheKey(mapID, pair.Origin, pair.Dest)] = entry
		}
	}

	return result, nil
}

func (c *FilePathCostCache) Set(ctx context.Context, entry *models.PathCostEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.putUnlocked(*entry)
	return c.saveUnlocked()
}

func (c *FilePathCostCache) SetBatch(ctx context.Context, entries []models.PathCostEntry) error {
	if len(entries) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range entries {
		c.putUnlocked(entry)
	}
	return c.saveUnlocked()
}

func (c *FilePathCostCache) putUnlocked(entry models.PathCostEntry) {
	key := MakeCacheKey(entry.MapID, entry.Origin, entry.Destination)
	if idx, ok := c.index[key]; ok {
		c.data.Entries[idx] = entry
		return
	}
	c.data.Entries = append(c.data.Entries, entry)
	c.index[key] = len(c.data.Entries) - 1
}

func (c *FilePathCostCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.Entries = []models.PathCostEntry{}
	c.index = make(map[string]int)
	return c.saveUnlocked()
}

// rebuildIndex must be called with the mutex held
func (c *FilePathCostCache) rebuildIndex() {
	c.index = make(map[string]int, len(c.data.Entries))
	for i, e := range c.data.Entries {
		c.index[MakeCacheKey(e.MapID, e.Origin, e.Destination)] = i
	}
}
