package database

import (
	"context"
	"fmt"
	"sync"

	"taxi-relay/internal/models"
)

// MakeCacheKey creates a unique key for a coordinate pair on a map
func MakeCacheKey(mapID string, origin, dest models.Coordinate) string {
	return fmt.Sprintf("%s:%d,%d->%d,%d", mapID, origin.Row, origin.Col, dest.Row, dest.Col)
}

// MemoryPathCostCache keeps path costs in process memory
type MemoryPathCostCache struct {
	entries map[string]models.PathCostEntry
	mu      sync.RWMutex
}

// NewMemoryPathCostCache creates an empty in-memory cache
func NewMemoryPathCostCache() *MemoryPathCostCache {
	return &MemoryPathCostCache{entries: make(map[string]models.PathCostEntry)}
}

func (c *MemoryPathCostCache) Get(ctx context.Context, mapID string, origin, dest models.Coordinate) (*models.PathCostEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[MakeCacheKey(mapID, origin, dest)]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *MemoryPathCostCache) GetBatch(ctx context.Context, mapID string, pairs []CoordinatePair) (map[string]*models.PathCostEntry, error) {
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

func (c *MemoryPathCostCache) Set(ctx context.Context, entry *models.PathCostEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[MakeCacheKey(entry.MapID, entry.Origin, entry.Destination)] = *entry
	return nil
}

func (c *MemoryPathCostCache) SetBatch(ctx context.Context, entries []models.PathCostEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range entries {
		c.entries[MakeCacheKey(entry.MapID, entry.Origin, entry.Destination)] = entry
	}
	return nil
}

func (c *MemoryPathCostCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]models.PathCostEntry)
	return nil
}

// Len returns the number of cached entries
func (c *MemoryPathCostCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
