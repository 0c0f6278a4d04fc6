package testutil

import (
	"context"
	"errors"

	"taxi-relay/internal/database"
	"taxi-relay/internal/distance"
	"taxi-relay/internal/models"
)

// PathCostCall tracks a call to the path cost calculator
type PathCostCall struct {
	Origin models.Coordinate
	Dest   models.Coordinate
}

// MockPathCostCalculator computes Manhattan distances, as on a grid without walls
type MockPathCostCalculator struct {
	Overrides map[database.CoordinatePair]distance.PathCostResult
	Calls     []PathCostCall
}

func NewMockPathCostCalculator() *MockPathCostCalculator {
	return &MockPathCostCalculator{
		Overrides: make(map[database.CoordinatePair]distance.PathCostResult),
		Calls:     []PathCostCall{},
	}
}

// SetCost sets a custom cost for a specific origin-destination pair
func (m *MockPathCostCalculator) SetCost(origin, dest models.Coordinate, cost int) {
	m.Overrides[database.CoordinatePair{Origin: origin, Dest: dest}] = distance.PathCostResult{Cost: cost, Reachable: true}
}

// SetUnreachable marks a pair as disconnected
func (m *MockPathCostCalculator) SetUnreachable(origin, dest models.Coordinate) {
	m.Overrides[database.CoordinatePair{Origin: origin, Dest: dest}] = distance.PathCostResult{}
}

// GetPathCost returns the cost between two points
func (m *MockPathCostCalculator) GetPathCost(ctx context.Context, origin, dest models.Coordinate) (*distance.PathCostResult, error) {
	m.Calls = append(m.Calls, PathCostCall{Origin: origin, Dest: dest})

	if override, ok := m.Overrides[database.CoordinatePair{Origin: origin, Dest: dest}]; ok {
		return &override, nil
	}
	return &distance.PathCostResult{Cost: abs(origin.Row-dest.Row) + abs(origin.Col-dest.Col), Reachable: true}, nil
}

// GetCostMatrix returns a matrix of costs between all pairs of points
func (m *MockPathCostCalculator) GetCostMatrix(ctx context.Context, points []models.Coordinate) ([][]distance.PathCostResult, error) {
	matrix := make([][]distance.PathCostResult, len(points))
	for i := range points {
		row, err := m.GetCostsFromPoint(ctx, points[i], points)
		if err != nil {
			return nil, err
		}
		matrix[i] = row
	}
	return matrix, nil
}

// GetCostsFromPoint returns costs from a single origin to multiple destinations
func (m *MockPathCostCalculator) GetCostsFromPoint(ctx context.Context, origin models.Coordinate, destinations []models.Coordinate) ([]distance.PathCostResult, error) {
	results := make([]distance.PathCostResult, len(destinations))
	for i, dest := range destinations {
		result, err := m.GetPathCost(ctx, origin, dest)
		if err != nil {
			return nil, err
		}
		results[i] = *result
	}
	return results, nil
}

// PrewarmCache is a no-op for the mock
func (m *MockPathCostCalculator) PrewarmCache(ctx context.Context, points []models.Coordinate) error {
	return nil
}

// ResetCalls clears the recorded calls
func (m *MockPathCostCalculator) ResetCalls() {
	m.Calls = []PathCostCall{}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// ErrCacheUnavailable is returned by MockPathCostCache when Fail is set
var ErrCacheUnavailable = errors.New("cache unavailable")

// MockPathCostCache is a mock implementation of PathCostRepository that
// counts traffic
type MockPathCostCache struct {
	entries  map[string]*models.PathCostEntry
	Gets     int
	Sets     int
	Fail     bool
	FailSets bool
}

func NewMockPathCostCache() *MockPathCostCache {
	return &MockPathCostCache{
		entries: make(map[string]*models.PathCostEntry),
	}
}

func (c *MockPathCostCache) Get(ctx context.Context, mapID string, origin, dest models.Coordinate) (*models.PathCostEntry, error) {
	c.Gets++
	if c.Fail {
		return nil, ErrCacheUnavailable
	}
	if entry, ok := c.entries[database.MakeCacheKey(mapID, origin, dest)]; ok {
		return entry, nil
	}
	return nil, nil
}

func (c *MockPathCostCache) GetBatch(ctx context.Context, mapID string, pairs []database.CoordinatePair) (map[string]*models.PathCostEntry, error) {
	result := make(map[string]*models.PathCostEntry)
	for _, pair := range pairs {
		entry, err := c.Get(ctx, mapID, pair.Origin, pair.Dest)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			result[database.MakeCacheKey(mapID, pair.Origin, pair.Dest)] = entry
		}
	}
	return result, nil
}

func (c *MockPathCostCache) Set(ctx context.Context, entry *models.PathCostEntry) error {
	c.Sets++
	if c.Fail || c.FailSets {
		return ErrCacheUnavailable
	}
	stored := *entry
	c.entries[database.MakeCacheKey(entry.MapID, entry.Origin, entry.Destination)] = &stored
	return nil
}

func (c *MockPathCostCache) SetBatch(ctx context.Context, entries []models.PathCostEntry) error {
	for i := range entries {
		if err := c.Set(ctx, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *MockPathCostCache) Clear(ctx context.Context) error {
	c.entries = make(map[string]*models.PathCostEntry)
	return nil
}

// Count returns the number of entries in the cache
func (c *MockPathCostCache) Count() int {
	return len(c.entries)
}
