package distance

import (
	"context"
	"fmt"
	"log/slog"

	"taxi-relay/internal/database"
	"taxi-relay/internal/gridmap"
	"taxi-relay/internal/logger"
	"taxi-relay/internal/models"
)

// PathCostResult contains the result of a path cost lookup
type PathCostResult struct {
	Cost      int
	Reachable bool
}

// PathCostCalculator provides shortest path costs between grid coordinates
type PathCostCalculator interface {
	GetPathCost(ctx context.Context, origin, dest models.Coordinate) (*PathCostResult, error)
	GetCostMatrix(ctx context.Context, points []models.Coordinate) ([][]PathCostResult, error)
	GetCostsFromPoint(ctx context.Context, origin models.Coordinate, destinations []models.Coordinate) ([]PathCostResult, error)
	PrewarmCache(ctx context.Context, points []models.Coordinate) error
}

// ErrPathCostFailed is returned when a lookup cannot be answered at all
type ErrPathCostFailed struct {
	Origin models.Coordinate
	Dest   models.Coordinate
	Reason string
}

func (e *ErrPathCostFailed) Error() string {
	return fmt.Sprintf("path cost lookup %s->%s failed: %s", e.Origin, e.Dest, e.Reason)
}

type graphCalculator struct {
	graph *gridmap.Graph
	cache database.PathCostRepository
	log   *slog.Logger
}

// NewGraphCalculator answers path cost queries with breadth-first search on
// graph, memoizing results in cache. A nil cache keeps results in memory.
func NewGraphCalculator(graph *gridmap.Graph, cache database.PathCostRepository) PathCostCalculator {
	if cache == nil {
		cache = database.NewMemoryPathCostCache()
	}
	return &graphCalculator{
		graph: graph,
		cache: cache,
		log:   logger.WithComponent("distance"),
	}
}

func (c *graphCalculator) GetPathCost(ctx context.Context, origin, dest models.Coordinate) (*PathCostResult, error) {
	if !c.graph.Contains(origin) || !c.graph.Contains(dest) {
		return nil, &ErrPathCostFailed{Origin: origin, Dest: dest, Reason: "coordinate outside the map"}
	}
	if origin == dest {
		return &PathCostResult{Cost: 0, Reachable: true}, nil
	}

	cached, err := c.cache.Get(ctx, c.graph.ID(), origin, dest)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return &PathCostResult{Cost: cached.Cost, Reachable: cached.Reachable}, nil
	}

	results, err := c.GetCostsFromPoint(ctx, origin, []models.Coordinate{dest})
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

func (c *graphCalculator) GetCostMatrix(ctx context.Context, points []models.Coordinate) ([][]PathCostResult, error) {
	matrix := make([][]PathCostResult, len(points))
	for i, origin := range points {
		row, err := c.GetCostsFromPoint(ctx, origin, points)
		if err != nil {
			return nil, err
		}
		matrix[i] = row
	}
	return matrix, nil
}

// GetCostsFromPoint answers from the cache where possible and runs one
// search from origin to fill every miss
func (c *graphCalculator) GetCostsFromPoint(ctx context.Context, origin models.Coordinate, destinations []models.Coordinate) ([]PathCostResult, error) {
	results := make([]PathCostResult, len(destinations))
	if len(destinations) == 0 {
		return results, nil
	}

	mapID := c.graph.ID()
	pairs := make([]database.CoordinatePair, len(destinations))
	for i, dest := range destinations {
		pairs[i] = database.CoordinatePair{Origin: origin, Dest: dest}
	}

	cached, err := c.cache.GetBatch(ctx, mapID, pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to read path cost cache: %w", err)
	}

	var misses []int
	for i, dest := range destinations {
		if origin == dest {
			results[i] = PathCostResult{Cost: 0, Reachable: true}
			continue
		}
		if entry, ok := cached[database.MakeCacheKey(mapID, origin, dest)]; ok {
			results[i] = PathCostResult{Cost: entry.Cost, Reachable: entry.Reachable}
			continue
		}
		misses = append(misses, i)
	}
	if len(misses) == 0 {
		return results, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	field, err := c.graph.Distances(origin)
	if err != nil {
		return nil, &ErrPathCostFailed{Origin: origin, Dest: destinations[misses[0]], Reason: err.Error()}
	}

	entries := make([]models.PathCostEntry, 0, len(misses))
	for _, i := range misses {
		dest := destinations[i]
		if !c.graph.Contains(dest) {
			return nil, &ErrPathCostFailed{Origin: origin, Dest: dest, Reason: "coordinate outside the map"}
		}
		cost, ok := field.To(dest)
		results[i] = PathCostResult{Cost: cost, Reachable: ok}
		entries = append(entries, models.PathCostEntry{
			MapID:       mapID,
			Origin:      origin,
			Destination: dest,
			Cost:        cost,
			Reachable:   ok,
		})
	}

	c.log.Debug("path costs computed", "origin", origin.String(), "misses", len(misses))
	if err := c.cache.SetBatch(ctx, entries); err != nil {
		c.log.Warn("failed to cache path costs", "error", err)
	}

	return results, nil
}

func (c *graphCalculator) PrewarmCache(ctx context.Context, points []models.Coordinate) error {
	if len(points) < 2 {
		return nil
	}
	c.log.Info("prewarming path cost cache", "points", len(points))
	_, err := c.GetCostMatrix(ctx, points)
	return err
}
