package database

import (
	"context"

	"taxi-relay/internal/models"
)

// DataStore is the interface for data persistence
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	PathCosts() PathCostRepository
	Runs() RunRepository
}

// CoordinatePair is an ordered origin/destination lookup key
type CoordinatePair struct {
	Origin models.Coordinate
	Dest   models.Coordinate
}

// PathCostRepository caches shortest path costs per map
type PathCostRepository interface {
	Get(ctx context.Context, mapID string, origin, dest models.Coordinate) (*models.PathCostEntry, error)
	GetBatch(ctx context.Context, mapID string, pairs []CoordinatePair) (map[string]*models.PathCostEntry, error)
	Set(ctx context.Context, entry *models.PathCostEntry) error
	SetBatch(ctx context.Context, entries []models.PathCostEntry) error
	Clear(ctx context.Context) error
}

// RunRepository handles delivery run history
type RunRepository interface {
	List(ctx context.Context, limit, offset int) ([]models.Run, int, error)
	GetByID(ctx context.Context, id string) (*models.Run, []models.RunAssignment, error)
	Create(ctx context.Context, run *models.Run, assignments []models.RunAssignment) (*models.Run, error)
	Delete(ctx context.Context, id string) error
}
