package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"taxi-relay/internal/database"
	"taxi-relay/internal/models"
)

type pathCostRepository struct {
	store *Store
}

const selectPathCost = `SELECT map_id, origin_row, origin_col, dest_row, dest_col, cost, reachable
	FROM path_costs
	WHERE map_id = ? AND origin_row = ? AND origin_col = ? AND dest_row = ? AND dest_col = ?`

const upsertPathCost = `INSERT OR REPLACE INTO path_costs
	(map_id, origin_row, origin_col, dest_row, dest_col, cost, reachable)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPathCost(row rowScanner) (*models.PathCostEntry, error) {
	var entry models.PathCostEntry
	err := row.Scan(
		&entry.MapID,
		&entry.Origin.Row, &entry.Origin.Col,
		&entry.Destination.Row, &entry.Destination.Col,
		&entry.Cost, &entry.Reachable,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *pathCostRepository) Get(ctx context.Context, mapID string, origin, dest models.Coordinate) (*models.PathCostEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entry, err := scanPathCost(r.store.db.QueryRowContext(ctx, selectPathCost,
		mapID, origin.Row, origin.Col, dest.Row, dest.Col))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get path cost entry: %w", err)
	}

	return entry, nil
}

func (r *pathCostRepository) GetBatch(ctx context.Context, mapID string, pairs []database.CoordinatePair) (map[string]*models.PathCostEntry, error) {
	result := make(map[string]*models.PathCostEntry)
	if len(pairs) == 0 {
		return result, nil
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stmt, err := r.store.db.PrepareContext(ctx, selectPathCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare batch query: %w", err)
	}
	defer stmt.Close()

	for _, pair := range pairs {
		entry, err := scanPathCost(stmt.QueryRowContext(ctx,
			mapID, pair.Origin.Row, pair.Origin.Col, pair.Dest.Row, pair.Dest.Col))
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query batch entry: %w", err)
		}
		result[database.MakeCacheKey(mapID, pair.Origin, pair.Dest)] = entry
	}

	return result, nil
}

func (r *pathCostRepository) Set(ctx context.Context, entry *models.PathCostEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, err := r.store.db.ExecContext(ctx, upsertPathCost,
		entry.MapID,
		entry.Origin.Row, entry.Origin.Col,
		entry.Destination.Row, entry.Destination.Col,
		entry.Cost, entry.Reachable,
	)
	if err != nil {
		return fmt.Errorf("failed to set path cost entry: %w", err)
	}

	return nil
}

func (r *pathCostRepository) SetBatch(ctx context.Context, entries []models.PathCostEntry) error {
	if len(entries) == 0 {
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertPathCost)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		_, err := stmt.ExecContext(ctx,
			entry.MapID,
			entry.Origin.Row, entry.Origin.Col,
			entry.Destination.Row, entry.Destination.Col,
			entry.Cost, entry.Reachable,
		)
		if err != nil {
			return fmt.Errorf("failed to insert batch entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *pathCostRepository) Clear(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, err := r.store.db.ExecContext(ctx, "DELETE FROM path_costs"); err != nil {
		return fmt.Errorf("failed to clear path cost cache: %w", err)
	}

	return nil
}
