package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taxi-relay/internal/database"
	"taxi-relay/internal/models"
)

type runRepository struct {
	store *Store
}

func (r *runRepository) List(ctx context.Context, limit, offset int) ([]models.Run, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var total int
	if err := r.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	query := `SELECT id, map_id, mode, strategy, agents, passengers, delivered, ticks, reward, notes, created_at
	          FROM runs
	          ORDER BY created_at DESC
	          LIMIT ? OFFSET ?`

	rows, err := r.store.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, total, nil
}

func scanRun(row rowScanner) (*models.Run, error) {
	var run models.Run
	var strategy, notes sql.NullString
	if err := row.Scan(
		&run.ID, &run.MapID, &run.Mode, &strategy,
		&run.Agents, &run.Passengers, &run.Delivered, &run.Ticks, &run.Reward,
		&notes, &run.CreatedAt,
	); err != nil {
		return nil, err
	}
	run.Strategy = strategy.String
	run.Notes = notes.String
	return &run, nil
}

func (r *runRepository) GetByID(ctx context.Context, id string) (*models.Run, []models.RunAssignment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	runQuery := `SELECT id, map_id, mode, strategy, agents, passengers, delivered, ticks, reward, notes, created_at
	             FROM runs WHERE id = ?`
	run, err := scanRun(r.store.db.QueryRowContext(ctx, runQuery, id))
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get run: %w", err)
	}

	assignQuery := `SELECT id, run_id, agent_id, passenger_id, role, point_row, point_col, cost
	                FROM run_assignments
	                WHERE run_id = ?
	                ORDER BY id`

	rows, err := r.store.db.QueryContext(ctx, assignQuery, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query run assignments: %w", err)
	}
	defer rows.Close()

	var assignments []models.RunAssignment
	for rows.Next() {
		var a models.RunAssignment
		if err := rows.Scan(
			&a.ID, &a.RunID, &a.AgentID, &a.PassengerID, &a.Role,
			&a.Point.Row, &a.Point.Col, &a.Cost,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to scan run assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating run assignments: %w", err)
	}

	return run, assignments, nil
}

func (r *runRepository) Create(ctx context.Context, run *models.Run, assignments []models.RunAssignment) (*models.Run, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	runQuery := `INSERT INTO runs (id, map_id, mode, strategy, agents, passengers, delivered, ticks, reward, notes, created_at)
	             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, runQuery,
		run.ID, run.MapID, run.Mode, run.Strategy,
		run.Agents, run.Passengers, run.Delivered, run.Ticks, run.Reward,
		run.Notes, run.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	assignQuery := `INSERT INTO run_assignments
	                (run_id, agent_id, passenger_id, role, point_row, point_col, cost)
	                VALUES (?, ?, ?, ?, ?, ?, ?)`

	for _, a := range assignments {
		_, err := tx.ExecContext(ctx, assignQuery,
			run.ID, a.AgentID, a.PassengerID, a.Role, a.Point.Row, a.Point.Col, a.Cost,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create run assignment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.store.log.Info("created run", "id", run.ID, "mode", run.Mode, "delivered", run.Delivered)
	return run, nil
}

func (r *runRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	// Foreign key cascade removes the assignments
	result, err := r.store.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return database.ErrNotFound
	}

	return nil
}
