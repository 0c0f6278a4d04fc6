package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"taxi-relay/internal/database"
	"taxi-relay/internal/logger"

	_ "modernc.org/sqlite"
)

const (
	DefaultDBFileName = "data.db"
	schemaVersion     = 2
)

// Store is a SQLite-based data store implementing database.DataStore
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	log    *slog.Logger

	runRepo      database.RunRepository
	pathCostRepo database.PathCostRepository
}

// New creates a new SQLite store at the specified path
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log := logger.WithComponent("sqlite")
	log.Info("opening SQLite database", "path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
		log:    log,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.runRepo = &runRepository{store: store}
	store.pathCostRepo = &pathCostRepository{store: store}

	return store, nil
}

// GetDBPath returns the current database file path
func (s *Store) GetDBPath() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// Table doesn't exist, create everything
		return s.createSchema()
	}

	if version < schemaVersion {
		if err := s.runMigrations(version); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	INSERT INTO schema_version (version) VALUES (2);

	-- Delivery runs
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		map_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		strategy TEXT,
		agents INTEGER NOT NULL DEFAULT 0,
		passengers INTEGER NOT NULL DEFAULT 0,
		delivered INTEGER NOT NULL DEFAULT 0,
		ticks INTEGER NOT NULL DEFAULT 0,
		reward REAL NOT NULL DEFAULT 0,
		notes TEXT,
		created_at DATETIME NOT NULL
	);

	-- Which agent served which passenger, and where
	CREATE TABLE IF NOT EXISTS run_assignments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		agent_id INTEGER NOT NULL,
		passenger_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		point_row INTEGER NOT NULL,
		point_col INTEGER NOT NULL,
		cost INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	-- Path cost cache, scoped by map fingerprint
	CREATE TABLE IF NOT EXISTS path_costs (
		map_id TEXT NOT NULL,
		origin_row INTEGER NOT NULL,
		origin_col INTEGER NOT NULL,
		dest_row INTEGER NOT NULL,
		dest_col INTEGER NOT NULL,
		cost INTEGER NOT NULL,
		reachable INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (map_id, origin_row, origin_col, dest_row, dest_col)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_run_assignments_run ON run_assignments(run_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.log.Info("SQLite schema initialized", "version", schemaVersion)
	return nil
}

func (s *Store) runMigrations(fromVersion int) error {
	if fromVersion < 2 {
		// version 1 cached distances without a map scope
		if _, err := s.db.Exec("DROP TABLE IF EXISTS path_costs"); err != nil {
			return fmt.Errorf("failed to drop path_costs: %w", err)
		}
		if _, err := s.db.Exec("DELETE FROM schema_version"); err != nil {
			return fmt.Errorf("failed to reset schema version: %w", err)
		}
		return s.createSchema()
	}

	_, err := s.db.Exec("UPDATE schema_version SET version = ?", schemaVersion)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		// Checkpoint WAL before closing
		s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database connection
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Repository accessors
func (s *Store) Runs() database.RunRepository           { return s.runRepo }
func (s *Store) PathCosts() database.PathCostRepository { return s.pathCostRepo }
