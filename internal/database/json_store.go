package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"taxi-relay/internal/logger"
	"taxi-relay/internal/models"
)

// JSONData represents the structure of the JSON file
type JSONData struct {
	Runs             []JSONRun `json:"runs"`
	NextAssignmentID int64     `json:"next_assignment_id"`
}

// JSONRun stores a run together with its assignments
type JSONRun struct {
	models.Run
	Assignments []models.RunAssignment `json:"assignments"`
}

// JSONStore is a JSON file-based data store. With an empty file path it
// keeps everything in memory.
type JSONStore struct {
	filePath string
	data     *JSONData
	mu       sync.RWMutex
	log      *slog.Logger

	runRepository      RunRepository
	pathCostRepository PathCostRepository
}

func (s *JSONStore) Runs() RunRepository           { return s.runRepository }
func (s *JSONStore) PathCosts() PathCostRepository { return s.pathCostRepository }

// NewJSONStore creates a JSON-backed store at filePath, or under the
// application directory when filePath is empty
func NewJSONStore(filePath string, pathCosts PathCostRepository) (*JSONStore, error) {
	if filePath == "" {
		var err error
		filePath, err = DataFilePath()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := newJSONStore(filePath, pathCosts)
	store.log.Info("using JSON data file", "path", filePath)

	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

// NewMemoryStore creates a store that never touches disk
func NewMemoryStore() *JSONStore {
	return newJSONStore("", NewMemoryPathCostCache())
}

func newJSONStore(filePath string, pathCosts PathCostRepository) *JSONStore {
	store := &JSONStore{
		filePath:           filePath,
		data:               &JSONData{Runs: []JSONRun{}, NextAssignmentID: 1},
		log:                logger.WithComponent("json-store"),
		pathCostRepository: pathCosts,
	}
	store.runRepository = &jsonRunRepository{store: store}
	return store
}

func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return s.saveUnlocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read data file: %w", err)
	}

	if err := json.Unmarshal(data, s.data); err != nil {
		return fmt.Errorf("failed to parse data file: %w", err)
	}
	if s.data.Runs == nil {
		s.data.Runs = []JSONRun{}
	}
	if s.data.NextAssignmentID == 0 {
		s.data.NextAssignmentID = 1
	}

	s.log.Info("loaded data", "runs", len(s.data.Runs))
	return nil
}

func (s *JSONStore) saveUnlocked() error {
	if s.filePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temp file first, then rename (atomic)
	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Close is a no-op for JSON store (data is saved after each operation)
func (s *JSONStore) Close() error {
	return nil
}

// HealthCheck always returns nil for JSON store
func (s *JSONStore) HealthCheck(ctx context.Context) error {
	return nil
}

type jsonRunRepository struct {
	store *JSONStore
}

func (r *jsonRunRepository) List(ctx context.Context, limit, offset int) ([]models.Run, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	total := len(r.store.data.Runs)

	sorted := make([]JSONRun, total)
	copy(sorted, r.store.data.Runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	start := min(offset, total)
	end := min(start+limit, total)

	result := make([]models.Run, 0, end-start)
	for _, run := range sorted[start:end] {
		result = append(result, run.Run)
	}

	return result, total, nil
}

func (r *jsonRunRepository) GetByID(ctx context.Context, id string) (*models.Run, []models.RunAssignment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, run := range r.store.data.Runs {
		if run.ID == id {
			found := run.Run
			return &found, append([]models.RunAssignment(nil), run.Assignments...), nil
		}
	}
	return nil, nil, nil
}

func (r *jsonRunRepository) Create(ctx context.Context, run *models.Run, assignments []models.RunAssignment) (*models.Run, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	stored := make([]models.RunAssignment, len(assignments))
	for i, a := range assignments {
		a.ID = r.store.data.NextAssignmentID
		r.store.data.NextAssignmentID++
		a.RunID = run.ID
		stored[i] = a
	}

	r.store.data.Runs = append(r.store.data.Runs, JSONRun{Run: *run, Assignments: stored})

	if err := r.store.saveUnlocked(); err != nil {
		return nil, err
	}

	r.store.log.Info("created run", "id", run.ID, "mode", run.Mode, "delivered", run.Delivered)
	return run, nil
}

func (r *jsonRunRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for i, run := range r.store.data.Runs {
		if run.ID == id {
			r.store.data.Runs = append(r.store.data.Runs[:i], r.store.data.Runs[i+1:]...)

			if err := r.store.saveUnlocked(); err != nil {
				return err
			}

			r.store.log.Info("deleted run", "id", id)
			return nil
		}
	}

	return ErrNotFound
}
