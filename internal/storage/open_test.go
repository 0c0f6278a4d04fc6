package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi-relay/internal/config"
	"taxi-relay/internal/models"
)

func TestOpenMemory(t *testing.T) {
	store, err := Open(config.StorageConfig{Driver: config.StorageMemory})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.HealthCheck(context.Background()))
	run, err := store.Runs().Create(context.Background(), &models.Run{Mode: "solo"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := Open(config.StorageConfig{Driver: config.StorageSQLite, Path: path})
	require.NoError(t, err)
	defer store.Close()

	assert.NoError(t, store.HealthCheck(context.Background()))
	assert.NotNil(t, store.PathCosts())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(config.StorageConfig{Driver: "etcd"})
	assert.Error(t, err)
}
