package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppDirFromEnv(t *testing.T) {
	home := filepath.Join(t.TempDir(), "relay")
	t.Setenv(HomeEnv, home)

	dir, err := AppDir()
	require.NoError(t, err)
	assert.Equal(t, home, dir)
	assert.DirExists(t, home)

	data, err := DataFilePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data.json"), data)

	db, err := DefaultDBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data.db"), db)
}

func TestPathCostCachePathCreatesCacheDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, home)

	path, err := PathCostCachePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cache", "path_costs.json"), path)
	assert.DirExists(t, filepath.Join(home, "cache"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAppDirDefaultsUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, "")
	t.Setenv("HOME", home)

	dir, err := AppDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".taxi-relay"), dir)
}
