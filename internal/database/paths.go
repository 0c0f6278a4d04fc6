package database

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the directory that holds data files, caches and the
// default database.
const HomeEnv = "TAXIRELAY_HOME"

const (
	appDirName        = ".taxi-relay"
	dataFileName      = "data.json"
	cacheDirName      = "cache"
	pathCostCacheFile = "path_costs.json"
	sqliteDBFileName  = "data.db"
)

// AppDir returns $TAXIRELAY_HOME, or ~/.taxi-relay when it is unset, and
// creates the directory.
func AppDir() (string, error) {
	dir := os.Getenv(HomeEnv)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, appDirName)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create app directory %s: %w", dir, err)
	}
	return dir, nil
}

// appFile joins elem onto the app directory, creating any directories
// between them
func appFile(elem ...string) (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}

	path := filepath.Join(append([]string{dir}, elem...)...)
	if parent := filepath.Dir(path); parent != dir {
		if err := os.MkdirAll(parent, 0700); err != nil {
			return "", fmt.Errorf("failed to create directory %s: %w", parent, err)
		}
	}
	return path, nil
}

// DataFilePath is where the file driver keeps runs
func DataFilePath() (string, error) { return appFile(dataFileName) }

// PathCostCachePath is where the file driver keeps cached path costs
func PathCostCachePath() (string, error) { return appFile(cacheDirName, pathCostCacheFile) }

// DefaultDBPath is the sqlite database used when no path is configured
func DefaultDBPath() (string, error) { return appFile(sqliteDBFileName) }
