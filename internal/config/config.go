// Package config handles configuration management for taxi-relay.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"taxi-relay/internal/models"
)

// Storage drivers
const (
	StorageSQLite = "sqlite"
	StorageFile   = "file"
	StorageMemory = "memory"
)

// Config holds all configuration for taxi-relay.
type Config struct {
	Costs     models.CostTable
	Actions   models.ActionTable
	Auction   AuctionConfig
	Execution ExecutionConfig
	Sim       SimConfig
	Storage   StorageConfig
	Server    ServerConfig
	Log       LogConfig
}

// AuctionConfig holds auction allocator settings.
type AuctionConfig struct {
	// Epsilon is the minimum bid increment. Zero picks 1/(n+1) for n bidders.
	Epsilon float64
}

// ExecutionConfig bounds the lockstep execution loop.
type ExecutionConfig struct {
	// MaxStallRetries is how many times a blocked step is re-issued before
	// the agent's plan is dropped.
	MaxStallRetries int

	// MaxTicks caps a single execution run.
	MaxTicks int
}

// SimConfig configures the in-process grid world.
type SimConfig struct {
	Collisions bool
	Capacity   int
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string
	// Path is the database or data file; empty uses the application directory.
	Path string
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
	JSON  bool
}

// Load reads configuration from viper (config file, TAXIRELAY_ env vars, flags).
func Load() (*Config, error) {
	cfg := &Config{
		Costs: models.CostTable{
			Step:    getFloatOrDefault("costs.step", 1),
			Pickup:  getFloatOrDefault("costs.pickup", 1),
			Dropoff: getFloatOrDefault("costs.dropoff", 1),
		},

		Actions: loadActions(),

		Auction: AuctionConfig{
			Epsilon: getFloatOrDefault("auction.epsilon", 0),
		},

		Execution: ExecutionConfig{
			MaxStallRetries: getIntOrDefault("execution.max_stall_retries", 8),
			MaxTicks:        getIntOrDefault("execution.max_ticks", 10000),
		},

		Sim: SimConfig{
			Collisions: viper.GetBool("sim.collisions"),
			Capacity:   getIntOrDefault("sim.capacity", 1),
		},

		Storage: StorageConfig{
			Driver: getStringOrDefault("storage.driver", StorageSQLite),
			Path:   viper.GetString("storage.path"),
		},

		Server: ServerConfig{
			Addr:            getStringOrDefault("server.addr", "127.0.0.1:8080"),
			ShutdownTimeout: getDurationOrDefault("server.shutdown_timeout", 10*time.Second),
		},

		Log: LogConfig{
			Level: getStringOrDefault("log.level", "info"),
			JSON:  viper.GetBool("log.json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Costs:     models.DefaultCostTable(),
		Actions:   models.DefaultActionTable(),
		Execution: ExecutionConfig{MaxStallRetries: 8, MaxTicks: 10000},
		Sim:       SimConfig{Capacity: 1},
		Storage:   StorageConfig{Driver: StorageSQLite},
		Server:    ServerConfig{Addr: "127.0.0.1:8080", ShutdownTimeout: 10 * time.Second},
		Log:       LogConfig{Level: "info"},
	}
}

// loadActions reads actions.<name> overrides on top of the canonical order
func loadActions() models.ActionTable {
	table := models.DefaultActionTable()
	for _, a := range models.AllActions() {
		table.Indices[a] = getIntOrDefault("actions."+a.String(), int(a))
	}
	return table
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Costs.Step < 0 || c.Costs.Pickup < 0 || c.Costs.Dropoff < 0 {
		return errors.New("costs must be non-negative")
	}

	seen := make(map[int]models.Action, len(c.Actions.Indices))
	for a, idx := range c.Actions.Indices {
		if other, ok := seen[idx]; ok {
			return fmt.Errorf("actions %s and %s share index %d", other, a, idx)
		}
		seen[idx] = a
	}

	if c.Auction.Epsilon < 0 {
		return errors.New("auction.epsilon must be non-negative")
	}
	if c.Execution.MaxStallRetries < 0 {
		return errors.New("execution.max_stall_retries must be non-negative")
	}
	if c.Execution.MaxTicks <= 0 {
		return errors.New("execution.max_ticks must be positive")
	}
	if c.Sim.Capacity <= 0 {
		return errors.New("sim.capacity must be positive")
	}

	switch c.Storage.Driver {
	case StorageSQLite, StorageFile, StorageMemory:
	default:
		return fmt.Errorf("unknown storage driver %q (want sqlite, file or memory)", c.Storage.Driver)
	}

	return nil
}

// getIntOrDefault returns viper int value or default if not set.
func getIntOrDefault(key string, defaultVal int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	return defaultVal
}

// getFloatOrDefault returns viper float value or default if not set.
func getFloatOrDefault(key string, defaultVal float64) float64 {
	if viper.IsSet(key) {
		return viper.GetFloat64(key)
	}
	return defaultVal
}

// getStringOrDefault returns viper string value or default if not set.
func getStringOrDefault(key string, defaultVal string) string {
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultVal
}

// getDurationOrDefault returns viper duration value or default if not set.
func getDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	return defaultVal
}
