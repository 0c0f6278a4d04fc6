package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi-relay/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, models.DefaultCostTable(), cfg.Costs)
	assert.Equal(t, models.DefaultActionTable(), cfg.Actions)
	assert.Equal(t, 8, cfg.Execution.MaxStallRetries)
	assert.Equal(t, 10000, cfg.Execution.MaxTicks)
	assert.Equal(t, StorageSQLite, cfg.Storage.Driver)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 1, cfg.Sim.Capacity)
	assert.Zero(t, cfg.Auction.Epsilon)

	assert.Equal(t, Default().Execution, cfg.Execution)
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	viper.Set("costs.pickup", 2.5)
	viper.Set("actions.standby", 12)
	viper.Set("storage.driver", "memory")
	viper.Set("execution.max_ticks", 50)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2.5, cfg.Costs.Pickup)
	assert.Equal(t, 12, cfg.Actions.Index(models.ActionStandby))
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, 50, cfg.Execution.MaxTicks)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative cost", func(c *Config) { c.Costs.Step = -1 }},
		{"duplicate action index", func(c *Config) { c.Actions.Indices[models.ActionStandby] = 0 }},
		{"negative epsilon", func(c *Config) { c.Auction.Epsilon = -0.1 }},
		{"zero ticks", func(c *Config) { c.Execution.MaxTicks = 0 }},
		{"zero capacity", func(c *Config) { c.Sim.Capacity = 0 }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestGetOrDefaultHelpers(t *testing.T) {
	viper.Reset()

	assert.Equal(t, 42, getIntOrDefault("test.int", 42))
	assert.Equal(t, 1.5, getFloatOrDefault("test.float", 1.5))
	assert.Equal(t, "x", getStringOrDefault("test.str", "x"))
	assert.Equal(t, time.Second, getDurationOrDefault("test.dur", time.Second))

	viper.Set("test.int", 7)
	viper.Set("test.float", 0.25)
	viper.Set("test.str", "y")
	viper.Set("test.dur", "2s")

	assert.Equal(t, 7, getIntOrDefault("test.int", 42))
	assert.Equal(t, 0.25, getFloatOrDefault("test.float", 1.5))
	assert.Equal(t, "y", getStringOrDefault("test.str", "x"))
	assert.Equal(t, 2*time.Second, getDurationOrDefault("test.dur", time.Second))
}
