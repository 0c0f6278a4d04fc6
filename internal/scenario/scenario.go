// Package scenario describes a grid world with its agents and passengers
// and runs delivery requests against it.
package scenario

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"taxi-relay/internal/config"
	"taxi-relay/internal/gridmap"
	"taxi-relay/internal/models"
	"taxi-relay/internal/sim"
)

// ErrInvalidScenario is returned for scenarios that cannot be simulated
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is a map plus the initial agents and passengers. Files may be
// YAML or JSON.
type Scenario struct {
	Map        []string            `json:"map" yaml:"map"`
	Agents     []sim.AgentSpec     `json:"agents" yaml:"agents"`
	Passengers []sim.PassengerSpec `json:"passengers" yaml:"passengers"`

	// Capacity and Collisions override the sim section of the config when set.
	Capacity   int   `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	Collisions *bool `json:"collisions,omitempty" yaml:"collisions,omitempty"`
}

// Load reads and validates a scenario file
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes a YAML or JSON scenario and validates it
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the map and that every agent and passenger is on it
func (s *Scenario) Validate() error {
	if len(s.Agents) == 0 {
		return fmt.Errorf("%w: no agents", ErrInvalidScenario)
	}

	g, err := gridmap.Build(s.Map)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	for i, a := range s.Agents {
		if !g.Contains(a.Location) {
			return fmt.Errorf("%w: agent %d at %s is off the map", ErrInvalidScenario, i, a.Location)
		}
		if a.Fuel < 0 {
			return fmt.Errorf("%w: agent %d has negative fuel", ErrInvalidScenario, i)
		}
	}
	for i, p := range s.Passengers {
		if !g.Contains(p.Pickup) || !g.Contains(p.Destination) {
			return fmt.Errorf("%w: passenger %d is off the map", ErrInvalidScenario, i)
		}
	}
	return nil
}

// World builds a fresh simulation for the scenario
func (s *Scenario) World(cfg *config.Config, log *slog.Logger) (*sim.World, error) {
	capacity := cfg.Sim.Capacity
	if s.Capacity > 0 {
		capacity = s.Capacity
	}
	collisions := cfg.Sim.Collisions
	if s.Collisions != nil {
		collisions = *s.Collisions
	}

	return sim.New(sim.Config{
		Map:        s.Map,
		Agents:     s.Agents,
		Passengers: s.Passengers,
		Capacity:   capacity,
		Collisions: collisions,
		Actions:    cfg.Actions,
		Logger:     log,
	})
}

// Roster converts the initial state into coordinator records, indexed as
// the simulation indexes them
func (s *Scenario) Roster() ([]*models.Agent, []*models.Passenger) {
	agents := lo.Map(s.Agents, func(a sim.AgentSpec, i int) *models.Agent {
		return models.NewAgent(models.AgentID(i), a.Location, a.Fuel)
	})
	passengers := lo.Map(s.Passengers, func(p sim.PassengerSpec, i int) *models.Passenger {
		return &models.Passenger{
			ID:          models.PassengerID(i),
			Pickup:      p.Pickup,
			Destination: p.Destination,
			Status:      models.StatusWaiting,
			Holder:      models.NoAgent,
		}
	})
	return agents, passengers
}
