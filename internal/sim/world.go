// Package sim is an in-process grid world. It applies one primitive action
// per agent per tick and reports rewards, and it satisfies the simulation
// interface the coordinator drives.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"taxi-relay/internal/gridmap"
	"taxi-relay/internal/logger"
	"taxi-relay/internal/models"
)

// ErrActionCount is returned when a step does not carry one action per agent
var ErrActionCount = errors.New("action vector length mismatch")

// Glyph marking a cell where agents may refuel
const fuelStation = 'F'

// AgentSpec places an agent in the initial state
type AgentSpec struct {
	Location models.Coordinate `json:"location"`
	Fuel     int               `json:"fuel"`
	// MaxFuel is restored by refuel. Zero means the starting fuel.
	MaxFuel int `json:"max_fuel,omitempty" yaml:"max_fuel,omitempty"`
}

// PassengerSpec places a passenger in the initial state
type PassengerSpec struct {
	Pickup      models.Coordinate `json:"pickup"`
	Destination models.Coordinate `json:"destination"`
}

// Rewards is paid per agent per tick
type Rewards struct {
	FinalDropoff float64 `json:"final_dropoff"`
	HitWall      float64 `json:"hit_wall"`
	Pickup       float64 `json:"pickup"`
	Move         float64 `json:"move"`
}

// DefaultRewards pays for completed deliveries and punishes driving into walls
func DefaultRewards() Rewards {
	return Rewards{FinalDropoff: 1, HitWall: -100}
}

// Config describes a world
type Config struct {
	Map        []string        `json:"map"`
	Agents     []AgentSpec     `json:"agents"`
	Passengers []PassengerSpec `json:"passengers"`

	// Capacity is the number of passengers an agent can carry. Zero means one.
	Capacity int `json:"capacity,omitempty"`
	// Collisions blocks moves into a cell another agent occupies.
	Collisions bool `json:"collisions,omitempty"`

	Actions models.ActionTable `json:"-"`
	Rewards *Rewards           `json:"rewards,omitempty"`
	Logger  *slog.Logger       `json:"-"`
}

type agent struct {
	location models.Coordinate
	fuel     int
	maxFuel  int
	carrying []models.PassengerID
}

type passenger struct {
	pickup      models.Coordinate
	destination models.Coordinate
	status      models.PassengerStatus
	holder      models.AgentID
}

// World is the ground truth for agents and passengers. It is safe for
// concurrent use; steps are serialized.
type World struct {
	mu         sync.Mutex
	graph      *gridmap.Graph
	agents     []*agent
	passengers []*passenger
	capacity   int
	collisions bool
	actions    models.ActionTable
	rewards    Rewards
	ticks      int
	log        *slog.Logger
}

// New validates cfg and builds the initial state
func New(cfg Config) (*World, error) {
	graph, err := gridmap.Build(cfg.Map)
	if err != nil {
		return nil, err
	}

	w := &World{
		graph:      graph,
		capacity:   cfg.Capacity,
		collisions: cfg.Collisions,
		actions:    cfg.Actions,
		rewards:    DefaultRewards(),
		log:        logger.Or(cfg.Logger, "sim"),
	}
	if w.capacity <= 0 {
		w.capacity = 1
	}
	if w.actions.Indices == nil {
		w.actions = models.DefaultActionTable()
	}
	if cfg.Rewards != nil {
		w.rewards = *cfg.Rewards
	}

	for i, a := range cfg.Agents {
		if !graph.Contains(a.Location) {
			return nil, fmt.Errorf("agent %d starts outside the map at %s", i, a.Location)
		}
		maxFuel := a.MaxFuel
		if maxFuel <= 0 {
			maxFuel = a.Fuel
		}
		w.agents = append(w.agents, &agent{location: a.Location, fuel: a.Fuel, maxFuel: maxFuel})
	}
	for i, p := range cfg.Passengers {
		if !graph.Contains(p.Pickup) || !graph.Contains(p.Destination) {
			return nil, fmt.Errorf("passenger %d lies outside the map", i)
		}
		w.passengers = append(w.passengers, &passenger{
			pickup:      p.Pickup,
			destination: p.Destination,
			status:      models.StatusWaiting,
			holder:      models.NoAgent,
		})
	}

	return w, nil
}

// Graph returns the world's map graph
func (w *World) Graph() *gridmap.Graph { return w.graph }

// Collisions reports whether agents block each other's moves
func (w *World) Collisions() bool { return w.collisions }

// Ticks returns the number of steps applied
func (w *World) Ticks() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ticks
}

// State returns a snapshot of the world
func (w *World) State(ctx context.Context) (*models.WorldState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot(), nil
}

func (w *World) snapshot() *models.WorldState {
	state := &models.WorldState{
		Map:        w.graph.Description(),
		Agents:     make([]models.AgentState, len(w.agents)),
		Passengers: make([]models.PassengerState, len(w.passengers)),
	}
	for i, a := range w.agents {
		state.Agents[i] = models.AgentState{Location: a.location, Fuel: a.fuel}
	}
	for i, p := range w.passengers {
		state.Passengers[i] = models.PassengerState{
			Pickup:      p.pickup,
			Destination: p.destination,
			Status:      p.status,
			Holder:      p.holder,
		}
	}
	return state
}

// Step applies one action per agent. Moves resolve first, in agent order,
// then pickups and drop-offs. With collisions on, a move is blocked when
// the target is where another agent started the tick or has already moved
// to during it. It returns the new snapshot, each agent's
// reward and whether every passenger has been delivered.
func (w *World) Step(ctx context.Context, indices []int) (*models.WorldState, []float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if len(indices) != len(w.agents) {
		return nil, nil, false, fmt.Errorf("%w: got %d actions for %d agents", ErrActionCount, len(indices), len(w.agents))
	}

	actions := make([]models.Action, len(indices))
	for i, idx := range indices {
		a, ok := w.actions.Action(idx)
		if !ok {
			return nil, nil, false, fmt.Errorf("agent %d: unknown action index %d", i, idx)
		}
		actions[i] = a
	}

	start := make([]models.Coordinate, len(w.agents))
	for i, a := range w.agents {
		start[i] = a.location
	}
	claimed := make(map[models.Coordinate]bool)

	rewards := make([]float64, len(w.agents))
	for i, a := range actions {
		if a.IsMove() {
			rewards[i] += w.move(i, a, start, claimed)
		}
	}
	for i, a := range actions {
		switch a {
		case models.ActionPickup:
			rewards[i] += w.pickup(i)
		case models.ActionDropoff:
			rewards[i] += w.dropoff(i)
		case models.ActionRefuel:
			w.refuel(i)
		}
	}

	w.ticks++
	return w.snapshot(), rewards, w.allDelivered(), nil
}

func (w *World) move(i int, action models.Action, start []models.Coordinate, claimed map[models.Coordinate]bool) float64 {
	a := w.agents[i]
	target := action.Apply(a.location)

	if !w.graph.HasEdge(a.location, target) {
		w.log.Debug("move blocked by wall", "agent", i, "at", a.location.String(), "action", action.String())
		return w.rewards.HitWall
	}
	if a.fuel <= 0 {
		return 0
	}
	if w.collisions && (claimed[target] || occupied(i, target, start)) {
		return 0
	}

	claimed[target] = true
	a.location = target
	a.fuel--
	return w.rewards.Move
}

// occupied reports whether an agent other than self started the tick at c
func occupied(self int, c models.Coordinate, start []models.Coordinate) bool {
	for j, location := range start {
		if j != self && location == c {
			return true
		}
	}
	return false
}

func (w *World) pickup(i int) float64 {
	a := w.agents[i]
	if len(a.carrying) >= w.capacity {
		return 0
	}
	for id, p := range w.passengers {
		if p.status == models.StatusWaiting && p.pickup == a.location {
			p.status = models.StatusInTransit
			p.holder = models.AgentID(i)
			a.carrying = append(a.carrying, models.PassengerID(id))
			return w.rewards.Pickup
		}
	}
	return 0
}

// dropoff delivers every carried passenger whose destination is here. When
// none is, the first carried passenger is left waiting here instead.
func (w *World) dropoff(i int) float64 {
	a := w.agents[i]
	if len(a.carrying) == 0 {
		return 0
	}

	var reward float64
	kept := a.carrying[:0]
	for _, id := range a.carrying {
		p := w.passengers[id]
		if p.destination == a.location {
			p.status = models.StatusDelivered
			p.holder = models.NoAgent
			reward += w.rewards.FinalDropoff
			continue
		}
		kept = append(kept, id)
	}
	if len(kept) < len(a.carrying) {
		a.carrying = kept
		return reward
	}

	id := a.carrying[0]
	a.carrying = a.carrying[1:]
	p := w.passengers[id]
	p.status = models.StatusWaiting
	p.holder = models.NoAgent
	p.pickup = a.location
	return 0
}

func (w *World) refuel(i int) {
	a := w.agents[i]
	if w.glyph(a.location) == fuelStation {
		a.fuel = a.maxFuel
	}
}

func (w *World) glyph(c models.Coordinate) byte {
	desc := w.graph.Description()
	return desc[c.Row+1][c.Col*2+1]
}

func (w *World) allDelivered() bool {
	for _, p := range w.passengers {
		if p.status != models.StatusDelivered {
			return false
		}
	}
	return true
}
