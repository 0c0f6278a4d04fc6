// Package coordinator owns the agent roster and turns delivery requests into
// lockstep action streams for an external simulation.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"taxi-relay/internal/agentroute"
	"taxi-relay/internal/config"
	"taxi-relay/internal/distance"
	"taxi-relay/internal/gridmap"
	"taxi-relay/internal/logger"
	"taxi-relay/internal/models"
)

// Simulation is the external grid world. It owns ground truth; the
// coordinator only reads snapshots and submits one action index per agent
// per tick.
type Simulation interface {
	State(ctx context.Context) (*models.WorldState, error)
	Step(ctx context.Context, actions []int) (*models.WorldState, []float64, bool, error)
}

// Options configures a Coordinator
type Options struct {
	Costs   models.CostTable
	Actions models.ActionTable

	// MaxStallRetries bounds re-issues of a blocked step, see agentroute.
	MaxStallRetries int
	// MaxTicks bounds a single ExecuteAll call. Zero means unbounded.
	MaxTicks int
	// Collisions tells hand-offs that two agents cannot share a cell.
	Collisions bool

	// Graph is built from the simulation's map when nil.
	Graph *gridmap.Graph
	// Calculator answers path costs; defaults to the graph with an in-memory cache.
	Calculator distance.PathCostCalculator
	Logger     *slog.Logger
}

// DefaultOptions returns options matching config.Default
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

// OptionsFromConfig copies the planning settings out of a loaded config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Costs:           cfg.Costs,
		Actions:         cfg.Actions,
		MaxStallRetries: cfg.Execution.MaxStallRetries,
		MaxTicks:        cfg.Execution.MaxTicks,
		Collisions:      cfg.Sim.Collisions,
	}
}

// Coordinator is the sole mutator of agent and passenger records. Agents and
// passengers are indexed by their position in the simulation snapshot.
type Coordinator struct {
	sim        Simulation
	graph      *gridmap.Graph
	planner    *agentroute.Planner
	calc       distance.PathCostCalculator
	costs      models.CostTable
	actions    models.ActionTable
	maxTicks   int
	collisions bool
	log        *slog.Logger

	agents     []*models.Agent
	passengers []*models.Passenger

	ticks  int
	reward float64
	done   bool
}

// New reads the simulation's initial state and builds the roster
func New(ctx context.Context, sim Simulation, opts Options) (*Coordinator, error) {
	state, err := sim.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read simulation state: %w", err)
	}

	graph := opts.Graph
	if graph == nil {
		graph, err = gridmap.Build(state.Map)
		if err != nil {
			return nil, err
		}
	}

	calc := opts.Calculator
	if calc == nil {
		calc = distance.NewGraphCalculator(graph, nil)
	}
	if opts.Actions.Indices == nil {
		opts.Actions = models.DefaultActionTable()
	}

	c := &Coordinator{
		sim:        sim,
		graph:      graph,
		calc:       calc,
		costs:      opts.Costs,
		actions:    opts.Actions,
		maxTicks:   opts.MaxTicks,
		collisions: opts.Collisions,
		log:        logger.Or(opts.Logger, "coordinator"),
	}
	c.planner = agentroute.NewPlanner(graph, calc, c, agentroute.Options{
		MaxStallRetries: opts.MaxStallRetries,
		Logger:          c.log,
	})

	c.agents = make([]*models.Agent, len(state.Agents))
	for i, a := range state.Agents {
		c.agents[i] = models.NewAgent(models.AgentID(i), a.Location, a.Fuel)
	}
	c.passengers = make([]*models.Passenger, len(state.Passengers))
	for i, p := range state.Passengers {
		c.passengers[i] = &models.Passenger{
			ID:          models.PassengerID(i),
			Pickup:      p.Pickup,
			Destination: p.Destination,
			Status:      p.Status,
			Holder:      p.Holder,
			Stage:       models.StageUnassigned,
		}
	}
	if err := c.sync(state); err != nil {
		return nil, err
	}

	c.log.Debug("coordinator ready",
		"map", graph.ID(),
		"rows", graph.Rows(),
		"cols", graph.Cols(),
		"agents", len(c.agents),
		"passengers", len(c.passengers))
	return c, nil
}

// Graph returns the shared map graph
func (c *Coordinator) Graph() *gridmap.Graph { return c.graph }

// Planner returns the route planner used for every agent
func (c *Coordinator) Planner() *agentroute.Planner { return c.planner }

// Agents returns the roster in identifier order
func (c *Coordinator) Agents() []*models.Agent { return c.agents }

// Passengers returns every passenger in identifier order
func (c *Coordinator) Passengers() []*models.Passenger { return c.passengers }

// Ticks returns the number of simulation steps submitted so far
func (c *Coordinator) Ticks() int { return c.ticks }

// Reward returns the total reward collected so far
func (c *Coordinator) Reward() float64 { return c.reward }

// Done reports whether the simulation signalled completion on its last step
func (c *Coordinator) Done() bool { return c.done }

// Agent looks up an agent by identifier
func (c *Coordinator) Agent(id models.AgentID) (*models.Agent, error) {
	if id < 0 || int(id) >= len(c.agents) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	return c.agents[id], nil
}

// Passenger looks up a passenger by identifier
func (c *Coordinator) Passenger(id models.PassengerID) (*models.Passenger, bool) {
	if id < 0 || int(id) >= len(c.passengers) {
		return nil, false
	}
	return c.passengers[id], true
}

func (c *Coordinator) passenger(id models.PassengerID) (*models.Passenger, error) {
	p, ok := c.Passenger(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPassenger, id)
	}
	return p, nil
}

// Refresh re-reads the simulation state without stepping it
func (c *Coordinator) Refresh(ctx context.Context) error {
	state, err := c.sim.State(ctx)
	if err != nil {
		return fmt.Errorf("failed to read simulation state: %w", err)
	}
	return c.sync(state)
}

// sync copies a snapshot into the roster and advances passenger stages
func (c *Coordinator) sync(state *models.WorldState) error {
	if len(state.Agents) != len(c.agents) || len(state.Passengers) != len(c.passengers) {
		return fmt.Errorf("snapshot has %d agents and %d passengers, roster has %d and %d",
			len(state.Agents), len(state.Passengers), len(c.agents), len(c.passengers))
	}

	for i, a := range state.Agents {
		c.agents[i].Location = a.Location
		c.agents[i].Fuel = a.Fuel
	}

	for i, ps := range state.Passengers {
		p := c.passengers[i]
		p.Pickup = ps.Pickup
		p.Destination = ps.Destination
		p.Status = ps.Status
		p.Holder = ps.Holder

		switch {
		case ps.Status == models.StatusDelivered:
			p.Stage = models.StageDelivered
		case ps.Status == models.StatusInTransit:
			p.Stage = models.StagePickedUp
		case ps.Status == models.StatusWaiting && p.Stage == models.StagePickedUp:
			p.Stage = models.StageTransferred
		}
	}
	return nil
}
