// Package agentroute plans and steps through a single agent's action queue.
package agentroute

import (
	"context"
	"fmt"
	"log/slog"

	"taxi-relay/internal/distance"
	"taxi-relay/internal/gridmap"
	"taxi-relay/internal/logger"
	"taxi-relay/internal/models"
)

// PassengerDirectory resolves passenger identifiers to their current record
type PassengerDirectory interface {
	Passenger(id models.PassengerID) (*models.Passenger, bool)
}

// Options configures a Planner
type Options struct {
	// MaxStallRetries is the number of consecutive re-issues of a blocked
	// step before the plan is dropped. Zero retries forever.
	MaxStallRetries int
	Logger          *slog.Logger
}

// Planner computes routes on a shared graph and hands out one step at a time.
// It holds no per-agent state; everything lives on the models.Agent it is given.
type Planner struct {
	graph      *gridmap.Graph
	costs      distance.PathCostCalculator
	passengers PassengerDirectory
	maxStalls  int
	log        *slog.Logger
}

// NewPlanner creates a planner. A nil calculator answers path costs straight
// from the graph with an in-memory cache.
func NewPlanner(graph *gridmap.Graph, costs distance.PathCostCalculator, passengers PassengerDirectory, opts Options) *Planner {
	if costs == nil {
		costs = distance.NewGraphCalculator(graph, nil)
	}
	return &Planner{
		graph:      graph,
		costs:      costs,
		passengers: passengers,
		maxStalls:  opts.MaxStallRetries,
		log:        logger.Or(opts.Logger, "agentroute"),
	}
}

// Graph returns the graph routes are planned on
func (p *Planner) Graph() *gridmap.Graph {
	return p.graph
}

// Route returns the steps of a shortest path from origin to dest
func (p *Planner) Route(origin, dest models.Coordinate) ([]models.Step, error) {
	coords, actions, err := p.graph.ShortestPath(origin, dest)
	if err != nil {
		return nil, err
	}

	steps := make([]models.Step, len(coords))
	for i := range coords {
		steps[i] = models.Step{Coordinate: coords[i], Action: actions[i]}
	}
	return steps, nil
}

// ComputeRoute replaces the agent's plan with a shortest route to dest, or
// to its passenger's destination when dest is nil. An agent with neither
// gets an empty plan and stands by. On error the existing plan is kept.
func (p *Planner) ComputeRoute(agent *models.Agent, dest *models.Coordinate) error {
	target, ok := p.routeTarget(agent, dest)
	if !ok {
		p.resetPlan(agent, []models.Step{})
		return nil
	}

	steps, err := p.Route(agent.Location, target)
	if err != nil {
		return fmt.Errorf("failed to route agent %d: %w", agent.ID, err)
	}

	p.resetPlan(agent, steps)
	p.log.Debug("route computed", "agent", agent.ID, "to", target.String(), "steps", len(steps))
	return nil
}

func (p *Planner) routeTarget(agent *models.Agent, dest *models.Coordinate) (models.Coordinate, bool) {
	if dest != nil {
		return *dest, true
	}
	if !agent.HasPassenger() || p.passengers == nil {
		return models.Coordinate{}, false
	}
	passenger, ok := p.passengers.Passenger(agent.Passenger)
	if !ok {
		return models.Coordinate{}, false
	}
	return passenger.Destination, true
}

func (p *Planner) resetPlan(agent *models.Agent, steps []models.Step) {
	agent.Queue = steps
	agent.Previous = nil
	agent.Stalls = 0
}

// AppendRoute extends the plan with a route from where the plan currently
// ends to dest, followed by terminal when it is not nil. It returns the
// number of moves added.
func (p *Planner) AppendRoute(agent *models.Agent, dest models.Coordinate, terminal *models.Action) (int, error) {
	steps, err := p.Route(agent.PlanTail(), dest)
	if err != nil {
		return 0, fmt.Errorf("failed to route agent %d: %w", agent.ID, err)
	}

	agent.Queue = append(agent.Queue, steps...)
	if terminal != nil {
		agent.Queue = append(agent.Queue, models.Step{Coordinate: dest, Action: *terminal})
	}
	return len(steps), nil
}

// NextStep returns the step to execute this tick.
//
// When the agent is not where its previous step should have left it, the
// move was blocked and the same step is returned again. After
// MaxStallRetries consecutive re-issues the plan is dropped. The boolean is
// false when there is nothing to execute.
func (p *Planner) NextStep(agent *models.Agent) (models.Step, bool) {
	if agent.Previous != nil && agent.Location != agent.Previous.Coordinate {
		agent.Stalls++
		if p.maxStalls > 0 && agent.Stalls > p.maxStalls {
			p.log.Warn("dropping plan after repeated blocked steps",
				"agent", agent.ID,
				"at", agent.Location.String(),
				"expected", agent.Previous.Coordinate.String(),
				"stalls", agent.Stalls-1,
				"remaining", len(agent.Queue))
			p.resetPlan(agent, []models.Step{})
			return models.Step{}, false
		}
		return *agent.Previous, true
	}

	if len(agent.Queue) == 0 {
		return models.Step{}, false
	}

	next := agent.Queue[0]
	agent.Queue = agent.Queue[1:]
	agent.Previous = &next
	agent.Stalls = 0
	return next, true
}

// Pending returns the number of steps left in the plan
func (p *Planner) Pending(agent *models.Agent) int {
	return len(agent.Queue)
}

// PathCost returns the shortest route cost to dest from origin, or from the
// agent's location when origin is nil. The agent's plan is not touched.
func (p *Planner) PathCost(ctx context.Context, agent *models.Agent, origin *models.Coordinate, dest models.Coordinate) (int, error) {
	from := agent.Location
	if origin != nil {
		from = *origin
	}

	result, err := p.costs.GetPathCost(ctx, from, dest)
	if err != nil {
		return 0, err
	}
	if !result.Reachable {
		return 0, &gridmap.UnreachableError{Origin: from, Destination: dest}
	}
	return result.Cost, nil
}
