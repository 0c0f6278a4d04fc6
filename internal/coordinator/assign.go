package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"taxi-relay/internal/gridmap"
	"taxi-relay/internal/models"
)

// FindClosestFeasibleAgent returns the agent with the cheapest route to dest
// among those whose cost is strictly below their fuel. The first agent in
// roster order wins a tie. The boolean is false, with models.NoAgent, when
// no agent qualifies.
func (c *Coordinator) FindClosestFeasibleAgent(ctx context.Context, dest models.Coordinate) (models.AgentID, bool) {
	return c.closestFeasible(ctx, dest, c.agents)
}

func (c *Coordinator) closestFeasible(ctx context.Context, dest models.Coordinate, candidates []*models.Agent) (models.AgentID, bool) {
	best := models.NoAgent
	bestCost := 0
	for _, agent := range candidates {
		cost, err := c.planner.PathCost(ctx, agent, nil, dest)
		if err != nil {
			if !isUnreachable(err) {
				c.log.Warn("path cost lookup failed", "agent", agent.ID, "target", dest.String(), "error", err)
			}
			continue
		}
		if cost >= agent.Fuel {
			continue
		}
		if best == models.NoAgent || cost < bestCost {
			best, bestCost = agent.ID, cost
		}
	}
	return best, best != models.NoAgent
}

// soloCost is the number of moves an agent needs to serve a passenger alone
func (c *Coordinator) soloCost(ctx context.Context, agent *models.Agent, p *models.Passenger) (toPickup, toDest int, err error) {
	toPickup, err = c.planner.PathCost(ctx, agent, nil, p.Pickup)
	if err != nil {
		return 0, 0, err
	}
	toDest, err = c.planner.PathCost(ctx, agent, &p.Pickup, p.Destination)
	if err != nil {
		return 0, 0, err
	}
	return toPickup, toDest, nil
}

// CapableAgents lists the agents that can reach the passenger's pickup and
// then its destination on their current fuel
func (c *Coordinator) CapableAgents(ctx context.Context, pid models.PassengerID) ([]models.AgentID, error) {
	p, err := c.passenger(pid)
	if err != nil {
		return nil, err
	}

	capable := lo.Filter(c.agents, func(agent *models.Agent, _ int) bool {
		toPickup, toDest, err := c.soloCost(ctx, agent, p)
		if err != nil {
			return false
		}
		return toPickup+toDest < agent.Fuel
	})
	return lo.Map(capable, func(agent *models.Agent, _ int) models.AgentID { return agent.ID }), nil
}

// ExpectedReward estimates the cost of an agent serving a passenger alone:
// the route to the pickup, the pickup itself, the route to the destination
// and the drop-off. It assumes nothing interrupts the agent.
func (c *Coordinator) ExpectedReward(ctx context.Context, aid models.AgentID, pid models.PassengerID) (float64, error) {
	agent, err := c.Agent(aid)
	if err != nil {
		return 0, err
	}
	p, err := c.passenger(pid)
	if err != nil {
		return 0, err
	}

	toPickup, toDest, err := c.soloCost(ctx, agent, p)
	if err != nil {
		return 0, err
	}
	return c.costs.Step*float64(toPickup) + c.costs.Pickup + c.costs.Step*float64(toDest) + c.costs.Dropoff, nil
}

// DistancesToPassengers returns the route cost from the agent to every
// passenger's pickup, in passenger order. Unreachable pickups are -1.
func (c *Coordinator) DistancesToPassengers(ctx context.Context, aid models.AgentID) ([]int, error) {
	agent, err := c.Agent(aid)
	if err != nil {
		return nil, err
	}

	pickups := lo.Map(c.passengers, func(p *models.Passenger, _ int) models.Coordinate { return p.Pickup })
	results, err := c.calc.GetCostsFromPoint(ctx, agent.Location, pickups)
	if err != nil {
		return nil, fmt.Errorf("failed to get path costs for agent %d: %w", aid, err)
	}

	distances := make([]int, len(results))
	for i, r := range results {
		distances[i] = -1
		if r.Reachable {
			distances[i] = r.Cost
		}
	}
	return distances, nil
}

// SendToPickup extends the agent's plan with a route to the passenger's
// pickup point and the pickup action, and assigns the passenger to it
func (c *Coordinator) SendToPickup(aid models.AgentID, pid models.PassengerID) error {
	agent, err := c.Agent(aid)
	if err != nil {
		return err
	}
	p, err := c.passenger(pid)
	if err != nil {
		return err
	}

	pickup := models.ActionPickup
	moves, err := c.planner.AppendRoute(agent, p.Pickup, &pickup)
	if err != nil {
		return err
	}

	agent.Passenger = pid
	if p.Stage == models.StageUnassigned {
		p.Stage = models.StageAssigned
	}
	c.log.Debug("pickup planned", "agent", aid, "passenger", pid, "at", p.Pickup.String(), "moves", moves)
	return nil
}

// SendToDropoff extends the agent's plan with a route to point and the
// drop-off action. A nil point means the assigned passenger's destination.
// The agent's passenger assignment is cleared.
func (c *Coordinator) SendToDropoff(aid models.AgentID, point *models.Coordinate) error {
	agent, err := c.Agent(aid)
	if err != nil {
		return err
	}

	var target models.Coordinate
	switch {
	case point != nil:
		target = *point
	case agent.HasPassenger():
		p, err := c.passenger(agent.Passenger)
		if err != nil {
			return err
		}
		target = p.Destination
	default:
		return fmt.Errorf("failed to plan drop-off for agent %d: %w", aid, ErrNoPassenger)
	}

	dropoff := models.ActionDropoff
	moves, err := c.planner.AppendRoute(agent, target, &dropoff)
	if err != nil {
		return err
	}

	c.log.Debug("drop-off planned", "agent", aid, "passenger", agent.Passenger, "at", target.String(), "moves", moves)
	agent.Passenger = models.NoPassenger
	return nil
}

// SetMeetingPoint replaces every agent's plan with a route to point. Agents
// that cannot reach it keep their plan; the failures are joined.
func (c *Coordinator) SetMeetingPoint(point models.Coordinate) error {
	var errs []error
	for _, agent := range c.agents {
		if err := c.planner.ComputeRoute(agent, &point); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// isUnreachable reports whether err only says that no path exists
func isUnreachable(err error) bool {
	return errors.Is(err, gridmap.ErrUnreachable)
}
