package coordinator

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"taxi-relay/internal/gridmap"
	"taxi-relay/internal/models"
)

// PairPlan is the agent pair whose joint Steiner tree over a passenger set
// is smallest
type PairPlan struct {
	First  models.AgentID       `json:"first"`
	Second models.AgentID       `json:"second"`
	Tree   *gridmap.SteinerTree `json:"-"`
	Cost   int                  `json:"cost"`
	// Center is the tree cell used as the hand-off point when the two
	// agents split a passenger.
	Center models.Coordinate `json:"center"`
}

// FindBestPaths connects every pair of agents to the pickups and
// destinations of the given passengers with an approximate Steiner tree and
// returns the pair with the fewest tree edges. Pairs are tried in roster
// order and the first minimum wins.
func (c *Coordinator) FindBestPaths(pids []models.PassengerID) (*PairPlan, error) {
	if len(c.agents) < 2 {
		return nil, fmt.Errorf("failed to pair agents: need 2, have %d", len(c.agents))
	}

	var stops []models.Coordinate
	for _, pid := range lo.Uniq(pids) {
		p, err := c.passenger(pid)
		if err != nil {
			return nil, err
		}
		stops = append(stops, p.Pickup, p.Destination)
	}

	var best *PairPlan
	for i := 0; i < len(c.agents); i++ {
		for j := i + 1; j < len(c.agents); j++ {
			terminals := append([]models.Coordinate{c.agents[i].Location, c.agents[j].Location}, stops...)
			tree, err := c.graph.ApproxSteinerTree(terminals)
			if err != nil {
				c.log.Debug("agent pair cannot span passengers", "first", i, "second", j, "error", err)
				continue
			}
			if best == nil || tree.Cost() < best.Cost {
				best = &PairPlan{
					First:  c.agents[i].ID,
					Second: c.agents[j].ID,
					Tree:   tree,
					Cost:   tree.Cost(),
					Center: c.graph.NodeToCoordinate(tree.Center()),
				}
			}
		}
	}

	if best == nil {
		return nil, fmt.Errorf("failed to pair agents: %w", gridmap.ErrUnreachable)
	}
	c.log.Debug("best agent pair", "first", best.First, "second", best.Second, "tree_cost", best.Cost, "center", best.Center.String())
	return best, nil
}

// ServePassengerSet delivers the passengers one after another with the
// agent pair from FindBestPaths. For each passenger the member closest to
// the pickup collects it and keeps it when it can finish alone. Otherwise
// the other member takes over at the tree center, or at the strategy's
// point if the holder cannot reach the center.
func (c *Coordinator) ServePassengerSet(ctx context.Context, pids []models.PassengerID, strategy TransferPointStrategy) ([]*DeliveryReport, error) {
	plan, err := c.FindBestPaths(pids)
	if err != nil {
		return nil, err
	}
	pair := []*models.Agent{c.agents[plan.First], c.agents[plan.Second]}

	reports := make([]*DeliveryReport, 0, len(pids))
	for _, pid := range lo.Uniq(pids) {
		p, err := c.passenger(pid)
		if err != nil {
			return reports, err
		}
		if p.Stage == models.StageDelivered {
			continue
		}

		report, err := c.servePairMember(ctx, p, pair, plan.Center, strategy)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

func (c *Coordinator) servePairMember(ctx context.Context, p *models.Passenger, pair []*models.Agent, center models.Coordinate, strategy TransferPointStrategy) (*DeliveryReport, error) {
	pickupAgent, ok := c.closestFeasible(ctx, p.Pickup, pair)
	if !ok {
		return nil, fmt.Errorf("%w for pickup of passenger %d", ErrNoFeasibleAgent, p.ID)
	}
	holder := c.agents[pickupAgent]
	toPickup, toDest, err := c.soloCost(ctx, holder, p)
	if err == nil && toPickup+toDest < holder.Fuel {
		return c.runSolo(ctx, p, pickupAgent)
	}

	dropoffAgent := pair[0].ID
	if dropoffAgent == pickupAgent {
		dropoffAgent = pair[1].ID
	}

	startTicks, startReward := c.ticks, c.reward
	report := &DeliveryReport{Passenger: p.ID, Mode: ModeTransfer, Strategy: StrategyTreeCenter, PickupAgent: pickupAgent}
	if err := c.pickUp(ctx, p, pickupAgent, report); err != nil {
		c.finishReport(report, p, startTicks, startReward)
		return report, err
	}

	tp, err := c.treeCenterPoint(p, pickupAgent, dropoffAgent, center)
	if err != nil {
		report.Strategy = strategy.Name()
		tp, err = c.FindTransferPoint(p.ID, pickupAgent, dropoffAgent, strategy)
		if err != nil {
			c.finishReport(report, p, startTicks, startReward)
			return report, &DeliveryError{Passenger: p.ID, Stage: p.Stage, Err: err}
		}
	}

	err = c.handOff(ctx, p, pickupAgent, dropoffAgent, tp, report)
	c.finishReport(report, p, startTicks, startReward)
	return report, err
}

// treeCenterPoint checks that the holder can reach center on fuel-1 and
// that the receiver can continue from there
func (c *Coordinator) treeCenterPoint(p *models.Passenger, from, to models.AgentID, center models.Coordinate) (*TransferPoint, error) {
	holder := c.agents[from]
	cost, err := c.graph.PathCost(holder.Location, center)
	if err != nil {
		return nil, err
	}
	if cost > holder.Fuel-1 {
		return nil, fmt.Errorf("%w: center %s is %d moves from agent %d with fuel %d", ErrNoTransferPoint, center, cost, from, holder.Fuel)
	}
	receiver := c.agents[to]
	tp := finish(c.graph, TransferRequest{
		From:        holder.Location,
		FromFuel:    holder.Fuel,
		To:          receiver.Location,
		Destination: p.Destination,
	}, center, cost, 0)
	if tp.ToCost < 0 || tp.ToCost >= receiver.Fuel {
		return nil, fmt.Errorf("%w: agent %d cannot finish from center %s", ErrNoTransferPoint, to, center)
	}
	return tp, nil
}
