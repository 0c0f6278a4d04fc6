// Package allocation assigns agents to passengers from a cost matrix, once
// by auction and once exactly.
package allocation

import (
	"context"
	"fmt"
	"math"

	"github.com/samber/lo"

	"taxi-relay/internal/distance"
	"taxi-relay/internal/models"
)

// Infeasible marks a pair that cannot be served
var Infeasible = math.Inf(1)

// CostMatrix holds the cost of each agent serving each passenger alone.
// Rows follow Agents and columns follow Passengers. Lower is better.
type CostMatrix struct {
	Agents     []models.AgentID     `json:"agents"`
	Passengers []models.PassengerID `json:"passengers"`
	Costs      [][]float64          `json:"costs"`
}

// NewCostMatrix wraps raw costs with sequential identifiers
func NewCostMatrix(costs [][]float64) *CostMatrix {
	m := &CostMatrix{Costs: costs}
	for i := range costs {
		m.Agents = append(m.Agents, models.AgentID(i))
	}
	if len(costs) > 0 {
		for j := range costs[0] {
			m.Passengers = append(m.Passengers, models.PassengerID(j))
		}
	}
	return m
}

// Cost returns the entry for an agent and passenger and whether the pair
// is in the matrix and feasible
func (m *CostMatrix) Cost(agent models.AgentID, passenger models.PassengerID) (float64, bool) {
	i := lo.IndexOf(m.Agents, agent)
	j := lo.IndexOf(m.Passengers, passenger)
	if i < 0 || j < 0 {
		return 0, false
	}
	cost := m.Costs[i][j]
	return cost, !math.IsInf(cost, 1)
}

func (m *CostMatrix) feasible(i, j int) bool {
	return !math.IsInf(m.Costs[i][j], 1)
}

// BuildCostMatrix prices every agent and passenger pair as the route to the
// pickup, the pickup, the route to the destination and the drop-off.
// Pairs the agent cannot reach on its fuel, or cannot reach at all, are
// Infeasible.
func BuildCostMatrix(ctx context.Context, calc distance.PathCostCalculator, costs models.CostTable, agents []*models.Agent, passengers []*models.Passenger) (*CostMatrix, error) {
	m := &CostMatrix{
		Agents:     lo.Map(agents, func(a *models.Agent, _ int) models.AgentID { return a.ID }),
		Passengers: lo.Map(passengers, func(p *models.Passenger, _ int) models.PassengerID { return p.ID }),
		Costs:      make([][]float64, len(agents)),
	}

	pickups := lo.Map(passengers, func(p *models.Passenger, _ int) models.Coordinate { return p.Pickup })
	trips := make([]distance.PathCostResult, len(passengers))
	for j, p := range passengers {
		trip, err := calc.GetPathCost(ctx, p.Pickup, p.Destination)
		if err != nil {
			return nil, fmt.Errorf("failed to price passenger %d: %w", p.ID, err)
		}
		trips[j] = *trip
	}

	for i, a := range agents {
		approach, err := calc.GetCostsFromPoint(ctx, a.Location, pickups)
		if err != nil {
			return nil, fmt.Errorf("failed to price agent %d: %w", a.ID, err)
		}

		m.Costs[i] = make([]float64, len(passengers))
		for j := range passengers {
			if !approach[j].Reachable || !trips[j].Reachable || approach[j].Cost+trips[j].Cost >= a.Fuel {
				m.Costs[i][j] = Infeasible
				continue
			}
			m.Costs[i][j] = costs.Step*float64(approach[j].Cost) + costs.Pickup +
				costs.Step*float64(trips[j].Cost) + costs.Dropoff
		}
	}
	return m, nil
}

// Allocation maps agents to the passengers they serve
type Allocation struct {
	Assignments          map[models.AgentID]models.PassengerID `json:"assignments"`
	UnassignedAgents     []models.AgentID                      `json:"unassigned_agents"`
	UnassignedPassengers []models.PassengerID                  `json:"unassigned_passengers"`
	// Bids counts auction bids; zero for the exact solver.
	Bids int `json:"bids,omitempty"`
}

// newAllocation converts row-to-column matches into identifiers
func newAllocation(m *CostMatrix, rowToCol []int) *Allocation {
	a := &Allocation{
		Assignments:          make(map[models.AgentID]models.PassengerID),
		UnassignedAgents:     []models.AgentID{},
		UnassignedPassengers: []models.PassengerID{},
	}

	taken := make([]bool, len(m.Passengers))
	for i, j := range rowToCol {
		if j < 0 {
			a.UnassignedAgents = append(a.UnassignedAgents, m.Agents[i])
			continue
		}
		a.Assignments[m.Agents[i]] = m.Passengers[j]
		taken[j] = true
	}
	for j, ok := range taken {
		if !ok {
			a.UnassignedPassengers = append(a.UnassignedPassengers, m.Passengers[j])
		}
	}
	return a
}

// AllocationCost sums the matrix entries of every assigned pair. Pairs
// missing from the matrix or infeasible count as zero.
func AllocationCost(m *CostMatrix, a *Allocation) float64 {
	total := 0.0
	for agent, passenger := range a.Assignments {
		if cost, ok := m.Cost(agent, passenger); ok {
			total += cost
		}
	}
	return total
}

// Comparison reports the auction result next to the exact optimum
type Comparison struct {
	Auction     *Allocation `json:"auction"`
	Optimal     *Allocation `json:"optimal"`
	AuctionCost float64     `json:"auction_cost"`
	OptimalCost float64     `json:"optimal_cost"`
	// Gap is AuctionCost minus OptimalCost, never negative.
	Gap float64 `json:"gap"`
}

// Compare solves m both ways
func Compare(m *CostMatrix, epsilon float64) *Comparison {
	auction := AuctionAllocate(m, epsilon)
	optimal := OptimalAllocate(m)

	cmp := &Comparison{
		Auction:     auction,
		Optimal:     optimal,
		AuctionCost: AllocationCost(m, auction),
		OptimalCost: AllocationCost(m, optimal),
	}
	cmp.Gap = math.Max(0, cmp.AuctionCost-cmp.OptimalCost)
	return cmp
}
