package allocation

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi-relay/internal/models"
	"taxi-relay/internal/testutil"
)

var inf = Infeasible

// bruteForce returns the largest number of feasible pairs and the lowest
// cost among assignments of that size
func bruteForce(costs [][]float64) (int, float64) {
	cols := 0
	if len(costs) > 0 {
		cols = len(costs[0])
	}
	used := make([]bool, cols)
	bestCount, bestCost := 0, 0.0

	var walk func(row, count int, cost float64)
	walk = func(row, count int, cost float64) {
		if row == len(costs) {
			if count > bestCount || (count == bestCount && cost < bestCost) {
				bestCount, bestCost = count, cost
			}
			return
		}
		walk(row+1, count, cost)
		for j := 0; j < cols; j++ {
			if used[j] || math.IsInf(costs[row][j], 1) {
				continue
			}
			used[j] = true
			walk(row+1, count+1, cost+costs[row][j])
			used[j] = false
		}
	}
	walk(0, 0, 0)
	return bestCount, bestCost
}

func randomMatrix(r *rand.Rand, rows, cols int) [][]float64 {
	costs := make([][]float64, rows)
	for i := range costs {
		costs[i] = make([]float64, cols)
		for j := range costs[i] {
			if r.IntN(5) == 0 {
				costs[i][j] = inf
				continue
			}
			costs[i][j] = float64(1 + r.IntN(20))
		}
	}
	return costs
}

func TestSingleEntry(t *testing.T) {
	m := NewCostMatrix([][]float64{{7}})

	cmp := Compare(m, 0)
	assert.Equal(t, map[models.AgentID]models.PassengerID{0: 0}, cmp.Auction.Assignments)
	assert.Equal(t, map[models.AgentID]models.PassengerID{0: 0}, cmp.Optimal.Assignments)
	assert.Equal(t, 7.0, cmp.AuctionCost)
	assert.Equal(t, 7.0, cmp.OptimalCost)
	assert.Zero(t, cmp.Gap)
	assert.Equal(t, 1, cmp.Auction.Bids)
	assert.Zero(t, cmp.Optimal.Bids)
}

func TestEmptyMatrix(t *testing.T) {
	m := NewCostMatrix(nil)

	a := AuctionAllocate(m, 0)
	assert.Empty(t, a.Assignments)
	o := OptimalAllocate(m)
	assert.Empty(t, o.Assignments)
}

func TestOptimalPrefersCheaperPairing(t *testing.T) {
	// greedy on row 0 would take column 0 and force row 1 onto 9
	m := NewCostMatrix([][]float64{
		{1, 2},
		{2, 9},
	})

	o := OptimalAllocate(m)
	assert.Equal(t, map[models.AgentID]models.PassengerID{0: 1, 1: 0}, o.Assignments)
	assert.Equal(t, 4.0, AllocationCost(m, o))

	a := AuctionAllocate(m, 0)
	assert.Equal(t, 4.0, AllocationCost(m, a))
}

func TestCardinalityBeforeCost(t *testing.T) {
	// taking the cheap pair strands agent 1
	m := NewCostMatrix([][]float64{
		{1, 10},
		{2, inf},
	})

	for name, a := range map[string]*Allocation{
		"auction": AuctionAllocate(m, 0),
		"optimal": OptimalAllocate(m),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Len(t, a.Assignments, 2)
			assert.Equal(t, models.PassengerID(1), a.Assignments[0])
			assert.Equal(t, models.PassengerID(0), a.Assignments[1])
		})
	}
}

func TestInfeasibleRowStaysUnassigned(t *testing.T) {
	m := NewCostMatrix([][]float64{
		{inf, inf, inf},
		{3, 1, 4},
	})

	for name, a := range map[string]*Allocation{
		"auction": AuctionAllocate(m, 0),
		"optimal": OptimalAllocate(m),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, map[models.AgentID]models.PassengerID{1: 1}, a.Assignments)
			assert.Equal(t, []models.AgentID{0}, a.UnassignedAgents)
			assert.Equal(t, []models.PassengerID{0, 2}, a.UnassignedPassengers)
		})
	}
}

func TestRectangular(t *testing.T) {
	tests := []struct {
		name  string
		costs [][]float64
		want  float64
	}{
		{"more passengers", [][]float64{{5, 1, 3}, {2, 8, 1}}, 2},
		{"more agents", [][]float64{{5, 1}, {2, 8}, {1, 1}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewCostMatrix(tt.costs)
			cmp := Compare(m, 0)
			assert.Len(t, cmp.Optimal.Assignments, 2)
			assert.Len(t, cmp.Auction.Assignments, 2)
			assert.Equal(t, tt.want, cmp.OptimalCost)
			assert.Equal(t, tt.want, cmp.AuctionCost)
		})
	}
}

func TestOptimalMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))

	for trial := 0; trial < 60; trial++ {
		rows, cols := 1+r.IntN(5), 1+r.IntN(5)
		costs := randomMatrix(r, rows, cols)
		m := NewCostMatrix(costs)

		count, cost := bruteForce(costs)
		o := OptimalAllocate(m)
		require.Len(t, o.Assignments, count, "trial %d: %v", trial, costs)
		assert.InDelta(t, cost, AllocationCost(m, o), 1e-9, "trial %d: %v", trial, costs)
	}
}

func TestAuctionNeverBeatsOptimal(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))

	for trial := 0; trial < 60; trial++ {
		m := NewCostMatrix(randomMatrix(r, 1+r.IntN(6), 1+r.IntN(6)))

		for _, eps := range []float64{0, 0.5, 2} {
			cmp := Compare(m, eps)
			assert.GreaterOrEqual(t, cmp.AuctionCost, cmp.OptimalCost-1e-9, "trial %d eps %v", trial, eps)
			assert.GreaterOrEqual(t, cmp.Gap, 0.0)
		}

		// small epsilon with integer costs is exact
		cmp := Compare(m, 0)
		assert.Len(t, cmp.Auction.Assignments, len(cmp.Optimal.Assignments), "trial %d", trial)
		assert.InDelta(t, cmp.OptimalCost, cmp.AuctionCost, 1e-9, "trial %d", trial)
	}
}

func TestAssignmentsAreOneToOne(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	m := NewCostMatrix(randomMatrix(r, 6, 4))

	for _, a := range []*Allocation{AuctionAllocate(m, 0), OptimalAllocate(m)} {
		seen := map[models.PassengerID]bool{}
		for agent, passenger := range a.Assignments {
			assert.False(t, seen[passenger], "passenger %d assigned twice", passenger)
			seen[passenger] = true
			_, ok := m.Cost(agent, passenger)
			assert.True(t, ok, "pair %d/%d is infeasible", agent, passenger)
		}
		assert.Equal(t, len(m.Agents), len(a.Assignments)+len(a.UnassignedAgents))
		assert.Equal(t, len(m.Passengers), len(a.Assignments)+len(a.UnassignedPassengers))
	}
}

func TestAllocationCostSkipsUnknownPairs(t *testing.T) {
	m := NewCostMatrix([][]float64{{2, inf}})
	a := &Allocation{Assignments: map[models.AgentID]models.PassengerID{0: 0, 5: 1}}
	assert.Equal(t, 2.0, AllocationCost(m, a))

	a = &Allocation{Assignments: map[models.AgentID]models.PassengerID{0: 1}}
	assert.Zero(t, AllocationCost(m, a))
}

func TestBuildCostMatrix(t *testing.T) {
	calc := testutil.NewMockPathCostCalculator()
	far := models.Coordinate{Row: 9, Col: 9}
	calc.SetUnreachable(models.Coordinate{Row: 0, Col: 0}, far)

	agents := []*models.Agent{
		models.NewAgent(0, models.Coordinate{Row: 0, Col: 0}, 10),
		models.NewAgent(1, models.Coordinate{Row: 0, Col: 5}, 4),
	}
	passengers := []*models.Passenger{
		{ID: 0, Pickup: models.Coordinate{Row: 0, Col: 1}, Destination: models.Coordinate{Row: 0, Col: 4}},
		{ID: 1, Pickup: far, Destination: far},
	}

	m, err := BuildCostMatrix(context.Background(), calc, models.CostTable{Step: 1, Pickup: 2, Dropoff: 3}, agents, passengers)
	require.NoError(t, err)

	assert.Equal(t, []models.AgentID{0, 1}, m.Agents)
	assert.Equal(t, []models.PassengerID{0, 1}, m.Passengers)

	// 1 move to the pickup, 3 to the destination
	assert.Equal(t, 1.0+2+3+3, m.Costs[0][0])
	assert.True(t, math.IsInf(m.Costs[0][1], 1), "unreachable pickup")
	// 4 + 3 moves exceed fuel 4
	assert.True(t, math.IsInf(m.Costs[1][0], 1))
	// 13 moves exceed fuel 4
	assert.True(t, math.IsInf(m.Costs[1][1], 1))

	cost, ok := m.Cost(0, 0)
	assert.True(t, ok)
	assert.Equal(t, 9.0, cost)
	_, ok = m.Cost(7, 0)
	assert.False(t, ok)
}
