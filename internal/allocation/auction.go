package allocation

import (
	"math"
)

// AuctionAllocate assigns agents to passengers with a forward auction.
//
// The smaller side bids. Each unassigned bidder values every feasible
// counterpart at a common ceiling minus the pair's cost, bids on the best
// net value and raises its price by the margin over the second best plus
// epsilon. Outbid bidders re-enter the queue. Staying unassigned is worth
// zero, so a bidder whose best net value turns negative drops out.
//
// The result always serves as many passengers as possible and its cost is
// within n*epsilon of the optimum for n bidders. An epsilon of zero or less
// picks 1/(n+1), which makes the result optimal whenever costs are integers.
func AuctionAllocate(m *CostMatrix, epsilon float64) *Allocation {
	rows, cols := len(m.Agents), len(m.Passengers)
	rowToCol := make([]int, rows)
	for i := range rowToCol {
		rowToCol[i] = -1
	}
	if rows == 0 || cols == 0 {
		return newAllocation(m, rowToCol)
	}

	transpose := rows > cols
	bidders, items := rows, cols
	if transpose {
		bidders, items = cols, rows
	}
	cost := func(b, o int) float64 {
		if transpose {
			return m.Costs[o][b]
		}
		return m.Costs[b][o]
	}

	if epsilon <= 0 {
		epsilon = 1 / float64(bidders+1)
	}
	// high enough that losing a pair always costs more than epsilon slack
	ceiling := float64(bidders+1)*(maxFinite(m)+1) + float64(bidders)*epsilon

	price := make([]float64, items)
	owner := make([]int, items)
	for o := range owner {
		owner[o] = -1
	}
	holding := make([]int, bidders)
	queue := make([]int, bidders)
	for b := range queue {
		holding[b] = -1
		queue[b] = b
	}

	bids := 0
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]

		best, bestNet, second := -1, 0.0, 0.0
		for o := 0; o < items; o++ {
			c := cost(b, o)
			if math.IsInf(c, 1) {
				continue
			}
			net := ceiling - c - price[o]
			switch {
			case best < 0 || net > bestNet:
				if best >= 0 {
					second = math.Max(second, bestNet)
				}
				best, bestNet = o, net
			case net > second:
				second = net
			}
		}
		if best < 0 || bestNet < 0 {
			continue
		}

		price[best] += bestNet - second + epsilon
		if prev := owner[best]; prev >= 0 {
			holding[prev] = -1
			queue = append(queue, prev)
		}
		owner[best] = b
		holding[b] = best
		bids++
	}

	if transpose {
		for o, b := range owner {
			rowToCol[o] = b
		}
	} else {
		copy(rowToCol, holding)
	}

	a := newAllocation(m, rowToCol)
	a.Bids = bids
	return a
}

// maxFinite returns the largest feasible entry, or zero
func maxFinite(m *CostMatrix) float64 {
	highest := 0.0
	for i := range m.Costs {
		for j, c := range m.Costs[i] {
			if m.feasible(i, j) && c > highest {
				highest = c
			}
		}
	}
	return highest
}
