package allocation

import (
	"math"
)

// OptimalAllocate solves the assignment exactly with the Hungarian method.
// It serves as many passengers as possible and, among those assignments,
// picks one of minimum total cost. Rectangular matrices are padded with
// zero-cost dummies and infeasible pairs carry a penalty larger than any
// feasible assignment, then both are stripped from the result.
func OptimalAllocate(m *CostMatrix) *Allocation {
	rows, cols := len(m.Agents), len(m.Passengers)
	rowToCol := make([]int, rows)
	for i := range rowToCol {
		rowToCol[i] = -1
	}
	if rows == 0 || cols == 0 {
		return newAllocation(m, rowToCol)
	}

	n := max(rows, cols)
	penalty := float64(n+1) * (maxFinite(m) + 1)

	square := make([][]float64, n)
	for i := range square {
		square[i] = make([]float64, n)
		if i >= rows {
			continue
		}
		for j := 0; j < cols; j++ {
			if m.feasible(i, j) {
				square[i][j] = m.Costs[i][j]
			} else {
				square[i][j] = penalty
			}
		}
	}

	for i, j := range hungarian(square) {
		if i < rows && j < cols && m.feasible(i, j) {
			rowToCol[i] = j
		}
	}
	return newAllocation(m, rowToCol)
}

// hungarian returns the column matched to each row of a square cost matrix
// using row-by-row augmentation with dual potentials
func hungarian(a [][]float64) []int {
	n := len(a)
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	match := make([]int, n+1) // match[j] is the row, 1-based, holding column j
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		match[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}

		for {
			used[j0] = true
			i0 := match[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := a[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[match[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if match[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			j1 := way[j0]
			match[j0] = match[j1]
			j0 = j1
		}
	}

	rowToCol := make([]int, n)
	for j := 1; j <= n; j++ {
		if match[j] > 0 {
			rowToCol[match[j]-1] = j - 1
		}
	}
	return rowToCol
}
