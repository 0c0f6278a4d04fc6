package distance_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi-relay/internal/distance"
	"taxi-relay/internal/gridmap"
	"taxi-relay/internal/models"
	"taxi-relay/internal/testutil"
)

func c(row, col int) models.Coordinate {
	return models.Coordinate{Row: row, Col: col}
}

func buildGraph(t *testing.T, desc []string) *gridmap.Graph {
	t.Helper()
	g, err := gridmap.Build(desc)
	require.NoError(t, err)
	return g
}

func TestGetPathCostMatchesGraph(t *testing.T) {
	g := buildGraph(t, gridmap.OpenLayout(4, 6))
	calc := distance.NewGraphCalculator(g, nil)

	result, err := calc.GetPathCost(context.Background(), c(0, 0), c(3, 5))
	require.NoError(t, err)
	assert.True(t, result.Reachable)
	assert.Equal(t, 8, result.Cost)

	same, err := calc.GetPathCost(context.Background(), c(2, 2), c(2, 2))
	require.NoError(t, err)
	assert.Equal(t, 0, same.Cost)
}

func TestGetPathCostUsesCache(t *testing.T) {
	g := buildGraph(t, gridmap.OpenLayout(3, 3))
	cache := testutil.NewMockPathCostCache()
	calc := distance.NewGraphCalculator(g, cache)
	ctx := context.Background()

	_, err := calc.GetPathCost(ctx, c(0, 0), c(2, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Count())

	// a poisoned entry proves the second lookup is served from the cache
	require.NoError(t, cache.Set(ctx, &models.PathCostEntry{
		MapID: g.ID(), Origin: c(0, 0), Destination: c(2, 2), Cost: 99, Reachable: true,
	}))
	result, err := calc.GetPathCost(ctx, c(0, 0), c(2, 2))
	require.NoError(t, err)
	assert.Equal(t, 99, result.Cost)
}

func TestUnreachableIsNotAnError(t *testing.T) {
	g := buildGraph(t, []string{
		"+---+",
		"| | |",
		"+---+",
	})
	calc := distance.NewGraphCalculator(g, nil)

	result, err := calc.GetPathCost(context.Background(), c(0, 0), c(0, 1))
	require.NoError(t, err)
	assert.False(t, result.Reachable)
}

func TestOutsideMapFails(t *testing.T) {
	g := buildGraph(t, gridmap.OpenLayout(2, 2))
	calc := distance.NewGraphCalculator(g, nil)

	_, err := calc.GetPathCost(context.Background(), c(0, 0), c(7, 7))
	var failed *distance.ErrPathCostFailed
	assert.ErrorAs(t, err, &failed)
}

func TestGetCostMatrix(t *testing.T) {
	g := buildGraph(t, gridmap.OpenLayout(3, 3))
	calc := distance.NewGraphCalculator(g, nil)

	points := []models.Coordinate{c(0, 0), c(0, 2), c(2, 2)}
	matrix, err := calc.GetCostMatrix(context.Background(), points)
	require.NoError(t, err)

	expected := [][]int{
		{0, 2, 4},
		{2, 0, 2},
		{4, 2, 0},
	}
	for i := range points {
		for j := range points {
			assert.Equal(t, expected[i][j], matrix[i][j].Cost, "cost %d->%d", i, j)
			assert.True(t, matrix[i][j].Reachable)
		}
	}
}

func TestCacheFailureOnWriteIsTolerated(t *testing.T) {
	g := buildGraph(t, gridmap.OpenLayout(3, 3))
	cache := testutil.NewMockPathCostCache()
	cache.FailSets = true
	calc := distance.NewGraphCalculator(g, cache)

	result, err := calc.GetPathCost(context.Background(), c(0, 0), c(1, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Cost)
}

func TestCacheFailureOnReadIsReported(t *testing.T) {
	g := buildGraph(t, gridmap.OpenLayout(3, 3))
	cache := testutil.NewMockPathCostCache()
	cache.Fail = true
	calc := distance.NewGraphCalculator(g, cache)

	_, err := calc.GetPathCost(context.Background(), c(0, 0), c(1, 1))
	assert.ErrorIs(t, err, testutil.ErrCacheUnavailable)
}

func TestPrewarmCache(t *testing.T) {
	g := buildGraph(t, gridmap.OpenLayout(3, 3))
	cache := testutil.NewMockPathCostCache()
	calc := distance.NewGraphCalculator(g, cache)

	require.NoError(t, calc.PrewarmCache(context.Background(), []models.Coordinate{c(0, 0), c(1, 1), c(2, 2)}))
	assert.Equal(t, 6, cache.Count(), "every ordered pair of distinct points")
}

func TestMockCalculatorSatisfiesInterface(t *testing.T) {
	var calc distance.PathCostCalculator = testutil.NewMockPathCostCalculator()
	result, err := calc.GetPathCost(context.Background(), c(0, 0), c(2, 3))
	require.NoError(t, err)
	assert.Equal(t, 5, result.Cost)
}
