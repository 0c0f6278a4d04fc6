package coordinator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi-relay/internal/gridmap"
	"taxi-relay/internal/models"
)

var walledMap = []string{
	"+---------+",
	"|X: |F: :X|",
	"| : | : : |",
	"| : : : : |",
	"| | : | : |",
	"|X| :G|X: |",
	"+---------+",
}

func buildGraph(t *testing.T, desc []string) *gridmap.Graph {
	t.Helper()
	g, err := gridmap.Build(desc)
	require.NoError(t, err)
	return g
}

func TestRouteAlignedPrefersReceiverPosition(t *testing.T) {
	g := buildGraph(t, gridmap.OpenLayout(1, 10))

	tp, err := RouteAligned{}.FindTransferPoint(g, TransferRequest{
		From: c(0, 0), FromFuel: 10, To: c(0, 9), Destination: c(0, 5),
	})
	require.NoError(t, err)
	assert.Equal(t, c(0, 9), tp.Point)
	assert.Equal(t, 9, tp.FromCost)
	assert.Equal(t, 4, tp.ToCost)
	assert.Equal(t, 0, tp.OffRoute)
}

func TestRouteAlignedSubstitutesReachablePoint(t *testing.T) {
	g := buildGraph(t, gridmap.OpenLayout(1, 10))

	tp, err := RouteAligned{}.FindTransferPoint(g, TransferRequest{
		From: c(0, 0), FromFuel: 4, To: c(0, 9), Destination: c(0, 5),
	})
	require.NoError(t, err)

	// the destination is the closest candidate, two moves beyond reach
	assert.Equal(t, c(0, 3), tp.Point)
	assert.Equal(t, 3, tp.FromCost)
	assert.Equal(t, 2, tp.OffRoute)
	assert.Equal(t, 8, tp.ToCost)
}

func TestRouteAlignedWithoutFuelStaysPut(t *testing.T) {
	g := buildGraph(t, gridmap.OpenLayout(3, 3))

	for _, fuel := range []int{0, 1} {
		tp, err := RouteAligned{}.FindTransferPoint(g, TransferRequest{
			From: c(1, 1), FromFuel: fuel, To: c(0, 0), Destination: c(2, 2),
		})
		require.NoError(t, err)
		assert.Equal(t, c(1, 1), tp.Point)
		assert.Equal(t, 0, tp.FromCost)
		assert.Equal(t, 4, tp.ToCost)
	}
}

func TestFuelHorizon(t *testing.T) {
	g := buildGraph(t, gridmap.OpenLayout(1, 10))

	tests := []struct {
		name string
		fuel int
		want models.Coordinate
	}{
		{"two short of fuel", 5, c(0, 4)},
		{"clamped to destination", 20, c(0, 9)},
		{"no fuel keeps holder in place", 1, c(0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, err := FuelHorizon{}.FindTransferPoint(g, TransferRequest{
				From: c(0, 0), FromFuel: tt.fuel, To: c(0, 9), Destination: c(0, 9),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, tp.Point)
		})
	}
}

func TestExhaustiveMinimizesReceiverCost(t *testing.T) {
	g := buildGraph(t, gridmap.OpenLayout(1, 10))

	tp, err := Exhaustive{}.FindTransferPoint(g, TransferRequest{
		From: c(0, 0), FromFuel: 4, To: c(0, 9), Destination: c(0, 9),
	})
	require.NoError(t, err)
	assert.Equal(t, c(0, 3), tp.Point)
	assert.Equal(t, 3, tp.FromCost)
	assert.Equal(t, 12, tp.ToCost)
}

func TestExhaustiveNoConnection(t *testing.T) {
	g := buildGraph(t, []string{
		"+---+",
		"| | |",
		"+---+",
	})

	_, err := Exhaustive{}.FindTransferPoint(g, TransferRequest{
		From: c(0, 0), FromFuel: 5, To: c(0, 1), Destination: c(0, 1),
	})
	assert.True(t, errors.Is(err, ErrNoTransferPoint))
}

func TestTransferPointWithinHolderFuel(t *testing.T) {
	g := buildGraph(t, walledMap)
	strategies := []TransferPointStrategy{RouteAligned{}, Exhaustive{}}

	for _, strategy := range strategies {
		for from := 0; from < g.Size(); from += 3 {
			for to := 1; to < g.Size(); to += 4 {
				for fuel := 0; fuel <= 7; fuel++ {
					req := TransferRequest{
						From:        g.NodeToCoordinate(gridmap.Node(from)),
						FromFuel:    fuel,
						To:          g.NodeToCoordinate(gridmap.Node(to)),
						Destination: c(4, 4),
					}
					tp, err := strategy.FindTransferPoint(g, req)
					require.NoError(t, err)

					cost, err := g.PathCost(req.From, tp.Point)
					require.NoError(t, err)
					assert.Equal(t, tp.FromCost, cost)
					assert.LessOrEqual(t, cost, max(fuel-1, 0), "%s from %s fuel %d", strategy.Name(), req.From, fuel)
				}
			}
		}
	}
}

func TestExhaustiveNeverWorseThanRouteAligned(t *testing.T) {
	g := buildGraph(t, walledMap)

	for from := 0; from < g.Size(); from += 2 {
		for fuel := 2; fuel <= 8; fuel += 3 {
			req := TransferRequest{
				From:        g.NodeToCoordinate(gridmap.Node(from)),
				FromFuel:    fuel,
				To:          c(0, 4),
				Destination: c(4, 0),
			}
			h1, err := RouteAligned{}.FindTransferPoint(g, req)
			require.NoError(t, err)
			if h1.OffRoute > 0 {
				continue
			}
			optimal, err := Exhaustive{}.FindTransferPoint(g, req)
			require.NoError(t, err)
			assert.LessOrEqual(t, optimal.ToCost, h1.ToCost)
		}
	}
}

func TestStrategyByName(t *testing.T) {
	for _, name := range []string{"h1", "route-aligned", "h2", "fuel-horizon", "optimal", "exhaustive"} {
		s, err := StrategyByName(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, s.Name())
	}

	_, err := StrategyByName("teleport")
	assert.Error(t, err)
	assert.Len(t, Strategies(), 3)
}
