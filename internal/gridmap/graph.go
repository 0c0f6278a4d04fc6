package gridmap

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"taxi-relay/internal/models"
)

// Node is the integer identifier of a grid cell: row*cols + col
type Node int

// Map glyphs
const (
	wallSouth    = '-'
	corridorEast = ':'
)

// Graph is the navigable structure derived from a map description.
// It is never mutated after Build and is safe for concurrent readers.
type Graph struct {
	rows int
	cols int
	adj  [][]Node
	desc []string
	id   string
}

// Build parses a framed map description into a graph.
//
// The first and last rows are framing. Interior row r describes grid row r-1:
// character 2c+1 is cell c and character 2c+2 is the separator east of it.
// An edge runs east when that separator is ':'. An edge runs south unless the
// character below the cell in the next description row is '-'.
func Build(desc []string) (*Graph, error) {
	if len(desc) < 3 {
		return nil, &InvalidMapError{Reason: fmt.Sprintf("need at least 3 rows, got %d", len(desc))}
	}

	width := len(desc[0])
	for i, row := range desc {
		if len(row) != width {
			return nil, &InvalidMapError{Reason: fmt.Sprintf("row %d has width %d, expected %d", i, len(row), width)}
		}
	}

	rows := len(desc) - 2
	cols := width / 2
	if cols == 0 {
		return nil, &InvalidMapError{Reason: "map has no interior columns"}
	}

	g := &Graph{
		rows: rows,
		cols: cols,
		adj:  make([][]Node, rows*cols),
		desc: append([]string(nil), desc...),
	}

	for n := 0; n < rows*cols; n++ {
		row, col := n/cols, n%cols
		if row+1 < rows && desc[row+2][col*2+1] != wallSouth {
			g.addEdge(Node(n), g.node(row+1, col))
		}
		if col+1 < cols && desc[row+1][col*2+2] == corridorEast {
			g.addEdge(Node(n), g.node(row, col+1))
		}
	}

	for _, neighbors := range g.adj {
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })
	}

	sum := sha256.Sum256([]byte(strings.Join(desc, "\n")))
	g.id = hex.EncodeToString(sum[:8])

	return g, nil
}

func (g *Graph) addEdge(a, b Node) {
	g.adj[a] = append(g.adj[a], b)
	g.adj[b] = append(g.adj[b], a)
}

func (g *Graph) node(row, col int) Node {
	return Node(row*g.cols + col)
}

// Rows returns the number of grid rows
func (g *Graph) Rows() int { return g.rows }

// Cols returns the number of grid columns
func (g *Graph) Cols() int { return g.cols }

// Size returns the number of nodes
func (g *Graph) Size() int { return g.rows * g.cols }

// ID is a stable fingerprint of the map description
func (g *Graph) ID() string { return g.id }

// Description returns a copy of the map rows the graph was built from
func (g *Graph) Description() []string {
	return append([]string(nil), g.desc...)
}

// Contains reports whether the coordinate lies on the grid
func (g *Graph) Contains(c models.Coordinate) bool {
	return c.Row >= 0 && c.Row < g.rows && c.Col >= 0 && c.Col < g.cols
}

// CoordinateToNode converts a grid coordinate to its node identifier
func (g *Graph) CoordinateToNode(c models.Coordinate) Node {
	return g.node(c.Row, c.Col)
}

// NodeToCoordinate converts a node identifier back to its grid coordinate
func (g *Graph) NodeToCoordinate(n Node) models.Coordinate {
	return models.Coordinate{Row: int(n) / g.cols, Col: int(n) % g.cols}
}

// Neighbors returns the nodes adjacent to n in ascending order
func (g *Graph) Neighbors(n Node) []Node {
	return g.adj[n]
}

// HasEdge reports whether a and b are adjacent
func (g *Graph) HasEdge(a, b models.Coordinate) bool {
	if !g.Contains(a) || !g.Contains(b) {
		return false
	}
	target := g.CoordinateToNode(b)
	for _, n := range g.adj[g.CoordinateToNode(a)] {
		if n == target {
			return true
		}
	}
	return false
}

// ActionBetween derives the move that leads from node a to adjacent node b
func (g *Graph) ActionBetween(a, b Node) models.Action {
	// a single-column grid has no horizontal neighbors, so ±1 is vertical there
	delta := int(b - a)
	switch {
	case delta == -1 && g.cols > 1:
		return models.ActionWest
	case delta == 1 && g.cols > 1:
		return models.ActionEast
	case delta == -g.cols:
		return models.ActionNorth
	default:
		return models.ActionSouth
	}
}

func (g *Graph) check(c models.Coordinate) error {
	if !g.Contains(c) {
		return &OutOfBoundsError{Coordinate: c, Rows: g.rows, Cols: g.cols}
	}
	return nil
}

// bfs explores from origin in ascending-neighbor order and returns the
// distance and parent of every node; unreached nodes have distance -1
func (g *Graph) bfs(origin Node, stop func(Node, int) bool) (dist []int, parent []Node, order []Node) {
	dist = make([]int, g.Size())
	parent = make([]Node, g.Size())
	for i := range dist {
		dist[i] = -1
		parent[i] = -1
	}

	dist[origin] = 0
	queue := []Node{origin}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)
		if stop != nil && stop(current, dist[current]) {
			break
		}
		for _, next := range g.adj[current] {
			if dist[next] >= 0 {
				continue
			}
			dist[next] = dist[current] + 1
			parent[next] = current
			queue = append(queue, next)
		}
	}
	return dist, parent, order
}

// ShortestPath returns the coordinates visited after origin and the moves
// that reach them. Both are empty when origin equals dest.
func (g *Graph) ShortestPath(origin, dest models.Coordinate) ([]models.Coordinate, []models.Action, error) {
	if err := g.check(origin); err != nil {
		return nil, nil, err
	}
	if err := g.check(dest); err != nil {
		return nil, nil, err
	}

	from, to := g.CoordinateToNode(origin), g.CoordinateToNode(dest)
	if from == to {
		return []models.Coordinate{}, []models.Action{}, nil
	}

	dist, parent, _ := g.bfs(from, func(n Node, _ int) bool { return n == to })
	if dist[to] < 0 {
		return nil, nil, &UnreachableError{Origin: origin, Destination: dest}
	}

	nodes := g.tracePath(parent, from, to)
	coords := make([]models.Coordinate, len(nodes)-1)
	actions := make([]models.Action, len(nodes)-1)
	for i := 1; i < len(nodes); i++ {
		coords[i-1] = g.NodeToCoordinate(nodes[i])
		actions[i-1] = g.ActionBetween(nodes[i-1], nodes[i])
	}
	return coords, actions, nil
}

// tracePath walks parent links back from to and returns from..to inclusive
func (g *Graph) tracePath(parent []Node, from, to Node) []Node {
	var reversed []Node
	for n := to; n != from; n = parent[n] {
		reversed = append(reversed, n)
	}
	reversed = append(reversed, from)

	path := make([]Node, len(reversed))
	for i, n := range reversed {
		path[len(reversed)-1-i] = n
	}
	return path
}

// PathCost returns the number of moves on a shortest path
func (g *Graph) PathCost(origin, dest models.Coordinate) (int, error) {
	if err := g.check(origin); err != nil {
		return 0, err
	}
	if err := g.check(dest); err != nil {
		return 0, err
	}
	if origin == dest {
		return 0, nil
	}

	to := g.CoordinateToNode(dest)
	dist, _, _ := g.bfs(g.CoordinateToNode(origin), func(n Node, _ int) bool { return n == to })
	if dist[to] < 0 {
		return 0, &UnreachableError{Origin: origin, Destination: dest}
	}
	return dist[to], nil
}

// DistanceField holds shortest path costs from one origin to every node
type DistanceField struct {
	graph  *Graph
	origin models.Coordinate
	dist   []int
}

// Distances runs a full breadth-first search from origin
func (g *Graph) Distances(origin models.Coordinate) (*DistanceField, error) {
	if err := g.check(origin); err != nil {
		return nil, err
	}
	dist, _, _ := g.bfs(g.CoordinateToNode(origin), nil)
	return &DistanceField{graph: g, origin: origin, dist: dist}, nil
}

// Origin returns the coordinate the field was computed from
func (f *DistanceField) Origin() models.Coordinate { return f.origin }

// To returns the cost to reach c and whether it is reachable at all
func (f *DistanceField) To(c models.Coordinate) (int, bool) {
	if !f.graph.Contains(c) {
		return 0, false
	}
	d := f.dist[f.graph.CoordinateToNode(c)]
	return d, d >= 0
}

// Reachable lists every coordinate within radius moves of origin in
// breadth-first visitation order, origin first
func (g *Graph) Reachable(origin models.Coordinate, radius int) ([]models.Coordinate, error) {
	if err := g.check(origin); err != nil {
		return nil, err
	}
	if radius < 0 {
		return []models.Coordinate{}, nil
	}

	dist, _, order := g.bfs(g.CoordinateToNode(origin), nil)
	result := make([]models.Coordinate, 0, len(order))
	for _, n := range order {
		if dist[n] > radius {
			break
		}
		result = append(result, g.NodeToCoordinate(n))
	}
	return result, nil
}

// Render draws the map with the given cells marked
func (g *Graph) Render(marks map[models.Coordinate]byte) []string {
	out := make([]string, len(g.desc))
	for i, row := range g.desc {
		line := []byte(row)
		if i > 0 && i <= g.rows {
			for c := 0; c < g.cols; c++ {
				if mark, ok := marks[models.Coordinate{Row: i - 1, Col: c}]; ok {
					line[c*2+1] = mark
				}
			}
		}
		out[i] = string(line)
	}
	return out
}

// OpenLayout returns the description of a rows x cols map without interior walls
func OpenLayout(rows, cols int) []string {
	border := "+" + strings.Repeat("-", 2*cols-1) + "+"
	interior := "|" + strings.Repeat(" :", cols-1) + " |"

	desc := make([]string, 0, rows+2)
	desc = append(desc, border)
	for i := 0; i < rows; i++ {
		desc = append(desc, interior)
	}
	return append(desc, border)
}
