package gridmap

import (
	"sort"

	"taxi-relay/internal/models"
)

// Edge is an undirected edge with A < B
type Edge struct {
	A, B Node
}

func newEdge(a, b Node) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

// SteinerTree is a tree in the graph spanning a set of terminals
type SteinerTree struct {
	Terminals []Node
	Nodes     []Node
	Edges     []Edge
}

// Cost is the number of edges in the tree
func (t *SteinerTree) Cost() int {
	return len(t.Edges)
}

// ApproxSteinerTree connects the given terminals with a tree whose edge count
// is at most twice the optimum. Terminals are deduplicated; one terminal
// yields a single-node tree.
//
// The construction takes a minimum spanning tree over the terminals' metric
// closure, expands each closure edge into a shortest path, takes a spanning
// tree of the union and finally strips non-terminal leaves.
func (g *Graph) ApproxSteinerTree(terminals []models.Coordinate) (*SteinerTree, error) {
	seen := make(map[Node]bool, len(terminals))
	var nodes []Node
	for _, c := range terminals {
		if err := g.check(c); err != nil {
			return nil, err
		}
		n := g.CoordinateToNode(c)
		if !seen[n] {
			seen[n] = true
			nodes = append(nodes, n)
		}
	}

	tree := &SteinerTree{Terminals: nodes, Nodes: append([]Node(nil), nodes...), Edges: []Edge{}}
	if len(nodes) <= 1 {
		return tree, nil
	}

	// metric closure, one BFS per terminal
	dists := make([][]int, len(nodes))
	parents := make([][]Node, len(nodes))
	for i, n := range nodes {
		dists[i], parents[i], _ = g.bfs(n, nil)
	}
	for j := 1; j < len(nodes); j++ {
		if dists[0][nodes[j]] < 0 {
			return nil, &UnreachableError{
				Origin:      g.NodeToCoordinate(nodes[0]),
				Destination: g.NodeToCoordinate(nodes[j]),
			}
		}
	}

	// Prim over the closure; ties resolved by terminal order
	inTree := make([]bool, len(nodes))
	best := make([]int, len(nodes))
	link := make([]int, len(nodes))
	for i := range best {
		best[i] = dists[0][nodes[i]]
		link[i] = 0
	}
	inTree[0] = true

	union := make(map[Edge]bool)
	for added := 1; added < len(nodes); added++ {
		next := -1
		for i := range nodes {
			if !inTree[i] && (next < 0 || best[i] < best[next]) {
				next = i
			}
		}
		inTree[next] = true

		path := g.tracePath(parents[link[next]], nodes[link[next]], nodes[next])
		for k := 1; k < len(path); k++ {
			union[newEdge(path[k-1], path[k])] = true
		}

		for i := range nodes {
			if !inTree[i] && dists[next][nodes[i]] < best[i] {
				best[i] = dists[next][nodes[i]]
				link[i] = next
			}
		}
	}

	edges := spanningForest(union)
	edges = pruneLeaves(edges, seen)

	nodeSet := make(map[Node]bool)
	for _, n := range nodes {
		nodeSet[n] = true
	}
	for _, e := range edges {
		nodeSet[e.A] = true
		nodeSet[e.B] = true
	}
	tree.Nodes = sortedNodes(nodeSet)
	tree.Edges = edges
	return tree, nil
}

// spanningForest drops cycle-closing edges from the union in sorted order
func spanningForest(union map[Edge]bool) []Edge {
	edges := make([]Edge, 0, len(union))
	for e := range union {
		edges = append(edges, e)
	}
	sortEdges(edges)

	root := make(map[Node]Node)
	var find func(Node) Node
	find = func(n Node) Node {
		r, ok := root[n]
		if !ok || r == n {
			root[n] = n
			return n
		}
		r = find(r)
		root[n] = r
		return r
	}

	kept := make([]Edge, 0, len(edges))
	for _, e := range edges {
		ra, rb := find(e.A), find(e.B)
		if ra == rb {
			continue
		}
		root[ra] = rb
		kept = append(kept, e)
	}
	return kept
}

// pruneLeaves repeatedly removes leaves that are not terminals
func pruneLeaves(edges []Edge, terminals map[Node]bool) []Edge {
	for {
		degree := make(map[Node]int)
		for _, e := range edges {
			degree[e.A]++
			degree[e.B]++
		}

		kept := edges[:0:0]
		for _, e := range edges {
			if (degree[e.A] == 1 && !terminals[e.A]) || (degree[e.B] == 1 && !terminals[e.B]) {
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == len(edges) {
			return kept
		}
		edges = kept
	}
}

// Center returns the node minimizing the greatest tree distance to any
// other tree node, found by peeling leaves; ties go to the lower node.
func (t *SteinerTree) Center() Node {
	if len(t.Edges) == 0 {
		return t.Nodes[0]
	}

	adj := make(map[Node][]Node)
	for _, e := range t.Edges {
		adj[e.A] = append(adj[e.A], e.B)
		adj[e.B] = append(adj[e.B], e.A)
	}

	degree := make(map[Node]int, len(adj))
	var layer []Node
	for n, neighbors := range adj {
		degree[n] = len(neighbors)
		if len(neighbors) == 1 {
			layer = append(layer, n)
		}
	}

	remaining := len(adj)
	for remaining > 2 {
		remaining -= len(layer)
		var next []Node
		for _, leaf := range layer {
			for _, n := range adj[leaf] {
				degree[n]--
				if degree[n] == 1 {
					next = append(next, n)
				}
			}
			degree[leaf] = 0
		}
		layer = next
	}

	center := layer[0]
	for _, n := range layer[1:] {
		if n < center {
			center = n
		}
	}
	return center
}

// Contains reports whether n is part of the tree
func (t *SteinerTree) Contains(n Node) bool {
	i := sort.Search(len(t.Nodes), func(i int) bool { return t.Nodes[i] >= n })
	return i < len(t.Nodes) && t.Nodes[i] == n
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
}

func sortedNodes(set map[Node]bool) []Node {
	nodes := make([]Node, 0, len(set))
	for n := range set {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}
