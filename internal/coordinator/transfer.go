package coordinator

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"taxi-relay/internal/gridmap"
	"taxi-relay/internal/models"
)

// TransferRequest describes a hand-off between the agent holding a passenger
// and the agent that continues the delivery
type TransferRequest struct {
	From        models.Coordinate
	FromFuel    int
	To          models.Coordinate
	Destination models.Coordinate
}

// TransferPoint is a candidate hand-off cell
type TransferPoint struct {
	Point models.Coordinate `json:"point"`
	// FromCost is the number of moves the holder needs to reach Point.
	FromCost int `json:"from_cost"`
	// ToCost is the receiver's route cost to Point and then to the
	// destination, or -1 when that route does not exist.
	ToCost int `json:"to_cost"`
	// OffRoute is how far the holder falls short of the ideal candidate.
	OffRoute int `json:"off_route"`
}

// TransferPointStrategy picks a hand-off cell
type TransferPointStrategy interface {
	Name() string
	FindTransferPoint(g *gridmap.Graph, req TransferRequest) (*TransferPoint, error)
}

// Strategy names
const (
	StrategyRouteAligned = "route-aligned"
	StrategyFuelHorizon  = "fuel-horizon"
	StrategyExhaustive   = "exhaustive"

	// StrategyTreeCenter marks hand-offs at a Steiner tree center
	StrategyTreeCenter = "tree-center"
)

// Strategies lists the built-in strategies
func Strategies() []TransferPointStrategy {
	return []TransferPointStrategy{RouteAligned{}, FuelHorizon{}, Exhaustive{}}
}

// StrategyByName resolves a strategy name, accepting the short aliases
// h1, h2 and optimal
func StrategyByName(name string) (TransferPointStrategy, error) {
	switch name {
	case StrategyRouteAligned, "h1":
		return RouteAligned{}, nil
	case StrategyFuelHorizon, "h2":
		return FuelHorizon{}, nil
	case StrategyExhaustive, "optimal":
		return Exhaustive{}, nil
	default:
		return nil, fmt.Errorf("unknown transfer strategy %q", name)
	}
}

// finish fills in the receiver's cost for a chosen point
func finish(g *gridmap.Graph, req TransferRequest, point models.Coordinate, fromCost, offRoute int) *TransferPoint {
	tp := &TransferPoint{Point: point, FromCost: fromCost, ToCost: -1, OffRoute: offRoute}
	approach, err := g.PathCost(req.To, point)
	if err != nil {
		return tp
	}
	onward, err := g.PathCost(point, req.Destination)
	if err != nil {
		return tp
	}
	tp.ToCost = approach + onward
	return tp
}

// RouteAligned searches the receiver's own route to the destination. Each
// cell on it, starting with the receiver's current cell, is a candidate. A
// candidate the holder cannot reach on fuel-1 is replaced by the furthest
// cell the holder can reach on its way there, and scored by the shortfall.
// The lowest shortfall wins, earlier candidates first. The result is an
// upper bound and is not guaranteed optimal for the receiver.
type RouteAligned struct{}

func (RouteAligned) Name() string { return StrategyRouteAligned }

func (RouteAligned) FindTransferPoint(g *gridmap.Graph, req TransferRequest) (*TransferPoint, error) {
	if req.FromFuel <= 1 {
		return finish(g, req, req.From, 0, 0), nil
	}
	budget := req.FromFuel - 1

	route, _, err := g.ShortestPath(req.To, req.Destination)
	if err != nil {
		return nil, err
	}
	candidates := append([]models.Coordinate{req.To}, route...)

	var best *TransferPoint
	for _, candidate := range candidates {
		path, _, err := g.ShortestPath(req.From, candidate)
		if err != nil {
			continue
		}

		point, cost, offRoute := candidate, len(path), 0
		if cost > budget {
			point, cost, offRoute = path[budget-1], budget, len(path)-budget
		}
		if best == nil || offRoute < best.OffRoute {
			best = &TransferPoint{Point: point, FromCost: cost, OffRoute: offRoute}
		}
		if offRoute == 0 {
			break
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: holder at %s reaches nothing on the route from %s", ErrNoTransferPoint, req.From, req.To)
	}
	return finish(g, req, best.Point, best.FromCost, best.OffRoute), nil
}

// FuelHorizon walks the holder toward the destination and stops two moves
// short of its fuel. The receiver is not considered.
type FuelHorizon struct{}

func (FuelHorizon) Name() string { return StrategyFuelHorizon }

func (FuelHorizon) FindTransferPoint(g *gridmap.Graph, req TransferRequest) (*TransferPoint, error) {
	path, _, err := g.ShortestPath(req.From, req.Destination)
	if err != nil {
		return nil, err
	}

	index := req.FromFuel - 2
	if len(path) == 0 || index < 0 {
		return finish(g, req, req.From, 0, 0), nil
	}
	if index >= len(path) {
		index = len(path) - 1
	}
	return finish(g, req, path[index], index+1, 0), nil
}

// Exhaustive scores every cell the holder can reach on fuel-1 by the
// receiver's cost to visit it and then reach the destination. Ties go to
// the cell closer to the holder.
type Exhaustive struct{}

func (Exhaustive) Name() string { return StrategyExhaustive }

func (Exhaustive) FindTransferPoint(g *gridmap.Graph, req TransferRequest) (*TransferPoint, error) {
	radius := req.FromFuel - 1
	if radius < 0 {
		radius = 0
	}

	candidates, err := g.Reachable(req.From, radius)
	if err != nil {
		return nil, err
	}
	fromField, err := g.Distances(req.From)
	if err != nil {
		return nil, err
	}
	toField, err := g.Distances(req.To)
	if err != nil {
		return nil, err
	}
	destField, err := g.Distances(req.Destination)
	if err != nil {
		return nil, err
	}

	var best *TransferPoint
	for _, candidate := range candidates {
		approach, ok := toField.To(candidate)
		if !ok {
			continue
		}
		onward, ok := destField.To(candidate)
		if !ok {
			continue
		}
		if best == nil || approach+onward < best.ToCost {
			fromCost, _ := fromField.To(candidate)
			best = &TransferPoint{Point: candidate, FromCost: fromCost, ToCost: approach + onward}
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: no cell within %d moves of %s connects %s to %s",
			ErrNoTransferPoint, radius, req.From, req.To, req.Destination)
	}
	return best, nil
}

// FindTransferPoint runs strategy for a hand-off from the agent holding the
// passenger to another agent
func (c *Coordinator) FindTransferPoint(pid models.PassengerID, from, to models.AgentID, strategy TransferPointStrategy) (*TransferPoint, error) {
	p, err := c.passenger(pid)
	if err != nil {
		return nil, err
	}
	holder, err := c.Agent(from)
	if err != nil {
		return nil, err
	}
	receiver, err := c.Agent(to)
	if err != nil {
		return nil, err
	}

	tp, err := strategy.FindTransferPoint(c.graph, TransferRequest{
		From:        holder.PlanTail(),
		FromFuel:    holder.Fuel - c.pendingMoves(holder),
		To:          receiver.PlanTail(),
		Destination: p.Destination,
	})
	if err != nil {
		return nil, err
	}

	c.log.Debug("transfer point found",
		"strategy", strategy.Name(),
		"passenger", pid,
		"from", from,
		"to", to,
		"point", tp.Point.String(),
		"from_cost", tp.FromCost,
		"to_cost", tp.ToCost)
	return tp, nil
}

// pendingMoves counts the queued steps that consume fuel
func (c *Coordinator) pendingMoves(agent *models.Agent) int {
	n := 0
	for _, step := range agent.Queue {
		if step.Action.IsMove() {
			n++
		}
	}
	return n
}

// TransferPassenger hands a passenger from one agent to another at point.
// The holder drives to point and drops the passenger while the receiver
// drives there; both run to completion. The receiver then picks the
// passenger up, which also runs to completion.
//
// With collisions on, the receiver waits on a cell next to point that the
// holder does not pass, and the holder steps off point after the drop-off
// so the receiver can move in.
func (c *Coordinator) TransferPassenger(ctx context.Context, pid models.PassengerID, from, to models.AgentID, point models.Coordinate) error {
	p, err := c.passenger(pid)
	if err != nil {
		return err
	}
	holder, err := c.Agent(from)
	if err != nil {
		return err
	}
	receiver, err := c.Agent(to)
	if err != nil {
		return err
	}
	if p.Holder != from && holder.Passenger != pid {
		return fmt.Errorf("failed to transfer passenger %d: %w: agent %d does not carry it", pid, ErrNoPassenger, from)
	}

	meet := point
	var approach *models.Coordinate
	if c.collisions {
		route, err := c.planner.Route(holder.PlanTail(), point)
		if err != nil {
			return fmt.Errorf("failed to route agent %d: %w", from, err)
		}
		passed := map[models.Coordinate]bool{holder.PlanTail(): true}
		for _, step := range route {
			passed[step.Coordinate] = true
		}
		switch {
		case len(route) >= 2:
			approach = &route[len(route)-2].Coordinate
		case len(route) == 1:
			tail := holder.PlanTail()
			approach = &tail
		}
		meet = c.waitingCell(receiver, point, passed)
	}

	if err := c.SendToDropoff(from, &point); err != nil {
		return err
	}
	if _, err := c.planner.AppendRoute(receiver, meet, nil); err != nil {
		return err
	}
	if _, err := c.ExecuteAll(ctx); err != nil {
		return &DeliveryError{Passenger: pid, Stage: p.Stage, Err: err}
	}

	if p.Stage == models.StageDelivered {
		c.log.Info("passenger delivered at hand-off point", "passenger", pid, "by", from)
		return nil
	}
	if p.Stage != models.StageTransferred {
		return &DeliveryError{Passenger: pid, Stage: p.Stage,
			Err: fmt.Errorf("%w: passenger not left at %s", ErrHandoffFailed, point)}
	}

	if c.collisions && holder.Location == point && holder.Fuel > 0 {
		onward := map[models.Coordinate]bool{}
		if cells, _, err := c.graph.ShortestPath(point, p.Destination); err == nil {
			for _, cell := range cells {
				onward[cell] = true
			}
		}
		if aside, ok := c.freeNeighbor(holder, onward, approach); ok {
			if _, err := c.planner.AppendRoute(holder, aside, nil); err != nil {
				return err
			}
			if _, err := c.ExecuteAll(ctx); err != nil {
				return &DeliveryError{Passenger: pid, Stage: p.Stage, Err: err}
			}
		}
	}

	if err := c.SendToPickup(to, pid); err != nil {
		return err
	}
	if _, err := c.ExecuteAll(ctx); err != nil {
		return &DeliveryError{Passenger: pid, Stage: p.Stage, Err: err}
	}
	if p.Holder != to {
		return &DeliveryError{Passenger: pid, Stage: p.Stage,
			Err: fmt.Errorf("%w: agent %d did not pick up at %s", ErrHandoffFailed, to, p.Pickup)}
	}

	c.log.Info("passenger transferred", "passenger", pid, "from", from, "to", to, "point", point.String())
	return nil
}

// waitingCell picks the neighbor of point the receiver reaches soonest,
// skipping cells the holder passes on its way in. It falls back to point.
func (c *Coordinator) waitingCell(receiver *models.Agent, point models.Coordinate, passed map[models.Coordinate]bool) models.Coordinate {
	field, err := c.graph.Distances(receiver.PlanTail())
	if err != nil {
		return point
	}

	best, bestCost := point, -1
	for _, n := range c.graph.Neighbors(c.graph.CoordinateToNode(point)) {
		cell := c.graph.NodeToCoordinate(n)
		if passed[cell] {
			continue
		}
		cost, ok := field.To(cell)
		if !ok {
			continue
		}
		if bestCost < 0 || cost < bestCost {
			best, bestCost = cell, cost
		}
	}
	return best
}

// freeNeighbor picks a cell next to agent that no other agent stands on,
// trying prefer first and avoiding the given cells when it can
func (c *Coordinator) freeNeighbor(agent *models.Agent, avoid map[models.Coordinate]bool, prefer *models.Coordinate) (models.Coordinate, bool) {
	var candidates []models.Coordinate
	if prefer != nil {
		candidates = append(candidates, *prefer)
	}
	for _, n := range c.graph.Neighbors(c.graph.CoordinateToNode(agent.Location)) {
		candidates = append(candidates, c.graph.NodeToCoordinate(n))
	}

	free := lo.Filter(candidates, func(cell models.Coordinate, _ int) bool {
		if !c.graph.HasEdge(agent.Location, cell) {
			return false
		}
		return !lo.ContainsBy(c.agents, func(other *models.Agent) bool {
			return other.ID != agent.ID && other.Location == cell
		})
	})
	if len(free) == 0 {
		return models.Coordinate{}, false
	}
	if cell, ok := lo.Find(free, func(cell models.Coordinate) bool { return !avoid[cell] }); ok {
		return cell, true
	}
	return free[0], true
}
