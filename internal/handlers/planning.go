package handlers

import (
	"net/http"

	"github.com/samber/lo"

	"taxi-relay/internal/allocation"
	"taxi-relay/internal/coordinator"
	"taxi-relay/internal/models"
	"taxi-relay/internal/scenario"
	"taxi-relay/internal/sim"
)

// PathRequest asks for a shortest path between two cells
type PathRequest struct {
	MapRef
	Origin      models.Coordinate `json:"origin"`
	Destination models.Coordinate `json:"destination"`
}

// PathResponse is a shortest path and its cost
type PathResponse struct {
	MapID       string              `json:"map_id"`
	Cost        int                 `json:"cost"`
	Coordinates []models.Coordinate `json:"coordinates"`
	Actions     []string            `json:"actions"`
}

// HandleShortestPath handles POST /api/v1/paths
func (h *Handler) HandleShortestPath(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if !h.decode(w, r, &req) {
		return
	}
	g, ok := h.resolveGraph(w, req.MapRef)
	if !ok {
		return
	}

	coords, actions, err := g.ShortestPath(req.Origin, req.Destination)
	if err != nil {
		h.handlePlanningError(w, err)
		return
	}

	// answered through the cache so later cost queries on this map are warm
	cost, err := h.Runner.Calculator(g).GetPathCost(r.Context(), req.Origin, req.Destination)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, PathResponse{
		MapID:       g.ID(),
		Cost:        cost.Cost,
		Coordinates: coords,
		Actions:     lo.Map(actions, func(a models.Action, _ int) string { return a.String() }),
	})
}

// TransferPointRequest asks where a holder should hand a passenger over
type TransferPointRequest struct {
	MapRef
	From        models.Coordinate `json:"from"`
	FromFuel    int               `json:"from_fuel"`
	To          models.Coordinate `json:"to"`
	Destination models.Coordinate `json:"destination"`
	// Strategy restricts the answer to one strategy; empty runs them all.
	Strategy string `json:"strategy,omitempty"`
}

// HandleTransferPoints handles POST /api/v1/transfer-points
func (h *Handler) HandleTransferPoints(w http.ResponseWriter, r *http.Request) {
	var req TransferPointRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Strategy != "" {
		if _, err := coordinator.StrategyByName(req.Strategy); err != nil {
			h.handleValidationError(w, err.Error())
			return
		}
	}
	g, ok := h.resolveGraph(w, req.MapRef)
	if !ok {
		return
	}
	for _, c := range []models.Coordinate{req.From, req.To, req.Destination} {
		if !g.Contains(c) {
			h.handleValidationError(w, "Coordinate "+c.String()+" is outside the map")
			return
		}
	}

	points, err := scenario.TransferPoints(g, coordinator.TransferRequest{
		From:        req.From,
		FromFuel:    req.FromFuel,
		To:          req.To,
		Destination: req.Destination,
	}, req.Strategy)
	if err != nil {
		h.handlePlanningError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"map_id": g.ID(), "points": points})
}

// WorldRequest carries a map with its agents and passengers
type WorldRequest struct {
	MapRef
	Agents     []sim.AgentSpec     `json:"agents"`
	Passengers []sim.PassengerSpec `json:"passengers"`
	Capacity   int                 `json:"capacity,omitempty"`
	Collisions *bool               `json:"collisions,omitempty"`
}

// buildScenario validates the world, answering the client itself when it is
// unusable
func (h *Handler) buildScenario(w http.ResponseWriter, req WorldRequest) (*scenario.Scenario, bool) {
	g, ok := h.resolveGraph(w, req.MapRef)
	if !ok {
		return nil, false
	}

	sc := &scenario.Scenario{
		Map:        g.Description(),
		Agents:     req.Agents,
		Passengers: req.Passengers,
		Capacity:   req.Capacity,
		Collisions: req.Collisions,
	}
	if err := sc.Validate(); err != nil {
		h.handlePlanningError(w, err)
		return nil, false
	}
	return sc, true
}

// AllocationRequest asks for an agent to passenger assignment
type AllocationRequest struct {
	WorldRequest
	// Epsilon overrides the configured auction increment.
	Epsilon *float64 `json:"epsilon,omitempty"`
}

// AllocationResponse shows both solvers on the same cost matrix
type AllocationResponse struct {
	Matrix     *allocation.CostMatrix `json:"matrix"`
	Comparison *allocation.Comparison `json:"comparison"`
}

// HandleAllocate handles POST /api/v1/allocations
func (h *Handler) HandleAllocate(w http.ResponseWriter, r *http.Request) {
	var req AllocationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Epsilon != nil && *req.Epsilon < 0 {
		h.handleValidationError(w, "epsilon must be non-negative")
		return
	}
	sc, ok := h.buildScenario(w, req.WorldRequest)
	if !ok {
		return
	}

	epsilon := -1.0
	if req.Epsilon != nil {
		epsilon = *req.Epsilon
	}
	m, cmp, err := h.Runner.Allocate(r.Context(), sc, epsilon)
	if err != nil {
		h.handlePlanningError(w, err)
		return
	}

	// JSON cannot carry +Inf
	for _, row := range m.Costs {
		for j, cost := range row {
			if cost == allocation.Infeasible {
				row[j] = -1
			}
		}
	}
	h.writeJSON(w, http.StatusOK, AllocationResponse{Matrix: m, Comparison: cmp})
}

// DeliveryRequest runs a delivery on a fresh simulation of the world
type DeliveryRequest struct {
	WorldRequest
	Mode     string `json:"mode,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	// Serve restricts the run to these passengers.
	Serve []models.PassengerID `json:"serve,omitempty"`
	Notes string               `json:"notes,omitempty"`
}

// HandleDeliver handles POST /api/v1/deliveries
func (h *Handler) HandleDeliver(w http.ResponseWriter, r *http.Request) {
	var req DeliveryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Mode != "" && !lo.Contains(scenario.Modes(), req.Mode) {
		h.handleValidationError(w, "Unknown mode "+req.Mode)
		return
	}
	if req.Strategy != "" {
		if _, err := coordinator.StrategyByName(req.Strategy); err != nil {
			h.handleValidationError(w, err.Error())
			return
		}
	}
	sc, ok := h.buildScenario(w, req.WorldRequest)
	if !ok {
		return
	}

	out, err := h.Runner.Deliver(r.Context(), sc, scenario.Request{
		Mode:       req.Mode,
		Strategy:   req.Strategy,
		Passengers: req.Serve,
		Notes:      req.Notes,
	})
	if err != nil {
		h.handlePlanningError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

