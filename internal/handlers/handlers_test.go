package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi-relay/internal/config"
	"taxi-relay/internal/database"
	"taxi-relay/internal/gridmap"
	"taxi-relay/internal/logger"
	"taxi-relay/internal/scenario"
)

func setupTestHandler(t *testing.T) *Handler {
	db := database.NewMemoryStore()
	t.Cleanup(func() { db.Close() })

	return &Handler{
		DB:       db,
		Runner:   scenario.NewRunner(config.Default(), db, logger.Discard()),
		Sessions: NewMapSessionStore(logger.Discard()),
		Log:      logger.Discard(),
	}
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

// corridor has one short ride next to each agent
var corridor = map[string]interface{}{
	"map": gridmap.OpenLayout(1, 6),
	"agents": []map[string]interface{}{
		{"location": map[string]int{"row": 0, "col": 0}, "fuel": 20},
		{"location": map[string]int{"row": 0, "col": 5}, "fuel": 20},
	},
	"passengers": []map[string]interface{}{
		{"pickup": map[string]int{"row": 0, "col": 1}, "destination": map[string]int{"row": 0, "col": 2}},
		{"pickup": map[string]int{"row": 0, "col": 4}, "destination": map[string]int{"row": 0, "col": 3}},
	},
}

func TestHandleHealthCheck(t *testing.T) {
	h := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h.HandleHealthCheck(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, "connected", response["database"])
}

func TestMapSessionLifecycle(t *testing.T) {
	h := setupTestHandler(t)

	req := httptest.NewRequest("POST", "/api/v1/maps", jsonBody(t, CreateMapRequest{Map: gridmap.OpenLayout(3, 4)}))
	w := httptest.NewRecorder()
	h.HandleCreateMap(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created MapResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 3, created.Rows)
	assert.Equal(t, 4, created.Cols)

	req = httptest.NewRequest("GET", "/api/v1/maps/"+created.ID, nil)
	w = httptest.NewRecorder()
	h.HandleGetMap(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/api/v1/maps", nil)
	w = httptest.NewRecorder()
	h.HandleListMaps(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.ID)

	req = httptest.NewRequest("DELETE", "/api/v1/maps/"+created.ID, nil)
	w = httptest.NewRecorder()
	h.HandleDeleteMap(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest("GET", "/api/v1/maps/"+created.ID, nil)
	w = httptest.NewRecorder()
	h.HandleGetMap(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).Error.Code)
}

func TestMapSessionStoreGet(t *testing.T) {
	store := NewMapSessionStore(logger.Discard())

	session, err := store.Create(gridmap.OpenLayout(2, 2))
	require.NoError(t, err)

	got := store.Get(session.ID)
	require.NotNil(t, got)
	assert.Equal(t, session.Graph.ID(), got.Graph.ID())
	assert.Nil(t, store.Get("missing"))

	assert.True(t, store.Delete(session.ID))
	assert.Nil(t, store.Get(session.ID))
}

func TestHandleCreateMapInvalid(t *testing.T) {
	h := setupTestHandler(t)

	req := httptest.NewRequest("POST", "/api/v1/maps", jsonBody(t, CreateMapRequest{Map: []string{"+-+"}}))
	w := httptest.NewRecorder()
	h.HandleCreateMap(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Error.Code)
}

func TestHandleShortestPath(t *testing.T) {
	h := setupTestHandler(t)

	req := httptest.NewRequest("POST", "/api/v1/paths", jsonBody(t, map[string]interface{}{
		"map":         gridmap.OpenLayout(2, 2),
		"origin":      map[string]int{"row": 0, "col": 0},
		"destination": map[string]int{"row": 1, "col": 1},
	}))
	w := httptest.NewRecorder()
	h.HandleShortestPath(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var response PathResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, 2, response.Cost)
	assert.Equal(t, []string{"east", "south"}, response.Actions)
	assert.Len(t, response.Coordinates, 2)
}

func TestHandleShortestPathErrors(t *testing.T) {
	h := setupTestHandler(t)
	walled := []string{"+---+", "| | |", "+---+"}

	tests := []struct {
		name   string
		body   interface{}
		status int
		code   string
	}{
		{"bad json", "not an object", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"no map", map[string]interface{}{}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown session", map[string]interface{}{"session_id": "missing"}, http.StatusNotFound, "NOT_FOUND"},
		{"unreachable", map[string]interface{}{
			"map":         walled,
			"origin":      map[string]int{"row": 0, "col": 0},
			"destination": map[string]int{"row": 0, "col": 1},
		}, http.StatusUnprocessableEntity, "UNREACHABLE"},
		{"off the map", map[string]interface{}{
			"map":         walled,
			"origin":      map[string]int{"row": 0, "col": 0},
			"destination": map[string]int{"row": 5, "col": 1},
		}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/paths", jsonBody(t, tt.body))
			w := httptest.NewRecorder()
			h.HandleShortestPath(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Error.Code)
		})
	}
}

func TestHandleShortestPathWithSession(t *testing.T) {
	h := setupTestHandler(t)
	session, err := h.Sessions.Create(gridmap.OpenLayout(1, 5))
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/paths", jsonBody(t, map[string]interface{}{
		"session_id":  session.ID,
		"origin":      map[string]int{"row": 0, "col": 4},
		"destination": map[string]int{"row": 0, "col": 0},
	}))
	w := httptest.NewRecorder()
	h.HandleShortestPath(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var response PathResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, 4, response.Cost)
	assert.Equal(t, session.Graph.ID(), response.MapID)
}

func TestHandleTransferPoints(t *testing.T) {
	h := setupTestHandler(t)

	body := map[string]interface{}{
		"map":         gridmap.OpenLayout(5, 10),
		"from":        map[string]int{"row": 0, "col": 1},
		"from_fuel":   9,
		"to":          map[string]int{"row": 4, "col": 5},
		"destination": map[string]int{"row": 4, "col": 9},
	}
	req := httptest.NewRequest("POST", "/api/v1/transfer-points", jsonBody(t, body))
	w := httptest.NewRecorder()
	h.HandleTransferPoints(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Points map[string]json.RawMessage `json:"points"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Len(t, response.Points, 3)

	body["strategy"] = "h9"
	req = httptest.NewRequest("POST", "/api/v1/transfer-points", jsonBody(t, body))
	w = httptest.NewRecorder()
	h.HandleTransferPoints(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAllocate(t *testing.T) {
	h := setupTestHandler(t)

	req := httptest.NewRequest("POST", "/api/v1/allocations", jsonBody(t, corridor))
	w := httptest.NewRecorder()
	h.HandleAllocate(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Matrix struct {
			Costs [][]float64 `json:"costs"`
		} `json:"matrix"`
		Comparison struct {
			Optimal struct {
				Assignments map[string]int `json:"assignments"`
			} `json:"optimal"`
			AuctionCost float64 `json:"auction_cost"`
			OptimalCost float64 `json:"optimal_cost"`
		} `json:"comparison"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, [][]float64{{4, 7}, {7, 4}}, response.Matrix.Costs)
	assert.Equal(t, map[string]int{"0": 0, "1": 1}, response.Comparison.Optimal.Assignments)
	assert.Equal(t, 8.0, response.Comparison.OptimalCost)
	assert.Equal(t, 8.0, response.Comparison.AuctionCost)
}

func TestHandleAllocateMarksInfeasible(t *testing.T) {
	h := setupTestHandler(t)

	req := httptest.NewRequest("POST", "/api/v1/allocations", jsonBody(t, map[string]interface{}{
		"map":        gridmap.OpenLayout(1, 6),
		"agents":     []map[string]interface{}{{"location": map[string]int{"row": 0, "col": 0}, "fuel": 2}},
		"passengers": []map[string]interface{}{{"pickup": map[string]int{"row": 0, "col": 4}, "destination": map[string]int{"row": 0, "col": 5}}},
	}))
	w := httptest.NewRecorder()
	h.HandleAllocate(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var response AllocationResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, [][]float64{{-1}}, response.Matrix.Costs)
	assert.Empty(t, response.Comparison.Optimal.Assignments)
}

func TestDeliveryAndRunHistory(t *testing.T) {
	h := setupTestHandler(t)

	body := map[string]interface{}{"mode": "solo", "notes": "corridor"}
	for k, v := range corridor {
		body[k] = v
	}
	req := httptest.NewRequest("POST", "/api/v1/deliveries", jsonBody(t, body))
	w := httptest.NewRecorder()
	h.HandleDeliver(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var out scenario.Outcome
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	require.NotNil(t, out.Run)
	assert.Equal(t, 2, out.Run.Delivered)
	assert.Len(t, out.Reports, 2)

	req = httptest.NewRequest("GET", "/api/v1/runs", nil)
	w = httptest.NewRecorder()
	h.HandleListRuns(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var list RunListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, out.Run.ID, list.Runs[0].ID)

	req = httptest.NewRequest("GET", "/api/v1/runs/"+out.Run.ID, nil)
	w = httptest.NewRecorder()
	h.HandleGetRun(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var detail RunDetailResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&detail))
	assert.Equal(t, "corridor", detail.Notes)
	assert.Len(t, detail.Assignments, 4)

	req = httptest.NewRequest("DELETE", "/api/v1/runs/"+out.Run.ID, nil)
	w = httptest.NewRecorder()
	h.HandleDeleteRun(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest("DELETE", "/api/v1/runs/"+out.Run.ID, nil)
	w = httptest.NewRecorder()
	h.HandleDeleteRun(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleDeliverValidation(t *testing.T) {
	h := setupTestHandler(t)

	tests := []struct {
		name  string
		extra map[string]interface{}
	}{
		{"unknown mode", map[string]interface{}{"mode": "teleport"}},
		{"unknown strategy", map[string]interface{}{"strategy": "h7"}},
		{"unknown passenger", map[string]interface{}{"serve": []int{5}}},
		{"no agents", map[string]interface{}{"agents": []interface{}{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := map[string]interface{}{}
			for k, v := range corridor {
				body[k] = v
			}
			for k, v := range tt.extra {
				body[k] = v
			}

			req := httptest.NewRequest("POST", "/api/v1/deliveries", jsonBody(t, body))
			w := httptest.NewRecorder()
			h.HandleDeliver(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Error.Code)
		})
	}
}

func TestHandleGetRunNotFound(t *testing.T) {
	h := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/api/v1/runs/nope", nil)
	w := httptest.NewRecorder()
	h.HandleGetRun(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
