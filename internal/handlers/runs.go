package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"taxi-relay/internal/models"
)

// RunListResponse represents the list response
type RunListResponse struct {
	Runs   []models.Run `json:"runs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// RunDetailResponse is a run with its assignments
type RunDetailResponse struct {
	models.Run
	Assignments []models.RunAssignment `json:"assignments"`
}

// HandleListRuns handles GET /api/v1/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	runs, total, err := h.DB.Runs().List(r.Context(), limit, offset)
	if err != nil {
		h.Log.Error("failed to list runs", "limit", limit, "offset", offset, "error", err)
		h.handleInternalError(w, err)
		return
	}
	if runs == nil {
		runs = []models.Run{}
	}

	h.writeJSON(w, http.StatusOK, RunListResponse{
		Runs:   runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// HandleGetRun handles GET /api/v1/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")

	run, assignments, err := h.DB.Runs().GetByID(r.Context(), id)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}
	if run == nil {
		h.handleNotFound(w, "Run not found")
		return
	}
	if assignments == nil {
		assignments = []models.RunAssignment{}
	}

	h.writeJSON(w, http.StatusOK, RunDetailResponse{Run: *run, Assignments: assignments})
}

// HandleDeleteRun handles DELETE /api/v1/runs/{id}
func (h *Handler) HandleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")

	if err := h.DB.Runs().Delete(r.Context(), id); err != nil {
		if h.checkNotFound(err) {
			h.handleNotFound(w, "Run not found")
			return
		}
		h.handleInternalError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
