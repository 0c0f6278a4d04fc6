package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"taxi-relay/internal/coordinator"
	"taxi-relay/internal/database"
	"taxi-relay/internal/gridmap"
	"taxi-relay/internal/scenario"
)

// Version is reported by the health check
const Version = "1.0.0"

// Handler provides common handler utilities and dependencies
type Handler struct {
	DB       database.DataStore
	Runner   *scenario.Runner
	Sessions *MapSessionStore
	Log      *slog.Logger
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// handleNotFound handles 404 errors
func (h *Handler) handleNotFound(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// handleValidationError handles 400 errors
func (h *Handler) handleValidationError(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// handleInternalError handles 500 errors
func (h *Handler) handleInternalError(w http.ResponseWriter, err error) {
	h.Log.Error("internal error", "error", err)
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
}

// handlePlanningError maps planning failures to status codes
func (h *Handler) handlePlanningError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gridmap.ErrInvalidMap), errors.Is(err, scenario.ErrInvalidScenario):
		h.handleValidationError(w, err.Error())
	case errors.Is(err, coordinator.ErrUnknownAgent), errors.Is(err, coordinator.ErrUnknownPassenger):
		h.handleValidationError(w, err.Error())
	case errors.Is(err, gridmap.ErrUnreachable):
		h.writeError(w, http.StatusUnprocessableEntity, "UNREACHABLE", err.Error(), nil)
	case errors.Is(err, coordinator.ErrNoTransferPoint):
		h.writeError(w, http.StatusUnprocessableEntity, "NO_TRANSFER_POINT", err.Error(), nil)
	default:
		var oob *gridmap.OutOfBoundsError
		if errors.As(err, &oob) {
			h.handleValidationError(w, err.Error())
			return
		}
		h.handleInternalError(w, err)
	}
}

// decode reads a JSON body, answering 400 itself on failure
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.Log.Debug("invalid request body", "path", r.URL.Path, "error", err)
		h.handleValidationError(w, "Invalid request body")
		return false
	}
	return true
}

// checkNotFound checks if an error is a not found error
func (h *Handler) checkNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "connected"

	if err := h.DB.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		dbStatus = "error"
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"version":  Version,
		"database": dbStatus,
	})
}
