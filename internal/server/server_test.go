package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi-relay/internal/config"
	"taxi-relay/internal/database"
	"taxi-relay/internal/gridmap"
)

func testServer(t *testing.T) *Server {
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"

	srv, err := New(cfg, database.NewMemoryStore())
	require.NoError(t, err)
	return srv
}

func TestRoutes(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{"GET", "/api/v1/health", "", http.StatusOK},
		{"GET", "/api/v1/maps", "", http.StatusOK},
		{"PUT", "/api/v1/maps", "", http.StatusMethodNotAllowed},
		{"GET", "/api/v1/maps/", "", http.StatusNotFound},
		{"GET", "/api/v1/maps/unknown", "", http.StatusNotFound},
		{"GET", "/api/v1/paths", "", http.StatusMethodNotAllowed},
		{"POST", "/api/v1/paths", "{}", http.StatusBadRequest},
		{"GET", "/api/v1/runs", "", http.StatusOK},
		{"POST", "/api/v1/runs", "", http.StatusMethodNotAllowed},
		{"GET", "/api/v1/runs/unknown", "", http.StatusNotFound},
		{"OPTIONS", "/api/v1/deliveries", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestCORSAllowsLocalhostOnly(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("Origin", "https://example.com")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStartAndShutdown(t *testing.T) {
	srv := testServer(t)

	addr, err := srv.Start()
	require.NoError(t, err)

	body, err := json.Marshal(map[string]interface{}{
		"map":         gridmap.OpenLayout(1, 3),
		"origin":      map[string]int{"row": 0, "col": 0},
		"destination": map[string]int{"row": 0, "col": 2},
	})
	require.NoError(t, err)

	resp, err := http.Post(fmt.Sprintf("http://%s/api/v1/paths", addr), "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var path struct {
		Cost int `json:"cost"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&path))
	assert.Equal(t, 2, path.Cost)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}
