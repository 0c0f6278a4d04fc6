package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"taxi-relay/internal/config"
	"taxi-relay/internal/database"
	"taxi-relay/internal/handlers"
	"taxi-relay/internal/logger"
	"taxi-relay/internal/scenario"
	"taxi-relay/internal/storage"
)

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	db         database.DataStore
	listener   net.Listener
	addr       string
	log        *slog.Logger
}

// New creates and initializes a new server (does not start it). A nil store
// opens the one configured in cfg.Storage; the server closes it on shutdown
// either way.
func New(cfg *config.Config, store database.DataStore) (*Server, error) {
	log := logger.WithComponent("server")

	if store == nil {
		log.Info("initializing data store", "driver", cfg.Storage.Driver)
		var err error
		store, err = storage.Open(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize data store: %w", err)
		}
	}

	handler := &handlers.Handler{
		DB:       store,
		Runner:   scenario.NewRunner(cfg, store, logger.WithComponent("runner")),
		Sessions: handlers.NewMapSessionStore(logger.WithComponent("sessions")),
		Log:      logger.WithComponent("http"),
	}

	mux := setupRoutes(handler)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      loggingMiddleware(log, corsMiddleware(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		db:         store,
		addr:       cfg.Server.Addr,
		log:        log,
	}, nil
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	s.log.Info("starting server", "addr", actualAddr)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("server error", "error", err)
		}
	}()

	return actualAddr, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return s.db.Close()
}

// Handler exposes the routed handler chain, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

func setupRoutes(handler *handlers.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", handler.HandleHealthCheck)

	mux.HandleFunc("/api/v1/maps", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.HandleListMaps(w, r)
		case http.MethodPost:
			handler.HandleCreateMap(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/v1/maps/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/maps/" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		switch r.Method {
		case http.MethodGet:
			handler.HandleGetMap(w, r)
		case http.MethodDelete:
			handler.HandleDeleteMap(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	post := func(path string, h http.HandlerFunc) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			h(w, r)
		})
	}
	post("/api/v1/paths", handler.HandleShortestPath)
	post("/api/v1/transfer-points", handler.HandleTransferPoints)
	post("/api/v1/allocations", handler.HandleAllocate)
	post("/api/v1/deliveries", handler.HandleDeliver)

	mux.HandleFunc("/api/v1/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		handler.HandleListRuns(w, r)
	})

	mux.HandleFunc("/api/v1/runs/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/runs/" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		switch r.Method {
		case http.MethodGet:
			handler.HandleGetRun(w, r)
		case http.MethodDelete:
			handler.HandleDeleteRun(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	return mux
}

func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", lrw.statusCode,
			"duration", time.Since(start))
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Only allow localhost origins
		if origin == "" ||
			strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:") {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
