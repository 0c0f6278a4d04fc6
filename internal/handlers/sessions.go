package handlers

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"taxi-relay/internal/gridmap"
	"taxi-relay/internal/logger"
)

// MapSession is a map registered once and referenced by id afterwards
type MapSession struct {
	ID        string
	Graph     *gridmap.Graph
	CreatedAt time.Time
}

// MapSessionStore keeps parsed maps in memory
type MapSessionStore struct {
	sessions map[string]*MapSession
	mu       sync.RWMutex
	log      *slog.Logger
}

// NewMapSessionStore creates an empty session store
func NewMapSessionStore(log *slog.Logger) *MapSessionStore {
	return &MapSessionStore{
		sessions: make(map[string]*MapSession),
		log:      logger.Or(log, "sessions"),
	}
}

// Create parses desc and stores the graph under a new id
func (s *MapSessionStore) Create(desc []string) (*MapSession, error) {
	g, err := gridmap.Build(desc)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session := &MapSession{ID: uuid.NewString(), Graph: g, CreatedAt: time.Now()}
	s.sessions[session.ID] = session
	s.log.Info("created map session", "id", session.ID, "map_id", g.ID(), "rows", g.Rows(), "cols", g.Cols())
	return session, nil
}

// Get returns the session with id, or nil when there is none
func (s *MapSessionStore) Get(id string) *MapSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// List returns the sessions, oldest first
func (s *MapSessionStore) List() []*MapSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*MapSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		list = append(list, session)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list
}

// Delete removes a session and reports whether it existed
func (s *MapSessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	s.log.Info("deleted map session", "id", id)
	return true
}

// MapRef names a map inline or by session id
type MapRef struct {
	SessionID string   `json:"session_id,omitempty"`
	Map       []string `json:"map,omitempty"`
}

// CreateMapRequest represents the request to register a map
type CreateMapRequest struct {
	Map []string `json:"map"`
}

// MapResponse describes a registered map
type MapResponse struct {
	ID        string    `json:"id"`
	MapID     string    `json:"map_id"`
	Rows      int       `json:"rows"`
	Cols      int       `json:"cols"`
	Map       []string  `json:"map"`
	CreatedAt time.Time `json:"created_at"`
}

func newMapResponse(s *MapSession) MapResponse {
	return MapResponse{
		ID:        s.ID,
		MapID:     s.Graph.ID(),
		Rows:      s.Graph.Rows(),
		Cols:      s.Graph.Cols(),
		Map:       s.Graph.Description(),
		CreatedAt: s.CreatedAt,
	}
}

// HandleCreateMap handles POST /api/v1/maps
func (h *Handler) HandleCreateMap(w http.ResponseWriter, r *http.Request) {
	var req CreateMapRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.Sessions.Create(req.Map)
	if err != nil {
		h.handlePlanningError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newMapResponse(session))
}

// HandleListMaps handles GET /api/v1/maps
func (h *Handler) HandleListMaps(w http.ResponseWriter, r *http.Request) {
	sessions := h.Sessions.List()
	maps := make([]MapResponse, len(sessions))
	for i, s := range sessions {
		maps[i] = newMapResponse(s)
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"maps": maps, "total": len(maps)})
}

// HandleGetMap handles GET /api/v1/maps/{id}
func (h *Handler) HandleGetMap(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/maps/")
	session := h.Sessions.Get(id)
	if session == nil {
		h.handleNotFound(w, "Map session not found")
		return
	}
	h.writeJSON(w, http.StatusOK, newMapResponse(session))
}

// HandleDeleteMap handles DELETE /api/v1/maps/{id}
func (h *Handler) HandleDeleteMap(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/maps/")
	if !h.Sessions.Delete(id) {
		h.handleNotFound(w, "Map session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveGraph returns the graph a request refers to, answering the
// client itself when it cannot
func (h *Handler) resolveGraph(w http.ResponseWriter, ref MapRef) (*gridmap.Graph, bool) {
	if ref.SessionID != "" {
		session := h.Sessions.Get(ref.SessionID)
		if session == nil {
			h.handleNotFound(w, "Map session not found")
			return nil, false
		}
		return session.Graph, true
	}
	if len(ref.Map) == 0 {
		h.handleValidationError(w, "Provide a map or a session_id")
		return nil, false
	}

	g, err := gridmap.Build(ref.Map)
	if err != nil {
		h.handlePlanningError(w, err)
		return nil, false
	}
	return g, true
}
