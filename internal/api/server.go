// Package api exposes the workflow engine over HTTP: a REST surface to
// launch and inspect runs, and a websocket endpoint that streams a run's
// events as they're emitted.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/nodeforge/flowengine/internal/config"
	"github.com/nodeforge/flowengine/internal/engine"
	"github.com/nodeforge/flowengine/internal/graph"
	"github.com/nodeforge/flowengine/internal/state"
)

// RunStore is the subset of archive.Archive the API needs to look up
// past and in-progress runs.
type RunStore interface {
	Load(ctx context.Context, executionID string) (state.Snapshot, error)
}

// EngineFactory builds a fresh Engine per run request, so each run gets
// its own State Manager and Execution Queue.
type EngineFactory func(opts ...engine.Option) *engine.Engine

// Server is the HTTP surface over the workflow engine.
type Server struct {
	router  chi.Router
	store   RunStore
	newEng  EngineFactory
	log     zerolog.Logger
	hub     *eventHub
	running sync.Map // executionID -> *engine.Engine
}

// NewServer builds a Server and wires its routes.
func NewServer(store RunStore, newEng EngineFactory, log zerolog.Logger) *Server {
	s := &Server{
		store:  store,
		newEng: newEng,
		log:    log,
		hub:    newEventHub(),
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler by delegating to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Post("/runs", s.handleCreateRun)
	r.Get("/runs/{id}", s.handleGetRun)
	r.Get("/runs/{id}/events", s.handleRunEvents)

	return r
}

type createRunRequest struct {
	ExecutionID string `json:"execution_id"`
	Definition  string `json:"definition"` // inline YAML workflow definition
}

type createRunResponse struct {
	ExecutionID string `json:"execution_id"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	def, err := config.ParseWorkflowDefinition("inline", []byte(req.Definition))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	nodes, edges, err := config.ToGraph(def)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	executionID := req.ExecutionID
	if executionID == "" {
		executionID = def.Name
	}

	eng := s.newEng(engine.WithEmitter(s.hub.emitterFor(executionID)))
	s.running.Store(executionID, eng)

	go func(nodes []graph.Node, edges []graph.Edge) {
		defer s.running.Delete(executionID)
		if _, err := eng.Run(context.Background(), executionID, nodes, edges); err != nil {
			s.log.Error().Err(err).Str("execution_id", executionID).Msg("run failed")
		}
	}(nodes, edges)

	writeJSON(w, http.StatusAccepted, createRunResponse{ExecutionID: executionID})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if v, ok := s.running.Load(id); ok {
		snap, err := v.(*engine.Engine).State()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}

	snap, err := s.store.Load(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
