package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/djb258/barton-outreach-core/internal/processor"
	"github.com/djb258/barton-outreach-core/internal/scoring"
)

// SnapshotReader is the read-only store surface the API needs for score
// lookups. *store.Store satisfies it.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, entityID uuid.UUID) (*scoring.Snapshot, error)
}

// RateLimit carries the IP rate-limiting knobs from config.
type RateLimit struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

type Server struct {
	router *chi.Mux
	port   int
	proc   *processor.Processor
	snaps  SnapshotReader
}

func NewServer(port int, apiToken string, proc *processor.Processor, snaps SnapshotReader, rl RateLimit) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	if rl.Enabled {
		router.Use(RateLimitMiddleware(rl.Requests, rl.Window))
	}

	s := &Server{
		router: router,
		port:   port,
		proc:   proc,
		snaps:  snaps,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/bit/status", s.status)

	router.Route("/api/v1/bit", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Get("/entities/{id}/score", s.entityScore)
		r.Post("/entities/{id}/recalculate", s.recalculate)
		r.Post("/preview", s.preview)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "bitd",
		"status":  "ok",
	})
}

// entityScore returns the persisted snapshot for an entity. 404 when the
// entity has never been scored.
func (s *Server) entityScore(w http.ResponseWriter, r *http.Request) {
	entityID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entity id")
		return
	}

	snap, err := s.snaps.GetSnapshot(r.Context(), entityID)
	if err != nil {
		slog.Error("snapshot lookup failed", "entity_id", entityID, "error", err)
		writeError(w, http.StatusInternalServerError, "snapshot lookup failed")
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, "entity has no score")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// recalculate forces a full recomputation for an entity, bypassing the
// debounce, and returns the evaluation outcome.
func (s *Server) recalculate(w http.ResponseWriter, r *http.Request) {
	entityID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entity id")
		return
	}

	outcome, err := s.proc.EvaluateEntity(r.Context(), entityID, true)
	if err != nil {
		slog.Error("recalculation failed", "entity_id", entityID, "error", err)
		writeError(w, http.StatusInternalServerError, "recalculation failed")
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// PreviewRequest is the payload for the stateless scoring endpoint.
type PreviewRequest struct {
	Signals []scoring.Signal `json:"signals"`
	Contact *scoring.Contact `json:"contact,omitempty"`
}

// PreviewResponse returns the computed score and tier without persisting
// anything or firing triggers.
type PreviewResponse struct {
	Score scoring.Result `json:"score"`
	Tier  scoring.Tier   `json:"tier"`
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	res, tier := s.proc.Preview(req.Signals, req.Contact)
	writeJSON(w, http.StatusOK, PreviewResponse{Score: res, Tier: tier})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
