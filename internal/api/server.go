// Package api exposes the reputation engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/neartask/veritas/internal/engine"
	"github.com/neartask/veritas/internal/reputation"
	"github.com/neartask/veritas/internal/review"
	"github.com/neartask/veritas/internal/stats"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	router *chi.Mux
	port   int
	engine *engine.Engine
	stats  *stats.Aggregator
}

func NewServer(port int, apiToken string, eng *engine.Engine, agg *stats.Aggregator) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		engine: eng,
		stats:  agg,
	}

	router.Get("/health", s.health)
	router.Get("/metrics", promhttp.Handler().ServeHTTP)
	router.Get("/api/v1/veritas/status", s.status)

	router.Route("/api/v1/reputation", func(r chi.Router) {
		r.Get("/statistics", s.statistics)
		r.Get("/{userID}", s.getScore)
		r.Get("/{userID}/history", s.getScoreWithHistory)
		r.With(BearerAuthMiddleware(apiToken)).Post("/{userID}/initialize", s.initialize)
	})

	router.Route("/api/v1/reviews", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/process", s.processReview)
	})

	router.With(BearerAuthMiddleware(apiToken)).Post("/api/v1/references", s.setReferences)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// BearerAuthMiddleware rejects requests without the configured token.
// An empty token disables auth (local development).
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			if r.Header.Get("Authorization") != "Bearer "+token {
				writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":    "veritas",
		"status":     "ready",
		"references": s.engine.CanisterReferences(),
	})
}

func (s *Server) initialize(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if strings.TrimSpace(userID) == "" {
		writeError(w, http.StatusBadRequest, "userID is required")
		return
	}

	score, err := s.engine.InitializeReputation(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, score)
}

func (s *Server) getScore(w http.ResponseWriter, r *http.Request) {
	score, err := s.engine.GetReputationScore(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) getScoreWithHistory(w http.ResponseWriter, r *http.Request) {
	score, history, err := s.engine.GetReputationScoreWithHistory(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"score":   score,
		"history": history,
	})
}

func (s *Server) processReview(w http.ResponseWriter, r *http.Request) {
	var rev review.Review
	if err := json.NewDecoder(r.Body).Decode(&rev); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	out, err := s.engine.ProcessReview(r.Context(), &rev)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) statistics(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats.Reputation(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) setReferences(w http.ResponseWriter, r *http.Request) {
	var refs engine.References
	if err := json.NewDecoder(r.Body).Decode(&refs); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	msg, err := s.engine.SetCanisterReferences(refs)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reputation.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, reputation.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, reputation.ErrReferenceInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, reputation.ErrAnalysisFailed):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
