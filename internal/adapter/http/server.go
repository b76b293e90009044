// Package http exposes the hazard query, location check, and admin refresh
// routes alongside health, readiness, and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/hazard-alert-service/internal/alerting"
	"github.com/couchcryptid/hazard-alert-service/internal/domain"
)

// HazardService is the alerting facade the server fronts.
type HazardService interface {
	GetUserHazardData(ctx context.Context, family domain.Family, userID uuid.UUID) (*alerting.UserHazardData, error)
	CheckLocation(ctx context.Context, family domain.Family, userID uuid.UUID, loc domain.Geo) (*alerting.UserHazardData, error)
	TriggerClusterRefresh(ctx context.Context, family domain.Family) (int, error)
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the service over HTTP.
type Server struct {
	httpServer *http.Server
	hazards    HazardService
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewServer creates the HTTP server and its routes.
func NewServer(addr string, hazards HazardService, ready ReadinessChecker, logger *slog.Logger) *Server {
	s := &Server{
		hazards:  hazards,
		validate: validator.New(),
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", handleReady(ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/hazards/{family}/users/{userID}", s.handleGetUserHazardData)
		r.Post("/hazards/{family}/check", s.handleCheckLocation)
		r.Post("/admin/hazards/{family}/refresh", s.handleTriggerRefresh)
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleGetUserHazardData(w http.ResponseWriter, r *http.Request) {
	family, ok := domain.ParseFamily(chi.URLParam(r, "family"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown hazard family")
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	data, err := s.hazards.GetUserHazardData(r.Context(), family, userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

type checkRequest struct {
	UserID    uuid.UUID `json:"user_id" validate:"required"`
	Latitude  float64   `json:"latitude" validate:"latitude"`
	Longitude float64   `json:"longitude" validate:"longitude"`
}

func (s *Server) handleCheckLocation(w http.ResponseWriter, r *http.Request) {
	family, ok := domain.ParseFamily(chi.URLParam(r, "family"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown hazard family")
		return
	}

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc := domain.Geo{Lat: req.Latitude, Lon: req.Longitude}
	data, err := s.hazards.CheckLocation(r.Context(), family, req.UserID, loc)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleTriggerRefresh(w http.ResponseWriter, r *http.Request) {
	family, ok := domain.ParseFamily(chi.URLParam(r, "family"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown hazard family")
		return
	}

	count, err := s.hazards.TriggerClusterRefresh(r.Context(), family)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"clusters_refreshed": count})
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, alerting.ErrUnknownSubscriber):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, alerting.ErrInvalidLocation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, alerting.ErrWeatherDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
