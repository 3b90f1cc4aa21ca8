// Package api serves the run ledger and the analysis services over HTTP:
// JSON endpoints for running and fetching analyses and sweeps, plus
// rendered HTML reports.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"infodyn/app"
	"infodyn/domain/core"
	"infodyn/domain/series"
	"infodyn/internal"
	"infodyn/internal/config"
	"infodyn/internal/errors"
	"infodyn/ports"
)

// Server wires the HTTP surface to the analysis services and the ledger.
type Server struct {
	router   *chi.Mux
	source   ports.SeriesSourcePort
	ledger   ports.LedgerReaderPort
	analysis *app.AnalysisService
	sweep    *app.SweepService
	defaults config.AnalysisConfig
	logger   *internal.Logger

	loadOnce  sync.Once
	recording *series.Recording
	loadErr   error
}

// NewServer creates the HTTP server. The recording is loaded from the
// source on first use and cached.
func NewServer(source ports.SeriesSourcePort, ledger ports.LedgerReaderPort, analysis *app.AnalysisService, sweep *app.SweepService, defaults config.AnalysisConfig, logger *internal.Logger) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		source:   source,
		ledger:   ledger,
		analysis: analysis,
		sweep:    sweep,
		defaults: defaults,
		logger:   logger.With("api"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Router exposes the configured mux for http.ListenAndServe and tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/analyses", s.handleRunAnalysis)
		r.Get("/analyses", s.handleListAnalyses)
		r.Get("/analyses/{id}", s.handleGetAnalysis)
		r.Get("/analyses/{id}/report", s.handleAnalysisReport)

		r.Post("/sweeps", s.handleRunSweep)
		r.Get("/sweeps", s.handleListSweeps)
		r.Get("/sweeps/{id}", s.handleGetSweep)
		r.Get("/sweeps/{id}/report", s.handleSweepReport)

		r.Get("/channels", s.handleChannels)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "infodyn-api",
		"source":  s.source.Describe(),
	})
}

// handleChannels lists the channel names of the served recording.
func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	rec, err := s.loadRecording(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"channels": rec.Names,
		"epochs":   len(rec.Epochs),
		"samples":  rec.Epochs[0].Len(),
	})
}

func (s *Server) loadRecording(r *http.Request) (*series.Recording, error) {
	s.loadOnce.Do(func() {
		s.recording, s.loadErr = s.source.Load(r.Context())
		if s.loadErr == nil {
			s.logger.Info("loaded %s: %d channels, %d epochs",
				s.source.Describe(), s.recording.Channels(), len(s.recording.Epochs))
		}
	})
	if s.loadErr != nil {
		return nil, errors.Wrap(s.loadErr, "failed to load recording")
	}
	return s.recording, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed: %v", err)
	}
	s.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}

func statusFor(err error) int {
	switch {
	case core.IsNotFoundError(err):
		return http.StatusNotFound
	case core.IsConfigurationError(err),
		core.IsDimensionMismatchError(err),
		core.IsInsufficientDataError(err),
		core.IsNotInitialisedError(err):
		return http.StatusBadRequest
	case core.IsDegeneracyError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}
