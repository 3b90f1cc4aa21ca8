package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"infodyn/adapters/report"
	"infodyn/app"
	"infodyn/domain/core"
)

// sweepPayload is the POST /api/sweeps request body. It reuses the analysis
// payload's estimator fields; source, dest and conds are ignored in favour
// of the channel list.
type sweepPayload struct {
	analysisPayload

	Channels    []string `json:"channels,omitempty"`
	Concurrency int      `json:"concurrency,omitempty"`
}

func (s *Server) handleRunSweep(w http.ResponseWriter, r *http.Request) {
	var payload sweepPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, core.NewConfigurationError("body", nil, "request body is not valid JSON"))
		return
	}

	rec, err := s.loadRecording(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	params, err := payload.params(s.appDefaults())
	if err != nil {
		s.writeError(w, err)
		return
	}

	record, err := s.sweep.Run(r.Context(), rec, app.SweepRequest{
		Params:      params,
		Channels:    payload.Channels,
		Concurrency: payload.Concurrency,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleListSweeps(w http.ResponseWriter, r *http.Request) {
	records, err := s.ledger.ListSweeps(r.Context(), queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sweeps": records,
		"count":  len(records),
	})
}

func (s *Server) handleGetSweep(w http.ResponseWriter, r *http.Request) {
	record, err := s.ledger.GetSweep(r.Context(), core.SweepID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleSweepReport(w http.ResponseWriter, r *http.Request) {
	record, err := s.ledger.GetSweep(r.Context(), core.SweepID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	md := report.SweepMarkdown(record)
	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(md))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(report.ToHTML(md))
}
