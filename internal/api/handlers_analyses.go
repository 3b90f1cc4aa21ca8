package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"infodyn/adapters/report"
	"infodyn/app"
	"infodyn/domain/core"
	"infodyn/domain/embedding"
	"infodyn/domain/measure"
	"infodyn/domain/run"
	"infodyn/ports"
)

// analysisPayload is the POST /api/analyses request body. Unset numeric
// fields fall back to the server's configured defaults.
type analysisPayload struct {
	Source string   `json:"source"`
	Dest   string   `json:"dest"`
	Conds  []string `json:"conds,omitempty"`

	Measure   string `json:"measure,omitempty"`
	Estimator string `json:"estimator,omitempty"`

	History       int   `json:"history,omitempty"`
	Delay         int   `json:"delay,omitempty"`
	SourceHistory int   `json:"source_history,omitempty"`
	SourceDelay   int   `json:"source_delay,omitempty"`
	CausalDelay   int   `json:"causal_delay,omitempty"`
	Normalise     *bool `json:"normalise,omitempty"`

	LogBase      float64 `json:"log_base,omitempty"`
	Permutations int     `json:"permutations,omitempty"`
	Seed         int64   `json:"seed,omitempty"`
	WithLocals   bool    `json:"with_locals,omitempty"`
}

// params resolves the payload against the configured defaults. The measure
// defaults to conditional transfer entropy when conditioning channels are
// named and plain transfer entropy otherwise.
func (p analysisPayload) params(defaults appDefaults) (run.Parameters, error) {
	measureName := p.Measure
	if measureName == "" {
		if len(p.Conds) > 0 {
			measureName = string(measure.ConditionalTransferEntropy)
		} else {
			measureName = string(measure.TransferEntropy)
		}
	}
	m, err := measure.ParseMeasure(measureName)
	if err != nil {
		return run.Parameters{}, err
	}

	spec := embedding.Spec{
		EmbeddingDimension:       pick(p.History, defaults.History),
		Delay:                    pick(p.Delay, defaults.Delay),
		SourceEmbeddingDimension: pick(p.SourceHistory, defaults.SourceHistory),
		SourceDelay:              pick(p.SourceDelay, defaults.SourceDelay),
		CausalDelay:              pick(p.CausalDelay, defaults.CausalDelay),
	}

	normalise := defaults.Normalise
	if p.Normalise != nil {
		normalise = *p.Normalise
	}
	estimator := p.Estimator
	if estimator == "" {
		estimator = defaults.Estimator
	}

	return run.Parameters{
		Estimator:    estimator,
		Measure:      m,
		Embedding:    spec,
		Normalise:    normalise,
		LogBase:      p.LogBase,
		Permutations: p.Permutations,
		Seed:         p.Seed,
	}, nil
}

// appDefaults is the slice of the analysis configuration the handlers need.
type appDefaults struct {
	Estimator     string
	History       int
	Delay         int
	SourceHistory int
	SourceDelay   int
	CausalDelay   int
	Normalise     bool
	Workers       int
}

func (s *Server) appDefaults() appDefaults {
	return appDefaults{
		Estimator:     s.defaults.Estimator,
		History:       s.defaults.History,
		Delay:         s.defaults.Delay,
		SourceHistory: s.defaults.SourceHistory,
		SourceDelay:   s.defaults.SourceDelay,
		CausalDelay:   s.defaults.CausalDelay,
		Normalise:     s.defaults.Normalise,
		Workers:       s.defaults.Workers,
	}
}

func pick(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func (s *Server) handleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	var payload analysisPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, core.NewConfigurationError("body", nil, "request body is not valid JSON"))
		return
	}
	if payload.Source == "" || payload.Dest == "" {
		s.writeError(w, core.NewConfigurationError("channels", payload.Source+"->"+payload.Dest, "source and dest are required"))
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

	record, err := s.analysis.Run(r.Context(), rec, app.AnalysisRequest{
		Channels:   run.ChannelSet{Source: payload.Source, Dest: payload.Dest, Conds: payload.Conds},
		Params:     params,
		Workers:    s.defaults.Workers,
		WithLocals: payload.WithLocals,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	filters := ports.RunFilters{
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if v := r.URL.Query().Get("measure"); v != "" {
		filters.Measure = &v
	}
	if v := r.URL.Query().Get("source"); v != "" {
		filters.Source = &v
	}
	if v := r.URL.Query().Get("dest"); v != "" {
		filters.Dest = &v
	}

	records, err := s.ledger.ListRuns(r.Context(), filters)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"analyses": records,
		"count":    len(records),
	})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	record, err := s.ledger.GetRun(r.Context(), core.RunID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleAnalysisReport(w http.ResponseWriter, r *http.Request) {
	record, err := s.ledger.GetRun(r.Context(), core.RunID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	md := report.RunMarkdown(record)
	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(md))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(report.ToHTML(md))
}
