package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"infodyn/domain/run"
	"infodyn/domain/series"
	"infodyn/internal"
	"infodyn/internal/config"
	"infodyn/internal/testkit"
)

type stubSource struct {
	rec *series.Recording
}

func (s stubSource) Load(ctx context.Context) (*series.Recording, error) { return s.rec, nil }
func (s stubSource) Describe() string                                    { return "stub:coupled" }

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := testkit.DefaultCoupledSystemConfig()
	cfg.Samples = 400
	rec, err := testkit.NewSeriesGenerator(cfg).CoupledRecording()
	if err != nil {
		t.Fatal(err)
	}
	kit := testkit.NewTestKit()
	defaults := config.AnalysisConfig{
		Estimator:     "gaussian",
		History:       1,
		Delay:         1,
		SourceHistory: 1,
		SourceDelay:   1,
		CausalDelay:   1,
		Normalise:     true,
		Workers:       2,
	}
	return NewServer(stubSource{rec: rec}, kit.LedgerAdapter(), kit.AnalysisService(), kit.SweepService(), defaults, internal.NewLogger(internal.LogLevelError))
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	w := doRequest(t, testServer(t), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestChannelsEndpoint(t *testing.T) {
	w := doRequest(t, testServer(t), http.MethodGet, "/api/channels", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Channels []string `json:"channels"`
		Epochs   int      `json:"epochs"`
		Samples  int      `json:"samples"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Channels) != 3 || body.Samples != 400 {
		t.Errorf("channels = %v, samples = %d", body.Channels, body.Samples)
	}
}

func TestAnalysisEndToEnd(t *testing.T) {
	s := testServer(t)

	w := doRequest(t, s, http.MethodPost, "/api/analyses", `{"source":"driver","dest":"response"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var record run.Record
	if err := json.Unmarshal(w.Body.Bytes(), &record); err != nil {
		t.Fatal(err)
	}
	if record.Status != run.StatusCompleted {
		t.Fatalf("status = %s, want completed", record.Status)
	}
	if record.Result.AverageValue < 0.05 {
		t.Errorf("coupled TE = %v, want > 0.05", record.Result.AverageValue)
	}

	w = doRequest(t, s, http.MethodGet, "/api/analyses/"+string(record.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", w.Code)
	}

	w = doRequest(t, s, http.MethodGet, "/api/analyses?source=driver", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", w.Code)
	}
	var list struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Count != 1 {
		t.Errorf("list count = %d, want 1", list.Count)
	}

	w = doRequest(t, s, http.MethodGet, "/api/analyses/"+string(record.ID)+"/report", "")
	if w.Code != http.StatusOK {
		t.Fatalf("report status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("report content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "<html") {
		t.Error("report is not an HTML page")
	}

	w = doRequest(t, s, http.MethodGet, "/api/analyses/"+string(record.ID)+"/report?format=markdown", "")
	if !strings.Contains(w.Body.String(), "# Analysis Run") {
		t.Error("markdown report missing title")
	}
}

func TestAnalysisUnknownChannelIs404(t *testing.T) {
	w := doRequest(t, testServer(t), http.MethodPost, "/api/analyses", `{"source":"driver","dest":"absent"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["code"] != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", body["code"])
	}
}

func TestAnalysisRejectsMalformedBody(t *testing.T) {
	w := doRequest(t, testServer(t), http.MethodPost, "/api/analyses", `{"source":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAnalysisMissingChannelsRejected(t *testing.T) {
	w := doRequest(t, testServer(t), http.MethodPost, "/api/analyses", `{"source":"driver"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestGetAnalysisMissingIs404(t *testing.T) {
	w := doRequest(t, testServer(t), http.MethodGet, "/api/analyses/no-such-id", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestSweepEndToEnd(t *testing.T) {
	s := testServer(t)

	w := doRequest(t, s, http.MethodPost, "/api/sweeps", `{}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var record run.SweepRecord
	if err := json.Unmarshal(w.Body.Bytes(), &record); err != nil {
		t.Fatal(err)
	}
	if len(record.Pairs) != 6 {
		t.Fatalf("pairs = %d, want 6", len(record.Pairs))
	}

	w = doRequest(t, s, http.MethodGet, "/api/sweeps/"+string(record.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", w.Code)
	}

	w = doRequest(t, s, http.MethodGet, "/api/sweeps", "")
	var list struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Count != 1 {
		t.Errorf("sweep count = %d, want 1", list.Count)
	}

	w = doRequest(t, s, http.MethodGet, "/api/sweeps/"+string(record.ID)+"/report", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<table>") {
		t.Errorf("sweep report status = %d, missing matrix table", w.Code)
	}
}
