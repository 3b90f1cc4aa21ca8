package run

import (
	"fmt"

	"infodyn/domain/core"
	"infodyn/domain/embedding"
	"infodyn/domain/measure"
)

// Status describes how a stored run ended.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ChannelSet names the series that entered one analysis.
type ChannelSet struct {
	Source string   `json:"source"`
	Dest   string   `json:"dest"`
	Conds  []string `json:"conds,omitempty"`
}

// Key renders the channel set as a stable "src->dst|c1,c2" string for
// logging and per-pair seed derivation.
func (c ChannelSet) Key() string {
	key := c.Source + "->" + c.Dest
	for i, cond := range c.Conds {
		if i == 0 {
			key += "|" + cond
		} else {
			key += "," + cond
		}
	}
	return key
}

// Parameters is the complete estimator configuration of a run. Two runs
// with equal Parameters and equal input data are replays of each other.
type Parameters struct {
	Estimator    string          `json:"estimator"`
	Measure      measure.Measure `json:"measure"`
	Embedding    embedding.Spec  `json:"embedding"`
	Normalise    bool            `json:"normalise"`
	LogBase      float64         `json:"log_base"`
	DetEpsilon   float64         `json:"det_epsilon"`
	Permutations int             `json:"permutations"`
	Seed         int64           `json:"seed"`
}

// Fingerprint hashes the parameters together with the input data hash into
// the run's determinism fingerprint.
func (p Parameters) Fingerprint(dataHash core.DataHash) core.ConfigHash {
	return core.ComputeConfigHash(map[string]interface{}{
		"estimator":    p.Estimator,
		"measure":      string(p.Measure),
		"embedding":    fmt.Sprintf("%+v", p.Embedding),
		"normalise":    p.Normalise,
		"log_base":     p.LogBase,
		"det_epsilon":  p.DetEpsilon,
		"permutations": p.Permutations,
		"seed":         p.Seed,
		"data":         string(dataHash),
	})
}

// Record is the stored outcome of one analysis: the full configuration for
// replay plus the computed result.
type Record struct {
	ID           core.RunID            `json:"id"`
	Channels     ChannelSet            `json:"channels"`
	Params       Parameters            `json:"params"`
	DataHash     core.DataHash         `json:"data_hash"`
	Fingerprint  core.ConfigHash       `json:"fingerprint"`
	Status       Status                `json:"status"`
	Error        string                `json:"error,omitempty"`
	Result       *measure.Result       `json:"result,omitempty"`
	Significance *measure.Significance `json:"significance,omitempty"`
	RuntimeMs    int64                 `json:"runtime_ms"`
	CreatedAt    core.Timestamp        `json:"created_at"`
}

// NewRecord assembles a completed record and stamps its fingerprint.
func NewRecord(channels ChannelSet, params Parameters, dataHash core.DataHash, result *measure.Result, sig *measure.Significance, runtimeMs int64) *Record {
	return &Record{
		ID:           core.RunID(core.NewID()),
		Channels:     channels,
		Params:       params,
		DataHash:     dataHash,
		Fingerprint:  params.Fingerprint(dataHash),
		Status:       StatusCompleted,
		Result:       result,
		Significance: sig,
		RuntimeMs:    runtimeMs,
		CreatedAt:    core.Now(),
	}
}

// NewFailedRecord preserves the configuration of an analysis that errored,
// so failures stay auditable alongside successes.
func NewFailedRecord(channels ChannelSet, params Parameters, dataHash core.DataHash, cause error, runtimeMs int64) *Record {
	return &Record{
		ID:          core.RunID(core.NewID()),
		Channels:    channels,
		Params:      params,
		DataHash:    dataHash,
		Fingerprint: params.Fingerprint(dataHash),
		Status:      StatusFailed,
		Error:       cause.Error(),
		RuntimeMs:   runtimeMs,
		CreatedAt:   core.Now(),
	}
}

// Validate checks the record is complete enough to store.
func (r *Record) Validate() error {
	if core.ID(r.ID).IsEmpty() {
		return core.NewConfigurationError("run_id", r.ID, "cannot be empty")
	}
	if r.Channels.Source == "" || r.Channels.Dest == "" {
		return core.NewConfigurationError("channels", r.Channels.Key(), "source and dest are required")
	}
	if r.Fingerprint == "" {
		return core.NewConfigurationError("fingerprint", "", "cannot be empty")
	}
	switch r.Status {
	case StatusCompleted:
		if r.Result == nil {
			return core.NewConfigurationError("result", nil, "completed runs carry a result")
		}
	case StatusFailed:
		if r.Error == "" {
			return core.NewConfigurationError("error", "", "failed runs carry an error")
		}
	default:
		return core.NewConfigurationError("status", string(r.Status), "unknown status")
	}
	return nil
}

// PairValue is one cell of a sweep: the estimate for a single directed
// channel pair, with significance when the sweep requested it.
type PairValue struct {
	Source       string                `json:"source"`
	Dest         string                `json:"dest"`
	Value        float64               `json:"value"`
	Significance *measure.Significance `json:"significance,omitempty"`
	Error        string                `json:"error,omitempty"`
}

// SweepRecord is the stored outcome of an all-pairs sweep over a recording.
type SweepRecord struct {
	ID        core.SweepID   `json:"id"`
	Channels  []string       `json:"channels"`
	Params    Parameters     `json:"params"`
	DataHash  core.DataHash  `json:"data_hash"`
	Pairs     []PairValue    `json:"pairs"`
	RuntimeMs int64          `json:"runtime_ms"`
	CreatedAt core.Timestamp `json:"created_at"`
}

// NewSweepRecord assembles a sweep record over the given channel order.
func NewSweepRecord(channels []string, params Parameters, dataHash core.DataHash, pairs []PairValue, runtimeMs int64) *SweepRecord {
	return &SweepRecord{
		ID:        core.SweepID(core.NewID()),
		Channels:  append([]string(nil), channels...),
		Params:    params,
		DataHash:  dataHash,
		Pairs:     pairs,
		RuntimeMs: runtimeMs,
		CreatedAt: core.Now(),
	}
}

// Matrix lays the pair values out as [source][dest] in channel order, with
// zeros on the diagonal and for pairs that errored.
func (s *SweepRecord) Matrix() [][]float64 {
	index := make(map[string]int, len(s.Channels))
	for i, name := range s.Channels {
		index[name] = i
	}
	m := make([][]float64, len(s.Channels))
	for i := range m {
		m[i] = make([]float64, len(s.Channels))
	}
	for _, p := range s.Pairs {
		si, ok1 := index[p.Source]
		di, ok2 := index[p.Dest]
		if ok1 && ok2 && p.Error == "" {
			m[si][di] = p.Value
		}
	}
	return m
}
