package measure

import (
	"fmt"

	"infodyn/domain/core"
)

// Measure identifies the information-theoretic quantity a calculator
// estimates.
type Measure string

const (
	MutualInformation          Measure = "mutual_information"
	TransferEntropy            Measure = "transfer_entropy"
	ConditionalTransferEntropy Measure = "conditional_transfer_entropy"
)

// ParseMeasure maps a configuration or wire name to a Measure.
func ParseMeasure(s string) (Measure, error) {
	switch m := Measure(s); m {
	case MutualInformation, TransferEntropy, ConditionalTransferEntropy:
		return m, nil
	default:
		return "", core.NewConfigurationError("measure", s, "unknown measure")
	}
}

// UnitsForBase names the output units for a logarithm base. Zero means
// natural log.
func UnitsForBase(base float64) string {
	switch base {
	case 0:
		return "nats"
	case 2:
		return "bits"
	default:
		return fmt.Sprintf("log%g", base)
	}
}

// Result is the output of one average/local computation.
// INVARIANT: mean(LocalValues) == AverageValue within floating tolerance.
type Result struct {
	Measure         Measure        `json:"measure"`
	AverageValue    float64        `json:"average_value"`
	LocalValues     []float64      `json:"local_values,omitempty"`
	NumObservations int            `json:"num_observations"`
	Units           string         `json:"units"`
	ComputedAt      core.Timestamp `json:"computed_at"`
}

// NullSummary describes the surrogate null distribution.
type NullSummary struct {
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Percentile95 float64 `json:"percentile_95"`
	Percentile99 float64 `json:"percentile_99"`
}

// Significance is the outcome of a surrogate permutation test.
// INVARIANTS:
// - PValue in [0.0, 1.0]
// - ActualValue equals the calculator's stored average before and after the
//   test (the test never mutates calculator state)
// - len(Distribution) == Permutations when the test ran to completion
type Significance struct {
	ActualValue  float64     `json:"actual_value"`
	PValue       float64     `json:"p_value"`
	ZScore       float64     `json:"z_score"`
	Null         NullSummary `json:"null"`
	Distribution []float64   `json:"distribution,omitempty"`
	Permutations int         `json:"permutations"`
	Seed         int64       `json:"seed"`
}

// SignificanceRequest configures a permutation test. Seed 0 derives a seed
// from the clock; Workers 0 uses one worker per CPU.
type SignificanceRequest struct {
	Permutations int   `json:"permutations"`
	Seed         int64 `json:"seed"`
	Workers      int   `json:"workers"`
}

// Validate rejects a non-positive permutation count.
func (r SignificanceRequest) Validate() error {
	if r.Permutations <= 0 {
		return core.NewConfigurationError("numPermutations", r.Permutations, "must be > 0")
	}
	if r.Workers < 0 {
		return core.NewConfigurationError("workers", r.Workers, "must be >= 0")
	}
	return nil
}
