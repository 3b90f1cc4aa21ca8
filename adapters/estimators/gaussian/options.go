package gaussian

import (
	"infodyn/domain/core"
	"infodyn/domain/measure"
)

// DefaultDetEpsilon is the determinant floor below which a covariance is
// treated as numerically degenerate.
const DefaultDetEpsilon = 1e-12

// Options are the properties shared by every Gaussian-model calculator.
type Options struct {
	// Normalise rescales each variable component to zero mean and unit
	// variance before embedding. Affine per-component scaling leaves the
	// estimated value unchanged but keeps determinants on a comparable
	// scale.
	Normalise bool `json:"normalise"`

	// LogBase sets the output units: 0 computes in natural log (nats),
	// 2 in bits, any other base > 0 in that base's units.
	LogBase float64 `json:"log_base"`

	// DetEpsilon is the determinant floor; 0 selects DefaultDetEpsilon.
	DetEpsilon float64 `json:"det_epsilon"`
}

// DefaultOptions mirrors the conventional estimator defaults: normalisation
// on, natural-log units.
func DefaultOptions() Options {
	return Options{Normalise: true, LogBase: 0, DetEpsilon: DefaultDetEpsilon}
}

func (o Options) validate() error {
	if o.LogBase < 0 || o.LogBase == 1 {
		return core.NewConfigurationError("logBase", o.LogBase, "must be 0 (nats) or a positive base != 1")
	}
	if o.DetEpsilon < 0 {
		return core.NewConfigurationError("detEpsilon", o.DetEpsilon, "must be >= 0")
	}
	return nil
}

// withDefaults fills zero-valued options that have non-zero defaults.
func (o Options) withDefaults() Options {
	if o.DetEpsilon == 0 {
		o.DetEpsilon = DefaultDetEpsilon
	}
	return o
}

// Units names the units results are reported in.
func (o Options) Units() string { return measure.UnitsForBase(o.LogBase) }
