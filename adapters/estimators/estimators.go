// Package estimators selects concrete calculator implementations by
// estimator family and measure, so callers configure by name and hold the
// result through the measure.Calculator contract.
package estimators

import (
	"infodyn/adapters/estimators/gaussian"
	"infodyn/domain/core"
	"infodyn/domain/embedding"
	"infodyn/domain/measure"
)

// Kind identifies an estimator family.
type Kind string

const (
	// KindGaussian is the linear-Gaussian model: closed-form entropies
	// from covariance log-determinants.
	KindGaussian Kind = "gaussian"

	// Recognized families without an implementation here. Naming them
	// keeps selection errors honest: "not implemented" rather than
	// "never heard of it".
	KindKernel   Kind = "kernel"
	KindKSG      Kind = "ksg"
	KindSymbolic Kind = "symbolic"
)

// ParseKind maps a configuration or wire name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindGaussian, KindKernel, KindKSG, KindSymbolic:
		return k, nil
	default:
		return "", core.NewConfigurationError("estimator", s, "unknown estimator family")
	}
}

// New constructs a calculator for the given family and measure. The
// embedding spec is ignored for mutual information, which pairs
// contemporaneous samples.
func New(kind Kind, m measure.Measure, spec embedding.Spec, opts gaussian.Options) (measure.Calculator, error) {
	switch kind {
	case KindGaussian:
		return newGaussian(m, spec, opts)
	case KindKernel, KindKSG, KindSymbolic:
		return nil, core.NewConfigurationError("estimator", string(kind),
			"family recognized but not implemented; only gaussian is available")
	default:
		return nil, core.NewConfigurationError("estimator", string(kind), "unknown estimator family")
	}
}

func newGaussian(m measure.Measure, spec embedding.Spec, opts gaussian.Options) (measure.Calculator, error) {
	switch m {
	case measure.MutualInformation:
		return gaussian.NewMutualInfo(opts)
	case measure.TransferEntropy:
		return gaussian.NewTransferEntropy(spec, opts)
	case measure.ConditionalTransferEntropy:
		return gaussian.NewConditionalTransferEntropy(spec, opts)
	default:
		return nil, core.NewConfigurationError("measure", string(m), "unknown measure")
	}
}
