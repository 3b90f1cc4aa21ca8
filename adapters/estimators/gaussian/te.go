// Package gaussian implements information-dynamics calculators under a
// multivariate-Gaussian model: closed-form entropies from covariance
// log-determinants instead of density estimation.
package gaussian

import (
	"context"

	"infodyn/domain/core"
	"infodyn/domain/embedding"
	"infodyn/domain/measure"
	"infodyn/domain/series"
)

type embedBuilder struct {
	spec embedding.Spec
}

func (b embedBuilder) build(obs series.Observations) ([][]float64, embedding.Layout, error) {
	return embedding.Build(b.spec, obs)
}

// TransferEntropy estimates TE(source -> destination): the information the
// source's past carries about the next destination sample beyond what the
// destination's own past carries. It is the conditional calculator's
// algorithm with the conditional variable set forced empty, constructible on
// its own so callers can hold either interchangeably.
type TransferEntropy struct {
	spec embedding.Spec
	core *gaussianCore
}

var _ measure.Calculator = (*TransferEntropy)(nil)

// NewTransferEntropy validates the embedding parameters and prepares an
// empty calculator.
func NewTransferEntropy(spec embedding.Spec, opts Options) (*TransferEntropy, error) {
	if err := validateUnconditioned(spec); err != nil {
		return nil, err
	}
	c, err := newGaussianCore("gaussian_te", measure.TransferEntropy, opts, embedBuilder{spec})
	if err != nil {
		return nil, err
	}
	return &TransferEntropy{spec: spec, core: c}, nil
}

func validateUnconditioned(spec embedding.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if n := spec.NumConditionals(); n != 0 {
		return core.NewConfigurationError("conditionalEmbeddingDimensions", n,
			"transfer entropy takes no conditional set")
	}
	return nil
}

// Name implements measure.Calculator.
func (c *TransferEntropy) Name() string { return c.core.name }

// Measure implements measure.Calculator.
func (c *TransferEntropy) Measure() measure.Measure { return c.core.measureKind }

// Spec returns the embedding configuration.
func (c *TransferEntropy) Spec() embedding.Spec { return c.spec }

// Initialise re-configures the embedding and resets all accumulated
// statistics.
func (c *TransferEntropy) Initialise(spec embedding.Spec) error {
	if err := validateUnconditioned(spec); err != nil {
		return err
	}
	c.spec = spec
	c.core.build = embedBuilder{spec}
	c.core.reset()
	return nil
}

// SetObservations replaces accumulated state with one realization.
func (c *TransferEntropy) SetObservations(obs series.Observations) error {
	return c.core.setObservations(obs)
}

// AddObservations pools a further disjoint realization.
func (c *TransferEntropy) AddObservations(obs series.Observations) error {
	return c.core.addObservations(obs)
}

// ComputeAverage implements measure.Calculator.
func (c *TransferEntropy) ComputeAverage() (float64, error) {
	return c.core.computeAverage()
}

// ComputeLocal implements measure.Calculator.
func (c *TransferEntropy) ComputeLocal() ([]float64, error) {
	return c.core.computeLocal()
}

// ComputeSignificance implements measure.Calculator.
func (c *TransferEntropy) ComputeSignificance(ctx context.Context, req measure.SignificanceRequest) (*measure.Significance, error) {
	return c.core.computeSignificance(ctx, req)
}

// NumObservations reports the pooled usable vector count.
func (c *TransferEntropy) NumObservations() int { return c.core.numObservations() }

// Units names the configured output units.
func (c *TransferEntropy) Units() string { return c.core.opts.Units() }
