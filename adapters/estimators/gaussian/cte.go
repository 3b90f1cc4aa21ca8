package gaussian

import (
	"context"

	"infodyn/domain/embedding"
	"infodyn/domain/measure"
	"infodyn/domain/series"
)

// ConditionalTransferEntropy estimates TE(source -> destination) with the
// shared influence of one or more conditional variables partialled out:
// I(dest_next; source_past | dest_past, cond_pasts). With an empty
// conditional set it degenerates exactly to ordinary transfer entropy; the
// cross-check against an independently constructed TransferEntropy relies
// on that, so this type never builds one internally.
type ConditionalTransferEntropy struct {
	spec embedding.Spec
	core *gaussianCore
}

var _ measure.Calculator = (*ConditionalTransferEntropy)(nil)

// NewConditionalTransferEntropy validates the embedding parameters,
// including the per-conditional dimensions and delays, and prepares an empty
// calculator.
func NewConditionalTransferEntropy(spec embedding.Spec, opts Options) (*ConditionalTransferEntropy, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	c, err := newGaussianCore("gaussian_cte", measure.ConditionalTransferEntropy, opts, embedBuilder{spec})
	if err != nil {
		return nil, err
	}
	return &ConditionalTransferEntropy{spec: spec, core: c}, nil
}

// Name implements measure.Calculator.
func (c *ConditionalTransferEntropy) Name() string { return c.core.name }

// Measure implements measure.Calculator.
func (c *ConditionalTransferEntropy) Measure() measure.Measure { return c.core.measureKind }

// Spec returns the embedding configuration.
func (c *ConditionalTransferEntropy) Spec() embedding.Spec { return c.spec }

// Initialise re-configures the embedding and resets all accumulated
// statistics.
func (c *ConditionalTransferEntropy) Initialise(spec embedding.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	c.spec = spec
	c.core.build = embedBuilder{spec}
	c.core.reset()
	return nil
}

// SetObservations replaces accumulated state with one realization. The
// observation set must carry exactly as many conditional series as the spec
// embeds.
func (c *ConditionalTransferEntropy) SetObservations(obs series.Observations) error {
	return c.core.setObservations(obs)
}

// AddObservations pools a further disjoint realization.
func (c *ConditionalTransferEntropy) AddObservations(obs series.Observations) error {
	return c.core.addObservations(obs)
}

// ComputeAverage implements measure.Calculator.
func (c *ConditionalTransferEntropy) ComputeAverage() (float64, error) {
	return c.core.computeAverage()
}

// ComputeLocal implements measure.Calculator.
func (c *ConditionalTransferEntropy) ComputeLocal() ([]float64, error) {
	return c.core.computeLocal()
}

// ComputeSignificance implements measure.Calculator.
func (c *ConditionalTransferEntropy) ComputeSignificance(ctx context.Context, req measure.SignificanceRequest) (*measure.Significance, error) {
	return c.core.computeSignificance(ctx, req)
}

// NumObservations reports the pooled usable vector count.
func (c *ConditionalTransferEntropy) NumObservations() int { return c.core.numObservations() }

// Units names the configured output units.
func (c *ConditionalTransferEntropy) Units() string { return c.core.opts.Units() }
