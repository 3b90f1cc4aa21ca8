package gaussian

import (
	"context"

	"infodyn/domain/core"
	"infodyn/domain/embedding"
	"infodyn/domain/measure"
	"infodyn/domain/series"
)

// pairBuilder pairs contemporaneous samples: no time embedding, one joint
// vector per step. The destination sample takes the predicted slot and the
// source sample the source slot of the shared layout, so the same
// block-entropy composition yields I(X;Y).
type pairBuilder struct{}

func (pairBuilder) build(obs series.Observations) ([][]float64, embedding.Layout, error) {
	if err := obs.Validate(); err != nil {
		return nil, embedding.Layout{}, err
	}
	if len(obs.Conds) != 0 {
		return nil, embedding.Layout{}, core.NewDimensionMismatchError("conditional series count", 0, len(obs.Conds))
	}
	destW := obs.Dest.Width()
	srcW := obs.Source.Width()
	lay := embedding.Layout{
		DestNextDim:   destW,
		SourcePastDim: srcW,
		TotalDim:      destW + srcW,
	}
	n := obs.Dest.Len()
	rows := make([][]float64, n)
	for t := 0; t < n; t++ {
		row := make([]float64, 0, lay.TotalDim)
		for c := 0; c < destW; c++ {
			row = append(row, obs.Dest.At(t, c))
		}
		for c := 0; c < srcW; c++ {
			row = append(row, obs.Source.At(t, c))
		}
		rows[t] = row
	}
	return rows, lay, nil
}

// MutualInfo estimates I(source; destination) between paired samples under
// the Gaussian model.
type MutualInfo struct {
	core *gaussianCore
}

var _ measure.Calculator = (*MutualInfo)(nil)

// NewMutualInfo prepares an empty mutual-information calculator.
func NewMutualInfo(opts Options) (*MutualInfo, error) {
	c, err := newGaussianCore("gaussian_mi", measure.MutualInformation, opts, pairBuilder{})
	if err != nil {
		return nil, err
	}
	return &MutualInfo{core: c}, nil
}

// Name implements measure.Calculator.
func (c *MutualInfo) Name() string { return c.core.name }

// Measure implements measure.Calculator.
func (c *MutualInfo) Measure() measure.Measure { return c.core.measureKind }

// Initialise resets all accumulated observations. Mutual information pairs
// contemporaneous samples, so the embedding parameters are not consulted;
// a spec carrying conditionals is rejected.
func (c *MutualInfo) Initialise(spec embedding.Spec) error {
	if len(spec.CondEmbeddingDimensions) != 0 {
		return core.NewDimensionMismatchError("conditional series count", 0, len(spec.CondEmbeddingDimensions))
	}
	c.core.reset()
	return nil
}

// SetObservations replaces accumulated state with one realization.
// Conditional series are rejected: mutual information is pairwise.
func (c *MutualInfo) SetObservations(obs series.Observations) error {
	return c.core.setObservations(obs)
}

// AddObservations pools a further disjoint realization.
func (c *MutualInfo) AddObservations(obs series.Observations) error {
	return c.core.addObservations(obs)
}

// ComputeAverage implements measure.Calculator.
func (c *MutualInfo) ComputeAverage() (float64, error) {
	return c.core.computeAverage()
}

// ComputeLocal implements measure.Calculator.
func (c *MutualInfo) ComputeLocal() ([]float64, error) {
	return c.core.computeLocal()
}

// ComputeSignificance implements measure.Calculator.
func (c *MutualInfo) ComputeSignificance(ctx context.Context, req measure.SignificanceRequest) (*measure.Significance, error) {
	return c.core.computeSignificance(ctx, req)
}

// NumObservations reports the pooled sample count.
func (c *MutualInfo) NumObservations() int { return c.core.numObservations() }

// Units names the configured output units.
func (c *MutualInfo) Units() string { return c.core.opts.Units() }
