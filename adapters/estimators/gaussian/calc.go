package gaussian

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"infodyn/domain/core"
	"infodyn/domain/embedding"
	"infodyn/domain/measure"
	"infodyn/domain/series"
)

// blockSet holds the four fitted Gaussian marginals the conditional
// mutual-information identity needs:
//
//	z   - conditioning set (destination past + conditional pasts)
//	yz  - predicted sample joint with the conditioning set
//	xz  - source past joint with the conditioning set
//	xyz - full joint vector
type blockSet struct {
	z, yz, xz, xyz fittedBlock
}

func fitBlockSet(mean []float64, cov *mat.SymDense, lay embedding.Layout, eps float64) (blockSet, error) {
	var bs blockSet
	var err error

	zIdx := lay.ConditioningIdx()
	yzIdx := append(append([]int(nil), zIdx...), lay.DestNextIdx()...)
	xzIdx := append(append([]int(nil), zIdx...), lay.SourcePastIdx()...)
	xyzIdx := spanAll(lay.TotalDim)

	if bs.z, err = fitBlock(cov, mean, zIdx, "conditioning", eps); err != nil {
		return bs, err
	}
	if bs.yz, err = fitBlock(cov, mean, yzIdx, "predicted+conditioning", eps); err != nil {
		return bs, err
	}
	if bs.xz, err = fitBlock(cov, mean, xzIdx, "source+conditioning", eps); err != nil {
		return bs, err
	}
	if bs.xyz, err = fitBlock(cov, mean, xyzIdx, "joint", eps); err != nil {
		return bs, err
	}
	return bs, nil
}

func spanAll(d int) []int {
	idx := make([]int, d)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// averageNats composes the conditional-entropy identity
//
//	CTE = H(dest_next | conditioning) - H(dest_next | source, conditioning)
//
// from the four block entropies, in nats. The (2*pi*e) dimension terms
// cancel exactly, leaving a pure log-determinant combination.
func (bs blockSet) averageNats() float64 {
	hGivenZ := bs.yz.entropy() - bs.z.entropy()
	hGivenXZ := bs.xyz.entropy() - bs.xz.entropy()
	return hGivenZ - hGivenXZ
}

// localNats is the pointwise log-likelihood-ratio contribution of one joint
// vector: the average plus the half-difference of the four Mahalanobis
// forms. Its sample mean recovers averageNats exactly, because the
// quadratic-form means contribute dim*(N-1)/N per block and the block
// dimensions cancel in the same combination as the entropies.
func (bs blockSet) localNats(avg float64, row []float64) (float64, error) {
	qZ, err := bs.z.quadForm(row)
	if err != nil {
		return 0, err
	}
	qYZ, err := bs.yz.quadForm(row)
	if err != nil {
		return 0, err
	}
	qXZ, err := bs.xz.quadForm(row)
	if err != nil {
		return 0, err
	}
	qXYZ, err := bs.xyz.quadForm(row)
	if err != nil {
		return 0, err
	}
	return avg + 0.5*(qXZ+qYZ-qZ-qXYZ), nil
}

// builder assembles joint vectors for one realization. The transfer-entropy
// calculators embed along time; mutual information pairs contemporaneous
// samples.
type builder interface {
	build(obs series.Observations) ([][]float64, embedding.Layout, error)
}

// gaussianCore carries the state machine shared by every calculator in this
// package: pooled accumulation, the fitted block set, and cached results.
type gaussianCore struct {
	name        string
	measureKind measure.Measure
	opts        Options
	build       builder

	acc       *accumulator
	layout    embedding.Layout
	hasLayout bool

	fitted  bool
	blocks  blockSet
	average float64 // nats
	design  *mat.Dense
}

func newGaussianCore(name string, m measure.Measure, opts Options, b builder) (*gaussianCore, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &gaussianCore{
		name:        name,
		measureKind: m,
		opts:        opts.withDefaults(),
		build:       b,
	}, nil
}

// reset drops accumulated observations and cached results.
func (c *gaussianCore) reset() {
	c.acc = nil
	c.hasLayout = false
	c.fitted = false
	c.design = nil
}

func (c *gaussianCore) setObservations(obs series.Observations) error {
	c.reset()
	return c.addObservations(obs)
}

func (c *gaussianCore) addObservations(obs series.Observations) error {
	if c.opts.Normalise {
		norm, err := normaliseObservations(obs)
		if err != nil {
			return err
		}
		obs = norm
	}
	rows, lay, err := c.build.build(obs)
	if err != nil {
		return err
	}
	if !c.hasLayout {
		c.layout = lay
		c.hasLayout = true
		c.acc = newAccumulator(lay.TotalDim)
	} else if lay != c.layout {
		return core.NewDimensionMismatchError("joint vector dimension", c.layout.TotalDim, lay.TotalDim)
	}
	if err := c.acc.add(rows); err != nil {
		return err
	}
	c.fitted = false
	c.design = nil
	return nil
}

func normaliseObservations(obs series.Observations) (series.Observations, error) {
	if err := obs.Validate(); err != nil {
		return obs, err
	}
	dest, err := obs.Dest.Normalised()
	if err != nil {
		return obs, err
	}
	src, err := obs.Source.Normalised()
	if err != nil {
		return obs, err
	}
	conds := make([]*series.Multi, len(obs.Conds))
	for i, cnd := range obs.Conds {
		if conds[i], err = cnd.Normalised(); err != nil {
			return obs, err
		}
	}
	return series.Observations{Dest: dest, Source: src, Conds: conds}, nil
}

// fit finalises the pooled covariance and fits the block set once per
// observation state.
func (c *gaussianCore) fit() error {
	if c.fitted {
		return nil
	}
	if c.acc == nil || c.acc.count() == 0 {
		return core.NewNotInitialisedError("no observations supplied")
	}
	design := c.acc.design()
	mean, cov, err := meanAndCovariance(design)
	if err != nil {
		return err
	}
	blocks, err := fitBlockSet(mean, cov, c.layout, c.opts.DetEpsilon)
	if err != nil {
		return err
	}
	c.design = design
	c.blocks = blocks
	c.average = blocks.averageNats()
	c.fitted = true
	return nil
}

// toUnits converts a nats value to the configured log base.
func (c *gaussianCore) toUnits(nats float64) float64 {
	if c.opts.LogBase == 0 {
		return nats
	}
	return nats / math.Log(c.opts.LogBase)
}

func (c *gaussianCore) computeAverage() (float64, error) {
	if err := c.fit(); err != nil {
		return 0, err
	}
	return c.toUnits(c.average), nil
}

func (c *gaussianCore) computeLocal() ([]float64, error) {
	if err := c.fit(); err != nil {
		return nil, err
	}
	n := c.acc.count()
	locals := make([]float64, n)
	for t := 0; t < n; t++ {
		v, err := c.blocks.localNats(c.average, c.design.RawRowView(t))
		if err != nil {
			return nil, err
		}
		locals[t] = c.toUnits(v)
	}
	return locals, nil
}

// numObservations reports the pooled usable vector count.
func (c *gaussianCore) numObservations() int {
	if c.acc == nil {
		return 0
	}
	return c.acc.count()
}
