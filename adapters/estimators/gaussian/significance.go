package gaussian

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"

	"infodyn/domain/measure"
)

// computeSignificance estimates a null distribution for the average by
// repeatedly permuting the source block's time alignment and recomputing the
// average on the permuted configuration. The calculator's stored average and
// locals are never touched: every surrogate works on its own copy.
func (c *gaussianCore) computeSignificance(ctx context.Context, req measure.SignificanceRequest) (*measure.Significance, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := c.fit(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// One independent stream per surrogate, derived from the master seed,
	// keeps the test deterministic for any worker count.
	master := rand.New(rand.NewSource(seed))
	seeds := make([]int64, req.Permutations)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	workers := req.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > req.Permutations {
		workers = req.Permutations
	}

	n := c.acc.count()
	srcIdx := c.layout.SourcePastIdx()

	dist := make([]float64, req.Permutations)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			scratch := mat.NewDense(n, c.layout.TotalDim, nil)
			for i := w; i < req.Permutations; i += workers {
				if ctx.Err() != nil {
					errs[w] = ctx.Err()
					return
				}
				rng := rand.New(rand.NewSource(seeds[i]))
				v, err := c.surrogateAverage(rng, srcIdx, scratch)
				if err != nil {
					errs[w] = err
					return
				}
				dist[i] = v
			}
		}(w)
	}
	wg.Wait()

	// An interrupted or failed run discards all partial results: folding an
	// incomplete surrogate count into the p-value would bias it.
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	actual := c.average
	count := 0
	for _, v := range dist {
		if v >= actual {
			count++
		}
	}
	pValue := float64(count) / float64(req.Permutations)

	unitsDist := make([]float64, len(dist))
	for i, v := range dist {
		unitsDist[i] = c.toUnits(v)
	}
	actualUnits := c.toUnits(actual)

	nullMean, _ := stats.Mean(unitsDist)
	nullStd, _ := stats.StandardDeviation(unitsDist)
	nullMin, _ := stats.Min(unitsDist)
	nullMax, _ := stats.Max(unitsDist)
	p95, _ := stats.Percentile(unitsDist, 95)
	p99, _ := stats.Percentile(unitsDist, 99)

	zScore := 0.0
	if nullStd > 0 {
		zScore = (actualUnits - nullMean) / nullStd
	}

	return &measure.Significance{
		ActualValue: actualUnits,
		PValue:      pValue,
		ZScore:      zScore,
		Null: measure.NullSummary{
			Mean:         nullMean,
			StdDev:       nullStd,
			Min:          nullMin,
			Max:          nullMax,
			Percentile95: p95,
			Percentile99: p99,
		},
		Distribution: unitsDist,
		Permutations: req.Permutations,
		Seed:         seed,
	}, nil
}

// surrogateAverage recomputes the average in nats with the source block rows
// randomly reordered among usable time steps. The reordering preserves the
// source's marginal statistics while breaking its temporal alignment with
// the destination and conditionals.
func (c *gaussianCore) surrogateAverage(rng *rand.Rand, srcIdx []int, scratch *mat.Dense) (float64, error) {
	n := c.acc.count()
	perm := rng.Perm(n)
	scratch.Copy(c.design)
	for t := 0; t < n; t++ {
		from := c.design.RawRowView(perm[t])
		for _, ix := range srcIdx {
			scratch.Set(t, ix, from[ix])
		}
	}
	mean, cov, err := meanAndCovariance(scratch)
	if err != nil {
		return 0, err
	}
	bs, err := fitBlockSet(mean, cov, c.layout, c.opts.DetEpsilon)
	if err != nil {
		return 0, err
	}
	return bs.averageNats(), nil
}
