package gaussian

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"infodyn/domain/core"
)

// accumulator pools joint vectors across disjoint realizations into one
// sample estimate. Rows are retained because the local-value decomposition
// and the permutation test both re-read them.
type accumulator struct {
	dim  int
	n    int
	flat []float64
}

func newAccumulator(dim int) *accumulator {
	return &accumulator{dim: dim}
}

func (a *accumulator) add(rows [][]float64) error {
	for _, row := range rows {
		if len(row) != a.dim {
			return core.NewDimensionMismatchError("joint vector dimension", a.dim, len(row))
		}
		a.flat = append(a.flat, row...)
	}
	a.n += len(rows)
	return nil
}

func (a *accumulator) count() int { return a.n }

// design exposes the pooled vectors as an n x dim matrix view over the
// accumulator's backing storage. Callers must not mutate it.
func (a *accumulator) design() *mat.Dense {
	return mat.NewDense(a.n, a.dim, a.flat)
}

// meanAndCovariance computes the pooled sample mean vector and sample
// covariance matrix (N-1 denominator, the convention shared by every
// calculator in this package) of a design matrix.
func meanAndCovariance(design *mat.Dense) ([]float64, *mat.SymDense, error) {
	n, d := design.Dims()
	if n < 2 {
		return nil, nil, core.NewInsufficientDataError("covariance estimation", 2, n)
	}
	mean := make([]float64, d)
	for t := 0; t < n; t++ {
		row := design.RawRowView(t)
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, design, nil)
	return mean, &cov, nil
}
