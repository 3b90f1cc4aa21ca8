package gaussian

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"infodyn/domain/core"
)

// logTwoPiE is ln(2*pi*e), the per-dimension constant of Gaussian
// differential entropy.
var logTwoPiE = math.Log(2 * math.Pi * math.E)

// subSym extracts the covariance submatrix over the given joint-vector
// indices.
func subSym(cov *mat.SymDense, idx []int) *mat.SymDense {
	d := len(idx)
	out := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			out.SetSym(i, j, cov.At(idx[i], idx[j]))
		}
	}
	return out
}

// fittedBlock is one Gaussian marginal fitted over a subset of the joint
// vector: its Cholesky factor for determinants and quadratic forms, and the
// matching slice of the mean vector.
type fittedBlock struct {
	name   string
	idx    []int
	mean   *mat.VecDense
	chol   *mat.Cholesky
	logDet float64
}

// fitBlock factorizes the covariance submatrix over idx. A failed Cholesky
// factorization, or a determinant at or below eps, is a numerical
// degeneracy: the value is never clamped to something invertible.
func fitBlock(cov *mat.SymDense, fullMean []float64, idx []int, name string, eps float64) (fittedBlock, error) {
	b := fittedBlock{name: name, idx: idx}
	if len(idx) == 0 {
		return b, nil
	}
	b.mean = mat.NewVecDense(len(idx), nil)
	for i, ix := range idx {
		b.mean.SetVec(i, fullMean[ix])
	}
	sub := subSym(cov, idx)
	b.chol = &mat.Cholesky{}
	if ok := b.chol.Factorize(sub); !ok {
		return b, core.NewDegeneracyError(name, "Cholesky factorization failed (covariance not positive definite)")
	}
	b.logDet = b.chol.LogDet()
	if b.logDet <= math.Log(eps) {
		return b, core.NewDegeneracyError(name,
			fmt.Sprintf("determinant %.3e <= epsilon %.3e", math.Exp(b.logDet), eps))
	}
	return b, nil
}

// dim returns the block dimensionality.
func (b fittedBlock) dim() int { return len(b.idx) }

// entropy is the differential entropy 0.5*ln((2*pi*e)^d * det(Sigma)) of the
// fitted block, in nats. The empty block has entropy zero.
func (b fittedBlock) entropy() float64 {
	if b.dim() == 0 {
		return 0
	}
	return 0.5 * (float64(b.dim())*logTwoPiE + b.logDet)
}

// quadForm evaluates (v-mu)' Sigma^-1 (v-mu) for the block's slice of a
// joint vector.
func (b fittedBlock) quadForm(row []float64) (float64, error) {
	if b.dim() == 0 {
		return 0, nil
	}
	diff := mat.NewVecDense(b.dim(), nil)
	for i, ix := range b.idx {
		diff.SetVec(i, row[ix]-b.mean.AtVec(i))
	}
	var solved mat.VecDense
	if err := b.chol.SolveVecTo(&solved, diff); err != nil {
		return 0, core.NewDegeneracyError(b.name, "Cholesky solve failed")
	}
	return mat.Dot(diff, &solved), nil
}
