package gaussian

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"infodyn/domain/core"
)

func TestSubSymExtraction(t *testing.T) {
	cov := mat.NewSymDense(3, []float64{
		1, 2, 3,
		2, 5, 6,
		3, 6, 9,
	})
	sub := subSym(cov, []int{0, 2})
	if r, _ := sub.Dims(); r != 2 {
		t.Fatalf("sub dims = %d, want 2", r)
	}
	if sub.At(0, 1) != 3 || sub.At(1, 1) != 9 {
		t.Errorf("sub = [[%v %v][%v %v]], want [[1 3][3 9]]",
			sub.At(0, 0), sub.At(0, 1), sub.At(1, 0), sub.At(1, 1))
	}
}

func TestFitBlockIdentityCovariance(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	b, err := fitBlock(cov, []float64{0, 0}, []int{0, 1}, "test", DefaultDetEpsilon)
	if err != nil {
		t.Fatalf("fitBlock: %v", err)
	}
	if !almostEqual(b.logDet, 0, 1e-12) {
		t.Errorf("logDet = %v, want 0", b.logDet)
	}
	if want := logTwoPiE; !almostEqual(b.entropy(), want, 1e-12) {
		t.Errorf("entropy = %v, want %v", b.entropy(), want)
	}
	q, err := b.quadForm([]float64{1, 1})
	if err != nil {
		t.Fatalf("quadForm: %v", err)
	}
	if !almostEqual(q, 2, 1e-12) {
		t.Errorf("quadForm = %v, want 2", q)
	}
}

func TestFitBlockKnownDeterminant(t *testing.T) {
	// det [[2 1][1 2]] = 3.
	cov := mat.NewSymDense(2, []float64{2, 1, 1, 2})
	b, err := fitBlock(cov, []float64{0, 0}, []int{0, 1}, "test", DefaultDetEpsilon)
	if err != nil {
		t.Fatalf("fitBlock: %v", err)
	}
	if !almostEqual(b.logDet, math.Log(3), 1e-10) {
		t.Errorf("logDet = %v, want ln 3 = %v", b.logDet, math.Log(3))
	}
	want := 0.5 * (2*logTwoPiE + math.Log(3))
	if !almostEqual(b.entropy(), want, 1e-10) {
		t.Errorf("entropy = %v, want %v", b.entropy(), want)
	}
}

func TestFitBlockQuadFormUsesInverse(t *testing.T) {
	// Sigma = [[2 0][0 4]], mean (1, -1): quad form of (3, 1) is
	// (2^2)/2 + (2^2)/4 = 3.
	cov := mat.NewSymDense(2, []float64{2, 0, 0, 4})
	b, err := fitBlock(cov, []float64{1, -1}, []int{0, 1}, "test", DefaultDetEpsilon)
	if err != nil {
		t.Fatalf("fitBlock: %v", err)
	}
	q, err := b.quadForm([]float64{3, 1})
	if err != nil {
		t.Fatalf("quadForm: %v", err)
	}
	if !almostEqual(q, 3, 1e-12) {
		t.Errorf("quadForm = %v, want 3", q)
	}
}

func TestFitBlockRejectsSingularCovariance(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{1, 1, 1, 1})
	_, err := fitBlock(cov, []float64{0, 0}, []int{0, 1}, "joint", DefaultDetEpsilon)
	if !core.IsDegeneracyError(err) {
		t.Fatalf("expected degeneracy error, got %v", err)
	}
}

func TestFitBlockRejectsDeterminantBelowEpsilon(t *testing.T) {
	// Positive definite but det = 1e-16, under the 1e-12 floor.
	cov := mat.NewSymDense(2, []float64{1e-8, 0, 0, 1e-8})
	_, err := fitBlock(cov, []float64{0, 0}, []int{0, 1}, "joint", DefaultDetEpsilon)
	if !core.IsDegeneracyError(err) {
		t.Fatalf("expected degeneracy error, got %v", err)
	}
}

func TestEmptyBlockContributesNothing(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	b, err := fitBlock(cov, []float64{0, 0}, nil, "empty", DefaultDetEpsilon)
	if err != nil {
		t.Fatalf("fitBlock: %v", err)
	}
	if b.entropy() != 0 {
		t.Errorf("entropy = %v, want 0", b.entropy())
	}
	q, err := b.quadForm([]float64{5, 5})
	if err != nil || q != 0 {
		t.Errorf("quadForm = (%v, %v), want (0, nil)", q, err)
	}
}
