package gaussian

import (
	"math"
	"testing"

	"infodyn/domain/core"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestAccumulatorPoolsRows(t *testing.T) {
	acc := newAccumulator(2)
	if err := acc.add([][]float64{{1, 2}, {3, 4}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := acc.add([][]float64{{5, 6}}); err != nil {
		t.Fatalf("second add: %v", err)
	}
	if acc.count() != 3 {
		t.Fatalf("count = %d, want 3", acc.count())
	}
	design := acc.design()
	if got := design.At(2, 1); got != 6 {
		t.Errorf("design(2,1) = %v, want 6", got)
	}
}

func TestAccumulatorRejectsWrongDimension(t *testing.T) {
	acc := newAccumulator(3)
	err := acc.add([][]float64{{1, 2}})
	if !core.IsDimensionMismatchError(err) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

func TestMeanAndCovarianceAgainstHandComputation(t *testing.T) {
	acc := newAccumulator(2)
	// x = {1,2,3,4}, y = {2,4,6,8}: mean (2.5, 5), var 5/3 resp 20/3,
	// cov 10/3 with the N-1 denominator.
	rows := [][]float64{{1, 2}, {2, 4}, {3, 6}, {4, 8}}
	if err := acc.add(rows); err != nil {
		t.Fatal(err)
	}
	mean, cov, err := meanAndCovariance(acc.design())
	if err != nil {
		t.Fatalf("meanAndCovariance: %v", err)
	}
	if !almostEqual(mean[0], 2.5, 1e-12) || !almostEqual(mean[1], 5, 1e-12) {
		t.Errorf("mean = %v, want [2.5 5]", mean)
	}
	if !almostEqual(cov.At(0, 0), 5.0/3.0, 1e-12) {
		t.Errorf("var(x) = %v, want %v", cov.At(0, 0), 5.0/3.0)
	}
	if !almostEqual(cov.At(1, 1), 20.0/3.0, 1e-12) {
		t.Errorf("var(y) = %v, want %v", cov.At(1, 1), 20.0/3.0)
	}
	if !almostEqual(cov.At(0, 1), 10.0/3.0, 1e-12) {
		t.Errorf("cov(x,y) = %v, want %v", cov.At(0, 1), 10.0/3.0)
	}
}

func TestMeanAndCovarianceNeedsTwoRows(t *testing.T) {
	acc := newAccumulator(2)
	if err := acc.add([][]float64{{1, 2}}); err != nil {
		t.Fatal(err)
	}
	_, _, err := meanAndCovariance(acc.design())
	if !core.IsInsufficientDataError(err) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}
