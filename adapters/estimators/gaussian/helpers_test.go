package gaussian

import (
	"math/rand"

	"infodyn/domain/series"
)

// gaussianSeries draws n independent standard-normal samples as a
// univariate series.
func gaussianSeries(rng *rand.Rand, n int) *series.Multi {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = rng.NormFloat64()
	}
	s, err := series.FromValues(vals)
	if err != nil {
		panic(err)
	}
	return s
}

// coupledPair draws a source/destination pair where every destination
// sample leans on the previous source sample:
//
//	dest[t] = coupling*src[t-1] + noise[t]
func coupledPair(rng *rand.Rand, n int, coupling float64) (src, dest *series.Multi) {
	srcVals := make([]float64, n)
	destVals := make([]float64, n)
	for t := 0; t < n; t++ {
		srcVals[t] = rng.NormFloat64()
		destVals[t] = rng.NormFloat64()
		if t > 0 {
			destVals[t] += coupling * srcVals[t-1]
		}
	}
	src, err := series.FromValues(srcVals)
	if err != nil {
		panic(err)
	}
	dest, err = series.FromValues(destVals)
	if err != nil {
		panic(err)
	}
	return src, dest
}

func pairObs(dest, src *series.Multi) series.Observations {
	return series.Observations{Dest: dest, Source: src}
}

func meanOf(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
