package series

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"infodyn/domain/core"
)

// Multi is an ordered sequence of real-valued samples, scalar (W==1) or
// fixed-width vector per time step. Stored row-major; immutable once built.
// Calculators reference, never copy, the caller's loaded data.
type Multi struct {
	t    int
	w    int
	data []float64
}

// FromRows builds a series from per-time-step samples. Every row must have
// the same width and every value must be finite.
func FromRows(rows [][]float64) (*Multi, error) {
	if len(rows) == 0 {
		return nil, core.NewInsufficientDataError("series", 1, 0)
	}
	w := len(rows[0])
	if w == 0 {
		return nil, core.NewDimensionMismatchError("sample width", 1, 0)
	}
	data := make([]float64, 0, len(rows)*w)
	for t, row := range rows {
		if len(row) != w {
			return nil, core.NewDimensionMismatchError(fmt.Sprintf("row %d width", t), w, len(row))
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite sample %v at (%d,%d)", core.ErrDimensionMismatch, v, t, j)
			}
			data = append(data, v)
		}
	}
	return &Multi{t: len(rows), w: w, data: data}, nil
}

// FromValues builds a scalar (width 1) series.
func FromValues(vals []float64) (*Multi, error) {
	if len(vals) == 0 {
		return nil, core.NewInsufficientDataError("series", 1, 0)
	}
	data := make([]float64, len(vals))
	for t, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite sample %v at index %d", core.ErrDimensionMismatch, v, t)
		}
		data[t] = v
	}
	return &Multi{t: len(vals), w: 1, data: data}, nil
}

// FromColumns builds a series whose per-step vector is assembled from
// equal-length columns.
func FromColumns(cols [][]float64) (*Multi, error) {
	if len(cols) == 0 {
		return nil, core.NewDimensionMismatchError("column count", 1, 0)
	}
	t := len(cols[0])
	if t == 0 {
		return nil, core.NewInsufficientDataError("series", 1, 0)
	}
	w := len(cols)
	data := make([]float64, t*w)
	for j, col := range cols {
		if len(col) != t {
			return nil, core.NewDimensionMismatchError(fmt.Sprintf("column %d length", j), t, len(col))
		}
		for i, v := range col {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite sample %v at (%d,%d)", core.ErrDimensionMismatch, v, i, j)
			}
			data[i*w+j] = v
		}
	}
	return &Multi{t: t, w: w, data: data}, nil
}

// Len returns the number of time steps.
func (m *Multi) Len() int { return m.t }

// Width returns the number of components per time step.
func (m *Multi) Width() int { return m.w }

// At returns component j of the sample at time step t.
func (m *Multi) At(t, j int) float64 { return m.data[t*m.w+j] }

// Row copies the sample vector at time step t into dst, allocating when dst
// is nil or too short.
func (m *Multi) Row(t int, dst []float64) []float64 {
	if cap(dst) < m.w {
		dst = make([]float64, m.w)
	}
	dst = dst[:m.w]
	copy(dst, m.data[t*m.w:(t+1)*m.w])
	return dst
}

// Column copies component j across all time steps.
func (m *Multi) Column(j int) []float64 {
	out := make([]float64, m.t)
	for t := 0; t < m.t; t++ {
		out[t] = m.data[t*m.w+j]
	}
	return out
}

// Normalised returns a copy with every component rescaled to zero mean and
// unit variance. A zero-variance component cannot be rescaled and would
// produce a singular covariance downstream, so it fails immediately.
func (m *Multi) Normalised() (*Multi, error) {
	out := &Multi{t: m.t, w: m.w, data: make([]float64, len(m.data))}
	col := make([]float64, m.t)
	for j := 0; j < m.w; j++ {
		for t := 0; t < m.t; t++ {
			col[t] = m.data[t*m.w+j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 {
			return nil, core.NewDegeneracyError(fmt.Sprintf("series component %d", j), "zero variance")
		}
		for t := 0; t < m.t; t++ {
			out.data[t*m.w+j] = (col[t] - mean) / std
		}
	}
	return out, nil
}

// Observations bundles the variables of one realization: destination, source
// and zero or more conditional series.
type Observations struct {
	Dest   *Multi
	Source *Multi
	Conds  []*Multi
}

// Validate checks presence and equal length across all variables.
func (o Observations) Validate() error {
	if o.Dest == nil || o.Source == nil {
		return core.NewNotInitialisedError("observations missing destination or source series")
	}
	n := o.Dest.Len()
	if o.Source.Len() != n {
		return core.NewDimensionMismatchError("source series length", n, o.Source.Len())
	}
	for i, c := range o.Conds {
		if c == nil {
			return core.NewDimensionMismatchError(fmt.Sprintf("conditional series %d", i), n, 0)
		}
		if c.Len() != n {
			return core.NewDimensionMismatchError(fmt.Sprintf("conditional series %d length", i), n, c.Len())
		}
	}
	return nil
}
