package embedding

import (
	"infodyn/domain/core"
	"infodyn/domain/series"
)

// Layout records where each sub-vector lands inside a joint vector. The
// concatenation order is fixed: destination-past, destination-next,
// source-past, conditional-pasts.
type Layout struct {
	DestPastDim   int
	DestNextDim   int
	SourcePastDim int
	CondPastDim   int
	TotalDim      int
}

func spanIdx(offset, length int) []int {
	idx := make([]int, length)
	for i := range idx {
		idx[i] = offset + i
	}
	return idx
}

// DestPastIdx returns the joint-vector indices of the destination past.
func (l Layout) DestPastIdx() []int { return spanIdx(0, l.DestPastDim) }

// DestNextIdx returns the indices of the predicted destination sample.
func (l Layout) DestNextIdx() []int { return spanIdx(l.DestPastDim, l.DestNextDim) }

// SourcePastIdx returns the indices of the source past.
func (l Layout) SourcePastIdx() []int {
	return spanIdx(l.DestPastDim+l.DestNextDim, l.SourcePastDim)
}

// CondPastIdx returns the indices of all conditional pasts.
func (l Layout) CondPastIdx() []int {
	return spanIdx(l.DestPastDim+l.DestNextDim+l.SourcePastDim, l.CondPastDim)
}

// ConditioningIdx returns the indices conditioned on in the transfer-entropy
// identity: destination past plus every conditional past.
func (l Layout) ConditioningIdx() []int {
	idx := l.DestPastIdx()
	return append(idx, l.CondPastIdx()...)
}

// NewLayout computes sub-vector extents for the given variable widths.
func NewLayout(s Spec, destW, sourceW int, condWs []int) Layout {
	lay := Layout{
		DestPastDim:   s.EmbeddingDimension * destW,
		DestNextDim:   destW,
		SourcePastDim: s.SourceEmbeddingDimension * sourceW,
	}
	for i, w := range condWs {
		lay.CondPastDim += s.CondEmbeddingDimensions[i] * w
	}
	lay.TotalDim = lay.DestPastDim + lay.DestNextDim + lay.SourcePastDim + lay.CondPastDim
	return lay
}

// Build assembles one joint vector per usable time step. Within each past
// sub-vector samples run most recent first. All series must already be
// equal length (Observations.Validate enforces this); the conditional series
// count must match the spec's conditional set.
func Build(s Spec, obs series.Observations) ([][]float64, Layout, error) {
	if err := s.Validate(); err != nil {
		return nil, Layout{}, err
	}
	if err := obs.Validate(); err != nil {
		return nil, Layout{}, err
	}
	if len(obs.Conds) != s.NumConditionals() {
		return nil, Layout{}, core.NewDimensionMismatchError("conditional series count",
			s.NumConditionals(), len(obs.Conds))
	}

	length := obs.Dest.Len()
	start := s.StartIndex()
	usable := s.UsableVectors(length)
	if usable < 1 {
		return nil, Layout{}, core.NewInsufficientDataError("joint embedding", start+1, length)
	}

	condWs := make([]int, len(obs.Conds))
	for i, c := range obs.Conds {
		condWs[i] = c.Width()
	}
	lay := NewLayout(s, obs.Dest.Width(), obs.Source.Width(), condWs)

	rows := make([][]float64, usable)
	for r := 0; r < usable; r++ {
		n := start + r
		row := make([]float64, 0, lay.TotalDim)

		for j := 0; j < s.EmbeddingDimension; j++ {
			t := n - 1 - j*s.Delay
			for c := 0; c < obs.Dest.Width(); c++ {
				row = append(row, obs.Dest.At(t, c))
			}
		}
		for c := 0; c < obs.Dest.Width(); c++ {
			row = append(row, obs.Dest.At(n, c))
		}
		for j := 0; j < s.SourceEmbeddingDimension; j++ {
			t := n - s.CausalDelay - j*s.SourceDelay
			for c := 0; c < obs.Source.Width(); c++ {
				row = append(row, obs.Source.At(t, c))
			}
		}
		for ci, cond := range obs.Conds {
			for j := 0; j < s.CondEmbeddingDimensions[ci]; j++ {
				t := n - 1 - j*s.CondDelays[ci]
				for c := 0; c < cond.Width(); c++ {
					row = append(row, cond.At(t, c))
				}
			}
		}
		rows[r] = row
	}
	return rows, lay, nil
}
