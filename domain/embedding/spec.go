package embedding

import (
	"infodyn/domain/core"
)

// Spec governs how many past samples, at which spacing, are folded into the
// joint vector for each variable. Destination history uses
// EmbeddingDimension/Delay, source history SourceEmbeddingDimension/
// SourceDelay, and the source block is taken CausalDelay steps behind the
// predicted destination sample. Conditional variables each carry their own
// dimension and delay, concatenated in the order given.
type Spec struct {
	EmbeddingDimension       int   `json:"embedding_dimension"`
	Delay                    int   `json:"delay"`
	SourceEmbeddingDimension int   `json:"source_embedding_dimension"`
	SourceDelay              int   `json:"source_delay"`
	CausalDelay              int   `json:"causal_delay"`
	CondEmbeddingDimensions  []int `json:"cond_embedding_dimensions,omitempty"`
	CondDelays               []int `json:"cond_delays,omitempty"`
}

// Default returns the spec for destination history length k with all other
// parameters at their conventional value of 1.
func Default(k int) Spec {
	return Spec{
		EmbeddingDimension:       k,
		Delay:                    1,
		SourceEmbeddingDimension: 1,
		SourceDelay:              1,
		CausalDelay:              1,
	}
}

// WithConditionals returns a copy embedding each conditional variable with
// the given dimension. Delays default to 1 per conditional when delays is
// nil.
func (s Spec) WithConditionals(dims []int, delays []int) Spec {
	out := s
	out.CondEmbeddingDimensions = append([]int(nil), dims...)
	if delays == nil {
		delays = make([]int, len(dims))
		for i := range delays {
			delays[i] = 1
		}
	}
	out.CondDelays = append([]int(nil), delays...)
	return out
}

// Validate rejects non-positive dimensions or delays and mismatched
// conditional parameter lists.
func (s Spec) Validate() error {
	if s.EmbeddingDimension < 1 {
		return core.NewConfigurationError("embeddingDimension", s.EmbeddingDimension, "must be >= 1")
	}
	if s.Delay < 1 {
		return core.NewConfigurationError("delay", s.Delay, "must be >= 1")
	}
	if s.SourceEmbeddingDimension < 1 {
		return core.NewConfigurationError("sourceEmbeddingDimension", s.SourceEmbeddingDimension, "must be >= 1")
	}
	if s.SourceDelay < 1 {
		return core.NewConfigurationError("sourceDelay", s.SourceDelay, "must be >= 1")
	}
	if s.CausalDelay < 1 {
		return core.NewConfigurationError("causalDelay", s.CausalDelay, "must be >= 1")
	}
	if len(s.CondDelays) != len(s.CondEmbeddingDimensions) {
		return core.NewConfigurationError("conditionalDelays", len(s.CondDelays),
			"must match conditionalEmbeddingDimensions length")
	}
	for i, d := range s.CondEmbeddingDimensions {
		if d < 1 {
			return core.NewConfigurationError("conditionalEmbeddingDimensions", d, "must be >= 1")
		}
		if s.CondDelays[i] < 1 {
			return core.NewConfigurationError("conditionalDelays", s.CondDelays[i], "must be >= 1")
		}
	}
	return nil
}

// NumConditionals returns the number of conditional variables the spec
// embeds.
func (s Spec) NumConditionals() int { return len(s.CondEmbeddingDimensions) }

// WithoutConditionals strips the conditional set, leaving the spec an
// unconditioned transfer-entropy embedding.
func (s Spec) WithoutConditionals() Spec {
	out := s
	out.CondEmbeddingDimensions = nil
	out.CondDelays = nil
	return out
}

// destHistory is the number of samples strictly before the predicted step
// that the destination past requires.
func (s Spec) destHistory() int {
	return 1 + (s.EmbeddingDimension-1)*s.Delay
}

// sourceHistory is the reach of the source past behind the predicted step.
func (s Spec) sourceHistory() int {
	return s.CausalDelay + (s.SourceEmbeddingDimension-1)*s.SourceDelay
}

func (s Spec) condHistory(i int) int {
	return 1 + (s.CondEmbeddingDimensions[i]-1)*s.CondDelays[i]
}

// StartIndex is the first raw time index with enough history for a joint
// vector: the maximum total history length required across all variables.
func (s Spec) StartIndex() int {
	h := s.destHistory()
	if sh := s.sourceHistory(); sh > h {
		h = sh
	}
	for i := range s.CondEmbeddingDimensions {
		if ch := s.condHistory(i); ch > h {
			h = ch
		}
	}
	return h
}

// UsableVectors is the number of joint vectors a series of the given length
// yields: length minus the maximum required history.
func (s Spec) UsableVectors(length int) int {
	return length - s.StartIndex()
}
