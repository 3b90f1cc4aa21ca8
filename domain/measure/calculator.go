package measure

import (
	"context"

	"infodyn/domain/embedding"
	"infodyn/domain/series"
)

// Calculator is the capability contract every estimator variant implements,
// whatever its density model. Callers hold calculators interchangeably
// through this interface and select concrete variants by composition at
// construction time.
//
// Lifecycle: a calculator is constructed against a fixed configuration,
// supplied observations (SetObservations to replace, AddObservations to pool
// further disjoint realizations into the same estimate), then queried.
// Querying before any observations yields ErrNotInitialised.
type Calculator interface {
	// Name identifies the concrete estimator, e.g. "gaussian_cte".
	Name() string

	// Measure identifies the estimated quantity.
	Measure() Measure

	// Initialise re-configures the embedding and resets all accumulated
	// observations. Invalid dimensions or delays yield ErrConfiguration.
	Initialise(spec embedding.Spec) error

	// SetObservations resets accumulated state and loads one realization.
	SetObservations(obs series.Observations) error

	// AddObservations pools a further disjoint realization into the
	// accumulated estimate.
	AddObservations(obs series.Observations) error

	// ComputeAverage returns the average estimate over all pooled
	// observations.
	ComputeAverage() (float64, error)

	// ComputeLocal returns one value per usable time step, ordered, whose
	// arithmetic mean equals ComputeAverage.
	ComputeLocal() ([]float64, error)

	// ComputeSignificance runs a surrogate permutation test against the
	// stored observations without mutating them.
	ComputeSignificance(ctx context.Context, req SignificanceRequest) (*Significance, error)

	// NumObservations reports the pooled usable vector count.
	NumObservations() int

	// Units names the output units implied by the configured log base.
	Units() string
}
