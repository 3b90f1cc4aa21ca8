// Package app wires the estimator domain to its ports: resolving channels
// out of loaded recordings, running measures, and appending the outcomes to
// the run ledger.
package app

import (
	"context"
	"time"

	"infodyn/adapters/estimators"
	"infodyn/adapters/estimators/gaussian"
	"infodyn/domain/core"
	"infodyn/domain/measure"
	"infodyn/domain/run"
	"infodyn/domain/series"
	"infodyn/internal"
	"infodyn/internal/errors"
	"infodyn/ports"
)

// AnalysisService runs one information measure over named channels of a
// recording and appends the outcome to the ledger. Estimator failures are
// stored as failed records so every attempted configuration stays
// auditable; only unresolvable requests and ledger failures surface as
// errors.
type AnalysisService struct {
	ledger ports.LedgerWriterPort
	rng    ports.RNGPort
	logger *internal.Logger
}

// NewAnalysisService creates an analysis service.
func NewAnalysisService(ledger ports.LedgerWriterPort, rng ports.RNGPort, logger *internal.Logger) *AnalysisService {
	return &AnalysisService{
		ledger: ledger,
		rng:    rng,
		logger: logger.With("analysis"),
	}
}

// AnalysisRequest selects channels out of a recording and configures the
// estimator for one run.
type AnalysisRequest struct {
	Channels run.ChannelSet
	Params   run.Parameters

	// Workers bounds the significance test's parallelism; 0 uses one
	// worker per CPU.
	Workers int

	// WithLocals stores the per-step local values alongside the average.
	WithLocals bool
}

// Run executes the requested analysis over the recording and stores the
// outcome. The returned record carries either the result or the failure.
func (s *AnalysisService) Run(ctx context.Context, rec *series.Recording, req AnalysisRequest) (*run.Record, error) {
	start := time.Now()

	idx, err := resolveChannels(rec, req.Channels)
	if err != nil {
		return nil, err
	}
	params := withCondEmbeddings(req.Params, len(req.Channels.Conds))

	calc, err := estimators.New(estimators.Kind(params.Estimator), params.Measure, params.Embedding, gaussian.Options{
		Normalise:  params.Normalise,
		LogBase:    params.LogBase,
		DetEpsilon: params.DetEpsilon,
	})
	if err != nil {
		return nil, err
	}

	dataHash := rec.DataHash()
	s.logger.Debug("running %s over %s (%d epochs)", params.Measure, req.Channels.Key(), len(rec.Epochs))

	result, sig, runErr := s.compute(ctx, rec, req, params, calc, idx, dataHash)
	elapsed := time.Since(start).Milliseconds()

	var record *run.Record
	if runErr != nil {
		if ctx.Err() != nil {
			return nil, runErr
		}
		s.logger.Warn("run over %s failed: %v", req.Channels.Key(), runErr)
		record = run.NewFailedRecord(req.Channels, params, dataHash, runErr, elapsed)
	} else {
		record = run.NewRecord(req.Channels, params, dataHash, result, sig, elapsed)
	}

	if err := s.ledger.StoreRun(ctx, record); err != nil {
		return nil, errors.Wrap(err, "failed to store run record")
	}
	if runErr == nil {
		s.logger.Info("stored run %s: %s(%s) = %.6f %s", record.ID, params.Measure, req.Channels.Key(), result.AverageValue, result.Units)
	}
	return record, nil
}

func (s *AnalysisService) compute(ctx context.Context, rec *series.Recording, req AnalysisRequest, params run.Parameters, calc measure.Calculator, idx channelIndexes, dataHash core.DataHash) (*measure.Result, *measure.Significance, error) {
	if err := loadObservations(rec, calc, idx); err != nil {
		return nil, nil, err
	}

	avg, err := calc.ComputeAverage()
	if err != nil {
		return nil, nil, err
	}
	result := &measure.Result{
		Measure:         params.Measure,
		AverageValue:    avg,
		NumObservations: calc.NumObservations(),
		Units:           calc.Units(),
		ComputedAt:      core.Now(),
	}
	if req.WithLocals {
		locals, err := calc.ComputeLocal()
		if err != nil {
			return nil, nil, err
		}
		result.LocalValues = locals
	}

	var sig *measure.Significance
	if params.Permutations > 0 {
		seed, err := s.surrogateSeed(ctx, params, req.Channels, dataHash)
		if err != nil {
			return nil, nil, err
		}
		sig, err = calc.ComputeSignificance(ctx, measure.SignificanceRequest{
			Permutations: params.Permutations,
			Seed:         seed,
			Workers:      req.Workers,
		})
		if err != nil {
			return nil, nil, err
		}
	}
	return result, sig, nil
}

// surrogateSeed derives the permutation seed for one run. A non-zero master
// seed expands through the RNG port keyed on the run fingerprint and the
// channel pair, so a replay of the same configuration over the same data
// draws the same surrogates. Seed zero defers to the calculator's clock
// seeding.
func (s *AnalysisService) surrogateSeed(ctx context.Context, params run.Parameters, channels run.ChannelSet, dataHash core.DataHash) (int64, error) {
	if params.Seed == 0 {
		return 0, nil
	}
	stream, err := s.rng.Stream(ctx, params.Fingerprint(dataHash).String(), "significance", channels.Key(), params.Seed)
	if err != nil {
		return 0, err
	}
	return stream.Int63(), nil
}

type channelIndexes struct {
	source int
	dest   int
	conds  []int
}

func resolveChannels(rec *series.Recording, channels run.ChannelSet) (channelIndexes, error) {
	idx := channelIndexes{
		source: rec.ChannelIndex(channels.Source),
		dest:   rec.ChannelIndex(channels.Dest),
	}
	if idx.source < 0 {
		return idx, core.NewNotFoundError("channel", channels.Source)
	}
	if idx.dest < 0 {
		return idx, core.NewNotFoundError("channel", channels.Dest)
	}
	if channels.Source == channels.Dest {
		return idx, core.NewConfigurationError("channels", channels.Key(), "source and dest must differ")
	}
	for _, name := range channels.Conds {
		ci := rec.ChannelIndex(name)
		if ci < 0 {
			return idx, core.NewNotFoundError("channel", name)
		}
		idx.conds = append(idx.conds, ci)
	}
	return idx, nil
}

// withCondEmbeddings fills per-conditional embedding dimensions when the
// caller named conditioning channels but left the spec's conditional
// dimensions empty. Explicitly set dimensions pass through untouched and
// are validated by the calculator.
func withCondEmbeddings(params run.Parameters, condCount int) run.Parameters {
	if condCount == 0 || len(params.Embedding.CondEmbeddingDimensions) != 0 {
		return params
	}
	dims := make([]int, condCount)
	for i := range dims {
		dims[i] = 1
	}
	params.Embedding = params.Embedding.WithConditionals(dims, nil)
	return params
}

// loadObservations feeds every epoch of the recording into the calculator,
// pooling disjoint realizations into one estimate.
func loadObservations(rec *series.Recording, calc measure.Calculator, idx channelIndexes) error {
	for e := range rec.Epochs {
		obs, err := epochObservations(rec, e, idx)
		if err != nil {
			return err
		}
		if e == 0 {
			err = calc.SetObservations(obs)
		} else {
			err = calc.AddObservations(obs)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func epochObservations(rec *series.Recording, epoch int, idx channelIndexes) (series.Observations, error) {
	dest, err := rec.Channel(epoch, idx.dest)
	if err != nil {
		return series.Observations{}, err
	}
	src, err := rec.Channel(epoch, idx.source)
	if err != nil {
		return series.Observations{}, err
	}
	obs := series.Observations{Dest: dest, Source: src}
	for _, ci := range idx.conds {
		cond, err := rec.Channel(epoch, ci)
		if err != nil {
			return series.Observations{}, err
		}
		obs.Conds = append(obs.Conds, cond)
	}
	return obs, nil
}
