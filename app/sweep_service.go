package app

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

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

// SweepService estimates one measure over every ordered channel pair of a
// recording. Pairs run concurrently under a weighted semaphore; per-pair
// surrogate seeds derive from the sweep's master seed through the RNG port,
// so results do not depend on scheduling order.
type SweepService struct {
	ledger ports.LedgerWriterPort
	rng    ports.RNGPort
	logger *internal.Logger
}

// NewSweepService creates a sweep service.
func NewSweepService(ledger ports.LedgerWriterPort, rng ports.RNGPort, logger *internal.Logger) *SweepService {
	return &SweepService{
		ledger: ledger,
		rng:    rng,
		logger: logger.With("sweep"),
	}
}

// SweepRequest configures an all-pairs sweep.
type SweepRequest struct {
	Params run.Parameters

	// Channels restricts the sweep to a subset of the recording's
	// channels; empty sweeps all of them.
	Channels []string

	// Concurrency bounds the number of pairs estimated at once; 0 uses
	// one per CPU.
	Concurrency int
}

// pairJob is one directed pair with its conditioning set resolved.
type pairJob struct {
	channels run.ChannelSet
	idx      channelIndexes
}

// Run sweeps every ordered pair and stores the matrix as one sweep record.
// Pair-level estimator failures are recorded on the pair and the sweep
// continues; cancellation aborts the whole sweep without storing.
func (s *SweepService) Run(ctx context.Context, rec *series.Recording, req SweepRequest) (*run.SweepRecord, error) {
	start := time.Now()

	names, err := sweepChannels(rec, req.Channels)
	if err != nil {
		return nil, err
	}
	if len(names) < 2 {
		return nil, core.NewInsufficientDataError("sweep channels", 2, len(names))
	}

	conditional := req.Params.Measure == measure.ConditionalTransferEntropy
	jobs, err := buildPairJobs(rec, names, conditional)
	if err != nil {
		return nil, err
	}

	dataHash := rec.DataHash()
	sweepKey := req.Params.Fingerprint(dataHash).String()
	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	s.logger.Info("sweeping %d pairs over %d channels (%s, concurrency %d)",
		len(jobs), len(names), req.Params.Measure, concurrency)

	pairs := make([]run.PairValue, len(jobs))
	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup
	for i := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(slot int, job pairJob) {
			defer wg.Done()
			defer sem.Release(1)
			pairs[slot] = s.computePair(ctx, rec, req, job, sweepKey)
		}(i, jobs[i])
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record := run.NewSweepRecord(names, req.Params, dataHash, pairs, time.Since(start).Milliseconds())
	if err := s.ledger.StoreSweep(ctx, record); err != nil {
		return nil, errors.Wrap(err, "failed to store sweep record")
	}
	s.logger.Info("stored sweep %s: %d pairs in %d ms", record.ID, len(pairs), record.RuntimeMs)
	return record, nil
}

// computePair estimates one directed pair with its own calculator. Failures
// land on the pair value so one degenerate pair cannot sink the sweep.
func (s *SweepService) computePair(ctx context.Context, rec *series.Recording, req SweepRequest, job pairJob, sweepKey string) run.PairValue {
	pair := run.PairValue{Source: job.channels.Source, Dest: job.channels.Dest}

	params := withCondEmbeddings(req.Params, len(job.channels.Conds))
	calc, err := estimators.New(estimators.Kind(params.Estimator), params.Measure, params.Embedding, gaussian.Options{
		Normalise:  params.Normalise,
		LogBase:    params.LogBase,
		DetEpsilon: params.DetEpsilon,
	})
	if err != nil {
		pair.Error = err.Error()
		return pair
	}
	if err := loadObservations(rec, calc, job.idx); err != nil {
		pair.Error = err.Error()
		return pair
	}

	avg, err := calc.ComputeAverage()
	if err != nil {
		pair.Error = err.Error()
		return pair
	}
	pair.Value = avg

	if params.Permutations > 0 {
		seed, err := s.pairSeed(ctx, params, job.channels, sweepKey)
		if err != nil {
			pair.Error = err.Error()
			return pair
		}
		sig, err := calc.ComputeSignificance(ctx, measure.SignificanceRequest{
			Permutations: params.Permutations,
			Seed:         seed,
			Workers:      1,
		})
		if err != nil {
			pair.Error = err.Error()
			return pair
		}
		pair.Significance = sig
	}
	return pair
}

// pairSeed derives this pair's surrogate seed from the sweep master seed,
// keyed on the sweep fingerprint and the pair's channel key.
func (s *SweepService) pairSeed(ctx context.Context, params run.Parameters, channels run.ChannelSet, sweepKey string) (int64, error) {
	if params.Seed == 0 {
		return 0, nil
	}
	stream, err := s.rng.Stream(ctx, sweepKey, "significance", channels.Key(), params.Seed)
	if err != nil {
		return 0, err
	}
	return stream.Int63(), nil
}

// sweepChannels resolves the requested channel subset, defaulting to every
// channel in recording order.
func sweepChannels(rec *series.Recording, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return append([]string(nil), rec.Names...), nil
	}
	seen := make(map[string]bool, len(requested))
	names := make([]string, 0, len(requested))
	for _, name := range requested {
		if rec.ChannelIndex(name) < 0 {
			return nil, core.NewNotFoundError("channel", name)
		}
		if seen[name] {
			return nil, core.NewConfigurationError("channels", name, "listed twice")
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

// buildPairJobs enumerates ordered pairs in channel order. Conditional
// sweeps condition each pair on every other swept channel.
func buildPairJobs(rec *series.Recording, names []string, conditional bool) ([]pairJob, error) {
	jobs := make([]pairJob, 0, len(names)*(len(names)-1))
	for _, src := range names {
		for _, dst := range names {
			if src == dst {
				continue
			}
			channels := run.ChannelSet{Source: src, Dest: dst}
			if conditional {
				for _, other := range names {
					if other != src && other != dst {
						channels.Conds = append(channels.Conds, other)
					}
				}
			}
			idx, err := resolveChannels(rec, channels)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, pairJob{channels: channels, idx: idx})
		}
	}
	return jobs, nil
}
