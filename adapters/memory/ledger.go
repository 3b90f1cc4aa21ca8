// Package memory implements the run ledger over process-local maps. It is
// the default backend for the CLI and for tests; the postgres adapter
// provides the durable equivalent.
package memory

import (
	"context"
	"sync"

	"infodyn/domain/core"
	"infodyn/domain/run"
	"infodyn/ports"
)

// Ledger implements ports.LedgerPort with in-memory storage.
type Ledger struct {
	mu     sync.RWMutex
	runs   map[core.RunID]*run.Record
	sweeps map[core.SweepID]*run.SweepRecord
	// insertion order, newest last
	runOrder   []core.RunID
	sweepOrder []core.SweepID
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		runs:   make(map[core.RunID]*run.Record),
		sweeps: make(map[core.SweepID]*run.SweepRecord),
	}
}

var _ ports.LedgerPort = (*Ledger)(nil)

// StoreRun validates and appends a run record. Records are append-only: a
// duplicate ID is rejected rather than overwritten.
func (l *Ledger) StoreRun(ctx context.Context, rec *run.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.runs[rec.ID]; exists {
		return core.NewConfigurationError("run_id", rec.ID.String(), "already stored")
	}
	cp := *rec
	l.runs[rec.ID] = &cp
	l.runOrder = append(l.runOrder, rec.ID)
	return nil
}

// StoreSweep appends a sweep record.
func (l *Ledger) StoreSweep(ctx context.Context, rec *run.SweepRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.sweeps[rec.ID]; exists {
		return core.NewConfigurationError("sweep_id", rec.ID.String(), "already stored")
	}
	cp := *rec
	l.sweeps[rec.ID] = &cp
	l.sweepOrder = append(l.sweepOrder, rec.ID)
	return nil
}

// GetRun returns a stored run by ID.
func (l *Ledger) GetRun(ctx context.Context, runID core.RunID) (*run.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.runs[runID]
	if !ok {
		return nil, core.ErrRunNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListRuns returns stored runs newest-first, honouring the filters.
func (l *Ledger) ListRuns(ctx context.Context, filters ports.RunFilters) ([]*run.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*run.Record
	skipped := 0
	for i := len(l.runOrder) - 1; i >= 0; i-- {
		rec := l.runs[l.runOrder[i]]
		if !matches(rec, filters) {
			continue
		}
		if skipped < filters.Offset {
			skipped++
			continue
		}
		cp := *rec
		out = append(out, &cp)
		if filters.Limit > 0 && len(out) >= filters.Limit {
			break
		}
	}
	return out, nil
}

func matches(rec *run.Record, filters ports.RunFilters) bool {
	if filters.Measure != nil && string(rec.Params.Measure) != *filters.Measure {
		return false
	}
	if filters.Source != nil && rec.Channels.Source != *filters.Source {
		return false
	}
	if filters.Dest != nil && rec.Channels.Dest != *filters.Dest {
		return false
	}
	return true
}

// GetSweep returns a stored sweep by ID.
func (l *Ledger) GetSweep(ctx context.Context, sweepID core.SweepID) (*run.SweepRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.sweeps[sweepID]
	if !ok {
		return nil, core.ErrSweepNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListSweeps returns stored sweeps newest-first.
func (l *Ledger) ListSweeps(ctx context.Context, limit, offset int) ([]*run.SweepRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*run.SweepRecord
	skipped := 0
	for i := len(l.sweepOrder) - 1; i >= 0; i-- {
		if skipped < offset {
			skipped++
			continue
		}
		cp := *l.sweeps[l.sweepOrder[i]]
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
