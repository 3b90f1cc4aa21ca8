package ports

import (
	"context"

	"infodyn/domain/core"
	"infodyn/domain/run"
)

// LedgerWriterPort provides append-only write access to completed analysis
// records. Writes never update in place: a re-run gets a new run ID.
type LedgerWriterPort interface {
	StoreRun(ctx context.Context, rec *run.Record) error
	StoreSweep(ctx context.Context, rec *run.SweepRecord) error
}

// LedgerReaderPort provides read-only access to stored records for queries,
// replay, and API access.
type LedgerReaderPort interface {
	GetRun(ctx context.Context, runID core.RunID) (*run.Record, error)
	ListRuns(ctx context.Context, filters RunFilters) ([]*run.Record, error)
	GetSweep(ctx context.Context, sweepID core.SweepID) (*run.SweepRecord, error)
	ListSweeps(ctx context.Context, limit, offset int) ([]*run.SweepRecord, error)
}

// RunFilters narrows run listings.
type RunFilters struct {
	Measure *string
	Source  *string
	Dest    *string
	Limit   int
	Offset  int
}

// LedgerPort combines read and write access for callers that own both
// sides, such as the analysis services.
type LedgerPort interface {
	LedgerWriterPort
	LedgerReaderPort
}
