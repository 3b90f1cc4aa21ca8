// Package postgres implements the durable run ledger. Records are stored
// whole as JSONB with scalar columns alongside for filtering, so the schema
// never chases the record shape.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"infodyn/domain/core"
	"infodyn/domain/run"
	"infodyn/ports"
)

// RunRepository implements ports.LedgerPort for PostgreSQL.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

var _ ports.LedgerPort = (*RunRepository)(nil)

// StoreRun validates and inserts a run record. The ledger is append-only:
// a duplicate ID is a conflict, not an update.
func (r *RunRepository) StoreRun(ctx context.Context, rec *run.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analysis_runs (id, source, dest, measure, status, fingerprint, record, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID.String(), rec.Channels.Source, rec.Channels.Dest,
		string(rec.Params.Measure), string(rec.Status), rec.Fingerprint.String(),
		payload, rec.CreatedAt.Time())
	if isUniqueViolation(err) {
		return core.NewConfigurationError("run_id", rec.ID.String(), "already stored")
	}
	return err
}

// StoreSweep inserts a sweep record.
func (r *RunRepository) StoreSweep(ctx context.Context, rec *run.SweepRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal sweep record: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analysis_sweeps (id, measure, record, created_at)
		VALUES ($1, $2, $3, $4)`,
		rec.ID.String(), string(rec.Params.Measure), payload, rec.CreatedAt.Time())
	if isUniqueViolation(err) {
		return core.NewConfigurationError("sweep_id", rec.ID.String(), "already stored")
	}
	return err
}

// GetRun retrieves a run by ID.
func (r *RunRepository) GetRun(ctx context.Context, runID core.RunID) (*run.Record, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT record FROM analysis_runs WHERE id = $1`, runID.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec run.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal run record %s: %w", runID, err)
	}
	return &rec, nil
}

// ListRuns retrieves runs newest-first, honouring the filters.
func (r *RunRepository) ListRuns(ctx context.Context, filters ports.RunFilters) ([]*run.Record, error) {
	query := `SELECT record FROM analysis_runs WHERE 1=1`
	args := []interface{}{}
	n := 0
	add := func(clause string, value interface{}) {
		n++
		query += fmt.Sprintf(" AND %s = $%d", clause, n)
		args = append(args, value)
	}
	if filters.Measure != nil {
		add("measure", *filters.Measure)
	}
	if filters.Source != nil {
		add("source", *filters.Source)
	}
	if filters.Dest != nil {
		add("dest", *filters.Dest)
	}
	query += " ORDER BY created_at DESC"
	if filters.Limit > 0 {
		n++
		query += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, filters.Limit)
	}
	if filters.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filters.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*run.Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec run.Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal run record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// GetSweep retrieves a sweep by ID.
func (r *RunRepository) GetSweep(ctx context.Context, sweepID core.SweepID) (*run.SweepRecord, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT record FROM analysis_sweeps WHERE id = $1`, sweepID.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrSweepNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec run.SweepRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal sweep record %s: %w", sweepID, err)
	}
	return &rec, nil
}

// ListSweeps retrieves sweeps newest-first.
func (r *RunRepository) ListSweeps(ctx context.Context, limit, offset int) ([]*run.SweepRecord, error) {
	query := `SELECT record FROM analysis_sweeps ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
		if offset > 0 {
			query += " OFFSET $2"
			args = append(args, offset)
		}
	} else if offset > 0 {
		query += " OFFSET $1"
		args = append(args, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*run.SweepRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec run.SweepRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal sweep record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
