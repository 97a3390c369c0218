package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/seqops/sra-pipeline/constants"
)

// Session is a private ledger handle for one unit of work. It wraps a single
// checked-out connection so concurrent workers never mutate shared state.
type Session struct {
	conn *sqlx.Conn
	log  *slog.Logger
}

// Close returns the connection to the pool.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Get returns the record for an accession, or sql.ErrNoRows.
func (s *Session) Get(ctx context.Context, accession string) (*JobRecord, error) {
	var rec JobRecord
	query := s.conn.Rebind("SELECT * FROM jobs WHERE accession = ?")
	if err := s.conn.GetContext(ctx, &rec, query, accession); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetOrCreate returns the existing record for the accession, or inserts a
// fresh one with every step Pending. Repeated calls never reset statuses.
func (s *Session) GetOrCreate(ctx context.Context, accession, sourceFile string) (*JobRecord, error) {
	rec, err := s.Get(ctx, accession)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup job %s: %w", accession, err)
	}

	now := time.Now().UTC()
	insert := s.conn.Rebind(`
		INSERT INTO jobs (accession, source_file, pipeline_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`)
	if _, err := s.conn.ExecContext(ctx, insert, accession, sourceFile, constants.PipelinePending, now, now); err != nil {
		// A concurrent worker may have inserted the same accession; re-read
		// before giving up.
		if rec, rerr := s.Get(ctx, accession); rerr == nil {
			return rec, nil
		}
		return nil, fmt.Errorf("create job %s: %w", accession, err)
	}

	s.log.Info("job record created", "accession", accession, "source_file", sourceFile)
	return s.Get(ctx, accession)
}

// UpdateStep sets one step's status and re-derives the aggregate pipeline
// status in the same transaction, so the two are never out of sync. An
// unknown accession is logged and ignored.
func (s *Session) UpdateStep(ctx context.Context, accession string, step constants.StepName, status constants.StepStatus) error {
	col, ok := stepColumn(step)
	if !ok {
		return fmt.Errorf("unknown step name %q", step)
	}

	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin step update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var rec JobRecord
	if err := tx.GetContext(ctx, &rec, tx.Rebind("SELECT * FROM jobs WHERE accession = ?"), accession); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.log.Warn("step update for unknown accession", "accession", accession, "step", step)
			return nil
		}
		return fmt.Errorf("read job %s: %w", accession, err)
	}

	rec.SetStep(step, status)
	pipeline := Derive(rec.StepStatuses())

	update := tx.Rebind("UPDATE jobs SET " + col + " = ?, pipeline_status = ?, updated_at = ? WHERE accession = ?")
	if _, err := tx.ExecContext(ctx, update, status, pipeline, time.Now().UTC(), accession); err != nil {
		return fmt.Errorf("update step %s for %s: %w", step, accession, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit step update for %s: %w", accession, err)
	}

	s.log.Debug("step status updated",
		"accession", accession,
		"step", step,
		"status", status,
		"pipeline_status", pipeline,
	)
	return nil
}
