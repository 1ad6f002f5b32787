package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sqlc-dev/pqtype"

	"scriptd/internal/jobs"
)

// Store archives finished script runs in Postgres. The archive is
// write-only history; the job registry is never rebuilt from it.
type Store struct {
	DB     *sql.DB
	logger *slog.Logger
}

// New creates a new Store that uses a shared *sql.DB with pooling.
func New(database *sql.DB, logger *slog.Logger) *Store {
	return &Store{DB: database, logger: logger}
}

// Open opens a pooled pgx-backed *sql.DB for dsn.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Basic pool settings; adjust as needed
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// RunParams are the column values of one archived run.
type RunParams struct {
	ID        string
	Status    string
	Code      string
	Output    sql.NullString
	Error     sql.NullString
	StartedAt sql.NullTime
	EndedAt   time.Time
	Record    pqtype.NullRawMessage
}

// RunParamsFromJob maps a terminal job snapshot onto archive columns.
func RunParamsFromJob(job jobs.Job) (RunParams, error) {
	p := RunParams{
		ID:     job.ID,
		Status: string(job.Status),
		Code:   job.Code,
	}
	if job.Output != nil {
		p.Output = sql.NullString{String: *job.Output, Valid: true}
	}
	if job.Error != nil {
		p.Error = sql.NullString{String: *job.Error, Valid: true}
	}
	if job.StartTime != nil {
		p.StartedAt = sql.NullTime{Time: *job.StartTime, Valid: true}
	}
	if job.EndTime != nil {
		p.EndedAt = *job.EndTime
	}

	record, err := json.Marshal(job)
	if err != nil {
		return RunParams{}, err
	}
	p.Record = pqtype.NullRawMessage{RawMessage: record, Valid: true}
	return p, nil
}

const insertRun = `
INSERT INTO script_runs (id, status, code, output, error, started_at, ended_at, record)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`

// InsertRun stores a terminal job. Re-archiving the same id is a no-op.
func (s *Store) InsertRun(ctx context.Context, job jobs.Job) error {
	p, err := RunParamsFromJob(job)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, insertRun,
		p.ID, p.Status, p.Code, p.Output, p.Error, p.StartedAt, p.EndedAt, p.Record)
	return err
}

// Notify archives jobs as they reach a terminal status.
func (s *Store) Notify(ctx context.Context, ev jobs.Event) {
	if !ev.Job.Status.Terminal() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.InsertRun(ctx, ev.Job); err != nil && s.logger != nil {
		s.logger.Warn("archive_insert_failed",
			"script_id", ev.Job.ID,
			"status", string(ev.Job.Status),
			"error", err.Error(),
		)
	}
}
