// Package jobs persists export jobs in the export_jobs table.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/lcaexport/backend/internal/util"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"

	// StatusRetrying is a job whose last attempt failed and that waits in the
	// retry queue. Error holds the last failure.
	StatusRetrying = "retrying"
)

// maxErrorRunes bounds the stored failure reason.
const maxErrorRunes = 2000

var ErrNotFound = errors.New("export job not found")

type Job struct {
	ID          string    `json:"id"`
	ModelID     string    `json:"model_id"`
	Version     string    `json:"version"`
	Commit      string    `json:"commit"`
	Solve       bool      `json:"solve"`
	Status      string    `json:"status"`
	Error       *string   `json:"error,omitempty"`
	SnapshotKey *string   `json:"snapshot_key,omitempty"`
	ResultKey   *string   `json:"result_key,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store is the job table as seen by the API and the worker.
type Store interface {
	Create(ctx context.Context, job Job) (Job, error)
	Get(ctx context.Context, id string) (Job, error)
	MarkRunning(ctx context.Context, id string) error
	MarkDone(ctx context.Context, id string, snapshotKey string, resultKey *string) error
	MarkRetrying(ctx context.Context, id string, reason string) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

// NewID returns a URL-safe job id.
func NewID() (string, error) {
	return gonanoid.New()
}

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgStore struct {
	db dbConn
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{db: pool}
}

func (s *PgStore) Create(ctx context.Context, job Job) (Job, error) {
	if job.ID == "" {
		id, err := NewID()
		if err != nil {
			return Job{}, err
		}
		job.ID = id
	}
	job.Status = StatusQueued
	err := s.db.QueryRow(ctx, insertJobSQL, job.ID, job.ModelID, job.Version, job.Commit, job.Solve).
		Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return Job{}, fmt.Errorf("failed to insert export job: %w", err)
	}
	return job, nil
}

func (s *PgStore) Get(ctx context.Context, id string) (Job, error) {
	var job Job
	err := s.db.QueryRow(ctx, getJobSQL, id).Scan(
		&job.ID, &job.ModelID, &job.Version, &job.Commit, &job.Solve, &job.Status,
		&job.Error, &job.SnapshotKey, &job.ResultKey, &job.CreatedAt, &job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("failed to get export job %s: %w", id, err)
	}
	return job, nil
}

func (s *PgStore) MarkRunning(ctx context.Context, id string) error {
	return s.update(ctx, id, updateStatusSQL, id, StatusRunning)
}

func (s *PgStore) MarkDone(ctx context.Context, id string, snapshotKey string, resultKey *string) error {
	return s.update(ctx, id, markDoneSQL, id, snapshotKey, resultKey)
}

func (s *PgStore) MarkRetrying(ctx context.Context, id string, reason string) error {
	return s.update(ctx, id, markRetryingSQL, id, util.SanitizeDBText(reason, maxErrorRunes))
}

func (s *PgStore) MarkFailed(ctx context.Context, id string, reason string) error {
	return s.update(ctx, id, markFailedSQL, id, util.SanitizeDBText(reason, maxErrorRunes))
}

func (s *PgStore) update(ctx context.Context, id, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to update export job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const insertJobSQL = `
INSERT INTO export_jobs (id, model_id, version, commit_id, solve, status)
VALUES ($1, $2, $3, $4, $5, 'queued')
RETURNING created_at, updated_at;
`

const getJobSQL = `
SELECT id, model_id, version, commit_id, solve, status, error, snapshot_key, result_key, created_at, updated_at
FROM export_jobs
WHERE id = $1;
`

const updateStatusSQL = `
UPDATE export_jobs
SET status = $2, error = NULL, updated_at = now()
WHERE id = $1;
`

const markDoneSQL = `
UPDATE export_jobs
SET status = 'done', error = NULL, snapshot_key = $2, result_key = $3, updated_at = now()
WHERE id = $1;
`

const markRetryingSQL = `
UPDATE export_jobs
SET status = 'retrying', error = $2, updated_at = now()
WHERE id = $1;
`

const markFailedSQL = `
UPDATE export_jobs
SET status = 'failed', error = $2, updated_at = now()
WHERE id = $1;
`
