package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"medscan-registration/internal/domain"
	"medscan-registration/internal/domain/model"
	"medscan-registration/internal/domain/ports/repository"
)

var _ repository.ScanJobRepository = (*scanJobRepo)(nil)

// scanJobRepo journals every extraction job and its terminal outcome.
//
// Schema:
//
//	CREATE TABLE scan_jobs (
//	    id          TEXT PRIMARY KEY,
//	    user_id     TEXT NOT NULL,
//	    status      TEXT NOT NULL,
//	    won_by      TEXT NOT NULL DEFAULT '',
//	    attempts    INT  NOT NULL DEFAULT 0,
//	    last_error  TEXT NOT NULL DEFAULT '',
//	    created_at  TIMESTAMPTZ NOT NULL,
//	    updated_at  TIMESTAMPTZ NOT NULL,
//	    resolved_at TIMESTAMPTZ
//	);
//	CREATE INDEX scan_jobs_user_idx ON scan_jobs (user_id, created_at DESC);
type scanJobRepo struct {
	pool *pgxpool.Pool
}

func NewScanJobRepo(pool *pgxpool.Pool) *scanJobRepo {
	return &scanJobRepo{pool: pool}
}

func (r *scanJobRepo) Save(ctx context.Context, job *model.ScanJob) error {
	job.UpdatedAt = time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}

	const q = `
INSERT INTO scan_jobs (id, user_id, status, won_by, attempts, last_error, created_at, updated_at, resolved_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  won_by = EXCLUDED.won_by,
  attempts = EXCLUDED.attempts,
  last_error = EXCLUDED.last_error,
  updated_at = EXCLUDED.updated_at,
  resolved_at = EXCLUDED.resolved_at;`

	_, err := r.pool.Exec(ctx, q,
		job.ID, job.UserID, job.Status, job.WonBy, job.Attempts, job.LastError,
		job.CreatedAt, job.UpdatedAt, job.ResolvedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *scanJobRepo) FindByID(ctx context.Context, id string) (*model.ScanJob, error) {
	const q = `
SELECT id, user_id, status, won_by, attempts, last_error, created_at, updated_at, resolved_at
FROM scan_jobs WHERE id = $1;`

	row := r.pool.QueryRow(ctx, q, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return job, nil
}

func (r *scanJobRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.ScanJob, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, status, won_by, attempts, last_error, created_at, updated_at, resolved_at
FROM scan_jobs WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;`

	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.ScanJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*model.ScanJob, error) {
	var (
		job       model.ScanJob
		statusStr string
		wonByStr  string
	)
	err := row.Scan(&job.ID, &job.UserID, &statusStr, &wonByStr, &job.Attempts,
		&job.LastError, &job.CreatedAt, &job.UpdatedAt, &job.ResolvedAt)
	if err != nil {
		return nil, err
	}
	job.Status = model.ScanJobStatus(statusStr)
	job.WonBy = model.ReportChannel(wonByStr)
	return &job, nil
}
