// Package repository persists analysis jobs and applies reconciliation
// writes to the shared lead, appointment, task and key signal tables.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"portal_analysis_backend/internal/analysis/domain"
)

var (
	ErrNotFound     = errors.New("analysis job not found")
	ErrDuplicateJob = errors.New("analysis job already exists")
)

const uniqueViolation = "23505"

const jobColumns = `id, tenant_id, external_job_id, subject_type, subject_id, status,
	processed_output_hash, normalized_result, failure_code, failure_message, failure_retryable,
	created_at, updated_at`

// Repository is the pgx-backed store.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CreateJob(ctx context.Context, p CreateJobParams) (Job, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO analysis_jobs (id, tenant_id, external_job_id, subject_type, subject_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+jobColumns,
		uuid.New(), p.TenantID, p.ExternalJobID, string(p.SubjectType), p.SubjectID, string(domain.JobStatusSubmitted),
	)
	job, err := scanJob(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Job{}, ErrDuplicateJob
		}
		return Job{}, fmt.Errorf("insert analysis job: %w", err)
	}
	return job, nil
}

// GetJob loads a job scoped to its tenant.
func (r *Repository) GetJob(ctx context.Context, tenantID, id uuid.UUID) (Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM analysis_jobs WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("get analysis job: %w", err)
	}
	return job, nil
}

// FindJobsByExternalID returns every job carrying the engine id, across
// tenants. Callers decide what a match under another tenant means.
func (r *Repository) FindJobsByExternalID(ctx context.Context, externalJobID string) ([]Job, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+jobColumns+` FROM analysis_jobs WHERE external_job_id = $1 ORDER BY created_at`, externalJobID)
	if err != nil {
		return nil, fmt.Errorf("find analysis jobs: %w", err)
	}
	return collectJobs(rows)
}

// ListPollable returns open jobs not updated since staleBefore, oldest first.
func (r *Repository) ListPollable(ctx context.Context, staleBefore time.Time, limit int) ([]Job, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM analysis_jobs
		WHERE status IN ('submitted', 'processing') AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2`, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list pollable analysis jobs: %w", err)
	}
	return collectJobs(rows)
}

// ListExpired returns open jobs created before createdBefore.
func (r *Repository) ListExpired(ctx context.Context, createdBefore time.Time, limit int) ([]Job, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM analysis_jobs
		WHERE status IN ('submitted', 'processing') AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired analysis jobs: %w", err)
	}
	return collectJobs(rows)
}

// InTx runs fn in one transaction. fn's error rolls everything back.
func (r *Repository) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin reconciliation tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reconciliation tx: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (Job, error) {
	var (
		job         Job
		subjectType string
		status      string
	)
	err := row.Scan(
		&job.ID, &job.TenantID, &job.ExternalJobID, &subjectType, &job.SubjectID, &status,
		&job.ProcessedOutputHash, &job.NormalizedResult, &job.FailureCode, &job.FailureMessage, &job.FailureRetryable,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return Job{}, err
	}
	job.SubjectType = domain.SubjectType(subjectType)
	job.Status = domain.JobStatus(status)
	return job, nil
}

func collectJobs(rows pgx.Rows) ([]Job, error) {
	defer rows.Close()

	jobs := make([]Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return jobs, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
