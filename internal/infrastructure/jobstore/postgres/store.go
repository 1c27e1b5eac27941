package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/doctriage/doctriage/internal/core/domain"
)

// Store is the SQL-backed job store. Transition guards live in the UPDATE
// predicates, so the rows-affected count is the race arbiter: a stale
// redelivery or a lost cancel race affects zero rows and reports
// applied=false.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	filename TEXT NOT NULL,
	industry TEXT,
	storage_path TEXT,
	batch_id TEXT,
	result JSONB,
	error_kind TEXT,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS batches (
	id TEXT PRIMARY KEY,
	job_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state);
CREATE INDEX IF NOT EXISTS idx_jobs_batch_id ON jobs(batch_id);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *Store) CreateJob(ctx context.Context, job *domain.Job) error {
	var errorKind, errorMessage sql.NullString
	if job.Error != nil {
		errorKind = sql.NullString{String: job.Error.Kind, Valid: true}
		errorMessage = sql.NullString{String: job.Error.Message, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO jobs (
	id, state, filename, industry, storage_path, batch_id, error_kind, error_message, created_at, started_at, finished_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		job.ID, string(job.State), job.Filename, job.Industry, job.StoragePath, job.BatchID,
		errorKind, errorMessage, job.CreatedAt, job.StartedAt, job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, state, filename, industry, storage_path, batch_id, result, error_kind, error_message, created_at, started_at, finished_at
FROM jobs
WHERE id = $1
`, id)
	return scanJob(row, id)
}

func (s *Store) GetJobs(ctx context.Context, ids []string) ([]*domain.Job, error) {
	out := make([]*domain.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

func (s *Store) ClaimJob(ctx context.Context, id string) (bool, error) {
	return s.guardedExec(ctx, "claim job", `
UPDATE jobs
SET state = $2, started_at = $3
WHERE id = $1 AND state = $4
`, id, string(domain.JobRunning), time.Now().UTC(), string(domain.JobPending))
}

func (s *Store) CompleteJob(ctx context.Context, id string, result *domain.Classification) (bool, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("marshal result: %w", err)
	}
	return s.guardedExec(ctx, "complete job", `
UPDATE jobs
SET state = $2, result = $3, finished_at = $4
WHERE id = $1 AND state = $5
`, id, string(domain.JobSuccess), resultJSON, time.Now().UTC(), string(domain.JobRunning))
}

func (s *Store) FailJob(ctx context.Context, id string, cause domain.ErrorInfo) (bool, error) {
	return s.guardedExec(ctx, "fail job", `
UPDATE jobs
SET state = $2, error_kind = $3, error_message = $4, finished_at = $5
WHERE id = $1 AND state = $6
`, id, string(domain.JobFailure), cause.Kind, cause.Message, time.Now().UTC(), string(domain.JobRunning))
}

func (s *Store) CancelJob(ctx context.Context, id string, cause domain.ErrorInfo) (bool, error) {
	return s.guardedExec(ctx, "cancel job", `
UPDATE jobs
SET state = $2, error_kind = $3, error_message = $4, finished_at = $5
WHERE id = $1 AND state = $6
`, id, string(domain.JobFailure), cause.Kind, cause.Message, time.Now().UTC(), string(domain.JobPending))
}

// guardedExec distinguishes "job missing" from "guard did not match":
// the former is an error, the latter is applied=false.
func (s *Store) guardedExec(ctx context.Context, op, query string, id string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected > 0 {
		return true, nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s existence check: %w", op, err)
	}
	if !exists {
		return false, domain.WrapError(domain.ErrJobNotFound, op, fmt.Errorf("id=%s", id))
	}
	return false, nil
}

func (s *Store) ListRunning(ctx context.Context) ([]*domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, state, filename, industry, storage_path, batch_id, result, error_kind, error_message, created_at, started_at, finished_at
FROM jobs
WHERE state = $1
`, string(domain.JobRunning))
	if err != nil {
		return nil, fmt.Errorf("list running: %w", err)
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list running rows: %w", err)
	}
	return out, nil
}

func (s *Store) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	jobIDs, err := json.Marshal(batch.JobIDs)
	if err != nil {
		return fmt.Errorf("marshal batch job ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO batches (id, job_ids, created_at) VALUES ($1,$2,$3)
`, batch.ID, jobIDs, batch.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, job_ids, created_at FROM batches WHERE id = $1
`, id)

	var batch domain.Batch
	var jobIDsRaw []byte
	if err := row.Scan(&batch.ID, &jobIDsRaw, &batch.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrBatchNotFound, "get batch", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan batch: %w", err)
	}
	if err := json.Unmarshal(jobIDsRaw, &batch.JobIDs); err != nil {
		return nil, fmt.Errorf("unmarshal batch job ids: %w", err)
	}
	return &batch, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner, id string) (*domain.Job, error) {
	var (
		job          domain.Job
		state        string
		industry     sql.NullString
		storagePath  sql.NullString
		batchID      sql.NullString
		resultRaw    []byte
		errorKind    sql.NullString
		errorMessage sql.NullString
		startedAt    sql.NullTime
		finishedAt   sql.NullTime
	)

	err := row.Scan(
		&job.ID, &state, &job.Filename, &industry, &storagePath, &batchID,
		&resultRaw, &errorKind, &errorMessage, &job.CreatedAt, &startedAt, &finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "get job", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}

	job.State = domain.JobState(state)
	job.Industry = industry.String
	job.StoragePath = storagePath.String
	job.BatchID = batchID.String
	if len(resultRaw) > 0 {
		var result domain.Classification
		if err := json.Unmarshal(resultRaw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal job result: %w", err)
		}
		job.Result = &result
	}
	if errorKind.Valid {
		job.Error = &domain.ErrorInfo{Kind: errorKind.String, Message: errorMessage.String}
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	return &job, nil
}
