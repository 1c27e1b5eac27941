package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/doctriage/doctriage/internal/core/domain"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewStore(db), mock, func() { _ = db.Close() }
}

func jobColumns() []string {
	return []string{
		"id", "state", "filename", "industry", "storage_path", "batch_id",
		"result", "error_kind", "error_message", "created_at", "started_at", "finished_at",
	}
}

func TestGetJobScansFullRow(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	created := time.Now().UTC()
	started := created.Add(time.Second)
	finished := created.Add(2 * time.Second)
	mock.ExpectQuery("SELECT id, state, filename").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows(jobColumns()).AddRow(
			"job-1", "success", "doc.pdf", "financial", "job-1_doc.pdf", "batch-1",
			[]byte(`{"document_type":"invoice","industry":"financial","confidence":0.7,"enhancement":{"tables_detected":0}}`),
			nil, nil, created, started, finished,
		))

	job, err := store.GetJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.State != domain.JobSuccess || job.Industry != "financial" || job.BatchID != "batch-1" {
		t.Fatalf("job = %+v", job)
	}
	if job.Result == nil || job.Result.DocumentType != "invoice" {
		t.Fatalf("result = %+v", job.Result)
	}
	if job.StartedAt == nil || job.FinishedAt == nil {
		t.Fatalf("timestamps = %+v", job)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetJobNotFound(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, state, filename").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetJob(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrJobNotFound) {
		t.Fatalf("error = %v, want job not found", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClaimJobApplies(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE jobs").
		WithArgs("job-1", string(domain.JobRunning), sqlmock.AnyArg(), string(domain.JobPending)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := store.ClaimJob(context.Background(), "job-1")
	if err != nil || !applied {
		t.Fatalf("ClaimJob: applied=%v err=%v", applied, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClaimJobGuardMiss(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE jobs").
		WithArgs("job-1", string(domain.JobRunning), sqlmock.AnyArg(), string(domain.JobPending)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	applied, err := store.ClaimJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("ClaimJob: %v", err)
	}
	if applied {
		t.Fatal("claim applied against a non-pending job")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClaimJobMissingRow(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE jobs").
		WithArgs("missing", string(domain.JobRunning), sqlmock.AnyArg(), string(domain.JobPending)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := store.ClaimJob(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrJobNotFound) {
		t.Fatalf("error = %v, want job not found", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCompleteJobWritesResult(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE jobs").
		WithArgs("job-1", string(domain.JobSuccess), sqlmock.AnyArg(), sqlmock.AnyArg(), string(domain.JobRunning)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := store.CompleteJob(context.Background(), "job-1", &domain.Classification{DocumentType: "invoice"})
	if err != nil || !applied {
		t.Fatalf("CompleteJob: applied=%v err=%v", applied, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFailJobGuardedByRunningState(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE jobs").
		WithArgs("job-1", string(domain.JobFailure), "infrastructure", "worker timed out", sqlmock.AnyArg(), string(domain.JobRunning)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	applied, err := store.FailJob(context.Background(), "job-1",
		domain.ErrorInfo{Kind: "infrastructure", Message: "worker timed out"})
	if err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if applied {
		t.Fatal("fail applied against a non-running job")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCancelJobTargetsPendingState(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE jobs").
		WithArgs("job-1", string(domain.JobFailure), "canceled", "canceled by batch cancellation", sqlmock.AnyArg(), string(domain.JobPending)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := store.CancelJob(context.Background(), "job-1",
		domain.ErrorInfo{Kind: "canceled", Message: "canceled by batch cancellation"})
	if err != nil || !applied {
		t.Fatalf("CancelJob: applied=%v err=%v", applied, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRunning(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	created := time.Now().UTC()
	started := created.Add(time.Second)
	mock.ExpectQuery("SELECT id, state, filename").
		WithArgs(string(domain.JobRunning)).
		WillReturnRows(sqlmock.NewRows(jobColumns()).
			AddRow("a", "running", "a.pdf", nil, nil, nil, nil, nil, nil, created, started, nil).
			AddRow("b", "running", "b.pdf", nil, nil, nil, nil, nil, nil, created, started, nil))

	jobs, err := store.ListRunning(context.Background())
	if err != nil {
		t.Fatalf("ListRunning: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "a" || jobs[1].State != domain.JobRunning {
		t.Fatalf("jobs = %+v", jobs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetBatchNotFound(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, job_ids, created_at").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetBatch(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrBatchNotFound) {
		t.Fatalf("error = %v, want batch not found", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetBatchUnmarshalsJobIDs(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, job_ids, created_at").
		WithArgs("batch-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "job_ids", "created_at"}).
			AddRow("batch-1", []byte(`["a","b","c"]`), time.Now().UTC()))

	batch, err := store.GetBatch(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if len(batch.JobIDs) != 3 || batch.JobIDs[2] != "c" {
		t.Fatalf("batch = %+v", batch)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
