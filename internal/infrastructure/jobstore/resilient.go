// Package jobstore holds the store implementations plus a resilience
// decorator shared by the networked backends.
package jobstore

import (
	"context"
	"errors"

	"github.com/doctriage/doctriage/internal/core/domain"
	"github.com/doctriage/doctriage/internal/core/ports"
	"github.com/doctriage/doctriage/internal/infrastructure/resilience"
)

// Resilient wraps a JobStore so reads and guarded transitions ride the
// retry/breaker executor. Guard misses and not-found are results, not
// failures; only infrastructure errors retry or trip the breaker.
type Resilient struct {
	inner    ports.JobStore
	executor *resilience.Executor
}

func NewResilient(inner ports.JobStore, executor *resilience.Executor) *Resilient {
	return &Resilient{inner: inner, executor: executor}
}

func classifyStoreError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case domain.IsKind(err, domain.ErrJobNotFound),
		domain.IsKind(err, domain.ErrBatchNotFound),
		domain.IsKind(err, domain.ErrInvalidInput):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), domain.IsKind(err, domain.ErrTemporary):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func (r *Resilient) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if r.executor == nil {
		return call(ctx)
	}
	return r.executor.Execute(ctx, operation, call, classifyStoreError)
}

func (r *Resilient) CreateJob(ctx context.Context, job *domain.Job) error {
	return r.execute(ctx, "jobstore.create_job", func(callCtx context.Context) error {
		return r.inner.CreateJob(callCtx, job)
	})
}

func (r *Resilient) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var job *domain.Job
	err := r.execute(ctx, "jobstore.get_job", func(callCtx context.Context) error {
		var callErr error
		job, callErr = r.inner.GetJob(callCtx, id)
		return callErr
	})
	return job, err
}

func (r *Resilient) GetJobs(ctx context.Context, ids []string) ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := r.execute(ctx, "jobstore.get_jobs", func(callCtx context.Context) error {
		var callErr error
		jobs, callErr = r.inner.GetJobs(callCtx, ids)
		return callErr
	})
	return jobs, err
}

func (r *Resilient) ClaimJob(ctx context.Context, id string) (bool, error) {
	var applied bool
	err := r.execute(ctx, "jobstore.claim_job", func(callCtx context.Context) error {
		var callErr error
		applied, callErr = r.inner.ClaimJob(callCtx, id)
		return callErr
	})
	return applied, err
}

func (r *Resilient) CompleteJob(ctx context.Context, id string, result *domain.Classification) (bool, error) {
	var applied bool
	err := r.execute(ctx, "jobstore.complete_job", func(callCtx context.Context) error {
		var callErr error
		applied, callErr = r.inner.CompleteJob(callCtx, id, result)
		return callErr
	})
	return applied, err
}

func (r *Resilient) FailJob(ctx context.Context, id string, cause domain.ErrorInfo) (bool, error) {
	var applied bool
	err := r.execute(ctx, "jobstore.fail_job", func(callCtx context.Context) error {
		var callErr error
		applied, callErr = r.inner.FailJob(callCtx, id, cause)
		return callErr
	})
	return applied, err
}

func (r *Resilient) CancelJob(ctx context.Context, id string, cause domain.ErrorInfo) (bool, error) {
	var applied bool
	err := r.execute(ctx, "jobstore.cancel_job", func(callCtx context.Context) error {
		var callErr error
		applied, callErr = r.inner.CancelJob(callCtx, id, cause)
		return callErr
	})
	return applied, err
}

func (r *Resilient) ListRunning(ctx context.Context) ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := r.execute(ctx, "jobstore.list_running", func(callCtx context.Context) error {
		var callErr error
		jobs, callErr = r.inner.ListRunning(callCtx)
		return callErr
	})
	return jobs, err
}

func (r *Resilient) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	return r.execute(ctx, "jobstore.create_batch", func(callCtx context.Context) error {
		return r.inner.CreateBatch(callCtx, batch)
	})
}

func (r *Resilient) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	var batch *domain.Batch
	err := r.execute(ctx, "jobstore.get_batch", func(callCtx context.Context) error {
		var callErr error
		batch, callErr = r.inner.GetBatch(callCtx, id)
		return callErr
	})
	return batch, err
}
