package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doctriage/doctriage/internal/core/domain"
	"github.com/doctriage/doctriage/internal/core/ports"
)

// SubmitService creates jobs and batches without ever waiting on pipeline
// completion: payloads are staged, a pending job is persisted, and the job
// id goes onto the queue.
type SubmitService struct {
	store      ports.JobStore
	storage    ports.ObjectStorage
	queue      ports.TaskQueue
	strategies ports.StrategySource
	maxBatch   int
	logger     *slog.Logger
}

func NewSubmitService(
	store ports.JobStore,
	storage ports.ObjectStorage,
	queue ports.TaskQueue,
	strategies ports.StrategySource,
	maxBatch int,
	logger *slog.Logger,
) *SubmitService {
	if maxBatch <= 0 {
		maxBatch = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmitService{
		store:      store,
		storage:    storage,
		queue:      queue,
		strategies: strategies,
		maxBatch:   maxBatch,
		logger:     logger,
	}
}

// Submit validates the industry before anything is staged or enqueued: bad
// caller input surfaces immediately and never becomes a queued job.
func (s *SubmitService) Submit(ctx context.Context, filename string, body io.Reader, industry string) (*domain.Job, error) {
	if industry != "" {
		if _, err := s.strategies.StrategiesFor(industry); err != nil {
			return nil, err
		}
	}

	job, err := s.createPending(ctx, filename, body, industry, "")
	if err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// SubmitBatch fans the submission out into one job per file. A member that
// cannot even be submitted (unknown industry, staging failure) is recorded
// as a job born in failure so the batch's bookkeeping stays complete; a
// batch never fails wholesale because one file is bad.
func (s *SubmitService) SubmitBatch(ctx context.Context, files []ports.BatchFile) (*domain.Batch, error) {
	if len(files) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit batch", fmt.Errorf("no files"))
	}
	if len(files) > s.maxBatch {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit batch",
			fmt.Errorf("%d files exceeds batch cap %d", len(files), s.maxBatch))
	}

	batch := &domain.Batch{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	for _, file := range files {
		job, err := s.submitMember(ctx, batch.ID, file)
		if err != nil {
			// Member bookkeeping failed entirely (store down): the batch
			// submission itself cannot be trusted anymore.
			return nil, err
		}
		batch.JobIDs = append(batch.JobIDs, job.ID)
	}

	if err := s.store.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	return batch, nil
}

func (s *SubmitService) submitMember(ctx context.Context, batchID string, file ports.BatchFile) (*domain.Job, error) {
	if file.Industry != "" {
		if _, err := s.strategies.StrategiesFor(file.Industry); err != nil {
			if domain.IsKind(err, domain.ErrUnknownIndustry) {
				return s.createBornFailed(ctx, batchID, file, err)
			}
			return nil, err
		}
	}

	job, err := s.createPending(ctx, file.Filename, file.Body, file.Industry, batchID)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			return s.createBornFailed(ctx, batchID, file, err)
		}
		return nil, err
	}

	if err := s.enqueue(ctx, job); err != nil {
		// The job exists but never reached the queue; its failure is
		// already recorded, siblings proceed.
		s.logger.Warn("batch_member_enqueue_failed", "job_id", job.ID, "batch_id", batchID, "error", err)
		refreshed, getErr := s.store.GetJob(ctx, job.ID)
		if getErr != nil {
			return nil, getErr
		}
		return refreshed, nil
	}
	return job, nil
}

func (s *SubmitService) createPending(ctx context.Context, filename string, body io.Reader, industry, batchID string) (*domain.Job, error) {
	if body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit", fmt.Errorf("no payload for %q", filename))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))

	if err := s.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("stage payload: %w", err)
	}

	job := &domain.Job{
		ID:          id,
		State:       domain.JobPending,
		Filename:    filename,
		Industry:    industry,
		StoragePath: storageKey,
		BatchID:     batchID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// createBornFailed records a batch member that was rejected before
// enqueueing. The job is terminal from birth and no worker will ever touch
// it, so the single-writer invariant holds trivially.
func (s *SubmitService) createBornFailed(ctx context.Context, batchID string, file ports.BatchFile, cause error) (*domain.Job, error) {
	now := time.Now().UTC()
	info := domain.ErrorInfoFrom(cause)
	job := &domain.Job{
		ID:         uuid.NewString(),
		State:      domain.JobFailure,
		Filename:   file.Filename,
		Industry:   file.Industry,
		BatchID:    batchID,
		Error:      &info,
		CreatedAt:  now,
		FinishedAt: &now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.logger.Warn("batch_member_rejected", "job_id", job.ID, "batch_id", batchID, "kind", info.Kind)
	return job, nil
}

func (s *SubmitService) enqueue(ctx context.Context, job *domain.Job) error {
	err := s.queue.PublishJobQueued(ctx, job.ID)
	if err == nil {
		return nil
	}

	// The job never reached the queue; leave it terminal rather than
	// pending forever.
	info := domain.ErrorInfoFrom(domain.WrapError(domain.ErrTemporary, "enqueue job", err))
	if _, cancelErr := s.store.CancelJob(ctx, job.ID, info); cancelErr != nil {
		s.logger.Error("enqueue_rollback_failed", "job_id", job.ID, "error", cancelErr)
	}
	return fmt.Errorf("enqueue job: %w", err)
}

// CancelBatch cancels pending members only. Running and terminal members
// are untouched; the worker-side guarded claim keeps the cancel/dequeue
// race safe because exactly one side wins each member.
func (s *SubmitService) CancelBatch(ctx context.Context, batchID string) (int, error) {
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return 0, err
	}

	cause := domain.ErrorInfo{Kind: domain.ErrorKindCanceled, Message: "canceled by batch cancellation"}
	canceled := 0
	for _, jobID := range batch.JobIDs {
		applied, err := s.store.CancelJob(ctx, jobID, cause)
		if err != nil {
			return canceled, err
		}
		if !applied {
			continue
		}
		canceled++
		if job, err := s.store.GetJob(ctx, jobID); err == nil && job.StoragePath != "" {
			if err := s.storage.Remove(ctx, job.StoragePath); err != nil {
				s.logger.Warn("cancel_cleanup_failed", "job_id", jobID, "error", err)
			}
		}
	}
	return canceled, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
