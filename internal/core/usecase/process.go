package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/doctriage/doctriage/internal/core/domain"
	"github.com/doctriage/doctriage/internal/core/ports"
)

// ProcessService executes queued jobs on the worker side. It is the only
// writer for a job's state once it holds the claim; everything it observes
// or produces is recorded through guarded store transitions.
type ProcessService struct {
	store    ports.JobStore
	storage  ports.ObjectStorage
	pipeline *Pipeline
	observer ports.PipelineObserver
	logger   *slog.Logger
}

func NewProcessService(
	store ports.JobStore,
	storage ports.ObjectStorage,
	pipeline *Pipeline,
	observer ports.PipelineObserver,
	logger *slog.Logger,
) *ProcessService {
	if observer == nil {
		observer = ports.NopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessService{
		store:    store,
		storage:  storage,
		pipeline: pipeline,
		observer: observer,
		logger:   logger,
	}
}

func (s *ProcessService) ProcessByID(ctx context.Context, jobID string) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	claimed, err := s.store.ClaimJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	if !claimed {
		// Stale redelivery or a cancel won the race; nothing to do.
		s.logger.Info("job_claim_skipped", "job_id", jobID, "state", job.State)
		return nil
	}

	s.observer.ObserveQueueLag(time.Since(job.CreatedAt))
	s.logger.Info("job_running", "job_id", jobID, "batch_id", job.BatchID, "filename", job.Filename)

	start := time.Now()
	result, err := s.runPipeline(ctx, job)
	if err != nil {
		s.markFailed(ctx, job, err)
		s.observer.ObserveOutcome(job.Industry, "", "failure", time.Since(start))
		s.cleanup(ctx, job)
		return err
	}

	applied, err := s.store.CompleteJob(ctx, jobID, result)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if !applied {
		// The reaper declared this run dead while it was still finishing;
		// the terminal failure it wrote stands.
		s.logger.Warn("job_completion_lost", "job_id", jobID)
	} else {
		s.logger.Info("job_succeeded",
			"job_id", jobID,
			"batch_id", job.BatchID,
			"document_type", result.DocumentType,
			"industry", result.Industry,
			"confidence", result.Confidence,
		)
	}

	s.observer.ObserveOutcome(result.Industry, result.DocumentType, "success", time.Since(start))
	s.cleanup(ctx, job)
	return nil
}

func (s *ProcessService) runPipeline(ctx context.Context, job *domain.Job) (*domain.Classification, error) {
	payload, err := s.loadPayload(ctx, job.StoragePath)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Run(ctx, payload, job.Industry)
}

func (s *ProcessService) loadPayload(ctx context.Context, storageKey string) ([]byte, error) {
	rc, err := s.storage.Open(ctx, storageKey)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "open staged payload", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "read staged payload", err)
	}
	return data, nil
}

func (s *ProcessService) markFailed(ctx context.Context, job *domain.Job, cause error) {
	info := domain.ErrorInfoFrom(cause)
	applied, err := s.store.FailJob(ctx, job.ID, info)
	if err != nil {
		s.logger.Error("job_failure_write_failed", "job_id", job.ID, "error", err)
		return
	}
	if applied {
		s.logger.Warn("job_failed", "job_id", job.ID, "batch_id", job.BatchID, "kind", info.Kind, "error", cause)
	}
}

func (s *ProcessService) cleanup(ctx context.Context, job *domain.Job) {
	if job.StoragePath == "" {
		return
	}
	if err := s.storage.Remove(ctx, job.StoragePath); err != nil {
		s.logger.Warn("staging_cleanup_failed", "job_id", job.ID, "error", err)
	}
}
