package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/doctriage/doctriage/internal/core/domain"
	"github.com/doctriage/doctriage/internal/core/ports"
)

// Reaper fails jobs whose worker died mid-run. A running job older than the
// timeout is declared dead with a guarded transition, so a worker that was
// merely slow and completes concurrently loses the race cleanly on one side.
type Reaper struct {
	store    ports.JobStore
	timeout  time.Duration
	observer ports.PipelineObserver
	logger   *slog.Logger
	now      func() time.Time
}

func NewReaper(store ports.JobStore, timeout time.Duration, observer ports.PipelineObserver, logger *slog.Logger) *Reaper {
	if observer == nil {
		observer = ports.NopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		store:    store,
		timeout:  timeout,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

// ReapStuck fails every running job whose claim is older than the timeout
// and returns how many were reaped.
func (r *Reaper) ReapStuck(ctx context.Context) (int, error) {
	jobs, err := r.store.ListRunning(ctx)
	if err != nil {
		return 0, err
	}

	deadline := r.now().Add(-r.timeout)
	cause := domain.ErrorInfo{
		Kind:    domain.ErrorKindInfrastructure,
		Message: "worker did not report a result within the running timeout",
	}

	reaped := 0
	for _, job := range jobs {
		if job.StartedAt == nil || job.StartedAt.After(deadline) {
			continue
		}
		applied, err := r.store.FailJob(ctx, job.ID, cause)
		if err != nil {
			r.logger.Error("reap_write_failed", "job_id", job.ID, "error", err)
			continue
		}
		if applied {
			reaped++
			r.logger.Warn("job_reaped", "job_id", job.ID, "started_at", job.StartedAt)
		}
	}

	if reaped > 0 {
		r.observer.ObserveReaped(reaped)
	}
	return reaped, nil
}

// Run sweeps on the given interval until the context is canceled.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ReapStuck(ctx); err != nil {
				r.logger.Error("reap_sweep_failed", "error", err)
			}
		}
	}
}
