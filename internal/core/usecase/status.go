package usecase

import (
	"context"
	"fmt"

	"github.com/doctriage/doctriage/internal/core/domain"
	"github.com/doctriage/doctriage/internal/core/ports"
)

// StatusService serves job and batch reads for the polling API.
type StatusService struct {
	store ports.JobStore
}

func NewStatusService(store ports.JobStore) *StatusService {
	return &StatusService{store: store}
}

func (s *StatusService) Status(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.store.GetJob(ctx, jobID)
}

// BatchStatus reads the batch and its members and derives the batch state
// from the member snapshot. The derived state and the returned jobs always
// come from the same read.
func (s *StatusService) BatchStatus(ctx context.Context, batchID string) (*domain.BatchStatus, error) {
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	jobs, err := s.store.GetJobs(ctx, batch.JobIDs)
	if err != nil {
		return nil, fmt.Errorf("read batch members: %w", err)
	}

	states := make([]domain.JobState, len(jobs))
	for i, j := range jobs {
		states[i] = j.State
	}

	return &domain.BatchStatus{
		ID:        batch.ID,
		State:     domain.DeriveBatchState(states),
		Jobs:      jobs,
		CreatedAt: batch.CreatedAt,
	}, nil
}
