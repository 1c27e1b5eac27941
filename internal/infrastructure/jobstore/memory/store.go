// Package memory is the in-process job store: the zero-dependency default
// for local runs and tests. State machine guards mirror the durable
// backends so behavior does not drift between them.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/doctriage/doctriage/internal/core/domain"
)

type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*domain.Job
	batches map[string]*domain.Batch
}

func New() *Store {
	return &Store{
		jobs:    make(map[string]*domain.Job),
		batches: make(map[string]*domain.Batch),
	}
}

func (s *Store) CreateJob(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return domain.WrapError(domain.ErrInvalidInput, "create job", fmt.Errorf("duplicate id %s", job.ID))
	}
	clone := *job
	s.jobs[job.ID] = &clone
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrJobNotFound, "get job", fmt.Errorf("id=%s", id))
	}
	clone := *job
	return &clone, nil
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

func (s *Store) ClaimJob(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false, domain.WrapError(domain.ErrJobNotFound, "claim job", fmt.Errorf("id=%s", id))
	}
	if !domain.ValidTransition(job.State, domain.JobRunning) {
		return false, nil
	}
	now := time.Now().UTC()
	job.State = domain.JobRunning
	job.StartedAt = &now
	return true, nil
}

func (s *Store) CompleteJob(_ context.Context, id string, result *domain.Classification) (bool, error) {
	return s.finish(id, domain.JobRunning, domain.JobSuccess, result, nil)
}

func (s *Store) FailJob(_ context.Context, id string, cause domain.ErrorInfo) (bool, error) {
	return s.finish(id, domain.JobRunning, domain.JobFailure, nil, &cause)
}

func (s *Store) CancelJob(_ context.Context, id string, cause domain.ErrorInfo) (bool, error) {
	return s.finish(id, domain.JobPending, domain.JobFailure, nil, &cause)
}

func (s *Store) finish(id string, from, to domain.JobState, result *domain.Classification, cause *domain.ErrorInfo) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false, domain.WrapError(domain.ErrJobNotFound, "finish job", fmt.Errorf("id=%s", id))
	}
	if job.State != from || !domain.ValidTransition(from, to) {
		return false, nil
	}
	now := time.Now().UTC()
	job.State = to
	job.Result = result
	job.Error = cause
	job.FinishedAt = &now
	return true, nil
}

func (s *Store) ListRunning(_ context.Context) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Job
	for _, job := range s.jobs {
		if job.State == domain.JobRunning {
			clone := *job
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *Store) CreateBatch(_ context.Context, batch *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[batch.ID]; exists {
		return domain.WrapError(domain.ErrInvalidInput, "create batch", fmt.Errorf("duplicate id %s", batch.ID))
	}
	clone := *batch
	clone.JobIDs = append([]string(nil), batch.JobIDs...)
	s.batches[batch.ID] = &clone
	return nil
}

func (s *Store) GetBatch(_ context.Context, id string) (*domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch, ok := s.batches[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrBatchNotFound, "get batch", fmt.Errorf("id=%s", id))
	}
	clone := *batch
	clone.JobIDs = append([]string(nil), batch.JobIDs...)
	return &clone, nil
}
