// Package redis is the production job store: jobs and batches live as JSON
// values with a bounded TTL, and a running-index set feeds the reaper.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/doctriage/doctriage/internal/core/domain"
)

const (
	jobKeyPrefix   = "job:"
	batchKeyPrefix = "batch:"
	runningSetKey  = "jobs:running"

	// Optimistic transactions retry on contention; per-job writes come from
	// a single worker, so conflicts are rare (cancel racing a dequeue).
	txAttempts = 5
)

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

type Options struct {
	Addr string
	DB   int
	TTL  time.Duration
}

func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	client := redis.NewClient(&redis.Options{Addr: opts.Addr, DB: opts.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "redis ping", err)
	}
	return &Store{client: client, ttl: opts.TTL}, nil
}

// NewWithClient wires an existing client; used by tests.
func NewWithClient(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) CreateJob(ctx context.Context, job *domain.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	ok, err := s.client.SetNX(ctx, jobKeyPrefix+job.ID, raw, s.ttl).Result()
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "create job", err)
	}
	if !ok {
		return domain.WrapError(domain.ErrInvalidInput, "create job", fmt.Errorf("duplicate id %s", job.ID))
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	raw, err := s.client.Get(ctx, jobKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.WrapError(domain.ErrJobNotFound, "get job", fmt.Errorf("id=%s", id))
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "get job", err)
	}
	var job domain.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &job, nil
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
	return s.transition(ctx, id, domain.JobPending, domain.JobRunning, func(job *domain.Job) {
		now := time.Now().UTC()
		job.StartedAt = &now
	})
}

func (s *Store) CompleteJob(ctx context.Context, id string, result *domain.Classification) (bool, error) {
	return s.transition(ctx, id, domain.JobRunning, domain.JobSuccess, func(job *domain.Job) {
		now := time.Now().UTC()
		job.Result = result
		job.FinishedAt = &now
	})
}

func (s *Store) FailJob(ctx context.Context, id string, cause domain.ErrorInfo) (bool, error) {
	return s.transition(ctx, id, domain.JobRunning, domain.JobFailure, func(job *domain.Job) {
		now := time.Now().UTC()
		job.Error = &cause
		job.FinishedAt = &now
	})
}

func (s *Store) CancelJob(ctx context.Context, id string, cause domain.ErrorInfo) (bool, error) {
	return s.transition(ctx, id, domain.JobPending, domain.JobFailure, func(job *domain.Job) {
		now := time.Now().UTC()
		job.Error = &cause
		job.FinishedAt = &now
	})
}

// transition applies a guarded state change inside an optimistic WATCH
// transaction, so a lost race (cancel vs dequeue, reap vs complete) is
// reported as applied=false instead of clobbering the winner's write.
func (s *Store) transition(ctx context.Context, id string, from, to domain.JobState, mutate func(*domain.Job)) (bool, error) {
	key := jobKeyPrefix + id
	applied := false

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.WrapError(domain.ErrJobNotFound, "transition job", fmt.Errorf("id=%s", id))
		}
		if err != nil {
			return err
		}

		var job domain.Job
		if err := json.Unmarshal(raw, &job); err != nil {
			return fmt.Errorf("unmarshal job %s: %w", id, err)
		}
		if job.State != from || !domain.ValidTransition(from, to) {
			applied = false
			return nil
		}

		job.State = to
		mutate(&job)
		updated, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("marshal job %s: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, s.ttl)
			switch {
			case to == domain.JobRunning:
				pipe.SAdd(ctx, runningSetKey, id)
			case from == domain.JobRunning:
				pipe.SRem(ctx, runningSetKey, id)
			}
			return nil
		})
		if err == nil {
			applied = true
		}
		return err
	}

	for attempt := 0; attempt < txAttempts; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if domain.IsKind(err, domain.ErrJobNotFound) {
				return false, err
			}
			return false, domain.WrapError(domain.ErrTemporary, "transition job", err)
		}
		return applied, nil
	}
	return false, domain.WrapError(domain.ErrTemporary, "transition job",
		fmt.Errorf("transaction contention on %s", id))
}

// ListRunning resolves the running index. Entries whose job value expired
// are pruned on the way through.
func (s *Store) ListRunning(ctx context.Context) ([]*domain.Job, error) {
	ids, err := s.client.SMembers(ctx, runningSetKey).Result()
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "list running", err)
	}

	var out []*domain.Job
	for _, id := range ids {
		job, err := s.GetJob(ctx, id)
		if domain.IsKind(err, domain.ErrJobNotFound) {
			s.client.SRem(ctx, runningSetKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if job.State == domain.JobRunning {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *Store) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	raw, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	ok, err := s.client.SetNX(ctx, batchKeyPrefix+batch.ID, raw, s.ttl).Result()
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "create batch", err)
	}
	if !ok {
		return domain.WrapError(domain.ErrInvalidInput, "create batch", fmt.Errorf("duplicate id %s", batch.ID))
	}
	return nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	raw, err := s.client.Get(ctx, batchKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.WrapError(domain.ErrBatchNotFound, "get batch", fmt.Errorf("id=%s", id))
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "get batch", err)
	}
	var batch domain.Batch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("unmarshal batch %s: %w", id, err)
	}
	return &batch, nil
}
