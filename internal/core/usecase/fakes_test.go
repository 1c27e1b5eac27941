package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/doctriage/doctriage/internal/core/domain"
	"github.com/doctriage/doctriage/internal/core/ports"
)

type storeFake struct {
	mu          sync.Mutex
	jobs        map[string]*domain.Job
	batches     map[string]*domain.Batch
	createErr   error
	getErr      error
	claimErr    error
	completeErr error
	failErr     error
	cancelErr   error
	listErr     error
}

func newStoreFake() *storeFake {
	return &storeFake{
		jobs:    make(map[string]*domain.Job),
		batches: make(map[string]*domain.Batch),
	}
}

func (f *storeFake) CreateJob(_ context.Context, job *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	clone := *job
	f.jobs[job.ID] = &clone
	return nil
}

func (f *storeFake) GetJob(_ context.Context, id string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	clone := *job
	return &clone, nil
}

func (f *storeFake) GetJobs(ctx context.Context, ids []string) ([]*domain.Job, error) {
	out := make([]*domain.Job, 0, len(ids))
	for _, id := range ids {
		job, err := f.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

func (f *storeFake) transition(id string, to domain.JobState, mutate func(*domain.Job)) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return false, domain.ErrJobNotFound
	}
	if !domain.ValidTransition(job.State, to) {
		return false, nil
	}
	job.State = to
	mutate(job)
	return true, nil
}

func (f *storeFake) ClaimJob(_ context.Context, id string) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	return f.transition(id, domain.JobRunning, func(j *domain.Job) {
		now := time.Now().UTC()
		j.StartedAt = &now
	})
}

func (f *storeFake) CompleteJob(_ context.Context, id string, result *domain.Classification) (bool, error) {
	if f.completeErr != nil {
		return false, f.completeErr
	}
	return f.transition(id, domain.JobSuccess, func(j *domain.Job) {
		j.Result = result
		now := time.Now().UTC()
		j.FinishedAt = &now
	})
}

func (f *storeFake) FailJob(_ context.Context, id string, cause domain.ErrorInfo) (bool, error) {
	if f.failErr != nil {
		return false, f.failErr
	}
	return f.transition(id, domain.JobFailure, func(j *domain.Job) {
		j.Error = &cause
		now := time.Now().UTC()
		j.FinishedAt = &now
	})
}

func (f *storeFake) CancelJob(_ context.Context, id string, cause domain.ErrorInfo) (bool, error) {
	if f.cancelErr != nil {
		return false, f.cancelErr
	}
	f.mu.Lock()
	job, ok := f.jobs[id]
	if ok && job.State != domain.JobPending {
		f.mu.Unlock()
		return false, nil
	}
	f.mu.Unlock()
	if !ok {
		return false, domain.ErrJobNotFound
	}
	return f.transition(id, domain.JobFailure, func(j *domain.Job) {
		j.Error = &cause
		now := time.Now().UTC()
		j.FinishedAt = &now
	})
}

func (f *storeFake) ListRunning(_ context.Context) ([]*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*domain.Job
	for _, job := range f.jobs {
		if job.State == domain.JobRunning {
			clone := *job
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *storeFake) CreateBatch(_ context.Context, batch *domain.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *batch
	clone.JobIDs = append([]string(nil), batch.JobIDs...)
	f.batches[batch.ID] = &clone
	return nil
}

func (f *storeFake) GetBatch(_ context.Context, id string) (*domain.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch, ok := f.batches[id]
	if !ok {
		return nil, domain.ErrBatchNotFound
	}
	clone := *batch
	clone.JobIDs = append([]string(nil), batch.JobIDs...)
	return &clone, nil
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string][]byte
	saveErr error
	openErr error
	removed []string
}

func newStorageFake() *storageFake {
	return &storageFake{objects: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.objects[key]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, key)
	delete(f.objects, key)
	return nil
}

type queueFake struct {
	mu         sync.Mutex
	published  []string
	publishErr error
}

func (f *queueFake) PublishJobQueued(_ context.Context, jobID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, jobID)
	return nil
}

func (f *queueFake) SubscribeJobQueued(context.Context, func(context.Context, string) error) error {
	return nil
}

type strategySourceFake struct {
	known map[string]bool
}

func (f *strategySourceFake) StrategiesFor(industry string) ([]domain.IndustryStrategy, error) {
	if industry == "" || f.known[industry] {
		return nil, nil
	}
	return nil, domain.WrapError(domain.ErrUnknownIndustry, "resolve strategies",
		fmt.Errorf("industry %q", industry))
}

func (f *strategySourceFake) All() []domain.IndustryStrategy { return nil }

type resolverFake struct {
	extractor ports.Extractor
	err       error
}

func (f *resolverFake) Resolve([]byte) (ports.Extractor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.extractor, nil
}

type extractorFake struct {
	content *domain.ExtractedContent
	err     error
}

func (f *extractorFake) MediaTypes() []string { return []string{"application/octet-stream"} }

func (f *extractorFake) Extract(context.Context, []byte) (*domain.ExtractedContent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.content, nil
}

type classifierFake struct {
	cls domain.Classification
	err error
}

func (f *classifierFake) Classify(context.Context, *domain.ExtractedContent, string) (domain.Classification, error) {
	if f.err != nil {
		return domain.Classification{}, f.err
	}
	return f.cls, nil
}

type enhancerFake struct {
	called bool
}

func (f *enhancerFake) Enhance(_ *domain.ExtractedContent, cls domain.Classification) domain.Classification {
	f.called = true
	cls.Enhancement.TablesDetected = 1
	return cls
}

type observerFake struct {
	mu          sync.Mutex
	stages      []string
	outcomes    []string
	confidences []float64
	lags        int
	reaped      int
}

func (f *observerFake) ObserveStage(stage string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stages = append(f.stages, stage)
}

func (f *observerFake) ObserveOutcome(_, _, outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

func (f *observerFake) ObserveConfidence(_ string, confidence float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confidences = append(f.confidences, confidence)
}

func (f *observerFake) ObserveQueueLag(time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lags++
}

func (f *observerFake) ObserveReaped(count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reaped += count
}
