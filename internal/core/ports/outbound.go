package ports

import (
	"context"
	"io"
	"time"

	"github.com/doctriage/doctriage/internal/core/domain"
)

// Extractor converts one document family into normalized content. MediaTypes
// declares the sniffed media types the extractor claims.
type Extractor interface {
	MediaTypes() []string
	Extract(ctx context.Context, data []byte) (*domain.ExtractedContent, error)
}

// ExtractorResolver picks the extractor for a payload by sniffing its magic
// bytes, never its filename.
type ExtractorResolver interface {
	Resolve(data []byte) (Extractor, error)
}

// StrategySource resolves candidate industry strategies. An empty industry
// returns every registered strategy in registration order.
type StrategySource interface {
	StrategiesFor(industry string) ([]domain.IndustryStrategy, error)
	All() []domain.IndustryStrategy
}

// ContentClassifier scores normalized content against industry strategies.
type ContentClassifier interface {
	Classify(ctx context.Context, content *domain.ExtractedContent, industry string) (domain.Classification, error)
}

// ResultEnhancer attaches the additive post-pass to a classification.
type ResultEnhancer interface {
	Enhance(content *domain.ExtractedContent, cls domain.Classification) domain.Classification
}

// JobStore persists jobs and batches. Transition methods are guarded by the
// job state machine and report whether they applied, so a lost race (stale
// redelivery, reap-vs-complete) is a skip, not a corruption.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	GetJobs(ctx context.Context, ids []string) ([]*domain.Job, error)

	// ClaimJob transitions pending → running and stamps StartedAt.
	ClaimJob(ctx context.Context, id string) (bool, error)
	// CompleteJob transitions running → success and attaches the result.
	CompleteJob(ctx context.Context, id string, result *domain.Classification) (bool, error)
	// FailJob transitions running → failure and attaches the cause.
	FailJob(ctx context.Context, id string, cause domain.ErrorInfo) (bool, error)
	// CancelJob transitions pending → failure; running and terminal jobs are
	// left untouched.
	CancelJob(ctx context.Context, id string, cause domain.ErrorInfo) (bool, error)

	// ListRunning returns jobs currently claimed by a worker, for the reaper.
	ListRunning(ctx context.Context) ([]*domain.Job, error)

	CreateBatch(ctx context.Context, batch *domain.Batch) error
	GetBatch(ctx context.Context, id string) (*domain.Batch, error)
}

// TaskQueue dispatches queued job ids to workers.
type TaskQueue interface {
	PublishJobQueued(ctx context.Context, jobID string) error
	SubscribeJobQueued(ctx context.Context, handler func(context.Context, string) error) error
}

// PipelineObserver receives pipeline telemetry. Implementations must be
// safe for concurrent use; the zero-overhead default is NopObserver.
type PipelineObserver interface {
	ObserveStage(stage string, d time.Duration)
	ObserveOutcome(industry, documentType, outcome string, total time.Duration)
	ObserveConfidence(industry string, confidence float64)
	ObserveQueueLag(lag time.Duration)
	ObserveReaped(count int)
}

// NopObserver discards all telemetry.
type NopObserver struct{}

func (NopObserver) ObserveStage(string, time.Duration)                   {}
func (NopObserver) ObserveOutcome(string, string, string, time.Duration) {}
func (NopObserver) ObserveConfidence(string, float64)                    {}
func (NopObserver) ObserveQueueLag(time.Duration)                        {}
func (NopObserver) ObserveReaped(int)                                    {}

// ObjectStorage stages uploaded payloads until their job is terminal.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}
