package ports

import (
	"context"
	"io"

	"github.com/doctriage/doctriage/internal/core/domain"
)

// BatchFile is one member of a batch submission.
type BatchFile struct {
	Filename string
	Industry string
	Body     io.Reader
}

// SyncClassifier is the inbound contract for synchronous classification.
type SyncClassifier interface {
	ClassifySync(ctx context.Context, filename string, body io.Reader, industry string) (*domain.Classification, error)
}

// JobSubmitter is the inbound contract for asynchronous submission.
type JobSubmitter interface {
	Submit(ctx context.Context, filename string, body io.Reader, industry string) (*domain.Job, error)
	SubmitBatch(ctx context.Context, files []BatchFile) (*domain.Batch, error)
	CancelBatch(ctx context.Context, batchID string) (int, error)
}

// JobReader is the inbound read model for job and batch status polling.
type JobReader interface {
	Status(ctx context.Context, jobID string) (*domain.Job, error)
	BatchStatus(ctx context.Context, batchID string) (*domain.BatchStatus, error)
}

// JobProcessor is the inbound contract for worker-side job execution.
type JobProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}

// JobReaper fails jobs stuck in running beyond the configured timeout.
type JobReaper interface {
	ReapStuck(ctx context.Context) (int, error)
}
