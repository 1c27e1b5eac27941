package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/doctriage/doctriage/internal/core/domain"
	"github.com/doctriage/doctriage/internal/core/ports"
)

func newSubmitService(store *storeFake, storage *storageFake, queue *queueFake, known ...string) *SubmitService {
	set := make(map[string]bool, len(known))
	for _, k := range known {
		set[k] = true
	}
	return NewSubmitService(store, storage, queue, &strategySourceFake{known: set}, 3,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSubmitCreatesPendingAndEnqueues(t *testing.T) {
	store := newStoreFake()
	storage := newStorageFake()
	queue := &queueFake{}
	svc := newSubmitService(store, storage, queue, "financial")

	job, err := svc.Submit(context.Background(), "report q3.pdf", strings.NewReader("%PDF-"), "financial")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.State != domain.JobPending {
		t.Fatalf("state = %s, want pending", job.State)
	}
	if len(queue.published) != 1 || queue.published[0] != job.ID {
		t.Fatalf("published = %v, want [%s]", queue.published, job.ID)
	}
	if !strings.HasSuffix(job.StoragePath, "report_q3.pdf") {
		t.Fatalf("storage key = %q, want sanitized filename suffix", job.StoragePath)
	}
	if _, ok := storage.objects[job.StoragePath]; !ok {
		t.Fatal("payload was not staged")
	}
}

func TestSubmitUnknownIndustryRejectsBeforeStaging(t *testing.T) {
	store := newStoreFake()
	storage := newStorageFake()
	queue := &queueFake{}
	svc := newSubmitService(store, storage, queue, "financial")

	_, err := svc.Submit(context.Background(), "doc.pdf", strings.NewReader("%PDF-"), "retail")
	if !domain.IsKind(err, domain.ErrUnknownIndustry) {
		t.Fatalf("error = %v, want unknown industry", err)
	}
	if len(storage.objects) != 0 {
		t.Fatal("payload staged despite rejection")
	}
	if len(store.jobs) != 0 {
		t.Fatal("job persisted despite rejection")
	}
	if len(queue.published) != 0 {
		t.Fatal("job enqueued despite rejection")
	}
}

func TestSubmitEnqueueFailureLeavesJobTerminal(t *testing.T) {
	store := newStoreFake()
	storage := newStorageFake()
	queue := &queueFake{publishErr: errors.New("nats unavailable")}
	svc := newSubmitService(store, storage, queue)

	_, err := svc.Submit(context.Background(), "doc.pdf", strings.NewReader("%PDF-"), "")
	if err == nil {
		t.Fatal("expected error from failed enqueue")
	}
	if len(store.jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(store.jobs))
	}
	for _, job := range store.jobs {
		if job.State != domain.JobFailure {
			t.Fatalf("state = %s, want failure after rollback", job.State)
		}
	}
}

func TestSubmitBatchMixedMembers(t *testing.T) {
	store := newStoreFake()
	storage := newStorageFake()
	queue := &queueFake{}
	svc := newSubmitService(store, storage, queue, "financial")

	files := []ports.BatchFile{
		{Filename: "a.pdf", Industry: "financial", Body: strings.NewReader("%PDF-a")},
		{Filename: "b.pdf", Industry: "retail", Body: strings.NewReader("%PDF-b")},
		{Filename: "c.pdf", Body: strings.NewReader("%PDF-c")},
	}
	batch, err := svc.SubmitBatch(context.Background(), files)
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	if len(batch.JobIDs) != 3 {
		t.Fatalf("members = %d, want 3", len(batch.JobIDs))
	}

	bad, err := store.GetJob(context.Background(), batch.JobIDs[1])
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if bad.State != domain.JobFailure {
		t.Fatalf("rejected member state = %s, want failure", bad.State)
	}
	if bad.Error == nil || bad.Error.Kind != domain.ErrorKindUnknownIndustry {
		t.Fatalf("rejected member error = %+v", bad.Error)
	}
	if len(queue.published) != 2 {
		t.Fatalf("published = %v, want the two valid members only", queue.published)
	}
}

func TestSubmitBatchCap(t *testing.T) {
	svc := newSubmitService(newStoreFake(), newStorageFake(), &queueFake{})

	files := make([]ports.BatchFile, 4)
	for i := range files {
		files[i] = ports.BatchFile{Filename: "f.pdf", Body: strings.NewReader("x")}
	}
	_, err := svc.SubmitBatch(context.Background(), files)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("error = %v, want invalid input", err)
	}
}

func TestSubmitBatchEmpty(t *testing.T) {
	svc := newSubmitService(newStoreFake(), newStorageFake(), &queueFake{})

	if _, err := svc.SubmitBatch(context.Background(), nil); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("error = %v, want invalid input", err)
	}
}

func TestCancelBatchSkipsNonPending(t *testing.T) {
	store := newStoreFake()
	storage := newStorageFake()
	queue := &queueFake{}
	svc := newSubmitService(store, storage, queue)

	files := []ports.BatchFile{
		{Filename: "a.pdf", Body: strings.NewReader("a")},
		{Filename: "b.pdf", Body: strings.NewReader("b")},
		{Filename: "c.pdf", Body: strings.NewReader("c")},
	}
	batch, err := svc.SubmitBatch(context.Background(), files)
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	// One member is already claimed by a worker.
	if applied, err := store.ClaimJob(context.Background(), batch.JobIDs[0]); err != nil || !applied {
		t.Fatalf("ClaimJob: applied=%v err=%v", applied, err)
	}

	canceled, err := svc.CancelBatch(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("CancelBatch: %v", err)
	}
	if canceled != 2 {
		t.Fatalf("canceled = %d, want 2", canceled)
	}

	running, _ := store.GetJob(context.Background(), batch.JobIDs[0])
	if running.State != domain.JobRunning {
		t.Fatalf("claimed member state = %s, want running untouched", running.State)
	}
	for _, id := range batch.JobIDs[1:] {
		job, _ := store.GetJob(context.Background(), id)
		if job.State != domain.JobFailure || job.Error == nil || job.Error.Kind != domain.ErrorKindCanceled {
			t.Fatalf("member %s = %s error=%+v, want canceled failure", id, job.State, job.Error)
		}
	}
	if len(storage.removed) != 2 {
		t.Fatalf("removed = %v, want staged payloads of canceled members", storage.removed)
	}
}

func TestCancelBatchUnknownBatch(t *testing.T) {
	svc := newSubmitService(newStoreFake(), newStorageFake(), &queueFake{})

	if _, err := svc.CancelBatch(context.Background(), "missing"); !errors.Is(err, domain.ErrBatchNotFound) {
		t.Fatalf("error = %v, want batch not found", err)
	}
}
