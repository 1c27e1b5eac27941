package domain

import "time"

type JobState string

const (
	JobPending JobState = "pending"
	JobRunning JobState = "running"
	JobSuccess JobState = "success"
	JobFailure JobState = "failure"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == JobSuccess || s == JobFailure
}

// ValidTransition encodes the job state machine: pending → running →
// {success, failure}, plus pending → failure for jobs rejected or canceled
// before a worker ever claims them. Terminal states never transition.
func ValidTransition(from, to JobState) bool {
	switch from {
	case JobPending:
		return to == JobRunning || to == JobFailure
	case JobRunning:
		return to == JobSuccess || to == JobFailure
	default:
		return false
	}
}

// ErrorInfo is the structured failure snapshot stored on a failed Job.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Job tracks one asynchronous classification. Only the worker executing the
// job writes to it after creation; terminal jobs are immutable.
type Job struct {
	ID          string          `json:"id"`
	State       JobState        `json:"state"`
	Filename    string          `json:"filename"`
	Industry    string          `json:"industry,omitempty"`
	StoragePath string          `json:"storage_path,omitempty"`
	BatchID     string          `json:"batch_id,omitempty"`
	Result      *Classification `json:"result,omitempty"`
	Error       *ErrorInfo      `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

type BatchState string

const (
	BatchPending BatchState = "pending"
	BatchRunning BatchState = "running"
	BatchPartial BatchState = "partial"
	BatchSuccess BatchState = "success"
	BatchFailure BatchState = "failure"
)

// Batch groups member jobs submitted together. Its state is always derived
// from a fresh read of the members, never stored.
type Batch struct {
	ID        string    `json:"id"`
	JobIDs    []string  `json:"job_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// BatchStatus is the poll-time view of a batch: the derived state plus
// member snapshots in submission order.
type BatchStatus struct {
	ID        string     `json:"id"`
	State     BatchState `json:"state"`
	Jobs      []*Job     `json:"jobs"`
	CreatedAt time.Time  `json:"created_at"`
}

// DeriveBatchState aggregates member job states:
// pending when all members are pending, success/failure when all members
// share that outcome, partial when every member is terminal but outcomes are
// mixed, running otherwise (work in flight or still queued).
func DeriveBatchState(states []JobState) BatchState {
	if len(states) == 0 {
		return BatchPending
	}

	var pending, running, success, failure int
	for _, s := range states {
		switch s {
		case JobPending:
			pending++
		case JobRunning:
			running++
		case JobSuccess:
			success++
		case JobFailure:
			failure++
		}
	}

	total := len(states)
	switch {
	case pending == total:
		return BatchPending
	case success == total:
		return BatchSuccess
	case failure == total:
		return BatchFailure
	case success+failure == total:
		return BatchPartial
	default:
		return BatchRunning
	}
}
