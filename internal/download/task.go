package download

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/auddy/backend/internal/extraction"
)

var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
)

// Task is one unit of asynchronous work: run the job with JobID.
type Task struct {
	ID         string    `json:"task_id"`
	JobID      string    `json:"job_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewTask creates a task with a fresh id for jobID.
func NewTask(jobID string) *Task {
	return &Task{
		ID:         uuid.New().String(),
		JobID:      jobID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Subscription delivers status snapshots of one job until closed.
type Subscription interface {
	Channel() <-chan *extraction.Job
	Close() error
}

// Broker carries tasks from the API process to workers and job status
// snapshots from workers back to listeners.
type Broker interface {
	Push(ctx context.Context, task *Task) error
	// Pop blocks up to timeout and returns ErrQueueEmpty when nothing arrived.
	Pop(ctx context.Context, timeout time.Duration) (*Task, error)
	Len(ctx context.Context) (int64, error)
	PublishStatus(ctx context.Context, job *extraction.Job) error
	SubscribeStatus(ctx context.Context, jobID string) (Subscription, error)
	Close() error
}
