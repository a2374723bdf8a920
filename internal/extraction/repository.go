package extraction

import (
	"context"
	"errors"
)

// ErrNotFound is returned by repositories when no job has the given key.
var ErrNotFound = errors.New("extraction job not found")

// Repository persists job records.
type Repository interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	GetByTaskID(ctx context.Context, taskID string) (*Job, error)
	Update(ctx context.Context, job *Job) error
	SetTaskID(ctx context.Context, id, taskID string) error
	List(ctx context.Context, limit int) ([]*Job, error)
}

// Dispatcher hands a job id to the asynchronous runner and returns the id
// of the unit of work that will process it.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) (taskID string, err error)
}

// StatusPublisher broadcasts job snapshots to interested listeners.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, job *Job) error
}
