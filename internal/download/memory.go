package download

import (
	"context"
	"sync"
	"time"

	"github.com/auddy/backend/internal/extraction"
)

const (
	DefaultMemoryQueueSize = 1024
	subscriberBuffer       = 16
)

// MemoryQueue is an in-process Broker for single-binary deployments and
// tests. Tasks are lost on restart.
type MemoryQueue struct {
	tasks chan *Task

	mu     sync.Mutex
	subs   map[string]map[*memorySubscription]struct{}
	closed chan struct{}
	once   sync.Once
}

// NewMemoryQueue creates a queue holding up to size pending tasks.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = DefaultMemoryQueueSize
	}
	return &MemoryQueue{
		tasks:  make(chan *Task, size),
		subs:   make(map[string]map[*memorySubscription]struct{}),
		closed: make(chan struct{}),
	}
}

// Push adds a task, blocking while the queue is full.
func (q *MemoryQueue) Push(ctx context.Context, task *Task) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}
	select {
	case q.tasks <- task:
		return nil
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Pop(ctx context.Context, timeout time.Duration) (*Task, error) {
	if timeout == 0 {
		timeout = defaultBlockTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case task := <-q.tasks:
		return task, nil
	case <-timer.C:
		return nil, ErrQueueEmpty
	case <-q.closed:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Len(ctx context.Context) (int64, error) {
	return int64(len(q.tasks)), nil
}

// PublishStatus fans a snapshot out to the job's subscribers. Slow
// subscribers drop events rather than block the publisher.
func (q *MemoryQueue) PublishStatus(ctx context.Context, job *extraction.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for sub := range q.subs[job.ID] {
		select {
		case sub.ch <- job.Clone():
		default:
		}
	}
	return nil
}

func (q *MemoryQueue) SubscribeStatus(ctx context.Context, jobID string) (Subscription, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	select {
	case <-q.closed:
		return nil, ErrQueueClosed
	default:
	}

	sub := &memorySubscription{queue: q, jobID: jobID, ch: make(chan *extraction.Job, subscriberBuffer)}
	if q.subs[jobID] == nil {
		q.subs[jobID] = make(map[*memorySubscription]struct{})
	}
	q.subs[jobID][sub] = struct{}{}
	return sub, nil
}

func (q *MemoryQueue) unsubscribe(sub *memorySubscription) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if set, ok := q.subs[sub.jobID]; ok {
		if _, ok := set[sub]; ok {
			delete(set, sub)
			close(sub.ch)
		}
		if len(set) == 0 {
			delete(q.subs, sub.jobID)
		}
	}
}

// Close stops the queue and ends every subscription.
func (q *MemoryQueue) Close() error {
	q.once.Do(func() {
		close(q.closed)
		q.mu.Lock()
		defer q.mu.Unlock()
		for jobID, set := range q.subs {
			for sub := range set {
				close(sub.ch)
			}
			delete(q.subs, jobID)
		}
	})
	return nil
}

type memorySubscription struct {
	queue *MemoryQueue
	jobID string
	ch    chan *extraction.Job
}

func (s *memorySubscription) Channel() <-chan *extraction.Job {
	return s.ch
}

func (s *memorySubscription) Close() error {
	s.queue.unsubscribe(s)
	return nil
}

var _ Broker = (*MemoryQueue)(nil)
