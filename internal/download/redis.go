package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/auddy/backend/internal/extraction"
)

const (
	keyTaskQueue     = "extraction:queue"
	keyStatusChannel = "extraction:status:"

	defaultBlockTimeout = 5 * time.Second
)

// RedisQueue is a Broker backed by a Redis list and pub/sub channels.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue connects to redisURL and verifies the connection.
func NewRedisQueue(redisURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisQueue{client: client}, nil
}

// Client returns the underlying Redis client
func (q *RedisQueue) Client() *redis.Client {
	return q.client
}

// Ping checks the Redis connection.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Push appends a task to the queue
func (q *RedisQueue) Push(ctx context.Context, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := q.client.LPush(ctx, keyTaskQueue, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Pop removes the oldest task, blocking up to timeout.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*Task, error) {
	if timeout == 0 {
		timeout = defaultBlockTimeout
	}

	result, err := q.client.BRPop(ctx, timeout, keyTaskQueue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrQueueEmpty
		}
		if errors.Is(err, redis.ErrClosed) {
			return nil, ErrQueueClosed
		}
		return nil, fmt.Errorf("failed to dequeue task: %w", err)
	}
	if len(result) < 2 {
		return nil, ErrQueueEmpty
	}

	var task Task
	if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// Len returns the number of tasks waiting in the queue
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, keyTaskQueue).Result()
}

// PublishStatus publishes a job snapshot on the job's status channel.
func (q *RedisQueue) PublishStatus(ctx context.Context, job *extraction.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}
	return q.client.Publish(ctx, keyStatusChannel+job.ID, data).Err()
}

// SubscribeStatus subscribes to a job's status channel. It returns once the
// subscription is confirmed so no event published afterwards is missed.
func (q *RedisQueue) SubscribeStatus(ctx context.Context, jobID string) (Subscription, error) {
	pubsub := q.client.Subscribe(ctx, keyStatusChannel+jobID)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to job status: %w", err)
	}
	return newRedisSubscription(pubsub), nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan *extraction.Job
	done   chan struct{}
	once   sync.Once
}

func newRedisSubscription(pubsub *redis.PubSub) *redisSubscription {
	s := &redisSubscription{pubsub: pubsub, ch: make(chan *extraction.Job), done: make(chan struct{})}
	go func() {
		defer close(s.ch)
		for msg := range pubsub.Channel() {
			var job extraction.Job
			if err := json.Unmarshal([]byte(msg.Payload), &job); err != nil {
				continue
			}
			select {
			case s.ch <- &job:
			case <-s.done:
				return
			}
		}
	}()
	return s
}

// Channel returns a channel that receives job status updates
func (s *redisSubscription) Channel() <-chan *extraction.Job {
	return s.ch
}

// Close closes the subscription
func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

var _ Broker = (*RedisQueue)(nil)
