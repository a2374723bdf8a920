package download

import (
	"context"
	"fmt"

	"github.com/auddy/backend/internal/extraction"
	"github.com/auddy/backend/internal/logger"
	"github.com/auddy/backend/internal/metrics"
)

// Service is the dispatch side of extraction: it turns job ids into queued
// tasks and relays status snapshots. Workers are optional so the API process
// can dispatch to a separate worker process.
type Service struct {
	broker     Broker
	workerPool *WorkerPool
	metrics    *metrics.Metrics
	log        *logger.Logger
}

// ServiceConfig holds configuration for the dispatch service
type ServiceConfig struct {
	WorkerCount int
	// RunWorkers starts an in-process worker pool when a runner is attached.
	RunWorkers bool
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
}

// NewService creates a dispatch service on broker. runner may be nil when
// this process only enqueues.
func NewService(broker Broker, runner JobRunner, config *ServiceConfig) *Service {
	if config == nil {
		config = &ServiceConfig{}
	}
	log := config.Logger
	if log == nil {
		log = logger.Discard()
	}

	s := &Service{
		broker:  broker,
		metrics: config.Metrics,
		log:     log.WithComponent("dispatch"),
	}
	if runner != nil && config.RunWorkers {
		s.workerPool = NewWorkerPool(broker, runner, &WorkerPoolConfig{
			WorkerCount: config.WorkerCount,
			Logger:      log,
			Metrics:     config.Metrics,
		})
	}
	return s
}

// Start starts the worker pool, if any
func (s *Service) Start() {
	if s.workerPool != nil {
		s.workerPool.Start()
	}
}

// Stop stops the workers and closes the broker
func (s *Service) Stop(ctx context.Context) error {
	if s.workerPool != nil {
		if err := s.workerPool.Stop(ctx); err != nil {
			s.log.WarnErr(ctx, "worker pool stop error", err)
		}
	}
	return s.broker.Close()
}

// Broker returns the underlying broker
func (s *Service) Broker() Broker {
	return s.broker
}

// Dispatch queues jobID for processing and returns the task id.
func (s *Service) Dispatch(ctx context.Context, jobID string) (string, error) {
	task := NewTask(jobID)
	if err := s.broker.Push(ctx, task); err != nil {
		return "", fmt.Errorf("dispatch job %s: %w", jobID, err)
	}

	if s.metrics != nil {
		if n, err := s.broker.Len(ctx); err == nil {
			s.metrics.SetQueueDepth(n)
		}
	}
	s.log.Debug(ctx, "job dispatched", logger.Fields{"job_id": jobID, "task_id": task.ID})
	return task.ID, nil
}

// PublishStatus relays a job snapshot to status subscribers.
func (s *Service) PublishStatus(ctx context.Context, job *extraction.Job) error {
	return s.broker.PublishStatus(ctx, job)
}

// SubscribeStatus returns a subscription for one job's status events
func (s *Service) SubscribeStatus(ctx context.Context, jobID string) (Subscription, error) {
	return s.broker.SubscribeStatus(ctx, jobID)
}

// QueueLength returns the number of tasks waiting for a worker
func (s *Service) QueueLength(ctx context.Context) (int64, error) {
	return s.broker.Len(ctx)
}

// IsRunning reports whether in-process workers are running.
func (s *Service) IsRunning() bool {
	return s.workerPool != nil && s.workerPool.IsRunning()
}

var (
	_ extraction.Dispatcher      = (*Service)(nil)
	_ extraction.StatusPublisher = (*Service)(nil)
)
