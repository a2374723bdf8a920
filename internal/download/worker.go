package download

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/auddy/backend/internal/logger"
	"github.com/auddy/backend/internal/metrics"
)

const (
	DefaultWorkerCount = 3

	popTimeout = 2 * time.Second
	// pause after a broker error so a dead connection does not spin
	errorPause = time.Second
)

// JobRunner drives a job to a terminal status.
type JobRunner interface {
	Run(ctx context.Context, jobID string) error
}

// JobRunnerFunc adapts a function to JobRunner.
type JobRunnerFunc func(ctx context.Context, jobID string) error

func (f JobRunnerFunc) Run(ctx context.Context, jobID string) error {
	return f(ctx, jobID)
}

// WorkerPool manages a pool of workers that pull tasks from a Broker and
// hand them to a JobRunner. A worker owns one job until Run returns.
type WorkerPool struct {
	broker      Broker
	runner      JobRunner
	workerCount int
	log         *logger.Logger
	metrics     *metrics.Metrics

	wg        sync.WaitGroup
	stopChan  chan struct{}
	runCtx    context.Context
	cancelRun context.CancelFunc
	mu        sync.RWMutex
	running   bool
}

// WorkerPoolConfig holds configuration for the worker pool
type WorkerPoolConfig struct {
	WorkerCount int
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(broker Broker, runner JobRunner, config *WorkerPoolConfig) *WorkerPool {
	if config == nil {
		config = &WorkerPoolConfig{}
	}

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}

	log := config.Logger
	if log == nil {
		log = logger.Discard()
	}

	return &WorkerPool{
		broker:      broker,
		runner:      runner,
		workerCount: workerCount,
		log:         log.WithComponent("worker"),
		metrics:     config.Metrics,
		stopChan:    make(chan struct{}),
	}
}

// Start launches the worker pool
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.running {
		return
	}

	wp.running = true
	wp.stopChan = make(chan struct{})
	wp.runCtx, wp.cancelRun = context.WithCancel(context.Background())

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.log.Info(context.Background(), "worker pool started", logger.Fields{"workers": wp.workerCount})
}

// Stop stops taking new tasks and waits for in-flight jobs. If ctx expires
// first, in-flight jobs are cancelled and Stop returns ctx.Err().
func (wp *WorkerPool) Stop(ctx context.Context) error {
	wp.mu.Lock()
	if !wp.running {
		wp.mu.Unlock()
		return nil
	}
	wp.running = false
	close(wp.stopChan)
	cancelRun := wp.cancelRun
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancelRun()
		wp.log.Info(ctx, "worker pool stopped gracefully")
		return nil
	case <-ctx.Done():
		cancelRun()
		<-done
		wp.log.Warn(ctx, "worker pool shutdown timed out, in-flight jobs cancelled")
		return ctx.Err()
	}
}

// IsRunning returns whether the worker pool is currently running
func (wp *WorkerPool) IsRunning() bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.running
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	// Pops are cancelled as soon as Stop is called; jobs keep running.
	popCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-wp.stopChan:
			cancel()
		case <-popCtx.Done():
		}
	}()

	for {
		select {
		case <-wp.stopChan:
			return
		default:
			wp.processNext(popCtx, id)
		}
	}
}

func (wp *WorkerPool) processNext(popCtx context.Context, workerID int) {
	task, err := wp.broker.Pop(popCtx, popTimeout)
	if err != nil {
		switch {
		case errors.Is(err, ErrQueueEmpty), errors.Is(err, context.Canceled):
		case errors.Is(err, ErrQueueClosed):
			// nothing more will arrive; idle until Stop
			select {
			case <-wp.stopChan:
			case <-time.After(errorPause):
			}
		default:
			wp.log.WarnErr(popCtx, "failed to dequeue task", err, logger.Fields{"worker": workerID})
			select {
			case <-wp.stopChan:
			case <-time.After(errorPause):
			}
		}
		return
	}

	wp.updateQueueDepth(popCtx)
	wp.process(workerID, task)
}

func (wp *WorkerPool) process(workerID int, task *Task) {
	fields := logger.Fields{"worker": workerID, "task_id": task.ID, "job_id": task.JobID}
	wp.log.Info(wp.runCtx, "processing task", fields)

	if wp.metrics != nil {
		wp.metrics.IncBusyWorkers()
		defer wp.metrics.DecBusyWorkers()
	}

	start := time.Now()
	if err := wp.runner.Run(wp.runCtx, task.JobID); err != nil {
		wp.log.Error(wp.runCtx, "task could not be run", err, fields)
		return
	}

	fields["duration_ms"] = time.Since(start).Milliseconds()
	wp.log.Info(wp.runCtx, "task finished", fields)
}

func (wp *WorkerPool) updateQueueDepth(ctx context.Context) {
	if wp.metrics == nil {
		return
	}
	if n, err := wp.broker.Len(ctx); err == nil {
		wp.metrics.SetQueueDepth(n)
	}
}
