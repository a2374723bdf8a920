// Package runner drives one extraction job from Pending to a terminal status.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	apperrors "github.com/auddy/backend/internal/errors"
	"github.com/auddy/backend/internal/extraction"
	"github.com/auddy/backend/internal/fetcher"
	"github.com/auddy/backend/internal/logger"
	"github.com/auddy/backend/internal/metrics"
	"github.com/auddy/backend/internal/placement"
	"github.com/auddy/backend/internal/source"
)

const (
	DefaultMaxRetries = 3
	DefaultBackoff    = 30 * time.Second
)

// Config is the retry policy and scratch location of a Runner.
type Config struct {
	// MaxRetries is the number of attempts made after the first one fails.
	MaxRetries int
	// Backoff is the fixed delay between attempts.
	Backoff time.Duration
	// ScratchDir is the parent of per-attempt scratch directories; empty
	// means os.TempDir().
	ScratchDir string
}

// Placer moves a fetch result to its durable location.
type Placer interface {
	Place(ctx context.Context, job *extraction.Job, res *fetcher.Result) (*placement.Placed, error)
}

// Runner executes jobs. It is safe for concurrent use as long as each job id
// is run by one goroutine at a time.
type Runner struct {
	cfg       Config
	repo      extraction.Repository
	fetchers  *fetcher.Registry
	placer    Placer
	publisher extraction.StatusPublisher
	metrics   *metrics.Metrics
	log       *logger.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option is a functional option for configuring Runner
type Option func(*Runner)

// WithPublisher broadcasts every persisted state change.
func WithPublisher(p extraction.StatusPublisher) Option {
	return func(r *Runner) {
		r.publisher = p
	}
}

// WithMetrics records job outcomes and attempt durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithSleep replaces the backoff wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) {
		r.sleep = fn
	}
}

// New creates a Runner. A negative MaxRetries is treated as zero.
func New(cfg Config, repo extraction.Repository, fetchers *fetcher.Registry, placer Placer, log *logger.Logger, opts ...Option) *Runner {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if log == nil {
		log = logger.Discard()
	}
	r := &Runner{
		cfg:      cfg,
		repo:     repo,
		fetchers: fetchers,
		placer:   placer,
		log:      log.WithComponent("runner"),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes the job with the given id until it is Completed or Failed.
// The returned error is nil when the job reached a terminal status, even if
// that status is Failed; it is non-nil only when the job could not be driven
// (unknown id, persistence failure).
func (r *Runner) Run(ctx context.Context, jobID string) error {
	job, err := r.repo.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, extraction.ErrNotFound) {
			r.log.Warn(ctx, "job not found at pickup", logger.Fields{"job_id": jobID})
			return apperrors.JobNotFound().WithCause(err)
		}
		return apperrors.DatabaseError("failed to load job").WithCause(err)
	}
	if job.IsTerminal() {
		r.log.Info(ctx, "job already finished, skipping", logger.Fields{"job_id": jobID, "status": string(job.Status)})
		return nil
	}

	fields := logger.Fields{"job_id": job.ID, "source_url": job.SourceURL, "format": job.AudioFormat.String()}

	for attempt := 0; ; attempt++ {
		if attempt == 0 {
			job.MarkProcessing()
			if err := r.save(ctx, job); err != nil {
				return err
			}
		}

		r.log.Info(ctx, "extraction attempt started", merge(fields, logger.Fields{"attempt": attempt + 1}))
		started := time.Now()
		attemptErr := r.attempt(ctx, job)
		if r.metrics != nil {
			r.metrics.ObserveAttempt(time.Since(started))
		}

		if attemptErr == nil {
			r.log.Info(ctx, "extraction completed", merge(fields, logger.Fields{
				"file_path": job.FilePath,
				"attempts":  attempt + 1,
			}))
			r.recordOutcome(job.Status)
			return nil
		}

		msg := attemptErr.Error()
		if err := ctx.Err(); err != nil {
			// ctx is done; the terminal state still has to be stored.
			r.log.WarnErr(ctx, "extraction interrupted", attemptErr, merge(fields, logger.Fields{"attempt": attempt + 1}))
			return r.fail(context.WithoutCancel(ctx), job, fmt.Sprintf("%s (attempt aborted: %v)", msg, err))
		}
		if attempt >= r.cfg.MaxRetries {
			exhausted := merge(fields, logger.Fields{"attempts": attempt + 1})
			if apperrors.IsServerError(attemptErr) {
				r.log.Error(ctx, "extraction failed, retries exhausted", attemptErr, exhausted)
			} else {
				r.log.WarnErr(ctx, "extraction failed, retries exhausted", attemptErr, exhausted)
			}
			return r.fail(ctx, job, msg)
		}

		job.MarkRetrying(msg)
		if err := r.save(ctx, job); err != nil {
			return err
		}
		if r.metrics != nil {
			r.metrics.RecordRetry()
		}
		r.log.WarnErr(ctx, "extraction attempt failed, retrying", attemptErr, merge(fields, logger.Fields{
			"attempt": attempt + 1,
			"backoff": r.cfg.Backoff.String(),
		}))

		if err := r.sleep(ctx, r.cfg.Backoff); err != nil {
			// Persist with a fresh context; ctx is already done.
			return r.fail(context.WithoutCancel(ctx), job, fmt.Sprintf("%s (retry aborted: %v)", msg, err))
		}
	}
}

// attempt is one classify, fetch and place pass. The scratch directory is
// removed on every exit path.
func (r *Runner) attempt(ctx context.Context, job *extraction.Job) error {
	scratch, err := os.MkdirTemp(r.cfg.ScratchDir, "extract-"+job.ID+"-")
	if err != nil {
		return apperrors.InternalError("failed to create scratch directory").WithCause(err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			r.log.WarnErr(ctx, "failed to remove scratch directory", err, logger.Fields{"job_id": job.ID, "path": scratch})
		}
	}()

	kind := source.Classify(job.SourceURL)
	f, ok := r.fetchers.For(kind)
	if !ok {
		return apperrors.ClassificationAmbiguous(job.SourceURL)
	}

	if p, ok := f.(fetcher.Prober); ok && job.Title == "" {
		if meta, err := p.Probe(ctx, job); err != nil {
			r.log.Debug(ctx, "metadata probe failed", logger.Fields{"job_id": job.ID, "error": err.Error()})
		} else if meta.Title != "" {
			job.Title = meta.Title
			if err := r.save(ctx, job); err != nil {
				return err
			}
		}
	}

	res, err := f.Fetch(ctx, job, scratch)
	if err != nil {
		return err
	}
	if res.Title != "" {
		job.Title = res.Title
	}

	placed, err := r.placer.Place(ctx, job, res)
	if err != nil {
		return err
	}

	// job only becomes Completed once that state is stored.
	done := job.Clone()
	done.MarkCompleted(placed.Path, placed.Size, res.DurationSeconds)
	if err := r.save(ctx, done); err != nil {
		return err
	}
	*job = *done
	return nil
}

func (r *Runner) fail(ctx context.Context, job *extraction.Job, msg string) error {
	job.MarkFailed(msg)
	if err := r.save(ctx, job); err != nil {
		return err
	}
	r.recordOutcome(job.Status)
	return nil
}

// save persists job and then publishes the new snapshot. Publish failures
// are logged only.
func (r *Runner) save(ctx context.Context, job *extraction.Job) error {
	if err := r.repo.Update(ctx, job); err != nil {
		r.log.Error(ctx, "failed to persist job", err, logger.Fields{"job_id": job.ID, "status": string(job.Status)})
		return apperrors.DatabaseError("failed to update job").WithCause(err)
	}
	if r.publisher != nil {
		if err := r.publisher.PublishStatus(ctx, job.Clone()); err != nil {
			r.log.WarnErr(ctx, "failed to publish job status", err, logger.Fields{"job_id": job.ID})
		}
	}
	return nil
}

func (r *Runner) recordOutcome(status extraction.Status) {
	if r.metrics != nil {
		r.metrics.RecordJobOutcome(string(status))
	}
}

func merge(base, extra logger.Fields) logger.Fields {
	out := make(logger.Fields, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
