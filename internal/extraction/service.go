package extraction

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/auddy/backend/internal/errors"
	"github.com/auddy/backend/internal/logger"
	"github.com/auddy/backend/internal/source"
)

// DefaultListLimit caps List when the caller gives no limit.
const DefaultListLimit = 50

// Service is the collaborator-facing API: submit, query and retrieve.
type Service struct {
	repo       Repository
	dispatcher Dispatcher
	log        *logger.Logger
}

// NewService creates a new extraction service
func NewService(repo Repository, dispatcher Dispatcher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		log:        log.WithComponent("extraction"),
	}
}

// Submit creates a pending job and hands it to the runner. It returns as
// soon as the job is dispatched.
func (s *Service) Submit(ctx context.Context, sourceURL, audioFormat string) (*Job, error) {
	if err := source.ValidateURL(sourceURL); err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}
	format, err := ParseFormat(audioFormat)
	if err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}

	job := NewJob(sourceURL, format)
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, apperrors.DatabaseError("failed to create extraction job").WithCause(err)
	}

	taskID, err := s.dispatcher.Dispatch(ctx, job.ID)
	if err != nil {
		appErr := apperrors.QueueError("failed to dispatch extraction job").WithCause(err)
		job.MarkFailed(appErr.Error())
		if uErr := s.repo.Update(ctx, job); uErr != nil {
			s.log.Error(ctx, "failed to mark undispatched job failed", uErr, logger.Fields{"job_id": job.ID})
		}
		return nil, appErr
	}

	if err := s.repo.SetTaskID(ctx, job.ID, taskID); err != nil {
		return nil, apperrors.DatabaseError("failed to record task id").WithCause(err)
	}
	job.TaskID = taskID

	s.log.Info(ctx, "extraction submitted", logger.Fields{
		"job_id":       job.ID,
		"task_id":      taskID,
		"audio_format": job.AudioFormat,
		"source_type":  source.Classify(sourceURL),
	})
	return job, nil
}

// Get returns a snapshot of a job. It never waits on an in-flight attempt.
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return job, nil
}

// GetByTaskID looks a job up by the id of the unit of work processing it.
func (s *Service) GetByTaskID(ctx context.Context, taskID string) (*Job, error) {
	job, err := s.repo.GetByTaskID(ctx, taskID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return job, nil
}

// List returns the most recent jobs.
func (s *Service) List(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	jobs, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list extraction jobs").WithCause(err)
	}
	return jobs, nil
}

// Formats lists the recognized output formats.
func (s *Service) Formats() []FormatOption {
	return Formats()
}

// File is an open handle on a completed job's output.
type File struct {
	io.ReadSeekCloser
	Name    string
	Size    int64
	ModTime time.Time
}

// OpenFile opens the output of a completed job. It fails with NOT_READY
// while the job has not completed and NOT_FOUND when either the job or
// its file is gone.
func (s *Service) OpenFile(ctx context.Context, id string) (*File, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.NotFound("file")
		}
		return nil, mapRepoError(err)
	}

	if job.Status != StatusCompleted {
		return nil, apperrors.NotReady("file not ready yet").WithDetails(map[string]any{
			"status": job.Status,
		})
	}
	if job.FilePath == "" {
		return nil, apperrors.NotFound("file")
	}

	f, err := os.Open(job.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Warn(ctx, "completed job file missing on disk", logger.Fields{
				"job_id":    job.ID,
				"file_path": job.FilePath,
			})
			return nil, apperrors.NotFound("file")
		}
		return nil, apperrors.StorageError("failed to open extracted file").WithCause(err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, apperrors.StorageError("failed to stat extracted file").WithCause(err)
	}

	return &File{
		ReadSeekCloser: f,
		Name:           filepath.Base(job.FilePath),
		Size:           info.Size(),
		ModTime:        info.ModTime(),
	}, nil
}

func mapRepoError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperrors.JobNotFound()
	}
	return apperrors.DatabaseError("failed to load extraction job").WithCause(err)
}
