// Package placement copies fetched audio into its durable per-job location.
package placement

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	apperrors "github.com/auddy/backend/internal/errors"
	"github.com/auddy/backend/internal/extraction"
	"github.com/auddy/backend/internal/fetcher"
	"github.com/auddy/backend/internal/fileutil"
	"github.com/auddy/backend/internal/logger"
)

// Mirror receives a copy of every placed file, keyed by "<job id>/<name>".
type Mirror interface {
	Mirror(ctx context.Context, key, path string) error
}

// Placed describes the durable output of a job.
type Placed struct {
	Path string
	// Size is nil when the placed file could not be statted.
	Size *int64
}

// Engine places fetch results under root/<job id>/.
type Engine struct {
	root     string
	mirror   Mirror
	log      *logger.Logger
	mkdirAll func(path string, perm os.FileMode) error
}

// Option is a functional option for configuring Engine
type Option func(*Engine)

// WithMirror uploads every placed file to m. Mirror failures are logged only.
func WithMirror(m Mirror) Option {
	return func(e *Engine) {
		e.mirror = m
	}
}

// New creates an Engine rooted at root.
func New(root string, log *logger.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logger.Discard()
	}
	e := &Engine{root: root, log: log.WithComponent("placement"), mkdirAll: os.MkdirAll}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Root returns the destination root directory.
func (e *Engine) Root() string {
	return e.root
}

// Dir returns the destination directory of a job.
func (e *Engine) Dir(jobID string) string {
	return filepath.Join(e.root, jobID)
}

// Place copies res.AudioPath into the job's directory under a sanitized
// name derived from res.Title.
func (e *Engine) Place(ctx context.Context, job *extraction.Job, res *fetcher.Result) (*Placed, error) {
	dir := e.Dir(job.ID)
	if err := e.mkdirAll(dir, 0o755); err != nil {
		appErr := apperrors.DirectoryUnavailable().WithCause(err)
		if errors.Is(err, fs.ErrPermission) {
			appErr.WithDetails(map[string]any{"permission_denied": true})
		}
		return nil, appErr
	}

	dst := filepath.Join(dir, BuildFilename(res.Title, job.AudioFormat.Ext()))
	if err := fileutil.CopyPreserve(res.AudioPath, dst); err != nil {
		return nil, apperrors.PlacementFailed("unable to save extracted audio file").WithCause(err)
	}

	placed := &Placed{Path: dst}
	if info, err := os.Stat(dst); err != nil {
		e.log.WarnErr(ctx, "placed file could not be statted", err, logger.Fields{"job_id": job.ID, "path": dst})
	} else {
		size := info.Size()
		placed.Size = &size
	}

	if e.mirror != nil {
		key := job.ID + "/" + filepath.Base(dst)
		if err := e.mirror.Mirror(ctx, key, dst); err != nil {
			e.log.WarnErr(ctx, "mirror upload failed", err, logger.Fields{"job_id": job.ID, "key": key})
		}
	}

	return placed, nil
}
