// Package fetcher downloads source media and produces a local audio file,
// one implementation per source class.
package fetcher

import (
	"context"
	"sync"

	"github.com/auddy/backend/internal/extraction"
	"github.com/auddy/backend/internal/ffmpeg"
	"github.com/auddy/backend/internal/source"
	"github.com/auddy/backend/internal/ytdlp"
)

// Result is what a successful fetch leaves in the scratch directory.
type Result struct {
	AudioPath       string
	Title           string
	DurationSeconds int
}

// Fetcher produces an audio file for a job. All intermediate files are
// written under scratchDir, which the caller owns and removes. Fetchers
// report failures and never retry.
type Fetcher interface {
	Fetch(ctx context.Context, job *extraction.Job, scratchDir string) (*Result, error)
}

// Metadata is early, best-effort information about a source.
type Metadata struct {
	Title           string
	DurationSeconds int
}

// Prober is implemented by fetchers that can read metadata before the
// download starts.
type Prober interface {
	Probe(ctx context.Context, job *extraction.Job) (*Metadata, error)
}

// MediaDownloader is the media-download tool.
type MediaDownloader interface {
	GetMetadata(ctx context.Context, sourceURL string) (*ytdlp.Metadata, error)
	ExtractAudio(ctx context.Context, sourceURL, codec, dir string) (*ytdlp.DownloadResult, error)
}

// Transcoder converts and probes local media files.
type Transcoder interface {
	ExtractAudio(ctx context.Context, input, output, format string) error
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ProbeTitle(ctx context.Context, path string) (string, error)
}

// HTTPDownloader streams remote bytes to disk.
type HTTPDownloader interface {
	Download(ctx context.Context, rawURL, dst string) (int64, error)
	DownloadDrive(ctx context.Context, fileID, dst string) (int64, error)
}

// TitleResolver looks up a display name for a Drive file id.
type TitleResolver interface {
	FileTitle(ctx context.Context, fileID string) (string, error)
}

var (
	_ MediaDownloader = (*ytdlp.Service)(nil)
	_ Transcoder      = (*ffmpeg.Transcoder)(nil)
)

// Registry maps each source class to its fetcher.
type Registry struct {
	mu       sync.RWMutex
	fetchers map[source.Type]Fetcher
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[source.Type]Fetcher)}
}

// Register sets the fetcher for a source class, replacing any previous one.
func (r *Registry) Register(t source.Type, f Fetcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchers[t] = f
}

// For returns the fetcher registered for t.
func (r *Registry) For(t source.Type) (Fetcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fetchers[t]
	return f, ok
}

// Missing lists source classes with no registered fetcher.
func (r *Registry) Missing() []source.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []source.Type
	for _, t := range source.Types() {
		if _, ok := r.fetchers[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}
