package fetcher

import (
	"context"
	"errors"

	apperrors "github.com/auddy/backend/internal/errors"
	"github.com/auddy/backend/internal/extraction"
	"github.com/auddy/backend/internal/logger"
	"github.com/auddy/backend/internal/ytdlp"
)

// YouTube fetches audio with the media-download tool, which selects the
// best audio stream and converts it to the requested codec itself.
type YouTube struct {
	downloader MediaDownloader
	transcoder Transcoder
	log        *logger.Logger
}

// NewYouTube creates a YouTube fetcher
func NewYouTube(downloader MediaDownloader, transcoder Transcoder, log *logger.Logger) *YouTube {
	if log == nil {
		log = logger.Discard()
	}
	return &YouTube{downloader: downloader, transcoder: transcoder, log: log.WithComponent("fetcher.youtube")}
}

// Probe reads title and duration without downloading.
func (y *YouTube) Probe(ctx context.Context, job *extraction.Job) (*Metadata, error) {
	meta, err := y.downloader.GetMetadata(ctx, job.SourceURL)
	if err != nil {
		return nil, err
	}
	return &Metadata{Title: meta.Title, DurationSeconds: meta.DurationSeconds()}, nil
}

func (y *YouTube) Fetch(ctx context.Context, job *extraction.Job, scratchDir string) (*Result, error) {
	res, err := y.downloader.ExtractAudio(ctx, job.SourceURL, job.AudioFormat.Ext(), scratchDir)
	if err != nil {
		if errors.Is(err, ytdlp.ErrNoOutput) {
			return nil, apperrors.NoOutputProduced("no output found").WithCause(err)
		}
		return nil, apperrors.DownloadFailed("youtube download failed").WithCause(err)
	}

	title := res.Metadata.Title
	if title == "" {
		title = job.Title
	}
	if title == "" {
		title = probeTitle(ctx, y.transcoder, y.log, res.FilePath)
	}

	duration := probeDuration(ctx, y.transcoder, y.log, res.FilePath)
	if duration == 0 {
		duration = res.Metadata.DurationSeconds()
	}

	return &Result{AudioPath: res.FilePath, Title: title, DurationSeconds: duration}, nil
}

var (
	_ Fetcher = (*YouTube)(nil)
	_ Prober  = (*YouTube)(nil)
)
