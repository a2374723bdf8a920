package fetcher

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	apperrors "github.com/auddy/backend/internal/errors"
	"github.com/auddy/backend/internal/extraction"
	"github.com/auddy/backend/internal/logger"
)

// Video downloads a direct video link and extracts its audio track.
type Video struct {
	http       HTTPDownloader
	transcoder Transcoder
	log        *logger.Logger
}

// NewVideo creates a generic video fetcher
func NewVideo(http HTTPDownloader, transcoder Transcoder, log *logger.Logger) *Video {
	if log == nil {
		log = logger.Discard()
	}
	return &Video{http: http, transcoder: transcoder, log: log.WithComponent("fetcher.video")}
}

func (v *Video) Fetch(ctx context.Context, job *extraction.Job, scratchDir string) (*Result, error) {
	input := filepath.Join(scratchDir, "input_video")
	if _, err := v.http.Download(ctx, job.SourceURL, input); err != nil {
		return nil, apperrors.DownloadFailed("failed to download video").WithCause(err)
	}

	out, duration, err := transcode(ctx, v.transcoder, v.log, input, scratchDir, job.AudioFormat.Ext())
	if err != nil {
		return nil, err
	}

	title := probeTitle(ctx, v.transcoder, v.log, input)
	if title == "" {
		title = urlBaseName(job.SourceURL)
	}

	return &Result{AudioPath: out, Title: title, DurationSeconds: duration}, nil
}

// urlBaseName returns the last path segment of rawURL without extension.
func urlBaseName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(parsed.Path)
	if base == "/" || base == "." {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

var _ Fetcher = (*Video)(nil)
