package fetcher

import (
	"context"
	"fmt"
	"path/filepath"

	apperrors "github.com/auddy/backend/internal/errors"
	"github.com/auddy/backend/internal/extraction"
	"github.com/auddy/backend/internal/logger"
	"github.com/auddy/backend/internal/source"
)

// GoogleDrive downloads a shared Drive file and extracts its audio track.
type GoogleDrive struct {
	http       HTTPDownloader
	transcoder Transcoder
	titles     TitleResolver
	log        *logger.Logger
}

// NewGoogleDrive creates a Drive fetcher. titles may be nil.
func NewGoogleDrive(http HTTPDownloader, transcoder Transcoder, titles TitleResolver, log *logger.Logger) *GoogleDrive {
	if log == nil {
		log = logger.Discard()
	}
	return &GoogleDrive{http: http, transcoder: transcoder, titles: titles, log: log.WithComponent("fetcher.drive")}
}

func (g *GoogleDrive) Fetch(ctx context.Context, job *extraction.Job, scratchDir string) (*Result, error) {
	fileID := source.DriveFileID(job.SourceURL)
	if fileID == "" {
		return nil, apperrors.InvalidSourceReference("invalid drive url")
	}

	video := filepath.Join(scratchDir, "drive_video")
	if _, err := g.http.DownloadDrive(ctx, fileID, video); err != nil {
		return nil, apperrors.DownloadFailed("failed to download from google drive").WithCause(err)
	}

	out, duration, err := transcode(ctx, g.transcoder, g.log, video, scratchDir, job.AudioFormat.Ext())
	if err != nil {
		return nil, err
	}

	title := probeTitle(ctx, g.transcoder, g.log, video)
	if title == "" && g.titles != nil {
		t, err := g.titles.FileTitle(ctx, fileID)
		if err != nil {
			g.log.Debug(ctx, "drive title lookup failed", logger.Fields{"file_id": fileID, "error": err.Error()})
		}
		title = t
	}
	if title == "" {
		title = fallbackDriveTitle(fileID)
	}

	return &Result{AudioPath: out, Title: title, DurationSeconds: duration}, nil
}

func fallbackDriveTitle(fileID string) string {
	short := fileID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("Google Drive Video %s", short)
}

var _ Fetcher = (*GoogleDrive)(nil)
