package fetcher

import (
	"context"
	"errors"
	"math"
	"path/filepath"

	apperrors "github.com/auddy/backend/internal/errors"
	"github.com/auddy/backend/internal/ffmpeg"
	"github.com/auddy/backend/internal/logger"
)

// transcode extracts the audio of input into the scratch directory and
// probes its duration. Duration probe failures are logged and yield 0.
func transcode(ctx context.Context, t Transcoder, log *logger.Logger, input, scratchDir, format string) (string, int, error) {
	out := filepath.Join(scratchDir, ffmpeg.OutputName(format))

	if err := t.ExtractAudio(ctx, input, out, format); err != nil {
		if errors.Is(err, ffmpeg.ErrNoOutput) {
			return "", 0, apperrors.NoOutputProduced("no output found").WithCause(err)
		}
		return "", 0, apperrors.TranscodeFailed("audio transcode failed").WithCause(err)
	}

	return out, probeDuration(ctx, t, log, out), nil
}

func probeDuration(ctx context.Context, t Transcoder, log *logger.Logger, path string) int {
	d, err := t.ProbeDuration(ctx, path)
	if err != nil {
		log.WarnErr(ctx, "duration probe failed", err, logger.Fields{"path": filepath.Base(path)})
		return 0
	}
	return int(math.Round(d))
}

func probeTitle(ctx context.Context, t Transcoder, log *logger.Logger, path string) string {
	title, err := t.ProbeTitle(ctx, path)
	if err != nil {
		log.Debug(ctx, "title probe failed", logger.Fields{"path": filepath.Base(path), "error": err.Error()})
		return ""
	}
	return title
}
