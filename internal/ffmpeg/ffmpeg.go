// Package ffmpeg runs the ffmpeg transcoder and the ffprobe prober.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/auddy/backend/internal/toolexec"
)

// ErrNoOutput is returned when ffmpeg exits cleanly without writing the output.
var ErrNoOutput = errors.New("transcoder produced no output")

// OutputBase is the scratch file name (without extension) transcodes write to.
const OutputBase = "extracted_audio"

// Transcoder extracts audio tracks with ffmpeg and probes media with ffprobe.
type Transcoder struct {
	ffmpegPath  string
	ffprobePath string
	runner      toolexec.Runner
}

// Option is a functional option for configuring Transcoder
type Option func(*Transcoder)

// WithFFmpegPath sets a custom ffmpeg executable path
func WithFFmpegPath(path string) Option {
	return func(t *Transcoder) {
		if path != "" {
			t.ffmpegPath = path
		}
	}
}

// WithFFprobePath sets a custom ffprobe executable path
func WithFFprobePath(path string) Option {
	return func(t *Transcoder) {
		if path != "" {
			t.ffprobePath = path
		}
	}
}

// WithRunner sets a custom command runner
func WithRunner(r toolexec.Runner) Option {
	return func(t *Transcoder) {
		if r != nil {
			t.runner = r
		}
	}
}

// New creates a Transcoder
func New(opts ...Option) *Transcoder {
	t := &Transcoder{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		runner:      toolexec.ExecRunner{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Encoder returns the ffmpeg audio encoder for an output format.
func Encoder(format string) string {
	switch format {
	case "mp3":
		return "libmp3lame"
	case "m4a":
		return "aac"
	case "ogg":
		return "libvorbis"
	case "wav":
		return "pcm_s16le"
	default:
		return format
	}
}

// OutputName is the scratch file name a transcode to format writes.
func OutputName(format string) string {
	return OutputBase + "." + format
}

// ExtractAudio drops the video stream of input and encodes its audio into
// output using the encoder for format.
func (t *Transcoder) ExtractAudio(ctx context.Context, input, output, format string) error {
	args := []string{
		"-i", input,
		"-vn",
		"-c:a", Encoder(format),
		"-q:a", "2",
		"-y",
		output,
	}

	if _, err := t.runner.Run(ctx, t.ffmpegPath, args...); err != nil {
		return fmt.Errorf("ffmpeg audio extraction failed: %w", err)
	}

	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("%w: %s", ErrNoOutput, output)
	}
	return nil
}

// ProbeDuration returns the container duration of path in seconds.
func (t *Transcoder) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := t.probeEntry(ctx, path, "format=duration")
	if err != nil {
		return 0, err
	}
	d := parseFloat(out)
	if math.IsNaN(d) || d < 0 {
		return 0, fmt.Errorf("ffprobe: unparseable duration %q", out)
	}
	return d, nil
}

// ProbeTitle returns the title tag of path, or "" if it has none.
func (t *Transcoder) ProbeTitle(ctx context.Context, path string) (string, error) {
	return t.probeEntry(ctx, path, "format_tags=title")
}

func (t *Transcoder) probeEntry(ctx context.Context, path, entry string) (string, error) {
	args := []string{
		"-v", "error",
		"-show_entries", entry,
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	res, err := t.runner.Run(ctx, t.ffprobePath, args...)
	if err != nil {
		return "", fmt.Errorf("ffprobe %s: %w", entry, err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || cleaned == "N/A" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
