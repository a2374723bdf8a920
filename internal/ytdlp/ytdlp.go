// Package ytdlp wraps the yt-dlp media downloader.
package ytdlp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/auddy/backend/internal/logger"
	"github.com/auddy/backend/internal/toolexec"
)

// Config holds configuration for the yt-dlp service
type Config struct {
	// YtdlpPath is the path to the yt-dlp binary (default: "yt-dlp")
	YtdlpPath string
	// AudioQuality is passed to --audio-quality; a bitrate in kbps or 0-10 VBR
	AudioQuality string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		YtdlpPath:    "yt-dlp",
		AudioQuality: "192",
	}
}

// Service wraps yt-dlp for audio downloads
type Service struct {
	cfg    *Config
	runner toolexec.Runner
	log    *logger.Logger
}

// New creates a new yt-dlp service
func New(cfg *Config, runner toolexec.Runner) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.YtdlpPath == "" {
		cfg.YtdlpPath = "yt-dlp"
	}
	if cfg.AudioQuality == "" {
		cfg.AudioQuality = "192"
	}
	if runner == nil {
		runner = toolexec.ExecRunner{}
	}
	return &Service{cfg: cfg, runner: runner, log: logger.Discard()}
}

// WithLogger sets the logger that receives download progress at debug level.
func (s *Service) WithLogger(log *logger.Logger) *Service {
	if log != nil {
		s.log = log.WithComponent("ytdlp")
	}
	return s
}

// DownloadResult contains the result of a download operation
type DownloadResult struct {
	FilePath string
	Metadata *Metadata
}

// GetMetadata retrieves metadata for a URL without downloading
func (s *Service) GetMetadata(ctx context.Context, sourceURL string) (*Metadata, error) {
	args := []string{
		"--dump-json",
		"--no-download",
		"--no-playlist",
		"--no-warnings",
		sourceURL,
	}

	res, err := s.runner.Run(ctx, s.cfg.YtdlpPath, args...)
	if err != nil {
		return nil, categorizeError(sourceURL, err)
	}

	return parseInfo(sourceURL, res.Stdout)
}

// ExtractAudio downloads the best audio stream of sourceURL into dir and
// converts it to codec. The produced file is located by its extension.
func (s *Service) ExtractAudio(ctx context.Context, sourceURL, codec, dir string) (*DownloadResult, error) {
	args := []string{
		"-f", "bestaudio/best",
		"--extract-audio",
		"--audio-format", audioFormatArg(codec),
		"--audio-quality", s.cfg.AudioQuality,
		"--output", filepath.Join(dir, "%(title)s.%(ext)s"),
		"--no-playlist",
		"--no-warnings",
		"--print-json",
		"--newline",
		"--progress",
		sourceURL,
	}

	res, err := s.runner.Run(ctx, s.cfg.YtdlpPath, args...)
	if err != nil {
		return nil, categorizeError(sourceURL, err)
	}
	s.logProgress(ctx, sourceURL, res.Stdout+"\n"+res.Stderr)

	path, err := FindOutput(dir, codec)
	if err != nil {
		return nil, &DownloadError{URL: sourceURL, Message: "no output found", Err: err}
	}

	// Metadata printed alongside the download is best-effort.
	meta, err := parseInfo(sourceURL, res.Stdout)
	if err != nil {
		meta = &Metadata{}
	}

	return &DownloadResult{FilePath: path, Metadata: meta}, nil
}

// FindOutput returns the first file in dir whose extension is ext.
func FindOutput(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	suffix := "." + strings.ToLower(ext)
	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			matches = append(matches, e.Name())
		}
	}
	if len(matches) == 0 {
		return "", ErrNoOutput
	}
	sort.Strings(matches)
	return filepath.Join(dir, matches[0]), nil
}

// audioFormatArg maps an output container to yt-dlp's --audio-format name.
func audioFormatArg(codec string) string {
	if codec == "ogg" {
		return "vorbis"
	}
	return codec
}

// parseInfo decodes the first JSON object yt-dlp printed on stdout.
func parseInfo(sourceURL, stdout string) (*Metadata, error) {
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var out YtdlpOutput
		if err := json.Unmarshal([]byte(line), &out); err != nil {
			return nil, &DownloadError{URL: sourceURL, Message: "failed to parse metadata", Err: err}
		}
		return out.ToMetadata(), nil
	}
	return nil, &DownloadError{URL: sourceURL, Message: "failed to parse metadata", Err: fmt.Errorf("no JSON output")}
}

// categorizeError converts yt-dlp failures into specific error types
func categorizeError(sourceURL string, err error) error {
	te, ok := toolexec.AsToolError(err)
	if !ok {
		return &DownloadError{URL: sourceURL, Message: "download failed", Err: err}
	}
	stderrLower := strings.ToLower(te.Stderr)

	switch {
	case te.ExitCode == -1 || te.ExitCode == 127:
		return &DownloadError{URL: sourceURL, Message: "yt-dlp could not be started", Err: fmt.Errorf("%w: %v", ErrYtdlpNotFound, te)}

	case strings.Contains(stderrLower, "video unavailable") ||
		strings.Contains(stderrLower, "this video is unavailable"):
		return &DownloadError{URL: sourceURL, Message: "video unavailable", Err: ErrVideoUnavailable}

	case strings.Contains(stderrLower, "private video") ||
		strings.Contains(stderrLower, "is private"):
		return &DownloadError{URL: sourceURL, Message: "video is private", Err: ErrVideoPrivate}

	case strings.Contains(stderrLower, "age-restricted") ||
		strings.Contains(stderrLower, "sign in to confirm your age"):
		return &DownloadError{URL: sourceURL, Message: "content is age-restricted", Err: ErrAgeRestricted}

	case strings.Contains(stderrLower, "unable to download") ||
		strings.Contains(stderrLower, "connection") ||
		strings.Contains(stderrLower, "network"):
		return &DownloadError{URL: sourceURL, Message: "network error", Err: ErrNetworkError}

	case strings.Contains(stderrLower, "unsupported url") ||
		strings.Contains(stderrLower, "no suitable extractor"):
		return &DownloadError{URL: sourceURL, Message: "url not supported", Err: ErrURLNotSupported}

	default:
		return &DownloadError{URL: sourceURL, Message: "download failed", Err: fmt.Errorf("%w: %v", ErrDownloadFailed, te)}
	}
}
