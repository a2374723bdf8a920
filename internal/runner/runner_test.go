package runner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/auddy/backend/internal/errors"
	"github.com/auddy/backend/internal/extraction"
	"github.com/auddy/backend/internal/ffmpeg"
	"github.com/auddy/backend/internal/fetcher"
	"github.com/auddy/backend/internal/httpdl"
	"github.com/auddy/backend/internal/metrics"
	"github.com/auddy/backend/internal/placement"
	"github.com/auddy/backend/internal/source"
	"github.com/auddy/backend/internal/toolexec"
	"github.com/auddy/backend/internal/ytdlp"
)

const infoJSON = `{"id":"abc123","title":"Song","duration":212}`

type recorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
	events []*extraction.Job
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
	return nil
}

func (r *recorder) PublishStatus(ctx context.Context, job *extraction.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, job)
	return nil
}

type env struct {
	repo    *extraction.MemoryRepository
	reg     *fetcher.Registry
	root    string
	scratch string
	rec     *recorder
	metrics *metrics.Metrics
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return &env{
		repo:    extraction.NewMemoryRepository(),
		reg:     fetcher.NewRegistry(),
		root:    filepath.Join(t.TempDir(), "extractions"),
		scratch: t.TempDir(),
		rec:     &recorder{},
		metrics: metrics.New(),
	}
}

func (e *env) runner(maxRetries int) *Runner {
	return e.runnerOn(e.repo, maxRetries)
}

func (e *env) runnerOn(repo extraction.Repository, maxRetries int) *Runner {
	cfg := Config{MaxRetries: maxRetries, Backoff: DefaultBackoff, ScratchDir: e.scratch}
	return New(cfg, repo, e.reg, placement.New(e.root, nil), nil,
		WithPublisher(e.rec),
		WithSleep(e.rec.sleep),
		WithMetrics(e.metrics),
	)
}

func (e *env) submit(t *testing.T, url string, format extraction.Format) *extraction.Job {
	t.Helper()
	job := extraction.NewJob(url, format)
	if err := e.repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return job
}

func (e *env) reload(t *testing.T, id string) *extraction.Job {
	t.Helper()
	job, err := e.repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	return job
}

func (e *env) assertScratchEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(e.scratch)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected scratch area to be cleaned up, found %d entries", len(entries))
	}
}

// mediaTools scripts ffmpeg to write its output and ffprobe to report a duration.
func mediaTools() *toolexec.Fake {
	return toolexec.NewFake().
		On("ffmpeg", func(ctx context.Context, args []string) (toolexec.Result, error) {
			return toolexec.Result{}, os.WriteFile(args[len(args)-1], []byte("audio"), 0o644)
		}).
		On("ffprobe", func(ctx context.Context, args []string) (toolexec.Result, error) {
			if args[3] == "format=duration" {
				return toolexec.Result{Stdout: "61.6\n"}, nil
			}
			return toolexec.Result{}, nil
		})
}

func videoServer(t *testing.T, status int) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(status)
		w.Write([]byte("fake video bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestRun_YouTubeCompletes(t *testing.T) {
	e := newEnv(t)
	tools := mediaTools().On("yt-dlp", func(ctx context.Context, args []string) (toolexec.Result, error) {
		for i, a := range args {
			if a == "--output" {
				name := strings.Replace(args[i+1], "%(title)s.%(ext)s", "Song.mp3", 1)
				if err := os.WriteFile(name, []byte("ID3"), 0o644); err != nil {
					return toolexec.Result{}, err
				}
			}
		}
		return toolexec.Result{Stdout: infoJSON + "\n"}, nil
	})
	e.reg.Register(source.YouTube, fetcher.NewYouTube(ytdlp.New(nil, tools), ffmpeg.New(ffmpeg.WithRunner(tools)), nil))

	job := e.submit(t, "https://www.youtube.com/watch?v=abc123", extraction.FormatMP3)

	if err := e.runner(3).Run(context.Background(), job.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := e.reload(t, job.ID)
	if got.Status != extraction.StatusCompleted {
		t.Fatalf("Expected completed, got %s (%s)", got.Status, got.ErrorMessage)
	}
	if got.Title != "Song" {
		t.Errorf("Expected title Song, got %q", got.Title)
	}
	if want := filepath.Join(e.root, job.ID, "Song.mp3"); got.FilePath != want {
		t.Errorf("Expected file at %s, got %s", want, got.FilePath)
	}
	if got.FileSize == nil || *got.FileSize != 3 {
		t.Errorf("Expected file size 3, got %v", got.FileSize)
	}
	if got.DurationSeconds == nil || *got.DurationSeconds != 62 {
		t.Errorf("Expected duration 62, got %v", got.DurationSeconds)
	}
	if got.CompletedAt == nil {
		t.Error("Expected completed_at to be set")
	}
	if got.ErrorMessage != "" {
		t.Errorf("Expected no error message, got %q", got.ErrorMessage)
	}
	if len(e.rec.sleeps) != 0 {
		t.Errorf("Expected no backoff, got %v", e.rec.sleeps)
	}

	first, last := e.rec.events[0], e.rec.events[len(e.rec.events)-1]
	if first.Status != extraction.StatusProcessing {
		t.Errorf("Expected first event processing, got %s", first.Status)
	}
	if last.Status != extraction.StatusCompleted {
		t.Errorf("Expected last event completed, got %s", last.Status)
	}
	e.assertScratchEmpty(t)
}

func TestRun_DriveDownloadFailureRetriesThenFails(t *testing.T) {
	e := newEnv(t)
	srv, hits := videoServer(t, http.StatusInternalServerError)
	tools := mediaTools()
	dl := httpdl.New(httpdl.Config{DriveBaseURL: srv.URL})
	e.reg.Register(source.GoogleDrive, fetcher.NewGoogleDrive(dl, ffmpeg.New(ffmpeg.WithRunner(tools)), nil, nil))

	job := e.submit(t, "https://drive.google.com/open?id=XYZ", extraction.FormatMP3)

	if err := e.runner(3).Run(context.Background(), job.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := e.reload(t, job.ID)
	if got.Status != extraction.StatusFailed {
		t.Fatalf("Expected failed, got %s", got.Status)
	}
	if !strings.Contains(strings.ToLower(got.ErrorMessage), "download") {
		t.Errorf("Expected download error message, got %q", got.ErrorMessage)
	}
	if !strings.HasPrefix(got.ErrorMessage, apperrors.CodeDownloadFailed) {
		t.Errorf("Expected %s prefix, got %q", apperrors.CodeDownloadFailed, got.ErrorMessage)
	}
	if got.RetryCount != 3 {
		t.Errorf("Expected 3 retries, got %d", got.RetryCount)
	}
	if got.FilePath != "" || got.FileSize != nil {
		t.Error("Expected no output recorded on failure")
	}
	if got.CompletedAt != nil {
		t.Error("Expected completed_at to stay unset")
	}

	if n := atomic.LoadInt32(hits); n != 4 {
		t.Errorf("Expected 4 download attempts, got %d", n)
	}
	if len(e.rec.sleeps) != 3 {
		t.Fatalf("Expected 3 backoffs, got %v", e.rec.sleeps)
	}
	for _, d := range e.rec.sleeps {
		if d != 30*time.Second {
			t.Errorf("Expected 30s backoff, got %v", d)
		}
	}
	if len(tools.CallsTo("ffmpeg")) != 0 {
		t.Error("Expected transcoder not to run after a failed download")
	}

	// processing, three retry snapshots, failed
	if len(e.rec.events) != 5 {
		t.Fatalf("Expected 5 status events, got %d", len(e.rec.events))
	}
	retry := e.rec.events[1]
	if retry.Status != extraction.StatusProcessing || retry.ErrorMessage == "" || retry.RetryCount != 1 {
		t.Errorf("Unexpected retry snapshot: status=%s error=%q retries=%d", retry.Status, retry.ErrorMessage, retry.RetryCount)
	}
	e.assertScratchEmpty(t)

	body := scrapeMetrics(t, e.metrics)
	if !strings.Contains(body, `auddy_extraction_jobs_total{status="failed"} 1`) {
		t.Errorf("Expected failed outcome in metrics:\n%s", body)
	}
	if !strings.Contains(body, "auddy_extraction_retries_total 3") {
		t.Errorf("Expected 3 retries in metrics:\n%s", body)
	}
}

func TestRun_FailureKindsAreDistinct(t *testing.T) {
	tests := []struct {
		name       string
		tools      func() *toolexec.Fake
		blockRoot  bool
		wantCode   string
		rejectCode string
	}{
		{
			name:       "destination directory unavailable",
			tools:      mediaTools,
			blockRoot:  true,
			wantCode:   apperrors.CodeDirectoryUnavailable,
			rejectCode: apperrors.CodeTranscodeFailed,
		},
		{
			name: "transcoder exits non-zero",
			tools: func() *toolexec.Fake {
				return mediaTools().Fail("ffmpeg", 1, "input_video: Invalid data found when processing input")
			},
			wantCode:   apperrors.CodeTranscodeFailed,
			rejectCode: apperrors.CodeDirectoryUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			if tt.blockRoot {
				// a regular file where the root's parent directory should be
				blocker := filepath.Join(t.TempDir(), "blocker")
				if err := os.WriteFile(blocker, nil, 0o644); err != nil {
					t.Fatal(err)
				}
				e.root = filepath.Join(blocker, "extractions")
			}
			srv, _ := videoServer(t, http.StatusOK)
			e.reg.Register(source.GenericVideo, fetcher.NewVideo(httpdl.New(httpdl.Config{}), ffmpeg.New(ffmpeg.WithRunner(tt.tools())), nil))

			job := e.submit(t, srv.URL+"/clip.mp4", extraction.FormatWAV)

			if err := e.runner(1).Run(context.Background(), job.ID); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			got := e.reload(t, job.ID)
			if got.Status != extraction.StatusFailed {
				t.Fatalf("Expected failed, got %s", got.Status)
			}
			if !strings.HasPrefix(got.ErrorMessage, tt.wantCode) {
				t.Errorf("Expected %s, got %q", tt.wantCode, got.ErrorMessage)
			}
			if strings.Contains(got.ErrorMessage, tt.rejectCode) {
				t.Errorf("Did not expect %s in %q", tt.rejectCode, got.ErrorMessage)
			}
			if len(e.rec.sleeps) != 1 {
				t.Errorf("Expected exactly one backoff, got %v", e.rec.sleeps)
			}
			e.assertScratchEmpty(t)
		})
	}
}

// flakyFetcher fails a fixed number of times before producing a file.
type flakyFetcher struct {
	failures int
	calls    int
}

func (f *flakyFetcher) Fetch(ctx context.Context, job *extraction.Job, scratchDir string) (*fetcher.Result, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, apperrors.DownloadFailed("failed to download video").WithCause(errors.New("connection reset"))
	}
	path := filepath.Join(scratchDir, "extracted_audio.flac")
	if err := os.WriteFile(path, []byte("fLaC"), 0o644); err != nil {
		return nil, err
	}
	return &fetcher.Result{AudioPath: path, Title: "Live Set", DurationSeconds: 30}, nil
}

func TestRun_RecoversAfterRetry(t *testing.T) {
	e := newEnv(t)
	f := &flakyFetcher{failures: 2}
	e.reg.Register(source.GenericVideo, f)

	job := e.submit(t, "https://cdn.example.com/set.mp4", extraction.FormatFLAC)

	if err := e.runner(3).Run(context.Background(), job.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := e.reload(t, job.ID)
	if got.Status != extraction.StatusCompleted {
		t.Fatalf("Expected completed, got %s", got.Status)
	}
	if got.ErrorMessage != "" {
		t.Errorf("Expected error message cleared on completion, got %q", got.ErrorMessage)
	}
	if got.RetryCount != 2 {
		t.Errorf("Expected 2 retries, got %d", got.RetryCount)
	}
	if filepath.Base(got.FilePath) != "Live Set.flac" {
		t.Errorf("Unexpected file name %s", got.FilePath)
	}
	if f.calls != 3 {
		t.Errorf("Expected 3 fetch calls, got %d", f.calls)
	}
	e.assertScratchEmpty(t)
}

func TestRun_NoFetcherForSource(t *testing.T) {
	e := newEnv(t)
	job := e.submit(t, "https://youtu.be/abc123", extraction.FormatMP3)

	if err := e.runner(0).Run(context.Background(), job.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := e.reload(t, job.ID)
	if got.Status != extraction.StatusFailed {
		t.Fatalf("Expected failed, got %s", got.Status)
	}
	if !strings.HasPrefix(got.ErrorMessage, apperrors.CodeClassificationAmbiguous) {
		t.Errorf("Unexpected error message %q", got.ErrorMessage)
	}
}

func TestRun_UnknownJob(t *testing.T) {
	e := newEnv(t)

	err := e.runner(3).Run(context.Background(), "does-not-exist")
	if !apperrors.HasCode(err, apperrors.CodeJobNotFound) {
		t.Fatalf("Expected JOB_NOT_FOUND, got %v", err)
	}
	if len(e.rec.events) != 0 {
		t.Error("Expected no status events for unknown job")
	}
}

func TestRun_TerminalJobSkipped(t *testing.T) {
	e := newEnv(t)
	f := &flakyFetcher{}
	e.reg.Register(source.GenericVideo, f)

	job := e.submit(t, "https://cdn.example.com/set.mp4", extraction.FormatMP3)
	job.MarkFailed("DOWNLOAD_FAILED: earlier run")
	if err := e.repo.Update(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	if err := e.runner(3).Run(context.Background(), job.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if f.calls != 0 {
		t.Errorf("Expected terminal job not to be fetched, got %d calls", f.calls)
	}
	if got := e.reload(t, job.ID); got.ErrorMessage != "DOWNLOAD_FAILED: earlier run" {
		t.Errorf("Expected job untouched, got %q", got.ErrorMessage)
	}
}

func TestRun_CancelledDuringBackoff(t *testing.T) {
	e := newEnv(t)
	e.reg.Register(source.GenericVideo, &flakyFetcher{failures: 10})
	job := e.submit(t, "https://cdn.example.com/set.mp4", extraction.FormatMP3)

	ctx, cancel := context.WithCancel(context.Background())
	r := New(Config{MaxRetries: 3, Backoff: time.Hour, ScratchDir: e.scratch}, e.repo, e.reg, placement.New(e.root, nil), nil)

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, job.ID) }()

	deadline := time.After(5 * time.Second)
	for {
		got := e.reload(t, job.ID)
		if got.RetryCount == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for first retry")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	got := e.reload(t, job.ID)
	if got.Status != extraction.StatusFailed {
		t.Fatalf("Expected failed, got %s", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "retry aborted") {
		t.Errorf("Unexpected error message %q", got.ErrorMessage)
	}
}

// guardedRepo refuses writes on a done context, like a SQL driver does, and
// can reject a number of Completed writes.
type guardedRepo struct {
	*extraction.MemoryRepository
	rejectCompleted int
}

func (g *guardedRepo) Update(ctx context.Context, job *extraction.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job.Status == extraction.StatusCompleted && g.rejectCompleted > 0 {
		g.rejectCompleted--
		return errors.New("connection reset by peer")
	}
	return g.MemoryRepository.Update(ctx, job)
}

// fadingFetcher produces a file on its first call and fails afterwards.
type fadingFetcher struct {
	calls int
}

func (f *fadingFetcher) Fetch(ctx context.Context, job *extraction.Job, scratchDir string) (*fetcher.Result, error) {
	f.calls++
	if f.calls > 1 {
		return nil, apperrors.DownloadFailed("failed to download video").WithCause(errors.New("HTTP 404"))
	}
	path := filepath.Join(scratchDir, "extracted_audio.mp3")
	if err := os.WriteFile(path, []byte("ID3"), 0o644); err != nil {
		return nil, err
	}
	return &fetcher.Result{AudioPath: path, Title: "t", DurationSeconds: 12}, nil
}

func assertNoOutput(t *testing.T, job *extraction.Job) {
	t.Helper()
	if job.FilePath != "" || job.FileSize != nil {
		t.Errorf("Expected no file recorded for %s job, got path=%q size=%v", job.Status, job.FilePath, job.FileSize)
	}
	if job.DurationSeconds != nil {
		t.Errorf("Expected no duration for %s job, got %d", job.Status, *job.DurationSeconds)
	}
	if job.CompletedAt != nil {
		t.Errorf("Expected no completed_at for %s job", job.Status)
	}
}

func TestRun_CompletedSaveFailureLeavesNoOutput(t *testing.T) {
	e := newEnv(t)
	repo := &guardedRepo{MemoryRepository: e.repo, rejectCompleted: 1}
	f := &fadingFetcher{}
	e.reg.Register(source.GenericVideo, f)

	job := e.submit(t, "https://cdn.example.com/t.mp4", extraction.FormatMP3)

	if err := e.runnerOn(repo, 1).Run(context.Background(), job.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if f.calls != 2 {
		t.Fatalf("Expected 2 fetch calls, got %d", f.calls)
	}

	got := e.reload(t, job.ID)
	if got.Status != extraction.StatusFailed {
		t.Fatalf("Expected failed, got %s", got.Status)
	}
	assertNoOutput(t, got)

	for _, ev := range e.rec.events {
		if ev.Status == extraction.StatusCompleted {
			t.Fatal("Completed was published although it was never stored")
		}
		assertNoOutput(t, ev)
	}
	retry := e.rec.events[1]
	if !strings.HasPrefix(retry.ErrorMessage, apperrors.CodeDatabaseError) {
		t.Errorf("Expected retry caused by the rejected write, got %q", retry.ErrorMessage)
	}
}

// cancelingFetcher cancels the run while its fetch is in flight.
type cancelingFetcher struct {
	cancel context.CancelFunc
}

func (f *cancelingFetcher) Fetch(ctx context.Context, job *extraction.Job, scratchDir string) (*fetcher.Result, error) {
	f.cancel()
	<-ctx.Done()
	return nil, apperrors.DownloadFailed("failed to download video").WithCause(ctx.Err())
}

func TestRun_CancelledDuringAttempt(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.reg.Register(source.GenericVideo, &cancelingFetcher{cancel: cancel})
	repo := &guardedRepo{MemoryRepository: e.repo}

	job := e.submit(t, "https://cdn.example.com/set.mp4", extraction.FormatMP3)

	if err := e.runnerOn(repo, 3).Run(ctx, job.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := e.reload(t, job.ID)
	if got.Status != extraction.StatusFailed {
		t.Fatalf("Expected failed, got %s", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "attempt aborted") {
		t.Errorf("Unexpected error message %q", got.ErrorMessage)
	}
	if got.RetryCount != 0 {
		t.Errorf("Expected no retries after cancellation, got %d", got.RetryCount)
	}
	if len(e.rec.sleeps) != 0 {
		t.Errorf("Expected no backoff after cancellation, got %v", e.rec.sleeps)
	}
	e.assertScratchEmpty(t)
}

func TestRun_YouTubeMetadataProbeFailureIsNotFatal(t *testing.T) {
	e := newEnv(t)
	tools := mediaTools().On("yt-dlp", func(ctx context.Context, args []string) (toolexec.Result, error) {
		if args[0] == "--dump-json" {
			return toolexec.Result{ExitCode: 1, Stderr: "ERROR: Unable to extract video data"}, nil
		}
		for i, a := range args {
			if a == "--output" {
				name := strings.Replace(args[i+1], "%(title)s.%(ext)s", "Song.mp3", 1)
				if err := os.WriteFile(name, []byte("ID3"), 0o644); err != nil {
					return toolexec.Result{}, err
				}
			}
		}
		return toolexec.Result{Stdout: infoJSON + "\n"}, nil
	})
	e.reg.Register(source.YouTube, fetcher.NewYouTube(ytdlp.New(nil, tools), ffmpeg.New(ffmpeg.WithRunner(tools)), nil))

	job := e.submit(t, "https://www.youtube.com/watch?v=abc123", extraction.FormatMP3)

	if err := e.runner(3).Run(context.Background(), job.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	calls := tools.CallsTo("yt-dlp")
	if len(calls) != 2 || calls[0].Args[0] != "--dump-json" {
		t.Fatalf("Expected a metadata probe followed by a download, got %d calls", len(calls))
	}
	got := e.reload(t, job.ID)
	if got.Status != extraction.StatusCompleted {
		t.Fatalf("Expected completed, got %s (%s)", got.Status, got.ErrorMessage)
	}
	if got.Title != "Song" {
		t.Errorf("Expected title from the download, got %q", got.Title)
	}
	if got.RetryCount != 0 {
		t.Errorf("Expected no retries, got %d", got.RetryCount)
	}
}

func TestRun_DriveTitleProbeFailureFallsBack(t *testing.T) {
	e := newEnv(t)
	srv, _ := videoServer(t, http.StatusOK)
	tools := mediaTools().On("ffprobe", func(ctx context.Context, args []string) (toolexec.Result, error) {
		if args[3] == "format=duration" {
			return toolexec.Result{Stdout: "61.6\n"}, nil
		}
		return toolexec.Result{ExitCode: 1, Stderr: "drive_video: Invalid data found when processing input"}, nil
	})
	dl := httpdl.New(httpdl.Config{DriveBaseURL: srv.URL})
	e.reg.Register(source.GoogleDrive, fetcher.NewGoogleDrive(dl, ffmpeg.New(ffmpeg.WithRunner(tools)), nil, nil))

	job := e.submit(t, "https://drive.google.com/file/d/1a2B3c4D5e6F/view", extraction.FormatMP3)

	if err := e.runner(3).Run(context.Background(), job.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := e.reload(t, job.ID)
	if got.Status != extraction.StatusCompleted {
		t.Fatalf("Expected completed, got %s (%s)", got.Status, got.ErrorMessage)
	}
	if got.Title != "Google Drive Video 1a2B3c4D" {
		t.Errorf("Expected fallback title, got %q", got.Title)
	}
	if filepath.Base(got.FilePath) != "Google Drive Video 1a2B3c4D.mp3" {
		t.Errorf("Unexpected file name %s", got.FilePath)
	}
}

func scrapeMetrics(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler()(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return w.Body.String()
}
