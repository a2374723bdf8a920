package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/auddy/backend/internal/download"
	apperrors "github.com/auddy/backend/internal/errors"
	"github.com/auddy/backend/internal/extraction"
	"github.com/auddy/backend/internal/metrics"
)

type apiEnv struct {
	repo   *extraction.MemoryRepository
	queue  *download.MemoryQueue
	router *Router
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	repo := extraction.NewMemoryRepository()
	queue := download.NewMemoryQueue(16)
	t.Cleanup(func() { queue.Close() })
	dispatch := download.NewService(queue, nil, nil)
	svc := extraction.NewService(repo, dispatch, nil)

	router := NewRouter(&RouterConfig{
		Extraction: svc,
		Metrics:    metrics.New(),
	})
	return &apiEnv{repo: repo, queue: queue, router: router}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apperrors.ErrorBody {
	t.Helper()
	var resp apperrors.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v (%q)", err, w.Body.String())
	}
	return resp.Error
}

func TestCreateExtraction(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/extract", CreateExtractionRequest{
		SourceURL:   "https://www.youtube.com/watch?v=abc123",
		AudioFormat: "mp3",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("code = %d, want 201 (%s)", w.Code, w.Body.String())
	}

	var resp struct {
		Status  bool               `json:"status"`
		Message string             `json:"message"`
		Data    ExtractionResponse `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Status || resp.Message == "" {
		t.Errorf("envelope = %+v", resp)
	}
	if resp.Data.Status != "pending" || resp.Data.AudioFormat != "mp3" || resp.Data.SourceType != "youtube" {
		t.Errorf("data = %+v", resp.Data)
	}
	if resp.Data.TaskID == "" {
		t.Error("task id not set")
	}
	if w.Header().Get(apperrors.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}

	if n, _ := env.queue.Len(context.Background()); n != 1 {
		t.Errorf("queue length = %d, want 1", n)
	}
}

func TestCreateExtraction_Validation(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantCode string
	}{
		{"bad json", "not an object", apperrors.CodeInvalidRequest},
		{"missing url", CreateExtractionRequest{AudioFormat: "mp3"}, apperrors.CodeValidationError},
		{"ftp url", CreateExtractionRequest{SourceURL: "ftp://example.com/a.mp4"}, apperrors.CodeValidationError},
		{"unknown format", CreateExtractionRequest{SourceURL: "https://example.com/a.mp4", AudioFormat: "wma"}, apperrors.CodeValidationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newAPIEnv(t)
			w := env.do(t, http.MethodPost, "/api/v1/extract", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("code = %d, want 400", w.Code)
			}
			if got := decodeError(t, w).Code; got != tt.wantCode {
				t.Errorf("error code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestGetExtraction(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()

	job := extraction.NewJob("https://drive.google.com/open?id=XYZ", extraction.FormatFLAC)
	job.TaskID = "task-1"
	env.repo.Create(ctx, job)

	w := env.do(t, http.MethodGet, "/api/v1/extract/"+job.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	var resp ExtractionResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.ID != job.ID || resp.SourceType != "google_drive" || resp.DownloadURL != "" {
		t.Errorf("resp = %+v", resp)
	}

	w = env.do(t, http.MethodGet, "/api/v1/extract/status/task-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("by task: code = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/extract/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing: code = %d, want 404", w.Code)
	}
	if got := decodeError(t, w).Code; got != apperrors.CodeJobNotFound {
		t.Errorf("error code = %q", got)
	}
}

func TestListExtractionsAndFormats(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		env.repo.Create(ctx, extraction.NewJob("https://example.com/v.mp4", extraction.FormatMP3))
	}

	w := env.do(t, http.MethodGet, "/api/v1/extract?limit=2", nil)
	var list ExtractionListResponse
	json.NewDecoder(w.Body).Decode(&list)
	if list.Count != 2 || list.Limit != 2 || len(list.Extractions) != 2 {
		t.Errorf("list = %+v", list)
	}

	w = env.do(t, http.MethodGet, "/api/v1/extract/formats", nil)
	var formats FormatsResponse
	json.NewDecoder(w.Body).Decode(&formats)
	if len(formats.Formats) != 6 || formats.Formats[0].Value != extraction.FormatMP3 || formats.Formats[0].Label != "MP3" {
		t.Errorf("formats = %+v", formats)
	}
}

func TestDownloadFile(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "My Song.mp3")
	if err := os.WriteFile(path, []byte("ID3audio"), 0644); err != nil {
		t.Fatal(err)
	}

	completed := extraction.NewJob("https://www.youtube.com/watch?v=abc123", extraction.FormatMP3)
	size := int64(8)
	completed.MarkCompleted(path, &size, 62)
	env.repo.Create(ctx, completed)

	pending := extraction.NewJob("https://www.youtube.com/watch?v=def456", extraction.FormatMP3)
	env.repo.Create(ctx, pending)

	gone := extraction.NewJob("https://www.youtube.com/watch?v=ghi789", extraction.FormatMP3)
	gone.MarkCompleted(filepath.Join(t.TempDir(), "deleted.mp3"), &size, 10)
	env.repo.Create(ctx, gone)

	w := env.do(t, http.MethodGet, "/api/v1/download/"+completed.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d (%s)", w.Code, w.Body.String())
	}
	if w.Body.String() != "ID3audio" {
		t.Errorf("body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") || !strings.Contains(cd, "My Song.mp3") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	tests := []struct {
		name     string
		id       string
		wantHTTP int
		wantCode string
	}{
		{"not ready", pending.ID, http.StatusConflict, apperrors.CodeNotReady},
		{"file deleted", gone.ID, http.StatusNotFound, apperrors.CodeNotFound},
		{"unknown job", "missing", http.StatusNotFound, apperrors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/v1/download/"+tt.id, nil)
			if w.Code != tt.wantHTTP {
				t.Fatalf("code = %d, want %d", w.Code, tt.wantHTTP)
			}
			if got := decodeError(t, w).Code; got != tt.wantCode {
				t.Errorf("error code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(ctx context.Context, jobID string) (string, error) {
	return "", errors.New("redis: connection refused")
}

func TestCreateExtraction_DispatchFailure(t *testing.T) {
	repo := extraction.NewMemoryRepository()
	router := NewRouter(&RouterConfig{Extraction: extraction.NewService(repo, failingDispatcher{}, nil)})

	body, _ := json.Marshal(CreateExtractionRequest{SourceURL: "https://example.com/v.mp4"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/extract", bytes.NewReader(body)))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d, want 503", w.Code)
	}
	if got := decodeError(t, w).Code; got != apperrors.CodeQueueError {
		t.Errorf("error code = %q", got)
	}

	jobs, _ := repo.List(context.Background(), 10)
	if len(jobs) != 1 || jobs[0].Status != extraction.StatusFailed {
		t.Errorf("undispatched job should be failed, got %+v", jobs)
	}
}

func TestCreateExtraction_RateLimited(t *testing.T) {
	repo := extraction.NewMemoryRepository()
	queue := download.NewMemoryQueue(16)
	defer queue.Close()
	router := NewRouter(&RouterConfig{
		Extraction:      extraction.NewService(repo, download.NewService(queue, nil, nil), nil),
		SubmitRateLimit: 1,
		SubmitRateBurst: 1,
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		body, _ := json.Marshal(CreateExtractionRequest{SourceURL: "https://example.com/v.mp4"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/extract", bytes.NewReader(body)))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusCreated || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [201 429]", codes)
	}
}
