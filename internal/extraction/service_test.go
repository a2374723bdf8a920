package extraction

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/auddy/backend/internal/errors"
)

type stubDispatcher struct {
	taskID string
	err    error
	ids    []string
}

func (d *stubDispatcher) Dispatch(ctx context.Context, jobID string) (string, error) {
	d.ids = append(d.ids, jobID)
	return d.taskID, d.err
}

func TestService_Submit(t *testing.T) {
	repo := NewMemoryRepository()
	disp := &stubDispatcher{taskID: "task-1"}
	svc := NewService(repo, disp, nil)
	ctx := context.Background()

	job, err := svc.Submit(ctx, "https://www.youtube.com/watch?v=abc123", "mp3")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if job.Status != StatusPending {
		t.Errorf("Expected status %s, got %s", StatusPending, job.Status)
	}
	if len(disp.ids) != 1 || disp.ids[0] != job.ID {
		t.Errorf("Expected job %s to be dispatched, got %v", job.ID, disp.ids)
	}

	stored, err := svc.GetByTaskID(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetByTaskID() error = %v", err)
	}
	if stored.ID != job.ID {
		t.Errorf("Expected job %s, got %s", job.ID, stored.ID)
	}
}

func TestService_SubmitValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository(), &stubDispatcher{}, nil)

	tests := []struct {
		url    string
		format string
	}{
		{"", "mp3"},
		{"ftp://example.com/a.mp4", "mp3"},
		{"https://example.com/a.mp4", "opus"},
	}
	for _, tt := range tests {
		_, err := svc.Submit(context.Background(), tt.url, tt.format)
		if !apperrors.HasCode(err, apperrors.CodeValidationError) {
			t.Errorf("Submit(%q, %q) expected validation error, got %v", tt.url, tt.format, err)
		}
	}
}

func TestService_SubmitDispatchFailure(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, &stubDispatcher{err: errors.New("redis down")}, nil)

	_, err := svc.Submit(context.Background(), "https://example.com/a.mp4", "wav")
	if !apperrors.HasCode(err, apperrors.CodeQueueError) {
		t.Fatalf("Expected queue error, got %v", err)
	}

	jobs, _ := repo.List(context.Background(), 0)
	if len(jobs) != 1 || jobs[0].Status != StatusFailed {
		t.Fatalf("Expected undispatched job to be failed, got %+v", jobs)
	}
}

func TestService_GetUnknown(t *testing.T) {
	svc := NewService(NewMemoryRepository(), &stubDispatcher{}, nil)
	_, err := svc.Get(context.Background(), "missing")
	if !apperrors.HasCode(err, apperrors.CodeJobNotFound) {
		t.Errorf("Expected JOB_NOT_FOUND, got %v", err)
	}
}

func TestService_OpenFile(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, &stubDispatcher{taskID: "t"}, nil)
	ctx := context.Background()

	job, err := svc.Submit(ctx, "https://example.com/a.mp4", "mp3")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.OpenFile(ctx, job.ID); !apperrors.HasCode(err, apperrors.CodeNotReady) {
		t.Errorf("Expected NOT_READY for pending job, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "a.mp3")
	if err := os.WriteFile(path, []byte("ID3audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	job, _ = repo.Get(ctx, job.ID)
	size := int64(8)
	job.MarkCompleted(path, &size, 3)
	if err := repo.Update(ctx, job); err != nil {
		t.Fatal(err)
	}

	f, err := svc.OpenFile(ctx, job.ID)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "ID3audio" {
		t.Errorf("Expected file contents, got %q", data)
	}
	if f.Name != "a.mp3" {
		t.Errorf("Expected name a.mp3, got %s", f.Name)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.OpenFile(ctx, job.ID); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("Expected NOT_FOUND after file removal, got %v", err)
	}

	if _, err := svc.OpenFile(ctx, "nope"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("Expected NOT_FOUND for unknown job, got %v", err)
	}
}

func TestMemoryRepository_List(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := repo.Create(ctx, NewJob("https://example.com/v.mp4", FormatMP3)); err != nil {
			t.Fatal(err)
		}
	}

	jobs, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(jobs))
	}

	if err := repo.Update(ctx, NewJob("x", FormatMP3)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound updating unknown job, got %v", err)
	}
}
