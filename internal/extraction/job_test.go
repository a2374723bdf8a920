package extraction

import (
	"testing"
)

func TestJob_Lifecycle(t *testing.T) {
	job := NewJob("https://youtu.be/abc", FormatMP3)

	if job.Status != StatusPending {
		t.Fatalf("Expected status %s, got %s", StatusPending, job.Status)
	}
	if job.ID == "" {
		t.Fatal("Expected job ID to be assigned")
	}

	job.MarkProcessing()
	job.MarkRetrying("DOWNLOAD_FAILED: boom")
	if job.Status != StatusProcessing {
		t.Errorf("Expected retrying job to stay %s, got %s", StatusProcessing, job.Status)
	}
	if job.RetryCount != 1 {
		t.Errorf("Expected retry count 1, got %d", job.RetryCount)
	}

	size := int64(42)
	job.MarkCompleted("/srv/a/b.mp3", &size, 12)
	if job.ErrorMessage != "" {
		t.Errorf("Expected error message cleared on completion, got %q", job.ErrorMessage)
	}
	if job.CompletedAt == nil {
		t.Fatal("Expected completed_at to be set")
	}
	first := *job.CompletedAt

	job.MarkCompleted("/srv/a/b.mp3", &size, 12)
	if !job.CompletedAt.Equal(first) {
		t.Error("completed_at must only be set once")
	}
	if !job.IsTerminal() {
		t.Error("Completed job should be terminal")
	}
}

func TestJob_NonCompletedStatesClearOutput(t *testing.T) {
	tests := []struct {
		name   string
		mark   func(j *Job)
		status Status
	}{
		{"failed", func(j *Job) { j.MarkFailed("TRANSCODE_FAILED: ffmpeg exited with status 1") }, StatusFailed},
		{"retrying", func(j *Job) { j.MarkRetrying("DATABASE_ERROR: failed to update job") }, StatusProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJob("https://example.com/v.mp4", FormatWAV)
			size := int64(1)
			job.MarkCompleted("/tmp/x.wav", &size, 7)

			tt.mark(job)

			if job.Status != tt.status {
				t.Errorf("Expected status %s, got %s", tt.status, job.Status)
			}
			if job.FilePath != "" || job.FileSize != nil {
				t.Error("Expected file_path and file_size cleared")
			}
			if job.DurationSeconds != nil {
				t.Error("Expected duration cleared")
			}
			if job.CompletedAt != nil {
				t.Error("Expected completed_at cleared")
			}
			if job.ErrorMessage == "" {
				t.Error("Expected an error message")
			}
		})
	}
}

func TestJob_CloneIsDeep(t *testing.T) {
	job := NewJob("https://example.com/v.mp4", FormatMP3)
	size := int64(10)
	job.FileSize = &size

	c := job.Clone()
	*c.FileSize = 99
	if *job.FileSize != 10 {
		t.Error("Clone must not alias file size")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"mp3", FormatMP3, false},
		{"MP3", FormatMP3, false},
		{" flac ", FormatFLAC, false},
		{"ogg", FormatOGG, false},
		{"m4a", FormatM4A, false},
		{"", DefaultFormat, false},
		{"opus", "", true},
		{"mp4", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFormats(t *testing.T) {
	opts := Formats()
	if len(opts) != 6 {
		t.Fatalf("Expected 6 formats, got %d", len(opts))
	}
	opts[0].Label = "changed"
	if Formats()[0].Label != "MP3" {
		t.Error("Formats must return a copy")
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus("Completed"); err != nil || s != StatusCompleted {
		t.Errorf("ParseStatus(Completed) = %s, %v", s, err)
	}
	if _, err := ParseStatus("queued"); err == nil {
		t.Error("Expected error for unknown status")
	}
}

func TestFormat_ContentType(t *testing.T) {
	tests := map[Format]string{
		FormatMP3:    "audio/mpeg",
		FormatM4A:    "audio/mp4",
		FormatFLAC:   "audio/flac",
		Format("xm"): "application/octet-stream",
	}
	for f, want := range tests {
		if got := f.ContentType(); got != want {
			t.Errorf("%s.ContentType() = %q, want %q", f, got, want)
		}
	}
}
