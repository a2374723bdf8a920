package extraction

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an extraction job.
type Status string

// Job status constants representing the job lifecycle
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ParseStatus converts a stored status string into a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// Job is one extraction request and its tracked state.
type Job struct {
	ID              string     `json:"id"`
	SourceURL       string     `json:"source_url"`
	AudioFormat     Format     `json:"audio_format"`
	Status          Status     `json:"status"`
	Title           string     `json:"title"`
	FilePath        string     `json:"file_path,omitempty"`
	FileSize        *int64     `json:"file_size,omitempty"`
	DurationSeconds *int       `json:"duration_seconds,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	TaskID          string     `json:"task_id,omitempty"`
	RetryCount      int        `json:"retry_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// NewJob builds a pending job with a fresh identifier.
func NewJob(sourceURL string, format Format) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          uuid.New().String(),
		SourceURL:   sourceURL,
		AudioFormat: format,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsTerminal returns true if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Clone returns a deep copy so snapshots never alias a job being processed.
func (j *Job) Clone() *Job {
	c := *j
	if j.FileSize != nil {
		v := *j.FileSize
		c.FileSize = &v
	}
	if j.DurationSeconds != nil {
		v := *j.DurationSeconds
		c.DurationSeconds = &v
	}
	if j.CompletedAt != nil {
		v := *j.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

// MarkProcessing moves the job into Processing for a new attempt.
func (j *Job) MarkProcessing() {
	j.Status = StatusProcessing
	j.touch()
}

// MarkRetrying records a failed attempt that will be retried.
func (j *Job) MarkRetrying(errMsg string) {
	j.Status = StatusProcessing
	j.ErrorMessage = errMsg
	j.RetryCount++
	j.clearOutput()
	j.touch()
}

// MarkCompleted records the placed output. completed_at is only set once.
func (j *Job) MarkCompleted(path string, size *int64, duration int) {
	j.Status = StatusCompleted
	j.FilePath = path
	j.FileSize = size
	d := duration
	j.DurationSeconds = &d
	j.ErrorMessage = ""
	if j.CompletedAt == nil {
		now := time.Now().UTC()
		j.CompletedAt = &now
	}
	j.touch()
}

// MarkFailed finalizes the job as failed and clears any output fields.
func (j *Job) MarkFailed(errMsg string) {
	j.Status = StatusFailed
	j.ErrorMessage = errMsg
	j.clearOutput()
	j.touch()
}

// clearOutput drops the fields that only a Completed job may carry.
func (j *Job) clearOutput() {
	j.FilePath = ""
	j.FileSize = nil
	j.DurationSeconds = nil
	j.CompletedAt = nil
}

func (j *Job) touch() {
	j.UpdatedAt = time.Now().UTC()
}
