package websocket

import "github.com/auddy/backend/internal/extraction"

// StatusMessage is one job status update sent to clients.
type StatusMessage struct {
	Type            string            `json:"type"`
	JobID           string            `json:"job_id"`
	Status          extraction.Status `json:"status"`
	Title           string            `json:"title,omitempty"`
	RetryCount      int               `json:"retry_count"`
	FileSize        *int64            `json:"file_size,omitempty"`
	DurationSeconds *int              `json:"duration_seconds,omitempty"`
	Error           string            `json:"error,omitempty"`
	Terminal        bool              `json:"terminal"`
}

// NewStatusMessage builds the message for a job snapshot.
func NewStatusMessage(job *extraction.Job) *StatusMessage {
	return &StatusMessage{
		Type:            "extraction_status",
		JobID:           job.ID,
		Status:          job.Status,
		Title:           job.Title,
		RetryCount:      job.RetryCount,
		FileSize:        job.FileSize,
		DurationSeconds: job.DurationSeconds,
		Error:           job.ErrorMessage,
		Terminal:        job.IsTerminal(),
	}
}
