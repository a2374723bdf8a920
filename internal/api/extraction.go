package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/auddy/backend/internal/errors"
	"github.com/auddy/backend/internal/extraction"
	"github.com/auddy/backend/internal/source"
)

const maxListLimit = 200

type ExtractionHandlers struct {
	service *extraction.Service
}

func NewExtractionHandlers(service *extraction.Service) *ExtractionHandlers {
	return &ExtractionHandlers{service: service}
}

// CreateExtractionRequest represents the request body for submitting a job
type CreateExtractionRequest struct {
	SourceURL   string `json:"source_url"`
	AudioFormat string `json:"audio_format"`
}

// ExtractionResponse is the public view of a job. The server-side file
// path is never exposed; completed jobs carry a download URL instead.
type ExtractionResponse struct {
	ID              string  `json:"id"`
	SourceURL       string  `json:"source_url"`
	SourceType      string  `json:"source_type"`
	Title           string  `json:"title"`
	AudioFormat     string  `json:"audio_format"`
	Status          string  `json:"status"`
	FileSize        *int64  `json:"file_size,omitempty"`
	DurationSeconds *int    `json:"duration_seconds,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	TaskID          string  `json:"task_id,omitempty"`
	RetryCount      int     `json:"retry_count"`
	DownloadURL     string  `json:"download_url,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	CompletedAt     *string `json:"completed_at,omitempty"`
}

// Envelope wraps the create response.
type Envelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type ExtractionListResponse struct {
	Extractions []ExtractionResponse `json:"extractions"`
	Count       int                  `json:"count"`
	Limit       int                  `json:"limit"`
}

type FormatsResponse struct {
	Formats []extraction.FormatOption `json:"formats"`
}

// CreateExtraction handles POST /api/v1/extract
func (h *ExtractionHandlers) CreateExtraction(w http.ResponseWriter, r *http.Request) error {
	var req CreateExtractionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	job, err := h.service.Submit(r.Context(), req.SourceURL, req.AudioFormat)
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusCreated, Envelope{
		Status:  true,
		Message: "Extraction job created successfully",
		Data:    toExtractionResponse(job),
	})
	return nil
}

// ListExtractions handles GET /api/v1/extract
func (h *ExtractionHandlers) ListExtractions(w http.ResponseWriter, r *http.Request) error {
	limit := parseIntParam(r, "limit", extraction.DefaultListLimit)
	if limit <= 0 {
		limit = extraction.DefaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	jobs, err := h.service.List(r.Context(), limit)
	if err != nil {
		return err
	}

	resp := ExtractionListResponse{
		Extractions: make([]ExtractionResponse, 0, len(jobs)),
		Count:       len(jobs),
		Limit:       limit,
	}
	for _, job := range jobs {
		resp.Extractions = append(resp.Extractions, toExtractionResponse(job))
	}
	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, resp)
	return nil
}

// ListFormats handles GET /api/v1/extract/formats
func (h *ExtractionHandlers) ListFormats(w http.ResponseWriter, r *http.Request) error {
	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, FormatsResponse{
		Formats: h.service.Formats(),
	})
	return nil
}

// GetExtraction handles GET /api/v1/extract/{id}
func (h *ExtractionHandlers) GetExtraction(w http.ResponseWriter, r *http.Request) error {
	job, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, toExtractionResponse(job))
	return nil
}

// GetExtractionByTask handles GET /api/v1/extract/status/{task_id}
func (h *ExtractionHandlers) GetExtractionByTask(w http.ResponseWriter, r *http.Request) error {
	job, err := h.service.GetByTaskID(r.Context(), r.PathValue("task_id"))
	if err != nil {
		return err
	}
	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, toExtractionResponse(job))
	return nil
}

func toExtractionResponse(job *extraction.Job) ExtractionResponse {
	resp := ExtractionResponse{
		ID:              job.ID,
		SourceURL:       job.SourceURL,
		SourceType:      source.Classify(job.SourceURL).String(),
		Title:           job.Title,
		AudioFormat:     string(job.AudioFormat),
		Status:          string(job.Status),
		FileSize:        job.FileSize,
		DurationSeconds: job.DurationSeconds,
		ErrorMessage:    job.ErrorMessage,
		TaskID:          job.TaskID,
		RetryCount:      job.RetryCount,
		CreatedAt:       job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       job.UpdatedAt.Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		s := job.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	if job.Status == extraction.StatusCompleted {
		resp.DownloadURL = "/api/v1/download/" + job.ID
	}
	return resp
}

func parseIntParam(r *http.Request, name string, defaultVal int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
