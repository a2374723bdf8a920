package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/auddy/backend/internal/extraction"
)

const extractionColumns = `
	id, source_url, title, audio_format, status, file_path, file_size,
	duration_seconds, error_message, task_id, retry_count,
	created_at, updated_at, completed_at`

// ExtractionRepository stores jobs in the extractions table. Soft-deleted
// rows are invisible to every query.
type ExtractionRepository struct {
	db *DB
}

func NewExtractionRepository(db *DB) *ExtractionRepository {
	return &ExtractionRepository{db: db}
}

func (r *ExtractionRepository) Create(ctx context.Context, job *extraction.Job) error {
	query := `
		INSERT INTO extractions (
			id, source_url, title, audio_format, status, file_path, file_size,
			duration_seconds, error_message, task_id, retry_count,
			created_at, updated_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.SourceURL, job.Title, string(job.AudioFormat), string(job.Status),
		nullString(job.FilePath), job.FileSize, job.DurationSeconds,
		nullString(job.ErrorMessage), nullString(job.TaskID), job.RetryCount,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert extraction: %w", err)
	}
	return nil
}

func (r *ExtractionRepository) Get(ctx context.Context, id string) (*extraction.Job, error) {
	query := `SELECT` + extractionColumns + ` FROM extractions WHERE id = $1 AND NOT is_deleted`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *ExtractionRepository) GetByTaskID(ctx context.Context, taskID string) (*extraction.Job, error) {
	query := `SELECT` + extractionColumns + ` FROM extractions WHERE task_id = $1 AND NOT is_deleted`
	return r.scanOne(r.db.QueryRowContext(ctx, query, taskID))
}

// Update writes every mutable column of job. An empty task id keeps the
// stored one, since dispatch records it concurrently with the first attempt.
func (r *ExtractionRepository) Update(ctx context.Context, job *extraction.Job) error {
	query := `
		UPDATE extractions SET
			title = $2, status = $3, file_path = $4, file_size = $5,
			duration_seconds = $6, error_message = $7, task_id = COALESCE($8, task_id),
			retry_count = $9, updated_at = $10, completed_at = $11
		WHERE id = $1 AND NOT is_deleted
	`
	res, err := r.db.ExecContext(ctx, query,
		job.ID, job.Title, string(job.Status), nullString(job.FilePath), job.FileSize,
		job.DurationSeconds, nullString(job.ErrorMessage), nullString(job.TaskID),
		job.RetryCount, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update extraction: %w", err)
	}
	return requireRow(res)
}

func (r *ExtractionRepository) SetTaskID(ctx context.Context, id, taskID string) error {
	query := `UPDATE extractions SET task_id = $2, updated_at = NOW() WHERE id = $1 AND NOT is_deleted`
	res, err := r.db.ExecContext(ctx, query, id, taskID)
	if err != nil {
		return fmt.Errorf("set task id: %w", err)
	}
	return requireRow(res)
}

// List returns up to limit jobs, newest first.
func (r *ExtractionRepository) List(ctx context.Context, limit int) ([]*extraction.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT` + extractionColumns + `
		FROM extractions
		WHERE NOT is_deleted
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list extractions: %w", err)
	}
	defer rows.Close()

	var jobs []*extraction.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// SoftDelete hides a job from every query without removing its row.
func (r *ExtractionRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE extractions SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1 AND NOT is_deleted`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete extraction: %w", err)
	}
	return requireRow(res)
}

func (r *ExtractionRepository) scanOne(row *sql.Row) (*extraction.Job, error) {
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, extraction.ErrNotFound
	}
	return job, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*extraction.Job, error) {
	var (
		job                            extraction.Job
		format, status                 string
		filePath, errorMessage, taskID sql.NullString
		fileSize                       sql.NullInt64
		duration                       sql.NullInt32
		completedAt                    sql.NullTime
	)
	err := s.Scan(
		&job.ID, &job.SourceURL, &job.Title, &format, &status, &filePath, &fileSize,
		&duration, &errorMessage, &taskID, &job.RetryCount,
		&job.CreatedAt, &job.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if job.AudioFormat, err = extraction.ParseFormat(format); err != nil {
		return nil, fmt.Errorf("extraction %s: %w", job.ID, err)
	}
	if job.Status, err = extraction.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("extraction %s: %w", job.ID, err)
	}
	job.FilePath = filePath.String
	job.ErrorMessage = errorMessage.String
	job.TaskID = taskID.String
	if fileSize.Valid {
		v := fileSize.Int64
		job.FileSize = &v
	}
	if duration.Valid {
		v := int(duration.Int32)
		job.DurationSeconds = &v
	}
	if completedAt.Valid {
		v := completedAt.Time.UTC()
		job.CompletedAt = &v
	}
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return &job, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return extraction.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ extraction.Repository = (*ExtractionRepository)(nil)
