package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Pipeline statuses.
const (
	PipelinePending   = "pending"
	PipelineQueued    = "queued"
	PipelineRunning   = "running"
	PipelinePaused    = "paused"
	PipelineCompleted = "completed"
	PipelineFailed    = "failed"
	PipelineCancelled = "cancelled"
)

// Task statuses. queued is the initial state on enqueue; completed, failed,
// cancelled and skipped are terminal.
const (
	TaskPending   = "pending"
	TaskQueued    = "queued"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
	TaskCancelled = "cancelled"
	TaskSkipped   = "skipped"
)

// Pipeline types.
const (
	PipelineTypeUpload        = "upload"
	PipelineTypeRescan        = "rescan"
	PipelineTypeBatchAnalysis = "batch_analysis"
)

// Pipeline tracks a batch of per-photo processing work.
type Pipeline struct {
	ID          uuid.UUID       `json:"id" db:"pipeline_id"`
	UserID      *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	Type        string          `json:"type" db:"pipeline_type"`
	Name        string          `json:"name,omitempty" db:"name"`
	Description string          `json:"description,omitempty" db:"description"`
	Status      string          `json:"status" db:"status"`

	TotalPhotos     int `json:"total_photos" db:"total_photos"`
	CompletedPhotos int `json:"completed_photos" db:"completed_photos"`
	FailedPhotos    int `json:"failed_photos" db:"failed_photos"`
	SkippedPhotos   int `json:"skipped_photos" db:"skipped_photos"`

	AvgProcessingTimeMs   int64 `json:"avg_processing_time_ms" db:"avg_processing_time_ms"`
	TotalProcessingTimeMs int64 `json:"total_processing_time_ms" db:"total_processing_time_ms"`

	Config json.RawMessage `json:"config,omitempty" db:"config"`
	Error  string          `json:"error,omitempty" db:"error"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
}

// ProgressPercent returns the share of terminal tasks, 0..100.
func (p *Pipeline) ProgressPercent() float64 {
	if p.TotalPhotos == 0 {
		return 0
	}
	processed := p.CompletedPhotos + p.FailedPhotos + p.SkippedPhotos
	return float64(processed) / float64(p.TotalPhotos) * 100
}

// ETARemainingMs estimates remaining time from the running average.
func (p *Pipeline) ETARemainingMs() int64 {
	if p.AvgProcessingTimeMs == 0 || p.TotalPhotos == 0 {
		return 0
	}
	remaining := p.TotalPhotos - (p.CompletedPhotos + p.FailedPhotos + p.SkippedPhotos)
	if remaining < 0 {
		remaining = 0
	}
	return int64(remaining) * p.AvgProcessingTimeMs
}

// PipelineTask is one photo's work unit inside a pipeline.
type PipelineTask struct {
	ID         uuid.UUID `json:"id" db:"task_id"`
	PipelineID uuid.UUID `json:"pipeline_id" db:"pipeline_id"`
	PhotoID    uuid.UUID `json:"photo_id" db:"photo_id"`

	Filename string `json:"filename" db:"photo_filename"`
	// SourceKey is the staged object key the photo was submitted under,
	// kept so reruns of tasks that failed before canonicalization can
	// still find the original. Empty once the canonical key applies.
	SourceKey string `json:"source_key,omitempty" db:"source_key"`
	JobID     string `json:"job_id,omitempty" db:"job_id"` // queue message id, for cancellation

	Status string `json:"status" db:"status"`

	// Per-stage durations in milliseconds.
	TotalTimeMs           int64 `json:"total_time_ms" db:"total_time_ms"`
	DownloadTimeMs        int64 `json:"download_time_ms" db:"download_time_ms"`
	ThumbnailTimeMs       int64 `json:"thumbnail_time_ms" db:"thumbnail_time_ms"`
	FaceDetectionTimeMs   int64 `json:"face_detection_time_ms" db:"face_detection_time_ms"`
	AnimalDetectionTimeMs int64 `json:"animal_detection_time_ms" db:"animal_detection_time_ms"`
	ClassificationTimeMs  int64 `json:"classification_time_ms" db:"classification_time_ms"`
	OCRTimeMs             int64 `json:"ocr_time_ms" db:"ocr_time_ms"`
	DBWriteTimeMs         int64 `json:"db_write_time_ms" db:"db_write_time_ms"`

	// Result counters.
	FacesDetected      int `json:"faces_detected" db:"faces_detected"`
	AnimalsDetected    int `json:"animals_detected" db:"animals_detected"`
	TagsCreated        int `json:"tags_created" db:"tags_created"`
	TextWordsExtracted int `json:"text_words_extracted" db:"text_words_extracted"`

	ErrorMessage string `json:"error_message,omitempty" db:"error_message"`
	ErrorType    string `json:"error_type,omitempty" db:"error_type"`
	RetryCount   int    `json:"retry_count" db:"retry_count"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// ResetForRerun puts a task back into the queued state, clearing error and
// timing fields so the next run reports fresh numbers. RetryCount survives:
// it keeps growing across reruns so every publish gets a distinct attempt.
func (t *PipelineTask) ResetForRerun() {
	t.Status = TaskQueued
	t.ErrorMessage = ""
	t.ErrorType = ""
	t.TotalTimeMs = 0
	t.DownloadTimeMs = 0
	t.ThumbnailTimeMs = 0
	t.FaceDetectionTimeMs = 0
	t.AnimalDetectionTimeMs = 0
	t.ClassificationTimeMs = 0
	t.OCRTimeMs = 0
	t.DBWriteTimeMs = 0
	t.FacesDetected = 0
	t.AnimalsDetected = 0
	t.TagsCreated = 0
	t.TextWordsExtracted = 0
	t.StartedAt = nil
	t.CompletedAt = nil
}
