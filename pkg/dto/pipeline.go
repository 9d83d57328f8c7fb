package dto

import (
	"encoding/json"

	"github.com/google/uuid"
)

// SubmitPhoto is one photo in a pipeline submission. SourceKey is the
// object key the upload landed under; empty means the canonical key.
type SubmitPhoto struct {
	PhotoID   uuid.UUID `json:"photo_id" binding:"required"`
	Filename  string    `json:"filename" binding:"required"`
	SourceKey string    `json:"source_key"`
}

type SubmitPipelineRequest struct {
	UserID      uuid.UUID       `json:"user_id" binding:"required"`
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Photos      []SubmitPhoto   `json:"photos" binding:"required"`
	Config      json.RawMessage `json:"config"`
}

type PipelineResponse struct {
	ID              uuid.UUID       `json:"id"`
	UserID          *uuid.UUID      `json:"user_id,omitempty"`
	Type            string          `json:"type"`
	Name            string          `json:"name,omitempty"`
	Description     string          `json:"description,omitempty"`
	Status          string          `json:"status"`
	TotalPhotos     int             `json:"total_photos"`
	CompletedPhotos int             `json:"completed_photos"`
	FailedPhotos    int             `json:"failed_photos"`
	SkippedPhotos   int             `json:"skipped_photos"`
	ProgressPercent float64         `json:"progress_percent"`
	ETARemainingMs  int64           `json:"eta_remaining_ms"`
	AvgTimeMs       int64           `json:"avg_processing_time_ms"`
	TotalTimeMs     int64           `json:"total_processing_time_ms"`
	Config          json.RawMessage `json:"config,omitempty"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       string          `json:"created_at"`
	StartedAt       string          `json:"started_at,omitempty"`
	CompletedAt     string          `json:"completed_at,omitempty"`
	CancelledAt     string          `json:"cancelled_at,omitempty"`
}

type PipelineListResponse struct {
	Pipelines []PipelineResponse `json:"pipelines"`
	Total     int                `json:"total"`
}

type PipelineQuery struct {
	UserID string `form:"user_id"`
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

type TaskResponse struct {
	ID         uuid.UUID `json:"id"`
	PipelineID uuid.UUID `json:"pipeline_id"`
	PhotoID    uuid.UUID `json:"photo_id"`
	Filename   string    `json:"filename"`
	Status     string    `json:"status"`

	TotalTimeMs           int64 `json:"total_time_ms"`
	DownloadTimeMs        int64 `json:"download_time_ms"`
	ThumbnailTimeMs       int64 `json:"thumbnail_time_ms"`
	FaceDetectionTimeMs   int64 `json:"face_detection_time_ms"`
	AnimalDetectionTimeMs int64 `json:"animal_detection_time_ms"`
	ClassificationTimeMs  int64 `json:"classification_time_ms"`
	OCRTimeMs             int64 `json:"ocr_time_ms"`
	DBWriteTimeMs         int64 `json:"db_write_time_ms"`

	FacesDetected      int `json:"faces_detected"`
	AnimalsDetected    int `json:"animals_detected"`
	TagsCreated        int `json:"tags_created"`
	TextWordsExtracted int `json:"text_words_extracted"`

	ErrorMessage string `json:"error_message,omitempty"`
	ErrorType    string `json:"error_type,omitempty"`
	RetryCount   int    `json:"retry_count"`

	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Total int            `json:"total"`
}

type RerunRequest struct {
	TaskIDs        []uuid.UUID `json:"task_ids"`
	IncludeSkipped bool        `json:"include_skipped"`
}

type RerunResponse struct {
	PipelineID uuid.UUID `json:"pipeline_id"`
	Requeued   int       `json:"requeued"`
}

type TriggerClusteringRequest struct {
	UserID     uuid.UUID `json:"user_id" binding:"required"`
	Scope      string    `json:"scope"` // faces, animals or all
	ForceReset bool      `json:"force_reset"`
}

// WSProgress is the WebSocket message wrapping one progress event.
type WSProgress struct {
	Type       string          `json:"type"` // pipeline_progress
	PipelineID uuid.UUID       `json:"pipeline_id"`
	Data       json.RawMessage `json:"data"`
}
