package models

import (
	"time"

	"github.com/google/uuid"
)

// PhotoTask is the message published to the work queue for one photo phase.
type PhotoTask struct {
	PipelineID uuid.UUID `json:"pipeline_id"`
	PhotoID    uuid.UUID `json:"photo_id"`
	UserID     uuid.UUID `json:"user_id"`
	SourceKey  string    `json:"source_key"` // object key of the original
	Filename   string    `json:"filename"`
	// Attempt is 0 on first submission and increases on every rerun, so a
	// rerun's message id never collides with one still inside the stream's
	// duplicate window.
	Attempt int `json:"attempt,omitempty"`
}

// Clustering scopes.
const (
	ClusterScopeFaces   = "faces"
	ClusterScopeAnimals = "animals"
	ClusterScopeAll     = "all"
)

// ClusterTask triggers a per-user clustering run. Tasks for the same user
// are serialized by the queue layer.
type ClusterTask struct {
	UserID     uuid.UUID `json:"user_id"`
	Scope      string    `json:"scope"`
	ForceReset bool      `json:"force_reset"`
}

// ProgressEvent is published after every batch-progress recompute and
// fanned out to WebSocket subscribers by the API.
type ProgressEvent struct {
	PipelineID      uuid.UUID `json:"pipeline_id"`
	Status          string    `json:"status"`
	TotalPhotos     int       `json:"total_photos"`
	CompletedPhotos int       `json:"completed_photos"`
	FailedPhotos    int       `json:"failed_photos"`
	SkippedPhotos   int       `json:"skipped_photos"`
	ProgressPercent float64   `json:"progress_percent"`
	ETARemainingMs  int64     `json:"eta_remaining_ms"`
	Timestamp       time.Time `json:"timestamp"`
}
