package models

import (
	"time"

	"github.com/google/uuid"
)

// Photo is created by the upload collaborator; the pipeline fills in the
// derived fields (hashes, capture metadata, processed_at) and never deletes it.
type Photo struct {
	ID              uuid.UUID  `json:"id" db:"photo_id"`
	UserID          uuid.UUID  `json:"user_id" db:"user_id"`
	Filename        string     `json:"filename" db:"filename"`
	MimeType        string     `json:"mime_type" db:"mime_type"`
	SizeBytes       int64      `json:"size_bytes" db:"size_bytes"`
	StorageProvider string     `json:"storage_provider" db:"storage_provider"`
	SHA256          string     `json:"sha256" db:"sha256"`
	PHash           *int64     `json:"phash,omitempty" db:"phash"`
	TakenAt         *time.Time `json:"taken_at,omitempty" db:"taken_at"`
	CameraMake      string     `json:"camera_make,omitempty" db:"camera_make"`
	CameraModel     string     `json:"camera_model,omitempty" db:"camera_model"`
	GPSLat          *float64   `json:"gps_lat,omitempty" db:"gps_lat"`
	GPSLng          *float64   `json:"gps_lng,omitempty" db:"gps_lng"`
	LocationName    string     `json:"location_name,omitempty" db:"location_name"`
	UploadedAt      time.Time  `json:"uploaded_at" db:"uploaded_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty" db:"processed_at"`
}

// Rendition is one stored thumbnail variant of a photo.
type Rendition struct {
	ID        uuid.UUID `json:"id" db:"file_id"`
	PhotoID   uuid.UUID `json:"photo_id" db:"photo_id"`
	Variant   string    `json:"variant" db:"variant"` // thumb_256, thumb_512, thumb_1024
	Format    string    `json:"format" db:"format"`
	Key       string    `json:"key" db:"object_key"`
	SizeBytes int64     `json:"size_bytes" db:"size_bytes"`
	Width     int       `json:"width" db:"width"`
	Height    int       `json:"height" db:"height"`
}
