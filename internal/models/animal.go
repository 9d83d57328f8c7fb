package models

import (
	"time"

	"github.com/google/uuid"
)

// AnimalDetection is a single detector hit in a photo. AnimalID stays nil
// until clustering groups it; clustering never mixes two detector labels
// into the same Animal.
type AnimalDetection struct {
	ID         uuid.UUID  `json:"id" db:"detection_id"`
	PhotoID    uuid.UUID  `json:"photo_id" db:"photo_id"`
	AnimalID   *uuid.UUID `json:"animal_id,omitempty" db:"animal_id"`
	Label      string     `json:"label" db:"label"`
	Confidence float32    `json:"confidence" db:"confidence"`
	Embedding  []float32  `json:"-" db:"embedding"`
	Box        BBox       `json:"box"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Animal is an individual animal identity (e.g. a specific pet) derived
// from clustered detections of one label.
type Animal struct {
	ID               uuid.UUID  `json:"id" db:"animal_id"`
	UserID           uuid.UUID  `json:"user_id" db:"user_id"`
	Name             string     `json:"name" db:"name"`
	CoverDetectionID *uuid.UUID `json:"cover_detection_id,omitempty" db:"cover_detection_id"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}
