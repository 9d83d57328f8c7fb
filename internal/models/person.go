package models

import (
	"time"

	"github.com/google/uuid"
)

// BBox is a bounding box in pixel units.
type BBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Width returns the horizontal extent of the box.
func (b BBox) Width() int { return b.Right - b.Left }

// Height returns the vertical extent of the box.
func (b BBox) Height() int { return b.Bottom - b.Top }

// Area returns the box area in square pixels.
func (b BBox) Area() int { return b.Width() * b.Height() }

// Face is a single detected face in a photo. PersonID stays nil until the
// clustering job assigns it; once set it is only changed by an explicit
// merge or reset, never by re-running detection.
type Face struct {
	ID        uuid.UUID  `json:"id" db:"face_id"`
	PhotoID   uuid.UUID  `json:"photo_id" db:"photo_id"`
	PersonID  *uuid.UUID `json:"person_id,omitempty" db:"person_id"`
	Embedding []float32  `json:"-" db:"embedding"`
	Box       BBox       `json:"box"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Person is an identity derived from one or more clustered faces.
type Person struct {
	ID          uuid.UUID  `json:"id" db:"person_id"`
	UserID      uuid.UUID  `json:"user_id" db:"user_id"`
	Name        string     `json:"name" db:"name"`
	CoverFaceID *uuid.UUID `json:"cover_face_id,omitempty" db:"cover_face_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
