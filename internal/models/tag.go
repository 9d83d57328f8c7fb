package models

import (
	"time"

	"github.com/google/uuid"
)

// Tag categories. A tag's category may be upgraded from general to a more
// specific value but is never downgraded.
const (
	CategoryGeneral   = "general"
	CategoryPeople    = "people"
	CategoryAnimals   = "animals"
	CategoryDocuments = "documents"
	CategoryPlaces    = "places"
	CategoryNature    = "nature"
	CategoryText      = "text"
)

// Tag sources recorded on the photo link.
const (
	TagSourceModel  = "model"
	TagSourceOCR    = "ocr"
	TagSourceManual = "manual"
)

// Tag is a unique named label, created lazily on first use.
type Tag struct {
	ID        uuid.UUID `json:"id" db:"tag_id"`
	Name      string    `json:"name" db:"name"`
	Category  string    `json:"category" db:"category"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PhotoTag links a photo to a tag with the confidence of the pass that
// created it. Unique per (photo, tag) pair.
type PhotoTag struct {
	PhotoID    uuid.UUID `json:"photo_id" db:"photo_id"`
	TagID      uuid.UUID `json:"tag_id" db:"tag_id"`
	Confidence float32   `json:"confidence" db:"confidence"`
	Source     string    `json:"source" db:"source"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
