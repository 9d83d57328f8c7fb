package storage

import (
	"fmt"

	"github.com/google/uuid"
)

// Keys builds the deterministic object key scheme. The photo id is the
// canonical storage key from the moment Phase 1 starts; nothing downstream
// re-derives keys from upload batch ids.
type Keys struct {
	Prefix string
}

// Original returns the key of the original upload.
func (k Keys) Original(userID, photoID uuid.UUID, filename string) string {
	return fmt.Sprintf("%s/%s/%s/original/%s", k.Prefix, userID, photoID, filename)
}

// OriginalDir returns the directory prefix holding a photo's original.
func (k Keys) OriginalDir(userID, photoID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/%s/original/", k.Prefix, userID, photoID)
}

// Thumbnail returns the key of a fixed-size rendition.
func (k Keys) Thumbnail(userID, photoID uuid.UUID, size int) string {
	return fmt.Sprintf("%s/%s/%s/thumbnails/thumb_%d.jpg", k.Prefix, userID, photoID, size)
}

// FaceCrop returns the key of a face crop image.
func (k Keys) FaceCrop(userID, photoID, faceID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/%s/faces/%s.jpg", k.Prefix, userID, photoID, faceID)
}

// AnimalCrop returns the key of an animal detection crop image.
func (k Keys) AnimalCrop(userID, photoID, detectionID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/%s/animals/crops/%s.jpg", k.Prefix, userID, photoID, detectionID)
}

// UserPrefix returns the prefix under which all of a user's objects live.
func (k Keys) UserPrefix(userID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/", k.Prefix, userID)
}
