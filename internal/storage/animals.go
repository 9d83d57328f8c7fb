package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/photobomb/internal/models"
)

// InsertAnimalDetection stores one detected animal with its embedding.
func (s *PostgresStore) InsertAnimalDetection(ctx context.Context, d *models.AnimalDetection) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO animal_detections (detection_id, photo_id, animal_id, label, confidence, embedding,
		                                location_top, location_right, location_bottom, location_left)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING created_at`,
		d.ID, d.PhotoID, d.AnimalID, d.Label, d.Confidence, pgvector.NewVector(d.Embedding),
		d.Box.Top, d.Box.Right, d.Box.Bottom, d.Box.Left,
	).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert animal detection: %w", err)
	}
	return nil
}

// CountAnimalDetectionsForPhoto reports how many detections exist for a
// photo. Used as the rerun existence check.
func (s *PostgresStore) CountAnimalDetectionsForPhoto(ctx context.Context, photoID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM animal_detections WHERE photo_id = $1`, photoID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count animal detections: %w", err)
	}
	return count, nil
}

// UnassignedAnimalDetections returns the user's detections with no animal
// identity yet, embeddings loaded, ordered by creation time.
func (s *PostgresStore) UnassignedAnimalDetections(ctx context.Context, userID uuid.UUID) ([]models.AnimalDetection, error) {
	rows, err := s.db.Query(ctx,
		`SELECT d.detection_id, d.photo_id, d.label, d.confidence, d.embedding
		 FROM animal_detections d JOIN photos p ON p.photo_id = d.photo_id
		 WHERE p.user_id = $1 AND d.animal_id IS NULL AND d.embedding IS NOT NULL
		 ORDER BY d.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query unassigned animal detections: %w", err)
	}
	defer rows.Close()

	var dets []models.AnimalDetection
	for rows.Next() {
		var d models.AnimalDetection
		var vec pgvector.Vector
		if err := rows.Scan(&d.ID, &d.PhotoID, &d.Label, &d.Confidence, &vec); err != nil {
			return nil, fmt.Errorf("scan animal detection: %w", err)
		}
		d.Embedding = vec.Slice()
		dets = append(dets, d)
	}
	return dets, rows.Err()
}

// CreateAnimal inserts a new animal identity.
func (s *PostgresStore) CreateAnimal(ctx context.Context, a *models.Animal) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO animals (animal_id, user_id, name, cover_detection_id)
		 VALUES ($1, $2, $3, $4) RETURNING created_at`,
		a.ID, a.UserID, a.Name, a.CoverDetectionID,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create animal: %w", err)
	}
	return nil
}

// AssignAnimalDetections sets the animal for a batch of detections.
func (s *PostgresStore) AssignAnimalDetections(ctx context.Context, animalID uuid.UUID, detectionIDs []uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE animal_detections SET animal_id = $1 WHERE detection_id = ANY($2)`,
		animalID, detectionIDs)
	if err != nil {
		return fmt.Errorf("assign animal detections: %w", err)
	}
	return nil
}

// ResetAutoNamedAnimals unassigns detections from auto-generated animal
// identities and deletes those identities. Renamed animals are untouched,
// so a user's "Rex" survives a forced regroup.
func (s *PostgresStore) ResetAutoNamedAnimals(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE animal_detections SET animal_id = NULL
		 WHERE animal_id IN (SELECT animal_id FROM animals WHERE user_id = $1 AND name LIKE 'Unnamed %')`,
		userID)
	if err != nil {
		return 0, fmt.Errorf("unassign auto-named detections: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`DELETE FROM animals WHERE user_id = $1 AND name LIKE 'Unnamed %'`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete auto-named animals: %w", err)
	}
	return tag.RowsAffected(), nil
}
