package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/photobomb/internal/models"
)

// InsertFace stores a detected face with its embedding.
func (s *PostgresStore) InsertFace(ctx context.Context, f *models.Face) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO faces (face_id, photo_id, person_id, embedding, location_top, location_right, location_bottom, location_left)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`,
		f.ID, f.PhotoID, f.PersonID, pgvector.NewVector(f.Embedding),
		f.Box.Top, f.Box.Right, f.Box.Bottom, f.Box.Left,
	).Scan(&f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert face: %w", err)
	}
	return nil
}

// CountFacesForPhoto reports how many faces exist for a photo. Used as the
// rerun existence check so re-detection never duplicates rows.
func (s *PostgresStore) CountFacesForPhoto(ctx context.Context, photoID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM faces WHERE photo_id = $1`, photoID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count faces: %w", err)
	}
	return count, nil
}

// UnassignedFaces returns all faces for the user with no person yet, with
// embeddings loaded, ordered by creation time.
func (s *PostgresStore) UnassignedFaces(ctx context.Context, userID uuid.UUID) ([]models.Face, error) {
	rows, err := s.db.Query(ctx,
		`SELECT f.face_id, f.photo_id, f.embedding
		 FROM faces f JOIN photos p ON p.photo_id = f.photo_id
		 WHERE p.user_id = $1 AND f.person_id IS NULL AND f.embedding IS NOT NULL
		 ORDER BY f.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query unassigned faces: %w", err)
	}
	defer rows.Close()

	var faces []models.Face
	for rows.Next() {
		var f models.Face
		var vec pgvector.Vector
		if err := rows.Scan(&f.ID, &f.PhotoID, &vec); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		f.Embedding = vec.Slice()
		faces = append(faces, f)
	}
	return faces, rows.Err()
}

// CreatePerson inserts a new person identity.
func (s *PostgresStore) CreatePerson(ctx context.Context, p *models.Person) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO people (person_id, user_id, name, cover_face_id)
		 VALUES ($1, $2, $3, $4) RETURNING created_at`,
		p.ID, p.UserID, p.Name, p.CoverFaceID,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

// AssignFaces sets the person for a batch of faces.
func (s *PostgresStore) AssignFaces(ctx context.Context, personID uuid.UUID, faceIDs []uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE faces SET person_id = $1 WHERE face_id = ANY($2)`, personID, faceIDs)
	if err != nil {
		return fmt.Errorf("assign faces: %w", err)
	}
	return nil
}

// SetPersonCover updates the cover face pointer.
func (s *PostgresStore) SetPersonCover(ctx context.Context, personID, faceID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE people SET cover_face_id = $2 WHERE person_id = $1`, personID, faceID)
	if err != nil {
		return fmt.Errorf("set person cover: %w", err)
	}
	return nil
}
