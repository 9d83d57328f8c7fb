package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/photobomb/internal/models"
)

// UpsertTag inserts a tag by name or returns the existing one. A stored
// category is only upgraded when it is still NULL or 'general'; a specific
// category never regresses to a generic one.
func (s *PostgresStore) UpsertTag(ctx context.Context, name, category string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`INSERT INTO tags (tag_id, name, category) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET category = CASE
		     WHEN tags.category IS NULL OR tags.category = 'general' THEN EXCLUDED.category
		     ELSE tags.category
		 END
		 RETURNING tag_id`,
		uuid.New(), name, category).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert tag %q: %w", name, err)
	}
	return id, nil
}

// LinkPhotoTag associates a tag with a photo. An existing link keeps its
// original confidence and source.
func (s *PostgresStore) LinkPhotoTag(ctx context.Context, pt *models.PhotoTag) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO photo_tags (photo_id, tag_id, confidence, source)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (photo_id, tag_id) DO NOTHING`,
		pt.PhotoID, pt.TagID, pt.Confidence, pt.Source)
	if err != nil {
		return false, fmt.Errorf("link photo tag: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// TagsForPhoto returns the tag names and categories linked to a photo.
func (s *PostgresStore) TagsForPhoto(ctx context.Context, photoID uuid.UUID) ([]models.Tag, error) {
	rows, err := s.db.Query(ctx,
		`SELECT t.tag_id, t.name, COALESCE(t.category, '')
		 FROM photo_tags pt JOIN tags t ON t.tag_id = pt.tag_id
		 WHERE pt.photo_id = $1 ORDER BY t.name`, photoID)
	if err != nil {
		return nil, fmt.Errorf("query photo tags: %w", err)
	}
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Category); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
