package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/photobomb/internal/models"
)

// GetPhoto returns a photo by id, or nil if the row vanished.
func (s *PostgresStore) GetPhoto(ctx context.Context, id uuid.UUID) (*models.Photo, error) {
	p := &models.Photo{}
	err := s.db.QueryRow(ctx,
		`SELECT photo_id, user_id, filename, mime_type, size_bytes, storage_provider,
		        sha256, phash, taken_at, COALESCE(camera_make, ''), COALESCE(camera_model, ''),
		        gps_lat, gps_lng, COALESCE(location_name, ''), uploaded_at, processed_at
		 FROM photos WHERE photo_id = $1`, id,
	).Scan(&p.ID, &p.UserID, &p.Filename, &p.MimeType, &p.SizeBytes, &p.StorageProvider,
		&p.SHA256, &p.PHash, &p.TakenAt, &p.CameraMake, &p.CameraModel,
		&p.GPSLat, &p.GPSLng, &p.LocationName, &p.UploadedAt, &p.ProcessedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return p, nil
}

// CreatePhoto inserts a photo row. Normally done by the upload collaborator;
// the backfill command uses it for rescans of bucket-only originals.
func (s *PostgresStore) CreatePhoto(ctx context.Context, p *models.Photo) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO photos (photo_id, user_id, filename, mime_type, size_bytes, storage_provider, sha256)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (photo_id) DO NOTHING`,
		p.ID, p.UserID, p.Filename, p.MimeType, p.SizeBytes, p.StorageProvider, p.SHA256)
	if err != nil {
		return fmt.Errorf("create photo: %w", err)
	}
	return nil
}

// UpdatePhotoDerived writes the Phase 1 results: hashes and capture
// metadata. Safe to repeat; the same inputs produce the same values.
func (s *PostgresStore) UpdatePhotoDerived(ctx context.Context, p *models.Photo) error {
	_, err := s.db.Exec(ctx,
		`UPDATE photos
		 SET sha256 = $2, phash = $3, taken_at = $4, camera_make = $5, camera_model = $6,
		     gps_lat = $7, gps_lng = $8, location_name = $9, size_bytes = $10
		 WHERE photo_id = $1`,
		p.ID, p.SHA256, p.PHash, p.TakenAt, p.CameraMake, p.CameraModel,
		p.GPSLat, p.GPSLng, p.LocationName, p.SizeBytes)
	if err != nil {
		return fmt.Errorf("update photo derived fields: %w", err)
	}
	return nil
}

// MarkPhotoProcessed sets processed_at. Called only after Phase 2 commits.
func (s *PostgresStore) MarkPhotoProcessed(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE photos SET processed_at = NOW() WHERE photo_id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark photo processed: %w", err)
	}
	return nil
}

// UpsertRendition records a generated thumbnail variant.
func (s *PostgresStore) UpsertRendition(ctx context.Context, r *models.Rendition) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO photo_files (file_id, photo_id, variant, format, object_key, size_bytes, width, height)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (photo_id, variant, format) DO UPDATE
		 SET object_key = EXCLUDED.object_key, size_bytes = EXCLUDED.size_bytes,
		     width = EXCLUDED.width, height = EXCLUDED.height`,
		r.ID, r.PhotoID, r.Variant, r.Format, r.Key, r.SizeBytes, r.Width, r.Height)
	if err != nil {
		return fmt.Errorf("upsert rendition: %w", err)
	}
	return nil
}

// FindPhotoBySHA256 returns an existing photo with the same content hash
// for the user, if any. Used for exact-duplicate detection.
func (s *PostgresStore) FindPhotoBySHA256(ctx context.Context, userID uuid.UUID, sha string) (*uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`SELECT photo_id FROM photos WHERE user_id = $1 AND sha256 = $2 LIMIT 1`,
		userID, sha).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find photo by sha256: %w", err)
	}
	return &id, nil
}
