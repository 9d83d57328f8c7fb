package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/photobomb/internal/imaging"
	"github.com/your-org/photobomb/internal/metadata"
	"github.com/your-org/photobomb/internal/models"
	"github.com/your-org/photobomb/internal/observability"
	"github.com/your-org/photobomb/internal/storage"
)

// Phase1 ingests one photo: fetch the original, canonicalize its key,
// hash, extract metadata, generate renditions, then hand off to Phase 2.
// Every step is idempotent so a redelivered message converges to the
// same state.
func (w *Worker) Phase1(ctx context.Context, t models.PhotoTask) error {
	task, err := w.loadRunnableTask(ctx, t)
	if err != nil || task == nil {
		return err
	}

	photo, err := w.db.GetPhoto(ctx, t.PhotoID)
	if err != nil {
		return w.failTask(ctx, task, "phase1", err)
	}
	if photo == nil {
		return w.failTask(ctx, task, "phase1", fmt.Errorf("photo %s: %w", t.PhotoID, ErrNotFound))
	}

	// Download. Tasks submitted under a staged key carry it until the
	// original is canonicalized; everything after reads the canonical key.
	canonical := w.objects.Keys.Original(photo.UserID, photo.ID, photo.Filename)
	sourceKey := t.SourceKey
	if sourceKey == "" {
		sourceKey = canonical
	}

	start := time.Now()
	data, err := w.objects.Download(ctx, sourceKey)
	if err != nil && sourceKey != canonical {
		// A previous attempt may already have moved the staged original.
		if d2, err2 := w.objects.Download(ctx, canonical); err2 == nil {
			data, err, sourceKey = d2, nil, canonical
		}
	}
	if err != nil {
		return w.failTask(ctx, task, "phase1", fmt.Errorf("%w: %s: %v", ErrDownloadFailed, sourceKey, err))
	}
	task.DownloadTimeMs = msSince(start)
	observeStage("download", start)

	// Canonicalize before any derived artifact exists, so every later
	// stage can re-derive the key from ids alone.
	if sourceKey != canonical {
		if err := w.objects.Move(ctx, sourceKey, canonical); err != nil {
			return w.failTask(ctx, task, "phase1", fmt.Errorf("canonicalize key: %w", err))
		}
	}
	// The staged key is gone now, so reruns must not replay it.
	task.SourceKey = ""

	photo.SHA256 = imaging.SHA256Hex(data)
	photo.SizeBytes = int64(len(data))

	img, _, err := imaging.Decode(data)
	if err != nil {
		return w.failTask(ctx, task, "phase1", fmt.Errorf("%w: %v", ErrProcessing, err))
	}

	meta := metadata.Extract(data, photo.Filename)
	photo.TakenAt = meta.TakenAt
	photo.CameraMake = meta.CameraMake
	photo.CameraModel = meta.CameraModel
	photo.GPSLat = meta.GPSLat
	photo.GPSLng = meta.GPSLng

	oriented := imaging.ApplyOrientation(img, meta.Orientation)

	phash := imaging.PerceptualHash(oriented)
	photo.PHash = &phash

	if photo.GPSLat != nil && photo.GPSLng != nil {
		photo.LocationName = w.geocoder.Reverse(ctx, *photo.GPSLat, *photo.GPSLng)
	}

	if dup, err := w.db.FindPhotoBySHA256(ctx, photo.UserID, photo.SHA256); err == nil && dup != nil && *dup != photo.ID {
		slog.Info("exact duplicate content", "photo_id", photo.ID, "duplicate_of", *dup)
	}

	// Renditions.
	start = time.Now()
	renditions := make([]*models.Rendition, 0, len(w.cfg.Renditions.Sizes))
	for _, size := range w.cfg.Renditions.Sizes {
		thumb := imaging.Thumbnail(oriented, size)
		encoded, err := imaging.EncodeJPEG(thumb, w.cfg.Renditions.Quality)
		if err != nil {
			return w.failTask(ctx, task, "phase1", fmt.Errorf("%w: rendition %d: %v", ErrProcessing, size, err))
		}
		key := w.objects.Keys.Thumbnail(photo.UserID, photo.ID, size)
		if err := w.objects.Upload(ctx, key, encoded, "image/jpeg"); err != nil {
			return w.failTask(ctx, task, "phase1", fmt.Errorf("upload rendition %d: %w", size, err))
		}
		renditions = append(renditions, &models.Rendition{
			PhotoID:   photo.ID,
			Variant:   fmt.Sprintf("thumb_%d", size),
			Format:    "jpeg",
			Key:       key,
			SizeBytes: int64(len(encoded)),
			Width:     thumb.Bounds().Dx(),
			Height:    thumb.Bounds().Dy(),
		})
	}
	task.ThumbnailTimeMs = msSince(start)
	observeStage("thumbnail", start)

	// Commit the photo row and rendition records as one unit.
	start = time.Now()
	err = w.db.WithTx(ctx, func(tx *storage.PostgresStore) error {
		if err := tx.UpdatePhotoDerived(ctx, photo); err != nil {
			return err
		}
		for _, r := range renditions {
			if err := tx.UpsertRendition(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return w.failTask(ctx, task, "phase1", err)
	}
	task.DBWriteTimeMs += msSince(start)
	observeStage("db_write", start)

	// Hand off to Phase 2 only after the commit, so the analysis phase
	// always sees Phase 1's results.
	jobID, err := w.producer.PublishPhase2(ctx, models.PhotoTask{
		PipelineID: t.PipelineID,
		PhotoID:    photo.ID,
		UserID:     photo.UserID,
		SourceKey:  canonical,
		Filename:   photo.Filename,
		Attempt:    t.Attempt,
	})
	if err != nil {
		return w.failTask(ctx, task, "phase1", fmt.Errorf("enqueue analysis: %w", err))
	}
	task.JobID = jobID

	// The task stays running: Phase 2 owns completion.
	if err := w.db.UpdateTask(ctx, task); err != nil {
		return err
	}

	observability.PhotosProcessed.WithLabelValues("phase1", "ok").Inc()
	slog.Info("phase1 complete", "photo_id", photo.ID, "pipeline_id", t.PipelineID,
		"download_ms", task.DownloadTimeMs, "thumbnail_ms", task.ThumbnailTimeMs)
	return nil
}
