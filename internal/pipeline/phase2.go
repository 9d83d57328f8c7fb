package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photobomb/internal/imaging"
	"github.com/your-org/photobomb/internal/metadata"
	"github.com/your-org/photobomb/internal/models"
	"github.com/your-org/photobomb/internal/observability"
	"github.com/your-org/photobomb/internal/storage"
	"github.com/your-org/photobomb/internal/vision"
)

// Crop padding widens detection boxes before cropping so the encoder sees
// some context around the subject. Faces need far more margin than animal
// bodies for the embedding to be stable.
const (
	faceCropPadding   = 0.4
	animalCropPadding = 0.1
)

// Phase2 analyzes one photo: face detection and embedding, animal
// detection and embedding, zero-shot tagging and OCR. All rows land in a
// single transaction with processed_at, so a crash mid-phase leaves the
// photo cleanly unprocessed. Existing face/animal rows make their stage
// a no-op, which keeps redeliveries from duplicating detections.
func (w *Worker) Phase2(ctx context.Context, t models.PhotoTask) error {
	task, err := w.loadRunnableTask(ctx, t)
	if err != nil || task == nil {
		return err
	}

	photo, err := w.db.GetPhoto(ctx, t.PhotoID)
	if err != nil {
		return w.failTask(ctx, task, "phase2", err)
	}
	if photo == nil {
		return w.failTask(ctx, task, "phase2", fmt.Errorf("photo %s: %w", t.PhotoID, ErrNotFound))
	}

	key := w.objects.Keys.Original(photo.UserID, photo.ID, photo.Filename)
	start := time.Now()
	data, err := w.objects.Download(ctx, key)
	if err != nil {
		return w.failTask(ctx, task, "phase2", fmt.Errorf("%w: %s: %v", ErrDownloadFailed, key, err))
	}
	task.DownloadTimeMs += msSince(start)
	observeStage("download", start)

	img, _, err := imaging.Decode(data)
	if err != nil {
		return w.failTask(ctx, task, "phase2", fmt.Errorf("%w: %v", ErrProcessing, err))
	}
	oriented := imaging.ApplyOrientation(img, metadata.Extract(data, photo.Filename).Orientation)

	faces, faceCrops, err := w.detectFaces(ctx, task, photo, oriented)
	if err != nil {
		return w.failTask(ctx, task, "phase2", err)
	}

	animals, animalCrops, err := w.detectAnimals(ctx, task, photo, oriented)
	if err != nil {
		return w.failTask(ctx, task, "phase2", err)
	}

	// Crops are uploaded before the transaction; an orphaned crop from a
	// failed attempt is overwritten on retry since keys are deterministic.
	for cropKey, crop := range faceCrops {
		if err := w.objects.Upload(ctx, cropKey, crop, "image/jpeg"); err != nil {
			return w.failTask(ctx, task, "phase2", fmt.Errorf("upload face crop: %w", err))
		}
	}
	for cropKey, crop := range animalCrops {
		if err := w.objects.Upload(ctx, cropKey, crop, "image/jpeg"); err != nil {
			return w.failTask(ctx, task, "phase2", fmt.Errorf("upload animal crop: %w", err))
		}
	}

	start = time.Now()
	err = w.db.WithTx(ctx, func(tx *storage.PostgresStore) error {
		for i := range faces {
			if err := tx.InsertFace(ctx, &faces[i]); err != nil {
				return err
			}
		}
		for i := range animals {
			if err := tx.InsertAnimalDetection(ctx, &animals[i]); err != nil {
				return err
			}
			if _, err := w.tagger.TagAnimalLabel(ctx, tx, photo.ID, animals[i].Label, animals[i].Confidence); err != nil {
				return err
			}
		}

		tagStart := time.Now()
		res, err := w.tagger.TagPhoto(ctx, tx, photo.ID, oriented, data)
		if err != nil {
			return fmt.Errorf("%w: tagging: %v", ErrAnalysis, err)
		}
		task.OCRTimeMs = res.OCRTimeMs
		task.ClassificationTimeMs = msSince(tagStart) - res.OCRTimeMs
		task.TagsCreated = res.TagsCreated + len(animals)
		task.TextWordsExtracted = res.TextWords

		return tx.MarkPhotoProcessed(ctx, photo.ID)
	})
	if err != nil {
		return w.failTask(ctx, task, "phase2", err)
	}
	task.DBWriteTimeMs += msSince(start)
	observeStage("db_write", start)

	now := time.Now().UTC()
	task.Status = models.TaskCompleted
	task.CompletedAt = &now
	task.FacesDetected = len(faces)
	task.AnimalsDetected = len(animals)
	task.TotalTimeMs = task.DownloadTimeMs + task.ThumbnailTimeMs +
		task.FaceDetectionTimeMs + task.AnimalDetectionTimeMs +
		task.ClassificationTimeMs + task.OCRTimeMs + task.DBWriteTimeMs
	if err := w.db.UpdateTask(ctx, task); err != nil {
		return err
	}

	if err := w.orch.RecomputeProgress(ctx, t.PipelineID); err != nil {
		slog.Error("recompute progress", "pipeline_id", t.PipelineID, "error", err)
	}

	observability.PhotosProcessed.WithLabelValues("phase2", "ok").Inc()
	slog.Info("phase2 complete", "photo_id", photo.ID, "pipeline_id", t.PipelineID,
		"faces", len(faces), "animals", len(animals), "tags", task.TagsCreated)
	return nil
}

// detectFaces runs detection and embedding unless the photo already has
// face rows from an earlier run. Returns the face records plus the
// encoded crops keyed by object key.
func (w *Worker) detectFaces(ctx context.Context, task *models.PipelineTask, photo *models.Photo, img image.Image) ([]models.Face, map[string][]byte, error) {
	count, err := w.db.CountFacesForPhoto(ctx, photo.ID)
	if err != nil {
		return nil, nil, err
	}
	if count > 0 {
		slog.Info("faces already detected, skipping", "photo_id", photo.ID, "count", count)
		return nil, nil, nil
	}

	detector, err := w.registry.FaceDetector()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAnalysis, err)
	}
	encoder, err := w.registry.FaceEncoder()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAnalysis, err)
	}

	start := time.Now()
	bounds := img.Bounds()
	detW, detH := detector.InputSize()
	detections, err := detector.Detect(vision.PreprocessForDetection(img, detW, detH), bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: face detection: %v", ErrAnalysis, err)
	}

	faces := make([]models.Face, 0, len(detections))
	crops := make(map[string][]byte, len(detections))
	encW, encH := encoder.InputSize()

	for _, det := range detections {
		box := boxFromDetection(det.BBox)
		crop := imaging.PadCrop(img, box, faceCropPadding)

		embedding, err := encoder.Encode(vision.PreprocessForFaceEmbedding(crop, encW, encH))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: face embedding: %v", ErrAnalysis, err)
		}

		face := models.Face{
			ID:        uuid.New(),
			PhotoID:   photo.ID,
			Embedding: embedding,
			Box:       box,
		}

		stored, err := imaging.EncodeJPEG(imaging.SquareResize(crop, w.cfg.Vision.FaceCropSize), w.cfg.Renditions.Quality)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: encode face crop: %v", ErrProcessing, err)
		}
		crops[w.objects.Keys.FaceCrop(photo.UserID, photo.ID, face.ID)] = stored

		faces = append(faces, face)
	}

	task.FaceDetectionTimeMs = msSince(start)
	observeStage("face_detection", start)
	if len(faces) > 0 {
		observability.FacesDetected.Add(float64(len(faces)))
	}
	return faces, crops, nil
}

// detectAnimals mirrors detectFaces for the animal detector and the CLIP
// embedding space.
func (w *Worker) detectAnimals(ctx context.Context, task *models.PipelineTask, photo *models.Photo, img image.Image) ([]models.AnimalDetection, map[string][]byte, error) {
	count, err := w.db.CountAnimalDetectionsForPhoto(ctx, photo.ID)
	if err != nil {
		return nil, nil, err
	}
	if count > 0 {
		slog.Info("animals already detected, skipping", "photo_id", photo.ID, "count", count)
		return nil, nil, nil
	}

	detector, err := w.registry.AnimalDetector()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAnalysis, err)
	}
	encoder, err := w.registry.CLIPEncoder()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAnalysis, err)
	}

	start := time.Now()
	bounds := img.Bounds()
	detW, detH := detector.InputSize()
	detections, err := detector.Detect(vision.PreprocessForObjectDetection(img, detW, detH), bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: animal detection: %v", ErrAnalysis, err)
	}

	animals := make([]models.AnimalDetection, 0, len(detections))
	crops := make(map[string][]byte, len(detections))
	encW, encH := encoder.InputSize()

	for _, det := range detections {
		box := boxFromDetection(det.BBox)
		crop := imaging.PadCrop(img, box, animalCropPadding)

		embedding, err := encoder.Encode(vision.PreprocessForCLIP(crop, encW, encH))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: animal embedding: %v", ErrAnalysis, err)
		}

		animal := models.AnimalDetection{
			ID:         uuid.New(),
			PhotoID:    photo.ID,
			Label:      det.Label,
			Confidence: det.Confidence,
			Embedding:  embedding,
			Box:        box,
		}

		stored, err := imaging.EncodeJPEG(imaging.SquareResize(crop, w.cfg.Vision.AnimalCropSize), w.cfg.Renditions.Quality)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: encode animal crop: %v", ErrProcessing, err)
		}
		crops[w.objects.Keys.AnimalCrop(photo.UserID, photo.ID, animal.ID)] = stored

		animals = append(animals, animal)
		observability.AnimalsDetected.WithLabelValues(det.Label).Inc()
	}

	task.AnimalDetectionTimeMs = msSince(start)
	observeStage("animal_detection", start)
	return animals, crops, nil
}

func boxFromDetection(bbox [4]float32) models.BBox {
	return models.BBox{
		Left:   int(bbox[0]),
		Top:    int(bbox[1]),
		Right:  int(bbox[2]),
		Bottom: int(bbox[3]),
	}
}
