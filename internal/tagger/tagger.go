package tagger

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photobomb/internal/config"
	"github.com/your-org/photobomb/internal/models"
	"github.com/your-org/photobomb/internal/observability"
	"github.com/your-org/photobomb/internal/vision"
)

// tagStore is the slice of the storage layer the tagger writes through.
type tagStore interface {
	UpsertTag(ctx context.Context, name, category string) (uuid.UUID, error)
	LinkPhotoTag(ctx context.Context, pt *models.PhotoTag) (bool, error)
}

// imageEncoder produces CLIP image embeddings.
type imageEncoder interface {
	Encode(data []float32) ([]float32, error)
	InputSize() (int, int)
}

// Result summarizes one photo's tagging run.
type Result struct {
	TagsCreated int
	TextWords   int
	OCRTimeMs   int64
}

// Tagger runs the scene, document and OCR passes for one photo.
type Tagger struct {
	bank *LabelBank
	clip imageEncoder
	ocr  *OCR
	cfg  config.VisionConfig
}

func New(bank *LabelBank, clip imageEncoder, ocr *OCR, cfg config.VisionConfig) *Tagger {
	return &Tagger{bank: bank, clip: clip, ocr: ocr, cfg: cfg}
}

// TagPhoto classifies the image and writes tags through store. The OCR
// pass receives the original bytes since recognition quality drops on
// resized pixels.
func (t *Tagger) TagPhoto(ctx context.Context, store tagStore, photoID uuid.UUID, img image.Image, original []byte) (Result, error) {
	var res Result

	w, h := t.clip.InputSize()
	imgEmb, err := t.clip.Encode(vision.PreprocessForCLIP(img, w, h))
	if err != nil {
		return res, fmt.Errorf("encode image: %w", err)
	}

	// Scene pass over the broad vocabulary.
	scene := selectAboveThreshold(
		rankLabels(imgEmb, t.bank.Scene),
		float32(t.cfg.SceneThreshold), float32(t.cfg.SceneFloor))

	for _, s := range scene {
		created, err := t.writeTag(ctx, store, photoID, s.Label, SceneCategory(s.Label), s.Score, models.TagSourceModel)
		if err != nil {
			return res, err
		}
		if created {
			res.TagsCreated++
		}
	}

	// Granular document pass, only when the scene pass saw a document.
	if hasDocumentTag(scene) && len(t.bank.Document) > 0 {
		docs := selectAboveThreshold(
			rankLabels(imgEmb, t.bank.Document),
			float32(t.cfg.DocumentThreshold), float32(t.cfg.DocumentFloor))
		for _, d := range docs {
			created, err := t.writeTag(ctx, store, photoID, documentTagName(d.Label), models.CategoryDocuments, d.Score, models.TagSourceModel)
			if err != nil {
				return res, err
			}
			if created {
				res.TagsCreated++
			}
		}
	}

	// OCR pass. Recognition failures are soft; a photo is never failed
	// over unreadable text.
	if t.ocr != nil && t.ocr.Enabled() {
		ocrStart := time.Now()
		text, err := t.ocr.ExtractText(ctx, original)
		res.OCRTimeMs = time.Since(ocrStart).Milliseconds()
		if err != nil {
			slog.Warn("ocr failed", "photo_id", photoID, "error", err)
		} else {
			tokens := TokenizeText(text)
			res.TextWords = len(tokens)
			for _, token := range tokens {
				created, err := t.writeTag(ctx, store, photoID, token, models.CategoryText, 1.0, models.TagSourceOCR)
				if err != nil {
					return res, err
				}
				if created {
					res.TagsCreated++
				}
			}
		}
	}

	return res, nil
}

// TagAnimalLabel materializes a detection label as a tag so species search
// works before clustering runs.
func (t *Tagger) TagAnimalLabel(ctx context.Context, store tagStore, photoID uuid.UUID, label string, confidence float32) (bool, error) {
	return t.writeTag(ctx, store, photoID, label, models.CategoryAnimals, confidence, models.TagSourceModel)
}

func (t *Tagger) writeTag(ctx context.Context, store tagStore, photoID uuid.UUID, name, category string, confidence float32, source string) (bool, error) {
	tagID, err := store.UpsertTag(ctx, name, category)
	if err != nil {
		return false, err
	}
	created, err := store.LinkPhotoTag(ctx, &models.PhotoTag{
		PhotoID:    photoID,
		TagID:      tagID,
		Confidence: confidence,
		Source:     source,
	})
	if err != nil {
		return false, err
	}
	if created {
		observability.TagsWritten.WithLabelValues(source).Inc()
	}
	return created, nil
}
