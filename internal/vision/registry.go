package vision

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/your-org/photobomb/internal/config"
)

// Registry lazily loads ONNX models on first use and caches the sessions.
// A worker that only ever runs ingestion never pays for the analysis
// models.
type Registry struct {
	cfg config.VisionConfig

	faceDetOnce sync.Once
	faceDet     *FaceDetector
	faceDetErr  error

	faceEncOnce sync.Once
	faceEnc     *ImageEncoder
	faceEncErr  error

	clipOnce sync.Once
	clip     *ImageEncoder
	clipErr  error

	animalOnce sync.Once
	animal     *AnimalDetector
	animalErr  error
}

func NewRegistry(cfg config.VisionConfig) *Registry {
	return &Registry{cfg: cfg}
}

func (r *Registry) FaceDetector() (*FaceDetector, error) {
	r.faceDetOnce.Do(func() {
		path := filepath.Join(r.cfg.ModelsDir, "det_10g.onnx")
		slog.Info("loading face detection model", "path", path)
		r.faceDet, r.faceDetErr = NewFaceDetector(path, float32(r.cfg.FaceDetectionThreshold), nil)
	})
	if r.faceDetErr != nil {
		return nil, fmt.Errorf("face detector: %w", r.faceDetErr)
	}
	return r.faceDet, nil
}

func (r *Registry) FaceEncoder() (*ImageEncoder, error) {
	r.faceEncOnce.Do(func() {
		path := filepath.Join(r.cfg.ModelsDir, "w600k_r50.onnx")
		slog.Info("loading face embedding model", "path", path)
		r.faceEnc, r.faceEncErr = NewImageEncoder(path, FaceEncoderSpec(), nil)
	})
	if r.faceEncErr != nil {
		return nil, fmt.Errorf("face encoder: %w", r.faceEncErr)
	}
	return r.faceEnc, nil
}

func (r *Registry) CLIPEncoder() (*ImageEncoder, error) {
	r.clipOnce.Do(func() {
		path := filepath.Join(r.cfg.ModelsDir, "clip_image.onnx")
		slog.Info("loading clip image model", "path", path)
		r.clip, r.clipErr = NewImageEncoder(path, CLIPEncoderSpec(), nil)
	})
	if r.clipErr != nil {
		return nil, fmt.Errorf("clip encoder: %w", r.clipErr)
	}
	return r.clip, nil
}

func (r *Registry) AnimalDetector() (*AnimalDetector, error) {
	r.animalOnce.Do(func() {
		path := filepath.Join(r.cfg.ModelsDir, "detr_resnet50.onnx")
		slog.Info("loading animal detection model", "path", path)
		r.animal, r.animalErr = NewAnimalDetector(path, float32(r.cfg.AnimalDetectionThreshold), nil)
	})
	if r.animalErr != nil {
		return nil, fmt.Errorf("animal detector: %w", r.animalErr)
	}
	return r.animal, nil
}

func (r *Registry) Close() {
	if r.faceDet != nil {
		r.faceDet.Close()
	}
	if r.faceEnc != nil {
		r.faceEnc.Close()
	}
	if r.clip != nil {
		r.clip.Close()
	}
	if r.animal != nil {
		r.animal.Close()
	}
}
