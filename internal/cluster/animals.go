package cluster

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/your-org/photobomb/internal/models"
	"github.com/your-org/photobomb/internal/observability"
)

// animalStore is the slice of the storage layer animal clustering needs.
type animalStore interface {
	UnassignedAnimalDetections(ctx context.Context, userID uuid.UUID) ([]models.AnimalDetection, error)
	CreateAnimal(ctx context.Context, a *models.Animal) error
	AssignAnimalDetections(ctx context.Context, animalID uuid.UUID, detectionIDs []uuid.UUID) error
	ResetAutoNamedAnimals(ctx context.Context, userID uuid.UUID) (int64, error)
}

// AnimalParams tune the animal grouping run.
type AnimalParams struct {
	Eps        float64
	MinSamples int
	ForceReset bool
}

var titleCaser = cases.Title(language.English)

// ClusterAnimals groups a user's unassigned detections into animal
// identities. Detections are partitioned by species label first so a cat
// and a dog can never share an identity. ForceReset dissolves previous
// auto-named identities before regrouping; renamed animals are preserved.
func ClusterAnimals(ctx context.Context, store animalStore, userID uuid.UUID, params AnimalParams) (int, error) {
	if params.ForceReset {
		n, err := store.ResetAutoNamedAnimals(ctx, userID)
		if err != nil {
			return 0, fmt.Errorf("reset auto-named animals: %w", err)
		}
		slog.Info("reset auto-named animals", "user_id", userID, "detections_released", n)
	}

	detections, err := store.UnassignedAnimalDetections(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load unassigned detections: %w", err)
	}
	if len(detections) == 0 {
		slog.Info("no detections ready for clustering", "user_id", userID)
		return 0, nil
	}

	byLabel := make(map[string][]models.AnimalDetection)
	for _, d := range detections {
		byLabel[d.Label] = append(byLabel[d.Label], d)
	}

	created := 0
	for label, group := range byLabel {
		if len(group) < 2 {
			continue
		}

		points := make([][]float32, len(group))
		for i, d := range group {
			points[i] = d.Embedding
		}

		slog.Info("clustering detections", "user_id", userID, "label", label, "count", len(group))
		labels := DBSCAN(points, params.Eps, params.MinSamples)

		for _, members := range groupByLabel(labels) {
			animal := &models.Animal{
				ID:     uuid.New(),
				UserID: userID,
				Name:   fmt.Sprintf("Unnamed %s (%s)", titleCaser.String(label), shortHex(4)),
			}
			coverID := group[members[0]].ID
			animal.CoverDetectionID = &coverID
			if err := store.CreateAnimal(ctx, animal); err != nil {
				return created, fmt.Errorf("create animal: %w", err)
			}

			detIDs := make([]uuid.UUID, len(members))
			for i, m := range members {
				detIDs[i] = group[m].ID
			}
			if err := store.AssignAnimalDetections(ctx, animal.ID, detIDs); err != nil {
				return created, fmt.Errorf("assign detections: %w", err)
			}
			created++
		}
	}

	if created > 0 {
		observability.ClustersCreated.WithLabelValues("animal").Add(float64(created))
	}
	slog.Info("animal clustering complete", "user_id", userID, "animals_created", created)
	return created, nil
}
