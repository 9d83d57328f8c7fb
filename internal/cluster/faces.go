package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/your-org/photobomb/internal/models"
	"github.com/your-org/photobomb/internal/observability"
)

// faceStore is the slice of the storage layer face clustering needs.
type faceStore interface {
	UnassignedFaces(ctx context.Context, userID uuid.UUID) ([]models.Face, error)
	CreatePerson(ctx context.Context, p *models.Person) error
	AssignFaces(ctx context.Context, personID uuid.UUID, faceIDs []uuid.UUID) error
}

// FaceParams tune the face grouping run.
type FaceParams struct {
	Eps        float64
	MinSamples int
}

// ClusterFaces groups a user's unassigned faces into new persons. Faces
// already assigned to a person are never touched, so manual curation
// survives every rerun. Noise points stay unassigned and get another
// chance on the next run.
func ClusterFaces(ctx context.Context, store faceStore, userID uuid.UUID, params FaceParams) (int, error) {
	faces, err := store.UnassignedFaces(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load unassigned faces: %w", err)
	}
	if len(faces) == 0 {
		slog.Info("no unassigned faces", "user_id", userID)
		return 0, nil
	}

	points := make([][]float32, len(faces))
	for i, f := range faces {
		points[i] = f.Embedding
	}

	slog.Info("clustering faces", "user_id", userID, "count", len(faces))
	labels := DBSCAN(points, params.Eps, params.MinSamples)

	created := 0
	for _, members := range groupByLabel(labels) {
		person := &models.Person{
			ID:     uuid.New(),
			UserID: userID,
			Name:   fmt.Sprintf("Person %s", shortHex(8)),
		}
		coverID := faces[members[0]].ID
		person.CoverFaceID = &coverID
		if err := store.CreatePerson(ctx, person); err != nil {
			return created, fmt.Errorf("create person: %w", err)
		}

		faceIDs := make([]uuid.UUID, len(members))
		for i, m := range members {
			faceIDs[i] = faces[m].ID
		}
		if err := store.AssignFaces(ctx, person.ID, faceIDs); err != nil {
			return created, fmt.Errorf("assign faces: %w", err)
		}
		created++
	}

	if created > 0 {
		observability.ClustersCreated.WithLabelValues("person").Add(float64(created))
	}
	slog.Info("face clustering complete", "user_id", userID, "persons_created", created)
	return created, nil
}

// groupByLabel collects member indices per cluster, skipping noise, in
// cluster-id order.
func groupByLabel(labels []int) [][]int {
	maxLabel := -1
	for _, l := range labels {
		if l > maxLabel {
			maxLabel = l
		}
	}
	groups := make([][]int, maxLabel+1)
	for i, l := range labels {
		if l == Noise {
			continue
		}
		groups[l] = append(groups[l], i)
	}
	return groups
}

// shortHex returns the first n hex characters of a fresh random uuid,
// used to make auto-generated names unique.
func shortHex(n int) string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:n]
}
