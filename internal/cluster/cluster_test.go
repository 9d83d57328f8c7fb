package cluster

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/photobomb/internal/models"
)

type fakeClusterStore struct {
	faces      []models.Face
	detections []models.AnimalDetection
	persons    []*models.Person
	animals    []*models.Animal
	assigned   map[uuid.UUID]uuid.UUID // face/detection id -> owner id
	resets     int
}

func newFakeClusterStore() *fakeClusterStore {
	return &fakeClusterStore{assigned: make(map[uuid.UUID]uuid.UUID)}
}

func (f *fakeClusterStore) UnassignedFaces(context.Context, uuid.UUID) ([]models.Face, error) {
	return f.faces, nil
}

func (f *fakeClusterStore) CreatePerson(_ context.Context, p *models.Person) error {
	f.persons = append(f.persons, p)
	return nil
}

func (f *fakeClusterStore) AssignFaces(_ context.Context, personID uuid.UUID, faceIDs []uuid.UUID) error {
	for _, id := range faceIDs {
		f.assigned[id] = personID
	}
	return nil
}

func (f *fakeClusterStore) UnassignedAnimalDetections(context.Context, uuid.UUID) ([]models.AnimalDetection, error) {
	return f.detections, nil
}

func (f *fakeClusterStore) CreateAnimal(_ context.Context, a *models.Animal) error {
	f.animals = append(f.animals, a)
	return nil
}

func (f *fakeClusterStore) AssignAnimalDetections(_ context.Context, animalID uuid.UUID, detIDs []uuid.UUID) error {
	for _, id := range detIDs {
		f.assigned[id] = animalID
	}
	return nil
}

func (f *fakeClusterStore) ResetAutoNamedAnimals(context.Context, uuid.UUID) (int64, error) {
	f.resets++
	return 0, nil
}

func face(emb ...float32) models.Face {
	return models.Face{ID: uuid.New(), Embedding: emb}
}

func detection(label string, emb ...float32) models.AnimalDetection {
	return models.AnimalDetection{ID: uuid.New(), Label: label, Embedding: emb}
}

func TestClusterFacesCreatesPersons(t *testing.T) {
	store := newFakeClusterStore()
	// Two groups of three plus a singleton outlier.
	store.faces = []models.Face{
		face(0, 0), face(0.1, 0), face(0, 0.1),
		face(5, 5), face(5.1, 5), face(5, 5.1),
		face(50, 50),
	}

	created, err := ClusterFaces(context.Background(), store, uuid.New(), FaceParams{Eps: 0.5, MinSamples: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	require.Len(t, store.persons, 2)

	for _, p := range store.persons {
		assert.True(t, strings.HasPrefix(p.Name, "Person "), "name %q", p.Name)
		require.NotNil(t, p.CoverFaceID)
		assert.Equal(t, p.ID, store.assigned[*p.CoverFaceID], "cover face belongs to its person")
	}

	// Outlier stays unassigned.
	_, ok := store.assigned[store.faces[6].ID]
	assert.False(t, ok)
	assert.Len(t, store.assigned, 6)
}

func TestClusterFacesNothingToDo(t *testing.T) {
	store := newFakeClusterStore()
	created, err := ClusterFaces(context.Background(), store, uuid.New(), FaceParams{Eps: 0.5, MinSamples: 3})
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Empty(t, store.persons)
}

func TestClusterAnimalsNeverMixesLabels(t *testing.T) {
	store := newFakeClusterStore()
	// Cats and dogs share the same embedding space region, but the label
	// partition must keep them apart.
	store.detections = []models.AnimalDetection{
		detection("cat", 0, 0), detection("cat", 0.1, 0),
		detection("dog", 0, 0.1), detection("dog", 0.1, 0.1),
	}

	created, err := ClusterAnimals(context.Background(), store, uuid.New(), AnimalParams{Eps: 0.52, MinSamples: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	require.Len(t, store.animals, 2)

	catOwner := store.assigned[store.detections[0].ID]
	dogOwner := store.assigned[store.detections[2].ID]
	assert.NotEqual(t, catOwner, dogOwner)

	names := []string{store.animals[0].Name, store.animals[1].Name}
	joined := strings.Join(names, " ")
	assert.Contains(t, joined, "Unnamed Cat (")
	assert.Contains(t, joined, "Unnamed Dog (")
}

func TestClusterAnimalsSkipsSmallGroups(t *testing.T) {
	store := newFakeClusterStore()
	store.detections = []models.AnimalDetection{detection("horse", 1, 1)}

	created, err := ClusterAnimals(context.Background(), store, uuid.New(), AnimalParams{Eps: 0.52, MinSamples: 2})
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestClusterAnimalsForceReset(t *testing.T) {
	store := newFakeClusterStore()

	_, err := ClusterAnimals(context.Background(), store, uuid.New(), AnimalParams{Eps: 0.52, MinSamples: 2, ForceReset: true})
	require.NoError(t, err)
	assert.Equal(t, 1, store.resets)

	_, err = ClusterAnimals(context.Background(), store, uuid.New(), AnimalParams{Eps: 0.52, MinSamples: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, store.resets, "reset only runs when forced")
}
