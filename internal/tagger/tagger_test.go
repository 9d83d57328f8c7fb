package tagger

import (
	"context"
	"image"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/photobomb/internal/config"
	"github.com/your-org/photobomb/internal/models"
)

func TestSelectAboveThreshold(t *testing.T) {
	scores := []LabelScore{
		{Label: "beach", Score: 0.6},
		{Label: "sunset", Score: 0.45},
		{Label: "dog", Score: 0.1},
	}

	kept := selectAboveThreshold(scores, 0.4, 0.25)
	require.Len(t, kept, 2)
	assert.Equal(t, "beach", kept[0].Label)
	assert.Equal(t, "sunset", kept[1].Label)
}

func TestSelectAboveThresholdFallback(t *testing.T) {
	scores := []LabelScore{
		{Label: "receipt", Score: 0.3},
		{Label: "paper", Score: 0.2},
	}

	// Nothing clears 0.4 but the best guess clears the floor.
	kept := selectAboveThreshold(scores, 0.4, 0.25)
	require.Len(t, kept, 1)
	assert.Equal(t, "receipt", kept[0].Label)

	// Best guess under the floor keeps nothing.
	kept = selectAboveThreshold(scores, 0.4, 0.35)
	assert.Empty(t, kept)
}

func TestRankLabels(t *testing.T) {
	imgEmb := []float32{1, 0, 0}
	entries := []LabelEntry{
		{Label: "far", Embedding: []float32{0, 1, 0}},
		{Label: "near", Embedding: []float32{1, 0, 0}},
	}

	scores := rankLabels(imgEmb, entries)
	require.Len(t, scores, 2)
	assert.Equal(t, "near", scores[0].Label)
	assert.Greater(t, scores[0].Score, scores[1].Score)
	assert.InDelta(t, 1.0, float64(scores[0].Score+scores[1].Score), 0.001)
}

func TestSceneCategory(t *testing.T) {
	assert.Equal(t, models.CategoryPeople, SceneCategory("selfie"))
	assert.Equal(t, models.CategoryAnimals, SceneCategory("wildlife"))
	assert.Equal(t, models.CategoryDocuments, SceneCategory("screenshot"))
	assert.Equal(t, models.CategoryNature, SceneCategory("sunset"))
	assert.Equal(t, models.CategoryPlaces, SceneCategory("landmark"))
	assert.Equal(t, models.CategoryGeneral, SceneCategory("food"))
}

func TestDocumentTagName(t *testing.T) {
	assert.Equal(t, "driverslicense", documentTagName("Drivers License"))
	assert.Equal(t, "passport", documentTagName("passport"))
}

func TestTokenizeText(t *testing.T) {
	text := "Total 1234 EUR\n paid PAID via card-7 twice total"
	tokens := TokenizeText(text)
	// "EUR" is too short, "card-7" is not alphanumeric, "paid" and
	// "total" appear once despite case and repetition.
	assert.Equal(t, []string{"total", "1234", "paid", "twice"}, tokens)
}

type fakeTagStore struct {
	tags  map[string]uuid.UUID
	cats  map[string]string
	links map[uuid.UUID][]models.PhotoTag
}

func newFakeTagStore() *fakeTagStore {
	return &fakeTagStore{
		tags:  make(map[string]uuid.UUID),
		cats:  make(map[string]string),
		links: make(map[uuid.UUID][]models.PhotoTag),
	}
}

func (f *fakeTagStore) UpsertTag(_ context.Context, name, category string) (uuid.UUID, error) {
	if id, ok := f.tags[name]; ok {
		if f.cats[name] == models.CategoryGeneral || f.cats[name] == "" {
			f.cats[name] = category
		}
		return id, nil
	}
	id := uuid.New()
	f.tags[name] = id
	f.cats[name] = category
	return id, nil
}

func (f *fakeTagStore) LinkPhotoTag(_ context.Context, pt *models.PhotoTag) (bool, error) {
	for _, existing := range f.links[pt.PhotoID] {
		if existing.TagID == pt.TagID {
			return false, nil
		}
	}
	f.links[pt.PhotoID] = append(f.links[pt.PhotoID], *pt)
	return true, nil
}

type fakeEncoder struct {
	embedding []float32
}

func (f *fakeEncoder) Encode([]float32) ([]float32, error) { return f.embedding, nil }
func (f *fakeEncoder) InputSize() (int, int)               { return 4, 4 }

func TestTagPhotoScenePass(t *testing.T) {
	// One label aligned with the image embedding, one orthogonal. Softmax
	// over 100x cosine gives the aligned label essentially all the mass.
	bank := &LabelBank{
		Scene: []LabelEntry{
			{Label: "beach", Embedding: []float32{1, 0}},
			{Label: "dog", Embedding: []float32{0, 1}},
		},
	}
	enc := &fakeEncoder{embedding: []float32{1, 0}}
	cfg := config.VisionConfig{SceneThreshold: 0.4, SceneFloor: 0.25, DocumentThreshold: 0.3, DocumentFloor: 0.15}

	tg := New(bank, enc, NewOCR(config.OCRConfig{}), cfg)
	store := newFakeTagStore()

	res, err := tg.TagPhoto(context.Background(), store, uuid.New(), image.NewRGBA(image.Rect(0, 0, 4, 4)), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TagsCreated)
	assert.Contains(t, store.tags, "beach")
	assert.NotContains(t, store.tags, "dog")
	assert.Equal(t, models.CategoryNature, store.cats["beach"])
}

func TestTagPhotoDocumentPassGated(t *testing.T) {
	bank := &LabelBank{
		Scene: []LabelEntry{
			{Label: "receipt", Embedding: []float32{1, 0}},
			{Label: "beach", Embedding: []float32{0, 1}},
		},
		Document: []LabelEntry{
			{Label: "restaurant receipt", Embedding: []float32{1, 0}},
			{Label: "passport", Embedding: []float32{0, 1}},
		},
	}
	enc := &fakeEncoder{embedding: []float32{1, 0}}
	cfg := config.VisionConfig{SceneThreshold: 0.4, SceneFloor: 0.25, DocumentThreshold: 0.3, DocumentFloor: 0.15}

	tg := New(bank, enc, NewOCR(config.OCRConfig{}), cfg)
	store := newFakeTagStore()

	res, err := tg.TagPhoto(context.Background(), store, uuid.New(), image.NewRGBA(image.Rect(0, 0, 4, 4)), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TagsCreated)
	assert.Contains(t, store.tags, "restaurantreceipt")
	assert.Equal(t, models.CategoryDocuments, store.cats["restaurantreceipt"])
}

func TestTagAnimalLabel(t *testing.T) {
	tg := New(&LabelBank{Scene: []LabelEntry{{Label: "x", Embedding: []float32{1}}}}, &fakeEncoder{}, nil, config.VisionConfig{})
	store := newFakeTagStore()
	photoID := uuid.New()

	created, err := tg.TagAnimalLabel(context.Background(), store, photoID, "dog", 0.9)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.CategoryAnimals, store.cats["dog"])

	// Linking again is a no-op.
	created, err = tg.TagAnimalLabel(context.Background(), store, photoID, "dog", 0.9)
	require.NoError(t, err)
	assert.False(t, created)
}
