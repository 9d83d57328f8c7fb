package tagger

import "github.com/your-org/photobomb/internal/models"

// sceneCategories maps each scene-pass label to its fixed tag category.
// Labels outside the map fall back to general.
var sceneCategories = map[string]string{
	"person": models.CategoryPeople, "man": models.CategoryPeople,
	"woman": models.CategoryPeople, "human": models.CategoryPeople,
	"child": models.CategoryPeople, "group of people": models.CategoryPeople,
	"selfie": models.CategoryPeople, "crowd": models.CategoryPeople,

	"animal": models.CategoryAnimals, "dog": models.CategoryAnimals,
	"cat": models.CategoryAnimals, "bird": models.CategoryAnimals,
	"wildlife": models.CategoryAnimals, "pet": models.CategoryAnimals,
	"horse": models.CategoryAnimals,

	"document": models.CategoryDocuments, "receipt": models.CategoryDocuments,
	"invoice": models.CategoryDocuments, "text": models.CategoryDocuments,
	"paper": models.CategoryDocuments, "screenshot": models.CategoryDocuments,
	"computer screen": models.CategoryDocuments, "interface": models.CategoryDocuments,
	"software": models.CategoryDocuments,

	"nature": models.CategoryNature, "beach": models.CategoryNature,
	"mountain": models.CategoryNature, "forest": models.CategoryNature,
	"sunset": models.CategoryNature, "sky": models.CategoryNature,
	"tree": models.CategoryNature, "flower": models.CategoryNature,
	"outdoor": models.CategoryNature,

	"city": models.CategoryPlaces, "building": models.CategoryPlaces,
	"architecture": models.CategoryPlaces, "street": models.CategoryPlaces,
	"house": models.CategoryPlaces, "landmark": models.CategoryPlaces,
	"room": models.CategoryPlaces, "indoor": models.CategoryPlaces,
}

// SceneCategory returns the fixed category for a scene label.
func SceneCategory(label string) string {
	if cat, ok := sceneCategories[label]; ok {
		return cat
	}
	return models.CategoryGeneral
}

// hasDocumentTag reports whether any scene result maps to the documents
// category, which gates the granular document pass.
func hasDocumentTag(scores []LabelScore) bool {
	for _, s := range scores {
		if SceneCategory(s.Label) == models.CategoryDocuments {
			return true
		}
	}
	return false
}
