package tagger

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/your-org/photobomb/internal/vision"
)

// LabelEntry pairs a candidate label with its precomputed CLIP text
// embedding. Embeddings are produced offline by the text tower so the
// worker only ships the image encoder.
type LabelEntry struct {
	Label     string    `json:"label"`
	Embedding []float32 `json:"embedding"`
}

// LabelBank holds the candidate vocabularies for the zero-shot passes.
type LabelBank struct {
	Scene    []LabelEntry `json:"scene"`
	Document []LabelEntry `json:"document"`
}

// LoadLabelBank reads the label embedding file.
func LoadLabelBank(path string) (*LabelBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label bank: %w", err)
	}
	var bank LabelBank
	if err := json.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("parse label bank: %w", err)
	}
	if len(bank.Scene) == 0 {
		return nil, fmt.Errorf("label bank has no scene labels")
	}
	return &bank, nil
}

// LabelScore is one ranked zero-shot result.
type LabelScore struct {
	Label string
	Score float32
}

// rankLabels scores an image embedding against every candidate label the
// CLIP way: softmax over cosine similarities scaled by 100 (the model's
// logit scale), sorted descending.
func rankLabels(imageEmb []float32, entries []LabelEntry) []LabelScore {
	if len(entries) == 0 {
		return nil
	}
	logits := make([]float32, len(entries))
	for i, e := range entries {
		logits[i] = 100 * vision.CosineSimilarity(imageEmb, e.Embedding)
	}
	probs := vision.Softmax(logits)

	scores := make([]LabelScore, len(entries))
	for i, e := range entries {
		scores[i] = LabelScore{Label: e.Label, Score: probs[i]}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores
}

// selectAboveThreshold keeps results over threshold; when none qualify but
// the best guess clears floor, only the best guess is kept.
func selectAboveThreshold(scores []LabelScore, threshold, floor float32) []LabelScore {
	var kept []LabelScore
	for _, s := range scores {
		if s.Score > threshold {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 && len(scores) > 0 && scores[0].Score > floor {
		kept = []LabelScore{scores[0]}
	}
	return kept
}
