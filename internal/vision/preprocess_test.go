package vision

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float32
		delta    float32
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0, 0.001},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1.0, 0.001},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0.0, 0.001},
		{"similar", []float32{1, 1, 0}, []float32{1, 0, 0}, 0.707, 0.01},
		{"empty", []float32{}, []float32{}, 0.0, 0.001},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0.0, 0.001},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 0, 0}, 0.0, 0.001},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineSimilarity(tc.a, tc.b)
			if got < tc.expected-tc.delta || got > tc.expected+tc.delta {
				t.Errorf("CosineSimilarity(%v, %v) = %f; want %f", tc.a, tc.b, got, tc.expected)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	if math.Abs(float64(v[0])-0.6) > 0.001 || math.Abs(float64(v[1])-0.8) > 0.001 {
		t.Errorf("Normalize([3 4]) = %v; want [0.6 0.8]", v)
	}

	zero := []float32{0, 0}
	Normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("Normalize of zero vector changed it: %v", zero)
	}
}

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float32{1, 1, 1, 1})
	var sum float32
	for _, p := range probs {
		if math.Abs(float64(p)-0.25) > 0.001 {
			t.Errorf("uniform logits should give 0.25, got %f", p)
		}
		sum += p
	}
	if math.Abs(float64(sum)-1) > 0.001 {
		t.Errorf("probabilities sum to %f; want 1", sum)
	}

	peaked := Softmax([]float32{10, 0, 0})
	if peaked[0] < 0.99 {
		t.Errorf("dominant logit should take nearly all mass, got %f", peaked[0])
	}

	if Softmax(nil) != nil {
		t.Error("Softmax(nil) should be nil")
	}
}

func TestIOU(t *testing.T) {
	tests := []struct {
		name     string
		a        [4]float32
		b        [4]float32
		expected float32
		delta    float32
	}{
		{"identical", [4]float32{0, 0, 10, 10}, [4]float32{0, 0, 10, 10}, 1.0, 0.001},
		{"disjoint", [4]float32{0, 0, 10, 10}, [4]float32{20, 20, 30, 30}, 0.0, 0.001},
		{"half overlap", [4]float32{0, 0, 10, 10}, [4]float32{0, 5, 10, 15}, 1.0 / 3.0, 0.001},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := iou(tc.a, tc.b)
			if got < tc.expected-tc.delta || got > tc.expected+tc.delta {
				t.Errorf("iou(%v, %v) = %f; want %f", tc.a, tc.b, got, tc.expected)
			}
		})
	}
}

func TestNMSSuppressesOverlaps(t *testing.T) {
	dets := []Detection{
		{BBox: [4]float32{0, 0, 10, 10}, Confidence: 0.9},
		{BBox: [4]float32{1, 1, 11, 11}, Confidence: 0.8}, // overlaps first
		{BBox: [4]float32{50, 50, 60, 60}, Confidence: 0.7},
	}

	kept := nms(dets, 0.4)
	if len(kept) != 2 {
		t.Fatalf("nms kept %d detections; want 2", len(kept))
	}
	if kept[0].Confidence != 0.9 {
		t.Errorf("highest confidence should survive, got %f", kept[0].Confidence)
	}
}

func TestImageToCHWLayout(t *testing.T) {
	// Pure red image: after (p-0)/1 normalization the R plane is 255 and
	// G/B planes are 0.
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}

	data := imageToFloat32CHW(img, 4, 4, [3]float32{0, 0, 0}, [3]float32{1, 1, 1})
	if len(data) != 3*4*4 {
		t.Fatalf("len = %d; want %d", len(data), 3*4*4)
	}
	if data[0] != 255 {
		t.Errorf("R plane = %f; want 255", data[0])
	}
	if data[16] != 0 || data[32] != 0 {
		t.Errorf("G/B planes should be 0, got %f %f", data[16], data[32])
	}
}
