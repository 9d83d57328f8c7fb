package vision

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// AnimalDetection is one animal found in an image.
type AnimalDetection struct {
	BBox       [4]float32 // x1, y1, x2, y2 in original pixel coordinates
	Label      string
	Confidence float32
}

// animalLabels lists the COCO classes kept as pets/wildlife. Everything
// else a general-purpose detector reports is ignored.
var animalLabels = map[string]bool{
	"cat": true, "dog": true, "horse": true, "sheep": true, "cow": true,
	"elephant": true, "bear": true, "zebra": true, "giraffe": true, "bird": true,
}

// cocoClasses maps DETR class indices to names. Index 0 and the gaps are
// unused slots in the 91-class COCO labeling.
var cocoClasses = map[int]string{
	1: "person", 2: "bicycle", 3: "car", 4: "motorcycle", 5: "airplane",
	6: "bus", 7: "train", 8: "truck", 9: "boat", 10: "traffic light",
	11: "fire hydrant", 13: "stop sign", 14: "parking meter", 15: "bench",
	16: "bird", 17: "cat", 18: "dog", 19: "horse", 20: "sheep",
	21: "cow", 22: "elephant", 23: "bear", 24: "zebra", 25: "giraffe",
	27: "backpack", 28: "umbrella", 31: "handbag", 32: "tie", 33: "suitcase",
	34: "frisbee", 35: "skis", 36: "snowboard", 37: "sports ball", 38: "kite",
	39: "baseball bat", 40: "baseball glove", 41: "skateboard", 42: "surfboard",
	43: "tennis racket", 44: "bottle", 46: "wine glass", 47: "cup",
	48: "fork", 49: "knife", 50: "spoon", 51: "bowl", 52: "banana",
	53: "apple", 54: "sandwich", 55: "orange", 56: "broccoli", 57: "carrot",
	58: "hot dog", 59: "pizza", 60: "donut", 61: "cake", 62: "chair",
	63: "couch", 64: "potted plant", 65: "bed", 67: "dining table",
	70: "toilet", 72: "tv", 73: "laptop", 74: "mouse", 75: "remote",
	76: "keyboard", 77: "cell phone", 78: "microwave", 79: "oven",
	80: "toaster", 81: "sink", 82: "refrigerator", 84: "book", 85: "clock",
	86: "vase", 87: "scissors", 88: "toothbrush",
}

const (
	detrQueries = 100
	detrClasses = 92 // 91 COCO slots + no-object
	detrInputW  = 800
	detrInputH  = 800
)

// AnimalDetector wraps a DETR object detection export, filtered down to
// animal classes. Safe for concurrent use: mu serializes runs over the
// pre-bound tensors.
type AnimalDetector struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	logitsTensor *ort.Tensor[float32]
	boxesTensor  *ort.Tensor[float32]
	threshold    float32
}

// NewAnimalDetector loads the DETR ONNX model.
func NewAnimalDetector(modelPath string, threshold float32, opts *ort.SessionOptions) (*AnimalDetector, error) {
	inputShape := ort.NewShape(1, 3, detrInputH, detrInputW)
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	logitsTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, detrQueries, detrClasses))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create logits tensor: %w", err)
	}

	boxesTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, detrQueries, 4))
	if err != nil {
		inputTensor.Destroy()
		logitsTensor.Destroy()
		return nil, fmt.Errorf("create boxes tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"pixel_values"},
		[]string{"logits", "pred_boxes"},
		[]ort.Value{inputTensor},
		[]ort.Value{logitsTensor, boxesTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		logitsTensor.Destroy()
		boxesTensor.Destroy()
		return nil, fmt.Errorf("create animal detector session: %w", err)
	}

	return &AnimalDetector{
		session:      session,
		inputTensor:  inputTensor,
		logitsTensor: logitsTensor,
		boxesTensor:  boxesTensor,
		threshold:    threshold,
	}, nil
}

// Detect runs animal detection on a preprocessed image.
// imgData should be CHW format [3, 800, 800], CLIP-style normalized.
// origW/origH scale the normalized boxes back to original pixels.
func (d *AnimalDetector) Detect(imgData []float32, origW, origH int) ([]AnimalDetection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	inputSlice := d.inputTensor.GetData()
	copy(inputSlice, imgData)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run animal detection: %w", err)
	}

	logits := d.logitsTensor.GetData() // [100, 92]
	boxes := d.boxesTensor.GetData()   // [100, 4] cx, cy, w, h normalized

	var detections []AnimalDetection
	for q := 0; q < detrQueries; q++ {
		probs := Softmax(logits[q*detrClasses : (q+1)*detrClasses])

		// Best class excluding the trailing no-object slot.
		best, bestScore := 0, float32(0)
		for c := 0; c < detrClasses-1; c++ {
			if probs[c] > bestScore {
				best, bestScore = c, probs[c]
			}
		}
		if bestScore < d.threshold {
			continue
		}
		label, ok := cocoClasses[best]
		if !ok || !animalLabels[label] {
			continue
		}

		cx := boxes[q*4+0] * float32(origW)
		cy := boxes[q*4+1] * float32(origH)
		bw := boxes[q*4+2] * float32(origW)
		bh := boxes[q*4+3] * float32(origH)

		detections = append(detections, AnimalDetection{
			BBox: [4]float32{
				clampF(cx-bw/2, 0, float32(origW)),
				clampF(cy-bh/2, 0, float32(origH)),
				clampF(cx+bw/2, 0, float32(origW)),
				clampF(cy+bh/2, 0, float32(origH)),
			},
			Label:      label,
			Confidence: bestScore,
		})
	}
	return detections, nil
}

// InputSize returns the model's expected input dimensions.
func (d *AnimalDetector) InputSize() (int, int) {
	return detrInputW, detrInputH
}

func (d *AnimalDetector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	if d.logitsTensor != nil {
		d.logitsTensor.Destroy()
	}
	if d.boxesTensor != nil {
		d.boxesTensor.Destroy()
	}
}
