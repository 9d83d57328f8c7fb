package vision

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ImageEncoder turns a preprocessed image crop into an L2-normalized
// embedding. The same session wrapper drives both the ArcFace face model
// and the CLIP image tower; only shapes and tensor names differ.
// Safe for concurrent use: mu serializes runs over the pre-bound tensors.
type ImageEncoder struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputW       int
	inputH       int
	embDim       int
}

// EncoderSpec describes one ONNX embedding model.
type EncoderSpec struct {
	InputName    string
	OutputName   string
	InputSize    int
	EmbeddingDim int
}

// FaceEncoderSpec matches the ArcFace w600k_r50 export.
func FaceEncoderSpec() EncoderSpec {
	return EncoderSpec{InputName: "input.1", OutputName: "683", InputSize: 112, EmbeddingDim: 512}
}

// CLIPEncoderSpec matches the CLIP ViT-B/32 image tower export.
func CLIPEncoderSpec() EncoderSpec {
	return EncoderSpec{InputName: "pixel_values", OutputName: "image_embeds", InputSize: 224, EmbeddingDim: 512}
}

// NewImageEncoder loads an embedding model per its spec.
func NewImageEncoder(modelPath string, spec EncoderSpec, opts *ort.SessionOptions) (*ImageEncoder, error) {
	inputShape := ort.NewShape(1, 3, int64(spec.InputSize), int64(spec.InputSize))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(spec.EmbeddingDim))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{spec.InputName},
		[]string{spec.OutputName},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create encoder session: %w", err)
	}

	return &ImageEncoder{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       spec.InputSize,
		inputH:       spec.InputSize,
		embDim:       spec.EmbeddingDim,
	}, nil
}

// Encode runs the model on a preprocessed crop.
// data should be CHW format [3, inputH, inputW], normalized.
// Returns an L2-normalized embedding vector.
func (e *ImageEncoder) Encode(data []float32) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inputSlice := e.inputTensor.GetData()
	copy(inputSlice, data)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("run encoder: %w", err)
	}

	outputData := e.outputTensor.GetData()

	embedding := make([]float32, e.embDim)
	copy(embedding, outputData)

	Normalize(embedding)
	return embedding, nil
}

// InputSize returns the expected crop dimensions.
func (e *ImageEncoder) InputSize() (int, int) {
	return e.inputW, e.inputH
}

// EmbeddingDim returns the embedding vector dimension.
func (e *ImageEncoder) EmbeddingDim() int {
	return e.embDim
}

func (e *ImageEncoder) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
	if e.inputTensor != nil {
		e.inputTensor.Destroy()
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
	}
}
