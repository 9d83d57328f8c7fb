package tagger

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/your-org/photobomb/internal/config"
)

// OCR shells out to tesseract. Running the binary per image keeps the
// worker free of cgo bindings while matching tesseract's own quality.
type OCR struct {
	binary  string
	enabled bool
}

func NewOCR(cfg config.OCRConfig) *OCR {
	return &OCR{binary: cfg.Binary, enabled: cfg.Enabled}
}

func (o *OCR) Enabled() bool {
	return o.enabled
}

// ExtractText runs OCR on image bytes and returns the raw recognized text.
func (o *OCR) ExtractText(ctx context.Context, imageData []byte) (string, error) {
	if !o.enabled {
		return "", nil
	}

	tmp, err := os.CreateTemp("", "ocr-*.img")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(imageData); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	// "stdout" makes tesseract print instead of writing a .txt file.
	cmd := exec.CommandContext(ctx, o.binary, tmp.Name(), "stdout")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("run %s: %w", o.binary, err)
	}
	return string(out), nil
}

// TokenizeText splits OCR output into searchable tokens: whitespace-split,
// alphanumeric only, longer than 3 characters, lower-cased and
// deduplicated preserving first-seen order.
func TokenizeText(text string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, word := range strings.Fields(text) {
		word = strings.ToLower(word)
		if len(word) <= 3 || !isAlnum(word) {
			continue
		}
		if seen[word] {
			continue
		}
		seen[word] = true
		tokens = append(tokens, word)
	}
	return tokens
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
