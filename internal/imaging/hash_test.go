package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestSHA256Hex(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"empty", []byte{}, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", []byte("abc"), "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SHA256Hex(tc.data); got != tc.expected {
				t.Errorf("SHA256Hex(%q) = %s; want %s", tc.data, got, tc.expected)
			}
		})
	}
}

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		name     string
		a        int64
		b        int64
		expected int
	}{
		{"identical", 0, 0, 0},
		{"one bit", 1, 0, 1},
		{"four bits", 0xF, 0, 4},
		{"sign bit", -0x8000000000000000, 0, 1},
		{"all bits", -1, 0, 64},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := HammingDistance(tc.a, tc.b); got != tc.expected {
				t.Errorf("HammingDistance(%x, %x) = %d; want %d", tc.a, tc.b, got, tc.expected)
			}
		})
	}
}

func TestPerceptualHashConsistency(t *testing.T) {
	img := gradientImage(100, 100)

	h1 := PerceptualHash(img)
	h2 := PerceptualHash(img)
	if h1 != h2 {
		t.Errorf("hash not stable: %x vs %x", h1, h2)
	}
	if h1 == 0 {
		t.Error("gradient image should produce a non-zero hash")
	}
}

func TestPerceptualHashDistinguishesOrientation(t *testing.T) {
	// A horizontal and a vertical gradient have different frequency
	// signatures, so their hashes must differ.
	horizontal := image.NewRGBA(image.Rect(0, 0, 64, 64))
	vertical := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		for y := 0; y < 64; y++ {
			horizontal.Set(x, y, color.Gray{Y: uint8(x * 4)})
			vertical.Set(x, y, color.Gray{Y: uint8(y * 4)})
		}
	}

	if PerceptualHash(horizontal) == PerceptualHash(vertical) {
		t.Error("transposed gradients should not collide")
	}
}

func gradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			gray := uint8((x + y) * 255 / (width + height))
			img.Set(x, y, color.RGBA{gray, gray, gray, 255})
		}
	}
	return img
}
