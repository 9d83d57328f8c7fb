package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/your-org/photobomb/internal/models"
)

func TestThumbnailDownscalesLongestSide(t *testing.T) {
	tests := []struct {
		name       string
		w, h, max  int
		wantW      int
		wantH      int
	}{
		{"landscape", 400, 200, 100, 100, 50},
		{"portrait", 200, 400, 100, 50, 100},
		{"square", 300, 300, 256, 256, 256},
		{"already small", 100, 80, 256, 100, 80},
		{"extreme aspect", 1000, 2, 100, 100, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			img := image.NewRGBA(image.Rect(0, 0, tc.w, tc.h))
			out := Thumbnail(img, tc.max)
			b := out.Bounds()
			if b.Dx() != tc.wantW || b.Dy() != tc.wantH {
				t.Errorf("Thumbnail(%dx%d, %d) = %dx%d; want %dx%d",
					tc.w, tc.h, tc.max, b.Dx(), b.Dy(), tc.wantW, tc.wantH)
			}
		})
	}
}

func TestApplyOrientationDimensions(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))

	for _, o := range []int{1, 2, 3, 4} {
		out := ApplyOrientation(img, o)
		if out.Bounds().Dx() != 40 || out.Bounds().Dy() != 20 {
			t.Errorf("orientation %d should keep 40x20, got %dx%d",
				o, out.Bounds().Dx(), out.Bounds().Dy())
		}
	}
	for _, o := range []int{5, 6, 7, 8} {
		out := ApplyOrientation(img, o)
		if out.Bounds().Dx() != 20 || out.Bounds().Dy() != 40 {
			t.Errorf("orientation %d should swap to 20x40, got %dx%d",
				o, out.Bounds().Dx(), out.Bounds().Dy())
		}
	}
}

func TestApplyOrientationRotate90(t *testing.T) {
	// Single red pixel at the top-left corner; after a 90 CW rotation it
	// should land at the top-right.
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	red := color.RGBA{255, 0, 0, 255}
	img.Set(0, 0, red)

	out := ApplyOrientation(img, 6)
	r, _, _, _ := out.At(out.Bounds().Dx()-1, 0).RGBA()
	if r>>8 != 255 {
		t.Error("rotated pixel not at expected position")
	}
}

func TestEncodeJPEGRoundTrip(t *testing.T) {
	img := gradientImage(64, 48)

	data, err := EncodeJPEG(img, 90)
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}

	decoded, format, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %s; want jpeg", format)
	}
	if decoded.Bounds().Dx() != 64 || decoded.Bounds().Dy() != 48 {
		t.Errorf("decoded size = %dx%d; want 64x48",
			decoded.Bounds().Dx(), decoded.Bounds().Dy())
	}
}

func TestDecodeInvalid(t *testing.T) {
	if _, _, err := Decode([]byte("not an image")); err == nil {
		t.Error("Decode should fail on garbage input")
	}
}

func TestPadCropClampsToBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	box := models.BBox{Top: 0, Right: 30, Bottom: 30, Left: 0}

	crop := PadCrop(img, box, 0.5)
	b := crop.Bounds()
	// Padding extends 15px per side but the top-left corner is clamped.
	if b.Dx() != 45 || b.Dy() != 45 {
		t.Errorf("crop size = %dx%d; want 45x45", b.Dx(), b.Dy())
	}
}

func TestSquareResize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 333, 111))
	out := SquareResize(img, 160)
	if out.Bounds().Dx() != 160 || out.Bounds().Dy() != 160 {
		t.Errorf("SquareResize = %dx%d; want 160x160", out.Bounds().Dx(), out.Bounds().Dy())
	}
}
