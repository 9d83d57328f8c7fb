package imaging

import (
	"image"

	"github.com/your-org/photobomb/internal/models"
)

// PadCrop extracts a bounding box with extra margin around it, clamped to
// the image edges. padding is a fraction of the box size per side.
func PadCrop(img image.Image, box models.BBox, padding float64) image.Image {
	bounds := img.Bounds()

	padX := int(float64(box.Width()) * padding)
	padY := int(float64(box.Height()) * padding)

	left := box.Left - padX
	top := box.Top - padY
	right := box.Right + padX
	bottom := box.Bottom + padY

	if left < bounds.Min.X {
		left = bounds.Min.X
	}
	if top < bounds.Min.Y {
		top = bounds.Min.Y
	}
	if right > bounds.Max.X {
		right = bounds.Max.X
	}
	if bottom > bounds.Max.Y {
		bottom = bounds.Max.Y
	}
	if right <= left || bottom <= top {
		return img
	}

	crop := image.NewRGBA(image.Rect(0, 0, right-left, bottom-top))
	for y := top; y < bottom; y++ {
		for x := left; x < right; x++ {
			crop.Set(x-left, y-top, img.At(x, y))
		}
	}
	return crop
}

// SquareResize scales the image to size x size, ignoring aspect ratio.
// Model inputs expect exact square dimensions.
func SquareResize(img image.Image, size int) *image.RGBA {
	return scaleTo(img, size, size)
}
