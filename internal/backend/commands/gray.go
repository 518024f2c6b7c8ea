package commands

import (
	"image"
	"image/draw"
)

// ToGray converts any decoded image into an origin-anchored 8-bit luma image.
// The conversion uses the ITU-R 601 weights of color.GrayModel.
func ToGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	if g, ok := img.(*image.Gray); ok && bounds.Min == (image.Point{}) && g.Stride == bounds.Dx() {
		return g
	}
	dst := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}

// CropGray copies the rectangle r (in img coordinates) into a new origin-anchored image
func CropGray(img *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Intersect(img.Bounds())
	dst := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		srcStart := img.PixOffset(r.Min.X, r.Min.Y+y)
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+r.Dx()], img.Pix[srcStart:srcStart+r.Dx()])
	}
	return dst
}

func cloneGray(img *image.Gray) *image.Gray {
	return CropGray(img, img.Bounds())
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampUint8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
