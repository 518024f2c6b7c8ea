package plate

import (
	"errors"
	"image"
	"strings"
	"unicode"
)

// MinTextLength is the shortest normalized text accepted as a plate reading
const MinTextLength = 4

var (
	// ErrNoPlateDetected is returned when no plate-like region survives detection
	ErrNoPlateDetected = errors.New("no plate detected")
	// ErrNoText is returned when the recognition engine produced nothing usable
	ErrNoText = errors.New("no text recognized")
	// ErrTooShort is returned when the normalized text is shorter than MinTextLength
	ErrTooShort = errors.New("recognized text too short")
	// ErrEngineFailure wraps failures of the recognition engine itself
	ErrEngineFailure = errors.New("recognition engine failure")
)

// Rect is an axis-aligned box in pixel coordinates; X2 and Y2 are exclusive.
type Rect struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the horizontal extent of the box
func (r Rect) Width() int {
	return r.X2 - r.X1
}

// Height returns the vertical extent of the box
func (r Rect) Height() int {
	return r.Y2 - r.Y1
}

// Area returns the box area, zero for degenerate boxes
func (r Rect) Area() int {
	if r.X2 <= r.X1 || r.Y2 <= r.Y1 {
		return 0
	}
	return r.Width() * r.Height()
}

// Rectangle converts the box into an image.Rectangle
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// RectFrom converts an image.Rectangle into a Rect
func RectFrom(r image.Rectangle) Rect {
	return Rect{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// Region is a located plate: its padded box in the source image and the cropped
// preprocessed pixels.
type Region struct {
	Box   Rect
	Image *image.Gray
}

// Recognized is the normalized result of reading a plate region
type Recognized struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Normalize keeps ASCII letters and digits and upper-cases them.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r > unicode.MaxASCII {
			continue
		}
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(unicode.ToUpper(r))
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		}
	}
	return b.String()
}
