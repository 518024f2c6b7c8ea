package plate

import (
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/jo-hoe/platewatch/internal/backend/commands"
	"github.com/jo-hoe/platewatch/internal/backend/commandstructure"
)

// DefaultPadding is the margin added around a detected plate before cropping
const DefaultPadding = 5

// Detector finds candidate plate boxes in a grayscale image, in detection order
type Detector interface {
	Detect(img *image.Gray) ([]Rect, error)
}

// TieBreak decides which candidate wins when several plates are detected
type TieBreak string

const (
	// TieBreakLargest picks the candidate with the largest area, first one on equal areas
	TieBreakLargest TieBreak = "largest"
	// TieBreakFirst picks the first candidate in detection order
	TieBreakFirst TieBreak = "first"
)

// ParseTieBreak parses a configured policy name, empty means TieBreakLargest
func ParseTieBreak(s string) (TieBreak, error) {
	switch TieBreak(strings.ToLower(strings.TrimSpace(s))) {
	case "", TieBreakLargest:
		return TieBreakLargest, nil
	case TieBreakFirst:
		return TieBreakFirst, nil
	default:
		return "", fmt.Errorf("unknown tie-break policy %q", s)
	}
}

// SelectCandidate applies the tie-break policy to the detected boxes
func SelectCandidate(candidates []Rect, policy TieBreak) (Rect, bool) {
	if len(candidates) == 0 {
		return Rect{}, false
	}
	if policy == TieBreakFirst {
		return candidates[0], true
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Area() > best.Area() {
			best = c
		}
	}
	return best, true
}

// Pad grows r by padding on every side, clamped to bounds
func Pad(r Rect, padding int, bounds image.Rectangle) Rect {
	return RectFrom(image.Rect(r.X1-padding, r.Y1-padding, r.X2+padding, r.Y2+padding).Intersect(bounds))
}

// Localizer finds the single plate region of an image
type Localizer struct {
	detector   Detector
	preprocess *commandstructure.CommandInvoker
	tieBreak   TieBreak
	padding    int
}

// LocalizerOption customizes a Localizer
type LocalizerOption func(*Localizer)

// WithTieBreak sets the candidate selection policy
func WithTieBreak(policy TieBreak) LocalizerOption {
	return func(l *Localizer) {
		l.tieBreak = policy
	}
}

// WithPadding sets the crop margin around the detected box
func WithPadding(padding int) LocalizerOption {
	return func(l *Localizer) {
		if padding >= 0 {
			l.padding = padding
		}
	}
}

// WithPreprocessing replaces the default contrast enhancement chain
func WithPreprocessing(invoker *commandstructure.CommandInvoker) LocalizerOption {
	return func(l *Localizer) {
		l.preprocess = invoker
	}
}

// NewLocalizer creates a localizer; the default chain runs CLAHE before detection
func NewLocalizer(detector Detector, opts ...LocalizerOption) (*Localizer, error) {
	if detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	clahe, err := commands.NewClaheCommand(map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("failed to create default preprocessing: %w", err)
	}

	l := &Localizer{
		detector:   detector,
		preprocess: commandstructure.NewCommandInvoker([]commandstructure.Command{clahe}),
		tieBreak:   TieBreakLargest,
		padding:    DefaultPadding,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Locate detects the plate in img and returns its padded box and preprocessed crop.
// Box coordinates are relative to img.Bounds().Min.
func (l *Localizer) Locate(img image.Image) (Region, error) {
	if img == nil || img.Bounds().Empty() {
		return Region{}, fmt.Errorf("%w: empty image", ErrNoPlateDetected)
	}

	gray := commands.ToGray(img)
	enhanced, err := l.preprocess.Execute(gray)
	if err != nil {
		return Region{}, fmt.Errorf("preprocessing failed: %w", err)
	}

	candidates, err := l.detector.Detect(enhanced)
	if err != nil {
		return Region{}, fmt.Errorf("detection failed: %w", err)
	}

	chosen, ok := SelectCandidate(candidates, l.tieBreak)
	if !ok {
		return Region{}, ErrNoPlateDetected
	}
	box := Pad(chosen, l.padding, enhanced.Bounds())
	if box.Area() == 0 {
		return Region{}, fmt.Errorf("%w: candidate outside image", ErrNoPlateDetected)
	}

	slog.Debug("plate located",
		"candidates", len(candidates),
		"policy", string(l.tieBreak),
		"x1", box.X1, "y1", box.Y1, "x2", box.X2, "y2", box.Y2)

	return Region{
		Box:   box,
		Image: commands.CropGray(enhanced, box.Rectangle()),
	}, nil
}
