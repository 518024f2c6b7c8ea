package commands

import (
	"fmt"
	"image"

	"github.com/jo-hoe/platewatch/internal/backend/commandstructure"
	"github.com/jo-hoe/platewatch/internal/common"
)

// CloseCommand performs a morphological closing (dilate, then erode) with a square kernel.
// It fills pin holes inside glyph strokes left behind by thresholding.
type CloseCommand struct {
	name string
	size int
}

// NewCloseCommand creates a new closing command from configuration parameters
func NewCloseCommand(params map[string]any) (commandstructure.Command, error) {
	size := commandstructure.GetIntParam(params, "size", 1)
	if size <= 0 || size%2 == 0 {
		return nil, fmt.Errorf("size must be a positive odd number, got %d", size)
	}
	return &CloseCommand{
		name: "CloseCommand",
		size: size,
	}, nil
}

// Name returns the command name
func (c *CloseCommand) Name() string {
	return c.name
}

// Execute closes the image; a 1x1 kernel is the identity
func (c *CloseCommand) Execute(img *image.Gray) (*image.Gray, error) {
	src := ToGray(img)
	if c.size == 1 {
		return cloneGray(src), nil
	}
	dilated := morph(src, c.size, func(a, b uint8) bool { return a > b })
	return morph(dilated, c.size, func(a, b uint8) bool { return a < b }), nil
}

// morph replaces each pixel by the extreme of its neighbourhood as ordered by better
func morph(src *image.Gray, size int, better func(a, b uint8) bool) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	half := size / 2
	dst := image.NewGray(src.Bounds())
	common.ParallelFor(h, func(y int) {
		for x := 0; x < w; x++ {
			best := src.Pix[y*src.Stride+x]
			for dy := -half; dy <= half; dy++ {
				yy := clampInt(y+dy, 0, h-1)
				for dx := -half; dx <= half; dx++ {
					v := src.Pix[yy*src.Stride+clampInt(x+dx, 0, w-1)]
					if better(v, best) {
						best = v
					}
				}
			}
			dst.Pix[y*dst.Stride+x] = best
		}
	})
	return dst
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("CloseCommand", NewCloseCommand); err != nil {
		panic(fmt.Sprintf("failed to register CloseCommand: %v", err))
	}
}
