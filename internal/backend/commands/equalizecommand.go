package commands

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/jo-hoe/platewatch/internal/backend/commandstructure"
	"github.com/jo-hoe/platewatch/internal/common"
)

// EqualizeHistogramCommand stretches the global intensity histogram
type EqualizeHistogramCommand struct {
	name string
}

// NewEqualizeHistogramCommand creates a new histogram equalization command (no parameters)
func NewEqualizeHistogramCommand(params map[string]any) (commandstructure.Command, error) {
	return &EqualizeHistogramCommand{name: "EqualizeHistogramCommand"}, nil
}

// Name returns the command name
func (c *EqualizeHistogramCommand) Name() string {
	return c.name
}

// Execute maps every pixel through the normalized cumulative histogram
func (c *EqualizeHistogramCommand) Execute(img *image.Gray) (*image.Gray, error) {
	src := ToGray(img)
	b := src.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return cloneGray(src), nil
	}

	var hist [256]int
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+b.Dx()]
		for _, v := range row {
			hist[v]++
		}
	}

	lut := equalizationLUT(hist, total)
	dst := image.NewGray(b)
	common.ParallelFor(b.Dy(), func(y int) {
		srcRow := src.Pix[y*src.Stride : y*src.Stride+b.Dx()]
		dstRow := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()]
		for x, v := range srcRow {
			dstRow[x] = lut[v]
		}
	})

	slog.Debug("EqualizeHistogramCommand: equalization complete", "pixels", total)
	return dst, nil
}

// equalizationLUT builds the lookup table used by histogram equalization.
// The first occupied bin maps to zero so a flat image stays flat.
func equalizationLUT(hist [256]int, total int) [256]uint8 {
	var lut [256]uint8
	first := 0
	for first < 256 && hist[first] == 0 {
		first++
	}
	if first == 256 || hist[first] == total {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}

	scale := 255.0 / float64(total-hist[first])
	sum := 0
	for i := first + 1; i < 256; i++ {
		sum += hist[i]
		lut[i] = clampUint8(float64(sum) * scale)
	}
	return lut
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("EqualizeHistogramCommand", NewEqualizeHistogramCommand); err != nil {
		panic(fmt.Sprintf("failed to register EqualizeHistogramCommand: %v", err))
	}
}
