package commands

import (
	"fmt"
	"image"

	"github.com/jo-hoe/platewatch/internal/backend/commandstructure"
	"github.com/jo-hoe/platewatch/internal/common"
)

const (
	thresholdMethodMean     = "mean"
	thresholdMethodGaussian = "gaussian"
)

// AdaptiveThresholdParams represents typed parameters for adaptive threshold command
type AdaptiveThresholdParams struct {
	BlockSize int
	C         float64
	Method    string
}

// NewAdaptiveThresholdParamsFromMap creates AdaptiveThresholdParams from a generic map
func NewAdaptiveThresholdParamsFromMap(params map[string]any) (*AdaptiveThresholdParams, error) {
	blockSize := commandstructure.GetIntParam(params, "blockSize", 11)
	c := commandstructure.GetFloatParam(params, "c", 2)
	method := commandstructure.GetStringParam(params, "method", thresholdMethodGaussian)

	if blockSize < 3 || blockSize%2 == 0 {
		return nil, fmt.Errorf("blockSize must be an odd number >= 3, got %d", blockSize)
	}
	if method != thresholdMethodMean && method != thresholdMethodGaussian {
		return nil, fmt.Errorf("invalid method: %s (must be 'mean' or 'gaussian')", method)
	}

	return &AdaptiveThresholdParams{
		BlockSize: blockSize,
		C:         c,
		Method:    method,
	}, nil
}

// AdaptiveThresholdCommand binarizes against the local neighbourhood so glyphs
// survive shadows and glare across the plate
type AdaptiveThresholdCommand struct {
	name   string
	params *AdaptiveThresholdParams
}

// NewAdaptiveThresholdCommand creates a new adaptive threshold command from configuration parameters
func NewAdaptiveThresholdCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewAdaptiveThresholdParamsFromMap(params)
	if err != nil {
		return nil, err
	}

	return &AdaptiveThresholdCommand{
		name:   "AdaptiveThresholdCommand",
		params: typedParams,
	}, nil
}

// Name returns the command name
func (c *AdaptiveThresholdCommand) Name() string {
	return c.name
}

// Execute sets a pixel white when it is brighter than its local mean minus C
func (c *AdaptiveThresholdCommand) Execute(img *image.Gray) (*image.Gray, error) {
	src := ToGray(img)
	var local *image.Gray
	if c.params.Method == thresholdMethodGaussian {
		local = gaussianBlur(src, c.params.BlockSize, 0)
	} else {
		local = boxMean(src, c.params.BlockSize)
	}

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(src.Bounds())
	common.ParallelFor(h, func(y int) {
		for x := 0; x < w; x++ {
			threshold := float64(local.Pix[y*local.Stride+x]) - c.params.C
			if float64(src.Pix[y*src.Stride+x]) > threshold {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	})
	return dst, nil
}

// boxMean averages each block using a summed-area table with clamped windows
func boxMean(src *image.Gray, blockSize int) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	integral := make([]int64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(src.Pix[y*src.Stride+x])
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + rowSum
		}
	}

	half := blockSize / 2
	dst := image.NewGray(src.Bounds())
	common.ParallelFor(h, func(y int) {
		y0, y1 := max(y-half, 0), min(y+half+1, h)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-half, 0), min(x+half+1, w)
			sum := integral[y1*(w+1)+x1] - integral[y0*(w+1)+x1] - integral[y1*(w+1)+x0] + integral[y0*(w+1)+x0]
			dst.Pix[y*dst.Stride+x] = clampUint8(float64(sum) / float64((x1-x0)*(y1-y0)))
		}
	})
	return dst
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("AdaptiveThresholdCommand", NewAdaptiveThresholdCommand); err != nil {
		panic(fmt.Sprintf("failed to register AdaptiveThresholdCommand: %v", err))
	}
}
