package commands

import (
	"fmt"
	"image"
	"math"

	"github.com/jo-hoe/platewatch/internal/backend/commandstructure"
	"github.com/jo-hoe/platewatch/internal/common"
)

// GaussianBlurParams represents typed parameters for gaussian blur command
type GaussianBlurParams struct {
	Size  int
	Sigma float64
}

// NewGaussianBlurParamsFromMap creates GaussianBlurParams from a generic map
func NewGaussianBlurParamsFromMap(params map[string]any) (*GaussianBlurParams, error) {
	size := commandstructure.GetIntParam(params, "size", 5)
	sigma := commandstructure.GetFloatParam(params, "sigma", 0)

	if size <= 0 || size%2 == 0 {
		return nil, fmt.Errorf("size must be a positive odd number, got %d", size)
	}
	if sigma < 0 {
		return nil, fmt.Errorf("sigma must not be negative, got %f", sigma)
	}

	return &GaussianBlurParams{
		Size:  size,
		Sigma: sigma,
	}, nil
}

// GaussianBlurCommand smooths sensor noise before thresholding
type GaussianBlurCommand struct {
	name   string
	params *GaussianBlurParams
}

// NewGaussianBlurCommand creates a new gaussian blur command from configuration parameters
func NewGaussianBlurCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewGaussianBlurParamsFromMap(params)
	if err != nil {
		return nil, err
	}

	return &GaussianBlurCommand{
		name:   "GaussianBlurCommand",
		params: typedParams,
	}, nil
}

// Name returns the command name
func (c *GaussianBlurCommand) Name() string {
	return c.name
}

// Execute applies a separable gaussian kernel with replicated borders
func (c *GaussianBlurCommand) Execute(img *image.Gray) (*image.Gray, error) {
	return gaussianBlur(ToGray(img), c.params.Size, c.params.Sigma), nil
}

// gaussianKernel returns a normalized 1D kernel; sigma <= 0 derives it from size
func gaussianKernel(size int, sigma float64) []float64 {
	if sigma <= 0 {
		sigma = 0.3*((float64(size)-1)*0.5-1) + 0.8
	}
	kernel := make([]float64, size)
	half := size / 2
	sum := 0.0
	for i := range kernel {
		d := float64(i - half)
		kernel[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

func gaussianBlur(src *image.Gray, size int, sigma float64) *image.Gray {
	if size <= 1 {
		return cloneGray(src)
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	kernel := gaussianKernel(size, sigma)
	half := size / 2

	tmp := make([]float64, w*h)
	common.ParallelFor(h, func(y int) {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		for x := 0; x < w; x++ {
			acc := 0.0
			for k, weight := range kernel {
				acc += weight * float64(row[clampInt(x+k-half, 0, w-1)])
			}
			tmp[y*w+x] = acc
		}
	})

	dst := image.NewGray(src.Bounds())
	common.ParallelFor(h, func(y int) {
		for x := 0; x < w; x++ {
			acc := 0.0
			for k, weight := range kernel {
				acc += weight * tmp[clampInt(y+k-half, 0, h-1)*w+x]
			}
			dst.Pix[y*dst.Stride+x] = clampUint8(acc)
		}
	})
	return dst
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("GaussianBlurCommand", NewGaussianBlurCommand); err != nil {
		panic(fmt.Sprintf("failed to register GaussianBlurCommand: %v", err))
	}
}
