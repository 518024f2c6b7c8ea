package commands

import (
	"fmt"
	"image"
	"log/slog"

	xdraw "golang.org/x/image/draw"

	"github.com/jo-hoe/platewatch/internal/backend/commandstructure"
)

// UpscaleParams represents typed parameters for upscale command
type UpscaleParams struct {
	Factor float64
}

// NewUpscaleParamsFromMap creates UpscaleParams from a generic map
func NewUpscaleParamsFromMap(params map[string]any) (*UpscaleParams, error) {
	factor := commandstructure.GetFloatParam(params, "factor", 2)
	if factor <= 0 {
		return nil, fmt.Errorf("factor must be positive, got %f", factor)
	}
	return &UpscaleParams{Factor: factor}, nil
}

// UpscaleCommand resizes the image with cubic (Catmull-Rom) interpolation
type UpscaleCommand struct {
	name   string
	params *UpscaleParams
}

// NewUpscaleCommand creates a new upscale command from configuration parameters
func NewUpscaleCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewUpscaleParamsFromMap(params)
	if err != nil {
		return nil, err
	}

	return &UpscaleCommand{
		name:   "UpscaleCommand",
		params: typedParams,
	}, nil
}

// NewUpscaleCommandWithFactor creates a new upscale command from a concrete factor
func NewUpscaleCommandWithFactor(factor float64) (*UpscaleCommand, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("factor must be positive, got %f", factor)
	}
	return &UpscaleCommand{
		name:   "UpscaleCommand",
		params: &UpscaleParams{Factor: factor},
	}, nil
}

// Name returns the command name
func (c *UpscaleCommand) Name() string {
	return c.name
}

// Execute scales both dimensions by the configured factor
func (c *UpscaleCommand) Execute(img *image.Gray) (*image.Gray, error) {
	src := ToGray(img)
	b := src.Bounds()
	targetW := int(float64(b.Dx())*c.params.Factor + 0.5)
	targetH := int(float64(b.Dy())*c.params.Factor + 0.5)
	if targetW <= 0 || targetH <= 0 {
		return nil, fmt.Errorf("upscaled dimensions %dx%d are empty", targetW, targetH)
	}
	if targetW == b.Dx() && targetH == b.Dy() {
		return cloneGray(src), nil
	}

	dst := image.NewGray(image.Rect(0, 0, targetW, targetH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)

	slog.Debug("UpscaleCommand: resize complete",
		"original_width", b.Dx(),
		"original_height", b.Dy(),
		"target_width", targetW,
		"target_height", targetH)
	return dst, nil
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("UpscaleCommand", NewUpscaleCommand); err != nil {
		panic(fmt.Sprintf("failed to register UpscaleCommand: %v", err))
	}
}
