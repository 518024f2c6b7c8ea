package commands

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/jo-hoe/platewatch/internal/backend/commandstructure"
	"github.com/jo-hoe/platewatch/internal/common"
)

// ClaheParams represents typed parameters for contrast limited adaptive histogram equalization
type ClaheParams struct {
	ClipLimit float64
	Tiles     int
}

// NewClaheParamsFromMap creates ClaheParams from a generic map
func NewClaheParamsFromMap(params map[string]any) (*ClaheParams, error) {
	clipLimit := commandstructure.GetFloatParam(params, "clipLimit", 3.0)
	tiles := commandstructure.GetIntParam(params, "tiles", 8)

	if clipLimit < 1 {
		return nil, fmt.Errorf("clipLimit must be at least 1, got %f", clipLimit)
	}
	if tiles <= 0 {
		return nil, fmt.Errorf("tiles must be positive, got %d", tiles)
	}

	return &ClaheParams{
		ClipLimit: clipLimit,
		Tiles:     tiles,
	}, nil
}

// ClaheCommand equalizes contrast per tile so uneven lighting does not dominate detection
type ClaheCommand struct {
	name   string
	params *ClaheParams
}

// NewClaheCommand creates a new CLAHE command from configuration parameters
func NewClaheCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewClaheParamsFromMap(params)
	if err != nil {
		return nil, err
	}

	return &ClaheCommand{
		name:   "ClaheCommand",
		params: typedParams,
	}, nil
}

// Name returns the command name
func (c *ClaheCommand) Name() string {
	return c.name
}

// GetParams returns the typed parameters
func (c *ClaheCommand) GetParams() *ClaheParams {
	return c.params
}

// Execute equalizes each tile with a clipped histogram and blends neighbouring
// tile mappings bilinearly to avoid block seams
func (c *ClaheCommand) Execute(img *image.Gray) (*image.Gray, error) {
	src := ToGray(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w == 0 || h == 0 {
		return cloneGray(src), nil
	}

	tileW := (w + c.params.Tiles - 1) / c.params.Tiles
	tileH := (h + c.params.Tiles - 1) / c.params.Tiles
	nx := (w + tileW - 1) / tileW
	ny := (h + tileH - 1) / tileH

	luts := make([][256]uint8, nx*ny)
	common.ParallelFor(ny, func(ty int) {
		for tx := 0; tx < nx; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)
			luts[ty*nx+tx] = c.tileLUT(src, x0, y0, x1, y1)
		}
	})

	slog.Debug("ClaheCommand: tile mappings computed",
		"tiles_x", nx,
		"tiles_y", ny,
		"clip_limit", c.params.ClipLimit)

	dst := image.NewGray(src.Bounds())
	common.ParallelFor(h, func(y int) {
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty1 := int(math.Floor(fy))
		ay := fy - float64(ty1)
		ty2 := clampInt(ty1+1, 0, ny-1)
		ty1 = clampInt(ty1, 0, ny-1)

		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx1 := int(math.Floor(fx))
			ax := fx - float64(tx1)
			tx2 := clampInt(tx1+1, 0, nx-1)
			tx1 = clampInt(tx1, 0, nx-1)

			v := src.Pix[y*src.Stride+x]
			top := (1-ax)*float64(luts[ty1*nx+tx1][v]) + ax*float64(luts[ty1*nx+tx2][v])
			bottom := (1-ax)*float64(luts[ty2*nx+tx1][v]) + ax*float64(luts[ty2*nx+tx2][v])
			dst.Pix[y*dst.Stride+x] = clampUint8((1-ay)*top + ay*bottom)
		}
	})

	return dst, nil
}

func (c *ClaheCommand) tileLUT(src *image.Gray, x0, y0, x1, y1 int) [256]uint8 {
	var hist [256]int
	for y := y0; y < y1; y++ {
		for _, v := range src.Pix[y*src.Stride+x0 : y*src.Stride+x1] {
			hist[v]++
		}
	}
	pixels := (x1 - x0) * (y1 - y0)

	limit := max(int(c.params.ClipLimit*float64(pixels)/256.0), 1)
	excess := 0
	for i := range hist {
		if hist[i] > limit {
			excess += hist[i] - limit
			hist[i] = limit
		}
	}
	bonus, remainder := excess/256, excess%256
	for i := range hist {
		hist[i] += bonus
		if i < remainder {
			hist[i]++
		}
	}

	var lut [256]uint8
	scale := 255.0 / float64(pixels)
	sum := 0
	for i := range hist {
		sum += hist[i]
		lut[i] = clampUint8(float64(sum) * scale)
	}
	return lut
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("ClaheCommand", NewClaheCommand); err != nil {
		panic(fmt.Sprintf("failed to register ClaheCommand: %v", err))
	}
}
