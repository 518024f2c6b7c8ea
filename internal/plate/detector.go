package plate

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/jo-hoe/platewatch/internal/common"
)

// CascadeParams tunes the sliding-window plate detector
type CascadeParams struct {
	// ScaleFactor is the growth of the window height between scan passes
	ScaleFactor float64
	// MinNeighbors is the number of overlapping hits a cluster needs to be reported
	MinNeighbors int
	MinSize      image.Point
	MaxSize      image.Point
	// AspectRatios lists the width/height ratios scanned at every scale
	AspectRatios []float64
	// MinContrast is the minimum standard deviation of intensities inside a window
	MinContrast float64
	// MinEdgeDensity is the minimum mean horizontal gradient inside a window
	MinEdgeDensity float64
	// MinTransitions is the minimum number of dark/light flips along the window centre line
	MinTransitions int
	// StepFraction is the window stride relative to the window height
	StepFraction float64
	// MaxWidth bounds the working resolution; larger images are scanned downscaled
	MaxWidth int
	// GroupEps is the relative tolerance used when clustering hits
	GroupEps float64
}

// DefaultCascadeParams returns the detector defaults
func DefaultCascadeParams() CascadeParams {
	return CascadeParams{
		ScaleFactor:    1.1,
		MinNeighbors:   5,
		MinSize:        image.Pt(20, 20),
		MaxSize:        image.Pt(300, 100),
		AspectRatios:   []float64{2, 3, 4, 5},
		MinContrast:    25,
		MinEdgeDensity: 15,
		MinTransitions: 6,
		StepFraction:   0.1,
		MaxWidth:       640,
		GroupEps:       0.2,
	}
}

func (p CascadeParams) validate() error {
	if p.ScaleFactor <= 1 {
		return fmt.Errorf("scaleFactor must be greater than 1, got %f", p.ScaleFactor)
	}
	if p.MinNeighbors < 0 {
		return fmt.Errorf("minNeighbors must not be negative, got %d", p.MinNeighbors)
	}
	if p.MinSize.X <= 0 || p.MinSize.Y <= 0 {
		return fmt.Errorf("minSize must be positive, got %v", p.MinSize)
	}
	if p.MaxSize.X < p.MinSize.X || p.MaxSize.Y < p.MinSize.Y {
		return fmt.Errorf("maxSize %v must not be smaller than minSize %v", p.MaxSize, p.MinSize)
	}
	if len(p.AspectRatios) == 0 {
		return fmt.Errorf("at least one aspect ratio is required")
	}
	for _, a := range p.AspectRatios {
		if a <= 0 {
			return fmt.Errorf("aspect ratios must be positive, got %f", a)
		}
	}
	if p.StepFraction <= 0 {
		return fmt.Errorf("stepFraction must be positive, got %f", p.StepFraction)
	}
	return nil
}

// CascadeDetector finds plate-like regions with a three stage window cascade:
// intensity contrast, vertical stroke edge density and stroke transitions along
// the centre line. Hits are clustered and clusters with enough neighbours are
// reported as their averaged rectangle.
type CascadeDetector struct {
	params CascadeParams
}

// NewCascadeDetector creates a detector with validated parameters
func NewCascadeDetector(params CascadeParams) (*CascadeDetector, error) {
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("invalid cascade parameters: %w", err)
	}
	return &CascadeDetector{params: params}, nil
}

// Params returns the detector configuration
func (d *CascadeDetector) Params() CascadeParams {
	return d.params
}

type windowSize struct {
	w, h int
}

// Detect returns the plate candidates found in img in scan order.
// Coordinates are relative to img.Bounds().Min.
func (d *CascadeDetector) Detect(img *image.Gray) ([]Rect, error) {
	if img == nil {
		return nil, fmt.Errorf("image is nil")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, nil
	}

	work, scale := d.workingImage(img)
	ii := newIntegrals(work)

	sizes := d.windowSizes(ii.w, ii.h, scale)
	hits := make([][]Rect, len(sizes))
	common.ParallelFor(len(sizes), func(i int) {
		hits[i] = d.scan(work, ii, sizes[i])
	})

	var all []Rect
	for _, h := range hits {
		all = append(all, h...)
	}
	grouped := groupRects(all, d.params.MinNeighbors, d.params.GroupEps)

	result := make([]Rect, 0, len(grouped))
	for _, r := range grouped {
		result = append(result, Rect{
			X1: int(math.Round(float64(r.X1) * scale)),
			Y1: int(math.Round(float64(r.Y1) * scale)),
			X2: int(math.Round(float64(r.X2) * scale)),
			Y2: int(math.Round(float64(r.Y2) * scale)),
		})
	}

	slog.Debug("cascade detection finished",
		"windowSizes", len(sizes),
		"hits", len(all),
		"candidates", len(result))
	return result, nil
}

// workingImage returns an origin-anchored copy no wider than MaxWidth and the factor
// mapping working coordinates back to the input.
func (d *CascadeDetector) workingImage(img *image.Gray) (*image.Gray, float64) {
	b := img.Bounds()
	if d.params.MaxWidth <= 0 || b.Dx() <= d.params.MaxWidth {
		if b.Min == (image.Point{}) {
			return img, 1
		}
		dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
		return dst, 1
	}

	scale := float64(b.Dx()) / float64(d.params.MaxWidth)
	h := max(1, int(math.Round(float64(b.Dy())/scale)))
	dst := image.NewGray(image.Rect(0, 0, d.params.MaxWidth, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst, scale
}

// windowSizes enumerates window sizes in the working image from small to large.
// Size limits are expressed in input pixels and converted with scale.
func (d *CascadeDetector) windowSizes(imgW, imgH int, scale float64) []windowSize {
	p := d.params
	minW := float64(p.MinSize.X) / scale
	minH := float64(p.MinSize.Y) / scale
	maxW := float64(p.MaxSize.X) / scale
	maxH := float64(p.MaxSize.Y) / scale

	var sizes []windowSize
	seen := make(map[windowSize]bool)
	for h := math.Max(minH, 4); h <= maxH && h <= float64(imgH); h *= p.ScaleFactor {
		for _, aspect := range p.AspectRatios {
			w := h * aspect
			if w < minW || w > maxW || w > float64(imgW) {
				continue
			}
			ws := windowSize{w: int(math.Round(w)), h: int(math.Round(h))}
			if ws.w > imgW || ws.h > imgH || seen[ws] {
				continue
			}
			seen[ws] = true
			sizes = append(sizes, ws)
		}
	}
	return sizes
}

func (d *CascadeDetector) scan(img *image.Gray, ii *integrals, ws windowSize) []Rect {
	step := max(1, int(math.Round(float64(ws.h)*d.params.StepFraction)))
	var hits []Rect
	for y := 0; y+ws.h <= ii.h; y += step {
		for x := 0; x+ws.w <= ii.w; x += step {
			if d.accept(img, ii, x, y, ws.w, ws.h) {
				hits = append(hits, Rect{X1: x, Y1: y, X2: x + ws.w, Y2: y + ws.h})
			}
		}
	}
	return hits
}

func (d *CascadeDetector) accept(img *image.Gray, ii *integrals, x, y, w, h int) bool {
	n := float64(w * h)
	mean := float64(ii.sum.area(x, y, w, h)) / n

	// stage 1: contrast
	variance := float64(ii.sqSum.area(x, y, w, h))/n - mean*mean
	if variance < d.params.MinContrast*d.params.MinContrast {
		return false
	}

	// stage 2: vertical stroke edges
	if float64(ii.edge.area(x, y, w, h))/n < d.params.MinEdgeDensity {
		return false
	}

	// stage 3: character strokes along the centre line
	row := img.Pix[(y+h/2)*img.Stride+x : (y+h/2)*img.Stride+x+w]
	transitions := 0
	dark := float64(row[0]) < mean
	for _, v := range row[1:] {
		if isDark := float64(v) < mean; isDark != dark {
			transitions++
			dark = isDark
		}
	}
	return transitions >= d.params.MinTransitions && transitions <= w/2
}

// integral is a summed-area table with one row and column of zero padding
type integral struct {
	stride int
	data   []int64
}

func (t *integral) area(x, y, w, h int) int64 {
	a := t.data[y*t.stride+x]
	b := t.data[y*t.stride+x+w]
	c := t.data[(y+h)*t.stride+x]
	e := t.data[(y+h)*t.stride+x+w]
	return e - b - c + a
}

type integrals struct {
	w, h  int
	sum   *integral
	sqSum *integral
	edge  *integral
}

func newIntegrals(img *image.Gray) *integrals {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	stride := w + 1
	ii := &integrals{
		w:     w,
		h:     h,
		sum:   &integral{stride: stride, data: make([]int64, stride*(h+1))},
		sqSum: &integral{stride: stride, data: make([]int64, stride*(h+1))},
		edge:  &integral{stride: stride, data: make([]int64, stride*(h+1))},
	}

	for y := 0; y < h; y++ {
		line := img.Pix[y*img.Stride : y*img.Stride+w]
		var rowSum, rowSq, rowEdge int64
		for x := 0; x < w; x++ {
			v := int64(line[x])
			rowSum += v
			rowSq += v * v
			if x > 0 && x < w-1 {
				g := int64(line[x+1]) - int64(line[x-1])
				if g < 0 {
					g = -g
				}
				rowEdge += g
			}
			idx := (y+1)*stride + x + 1
			ii.sum.data[idx] = ii.sum.data[idx-stride] + rowSum
			ii.sqSum.data[idx] = ii.sqSum.data[idx-stride] + rowSq
			ii.edge.data[idx] = ii.edge.data[idx-stride] + rowEdge
		}
	}
	return ii
}

// similarRects reports whether two boxes differ by at most eps of their mean size on every edge
func similarRects(a, b Rect, eps float64) bool {
	delta := eps * float64(min(a.Width(), b.Width())+min(a.Height(), b.Height())) * 0.5
	return math.Abs(float64(a.X1-b.X1)) <= delta &&
		math.Abs(float64(a.Y1-b.Y1)) <= delta &&
		math.Abs(float64(a.X2-b.X2)) <= delta &&
		math.Abs(float64(a.Y2-b.Y2)) <= delta
}

// groupRects partitions rects into transitive clusters of similar boxes and returns the
// average box of every cluster with at least minNeighbors members, ordered by the first
// member of each cluster.
func groupRects(rects []Rect, minNeighbors int, eps float64) []Rect {
	if len(rects) == 0 {
		return nil
	}

	parent := make([]int, len(rects))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			if !similarRects(rects[i], rects[j], eps) {
				continue
			}
			ri, rj := find(i), find(j)
			if ri == rj {
				continue
			}
			if ri < rj {
				parent[rj] = ri
			} else {
				parent[ri] = rj
			}
		}
	}

	type cluster struct {
		count          int
		x1, y1, x2, y2 int
	}
	clusters := make(map[int]*cluster)
	var order []int
	for i, r := range rects {
		root := find(i)
		c, ok := clusters[root]
		if !ok {
			c = &cluster{}
			clusters[root] = c
			order = append(order, root)
		}
		c.count++
		c.x1 += r.X1
		c.y1 += r.Y1
		c.x2 += r.X2
		c.y2 += r.Y2
	}

	var result []Rect
	for _, root := range order {
		c := clusters[root]
		if c.count < minNeighbors {
			continue
		}
		n := float64(c.count)
		result = append(result, Rect{
			X1: int(math.Round(float64(c.x1) / n)),
			Y1: int(math.Round(float64(c.y1) / n)),
			X2: int(math.Round(float64(c.x2) / n)),
			Y2: int(math.Round(float64(c.y2) / n)),
		})
	}
	return result
}
