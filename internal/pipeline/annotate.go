package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/jo-hoe/platewatch/internal/attendance"
	"github.com/jo-hoe/platewatch/internal/plate"
)

const (
	boxStrokeWidth = 2
	labelOffset    = 10
	labelPadding   = 2
)

var (
	colorOnTime  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	colorLate    = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	colorInvalid = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	colorLabelBg = color.RGBA{R: 0, G: 0, B: 0, A: 160}
)

// StatusColor returns the annotation colour of a status
func StatusColor(status attendance.EntryStatus) color.RGBA {
	switch status {
	case attendance.StatusOnTime:
		return colorOnTime
	case attendance.StatusLate:
		return colorLate
	default:
		return colorInvalid
	}
}

// Label renders "PLATE - NAME - STATUS" with " (N mins)" appended for late arrivals
func Label(entry attendance.EntryLog) string {
	label := fmt.Sprintf("%s - %s - %s", entry.LicensePlate, entry.EmployeeName, entry.Status.Label())
	if entry.MinutesLate != nil && *entry.MinutesLate > 0 {
		label += fmt.Sprintf(" (%d mins)", *entry.MinutesLate)
	}
	return label
}

// Annotate copies img and draws the plate box and the entry label onto the copy.
// box is relative to img.Bounds().Min.
func Annotate(img image.Image, box plate.Rect, entry attendance.EntryLog) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	c := StatusColor(entry.Status)
	drawBox(dst, box, c)
	drawLabel(dst, box, Label(entry), c)
	return dst
}

func drawBox(dst *image.RGBA, box plate.Rect, c color.RGBA) {
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	dasher.SetStroke(fixed.I(boxStrokeWidth), fixed.I(4), rasterx.ButtCap, rasterx.ButtCap, rasterx.FlatGap, rasterx.Miter, nil, 0)
	dasher.SetColor(c)

	// inset by half the stroke so the full line stays inside the plate box
	half := float64(boxStrokeWidth) / 2
	rasterx.AddRect(float64(box.X1)+half, float64(box.Y1)+half, float64(box.X2)-half, float64(box.Y2)-half, 0, dasher)
	dasher.Draw()
}

func drawLabel(dst *image.RGBA, box plate.Rect, label string, c color.RGBA) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
	}
	width := drawer.MeasureString(label).Ceil()
	ascent := face.Metrics().Ascent.Ceil()
	descent := face.Metrics().Descent.Ceil()

	baseline := box.Y1 - labelOffset
	if baseline-ascent < 0 {
		baseline = box.Y2 + labelOffset + ascent
	}
	x := max(0, min(box.X1, dst.Bounds().Dx()-width))

	bg := image.Rect(x-labelPadding, baseline-ascent-labelPadding, x+width+labelPadding, baseline+descent+labelPadding)
	draw.Draw(dst, bg.Intersect(dst.Bounds()), image.NewUniform(colorLabelBg), image.Point{}, draw.Over)

	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(label)
}
