package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"os"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned when the bytes are neither a known raster format nor SVG
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Decoder turns raw file bytes into a decoded raster image
type Decoder struct {
	svgFallbackWidth  int
	svgFallbackHeight int
}

// NewDecoder creates a decoder; the fallback size is used for SVG input without explicit dimensions
func NewDecoder(svgFallbackWidth, svgFallbackHeight int) *Decoder {
	return &Decoder{
		svgFallbackWidth:  svgFallbackWidth,
		svgFallbackHeight: svgFallbackHeight,
	}
}

// DecodeFile reads and decodes the image stored at path
func (d *Decoder) DecodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read image %s: %w", path, err)
	}
	img, err := d.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("could not decode image %s: %w", path, err)
	}
	return img, nil
}

// Decode decodes raster formats (jpeg, png, gif, bmp, tiff, webp) and renders SVG
func (d *Decoder) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnsupportedFormat)
	}

	if isSVGData(data) {
		return d.decodeSVG(data)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("decoded %s image is empty", format)
	}

	slog.Debug("decoded raster image",
		"format", format,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())
	return img, nil
}

func (d *Decoder) decodeSVG(data []byte) (image.Image, error) {
	w, h, ok := parseSvgExplicitSize(data)
	if !ok {
		w, h = d.svgFallbackWidth, d.svgFallbackHeight
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("SVG fallback size not set; cannot render SVG without explicit size")
	}
	return renderSVG(data, w, h)
}

// isSVGData performs a lightweight detection of SVG content from raw bytes.
func isSVGData(data []byte) bool {
	n := min(len(data), 4096)
	header := bytes.ToLower(bytes.TrimSpace(data[:n]))
	return bytes.Contains(header, []byte("<svg")) ||
		bytes.Contains(header, []byte("xmlns=\"http://www.w3.org/2000/svg\"")) ||
		bytes.Contains(header, []byte("xmlns='http://www.w3.org/2000/svg'"))
}

// parseSvgExplicitSize extracts pixel width and height attributes from the root svg tag
func parseSvgExplicitSize(data []byte) (int, int, bool) {
	n := min(len(data), 8192)
	s := strings.ToLower(string(data[:n]))
	i := strings.Index(s, "<svg")
	if i < 0 {
		return 0, 0, false
	}
	tag := s[i:]
	if j := strings.Index(tag, ">"); j >= 0 {
		tag = tag[:j]
	}

	w, wOk := parseNumericAttr(tag, "width")
	h, hOk := parseNumericAttr(tag, "height")
	if wOk && hOk {
		return w, h, true
	}
	return 0, 0, false
}

// parseNumericAttr extracts the leading integer of a quoted attribute value (e.g. width="123px")
func parseNumericAttr(tag, attr string) (int, bool) {
	for _, quote := range []string{`"`, `'`} {
		key := " " + attr + "=" + quote
		pos := strings.Index(tag, key)
		if pos < 0 {
			continue
		}
		val := tag[pos+len(key):]
		if end := strings.Index(val, quote); end >= 0 {
			val = val[:end]
		}
		num, found := 0, false
		for i := 0; i < len(val); i++ {
			ch := val[i]
			if ch < '0' || ch > '9' {
				break
			}
			found = true
			num = num*10 + int(ch-'0')
		}
		if found && num > 0 {
			return num, true
		}
	}
	return 0, false
}

// renderSVG rasterizes an SVG document onto a white canvas of the given size
func renderSVG(svgData []byte, targetW, targetH int) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}
	icon.SetTarget(0, 0, float64(targetW), float64(targetH))

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(targetW, targetH, dst, dst.Bounds())
	dasher := rasterx.NewDasher(targetW, targetH, scanner)
	icon.Draw(dasher, 1.0)

	slog.Debug("rendered SVG input", "width", targetW, "height", targetH)
	return dst, nil
}
