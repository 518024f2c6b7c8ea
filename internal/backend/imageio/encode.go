package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const jpegQuality = 90

// Encode writes img in the format implied by the file extension (jpeg for .jpg/.jpeg, png otherwise)
func Encode(w io.Writer, img image.Image, name string) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	default:
		return png.Encode(w, img)
	}
}

// EncodePNG encodes img to PNG bytes
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	bb := img.Bounds()
	buf.Grow(bb.Dx() * bb.Dy())
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG image: %w", err)
	}
	return buf.Bytes(), nil
}

// OutputName builds the timestamped file name for an annotated copy of sourceName
func OutputName(sourceName string, at time.Time) string {
	ext := strings.ToLower(filepath.Ext(sourceName))
	base := filepath.Base(sourceName)
	switch ext {
	case ".jpg", ".jpeg", ".png":
	default:
		base = strings.TrimSuffix(base, filepath.Ext(base)) + ".png"
	}
	return fmt.Sprintf("detected_%s_%s", at.Format("20060102_150405"), base)
}

// WriteFile encodes img into dir under name, creating dir when needed
func WriteFile(dir, name string, img image.Image) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	if err := Encode(file, img, name); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("failed to encode output file %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close output file %s: %w", path, err)
	}
	return path, nil
}
