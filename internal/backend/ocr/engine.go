package ocr

import (
	"fmt"
	"time"

	"github.com/jo-hoe/platewatch/internal/plate"
)

const (
	EngineTesseract = "tesseract"
	EngineHTTP      = "http"
)

// EngineConfig selects and configures a recognition engine
type EngineConfig struct {
	Type    string        `yaml:"type" validate:"omitempty,oneof=tesseract http"`
	Binary  string        `yaml:"binary"`
	URL     string        `yaml:"url" validate:"omitempty,url"`
	Timeout time.Duration `yaml:"timeout"`
}

// NewEngine creates the configured engine, defaulting to tesseract
func NewEngine(cfg EngineConfig) (plate.Engine, error) {
	switch cfg.Type {
	case "", EngineTesseract:
		return NewTesseractEngine(cfg.Binary, cfg.Timeout), nil
	case EngineHTTP:
		return NewHTTPEngine(cfg.URL, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unsupported recognition engine: %s", cfg.Type)
	}
}
