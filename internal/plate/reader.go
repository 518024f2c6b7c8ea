package plate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/jo-hoe/platewatch/internal/backend/commandstructure"
)

// Hypothesis is one text candidate returned by a recognition engine
type Hypothesis struct {
	Text       string
	Confidence float64
}

// Engine recognizes text in a prepared plate image
type Engine interface {
	Recognize(ctx context.Context, img image.Image) ([]Hypothesis, error)
}

// Reader turns a located plate region into normalized plate text
type Reader struct {
	engine     Engine
	preprocess *commandstructure.CommandInvoker
	minLength  int
}

// ReaderOption customizes a Reader
type ReaderOption func(*Reader)

// WithMinLength overrides the minimum accepted text length
func WithMinLength(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.minLength = n
		}
	}
}

// WithReaderPreprocessing replaces the default upscale and binarization chain
func WithReaderPreprocessing(invoker *commandstructure.CommandInvoker) ReaderOption {
	return func(r *Reader) {
		r.preprocess = invoker
	}
}

// DefaultReaderPreprocessing returns the chain used before recognition:
// 2x cubic upscale, gaussian adaptive threshold and a 1x1 closing.
func DefaultReaderPreprocessing() []commandstructure.CommandConfig {
	return []commandstructure.CommandConfig{
		{Name: "UpscaleCommand", Params: map[string]any{"factor": 2.0}},
		{Name: "AdaptiveThresholdCommand", Params: map[string]any{"blockSize": 11, "c": 2.0, "method": "gaussian"}},
		{Name: "CloseCommand", Params: map[string]any{"size": 1}},
	}
}

// NewReader creates a reader around a recognition engine
func NewReader(engine Engine, opts ...ReaderOption) (*Reader, error) {
	if engine == nil {
		return nil, fmt.Errorf("recognition engine is required")
	}
	chain, err := commandstructure.BuildCommands(DefaultReaderPreprocessing())
	if err != nil {
		return nil, fmt.Errorf("failed to create default preprocessing: %w", err)
	}

	r := &Reader{
		engine:     engine,
		preprocess: commandstructure.NewCommandInvoker(chain),
		minLength:  MinTextLength,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Read recognizes the plate text of region. ErrNoText, ErrTooShort and
// ErrEngineFailure describe routine misses.
func (r *Reader) Read(ctx context.Context, region Region) (Recognized, error) {
	if region.Image == nil || region.Image.Bounds().Empty() {
		return Recognized{}, fmt.Errorf("%w: empty region", ErrNoText)
	}

	prepared, err := r.preprocess.Execute(region.Image)
	if err != nil {
		return Recognized{}, fmt.Errorf("preprocessing failed: %w", err)
	}

	hypotheses, err := r.recognize(ctx, prepared)
	if err != nil {
		return Recognized{}, err
	}

	best, ok := bestHypothesis(hypotheses)
	if !ok {
		return Recognized{}, ErrNoText
	}

	text := Normalize(best.Text)
	if text == "" {
		return Recognized{}, ErrNoText
	}
	if len(text) < r.minLength {
		slog.Debug("discarding short plate text", "text", text, "minLength", r.minLength)
		return Recognized{}, fmt.Errorf("%w: %q", ErrTooShort, text)
	}

	return Recognized{Text: text, Confidence: best.Confidence}, nil
}

func (r *Reader) recognize(ctx context.Context, img image.Image) (hypotheses []Hypothesis, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			hypotheses = nil
			err = fmt.Errorf("%w: panic: %v", ErrEngineFailure, rec)
		}
	}()

	hypotheses, err = r.engine.Recognize(ctx, img)
	if err != nil {
		if errors.Is(err, ErrEngineFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrEngineFailure, err)
	}
	return hypotheses, nil
}

// bestHypothesis returns the highest-confidence hypothesis, the earliest one on ties
func bestHypothesis(hypotheses []Hypothesis) (Hypothesis, bool) {
	if len(hypotheses) == 0 {
		return Hypothesis{}, false
	}
	best := hypotheses[0]
	for _, h := range hypotheses[1:] {
		if h.Confidence > best.Confidence {
			best = h
		}
	}
	return best, true
}
