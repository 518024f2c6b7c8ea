package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/jo-hoe/platewatch/internal/plate"
)

const defaultHTTPTimeout = 15 * time.Second

// HTTPEngine delegates recognition to an ALPR-style web service
type HTTPEngine struct {
	url    string
	client *http.Client
}

// NewHTTPEngine creates an engine posting images to url
func NewHTTPEngine(url string, timeout time.Duration) (*HTTPEngine, error) {
	if url == "" {
		return nil, fmt.Errorf("recognition service url is required")
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTPEngine{url: url, client: &http.Client{Timeout: timeout}}, nil
}

type alprResponse struct {
	Results []alprResult `json:"results"`
}

type alprResult struct {
	Plate      string          `json:"plate"`
	Confidence float64         `json:"confidence"`
	Candidates []alprCandidate `json:"candidates"`
}

type alprCandidate struct {
	Plate      string  `json:"plate"`
	Confidence float64 `json:"confidence"`
}

// Recognize uploads the image as multipart field "image" and returns every plate and candidate
func (h *HTTPEngine) Recognize(ctx context.Context, img image.Image) ([]plate.Hypothesis, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "plate.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp alprResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	var hypotheses []plate.Hypothesis
	for _, r := range apiResp.Results {
		hypotheses = append(hypotheses, plate.Hypothesis{Text: r.Plate, Confidence: scaleConfidence(r.Confidence)})
		for _, c := range r.Candidates {
			hypotheses = append(hypotheses, plate.Hypothesis{Text: c.Plate, Confidence: scaleConfidence(c.Confidence)})
		}
	}
	return hypotheses, nil
}

// scaleConfidence maps percentages onto [0,1]; values already in range pass through
func scaleConfidence(c float64) float64 {
	if c > 1 {
		return c / 100
	}
	return c
}
