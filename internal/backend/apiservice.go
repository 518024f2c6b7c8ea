package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jo-hoe/platewatch/internal/attendance"
	"github.com/jo-hoe/platewatch/internal/backend/imageio"
	"github.com/jo-hoe/platewatch/internal/pipeline"
	"github.com/jo-hoe/platewatch/internal/plate"
)

const maxUploadBytes = 20 << 20

// CoreService is the part of the core the HTTP API depends on
type CoreService interface {
	ProcessImage(ctx context.Context, data []byte) (pipeline.Result, error)
	RecentEntries(ctx context.Context, hours int) ([]attendance.EntryLog, error)
	Report(ctx context.Context, hours int) ([]attendance.EntryLog, attendance.Summary, error)
}

type APIService struct {
	coreService CoreService
	metrics     http.Handler
}

// DetectionResponse is returned for a processed upload
type DetectionResponse struct {
	Outcome    pipeline.Outcome     `json:"outcome"`
	Reason     string               `json:"reason,omitempty"`
	Plate      string               `json:"plate,omitempty"`
	Confidence float64              `json:"confidence,omitempty"`
	Box        *plate.Rect          `json:"box,omitempty"`
	Entry      *attendance.EntryLog `json:"entry,omitempty"`
}

// HoursQuery selects a look-back window
type HoursQuery struct {
	Hours int `query:"hours" validate:"gte=1,lte=8760"`
}

// SummaryResponse is returned by the summary endpoint
type SummaryResponse struct {
	Summary attendance.Summary `json:"summary"`
	Entries int                `json:"entries"`
}

func NewAPIService(coreService CoreService, gatherer prometheus.Gatherer) *APIService {
	return &APIService{
		coreService: coreService,
		metrics:     promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	// Set probe route
	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "API Service is running")
	})

	e.POST("/api/detections", s.handleDetection)
	e.GET("/api/entries", s.handleEntries)
	e.GET("/api/summary", s.handleSummary)
	e.GET("/metrics", echo.WrapHandler(s.metrics))
}

func (s *APIService) handleDetection(c echo.Context) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'image' is required")
	}
	if fileHeader.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image too large")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to open uploaded image")
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read uploaded image")
	}

	result, err := s.coreService.ProcessImage(c.Request().Context(), data)
	if err != nil {
		if errors.Is(err, imageio.ErrUnsupportedFormat) {
			return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
		}
		slog.Error("detection failed", "file", fileHeader.Filename, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process image")
	}

	if c.QueryParam("annotated") == "true" && result.Annotated != nil {
		png, err := imageio.EncodePNG(result.Annotated)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to encode annotated image")
		}
		return c.Blob(http.StatusOK, "image/png", png)
	}

	return c.JSON(http.StatusOK, toDetectionResponse(result))
}

func toDetectionResponse(result pipeline.Result) DetectionResponse {
	response := DetectionResponse{
		Outcome:    result.Outcome,
		Plate:      result.Plate,
		Confidence: result.Confidence,
		Entry:      result.Entry,
	}
	if result.Reason != nil {
		response.Reason = result.Reason.Error()
	}
	if result.Box.Area() > 0 {
		box := result.Box
		response.Box = &box
	}
	return response
}

func (s *APIService) bindHours(c echo.Context) (int, error) {
	query := HoursQuery{Hours: 24}
	if err := c.Bind(&query); err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "hours must be an integer")
	}
	if err := c.Validate(&query); err != nil {
		return 0, err
	}
	return query.Hours, nil
}

func (s *APIService) handleEntries(c echo.Context) error {
	hours, err := s.bindHours(c)
	if err != nil {
		return err
	}
	entries, err := s.coreService.RecentEntries(c.Request().Context(), hours)
	if err != nil {
		slog.Error("listing entries failed", "hours", hours, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list entries")
	}
	if entries == nil {
		entries = []attendance.EntryLog{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *APIService) handleSummary(c echo.Context) error {
	hours, err := s.bindHours(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	entries, summary, err := s.coreService.Report(ctx, hours)
	if err != nil {
		slog.Error("summary failed", "hours", hours, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to build summary")
	}
	return c.JSON(http.StatusOK, SummaryResponse{Summary: summary, Entries: len(entries)})
}
