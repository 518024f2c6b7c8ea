package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/jo-hoe/platewatch/internal/attendance"
	"github.com/jo-hoe/platewatch/internal/metrics"
	"github.com/jo-hoe/platewatch/internal/plate"
)

// Outcome classifies how processing of one image ended
type Outcome string

const (
	OutcomeRecorded   Outcome = "recorded"
	OutcomeNoPlate    Outcome = "no_plate"
	OutcomeUnreadable Outcome = "unreadable"
	OutcomeFailed     Outcome = "failed"
)

// Locator finds the plate region in an image
type Locator interface {
	Locate(img image.Image) (plate.Region, error)
}

// PlateReader recognizes the text of a plate region
type PlateReader interface {
	Read(ctx context.Context, region plate.Region) (plate.Recognized, error)
}

// EntryRecorder persists and announces an arrival
type EntryRecorder interface {
	Record(ctx context.Context, plate string, emp *attendance.Employee) (attendance.EntryLog, error)
}

// Result describes the processing of one image. Reason explains why no entry was
// written for misses and failures.
type Result struct {
	Outcome    Outcome
	Reason     error
	Plate      string
	Confidence float64
	Box        plate.Rect
	Entry      *attendance.EntryLog
	Annotated  *image.RGBA
}

// Pipeline runs locate, read, lookup, record and annotate for single images.
// A Pipeline is not safe for concurrent use.
type Pipeline struct {
	locator  Locator
	reader   PlateReader
	roster   attendance.Roster
	recorder EntryRecorder
	notifier attendance.Notifier
	metrics  *metrics.Metrics
}

// New creates a pipeline; notifier receives failure reports and may be nil
func New(locator Locator, reader PlateReader, roster attendance.Roster, recorder EntryRecorder, notifier attendance.Notifier, m *metrics.Metrics) (*Pipeline, error) {
	if locator == nil || reader == nil || roster == nil || recorder == nil {
		return nil, fmt.Errorf("locator, reader, roster and recorder are required")
	}
	return &Pipeline{
		locator:  locator,
		reader:   reader,
		roster:   roster,
		recorder: recorder,
		notifier: notifier,
		metrics:  m,
	}, nil
}

// Process runs the pipeline on img. Misses (no plate, unreadable text) return a
// nil error; lookup and persistence failures and recovered panics return the error
// and are reported through the notifier.
func (p *Pipeline) Process(ctx context.Context, img image.Image) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pipeline panic: %v", rec)
			result = p.fail(ctx, Result{}, err)
		}
		p.metrics.IncrementOutcome(string(result.Outcome))
	}()

	if img == nil {
		err = errors.New("image is nil")
		return p.fail(ctx, Result{}, err), err
	}

	start := time.Now()
	region, err := p.locator.Locate(img)
	p.metrics.ObserveStage("locate", time.Since(start))
	if err != nil {
		if errors.Is(err, plate.ErrNoPlateDetected) {
			slog.Info("no plate detected")
			return Result{Outcome: OutcomeNoPlate, Reason: err}, nil
		}
		err = fmt.Errorf("locate plate: %w", err)
		return p.fail(ctx, Result{}, err), err
	}
	result = Result{Box: region.Box}

	start = time.Now()
	recognized, err := p.reader.Read(ctx, region)
	p.metrics.ObserveStage("read", time.Since(start))
	if err != nil {
		if errors.Is(err, plate.ErrNoText) || errors.Is(err, plate.ErrTooShort) || errors.Is(err, plate.ErrEngineFailure) {
			slog.Info("plate unreadable", "reason", err)
			result.Outcome = OutcomeUnreadable
			result.Reason = err
			return result, nil
		}
		err = fmt.Errorf("read plate: %w", err)
		return p.fail(ctx, result, err), err
	}
	result.Plate = recognized.Text
	result.Confidence = recognized.Confidence

	start = time.Now()
	employee, err := p.roster.FindEmployeeByPlate(ctx, recognized.Text)
	p.metrics.ObserveStage("lookup", time.Since(start))
	if err != nil {
		err = fmt.Errorf("look up plate %s: %w", recognized.Text, err)
		return p.fail(ctx, result, err), err
	}

	start = time.Now()
	entry, err := p.recorder.Record(ctx, recognized.Text, employee)
	p.metrics.ObserveStage("record", time.Since(start))
	if err != nil {
		err = fmt.Errorf("record entry for %s: %w", recognized.Text, err)
		return p.fail(ctx, result, err), err
	}
	result.Entry = &entry

	start = time.Now()
	result.Annotated = Annotate(img, region.Box, entry)
	p.metrics.ObserveStage("annotate", time.Since(start))

	result.Outcome = OutcomeRecorded
	slog.Info("image processed",
		"plate", entry.LicensePlate,
		"confidence", recognized.Confidence,
		"status", string(entry.Status))
	return result, nil
}

func (p *Pipeline) fail(ctx context.Context, result Result, err error) Result {
	result.Outcome = OutcomeFailed
	result.Reason = err
	result.Annotated = nil
	slog.Error("image processing failed", "error", err)

	if p.notifier != nil {
		if nerr := p.notifier.NotifyError(ctx, fmt.Sprintf("Error processing image: %v", err)); nerr != nil {
			p.metrics.IncrementNotificationFailure("error")
			slog.Warn("error notification failed", "error", nerr)
		}
	}
	return result
}
