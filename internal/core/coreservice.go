package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jo-hoe/platewatch/internal/attendance"
	"github.com/jo-hoe/platewatch/internal/backend/commandstructure"
	"github.com/jo-hoe/platewatch/internal/backend/database"
	"github.com/jo-hoe/platewatch/internal/backend/imageio"
	"github.com/jo-hoe/platewatch/internal/backend/ocr"
	"github.com/jo-hoe/platewatch/internal/metrics"
	"github.com/jo-hoe/platewatch/internal/notify"
	"github.com/jo-hoe/platewatch/internal/pipeline"
	"github.com/jo-hoe/platewatch/internal/plate"
)

const closeTimeout = 30 * time.Second

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	notifier        attendance.Notifier
	dispatcher      *notify.Dispatcher
	closers         []func() error
	pipeline        *pipeline.Pipeline
	decoder         *imageio.Decoder
	registry        *prometheus.Registry
	metrics         *metrics.Metrics
	location        *time.Location
	now             func() time.Time

	// pipeline runs are serialised
	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

type options struct {
	engine   plate.Engine
	notifier attendance.Notifier
	now      func() time.Time
}

// Option customizes the core service wiring
type Option func(*options)

// WithEngine replaces the configured recognition engine
func WithEngine(engine plate.Engine) Option {
	return func(o *options) {
		o.engine = engine
	}
}

// WithNotifier replaces the configured notification channel
func WithNotifier(notifier attendance.Notifier) Option {
	return func(o *options) {
		o.notifier = notifier
	}
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func NewCoreService(config *ServiceConfig, opts ...Option) (*CoreService, error) {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	location, err := config.Location()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	databaseService, err := getDatabaseService(config)
	if err != nil {
		return nil, err
	}

	service := &CoreService{
		config:          config,
		databaseService: databaseService,
		decoder:         imageio.NewDecoder(config.Input.SVGFallback.Width, config.Input.SVGFallback.Height),
		registry:        registry,
		metrics:         m,
		location:        location,
		now:             o.now,
	}
	service.closers = append(service.closers, databaseService.Close)

	if err := service.initNotifier(o.notifier); err != nil {
		_ = service.Close()
		return nil, err
	}
	if err := service.initPipeline(o.engine); err != nil {
		_ = service.Close()
		return nil, err
	}
	return service, nil
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}

func (service *CoreService) initNotifier(override attendance.Notifier) error {
	next := override
	if next == nil {
		cfg := service.config.Notification
		switch cfg.Type {
		case "twilio":
			twilio, err := notify.NewTwilioNotifier(cfg.Twilio, nil)
			if err != nil {
				return fmt.Errorf("failed to initialize twilio notifier: %w", err)
			}
			next = twilio
		case "redis":
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			redisNotifier, err := notify.NewRedisNotifier(ctx, cfg.Redis)
			if err != nil {
				return fmt.Errorf("failed to initialize redis notifier: %w", err)
			}
			service.closers = append(service.closers, redisNotifier.Close)
			next = redisNotifier
		default:
			next = notify.NewLogNotifier()
		}
		slog.Info("notifier initialized", "type", cfg.Type)
	}

	service.dispatcher = notify.NewDispatcher(next, service.config.Notification.QueueSize, service.metrics)
	service.notifier = service.dispatcher
	return nil
}

func (service *CoreService) initPipeline(engine plate.Engine) error {
	config := service.config

	detector, err := plate.NewCascadeDetector(config.cascadeParams())
	if err != nil {
		return err
	}
	tieBreak, err := plate.ParseTieBreak(config.Localizer.TieBreak)
	if err != nil {
		return err
	}
	localizerOpts := []plate.LocalizerOption{plate.WithTieBreak(tieBreak)}
	if config.Localizer.Padding != nil {
		localizerOpts = append(localizerOpts, plate.WithPadding(*config.Localizer.Padding))
	}
	if config.Localizer.Preprocess != nil {
		chain, err := commandstructure.BuildCommands(toCommandConfigs(config.Localizer.Preprocess))
		if err != nil {
			return fmt.Errorf("invalid localizer preprocessing: %w", err)
		}
		localizerOpts = append(localizerOpts, plate.WithPreprocessing(commandstructure.NewCommandInvoker(chain)))
	}
	localizer, err := plate.NewLocalizer(detector, localizerOpts...)
	if err != nil {
		return err
	}

	if engine == nil {
		engine, err = ocr.NewEngine(config.Reader.Engine)
		if err != nil {
			return err
		}
	}
	readerOpts := []plate.ReaderOption{plate.WithMinLength(config.Reader.MinLength)}
	if config.Reader.Preprocess != nil {
		chain, err := commandstructure.BuildCommands(toCommandConfigs(config.Reader.Preprocess))
		if err != nil {
			return fmt.Errorf("invalid reader preprocessing: %w", err)
		}
		readerOpts = append(readerOpts, plate.WithReaderPreprocessing(commandstructure.NewCommandInvoker(chain)))
	}
	reader, err := plate.NewReader(engine, readerOpts...)
	if err != nil {
		return err
	}

	recorder, err := attendance.NewRecorder(service.databaseService, service.notifier,
		attendance.WithClock(service.now),
		attendance.WithLocation(service.location),
		attendance.WithMetrics(service.metrics))
	if err != nil {
		return err
	}

	service.pipeline, err = pipeline.New(localizer, reader, service.databaseService, recorder, service.notifier, service.metrics)
	return err
}

// Gatherer exposes the service metrics registry
func (service *CoreService) Gatherer() prometheus.Gatherer {
	return service.registry
}

// Config returns the service configuration
func (service *CoreService) Config() *ServiceConfig {
	return service.config
}

// ProcessImage decodes raw image bytes and runs the pipeline on them
func (service *CoreService) ProcessImage(ctx context.Context, data []byte) (pipeline.Result, error) {
	img, err := service.decoder.Decode(data)
	if err != nil {
		return pipeline.Result{Outcome: pipeline.OutcomeFailed, Reason: err}, err
	}

	service.mu.Lock()
	defer service.mu.Unlock()
	return service.pipeline.Process(ctx, img)
}

// ProcessFile runs the pipeline on one image file
func (service *CoreService) ProcessFile(ctx context.Context, path string) (pipeline.Result, error) {
	img, err := service.decoder.DecodeFile(path)
	if err != nil {
		return pipeline.Result{Outcome: pipeline.OutcomeFailed, Reason: err}, err
	}

	service.mu.Lock()
	defer service.mu.Unlock()
	return service.pipeline.Process(ctx, img)
}

// FileResult is the outcome of one file of a batch
type FileResult struct {
	File   string
	Output string
	Result pipeline.Result
	Err    error
}

// BatchReport summarises a directory run
type BatchReport struct {
	Files []FileResult
}

// Count returns how many files ended with the given outcome
func (r BatchReport) Count(outcome pipeline.Outcome) int {
	n := 0
	for _, f := range r.Files {
		if f.Result.Outcome == outcome {
			n++
		}
	}
	return n
}

// ProcessDirectory runs the pipeline over every image of inputDir in name order and
// writes annotated images of recorded arrivals to outputDir. A single bad image never
// aborts the batch.
func (service *CoreService) ProcessDirectory(ctx context.Context, inputDir, outputDir string) (BatchReport, error) {
	var report BatchReport

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		service.NotifyError(ctx, fmt.Sprintf("Input directory not found: %s", inputDir))
		return report, fmt.Errorf("failed to read input directory %s: %w", inputDir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !service.acceptsExtension(entry.Name()) {
			continue
		}
		files = append(files, entry.Name())
	}
	slices.Sort(files)

	if len(files) == 0 {
		service.NotifyError(ctx, fmt.Sprintf("No images found in %s", inputDir))
		slog.Warn("no images found", "directory", inputDir)
		return report, nil
	}

	slog.Info("processing images", "directory", inputDir, "count", len(files))
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Files = append(report.Files, service.processBatchFile(ctx, inputDir, outputDir, name))
	}

	slog.Info("batch completed",
		"directory", inputDir,
		"recorded", report.Count(pipeline.OutcomeRecorded),
		"no_plate", report.Count(pipeline.OutcomeNoPlate),
		"unreadable", report.Count(pipeline.OutcomeUnreadable),
		"failed", report.Count(pipeline.OutcomeFailed))
	return report, nil
}

func (service *CoreService) processBatchFile(ctx context.Context, inputDir, outputDir, name string) FileResult {
	fileResult := FileResult{File: name}
	path := filepath.Join(inputDir, name)

	img, err := service.decoder.DecodeFile(path)
	if err != nil {
		slog.Error("failed to load image", "file", name, "error", err)
		service.NotifyError(ctx, fmt.Sprintf("Failed to load image: %s", name))
		fileResult.Result = pipeline.Result{Outcome: pipeline.OutcomeFailed, Reason: err}
		fileResult.Err = err
		return fileResult
	}

	service.mu.Lock()
	result, err := service.pipeline.Process(ctx, img)
	service.mu.Unlock()
	fileResult.Result = result
	fileResult.Err = err

	switch result.Outcome {
	case pipeline.OutcomeRecorded:
		out, err := imageio.WriteFile(outputDir, imageio.OutputName(name, service.now()), result.Annotated)
		if err != nil {
			slog.Error("failed to write annotated image", "file", name, "error", err)
			fileResult.Err = err
			return fileResult
		}
		fileResult.Output = out
		slog.Info("arrival recorded",
			"file", name,
			"plate", result.Plate,
			"employee", result.Entry.EmployeeName,
			"status", result.Entry.Status,
			"output", out)
	case pipeline.OutcomeFailed:
		slog.Error("image processing failed", "file", name, "error", err)
	default:
		slog.Info("no entry recorded", "file", name, "outcome", result.Outcome, "reason", result.Reason)
	}
	return fileResult
}

func (service *CoreService) acceptsExtension(name string) bool {
	return slices.Contains(service.config.Input.Extensions, strings.ToLower(filepath.Ext(name)))
}

// RecentEntries lists entries of the last hours, newest first
func (service *CoreService) RecentEntries(ctx context.Context, hours int) ([]attendance.EntryLog, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("hours must be positive, got %d", hours)
	}
	since := service.now().Add(-time.Duration(hours) * time.Hour)
	return service.databaseService.ListEntriesSince(ctx, since)
}

// Report summarises the last hours of entries and sends the summary as a report
func (service *CoreService) Report(ctx context.Context, hours int) ([]attendance.EntryLog, attendance.Summary, error) {
	entries, err := service.RecentEntries(ctx, hours)
	if err != nil {
		service.NotifyError(ctx, fmt.Sprintf("Error viewing logs: %v", err))
		return nil, attendance.Summary{}, err
	}

	since := service.now().Add(-time.Duration(hours) * time.Hour)
	summary := attendance.Summarize(since, entries)
	if err := service.notifier.NotifyReport(ctx, summary); err != nil {
		slog.Warn("report notification failed", "error", err)
	}
	return entries, summary, nil
}

// Seed inserts the configured roster, or the sample roster when none is configured
func (service *CoreService) Seed(ctx context.Context) (int, error) {
	roster := service.config.Roster
	if len(roster) == 0 {
		roster = database.SampleRoster()
	}
	n, err := database.SeedEmployees(ctx, service.databaseService, roster)
	if err != nil {
		return n, err
	}
	slog.Info("roster seeded", "employees", n)
	return n, nil
}

// Employees lists the roster
func (service *CoreService) Employees(ctx context.Context) ([]attendance.Employee, error) {
	return service.databaseService.ListEmployees(ctx)
}

// NotifyError reports a system error through the configured notifier
func (service *CoreService) NotifyError(ctx context.Context, message string) {
	if err := service.notifier.NotifyError(ctx, message); err != nil {
		slog.Warn("error notification failed", "error", err)
	}
}

// Close drains pending notifications and releases connections
func (service *CoreService) Close() error {
	service.closeOnce.Do(func() {
		service.closeErr = service.close()
	})
	return service.closeErr
}

func (service *CoreService) close() error {
	var errs []error
	if service.dispatcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		if err := service.dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain notifications: %w", err))
		}
		cancel()
	}
	for i := len(service.closers) - 1; i >= 0; i-- {
		if err := service.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
