package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jo-hoe/platewatch/internal/metrics"
)

// ErrPersistEntry marks a failure to write an entry to the log
var ErrPersistEntry = errors.New("failed to persist entry")

// Roster resolves plates to employees
type Roster interface {
	// FindEmployeeByPlate returns nil and no error when no employee owns the plate
	FindEmployeeByPlate(ctx context.Context, plate string) (*Employee, error)
}

// EntryStore is the append-only arrival log
type EntryStore interface {
	AppendEntry(ctx context.Context, entry EntryLog) error
	ListEntriesSince(ctx context.Context, since time.Time) ([]EntryLog, error)
}

// Arrival is what gets announced after an entry was recorded
type Arrival struct {
	Entry           EntryLog
	ExpectedArrival *TimeOfDay
}

// Notifier delivers arrival, error and report messages
type Notifier interface {
	Notify(ctx context.Context, arrival Arrival) error
	NotifyError(ctx context.Context, message string) error
	NotifyReport(ctx context.Context, summary Summary) error
}

// Recorder classifies, persists and announces arrivals
type Recorder struct {
	store    EntryStore
	notifier Notifier
	metrics  *metrics.Metrics
	location *time.Location
	now      func() time.Time
}

// RecorderOption customizes a Recorder
type RecorderOption func(*Recorder)

// WithClock replaces the wall clock used for entry timestamps
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithLocation sets the time zone arrivals are classified in
func WithLocation(loc *time.Location) RecorderOption {
	return func(r *Recorder) {
		if loc != nil {
			r.location = loc
		}
	}
}

// WithMetrics attaches metrics
func WithMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// NewRecorder creates a recorder; notifier may be nil to disable notifications
func NewRecorder(store EntryStore, notifier Notifier, opts ...RecorderOption) (*Recorder, error) {
	if store == nil {
		return nil, fmt.Errorf("entry store is required")
	}
	r := &Recorder{
		store:    store,
		notifier: notifier,
		location: time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record stamps, classifies and persists an arrival of plate, then notifies.
// emp is nil for an unknown plate. A notification failure never fails the record.
func (r *Recorder) Record(ctx context.Context, plate string, emp *Employee) (EntryLog, error) {
	timestamp := r.now().In(r.location)
	status, minutesLate := Classify(emp, timestamp)

	entry := EntryLog{
		ID:           uuid.NewString(),
		LicensePlate: plate,
		Timestamp:    timestamp,
		EmployeeName: UnknownEmployee,
		Department:   UnknownEmployee,
		Status:       status,
		MinutesLate:  minutesLate,
	}
	var expected *TimeOfDay
	if emp != nil {
		entry.EmployeeName = emp.Name
		entry.Department = emp.Department
		arrival := emp.ExpectedArrival
		expected = &arrival
	}

	if err := r.store.AppendEntry(ctx, entry); err != nil {
		slog.Error("failed to persist entry", "plate", plate, "error", err)
		return EntryLog{}, fmt.Errorf("%w: %w", ErrPersistEntry, err)
	}
	r.metrics.IncrementEntry(string(status))

	slog.Info("entry recorded",
		"id", entry.ID,
		"plate", plate,
		"employee", entry.EmployeeName,
		"status", string(status))

	r.notify(ctx, Arrival{Entry: entry, ExpectedArrival: expected})
	return entry, nil
}

func (r *Recorder) notify(ctx context.Context, arrival Arrival) {
	if r.notifier == nil {
		return
	}
	err := r.notifier.Notify(ctx, arrival)
	if err == nil {
		return
	}

	r.metrics.IncrementNotificationFailure("arrival")
	slog.Warn("arrival notification failed", "id", arrival.Entry.ID, "error", err)

	msg := fmt.Sprintf("Failed to send arrival notification for %s: %v", arrival.Entry.LicensePlate, err)
	if err := r.notifier.NotifyError(ctx, msg); err != nil {
		r.metrics.IncrementNotificationFailure("error")
		slog.Warn("error notification failed", "error", err)
	}
}
