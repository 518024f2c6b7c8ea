package notify

import (
	"context"
	"log/slog"

	"github.com/jo-hoe/platewatch/internal/attendance"
)

// LogNotifier writes notifications to the structured log
type LogNotifier struct{}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (l *LogNotifier) Notify(_ context.Context, arrival attendance.Arrival) error {
	attrs := []any{
		"plate", arrival.Entry.LicensePlate,
		"employee", arrival.Entry.EmployeeName,
		"status", arrival.Entry.Status.Label(),
	}
	if arrival.Entry.MinutesLate != nil {
		attrs = append(attrs, "minutesLate", *arrival.Entry.MinutesLate)
	}
	slog.Info("arrival", attrs...)
	return nil
}

func (l *LogNotifier) NotifyError(_ context.Context, message string) error {
	slog.Error("system error", "message", message)
	return nil
}

func (l *LogNotifier) NotifyReport(_ context.Context, summary attendance.Summary) error {
	slog.Info("summary report",
		"since", summary.Since,
		"total", summary.Total,
		"onTime", summary.OnTime,
		"late", summary.Late,
		"invalid", summary.Invalid)
	return nil
}
