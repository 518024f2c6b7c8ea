package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the plate pipeline.
type Metrics struct {
	// Processed images by pipeline outcome
	ImageOutcomes *prometheus.CounterVec

	// Persisted entries by status
	EntriesRecorded *prometheus.CounterVec

	// Failed notification deliveries by kind
	NotificationFailures *prometheus.CounterVec

	// Dropped notifications when the dispatch queue is full
	NotificationsDropped prometheus.Counter

	// Stage latencies (locate, read, lookup, record, annotate)
	StageLatency *prometheus.HistogramVec
}

// New creates a new Metrics instance registered with reg.
// A nil reg registers with the default prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ImageOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "platewatch_images_processed_total",
			Help: "Total processed images by pipeline outcome",
		}, []string{"outcome"}), // outcome: "recorded", "no_plate", "unreadable", "failed"

		EntriesRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "platewatch_entries_recorded_total",
			Help: "Total persisted entry logs by status",
		}, []string{"status"}),

		NotificationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "platewatch_notification_failures_total",
			Help: "Total failed notification deliveries by kind",
		}, []string{"kind"}), // kind: "arrival", "error", "report"

		NotificationsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "platewatch_notifications_dropped_total",
			Help: "Total notifications dropped because the dispatch queue was full",
		}),

		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "platewatch_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"stage"}),
	}
}

// IncrementOutcome records the outcome of one processed image.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.ImageOutcomes.WithLabelValues(outcome).Inc()
	}
}

// IncrementEntry records a persisted entry.
func (m *Metrics) IncrementEntry(status string) {
	if m != nil {
		m.EntriesRecorded.WithLabelValues(status).Inc()
	}
}

// IncrementNotificationFailure records a failed notification delivery.
func (m *Metrics) IncrementNotificationFailure(kind string) {
	if m != nil {
		m.NotificationFailures.WithLabelValues(kind).Inc()
	}
}

// IncrementNotificationDropped records a notification dropped by the dispatcher.
func (m *Metrics) IncrementNotificationDropped() {
	if m != nil {
		m.NotificationsDropped.Inc()
	}
}

// ObserveStage records the duration of a pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}
