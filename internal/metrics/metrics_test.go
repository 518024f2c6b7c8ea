package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementOutcome("recorded")
	m.IncrementOutcome("recorded")
	m.IncrementOutcome("no_plate")
	m.IncrementEntry("LATE")
	m.IncrementNotificationFailure("arrival")
	m.IncrementNotificationDropped()
	m.ObserveStage("locate", 20*time.Millisecond)

	if got := testutil.ToFloat64(m.ImageOutcomes.WithLabelValues("recorded")); got != 2 {
		t.Errorf("expected 2 recorded outcomes, got %v", got)
	}
	if got := testutil.ToFloat64(m.ImageOutcomes.WithLabelValues("no_plate")); got != 1 {
		t.Errorf("expected 1 no_plate outcome, got %v", got)
	}
	if got := testutil.ToFloat64(m.EntriesRecorded.WithLabelValues("LATE")); got != 1 {
		t.Errorf("expected 1 late entry, got %v", got)
	}
	if got := testutil.ToFloat64(m.NotificationFailures.WithLabelValues("arrival")); got != 1 {
		t.Errorf("expected 1 notification failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.NotificationsDropped); got != 1 {
		t.Errorf("expected 1 dropped notification, got %v", got)
	}
	if got := testutil.CollectAndCount(m.StageLatency); got != 1 {
		t.Errorf("expected 1 stage series, got %d", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.IncrementOutcome("failed")
	m.IncrementEntry("ON_TIME")
	m.IncrementNotificationFailure("error")
	m.IncrementNotificationDropped()
	m.ObserveStage("read", time.Second)
}

func TestNew_SeparateRegistries(t *testing.T) {
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
