package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/jo-hoe/platewatch/internal/attendance"
	"github.com/jo-hoe/platewatch/internal/metrics"
)

func lateArrival() attendance.Arrival {
	minutes := 20
	expected := attendance.MustParseTimeOfDay("09:00")
	return attendance.Arrival{
		Entry: attendance.EntryLog{
			ID:           "id-1",
			LicensePlate: "HR26DK8337",
			Timestamp:    time.Date(2024, 5, 6, 9, 20, 0, 0, time.UTC),
			EmployeeName: "John Doe",
			Department:   "IT",
			Status:       attendance.StatusLate,
			MinutesLate:  &minutes,
		},
		ExpectedArrival: &expected,
	}
}

func TestFormatArrival(t *testing.T) {
	late := FormatArrival(lateArrival())
	for _, want := range []string{"Late Arrival", "HR26DK8337", "John Doe", "Minutes Late: 20", "Expected: 09:00 AM", "Time: 09:20 AM"} {
		if !strings.Contains(late, want) {
			t.Errorf("late message %q does not contain %q", late, want)
		}
	}

	onTime := lateArrival()
	zero := 0
	onTime.Entry.Status = attendance.StatusOnTime
	onTime.Entry.MinutesLate = &zero
	onTime.Entry.Timestamp = time.Date(2024, 5, 6, 14, 5, 0, 0, time.UTC)
	msg := FormatArrival(onTime)
	if !strings.Contains(msg, "On-Time Arrival") || !strings.Contains(msg, "Time: 02:05 PM") || strings.Contains(msg, "Minutes Late") {
		t.Errorf("unexpected on-time message %q", msg)
	}

	unknown := attendance.Arrival{Entry: attendance.EntryLog{LicensePlate: "XX11", Status: attendance.StatusInvalid, EmployeeName: attendance.UnknownEmployee}}
	msg = FormatArrival(unknown)
	if !strings.Contains(msg, "Unknown Vehicle") || strings.Contains(msg, "Employee:") {
		t.Errorf("unexpected unknown message %q", msg)
	}
}

func TestFormatReportAndError(t *testing.T) {
	now := time.Date(2024, 5, 6, 18, 0, 0, 0, time.UTC)
	report := FormatReport(attendance.Summary{Total: 4, OnTime: 1, Late: 2, Invalid: 1}, now)
	for _, want := range []string{"Total Entries: 4", "On Time: 1", "Late: 2", "Invalid/Unknown: 1", "06:00 PM"} {
		if !strings.Contains(report, want) {
			t.Errorf("report %q does not contain %q", report, want)
		}
	}
	if msg := FormatError("camera offline", now); !strings.Contains(msg, "System Error") || !strings.Contains(msg, "camera offline") {
		t.Errorf("unexpected error message %q", msg)
	}
}

type twilioRequest struct {
	path string
	user string
	pass string
	to   string
	from string
	body string
}

func newTwilioServer(t *testing.T, failFor string) (*httptest.Server, *[]twilioRequest, *sync.Mutex) {
	t.Helper()
	var mu sync.Mutex
	var requests []twilioRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		user, pass, _ := r.BasicAuth()
		mu.Lock()
		requests = append(requests, twilioRequest{
			path: r.URL.Path,
			user: user,
			pass: pass,
			to:   r.PostForm.Get("To"),
			from: r.PostForm.Get("From"),
			body: r.PostForm.Get("Body"),
		})
		mu.Unlock()
		if r.PostForm.Get("To") == failFor {
			http.Error(w, `{"message":"invalid number"}`, http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM123"}`))
	}))
	t.Cleanup(server.Close)
	return server, &requests, &mu
}

func TestTwilioNotifier_SendsToEveryNumber(t *testing.T) {
	server, requests, mu := newTwilioServer(t, "")
	notifier, err := NewTwilioNotifier(TwilioConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+15550000",
		ToNumbers:  []string{"+15551111", "+15552222"},
		BaseURL:    server.URL,
	}, server.Client())
	if err != nil {
		t.Fatalf("NewTwilioNotifier failed: %v", err)
	}

	if err := notifier.Notify(context.Background(), lateArrival()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(*requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(*requests))
	}
	for i, req := range *requests {
		if req.path != "/2010-04-01/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected path %s", req.path)
		}
		if req.user != "AC123" || req.pass != "secret" {
			t.Errorf("unexpected basic auth %s:%s", req.user, req.pass)
		}
		if req.from != "+15550000" || req.to != []string{"+15551111", "+15552222"}[i] {
			t.Errorf("unexpected from/to %s/%s", req.from, req.to)
		}
		if !strings.Contains(req.body, "HR26DK8337") {
			t.Errorf("unexpected body %q", req.body)
		}
	}
}

func TestTwilioNotifier_PerNumberFailure(t *testing.T) {
	server, requests, mu := newTwilioServer(t, "+15551111")
	notifier, err := NewTwilioNotifier(TwilioConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		FromNumber: "+15550000",
		ToNumbers:  []string{"+15551111", "+15552222"},
		BaseURL:    server.URL + "/",
	}, server.Client())
	if err != nil {
		t.Fatalf("NewTwilioNotifier failed: %v", err)
	}

	err = notifier.NotifyError(context.Background(), "camera offline")
	if err == nil || !strings.Contains(err.Error(), "+15551111") {
		t.Fatalf("expected failure for the first number, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(*requests) != 2 {
		t.Errorf("expected delivery to continue after a failure, got %d requests", len(*requests))
	}
}

func TestNewTwilioNotifier_RequiresCredentials(t *testing.T) {
	if _, err := NewTwilioNotifier(TwilioConfig{FromNumber: "+1", ToNumbers: []string{"+2"}}, nil); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewTwilioNotifier(TwilioConfig{AccountSID: "a", AuthToken: "b", FromNumber: "+1"}, nil); err == nil {
		t.Error("expected error without recipients")
	}
}

func TestRedisNotifier_PushesCappedQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	notifier := NewRedisNotifierWithClient(client, "test:notifications", 2)
	defer notifier.Close()

	ctx := context.Background()
	if err := notifier.Notify(ctx, lateArrival()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if err := notifier.NotifyError(ctx, "camera offline"); err != nil {
		t.Fatalf("NotifyError failed: %v", err)
	}
	if err := notifier.NotifyReport(ctx, attendance.Summary{Total: 3}); err != nil {
		t.Fatalf("NotifyReport failed: %v", err)
	}

	items, err := mr.List("test:notifications")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected queue capped at 2, got %d", len(items))
	}

	var first, last Message
	if err := json.Unmarshal([]byte(items[0]), &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := json.Unmarshal([]byte(items[1]), &last); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first.Kind != KindError || !strings.Contains(first.Body, "camera offline") {
		t.Errorf("unexpected first message %+v", first)
	}
	if last.Kind != KindReport || last.Summary == nil || last.Summary.Total != 3 {
		t.Errorf("unexpected last message %+v", last)
	}
}

func TestNewRedisNotifier_ConnectsByURL(t *testing.T) {
	mr := miniredis.RunT(t)
	notifier, err := NewRedisNotifier(context.Background(), RedisConfig{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedisNotifier failed: %v", err)
	}
	defer notifier.Close()

	if err := notifier.Notify(context.Background(), lateArrival()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	items, err := mr.List(defaultRedisKey)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one queued message, got %v (%v)", items, err)
	}

	if _, err := NewRedisNotifier(context.Background(), RedisConfig{URL: "not a url"}); err == nil {
		t.Error("expected error for invalid URL")
	}
}

type blockingNotifier struct {
	release chan struct{}
	mu      sync.Mutex
	sent    []Kind
	err     error
}

func (b *blockingNotifier) record(kind Kind) error {
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, kind)
	return b.err
}

func (b *blockingNotifier) Notify(context.Context, attendance.Arrival) error {
	return b.record(KindArrival)
}

func (b *blockingNotifier) NotifyError(context.Context, string) error {
	return b.record(KindError)
}

func (b *blockingNotifier) NotifyReport(context.Context, attendance.Summary) error {
	return b.record(KindReport)
}

func TestDispatcher_NeverBlocksWhenFull(t *testing.T) {
	next := &blockingNotifier{release: make(chan struct{})}
	m := metrics.New(prometheus.NewRegistry())
	dispatcher := NewDispatcher(next, 1, m)

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			if err := dispatcher.Notify(ctx, lateArrival()); err != nil {
				t.Errorf("Notify returned %v", err)
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked while the worker was busy")
	}

	close(next.release)
	if err := dispatcher.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	next.mu.Lock()
	delivered := len(next.sent)
	next.mu.Unlock()
	dropped := int(testutil.ToFloat64(m.NotificationsDropped))
	if delivered+dropped != 10 {
		t.Errorf("expected delivered (%d) + dropped (%d) == 10", delivered, dropped)
	}
	if delivered == 0 || dropped == 0 {
		t.Errorf("expected both deliveries and drops, got %d delivered and %d dropped", delivered, dropped)
	}
}

func TestDispatcher_DrainsOnClose(t *testing.T) {
	next := &blockingNotifier{release: make(chan struct{}), err: errors.New("gateway down")}
	close(next.release)
	m := metrics.New(prometheus.NewRegistry())
	dispatcher := NewDispatcher(next, 8, m)

	ctx, cancel := context.WithCancel(context.Background())
	_ = dispatcher.NotifyError(ctx, "first")
	_ = dispatcher.NotifyReport(ctx, attendance.Summary{})
	cancel()

	if err := dispatcher.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	next.mu.Lock()
	defer next.mu.Unlock()
	if len(next.sent) != 2 || next.sent[0] != KindError || next.sent[1] != KindReport {
		t.Errorf("expected both messages delivered in order, got %v", next.sent)
	}
	if got := testutil.ToFloat64(m.NotificationFailures.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed error notification, got %v", got)
	}
	if err := dispatcher.Notify(context.Background(), lateArrival()); !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("expected ErrDispatcherClosed after Close, got %v", err)
	}
}

func TestLogNotifier(t *testing.T) {
	notifier := NewLogNotifier()
	ctx := context.Background()
	if err := notifier.Notify(ctx, lateArrival()); err != nil {
		t.Errorf("Notify failed: %v", err)
	}
	if err := notifier.NotifyError(ctx, "oops"); err != nil {
		t.Errorf("NotifyError failed: %v", err)
	}
	if err := notifier.NotifyReport(ctx, attendance.Summary{}); err != nil {
		t.Errorf("NotifyReport failed: %v", err)
	}
}
