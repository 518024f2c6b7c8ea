package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jo-hoe/platewatch/internal/attendance"
	"github.com/jo-hoe/platewatch/internal/metrics"
)

// ErrDispatcherClosed is returned for messages submitted after Close
var ErrDispatcherClosed = errors.New("notification dispatcher closed")

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 30 * time.Second
)

type job struct {
	kind Kind
	ctx  context.Context
	send func(ctx context.Context) error
}

// Dispatcher hands notifications to a single background worker so callers never
// wait on delivery. When the queue is full the message is dropped with a warning.
type Dispatcher struct {
	next        attendance.Notifier
	metrics     *metrics.Metrics
	sendTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan job
	done   chan struct{}
}

// NewDispatcher starts the worker delivering to next
func NewDispatcher(next attendance.Notifier, queueSize int, m *metrics.Metrics) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	d := &Dispatcher{
		next:        next,
		metrics:     m,
		sendTimeout: defaultSendTimeout,
		queue:       make(chan job, queueSize),
		done:        make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) Notify(ctx context.Context, arrival attendance.Arrival) error {
	return d.enqueue(ctx, KindArrival, func(ctx context.Context) error {
		return d.next.Notify(ctx, arrival)
	})
}

func (d *Dispatcher) NotifyError(ctx context.Context, message string) error {
	return d.enqueue(ctx, KindError, func(ctx context.Context) error {
		return d.next.NotifyError(ctx, message)
	})
}

func (d *Dispatcher) NotifyReport(ctx context.Context, summary attendance.Summary) error {
	return d.enqueue(ctx, KindReport, func(ctx context.Context) error {
		return d.next.NotifyReport(ctx, summary)
	})
}

func (d *Dispatcher) enqueue(ctx context.Context, kind Kind, send func(ctx context.Context) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- job{kind: kind, ctx: context.WithoutCancel(ctx), send: send}:
	default:
		d.metrics.IncrementNotificationDropped()
		slog.Warn("notification queue full, dropping message", "kind", string(kind), "capacity", cap(d.queue))
	}
	return nil
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for j := range d.queue {
		ctx, cancel := context.WithTimeout(j.ctx, d.sendTimeout)
		if err := j.send(ctx); err != nil {
			d.metrics.IncrementNotificationFailure(string(j.kind))
			slog.Warn("notification delivery failed", "kind", string(j.kind), "error", err)
		}
		cancel()
	}
}

// Close stops accepting messages and waits until the queue is drained or ctx ends
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
