package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jo-hoe/platewatch/internal/attendance"
)

// RedisConfig configures the Redis notification queue
type RedisConfig struct {
	URL    string `yaml:"url"`
	Key    string `yaml:"key"`
	MaxLen int64  `yaml:"maxLen"`
}

const (
	defaultRedisKey    = "platewatch:notifications"
	defaultRedisMaxLen = 1000
)

// Message is the JSON document pushed onto the queue
type Message struct {
	Kind      Kind                 `json:"kind"`
	Body      string               `json:"body"`
	Timestamp time.Time            `json:"timestamp"`
	Entry     *attendance.EntryLog `json:"entry,omitempty"`
	Summary   *attendance.Summary  `json:"summary,omitempty"`
}

// RedisNotifier pushes messages onto a capped Redis list for downstream consumers
type RedisNotifier struct {
	client *redis.Client
	key    string
	maxLen int64
	now    func() time.Time
}

// NewRedisNotifier connects to Redis and verifies the connection
func NewRedisNotifier(ctx context.Context, cfg RedisConfig) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisNotifierWithClient(client, cfg.Key, cfg.MaxLen), nil
}

// NewRedisNotifierWithClient wraps an existing client; empty key and non-positive maxLen use defaults
func NewRedisNotifierWithClient(client *redis.Client, key string, maxLen int64) *RedisNotifier {
	if key == "" {
		key = defaultRedisKey
	}
	if maxLen <= 0 {
		maxLen = defaultRedisMaxLen
	}
	return &RedisNotifier{client: client, key: key, maxLen: maxLen, now: time.Now}
}

// Notify queues the arrival message
func (r *RedisNotifier) Notify(ctx context.Context, arrival attendance.Arrival) error {
	entry := arrival.Entry
	return r.push(ctx, Message{
		Kind:      KindArrival,
		Body:      FormatArrival(arrival),
		Timestamp: entry.Timestamp,
		Entry:     &entry,
	})
}

// NotifyError queues a system error message
func (r *RedisNotifier) NotifyError(ctx context.Context, message string) error {
	now := r.now()
	return r.push(ctx, Message{
		Kind:      KindError,
		Body:      FormatError(message, now),
		Timestamp: now,
	})
}

// NotifyReport queues the summary report
func (r *RedisNotifier) NotifyReport(ctx context.Context, summary attendance.Summary) error {
	now := r.now()
	return r.push(ctx, Message{
		Kind:      KindReport,
		Body:      FormatReport(summary, now),
		Timestamp: now,
		Summary:   &summary,
	})
}

func (r *RedisNotifier) push(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, r.key, payload)
	pipe.LTrim(ctx, r.key, -r.maxLen, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisNotifier) Close() error {
	return r.client.Close()
}
