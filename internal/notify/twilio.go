package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jo-hoe/platewatch/internal/attendance"
)

// DefaultTwilioBaseURL is the Twilio REST API endpoint
const DefaultTwilioBaseURL = "https://api.twilio.com"

// TwilioConfig holds the SMS gateway credentials and recipients
type TwilioConfig struct {
	AccountSID string   `yaml:"accountSid"`
	AuthToken  string   `yaml:"authToken"`
	FromNumber string   `yaml:"fromNumber"`
	ToNumbers  []string `yaml:"toNumbers"`
	BaseURL    string   `yaml:"baseUrl"`
}

// TwilioNotifier sends every message as SMS to all configured numbers
type TwilioNotifier struct {
	cfg    TwilioConfig
	client *http.Client
	now    func() time.Time
}

// NewTwilioNotifier creates a Twilio SMS notifier
func NewTwilioNotifier(cfg TwilioConfig, client *http.Client) (*TwilioNotifier, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("twilio account sid and auth token are required")
	}
	if cfg.FromNumber == "" || len(cfg.ToNumbers) == 0 {
		return nil, fmt.Errorf("twilio from number and at least one recipient are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTwilioBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TwilioNotifier{cfg: cfg, client: client, now: time.Now}, nil
}

// Notify sends the arrival message
func (t *TwilioNotifier) Notify(ctx context.Context, arrival attendance.Arrival) error {
	return t.broadcast(ctx, KindArrival, FormatArrival(arrival))
}

// NotifyError sends a system error message
func (t *TwilioNotifier) NotifyError(ctx context.Context, message string) error {
	return t.broadcast(ctx, KindError, FormatError(message, t.now()))
}

// NotifyReport sends the summary report
func (t *TwilioNotifier) NotifyReport(ctx context.Context, summary attendance.Summary) error {
	return t.broadcast(ctx, KindReport, FormatReport(summary, t.now()))
}

// broadcast delivers body to every recipient; one failing recipient does not stop the others
func (t *TwilioNotifier) broadcast(ctx context.Context, kind Kind, body string) error {
	var errs []error
	for _, to := range t.cfg.ToNumbers {
		if err := t.send(ctx, to, body); err != nil {
			slog.Warn("failed to send notification", "kind", string(kind), "to", to, "error", err)
			errs = append(errs, fmt.Errorf("send to %s: %w", to, err))
			continue
		}
		slog.Info("notification sent", "kind", string(kind), "to", to)
	}
	return errors.Join(errs...)
}

func (t *TwilioNotifier) send(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("From", t.cfg.FromNumber)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.cfg.BaseURL, url.PathEscape(t.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}
