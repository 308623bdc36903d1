// Package notify is the fire-and-forget HTTP client for the external
// notification collaborator. Delivery guarantees live with the jobs worker
// (retry, DLQ), not here.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpc: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

type Reminder struct {
	BookingID    string         `json:"booking_id"`
	BusinessID   string         `json:"business_id"`
	Channel      string         `json:"channel"`
	Recipient    string         `json:"recipient"`
	RemindAt     time.Time      `json:"remind_at"`
	TemplateData map[string]any `json:"template_data,omitempty"`
}

func (c *Client) SendReminder(ctx context.Context, r Reminder) error {
	if c.baseURL == "" {
		c.logger.Debug("notification endpoint not configured, dropping reminder", "booking_id", r.BookingID)
		return nil
	}

	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/notifications/reminders", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification service returned %d", resp.StatusCode)
	}
	return nil
}
