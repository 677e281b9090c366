package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// webhookPayload is the JSON body posted for every alert.
type webhookPayload struct {
	Level      string   `json:"level"`
	Kind       string   `json:"kind,omitempty"`
	Symbol     string   `json:"symbol"`
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	Side       string   `json:"side,omitempty"`
	SpreadPips *float64 `json:"spread_pips,omitempty"`
	BarTime    string   `json:"bar_time,omitempty"`
	TraceID    string   `json:"trace_id,omitempty"`
	SentAt     string   `json:"sent_at"`
}

func newWebhookPayload(a Alert, now time.Time) webhookPayload {
	p := webhookPayload{
		Level:   string(a.Level),
		Kind:    string(a.Kind),
		Symbol:  a.Symbol,
		Title:   a.Title,
		Message: a.Message,
		TraceID: a.TraceID,
		SentAt:  now.UTC().Format(time.RFC3339Nano),
	}
	if a.Side.Valid() {
		p.Side = a.Side.String()
	}
	if a.SpreadPips > 0 {
		spread := a.SpreadPips
		p.SpreadPips = &spread
	}
	if !a.BarTime.IsZero() {
		p.BarTime = a.BarTime.UTC().Format(time.RFC3339)
	}
	return p
}

// WebhookNotifier posts robot alerts as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier posting to url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(newWebhookPayload(alert, time.Now()))
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send %s alert: %w", alert.Kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: %s alert: unexpected status %d", alert.Kind, resp.StatusCode)
	}

	slog.Debug("webhook alert sent", "component", "notification", "kind", string(alert.Kind), "symbol", alert.Symbol)
	return nil
}
