package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bobmcallan/stacker/internal/models"
)

// EventExecutionSent is the event name carried by webhook payloads.
const EventExecutionSent = "execution.sent"

// WebhookPayload is the JSON body posted to a plan's webhook URL.
type WebhookPayload struct {
	Event     string            `json:"event"`
	UserID    string            `json:"user_id"`
	YMCycle   string            `json:"ym_cycle"`
	Text      string            `json:"text"`
	Execution *models.Execution `json:"execution"`
}

// WebhookSender posts order sheets as JSON.
type WebhookSender struct {
	client *http.Client
}

func NewWebhookSender(timeout time.Duration) *WebhookSender {
	return &WebhookSender{client: &http.Client{Timeout: timeout}}
}

// WebhookError reports a non-2xx webhook response.
type WebhookError struct {
	StatusCode int
	Body       string
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("webhook returned status %d: %s", e.StatusCode, e.Body)
}

func (s *WebhookSender) Send(ctx context.Context, url string, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &WebhookError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	return nil
}
