// Package notify delivers job completion messages to callers that asked for
// them.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Message is the completion payload sent when a job finishes, whatever the
// outcome.
type Message struct {
	ID         string `json:"id"`
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	Parameters any    `json:"parameters,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Nop discards every message. Used when no completion endpoint is configured.
type Nop struct{}

func (Nop) Notify(context.Context, Message) error { return nil }

// Webhook POSTs completion messages as JSON to a fixed endpoint.
type Webhook struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewWebhook(url string, timeout time.Duration, logger *zap.Logger) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (w *Webhook) Notify(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal completion message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver completion message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("completion endpoint returned status %d", resp.StatusCode)
	}
	w.logger.Debug("delivered completion message",
		zap.String("job", msg.ID),
		zap.String("status", msg.Status),
	)
	return nil
}
