// internal/monitoring/alert.go
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/valpere/TikTokIngester/internal/utils"
)

// Alerter pushes a human-readable failure notice to an operator channel.
type Alerter interface {
	Alert(ctx context.Context, subject, detail string) error
}

// LogAlerter writes alerts to the service log only.
type LogAlerter struct {
	logger utils.Logger
}

// NewLogAlerter creates a log-only alerter.
func NewLogAlerter(logger utils.Logger) *LogAlerter {
	if logger == nil {
		logger = utils.NewLogger()
	}
	return &LogAlerter{logger: logger}
}

// Alert logs the notice at error level.
func (a *LogAlerter) Alert(ctx context.Context, subject, detail string) error {
	a.logger.WithField("subject", subject).Error(detail)
	return nil
}

// WebhookAlerter POSTs alerts to a chat webhook and logs them as well.
type WebhookAlerter struct {
	url        string
	httpClient *http.Client
	logger     utils.Logger
}

// NewWebhookAlerter creates an alerter targeting the given webhook URL.
func NewWebhookAlerter(url string, logger utils.Logger) *WebhookAlerter {
	if logger == nil {
		logger = utils.NewLogger()
	}
	return &WebhookAlerter{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Alert posts the notice as a single text message. Delivery failure is
// returned but the notice always reaches the log first.
func (a *WebhookAlerter) Alert(ctx context.Context, subject, detail string) error {
	a.logger.WithField("subject", subject).Error(detail)

	payload, err := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s*\n%s", subject, detail),
	})
	if err != nil {
		return fmt.Errorf("monitoring: marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("monitoring: build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("monitoring: deliver alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("monitoring: alert webhook returned %d", resp.StatusCode)
	}
	return nil
}

// NewAlerter picks the webhook alerter when a URL is configured, the log-only
// alerter otherwise.
func NewAlerter(webhookURL string, logger utils.Logger) Alerter {
	if webhookURL != "" {
		return NewWebhookAlerter(webhookURL, logger)
	}
	return NewLogAlerter(logger)
}
