package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shaiso/Rollout/internal/config"
	"github.com/shaiso/Rollout/internal/domain"
)

const defaultNotifyTimeout = 30 * time.Second

// Notifier сообщает внешней системе итог запроса.
type Notifier interface {
	Notify(ctx context.Context, outcome domain.DeployOutcome) error
}

// WebhookNotifier отправляет DeployOutcome JSON-ом методом POST.
//
// Ответ с кодом >= 400 считается ошибкой, тело ответа попадает в текст ошибки.
type WebhookNotifier struct {
	url     string
	headers map[string]string
	timeout time.Duration
	client  *http.Client
}

// NewWebhookNotifier создаёт notifier из секции notifications.
// Возвращает nil, если webhook не задан.
func NewWebhookNotifier(cfg config.Notifications) *WebhookNotifier {
	if cfg.Webhook == "" {
		return nil
	}
	timeout := defaultNotifyTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}
	return &WebhookNotifier{
		url:     cfg.Webhook,
		headers: cfg.Headers,
		timeout: timeout,
		client:  &http.Client{},
	}
}

// Notify отправляет итог на webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, outcome domain.DeployOutcome) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	body, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("%w: marshal outcome: %v", ErrNotifyFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrNotifyFailed, err)
	}
	for key, val := range n.headers {
		req.Header.Set(key, val)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotifyFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: HTTP %d: %s", ErrNotifyFailed, resp.StatusCode, truncate(string(respBody), 200))
	}
	return nil
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
