package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// secretHeader は外部の自動化基盤がリクエストを検証するためのヘッダー。
const secretHeader = "X-Automation-Secret"

// DispatchRequest は外部の自動化基盤に送る起動依頼。
type DispatchRequest struct {
	RunID         string    `json:"run_id"`
	AutomationID  string    `json:"automation_id"`
	AutomationKey string    `json:"automation_key"`
	TriggeredBy   string    `json:"triggered_by"`
	RequestedAt   time.Time `json:"requested_at"`
}

// Dispatcher はメール自動化の実行を外部に依頼する。
type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) error
}

// WebhookDispatcher はWebhookにJSONをPOSTして自動化を起動する。
type WebhookDispatcher struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookDispatcher はWebhookDispatcherを生成する。
func NewWebhookDispatcher(url, secret string, timeout time.Duration) *WebhookDispatcher {
	return &WebhookDispatcher{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
	}
}

// Dispatch は起動依頼をPOSTする。2xx以外の応答はエラーとする。
func (d *WebhookDispatcher) Dispatch(ctx context.Context, dr DispatchRequest) error {
	body, err := json.Marshal(dr)
	if err != nil {
		return fmt.Errorf("failed to encode dispatch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.secret != "" {
		req.Header.Set(secretHeader, d.secret)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook responded with status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// LogDispatcher はWebhookが未設定の環境で起動依頼をログに出力するだけのDispatcher。
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher はLogDispatcherを生成する。
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

// Dispatch は起動依頼をログに出力する。
func (d *LogDispatcher) Dispatch(ctx context.Context, dr DispatchRequest) error {
	d.logger.InfoContext(ctx, "automation dispatch skipped: no webhook configured",
		slog.String("run_id", dr.RunID),
		slog.String("automation_key", dr.AutomationKey),
	)
	return nil
}
