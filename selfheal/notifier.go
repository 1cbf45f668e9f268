package selfheal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"elimfilters/internal/metrics"
)

const defaultNotifyTimeout = 10 * time.Second

// Notification сообщение оператору
type Notification struct {
	Text          string         `json:"text"`
	Event         string         `json:"event"`
	Stabilization *Stabilization `json:"stabilization,omitempty"`
	Conflicts     []Conflict     `json:"conflicts,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Notifier доставляет уведомления. Ошибки доставки не влияют на работу майнера
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NopNotifier отбрасывает уведомления
type NopNotifier struct{}

// Notify реализует Notifier
func (NopNotifier) Notify(context.Context, Notification) {}

// WebhookOption настраивает WebhookNotifier
type WebhookOption func(*WebhookNotifier)

// WithWebhookTimeout таймаут HTTP-клиента
func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(w *WebhookNotifier) { w.client.Timeout = d }
}

// WithWebhookHeaders дополнительные заголовки запроса
func WithWebhookHeaders(h map[string]string) WebhookOption {
	return func(w *WebhookNotifier) { w.headers = h }
}

// WebhookNotifier отправляет JSON POST на URL оператора
type WebhookNotifier struct {
	url     string
	client  *http.Client
	headers map[string]string
	logger  *zap.Logger
}

// NewWebhookNotifier создает уведомитель. Пустой URL дает уведомитель, который только логирует
func NewWebhookNotifier(url string, logger *zap.Logger, opts ...WebhookOption) *WebhookNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: defaultNotifyTimeout},
		logger: logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Notify отправляет уведомление; ошибки логируются и проглатываются
func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	if w.url == "" {
		w.logger.Info("Operator notification (webhook not configured)",
			zap.String("event", n.Event),
			zap.String("text", n.Text),
		)
		metrics.NotificationsTotal.WithLabelValues("skipped").Inc()
		return
	}

	if err := w.post(ctx, n); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		w.logger.Warn("Operator notification failed",
			zap.String("event", n.Event),
			zap.Error(err),
		)
		return
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
}

func (w *WebhookNotifier) post(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: HTTP %d", resp.StatusCode)
	}
	return nil
}
