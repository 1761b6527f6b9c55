package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/agoralabs/agora/internal/ledger"
)

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(success bool)

// WebhookSink POSTs each event to a single configured endpoint, signed with
// HMAC-SHA256 over the request body.
type WebhookSink struct {
	url        string
	secret     string
	httpClient *http.Client
	onMetrics  MetricsRecorder
	logger     *zap.Logger
}

// NewWebhookSink creates a WebhookSink delivering to url.
func NewWebhookSink(url, secret string, logger *zap.Logger) *WebhookSink {
	return &WebhookSink{
		url:        url,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// SetMetricsRecorder configures the metrics callback.
func (s *WebhookSink) SetMetricsRecorder(fn MetricsRecorder) {
	s.onMetrics = fn
}

// Emit implements ledger.EventSink. Delivery happens on its own goroutine;
// the emitting conversation is never blocked on the receiver.
func (s *WebhookSink) Emit(ev ledger.Event) {
	go s.deliver(context.Background(), ev)
}

// deliver sends the event with retries. Backoff: 1s, 5s.
func (s *WebhookSink) deliver(ctx context.Context, ev ledger.Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("webhook: marshal event", zap.Error(err))
		return
	}
	signature := signPayload(body, s.secret)

	delays := []time.Duration{0, 1 * time.Second, 5 * time.Second}
	for attempt := 1; attempt <= 3; attempt++ {
		time.Sleep(delays[attempt-1])

		success, errMsg := s.doDelivery(ctx, body, signature)
		if s.onMetrics != nil {
			s.onMetrics(success)
		}
		if success {
			return
		}
		s.logger.Warn("webhook: delivery failed",
			zap.String("url", s.url),
			zap.String("type", ev.Type),
			zap.Int("attempt", attempt),
			zap.String("error", errMsg),
		)
	}
}

// doDelivery performs a single HTTP POST delivery.
func (s *WebhookSink) doDelivery(ctx context.Context, body []byte, signature string) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return false, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Agora-Signature", signature)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return true, ""
}

// signPayload computes the hex HMAC-SHA256 of body under secret.
func signPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
