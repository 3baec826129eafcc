package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/flowguard/flowguard/internal/approval"
)

const (
	requestTimeout = 5 * time.Second
	maxAttempts    = 3
)

// Webhook posts approval requests to an HTTP endpoint. Network errors
// and 5xx responses are retried with exponential backoff; 4xx
// responses are permanent.
type Webhook struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger

	// retryInterval seeds the backoff. Tests shrink it.
	retryInterval time.Duration
}

// NewWebhook creates a Webhook notifier for the given destination.
func NewWebhook(cfg Config, logger *zap.Logger) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Webhook{
		cfg:           cfg,
		client:        &http.Client{Timeout: requestTimeout},
		logger:        logger,
		retryInterval: 500 * time.Millisecond,
	}
}

// NotifyApprovers posts the request to the configured endpoint.
func (w *Webhook) NotifyApprovers(ctx context.Context, req approval.Request) error {
	body, err := FormatPayload(w.cfg.Format, req)
	if err != nil {
		return fmt.Errorf("notify: format payload: %w", err)
	}

	op := func() error {
		hr, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		hr.Header.Set("Content-Type", "application/json")
		for k, v := range w.cfg.Headers {
			hr.Header.Set(k, v)
		}

		resp, err := w.client.Do(hr)
		if err != nil {
			return err
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(fmt.Errorf("webhook rejected: HTTP %d", resp.StatusCode))
		default:
			return fmt.Errorf("webhook server error: HTTP %d", resp.StatusCode)
		}
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = w.retryInterval
	b := backoff.WithContext(backoff.WithMaxRetries(eb, maxAttempts-1), ctx)

	if err := backoff.Retry(op, b); err != nil {
		return fmt.Errorf("notify: webhook %s: %w", w.cfg.URL, err)
	}

	w.logger.Debug("approval notification delivered",
		zap.String("approval", req.ID),
		zap.String("url", w.cfg.URL))
	return nil
}
