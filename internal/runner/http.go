package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// defaultRunTimeout bounds one engine call when the caller supplies no
// deadline of its own.
const defaultRunTimeout = 10 * time.Minute

// maxErrorBody caps how much of an engine error response is read back
// into the failure message.
const maxErrorBody = 2048

// HTTPRunner posts workflow specs to an engine endpoint as JSON and
// decodes the reported status. Any transport or protocol failure
// surfaces as an error; the caller records it as a failed run.
type HTTPRunner struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewHTTPRunner creates a runner for the engine at url. A zero timeout
// falls back to the default; a nil logger discards output.
func NewHTTPRunner(url string, timeout time.Duration, logger *zap.Logger) *HTTPRunner {
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPRunner{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (r *HTTPRunner) Name() string { return "http-runner" }

// Run posts the spec and decodes the engine's result. An engine that
// answers outside 2xx, or with a body that does not decode, counts as
// a failed run.
func (r *HTTPRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	body, err := json.Marshal(spec)
	if err != nil {
		return Result{Status: StatusFailed}, fmt.Errorf("runner: marshal spec: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return Result{Status: StatusFailed}, fmt.Errorf("runner: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	r.logger.Debug("delegating workflow to engine",
		zap.String("workflow", spec.WorkflowID),
		zap.String("url", r.url),
		zap.Int("steps", len(spec.Steps)))

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{Status: StatusFailed}, fmt.Errorf("runner: engine unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Result{Status: StatusFailed},
			fmt.Errorf("runner: engine returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{Status: StatusFailed}, fmt.Errorf("runner: decode engine response: %w", err)
	}
	if result.Status == "" {
		result.Status = StatusFailed
	}
	return result, nil
}
