package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mentora-ai/mentora-backend/internal/platform/logger"
)

// WorkerHTTPError carries the worker's non-2xx reply. Wrapped under
// ErrDispatchFailed so callers can branch on the taxonomy with errors.Is
// and still dig out the status for logs.
type WorkerHTTPError struct {
	StatusCode int
	Body       string
}

func (e *WorkerHTTPError) Error() string {
	return fmt.Sprintf("worker http %d: %s", e.StatusCode, e.Body)
}

type directTransport struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

func newDirectTransport(cfg Config, log *logger.Logger) (*directTransport, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.WorkerBaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing worker base URL")
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &directTransport{
		log:        log.With("transport", "direct"),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (t *directTransport) DispatchAndForget(ctx context.Context, task Task) error {
	return t.post(ctx, task)
}

func (t *directTransport) DispatchAndAwaitHTTP(ctx context.Context, task Task) error {
	return t.post(ctx, task)
}

// post sends the task body to the worker's intake route for its type. A
// 2xx means the worker accepted (async intake) or started (opening
// message) the task, not that it completed.
func (t *directTransport) post(ctx context.Context, task Task) error {
	body, err := task.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	path, err := workerPath(task.Type)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.log.Warn("worker send failed", "task_type", task.Type, "error", err)
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		httpErr := &WorkerHTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		t.log.Warn("worker rejected task", "task_type", task.Type, "status", resp.StatusCode)
		return fmt.Errorf("%w: %v", ErrDispatchFailed, httpErr)
	}
	t.log.Debug("task dispatched", "task_type", task.Type, "status", resp.StatusCode)
	return nil
}
